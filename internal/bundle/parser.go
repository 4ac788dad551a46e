// Package bundle parses raw STIX 2.x bundles into flat record streams and
// canonicalizes schema-version differences before the rest of the load
// pipeline sees them.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mastervim/mitre-hunter/api/schemas"
)

// ErrMalformedBundle indicates the document is structurally unusable: the
// top-level bundle container is absent or its object list is missing or not
// a list. This is the only fatal load error; record-level problems are
// handled downstream as skips.
var ErrMalformedBundle = errors.New("malformed STIX bundle")

// Object is one raw, uninterpreted STIX record. The parser performs no
// record-level validation; semantics are deferred to the normalizer so one
// malformed record cannot abort the whole load.
type Object map[string]interface{}

// Type returns the record's type tag, or "" when absent or not a string.
func (o Object) Type() string { return o.Str("type") }

// ID returns the record's STIX identifier, or "" when absent.
func (o Object) ID() string { return o.Str("id") }

// Str returns the string value at key, or "" for missing or non-string
// values.
func (o Object) Str(key string) string {
	s, _ := o[key].(string)
	return s
}

// Bool returns the boolean value at key, defaulting to false.
func (o Object) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// StrSlice returns the value at key as a string slice, skipping non-string
// elements. Returns nil when the key is absent or not a list.
func (o Object) StrSlice(key string) []string {
	raw, ok := o[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MapSlice returns the value at key as a slice of objects, skipping
// non-object elements. Used for kill_chain_phases and external_references.
func (o Object) MapSlice(key string) []map[string]interface{} {
	raw, ok := o[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// Parse turns raw bundle bytes into the flat record stream. It validates
// only the envelope: the payload must be a JSON object of type "bundle"
// whose "objects" member is a list. Elements of the list that are not JSON
// objects are dropped and reported as skips, never as a fatal error.
func Parse(data []byte) ([]Object, []schemas.SkippedRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	var bundleType string
	if raw, ok := envelope["type"]; ok {
		// A non-string type field is treated the same as a missing one.
		_ = json.Unmarshal(raw, &bundleType)
	}
	if bundleType != "bundle" {
		return nil, nil, fmt.Errorf("%w: top-level container is %q, expected \"bundle\"", ErrMalformedBundle, bundleType)
	}

	rawObjects, ok := envelope["objects"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing \"objects\" list", ErrMalformedBundle)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(rawObjects, &elements); err != nil {
		return nil, nil, fmt.Errorf("%w: \"objects\" is not a list of records: %v", ErrMalformedBundle, err)
	}
	// A JSON null unmarshals into a nil slice without error; an empty list
	// allocates. Only a real list is acceptable here.
	if elements == nil {
		return nil, nil, fmt.Errorf("%w: \"objects\" is not a list of records", ErrMalformedBundle)
	}

	objects := make([]Object, 0, len(elements))
	var skipped []schemas.SkippedRecord
	for i, raw := range elements {
		var obj Object
		if err := json.Unmarshal(raw, &obj); err != nil {
			skipped = append(skipped, schemas.SkippedRecord{
				Reason: fmt.Sprintf("record at index %d is not an object", i),
			})
			continue
		}
		objects = append(objects, obj)
	}

	return objects, skipped, nil
}
