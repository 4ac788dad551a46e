// Package query is the read-only consumer of a knowledge base snapshot. It
// intersects pre-built name indices across filter dimensions and returns a
// capped, stable-ordered technique list. It holds no state of its own and
// is safe for arbitrary concurrent use.
package query

import (
	"fmt"
	"strings"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/kb"
)

// DefaultMaxResults caps query output so a broad filter cannot balloon a
// response. Callers may override per query; truncation is always reported.
const DefaultMaxResults = 1000

// InvalidFilterError reports a caller contract violation: a filter named a
// dimension the engine does not know. It is fatal to that call only.
type InvalidFilterError struct {
	Dimension string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("unknown filter dimension %q (supported: %s, %s, %s, %s)",
		e.Dimension, schemas.DimDataSource, schemas.DimActor, schemas.DimTactic, schemas.DimPlatform)
}

// Run evaluates the filters against the snapshot. Zero filters return all
// techniques (still capped). Multiple filters intersect; a value with no
// match in its index yields an empty result, not an error. Name matching is
// case-insensitive substring containment against the pre-normalized name
// indices, threat actor aliases included. Results come back in document
// order so identical queries against the same snapshot are identical.
func Run(snapshot *kb.KnowledgeBase, filters []schemas.Filter, maxResults int) (schemas.QueryResult, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	// nil means unconstrained; an empty non-nil set means no matches.
	var candidates map[string]struct{}
	for _, filter := range filters {
		matched, err := matchDimension(snapshot, filter)
		if err != nil {
			return schemas.QueryResult{}, err
		}
		candidates = intersect(candidates, matched)
	}

	var matchedIDs []string
	for _, id := range snapshot.TechniqueOrder {
		if candidates != nil {
			if _, ok := candidates[id]; !ok {
				continue
			}
		}
		matchedIDs = append(matchedIDs, id)
	}

	return capResult(snapshot, matchedIDs, maxResults), nil
}

// SearchKeyword returns the techniques whose name or description contains
// the keyword, case-insensitively, in document order. Unlike the filter
// dimensions this scans technique text rather than a name index; it backs
// the CLI search command and the web keyword box.
func SearchKeyword(snapshot *kb.KnowledgeBase, keyword string, maxResults int) schemas.QueryResult {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))

	var matchedIDs []string
	for _, id := range snapshot.TechniqueOrder {
		technique := snapshot.Techniques[id]
		if strings.Contains(strings.ToLower(technique.Name), needle) ||
			strings.Contains(strings.ToLower(technique.Description), needle) {
			matchedIDs = append(matchedIDs, id)
		}
	}

	return capResult(snapshot, matchedIDs, maxResults)
}

// matchDimension resolves one filter to the set of technique ids it admits.
// Substring matching runs over the folded keys of the dimension's name
// index, built once at load time, never via a linear scan of entities.
func matchDimension(snapshot *kb.KnowledgeBase, filter schemas.Filter) (map[string]struct{}, error) {
	value := strings.ToLower(strings.TrimSpace(filter.Value))
	index := snapshot.Index
	matched := make(map[string]struct{})

	switch filter.Dimension {
	case schemas.DimDataSource:
		for name, sourceID := range index.DataSourceByName {
			if strings.Contains(name, value) {
				addAll(matched, index.TechniquesByDataSource[sourceID])
			}
		}
	case schemas.DimActor:
		for name, actorID := range index.ActorByName {
			if strings.Contains(name, value) {
				addAll(matched, index.TechniquesByActor[actorID])
			}
		}
	case schemas.DimTactic:
		for name, shortName := range index.TacticByName {
			if strings.Contains(name, value) {
				addAll(matched, index.TechniquesByTactic[shortName])
			}
		}
	case schemas.DimPlatform:
		for name, techniques := range index.TechniquesByPlatform {
			if strings.Contains(name, value) {
				addAll(matched, techniques)
			}
		}
	default:
		return nil, &InvalidFilterError{Dimension: filter.Dimension}
	}

	return matched, nil
}

func addAll(set map[string]struct{}, ids []string) {
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// intersect combines candidate sets; nil acts as the universal set.
func intersect(current, next map[string]struct{}) map[string]struct{} {
	if current == nil {
		return next
	}
	out := make(map[string]struct{})
	for id := range current {
		if _, ok := next[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// capResult applies the result cap and reports the true match count so
// truncation is never silent.
func capResult(snapshot *kb.KnowledgeBase, matchedIDs []string, maxResults int) schemas.QueryResult {
	total := len(matchedIDs)
	truncated := total > maxResults
	if truncated {
		matchedIDs = matchedIDs[:maxResults]
	}

	techniques := make([]schemas.Technique, 0, len(matchedIDs))
	for _, id := range matchedIDs {
		techniques = append(techniques, snapshot.Techniques[id])
	}

	return schemas.QueryResult{
		Techniques:   techniques,
		TotalMatched: total,
		Truncated:    truncated,
	}
}
