package bundle

import (
	"strconv"
	"strings"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"go.uber.org/zap"
)

// The ATT&CK dataset changed how a technique's visible log sources are
// expressed. Older bundles list data-source names directly on the technique
// as a flat x_mitre_data_sources attribute; current bundles express
// visibility only indirectly, through detects relationships from
// x-mitre-data-component records (which reference their owning
// x-mitre-data-source). Canonicalize rewrites legacy input into the current
// shape so no other component is schema-version-aware.

const (
	typeAttackPattern = "attack-pattern"
	typeDataSource    = "x-mitre-data-source"
	typeDataComponent = "x-mitre-data-component"
	typeRelationship  = "relationship"

	attrLegacyDataSources = "x_mitre_data_sources"
	attrDataSourceRef     = "x_mitre_data_source_ref"
)

// Canonicalize detects the bundle's schema mode and, for legacy bundles,
// synthesizes the missing data-source, data-component, and detects
// relationship records. A legacy name that matches no known data source gets
// a data source created for it rather than being dropped, so filter
// capability is never silently lost. Returns the canonical stream, the
// detected mode, and the number of synthesized records.
func Canonicalize(objects []Object, logger *zap.Logger) ([]Object, schemas.SchemaMode, int) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("adapter")

	if !isLegacy(objects) {
		return objects, schemas.SchemaModeCurrent, 0
	}

	// Index existing data sources by case-folded name so legacy names reuse
	// them instead of shadowing them with a synthesized duplicate.
	sourceIDByName := make(map[string]string)
	for _, obj := range objects {
		if obj.Type() == typeDataSource && obj.Str("name") != "" {
			sourceIDByName[fold(obj.Str("name"))] = obj.ID()
		}
	}

	// One synthesized component per data source carries the detects edges.
	componentIDBySource := make(map[string]string)

	// Distinct folded names can slug identically ("a b" and "a  b" both slug
	// to "a-b"); id fragments are disambiguated per namespace so a collision
	// never shadows an earlier synthesized record.
	sourceSlugs := make(map[string]bool)
	componentSlugs := make(map[string]bool)

	canonical := objects
	synthesized := 0
	relSeq := 0

	for _, obj := range objects {
		if obj.Type() != typeAttackPattern {
			continue
		}
		names := obj.StrSlice(attrLegacyDataSources)
		if len(names) == 0 {
			continue
		}

		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key := fold(name)

			sourceID, ok := sourceIDByName[key]
			if !ok {
				sourceID = typeDataSource + "--synthesized-" + uniqueSlug(sourceSlugs, name)
				sourceIDByName[key] = sourceID
				canonical = append(canonical, Object{
					"type": typeDataSource,
					"id":   sourceID,
					"name": name,
					"x_mitre_synthesized": true,
				})
				synthesized++
				log.Debug("Synthesized data source for legacy name",
					zap.String("name", name), zap.String("id", sourceID))
			}

			componentID, ok := componentIDBySource[sourceID]
			if !ok {
				componentID = typeDataComponent + "--synthesized-" + uniqueSlug(componentSlugs, name)
				componentIDBySource[sourceID] = componentID
				canonical = append(canonical, Object{
					"type":            typeDataComponent,
					"id":              componentID,
					"name":            name,
					attrDataSourceRef: sourceID,
				})
				synthesized++
			}

			canonical = append(canonical, Object{
				"type":              typeRelationship,
				"id":                newSyntheticRelID(&relSeq),
				"relationship_type": string(schemas.RelDetects),
				"source_ref":        componentID,
				"target_ref":        obj.ID(),
			})
			synthesized++
		}
	}

	log.Info("Canonicalized legacy bundle",
		zap.Int("synthesized_records", synthesized),
		zap.Int("data_sources", len(sourceIDByName)))

	return canonical, schemas.SchemaModeLegacy, synthesized
}

// isLegacy reports whether any technique carries the legacy flat
// data-source attribute. Presence of the flat attribute is the detection
// heuristic; mixed bundles are treated as legacy so no listed name is lost.
func isLegacy(objects []Object) bool {
	for _, obj := range objects {
		if obj.Type() == typeAttackPattern && len(obj.StrSlice(attrLegacyDataSources)) > 0 {
			return true
		}
	}
	return false
}

func newSyntheticRelID(seq *int) string {
	*seq++
	return typeRelationship + "--synthesized-" + strconv.Itoa(*seq)
}

// uniqueSlug returns the name's slug, suffixed with a counter when the bare
// slug was already handed out within the namespace.
func uniqueSlug(used map[string]bool, name string) string {
	base := slug(name)
	fragment := base
	for n := 2; used[fragment]; n++ {
		fragment = base + "-" + strconv.Itoa(n)
	}
	used[fragment] = true
	return fragment
}

// fold normalizes a name for case-insensitive comparison.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// slug derives a stable identifier fragment from a display name. Runs of
// non-alphanumeric characters collapse to a single dash.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range fold(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
