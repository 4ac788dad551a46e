package kb

import (
	"sort"
	"strings"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/bundle"
	"go.uber.org/zap"
)

// STIX type tags mapped to entity kinds. Everything else is either a
// relationship record (forwarded to the resolver) or an unsupported type
// (markings, identities, collections) and is excluded from the entity set.
var kindByType = map[string]schemas.EntityKind{
	"attack-pattern":         schemas.KindTechnique,
	"x-mitre-tactic":         schemas.KindTactic,
	"intrusion-set":          schemas.KindThreatActor,
	"x-mitre-data-source":    schemas.KindDataSource,
	"x-mitre-data-component": schemas.KindDataComponent,
	"course-of-action":       schemas.KindMitigation,
}

// rawRelationship is a relationship record isolated during normalization,
// carried to the resolver untouched.
type rawRelationship struct {
	id        string
	kind      string
	sourceRef string
	targetRef string
}

// entitySet is the typed output of normalization: one mapping from
// identifier to entity, with no duplicate identifiers, plus the document
// order techniques were first inserted in.
type entitySet struct {
	techniques     map[string]schemas.Technique
	techniqueOrder []string
	tactics        map[string]schemas.Tactic
	actors         map[string]schemas.ThreatActor
	dataSources    map[string]schemas.DataSource
	dataComponents map[string]schemas.DataComponent
	mitigations    map[string]schemas.Mitigation

	// kindOf resolves any identifier to its entity kind; it is also how
	// duplicate ids are detected across kinds.
	kindOf map[string]schemas.EntityKind
}

func newEntitySet() *entitySet {
	return &entitySet{
		techniques:     make(map[string]schemas.Technique),
		tactics:        make(map[string]schemas.Tactic),
		actors:         make(map[string]schemas.ThreatActor),
		dataSources:    make(map[string]schemas.DataSource),
		dataComponents: make(map[string]schemas.DataComponent),
		mitigations:    make(map[string]schemas.Mitigation),
		kindOf:         make(map[string]schemas.EntityKind),
	}
}

// normalizeRecords converts canonical raw records into typed entities,
// validating required fields (id and name, non-empty). A record failing
// validation is skipped with a recorded reason, never fatal. Duplicate ids
// keep the last-seen record and are reported as warnings; duplicates are a
// real observed anomaly in the live dataset, not a theoretical case.
func normalizeRecords(objects []bundle.Object, report *schemas.LoadReport, logger *zap.Logger) (*entitySet, []rawRelationship) {
	log := logger.Named("normalizer")
	ents := newEntitySet()
	var relationships []rawRelationship

	for _, obj := range objects {
		recordType := obj.Type()

		if recordType == "relationship" {
			relationships = append(relationships, rawRelationship{
				id:        obj.ID(),
				kind:      obj.Str("relationship_type"),
				sourceRef: obj.Str("source_ref"),
				targetRef: obj.Str("target_ref"),
			})
			continue
		}

		kind, supported := kindByType[recordType]
		if !supported {
			log.Debug("Excluding unsupported record type", zap.String("type", recordType), zap.String("id", obj.ID()))
			continue
		}

		if obj.Bool("revoked") || obj.Bool("x_mitre_deprecated") {
			log.Debug("Excluding revoked or deprecated record", zap.String("id", obj.ID()))
			continue
		}

		id := obj.ID()
		name := strings.TrimSpace(obj.Str("name"))
		switch {
		case id == "":
			report.AddSkip("", recordType, "missing required field: id")
			continue
		case name == "":
			report.AddSkip(id, recordType, "missing required field: name")
			continue
		}

		if previous, seen := ents.kindOf[id]; seen {
			report.DuplicateIDs = append(report.DuplicateIDs, id)
			log.Warn("Duplicate identifier in source document, keeping the later record",
				zap.String("id", id), zap.String("kind", string(kind)))
			if previous != kind {
				ents.remove(id, previous)
			}
		}

		ents.insert(id, kind, obj)
	}

	for kind, count := range map[schemas.EntityKind]int{
		schemas.KindTechnique:     len(ents.techniques),
		schemas.KindTactic:        len(ents.tactics),
		schemas.KindThreatActor:   len(ents.actors),
		schemas.KindDataSource:    len(ents.dataSources),
		schemas.KindDataComponent: len(ents.dataComponents),
		schemas.KindMitigation:    len(ents.mitigations),
	} {
		report.EntityCounts[kind] = count
	}

	return ents, relationships
}

// insert builds the typed entity for the record and stores it. A duplicate
// technique keeps its original document-order position.
func (e *entitySet) insert(id string, kind schemas.EntityKind, obj bundle.Object) {
	e.kindOf[id] = kind
	switch kind {
	case schemas.KindTechnique:
		if _, exists := e.techniques[id]; !exists {
			e.techniqueOrder = append(e.techniqueOrder, id)
		}
		e.techniques[id] = newTechnique(id, obj)
	case schemas.KindTactic:
		e.tactics[id] = schemas.Tactic{
			ID:         id,
			ExternalID: externalID(obj),
			Name:       obj.Str("name"),
			ShortName:  obj.Str("x_mitre_shortname"),
		}
	case schemas.KindThreatActor:
		e.actors[id] = schemas.ThreatActor{
			ID:         id,
			ExternalID: externalID(obj),
			Name:       obj.Str("name"),
			Aliases:    actorAliases(obj),
		}
	case schemas.KindDataSource:
		e.dataSources[id] = schemas.DataSource{
			ID:          id,
			Name:        obj.Str("name"),
			Synthesized: obj.Bool("x_mitre_synthesized"),
		}
	case schemas.KindDataComponent:
		e.dataComponents[id] = schemas.DataComponent{
			ID:           id,
			Name:         obj.Str("name"),
			DataSourceID: obj.Str("x_mitre_data_source_ref"),
		}
	case schemas.KindMitigation:
		e.mitigations[id] = schemas.Mitigation{
			ID:          id,
			ExternalID:  externalID(obj),
			Name:        obj.Str("name"),
			Description: obj.Str("description"),
		}
	}
}

// remove drops an entity after a duplicate id arrived under a different
// kind; last-seen wins across kinds too.
func (e *entitySet) remove(id string, kind schemas.EntityKind) {
	switch kind {
	case schemas.KindTechnique:
		delete(e.techniques, id)
		for i, tid := range e.techniqueOrder {
			if tid == id {
				e.techniqueOrder = append(e.techniqueOrder[:i], e.techniqueOrder[i+1:]...)
				break
			}
		}
	case schemas.KindTactic:
		delete(e.tactics, id)
	case schemas.KindThreatActor:
		delete(e.actors, id)
	case schemas.KindDataSource:
		delete(e.dataSources, id)
	case schemas.KindDataComponent:
		delete(e.dataComponents, id)
	case schemas.KindMitigation:
		delete(e.mitigations, id)
	}
	delete(e.kindOf, id)
}

func newTechnique(id string, obj bundle.Object) schemas.Technique {
	return schemas.Technique{
		ID:             id,
		ExternalID:     externalID(obj),
		Name:           obj.Str("name"),
		Description:    obj.Str("description"),
		Tactics:        killChainPhases(obj),
		Platforms:      obj.StrSlice("x_mitre_platforms"),
		IsSubtechnique: obj.Bool("x_mitre_is_subtechnique"),
		URL:            externalURL(obj),
	}
}

// externalID extracts the mitre-attack external identifier (e.g. T1003)
// from the record's external references.
func externalID(obj bundle.Object) string {
	for _, ref := range obj.MapSlice("external_references") {
		if src, _ := ref["source_name"].(string); src == "mitre-attack" {
			id, _ := ref["external_id"].(string)
			return id
		}
	}
	return ""
}

func externalURL(obj bundle.Object) string {
	for _, ref := range obj.MapSlice("external_references") {
		if src, _ := ref["source_name"].(string); src == "mitre-attack" {
			url, _ := ref["url"].(string)
			return url
		}
	}
	return ""
}

// killChainPhases returns the technique's tactic shortnames in document
// order, restricted to the mitre-attack kill chain.
func killChainPhases(obj bundle.Object) []string {
	var phases []string
	for _, phase := range obj.MapSlice("kill_chain_phases") {
		chain, _ := phase["kill_chain_name"].(string)
		if chain != "mitre-attack" {
			continue
		}
		if name, _ := phase["phase_name"].(string); name != "" {
			phases = append(phases, name)
		}
	}
	return phases
}

// actorAliases merges the STIX aliases list with the x_mitre_aliases
// extension, deduplicated case-insensitively, sorted for stable output.
func actorAliases(obj bundle.Object) []string {
	seen := make(map[string]struct{})
	var aliases []string
	for _, list := range [][]string{obj.StrSlice("aliases"), obj.StrSlice("x_mitre_aliases")} {
		for _, alias := range list {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			key := strings.ToLower(alias)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return aliases
}
