// Package kb builds and holds the immutable in-memory ATT&CK knowledge
// base: normalization, relationship resolution, and index construction over
// a parsed bundle. A knowledge base is built once per load and never
// mutated afterwards; concurrent readers need no locking.
package kb

import (
	"sort"

	"github.com/google/uuid"
	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/bundle"
	"go.uber.org/zap"
)

// KnowledgeBase is one fully resolved, immutable snapshot. It is safe for
// concurrent use by any number of readers. A refresh never mutates an
// existing snapshot; it builds a new one and publishes it via a Snapshot
// holder.
type KnowledgeBase struct {
	Techniques     map[string]schemas.Technique
	TechniqueOrder []string // document order, drives all result ordering
	Tactics        map[string]schemas.Tactic
	Actors         map[string]schemas.ThreatActor
	DataSources    map[string]schemas.DataSource
	DataComponents map[string]schemas.DataComponent
	Mitigations    map[string]schemas.Mitigation

	Rels  *Relationships
	Index *Indexes

	Report *schemas.LoadReport
}

// Load turns already-fetched bundle bytes into a knowledge base. Fetching
// and integrity verification of the bytes are the caller's responsibility.
// The returned LoadReport is always populated on success; the error is
// non-nil only for structural failure of the document itself
// (bundle.ErrMalformedBundle), in which case no usable knowledge base can
// be produced.
func Load(data []byte, logger *zap.Logger) (*KnowledgeBase, *schemas.LoadReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("kb")

	report := &schemas.LoadReport{
		LoadID:       uuid.NewString(),
		EntityCounts: make(map[schemas.EntityKind]int),
		EdgeCounts:   make(map[string]int),
	}

	objects, parseSkips, err := bundle.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	report.Skipped = append(report.Skipped, parseSkips...)

	objects, mode, synthesized := bundle.Canonicalize(objects, logger)
	report.SchemaMode = mode
	report.Synthesized = synthesized

	ents, relationships := normalizeRecords(objects, report, logger)
	rels := resolveRelationships(ents, relationships, report, logger)
	index := buildIndexes(ents, rels)

	knowledgeBase := &KnowledgeBase{
		Techniques:     ents.techniques,
		TechniqueOrder: ents.techniqueOrder,
		Tactics:        ents.tactics,
		Actors:         ents.actors,
		DataSources:    ents.dataSources,
		DataComponents: ents.dataComponents,
		Mitigations:    ents.mitigations,
		Rels:           rels,
		Index:          index,
		Report:         report,
	}

	log.Info("Knowledge base loaded",
		zap.String("load_id", report.LoadID),
		zap.String("schema_mode", string(mode)),
		zap.Int("techniques", len(ents.techniques)),
		zap.Int("tactics", len(ents.tactics)),
		zap.Int("actors", len(ents.actors)),
		zap.Int("data_sources", len(ents.dataSources)),
		zap.Int("mitigations", len(ents.mitigations)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("duplicate_ids", len(report.DuplicateIDs)))

	return knowledgeBase, report, nil
}

// TechniqueByExternalID looks up a technique by its mitre-attack external
// id (e.g. "T1003" or "T1003.001").
func (k *KnowledgeBase) TechniqueByExternalID(externalID string) (schemas.Technique, bool) {
	id, ok := k.Index.ByExternalID[externalID]
	if !ok {
		return schemas.Technique{}, false
	}
	return k.Techniques[id], true
}

// DataSourceNames returns the sorted unique display names of all data
// sources, synthesized ones included.
func (k *KnowledgeBase) DataSourceNames() []string {
	names := make([]string, 0, len(k.DataSources))
	for _, id := range sortedKeys(k.DataSources) {
		names = append(names, k.DataSources[id].Name)
	}
	sort.Strings(names)
	return names
}

// TacticNames returns the sorted display names of all tactics.
func (k *KnowledgeBase) TacticNames() []string {
	names := make([]string, 0, len(k.Tactics))
	for _, id := range sortedKeys(k.Tactics) {
		names = append(names, k.Tactics[id].Name)
	}
	sort.Strings(names)
	return names
}

// ActorNames returns the sorted display names of all threat actors.
func (k *KnowledgeBase) ActorNames() []string {
	names := make([]string, 0, len(k.Actors))
	for _, id := range sortedKeys(k.Actors) {
		names = append(names, k.Actors[id].Name)
	}
	sort.Strings(names)
	return names
}

// DataSourceNamesFor returns the sorted unique data source names that can
// surface the given technique, derived transitively through its detecting
// data components.
func (k *KnowledgeBase) DataSourceNamesFor(techniqueID string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, componentID := range k.Rels.DetectedBy[techniqueID] {
		component, ok := k.DataComponents[componentID]
		if !ok {
			continue
		}
		source, ok := k.DataSources[component.DataSourceID]
		if !ok {
			continue
		}
		if _, dup := seen[source.Name]; dup {
			continue
		}
		seen[source.Name] = struct{}{}
		names = append(names, source.Name)
	}
	sort.Strings(names)
	return names
}

// ActorNamesFor returns the sorted names of threat actors with a uses edge
// to the given technique.
func (k *KnowledgeBase) ActorNamesFor(techniqueID string) []string {
	var names []string
	for _, actorID := range k.Rels.UsedBy[techniqueID] {
		if actor, ok := k.Actors[actorID]; ok {
			names = append(names, actor.Name)
		}
	}
	sort.Strings(names)
	return names
}

// MitigationNamesFor returns the sorted names of mitigations with a
// mitigates edge to the given technique.
func (k *KnowledgeBase) MitigationNamesFor(techniqueID string) []string {
	var names []string
	for _, mitigationID := range k.Rels.MitigatedBy[techniqueID] {
		if mitigation, ok := k.Mitigations[mitigationID]; ok {
			names = append(names, mitigation.Name)
		}
	}
	sort.Strings(names)
	return names
}
