package kb

import (
	"sort"
	"strings"
)

// Indexes holds the reverse lookup indices used by queries. All name keys
// are case-folded exactly once, at build time; the query engine never folds
// an index key again. Technique lists are in document order so query output
// is stable and diffable.
type Indexes struct {
	// Name indices: folded display name (and aliases/shortnames) -> key of
	// the corresponding technique index.
	TacticByName     map[string]string // folded tactic name or shortname -> folded shortname
	ActorByName      map[string]string // folded actor name or alias -> actor id
	DataSourceByName map[string]string // folded data source name -> data source id

	// Technique indices: dimension key -> technique ids in document order.
	TechniquesByTactic     map[string][]string // folded tactic shortname
	TechniquesByActor      map[string][]string // actor id
	TechniquesByDataSource map[string][]string // data source id
	TechniquesByPlatform   map[string][]string // folded platform name

	// ByExternalID resolves a mitre-attack external id (e.g. T1003) to the
	// technique's STIX id.
	ByExternalID map[string]string

	// position is the technique's document-order rank, used to keep every
	// derived technique list stably ordered.
	position map[string]int
}

// buildIndexes constructs all reverse indices from one fully resolved
// entity set and relationship set. It runs once per load against the same
// immutable snapshot and is never reconciled incrementally.
func buildIndexes(ents *entitySet, rels *Relationships) *Indexes {
	idx := &Indexes{
		TacticByName:           make(map[string]string),
		ActorByName:            make(map[string]string),
		DataSourceByName:       make(map[string]string),
		TechniquesByTactic:     make(map[string][]string),
		TechniquesByActor:      make(map[string][]string),
		TechniquesByDataSource: make(map[string][]string),
		TechniquesByPlatform:   make(map[string][]string),
		ByExternalID:           make(map[string]string),
		position:               make(map[string]int),
	}

	for i, id := range ents.techniqueOrder {
		idx.position[id] = i
	}

	// Tactic and platform memberships come straight off the techniques, in
	// document order, so no re-sort is needed.
	for _, id := range ents.techniqueOrder {
		technique := ents.techniques[id]
		if technique.ExternalID != "" {
			idx.ByExternalID[technique.ExternalID] = id
		}
		for _, shortName := range technique.Tactics {
			key := fold(shortName)
			idx.TechniquesByTactic[key] = appendUnique(idx.TechniquesByTactic[key], id)
			// A phase name with no tactic entity still gets a name-index
			// entry so the filter dimension keeps working.
			if _, mapped := idx.TacticByName[key]; !mapped {
				idx.TacticByName[key] = key
			}
		}
		for _, platform := range technique.Platforms {
			key := fold(platform)
			idx.TechniquesByPlatform[key] = appendUnique(idx.TechniquesByPlatform[key], id)
		}
	}

	// Tactic display names map onto their shortname keys. Iteration is over
	// sorted ids so name collisions resolve deterministically.
	for _, id := range sortedKeys(ents.tactics) {
		tactic := ents.tactics[id]
		shortKey := fold(tactic.ShortName)
		if shortKey == "" {
			shortKey = fold(tactic.Name)
		}
		idx.TacticByName[shortKey] = shortKey
		if nameKey := fold(tactic.Name); nameKey != "" {
			idx.TacticByName[nameKey] = shortKey
		}
	}

	for _, id := range sortedKeys(ents.actors) {
		actor := ents.actors[id]
		idx.ActorByName[fold(actor.Name)] = id
		for _, alias := range actor.Aliases {
			idx.ActorByName[fold(alias)] = id
		}
		idx.TechniquesByActor[id] = idx.sortByPosition(rels.Uses[id])
	}

	// A technique's reachable data sources derive transitively through its
	// data components, uniformly for both schema versions (the adapter
	// already canonicalized legacy input).
	componentsBySource := make(map[string][]string)
	for _, id := range sortedKeys(ents.dataComponents) {
		component := ents.dataComponents[id]
		if component.DataSourceID != "" {
			componentsBySource[component.DataSourceID] = append(componentsBySource[component.DataSourceID], id)
		}
	}
	for _, id := range sortedKeys(ents.dataSources) {
		source := ents.dataSources[id]
		idx.DataSourceByName[fold(source.Name)] = id

		var techniques []string
		for _, componentID := range componentsBySource[id] {
			techniques = append(techniques, rels.Detects[componentID]...)
		}
		idx.TechniquesByDataSource[id] = idx.sortByPosition(techniques)
	}

	return idx
}

// sortByPosition returns the ids ordered by document position, with
// duplicates removed. Ids without a position (should not happen after
// resolution) sort last.
func (idx *Indexes) sortByPosition(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		pi, iOK := idx.position[unique[i]]
		pj, jOK := idx.position[unique[j]]
		if iOK != jOK {
			return iOK
		}
		return pi < pj
	})
	return unique
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fold normalizes a name for case-insensitive lookup. Applied once at index
// build time, and to incoming filter values at query time.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
