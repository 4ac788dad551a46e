package kb

import (
	"fmt"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"go.uber.org/zap"
)

// Relationships holds the directed adjacency indices built from resolved
// relationship records. Keys are entity identifiers; values are ordered sets
// of target identifiers (document order, deduplicated). Each forward index
// has a reverse counterpart keyed by the opposite endpoint.
type Relationships struct {
	Uses   map[string][]string // threat actor -> techniques
	UsedBy map[string][]string // technique -> threat actors

	Mitigates   map[string][]string // mitigation -> techniques
	MitigatedBy map[string][]string // technique -> mitigations

	Detects    map[string][]string // data component -> techniques
	DetectedBy map[string][]string // technique -> data components

	SubtechniquesOf map[string][]string // parent technique -> subtechniques
}

func newRelationships() *Relationships {
	return &Relationships{
		Uses:            make(map[string][]string),
		UsedBy:          make(map[string][]string),
		Mitigates:       make(map[string][]string),
		MitigatedBy:     make(map[string][]string),
		Detects:         make(map[string][]string),
		DetectedBy:      make(map[string][]string),
		SubtechniquesOf: make(map[string][]string),
	}
}

// expectedEndpoints defines, per relationship kind, which entity kinds the
// source and target must resolve to. Anything else is dropped with a
// recorded reason.
var expectedEndpoints = map[string][2]schemas.EntityKind{
	string(schemas.RelUses):           {schemas.KindThreatActor, schemas.KindTechnique},
	string(schemas.RelMitigates):      {schemas.KindMitigation, schemas.KindTechnique},
	string(schemas.RelDetects):        {schemas.KindDataComponent, schemas.KindTechnique},
	string(schemas.RelSubtechniqueOf): {schemas.KindTechnique, schemas.KindTechnique},
}

// resolveRelationships validates every raw relationship against the entity
// set and builds the adjacency indices. Dangling endpoints, wrong-kind
// endpoints, and unrecognized kinds are dropped with recorded reasons,
// never fatally: the knowledge base favors best-effort internal consistency
// over failing the load for data-quality issues in a live dataset.
func resolveRelationships(ents *entitySet, rels []rawRelationship, report *schemas.LoadReport, logger *zap.Logger) *Relationships {
	log := logger.Named("resolver")
	out := newRelationships()

	type edgeKey struct{ kind, source, target string }
	seen := make(map[edgeKey]struct{})

	// Candidate parent edges are collected first: depth and cycle checks
	// need the complete picture before any ParentID is assigned.
	parentOf := make(map[string]string) // subtechnique -> parent

	for _, rel := range rels {
		expected, recognized := expectedEndpoints[rel.kind]
		if !recognized {
			report.AddSkip(rel.id, "relationship", fmt.Sprintf("unrecognized relationship kind %q", rel.kind))
			continue
		}

		sourceKind, sourceOK := ents.kindOf[rel.sourceRef]
		targetKind, targetOK := ents.kindOf[rel.targetRef]
		if !sourceOK || !targetOK {
			report.AddSkip(rel.id, "relationship", fmt.Sprintf("dangling %s reference: %s -> %s", rel.kind, rel.sourceRef, rel.targetRef))
			continue
		}
		if sourceKind != expected[0] || targetKind != expected[1] {
			report.AddSkip(rel.id, "relationship",
				fmt.Sprintf("%s relationship endpoints have kinds %s -> %s, expected %s -> %s",
					rel.kind, sourceKind, targetKind, expected[0], expected[1]))
			continue
		}

		key := edgeKey{rel.kind, rel.sourceRef, rel.targetRef}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		switch rel.kind {
		case string(schemas.RelUses):
			out.Uses[rel.sourceRef] = append(out.Uses[rel.sourceRef], rel.targetRef)
			out.UsedBy[rel.targetRef] = append(out.UsedBy[rel.targetRef], rel.sourceRef)
		case string(schemas.RelMitigates):
			out.Mitigates[rel.sourceRef] = append(out.Mitigates[rel.sourceRef], rel.targetRef)
			out.MitigatedBy[rel.targetRef] = append(out.MitigatedBy[rel.targetRef], rel.sourceRef)
		case string(schemas.RelDetects):
			out.Detects[rel.sourceRef] = append(out.Detects[rel.sourceRef], rel.targetRef)
			out.DetectedBy[rel.targetRef] = append(out.DetectedBy[rel.targetRef], rel.sourceRef)
		case string(schemas.RelSubtechniqueOf):
			if existing, dup := parentOf[rel.sourceRef]; dup {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("technique %s claims multiple parents (%s, %s); keeping the first", rel.sourceRef, existing, rel.targetRef))
				continue
			}
			parentOf[rel.sourceRef] = rel.targetRef
		}
	}

	applyParentEdges(ents, parentOf, out, report, log)

	report.EdgeCounts[string(schemas.RelUses)] = countEdges(out.Uses)
	report.EdgeCounts[string(schemas.RelMitigates)] = countEdges(out.Mitigates)
	report.EdgeCounts[string(schemas.RelDetects)] = countEdges(out.Detects)
	report.EdgeCounts[string(schemas.RelSubtechniqueOf)] = countEdges(out.SubtechniquesOf)

	return out
}

// applyParentEdges enforces the depth-at-most-one invariant: a
// subtechnique's parent is never itself a subtechnique. A self edge, a
// cycle, or a chain deeper than one drops the offending edge with a
// data-quality warning and the technique is treated as depth-0.
func applyParentEdges(ents *entitySet, parentOf map[string]string, out *Relationships, report *schemas.LoadReport, log *zap.Logger) {
	for _, child := range ents.techniqueOrder {
		parent, ok := parentOf[child]
		if !ok {
			continue
		}
		if parent == child {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("technique %s is its own parent; edge dropped", child))
			continue
		}
		if _, parentHasParent := parentOf[parent]; parentHasParent {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("parent chain for technique %s exceeds depth 1 (via %s); edge dropped", child, parent))
			log.Warn("Dropping subtechnique edge deeper than one level",
				zap.String("child", child), zap.String("parent", parent))
			continue
		}

		technique := ents.techniques[child]
		technique.ParentID = parent
		ents.techniques[child] = technique
		out.SubtechniquesOf[parent] = append(out.SubtechniquesOf[parent], child)
	}
}

func countEdges(adjacency map[string][]string) int {
	total := 0
	for _, targets := range adjacency {
		total += len(targets)
	}
	return total
}
