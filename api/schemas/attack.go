package schemas

// -- Core ATT&CK Entity Models --
// These types represent the fully-normalized entities held by an immutable
// knowledge base snapshot. Entities are never mutated after construction.

// EntityKind is the closed set of entity categories in the knowledge base.
type EntityKind string

const (
	KindTechnique     EntityKind = "technique"
	KindTactic        EntityKind = "tactic"
	KindThreatActor   EntityKind = "threat_actor"
	KindDataSource    EntityKind = "data_source"
	KindDataComponent EntityKind = "data_component"
	KindMitigation    EntityKind = "mitigation"
)

// RelationshipKind is the closed set of directed edge categories.
type RelationshipKind string

const (
	RelUses           RelationshipKind = "uses"
	RelMitigates      RelationshipKind = "mitigates"
	RelDetects        RelationshipKind = "detects"
	RelSubtechniqueOf RelationshipKind = "subtechnique-of"
)

// Technique is an adversary behavior (STIX attack-pattern), the primary
// query target.
type Technique struct {
	ID             string   `json:"id"`
	ExternalID     string   `json:"external_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Tactics        []string `json:"tactics"` // kill-chain phase shortnames, document order
	Platforms      []string `json:"platforms"`
	IsSubtechnique bool     `json:"is_subtechnique"`
	ParentID       string   `json:"parent_id,omitempty"` // resolved depth <= 1
	URL            string   `json:"url,omitempty"`
}

// Tactic is a categorical goal a technique serves (e.g. persistence).
type Tactic struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	ShortName  string `json:"short_name"` // matches kill-chain phase names
}

// ThreatActor is a tracked adversary group (STIX intrusion-set).
type ThreatActor struct {
	ID         string   `json:"id"`
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
}

// DataSource is a log-producing capability that owns data components.
// Synthesized is set when the source bundle used the legacy flat
// x_mitre_data_sources form and the entity was created by the version
// adapter rather than parsed from an x-mitre-data-source record.
type DataSource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Synthesized bool   `json:"synthesized,omitempty"`
}

// DataComponent is a specific observable signal belonging to a DataSource.
type DataComponent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DataSourceID string `json:"data_source_id"`
}

// Mitigation is a defensive control (STIX course-of-action).
type Mitigation struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
