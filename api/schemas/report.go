package schemas

// -- Load / Query Result Models --
// These types cross the boundary between the core pipeline and its front
// ends (CLI commands and the web app).

// SkippedRecord describes one record or relationship that was dropped during
// a load. Skips are advisory: the load itself still succeeds.
type SkippedRecord struct {
	ID     string `json:"id,omitempty"`   // STIX id when available
	Type   string `json:"type,omitempty"` // raw record type tag
	Reason string `json:"reason"`
}

// SchemaMode identifies which bundle shape the version adapter detected.
type SchemaMode string

const (
	SchemaModeCurrent SchemaMode = "current" // data components + detects relationships
	SchemaModeLegacy  SchemaMode = "legacy"  // flat x_mitre_data_sources on techniques
)

// LoadReport is the structured account of one load cycle. Everything in it
// is advisory except a fatal parse failure, which is returned as an error
// instead of a report entry.
type LoadReport struct {
	LoadID       string             `json:"load_id"`
	SchemaMode   SchemaMode         `json:"schema_mode"`
	EntityCounts map[EntityKind]int `json:"entity_counts"`
	EdgeCounts   map[string]int     `json:"edge_counts"`
	Synthesized  int                `json:"synthesized"` // records created by the version adapter
	Skipped      []SkippedRecord    `json:"skipped,omitempty"`
	DuplicateIDs []string           `json:"duplicate_ids,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// AddSkip records one dropped record with its reason.
func (r *LoadReport) AddSkip(id, recordType, reason string) {
	r.Skipped = append(r.Skipped, SkippedRecord{ID: id, Type: recordType, Reason: reason})
}

// Filter is one named predicate evaluated by the query engine. Filters are
// ordered because callers pass them as an ordered mapping; evaluation is
// commutative but reporting preserves caller order.
type Filter struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

// Filter dimensions accepted by the query engine.
const (
	DimDataSource = "data_source"
	DimActor      = "actor"
	DimTactic     = "tactic"
	DimPlatform   = "platform"
)

// QueryResult is the capped, stable-ordered outcome of one query.
// TotalMatched always carries the true match count so truncation is never
// silent.
type QueryResult struct {
	Techniques   []Technique `json:"techniques"`
	TotalMatched int         `json:"total_matched"`
	Truncated    bool        `json:"truncated"`
}
