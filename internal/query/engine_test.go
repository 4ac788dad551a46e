package query

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const queryFixture = `{
  "type": "bundle",
  "objects": [
    {"type": "x-mitre-tactic", "id": "x-mitre-tactic--ta6", "name": "Credential Access",
     "x_mitre_shortname": "credential-access"},
    {"type": "x-mitre-tactic", "id": "x-mitre-tactic--ta3", "name": "Persistence",
     "x_mitre_shortname": "persistence"},

    {"type": "attack-pattern", "id": "attack-pattern--t1", "name": "OS Credential Dumping",
     "description": "Adversaries may attempt to dump credentials from LSASS memory.",
     "x_mitre_platforms": ["Windows", "Linux"],
     "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}],
     "external_references": [{"source_name": "mitre-attack", "external_id": "T1003"}]},
    {"type": "attack-pattern", "id": "attack-pattern--t2", "name": "Boot or Logon Autostart Execution",
     "description": "Adversaries may configure system settings to run a program at boot.",
     "x_mitre_platforms": ["Windows"],
     "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "persistence"}],
     "external_references": [{"source_name": "mitre-attack", "external_id": "T1547"}]},
    {"type": "attack-pattern", "id": "attack-pattern--t3", "name": "Brute Force",
     "description": "Adversaries may use brute force techniques to gain access.",
     "x_mitre_platforms": ["Linux"],
     "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}],
     "external_references": [{"source_name": "mitre-attack", "external_id": "T1110"}]},

    {"type": "intrusion-set", "id": "intrusion-set--apt29", "name": "APT29",
     "aliases": ["Cozy Bear"]},
    {"type": "intrusion-set", "id": "intrusion-set--fin7", "name": "FIN7"},

    {"type": "x-mitre-data-source", "id": "x-mitre-data-source--ds-process", "name": "Process"},
    {"type": "x-mitre-data-component", "id": "x-mitre-data-component--dc-proc", "name": "Process Creation",
     "x_mitre_data_source_ref": "x-mitre-data-source--ds-process"},

    {"type": "relationship", "id": "relationship--r1", "relationship_type": "uses",
     "source_ref": "intrusion-set--apt29", "target_ref": "attack-pattern--t1"},
    {"type": "relationship", "id": "relationship--r2", "relationship_type": "uses",
     "source_ref": "intrusion-set--apt29", "target_ref": "attack-pattern--t3"},
    {"type": "relationship", "id": "relationship--r3", "relationship_type": "uses",
     "source_ref": "intrusion-set--fin7", "target_ref": "attack-pattern--t2"},
    {"type": "relationship", "id": "relationship--r4", "relationship_type": "detects",
     "source_ref": "x-mitre-data-component--dc-proc", "target_ref": "attack-pattern--t1"},
    {"type": "relationship", "id": "relationship--r5", "relationship_type": "detects",
     "source_ref": "x-mitre-data-component--dc-proc", "target_ref": "attack-pattern--t2"}
  ]
}`

func loadSnapshot(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	snapshot, _, err := kb.Load([]byte(queryFixture), zap.NewNop())
	require.NoError(t, err)
	return snapshot
}

func externalIDs(result schemas.QueryResult) []string {
	ids := make([]string, 0, len(result.Techniques))
	for _, technique := range result.Techniques {
		ids = append(ids, technique.ExternalID)
	}
	return ids
}

func TestRun(t *testing.T) {
	snapshot := loadSnapshot(t)

	t.Run("no filters returns everything in document order", func(t *testing.T) {
		result, err := Run(snapshot, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"T1003", "T1547", "T1110"}, externalIDs(result))
		assert.Equal(t, 3, result.TotalMatched)
		assert.False(t, result.Truncated)
	})

	t.Run("actor filter matches by name", func(t *testing.T) {
		result, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimActor, Value: "apt29"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"T1003", "T1110"}, externalIDs(result))
	})

	t.Run("actor filter matches by alias substring", func(t *testing.T) {
		result, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimActor, Value: "cozy"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"T1003", "T1110"}, externalIDs(result))
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		result, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimActor, Value: "APT29"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalMatched)
	})

	t.Run("tactic filter accepts display name and shortname", func(t *testing.T) {
		byDisplay, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimTactic, Value: "Credential Access"},
		}, 0)
		require.NoError(t, err)
		byShort, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimTactic, Value: "credential-access"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, externalIDs(byDisplay), externalIDs(byShort))
		assert.Equal(t, []string{"T1003", "T1110"}, externalIDs(byDisplay))
	})

	t.Run("data source filter derives through components", func(t *testing.T) {
		result, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimDataSource, Value: "process"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"T1003", "T1547"}, externalIDs(result))
	})

	t.Run("multiple filters intersect", func(t *testing.T) {
		result, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimActor, Value: "apt29"},
			{Dimension: schemas.DimPlatform, Value: "windows"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"T1003"}, externalIDs(result))
	})

	t.Run("filter order does not change the result", func(t *testing.T) {
		forward, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimActor, Value: "apt29"},
			{Dimension: schemas.DimTactic, Value: "credential"},
		}, 0)
		require.NoError(t, err)
		reversed, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimTactic, Value: "credential"},
			{Dimension: schemas.DimActor, Value: "apt29"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, forward, reversed)
	})

	t.Run("identical queries return identical results", func(t *testing.T) {
		filters := []schemas.Filter{{Dimension: schemas.DimPlatform, Value: "linux"}}
		first, err := Run(snapshot, filters, 0)
		require.NoError(t, err)
		second, err := Run(snapshot, filters, 0)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("unmatched value yields empty result, not an error", func(t *testing.T) {
		result, err := Run(snapshot, []schemas.Filter{
			{Dimension: schemas.DimActor, Value: "no such group"},
		}, 0)
		require.NoError(t, err)
		assert.Empty(t, result.Techniques)
		assert.Zero(t, result.TotalMatched)
		assert.False(t, result.Truncated)
	})

	t.Run("unknown dimension is an InvalidFilterError", func(t *testing.T) {
		_, err := Run(snapshot, []schemas.Filter{
			{Dimension: "severity", Value: "high"},
		}, 0)
		var invalid *InvalidFilterError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "severity", invalid.Dimension)
		assert.Contains(t, err.Error(), "severity")
	})

	t.Run("error check works through wrapping", func(t *testing.T) {
		_, err := Run(snapshot, []schemas.Filter{{Dimension: "bogus"}}, 0)
		require.Error(t, err)
		wrapped := fmt.Errorf("query failed: %w", err)
		var invalid *InvalidFilterError
		assert.True(t, errors.As(wrapped, &invalid))
	})
}

func TestRunTruncation(t *testing.T) {
	snapshot := loadSnapshot(t)

	t.Run("cap truncates and reports the true total", func(t *testing.T) {
		result, err := Run(snapshot, nil, 2)
		require.NoError(t, err)
		assert.Len(t, result.Techniques, 2)
		assert.Equal(t, 3, result.TotalMatched)
		assert.True(t, result.Truncated)
		// The cap keeps the leading prefix of the document order.
		assert.Equal(t, []string{"T1003", "T1547"}, externalIDs(result))
	})

	t.Run("cap equal to match count is not truncation", func(t *testing.T) {
		result, err := Run(snapshot, nil, 3)
		require.NoError(t, err)
		assert.Len(t, result.Techniques, 3)
		assert.False(t, result.Truncated)
	})

	t.Run("non-positive cap falls back to the default", func(t *testing.T) {
		result, err := Run(snapshot, nil, -1)
		require.NoError(t, err)
		assert.Len(t, result.Techniques, 3)
		assert.False(t, result.Truncated)
	})
}

func TestSearchKeyword(t *testing.T) {
	snapshot := loadSnapshot(t)

	t.Run("matches technique names", func(t *testing.T) {
		result := SearchKeyword(snapshot, "brute", 0)
		assert.Equal(t, []string{"T1110"}, externalIDs(result))
	})

	t.Run("matches descriptions", func(t *testing.T) {
		result := SearchKeyword(snapshot, "LSASS", 0)
		assert.Equal(t, []string{"T1003"}, externalIDs(result))
	})

	t.Run("no match yields empty result", func(t *testing.T) {
		result := SearchKeyword(snapshot, "kerberoasting", 0)
		assert.Empty(t, result.Techniques)
		assert.Zero(t, result.TotalMatched)
	})

	t.Run("results are capped like filter queries", func(t *testing.T) {
		result := SearchKeyword(snapshot, "adversaries", 1)
		assert.Len(t, result.Techniques, 1)
		assert.Equal(t, 3, result.TotalMatched)
		assert.True(t, result.Truncated)
	})
}
