package webapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const webFixture = `{
  "type": "bundle",
  "objects": [
    {"type": "x-mitre-tactic", "id": "x-mitre-tactic--ta6", "name": "Credential Access",
     "x_mitre_shortname": "credential-access"},

    {"type": "attack-pattern", "id": "attack-pattern--t1", "name": "OS Credential Dumping",
     "description": "Adversaries may attempt to dump credentials.",
     "x_mitre_platforms": ["Windows"],
     "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}],
     "external_references": [{"source_name": "mitre-attack", "external_id": "T1003"}]},
    {"type": "attack-pattern", "id": "attack-pattern--t2", "name": "Brute Force",
     "description": "Adversaries may use brute force techniques.",
     "x_mitre_platforms": ["Linux"],
     "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}],
     "external_references": [{"source_name": "mitre-attack", "external_id": "T1110"}]},

    {"type": "intrusion-set", "id": "intrusion-set--apt29", "name": "APT29"},

    {"type": "x-mitre-data-source", "id": "x-mitre-data-source--ds-process", "name": "Process"},
    {"type": "x-mitre-data-component", "id": "x-mitre-data-component--dc-proc", "name": "Process Creation",
     "x_mitre_data_source_ref": "x-mitre-data-source--ds-process"},

    {"type": "course-of-action", "id": "course-of-action--m1", "name": "Credential Access Protection"},

    {"type": "relationship", "id": "relationship--r1", "relationship_type": "uses",
     "source_ref": "intrusion-set--apt29", "target_ref": "attack-pattern--t1"},
    {"type": "relationship", "id": "relationship--r2", "relationship_type": "uses",
     "source_ref": "intrusion-set--apt29", "target_ref": "attack-pattern--t2"},
    {"type": "relationship", "id": "relationship--r3", "relationship_type": "detects",
     "source_ref": "x-mitre-data-component--dc-proc", "target_ref": "attack-pattern--t1"},
    {"type": "relationship", "id": "relationship--r4", "relationship_type": "mitigates",
     "source_ref": "course-of-action--m1", "target_ref": "attack-pattern--t1"}
  ]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	knowledgeBase, _, err := kb.Load([]byte(webFixture), zap.NewNop())
	require.NoError(t, err)

	snapshot := &kb.Snapshot{}
	snapshot.Publish(knowledgeBase)

	server, err := NewServer(snapshot, 100, zap.NewNop())
	require.NoError(t, err)
	return server
}

func get(t *testing.T, server *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func decodeResult(t *testing.T, recorder *httptest.ResponseRecorder) schemas.QueryResult {
	t.Helper()
	var result schemas.QueryResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	return result
}

func TestAPIQuery(t *testing.T) {
	server := newTestServer(t)

	t.Run("filters map onto query dimensions", func(t *testing.T) {
		recorder := get(t, server, "/api/query?actor=apt29&platform=windows")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

		result := decodeResult(t, recorder)
		require.Len(t, result.Techniques, 1)
		assert.Equal(t, "T1003", result.Techniques[0].ExternalID)
		assert.Equal(t, 1, result.TotalMatched)
	})

	t.Run("no parameters returns everything", func(t *testing.T) {
		result := decodeResult(t, get(t, server, "/api/query"))
		assert.Equal(t, 2, result.TotalMatched)
		assert.False(t, result.Truncated)
	})

	t.Run("keyword narrows the filtered set", func(t *testing.T) {
		result := decodeResult(t, get(t, server, "/api/query?actor=apt29&keyword=brute"))
		require.Len(t, result.Techniques, 1)
		assert.Equal(t, "T1110", result.Techniques[0].ExternalID)
	})

	t.Run("limit truncates but keeps the true total", func(t *testing.T) {
		result := decodeResult(t, get(t, server, "/api/query?limit=1"))
		assert.Len(t, result.Techniques, 1)
		assert.Equal(t, 2, result.TotalMatched)
		assert.True(t, result.Truncated)
	})

	t.Run("data source filter works end to end", func(t *testing.T) {
		result := decodeResult(t, get(t, server, "/api/query?data_source=process"))
		require.Len(t, result.Techniques, 1)
		assert.Equal(t, "T1003", result.Techniques[0].ExternalID)
	})

	t.Run("unloaded snapshot yields 503", func(t *testing.T) {
		empty, err := NewServer(&kb.Snapshot{}, 100, zap.NewNop())
		require.NoError(t, err)
		recorder := get(t, empty, "/api/query")
		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	})
}

func TestIndexPage(t *testing.T) {
	server := newTestServer(t)

	t.Run("renders the filter form and results", func(t *testing.T) {
		recorder := get(t, server, "/?actor=apt29")
		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "<form")
		assert.Contains(t, body, "OS Credential Dumping")
		assert.Contains(t, body, "Process", "data source options are listed")
	})

	t.Run("unknown path is 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(t, server, "/nope").Code)
	})
}

func TestTechniquePage(t *testing.T) {
	server := newTestServer(t)

	t.Run("shows the technique with its context", func(t *testing.T) {
		recorder := get(t, server, "/technique?id=T1003")
		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "OS Credential Dumping")
		assert.Contains(t, body, "APT29")
		assert.Contains(t, body, "Credential Access Protection")
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(t, server, "/technique?id=T9999").Code)
	})
}
