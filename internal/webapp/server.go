// Package webapp serves the interactive front end: an HTML filter UI plus a
// small JSON API. It reads the knowledge base through a Snapshot holder, so
// a background refresh swaps the data under it without interrupting
// in-flight requests.
package webapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/kb"
	"github.com/mastervim/mitre-hunter/internal/query"
	"go.uber.org/zap"
)

// Server holds the handler state. It owns no knowledge base itself; every
// request reads whatever snapshot is currently published.
type Server struct {
	snapshot   *kb.Snapshot
	maxResults int
	log        *zap.Logger
	tmpl       *template.Template
}

// NewServer builds the web front end around a snapshot holder.
func NewServer(snapshot *kb.Snapshot, maxResults int, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxResults <= 0 {
		maxResults = query.DefaultMaxResults
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}
	if _, err := tmpl.New("technique").Parse(techniqueTemplate); err != nil {
		return nil, fmt.Errorf("parsing technique template: %w", err)
	}

	return &Server{
		snapshot:   snapshot,
		maxResults: maxResults,
		log:        logger.Named("webapp"),
		tmpl:       tmpl,
	}, nil
}

// Handler returns the HTTP handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /technique", s.handleTechnique)
	mux.HandleFunc("GET /api/query", s.handleAPIQuery)
	return s.withRequestLog(mux)
}

// withRequestLog tags each request with an id and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Debug("Request served",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery))
	})
}

// filtersFromRequest maps URL parameters onto query filters, preserving the
// fixed dimension order so logged queries are comparable.
func filtersFromRequest(r *http.Request) []schemas.Filter {
	var filters []schemas.Filter
	for _, dim := range []string{schemas.DimDataSource, schemas.DimTactic, schemas.DimActor, schemas.DimPlatform} {
		if value := strings.TrimSpace(r.URL.Query().Get(dim)); value != "" {
			filters = append(filters, schemas.Filter{Dimension: dim, Value: value})
		}
	}
	return filters
}

// runQuery evaluates the request's filters and optional keyword against the
// current snapshot. The keyword narrows the filtered set before the cap is
// applied, so truncation counts stay truthful.
func (s *Server) runQuery(snapshot *kb.KnowledgeBase, r *http.Request) (schemas.QueryResult, error) {
	filters := filtersFromRequest(r)
	keyword := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("keyword")))

	limit := s.maxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	// Evaluate uncapped first; the keyword pass must see every match.
	uncapped, err := query.Run(snapshot, filters, len(snapshot.TechniqueOrder)+1)
	if err != nil {
		return schemas.QueryResult{}, err
	}

	matches := uncapped.Techniques
	if keyword != "" {
		kept := matches[:0:0]
		for _, technique := range matches {
			if strings.Contains(strings.ToLower(technique.Name), keyword) ||
				strings.Contains(strings.ToLower(technique.Description), keyword) {
				kept = append(kept, technique)
			}
		}
		matches = kept
	}

	total := len(matches)
	truncated := total > limit
	if truncated {
		matches = matches[:limit]
	}
	return schemas.QueryResult{Techniques: matches, TotalMatched: total, Truncated: truncated}, nil
}

func (s *Server) handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	snapshot := s.snapshot.Current()
	if snapshot == nil {
		http.Error(w, "knowledge base not loaded yet", http.StatusServiceUnavailable)
		return
	}

	result, err := s.runQuery(snapshot, r)
	if err != nil {
		var invalid *query.InvalidFilterError
		status := http.StatusInternalServerError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error("Failed to encode query result", zap.Error(err))
	}
}

// indexView is the template payload for the filter page.
type indexView struct {
	DataSources []string
	Tactics     []string
	Actors      []string
	Selected    map[string]string
	Keyword     string
	Result      schemas.QueryResult
	Queried     bool
	Error       string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snapshot := s.snapshot.Current()
	if snapshot == nil {
		http.Error(w, "knowledge base not loaded yet", http.StatusServiceUnavailable)
		return
	}

	view := indexView{
		DataSources: snapshot.DataSourceNames(),
		Tactics:     snapshot.TacticNames(),
		Actors:      snapshot.ActorNames(),
		Selected: map[string]string{
			schemas.DimDataSource: r.URL.Query().Get(schemas.DimDataSource),
			schemas.DimTactic:     r.URL.Query().Get(schemas.DimTactic),
			schemas.DimActor:      r.URL.Query().Get(schemas.DimActor),
			schemas.DimPlatform:   r.URL.Query().Get(schemas.DimPlatform),
		},
		Keyword: r.URL.Query().Get("keyword"),
	}

	result, err := s.runQuery(snapshot, r)
	if err != nil {
		view.Error = err.Error()
	} else {
		view.Result = result
		view.Queried = true
	}

	if err := s.tmpl.ExecuteTemplate(w, "index", view); err != nil {
		s.log.Error("Failed to render index", zap.Error(err))
	}
}

// techniqueView is the template payload for the detail page.
type techniqueView struct {
	Technique   schemas.Technique
	DataSources []string
	Actors      []string
	Mitigations []string
}

func (s *Server) handleTechnique(w http.ResponseWriter, r *http.Request) {
	snapshot := s.snapshot.Current()
	if snapshot == nil {
		http.Error(w, "knowledge base not loaded yet", http.StatusServiceUnavailable)
		return
	}

	externalID := r.URL.Query().Get("id")
	technique, ok := snapshot.TechniqueByExternalID(externalID)
	if !ok {
		http.Error(w, fmt.Sprintf("technique %q not found", externalID), http.StatusNotFound)
		return
	}

	view := techniqueView{
		Technique:   technique,
		DataSources: snapshot.DataSourceNamesFor(technique.ID),
		Actors:      snapshot.ActorNamesFor(technique.ID),
		Mitigations: snapshot.MitigationNamesFor(technique.ID),
	}
	if err := s.tmpl.ExecuteTemplate(w, "technique", view); err != nil {
		s.log.Error("Failed to render technique", zap.Error(err))
	}
}
