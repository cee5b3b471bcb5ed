package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/RetrivaAI/retriva/engine/domain"
	"github.com/RetrivaAI/retriva/engine/query"
	"github.com/RetrivaAI/retriva/pkg/metrics"
	"github.com/RetrivaAI/retriva/pkg/natsutil"
)

// orchestratorAPI is the slice of query.Orchestrator the handlers use.
type orchestratorAPI interface {
	AddDocument(ctx context.Context, id string, p domain.DocumentPayload) error
	AddDataQuery(ctx context.Context, id string, p domain.DataQueryPayload) error
	SearchDocuments(ctx context.Context, aug query.Augmenter, queryText string, minScore float32, maxResults int) ([]domain.SearchResponse, error)
	AnswerDataQuery(ctx context.Context, aug query.Augmenter, ts query.TimeSeries, queryText string, minScore float32) (*domain.DataQueryResponse, error)
}

// server holds the long-lived collaborators shared across requests.
type server struct {
	orch      orchestratorAPI
	ts        query.TimeSeries
	responder query.Responder
	nc        *nats.Conn
	logger    *slog.Logger
	reg       *metrics.Registry
	ready     atomic.Bool
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", s.reg.Handler())
	mux.HandleFunc("GET /documents", s.handleSearchDocuments)
	mux.HandleFunc("POST /documents", s.handleAddDocuments)
	mux.HandleFunc("GET /database", s.handleDataQuery)
	mux.HandleFunc("POST /database", s.handleAddDataQueries)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// augmenter resolves the useLanguageResponse query flag into the explicit
// optional responder.
func (s *server) augmenter(r *http.Request) (query.Augmenter, error) {
	raw := r.URL.Query().Get("useLanguageResponse")
	if raw == "" {
		return query.NoAugment(), nil
	}
	use, err := strconv.ParseBool(raw)
	if err != nil {
		return query.Augmenter{}, domain.NewValidationError("useLanguageResponse", raw)
	}
	if !use {
		return query.NoAugment(), nil
	}
	return query.WithResponder(s.responder), nil
}

func (s *server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	s.reg.Counter("retriva_document_searches_total").Inc()
	start := time.Now()
	defer func() {
		s.reg.Histogram("retriva_document_search_seconds").ObserveDuration(time.Since(start))
	}()

	q := r.URL.Query()
	minScore, err := floatParam(q.Get("minResultScore"), 0.5)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	maxResults, err := intParam(q.Get("maxResults"), 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	aug, err := s.augmenter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	responses, err := s.orch.SearchDocuments(r.Context(), aug, q.Get("searchString"), minScore, maxResults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var documents []string
	if err := json.NewDecoder(r.Body).Decode(&documents); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ids := make([]string, 0, len(documents))
	for _, doc := range documents {
		id := uuid.NewString()
		if err := s.orch.AddDocument(r.Context(), id, domain.DocumentPayload{Document: doc}); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.publishIndexed(r.Context(), natsutil.SubjectDocumentIndexed, id, doc)
		ids = append(ids, id)
	}
	s.reg.Counter("retriva_documents_indexed_total").Add(int64(len(ids)))
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

func (s *server) handleDataQuery(w http.ResponseWriter, r *http.Request) {
	s.reg.Counter("retriva_data_queries_total").Inc()

	q := r.URL.Query()
	minScore, err := floatParam(q.Get("minResultScore"), 0.5)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	aug, err := s.augmenter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.orch.AnswerDataQuery(r.Context(), aug, s.ts, q.Get("queryString"), minScore)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// No match is a legitimate empty outcome, served as a JSON null.
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleAddDataQueries(w http.ResponseWriter, r *http.Request) {
	var records []domain.DataQueryPayload
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		id := uuid.NewString()
		if err := s.orch.AddDataQuery(r.Context(), id, rec); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.publishIndexed(r.Context(), natsutil.SubjectDataQueryIndexed, id, rec.Document)
		ids = append(ids, id)
	}
	s.reg.Counter("retriva_data_queries_indexed_total").Add(int64(len(ids)))
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

// publishIndexed announces an upserted record. Publishing is best-effort:
// event consumers are not part of the write path.
func (s *server) publishIndexed(ctx context.Context, subject, id, document string) {
	if s.nc == nil {
		return
	}
	evt := natsutil.IndexedEvent{ID: id, Document: document, IndexedAt: time.Now().UTC()}
	if err := natsutil.Publish(ctx, s.nc, subject, evt); err != nil {
		s.logger.Warn("event publish failed", "subject", subject, "id", id, "err", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Client went away or the request timed out; nothing useful to write.
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrQueryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func floatParam(raw string, def float32) (float32, error) {
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, domain.NewValidationError("minResultScore", raw)
	}
	return float32(f), nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("maxResults", raw)
	}
	return n, nil
}
