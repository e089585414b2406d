package server

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/models"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := s.engine.Query(r.Context(), req)
	if res.Outcome == models.OutcomeError {
		s.respondErr(w, res.Err)
		return
	}
	s.logger.Debug("query",
		zap.String("outcome", string(res.Outcome)), zap.String("reason", res.Reason))
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Save(r.Context(), req)
	if err != nil {
		s.logger.Error("save failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	status := http.StatusCreated
	if res.DuplicateDetected {
		status = http.StatusOK
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Delete(r.Context(), req)
	if err != nil {
		s.logger.Error("delete failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Feedback(r.Context(), req)
	if err != nil {
		if cacheerr.IsInvalidInput(err) {
			s.respondErr(w, err)
			return
		}
		s.logger.Error("feedback failed", zap.Error(err))
		s.respondJSON(w, cacheerr.HTTPStatus(err), models.FeedbackResult{
			Success:     false,
			Message:     err.Error(),
			ActionTaken: models.ActionError,
			CacheSignal: req.CacheSignal,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	var req models.ReconstructRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.CorpusPath == "" && req.ExcelPath == "" {
		req.CorpusPath = s.engine.Config().Corpus.Path
	}
	res, err := s.engine.Reconstruct(r.Context(), req, nil)
	if err != nil {
		s.logger.Error("reconstruct failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Reset(r.Context())
	if err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleCleanAnswers(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.CleanAnswers(r.Context())
	if err != nil {
		s.logger.Error("clean answers failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.engine.Health(r.Context())
	if err != nil {
		s.logger.Error("status: health check failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	cfg := s.engine.Config()
	resp := map[string]any{
		"collection": cfg.Cache.Collection,
		"health":     health,
		"config": map[string]any{
			"vectorizer_version":          s.engine.Embedder().Version(),
			"embedding_dimensions":        s.engine.Embedder().Dimensions(),
			"relevance_scorer":            s.engine.Scorer().Name(),
			"top_k":                       cfg.Cache.TopK,
			"vector_similarity_threshold": cfg.Thresholds.VectorSimilarity,
			"relevance_threshold":         cfg.Thresholds.Relevance,
			"feedback_save_threshold":     cfg.Thresholds.FeedbackSave,
			"feedback_delete_threshold":   cfg.Thresholds.FeedbackDelete,
			"database_path":               cfg.Storage.DatabasePath(),
			"corpus_path":                 cfg.Corpus.Path,
		},
		"disk_usage_bytes": health.DiskUsageBytes,
	}
	if s.watch != nil {
		resp["watched_files"] = s.watch.Files()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	out, err := s.engine.Export(r.Context(), limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = 50
	}
	events, err := s.engine.History(limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondJSON(w, cacheerr.HTTPStatus(err), errorResponse{
		Error:   err.Error(),
		Code:    string(cacheerr.CodeOf(err)),
		Details: cacheerr.FieldsOf(err),
	})
}
