package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperjump/kioku/internal/engine"
	"github.com/hyperjump/kioku/internal/models"
	"go.uber.org/zap"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest request",
		zap.Int("docs", len(req.Docs)),
		zap.Int("urls", len(req.URLs)))
	result, err := s.engine.Ingest(r.Context(), &req)
	if err != nil {
		s.respondEngineError(w, "ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	response, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		s.respondEngineError(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("answer request", zap.String("question", req.Question), zap.String("mode", req.Mode))
	response, err := s.engine.Answer(r.Context(), &req)
	if err != nil {
		s.respondEngineError(w, "answer failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("feedback request", zap.String("rating", req.Rating))
	record, err := s.engine.Feedback(r.Context(), &req)
	if err != nil {
		s.respondEngineError(w, "feedback failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"feedback": record})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Rebuild(r.Context())
	if err != nil {
		s.respondEngineError(w, "reindex failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.respondEngineError(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondEngineError maps validation failures to 400 and everything else to 500.
func (s *Server) respondEngineError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, engine.ErrInvalidRequest) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error(msg, zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
