package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/audit"
	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/pipeline"
)

// QueryHandler exposes the question-to-result pipeline over HTTP.
type QueryHandler struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

func NewQueryHandler(p *pipeline.Pipeline, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		pipeline: p,
		logger:   logger.Named("query_handler"),
	}
}

// RegisterRoutes registers the query endpoints on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ask", h.handleAsk)
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *QueryHandler) handleAsk(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Bad Request",
			"message": "Request body must be JSON with a question field.",
		})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Bad Request",
			"message": "Question must not be empty.",
		})
		return
	}

	ctx := audit.WithRequestID(r.Context(), uuid.New())

	h.logger.Debug("Processing question",
		zap.String("role", identity.Role),
		zap.Int("question_length", len(req.Question)))

	result := h.pipeline.Ask(ctx, req.Question, identity)

	writeJSON(w, statusCodeFor(result), result)
}

func statusCodeFor(result models.PipelineResult) int {
	switch result.Status {
	case models.StatusDenied:
		return http.StatusForbidden
	case models.StatusFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
