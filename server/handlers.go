package server

import (
	"encoding/json"
	"net/http"

	"github.com/cruz-jay/beatbot/config"
	"github.com/cruz-jay/beatbot/core/auth"
	"github.com/cruz-jay/beatbot/core/synthesis"
	"github.com/cruz-jay/beatbot/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	userRepo     repository.UserRepository
	trackRepo    repository.TrackRepository
	quotaRepo    repository.QuotaRepository
	orchestrator *synthesis.Orchestrator
	tokens       *auth.TokenIssuer
	cfg          *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	userRepo repository.UserRepository,
	trackRepo repository.TrackRepository,
	quotaRepo repository.QuotaRepository,
	orchestrator *synthesis.Orchestrator,
	tokens *auth.TokenIssuer,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		userRepo:     userRepo,
		trackRepo:    trackRepo,
		quotaRepo:    quotaRepo,
		orchestrator: orchestrator,
		tokens:       tokens,
		cfg:          cfg,
	}
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError writes the {"error": ...} body every failure path uses.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
