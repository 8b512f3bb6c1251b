package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cruz-jay/beatbot/cache"
	"github.com/cruz-jay/beatbot/core/synthesis"
	"github.com/cruz-jay/beatbot/logger"
)

// GenerateMusicRequest is the body of POST /api/generate-music.
type GenerateMusicRequest struct {
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	UserEmail   string `json:"userEmail"`
}

// GenerateMusicHandler accepts a generation request, runs the
// orchestrator, and maps its error taxonomy onto HTTP statuses.
func (h *APIHandler) GenerateMusicHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := GetClaimsFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "You must be logged in to generate music")
		return
	}

	var req GenerateMusicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	// The session identifies the principal; the body's userEmail is
	// only a fallback for sessions that carry no email claim.
	email := claims.Email
	if email == "" {
		email = req.UserEmail
	}
	if email == "" {
		respondError(w, http.StatusBadRequest, "Unable to identify user account")
		return
	}

	result, err := h.orchestrator.Generate(r.Context(), synthesis.Request{
		PrincipalEmail: email,
		Prompt:         req.Prompt,
		Description:    req.Description,
		Title:          req.Title,
		Genre:          req.Genre,
	})
	if err != nil {
		status, message := generationErrorStatus(err)
		logger.Warn("music generation failed",
			logger.String("email", email),
			logger.Int("status", status),
			logger.ErrorField(err))
		// A failure after the pending insert left a terminal track
		// behind, so the cached list is stale too.
		if generationCreatedTrack(err) {
			if err := cache.InvalidateUserTracks(r.Context(), claims.UserID); err != nil {
				logger.Warn("failed to invalidate track cache", logger.ErrorField(err))
			}
		}
		respondError(w, status, message)
		return
	}

	// The track list changed; drop the cached copy.
	if err := cache.InvalidateUserTracks(r.Context(), claims.UserID); err != nil {
		logger.Warn("failed to invalidate track cache", logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"trackId":  result.TrackID,
		"audioUrl": result.AudioURL,
		"title":    result.Title,
		"genre":    result.Genre,
	})
}

// generationCreatedTrack reports whether a generation failure happened
// after the pending insert, meaning a track row reached a terminal
// state despite the error.
func generationCreatedTrack(err error) bool {
	var genErr *synthesis.Error
	if !errors.As(err, &genErr) {
		return false
	}
	return genErr.Kind == synthesis.KindProviderUnavailable || genErr.Kind == synthesis.KindInvalidResponse
}

// generationErrorStatus maps orchestrator failures onto HTTP statuses
// and caller-safe messages.
func generationErrorStatus(err error) (int, string) {
	var genErr *synthesis.Error
	if !errors.As(err, &genErr) {
		return http.StatusInternalServerError, "An unexpected error occurred"
	}

	switch genErr.Kind {
	case synthesis.KindUnauthenticated:
		return http.StatusUnauthorized, genErr.Message
	case synthesis.KindAccountNotFound:
		return http.StatusNotFound, genErr.Message
	case synthesis.KindQuotaExceeded:
		return http.StatusForbidden, genErr.Message
	case synthesis.KindProviderUnavailable:
		return http.StatusServiceUnavailable, genErr.Message
	case synthesis.KindRecordCreationFailed, synthesis.KindInvalidResponse, synthesis.KindUnexpected:
		return http.StatusInternalServerError, genErr.Message
	default:
		return http.StatusInternalServerError, genErr.Message
	}
}
