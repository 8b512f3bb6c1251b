package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/cruz-jay/beatbot/cache"
	"github.com/cruz-jay/beatbot/logger"

	"github.com/gorilla/mux"
)

// GetTracksHandler returns the caller's tracks, newest first. Reads
// go through the Redis cache; cache failures fall back to the
// database and are logged, never surfaced.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := GetClaimsFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cached, err := cache.GetUserTracks(r.Context(), claims.UserID)
	if err != nil {
		logger.Warn("track cache read failed", logger.ErrorField(err))
	}
	if cached != nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	tracks, err := h.trackRepo.GetTracksByUserID(claims.UserID)
	if err != nil {
		logger.Error("failed to list tracks",
			logger.Int64("userId", claims.UserID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch tracks")
		return
	}

	if err := cache.SetUserTracks(r.Context(), claims.UserID, tracks); err != nil {
		logger.Warn("track cache write failed", logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler returns a single track owned by the caller.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := GetClaimsFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil {
		logger.Error("failed to fetch track",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch track")
		return
	}
	if track == nil || track.UserID != claims.UserID {
		respondError(w, http.StatusNotFound, "Track not found")
		return
	}

	respondJSON(w, http.StatusOK, track)
}

// DeleteTrackHandler removes a track owned by the caller.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := GetClaimsFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	if err := h.trackRepo.DeleteTrack(trackID, claims.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("failed to delete track",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	if err := cache.InvalidateUserTracks(r.Context(), claims.UserID); err != nil {
		logger.Warn("failed to invalidate track cache", logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetQuotaHandler returns the caller's generation allowance.
func (h *APIHandler) GetQuotaHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := GetClaimsFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	quota, err := h.quotaRepo.GetOrCreate(claims.UserID)
	if err != nil {
		logger.Error("failed to fetch quota",
			logger.Int64("userId", claims.UserID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to check track limit")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"tracksCount": quota.TracksCount,
		"maxTracks":   quota.MaxTracks,
		"remaining":   quota.Remaining(),
	})
}
