package synthesis

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/cruz-jay/beatbot/logger"
	"github.com/cruz-jay/beatbot/model"
	"github.com/cruz-jay/beatbot/repository"

	"github.com/google/uuid"
)

// Synthesizer is the provider client surface the orchestrator needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (ProviderResponse, error)
}

// AudioStore uploads finished audio and returns a directly usable URL.
// Optional; without one, completed tracks store inline data URIs.
type AudioStore interface {
	UploadAudio(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// Request is one generation request. PrincipalEmail comes from the
// identity layer and is trusted as-is.
type Request struct {
	PrincipalEmail string
	Prompt         string
	Description    string
	Title          string
	Genre          string
}

// Result is a successful generation.
type Result struct {
	TrackID  int64  `json:"trackId"`
	AudioURL string `json:"audioUrl"`
	Title    string `json:"title"`
	Genre    string `json:"genre"`
}

// Orchestrator runs the generation lifecycle: resolve principal,
// check quota, create a pending track, call the provider under the
// retry policy, classify the outcome, and persist the terminal state.
type Orchestrator struct {
	client Synthesizer
	users  repository.UserRepository
	tracks repository.TrackRepository
	quotas repository.QuotaRepository
	store  AudioStore
	policy BackoffPolicy
}

// NewOrchestrator wires a generation orchestrator. store may be nil.
func NewOrchestrator(client Synthesizer, users repository.UserRepository, tracks repository.TrackRepository, quotas repository.QuotaRepository, store AudioStore, policy BackoffPolicy) *Orchestrator {
	return &Orchestrator{
		client: client,
		users:  users,
		tracks: tracks,
		quotas: quotas,
		store:  store,
		policy: policy,
	}
}

// Generate runs one generation request to completion. Failures are
// returned as *Error carrying a Kind for the transport layer; once a
// pending track exists, every failure path marks it failed before
// returning.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()

	if req.PrincipalEmail == "" {
		return nil, newError(KindUnauthenticated, "You must be logged in to generate music", nil)
	}
	if req.Prompt == "" {
		return nil, newError(KindUnexpected, "Prompt is required", nil)
	}

	logger.Info("starting music generation request",
		logger.String("requestId", requestID),
		logger.String("email", req.PrincipalEmail))

	user, err := o.users.GetUserByEmail(req.PrincipalEmail)
	if err != nil {
		return nil, newError(KindUnexpected, "Failed to look up user account", err)
	}
	if user == nil {
		return nil, newError(KindAccountNotFound, "User account not found", nil)
	}

	quota, err := o.quotas.GetOrCreate(user.ID)
	if err != nil {
		return nil, newError(KindUnexpected, "Failed to check track limit", err)
	}
	if quota.TracksCount >= quota.MaxTracks {
		return nil, newError(KindQuotaExceeded,
			fmt.Sprintf("You've reached your limit of %d tracks", quota.MaxTracks), nil)
	}

	title := req.Title
	if title == "" {
		title = "Untitled Track"
	}
	genre := req.Genre
	if genre == "" {
		genre = "unknown"
	}

	trackID, err := o.tracks.CreateTrack(&model.Track{
		UserID: user.ID,
		Title:  title,
		Prompt: req.Prompt,
		Genre:  genre,
	})
	if err != nil {
		return nil, newError(KindRecordCreationFailed, "Failed to create track record", err)
	}

	logger.Info("pending track created",
		logger.String("requestId", requestID),
		logger.Int64("trackId", trackID))

	text := req.Prompt
	if req.Description != "" {
		text = req.Prompt + ". " + req.Description
	}

	resp, err := retryWithBackoff(ctx, o.policy, func(ctx context.Context) (ProviderResponse, error) {
		return o.client.Synthesize(ctx, text)
	}, isTransient)
	if err != nil {
		reason := failureReason(err)
		o.failTrack(trackID, reason)
		return nil, newError(KindProviderUnavailable, reason, err)
	}

	var audioURL string
	switch body := resp.(type) {
	case RawAudio:
		audioURL = o.audioReference(ctx, requestID, body.Bytes, body.Mime)
	case EncodedAudio:
		raw, decErr := base64.StdEncoding.DecodeString(body.Base64)
		if decErr != nil {
			o.failTrack(trackID, "Invalid response from AI service")
			return nil, newError(KindInvalidResponse, "Failed to generate audio: provider sent malformed base64 audio", decErr)
		}
		audioURL = o.audioReference(ctx, requestID, raw, "audio/wav")
	case RemoteAudio:
		audioURL = body.URL
	case ErrorPayload:
		o.failTrack(trackID, "Invalid response from AI service")
		return nil, newError(KindInvalidResponse, "Failed to generate audio: "+body.Message, nil)
	default:
		o.failTrack(trackID, "Invalid response from AI service")
		return nil, newError(KindInvalidResponse, "Failed to generate audio: unrecognized provider response", nil)
	}

	// Audio is in hand; from here bookkeeping failures are logged,
	// never surfaced, so the caller still gets the playable artifact.
	if err := o.tracks.MarkTrackCompleted(trackID, audioURL); err != nil {
		logger.Error("failed to mark track completed",
			logger.String("requestId", requestID),
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
	}
	if err := o.quotas.IncrementCompleted(user.ID); err != nil {
		logger.Warn("failed to increment track count",
			logger.String("requestId", requestID),
			logger.Int64("userId", user.ID),
			logger.ErrorField(err))
	}

	logger.Info("music generation completed",
		logger.String("requestId", requestID),
		logger.Int64("trackId", trackID))

	return &Result{
		TrackID:  trackID,
		AudioURL: audioURL,
		Title:    title,
		Genre:    genre,
	}, nil
}

// audioReference produces the artifact reference for finished audio:
// an object-store URL when a store is configured and the upload
// works, otherwise an inline data URI. Audio already obtained is
// never lost to a storage failure.
func (o *Orchestrator) audioReference(ctx context.Context, requestID string, data []byte, mime string) string {
	if o.store != nil {
		objectName := "generated/" + requestID + ".wav"
		url, err := o.store.UploadAudio(ctx, objectName, data, mime)
		if err == nil {
			return url
		}
		logger.Warn("audio upload failed, falling back to data URI",
			logger.String("requestId", requestID),
			logger.ErrorField(err))
	}
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(data)
}

// failTrack marks a pending track failed. Best effort: a failure here
// is logged and never masks the original error.
func (o *Orchestrator) failTrack(trackID int64, reason string) {
	if err := o.tracks.MarkTrackFailed(trackID, reason); err != nil {
		logger.Error("failed to mark track as failed",
			logger.Int64("trackId", trackID),
			logger.String("reason", reason),
			logger.ErrorField(err))
	}
}
