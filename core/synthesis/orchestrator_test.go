package synthesis

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cruz-jay/beatbot/model"
	"github.com/cruz-jay/beatbot/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory collaborator fakes.

type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) CreateUser(u *model.User) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeUserRepo) GetUserByID(id int64) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (*model.User, error) {
	return f.users[email], nil
}

type fakeTrackRepo struct {
	nextID       int64
	tracks       map[int64]*model.Track
	createErr    error
	completedErr error
}

func newFakeTrackRepo() *fakeTrackRepo {
	return &fakeTrackRepo{tracks: make(map[int64]*model.Track)}
}

func (f *fakeTrackRepo) CreateTrack(track *model.Track) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	stored := *track
	stored.ID = f.nextID
	stored.Status = model.TrackStatusPending
	stored.CreatedAt = time.Now()
	f.tracks[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeTrackRepo) GetTrackByID(id int64) (*model.Track, error) {
	return f.tracks[id], nil
}

func (f *fakeTrackRepo) GetTracksByUserID(userID int64) ([]*model.Track, error) {
	var out []*model.Track
	for _, track := range f.tracks {
		if track.UserID == userID {
			out = append(out, track)
		}
	}
	return out, nil
}

func (f *fakeTrackRepo) MarkTrackCompleted(trackID int64, audioURL string) error {
	if f.completedErr != nil {
		return f.completedErr
	}
	track, ok := f.tracks[trackID]
	if !ok || track.Status != model.TrackStatusPending {
		return repository.ErrNotPending
	}
	track.Status = model.TrackStatusCompleted
	track.AudioURL = audioURL
	return nil
}

func (f *fakeTrackRepo) MarkTrackFailed(trackID int64, reason string) error {
	track, ok := f.tracks[trackID]
	if !ok || track.Status != model.TrackStatusPending {
		return repository.ErrNotPending
	}
	track.Status = model.TrackStatusFailed
	track.FailureReason = reason
	return nil
}

func (f *fakeTrackRepo) DeleteTrack(trackID, userID int64) error {
	track, ok := f.tracks[trackID]
	if !ok || track.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.tracks, trackID)
	return nil
}

type fakeQuotaRepo struct {
	counts       map[int64]int
	max          int
	incrementErr error
}

func newFakeQuotaRepo(max int) *fakeQuotaRepo {
	return &fakeQuotaRepo{counts: make(map[int64]int), max: max}
}

func (f *fakeQuotaRepo) GetOrCreate(ownerID int64) (*model.Quota, error) {
	return &model.Quota{OwnerID: ownerID, TracksCount: f.counts[ownerID], MaxTracks: f.max}, nil
}

func (f *fakeQuotaRepo) IncrementCompleted(ownerID int64) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if f.counts[ownerID] >= f.max {
		return repository.ErrQuotaCeiling
	}
	f.counts[ownerID]++
	return nil
}

// scriptedSynth returns whatever the script says for each attempt.
type scriptedSynth struct {
	attempts int
	script   func(attempt int) (ProviderResponse, error)
}

func (s *scriptedSynth) Synthesize(ctx context.Context, text string) (ProviderResponse, error) {
	s.attempts++
	return s.script(s.attempts)
}

type testEnv struct {
	users  *fakeUserRepo
	tracks *fakeTrackRepo
	quotas *fakeQuotaRepo
	synth  *scriptedSynth
	orch   *Orchestrator
}

func newTestEnv(t *testing.T, maxRetries int, script func(attempt int) (ProviderResponse, error)) *testEnv {
	t.Helper()

	users := &fakeUserRepo{users: map[string]*model.User{
		"jay@example.com": {ID: 1, Email: "jay@example.com"},
	}}
	tracks := newFakeTrackRepo()
	quotas := newFakeQuotaRepo(5)
	synth := &scriptedSynth{script: script}

	policy := BackoffPolicy{MaxRetries: maxRetries, Base: time.Millisecond, Cap: 2 * time.Millisecond}
	return &testEnv{
		users:  users,
		tracks: tracks,
		quotas: quotas,
		synth:  synth,
		orch:   NewOrchestrator(synth, users, tracks, quotas, nil, policy),
	}
}

func alwaysRawAudio(attempt int) (ProviderResponse, error) {
	return RawAudio{Bytes: []byte("RIFF....WAVE"), Mime: "audio/wav"}, nil
}

func TestGenerateSuccess(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
		Title:          "Chill",
	})
	require.NoError(t, err)

	assert.Equal(t, "Chill", result.Title)
	assert.Equal(t, "unknown", result.Genre)
	assert.True(t, strings.HasPrefix(result.AudioURL, "data:audio/wav;base64,"), "audioUrl %q", result.AudioURL)

	track := env.tracks.tracks[result.TrackID]
	require.NotNil(t, track)
	assert.Equal(t, model.TrackStatusCompleted, track.Status)
	assert.Equal(t, result.AudioURL, track.AudioURL)
	assert.Equal(t, 1, env.quotas.counts[1])
	assert.Equal(t, 1, env.synth.attempts)
}

func TestGenerateDefaultsTitleAndGenre(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})
	require.NoError(t, err)
	assert.Equal(t, "Untitled Track", result.Title)
	assert.Equal(t, "unknown", result.Genre)
}

func TestGenerateUnauthenticated(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)

	_, err := env.orch.Generate(context.Background(), Request{Prompt: "lofi beat"})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindUnauthenticated, genErr.Kind)
	assert.Empty(t, env.tracks.tracks)
}

func TestGenerateAccountNotFound(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "ghost@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindAccountNotFound, genErr.Kind)
	assert.Empty(t, env.tracks.tracks)
	assert.Equal(t, 0, env.synth.attempts)
}

func TestGenerateQuotaExceeded(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)
	env.quotas.counts[1] = 5

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindQuotaExceeded, genErr.Kind)
	assert.Contains(t, genErr.Message, "reached your limit")
	assert.Empty(t, env.tracks.tracks, "no track row on quota rejection")
	assert.Equal(t, 0, env.synth.attempts)
}

func TestGenerateRecordCreationFailed(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)
	env.tracks.createErr = errors.New("insert failed")

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindRecordCreationFailed, genErr.Kind)
	assert.Equal(t, 0, env.synth.attempts, "no provider call when insert fails")
}

func TestGenerateTransientExhaustion(t *testing.T) {
	maxRetries := 2
	env := newTestEnv(t, maxRetries, func(attempt int) (ProviderResponse, error) {
		return nil, &ProviderError{StatusCode: 503, Message: "Service Unavailable"}
	})

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindProviderUnavailable, genErr.Kind)
	assert.Equal(t, maxRetries+1, env.synth.attempts)

	require.Len(t, env.tracks.tracks, 1)
	track := env.tracks.tracks[1]
	assert.Equal(t, model.TrackStatusFailed, track.Status)
	assert.Contains(t, track.FailureReason, "temporarily unavailable")
	assert.Equal(t, 0, env.quotas.counts[1], "no increment on failure")
}

func TestGenerateNonTransientSingleAttempt(t *testing.T) {
	env := newTestEnv(t, 5, func(attempt int) (ProviderResponse, error) {
		return nil, &ProviderError{StatusCode: 400, Message: "bad request"}
	})

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindProviderUnavailable, genErr.Kind)
	assert.Equal(t, 1, env.synth.attempts)
	assert.Equal(t, model.TrackStatusFailed, env.tracks.tracks[1].Status)
}

func TestGenerateTimeoutReason(t *testing.T) {
	env := newTestEnv(t, 1, func(attempt int) (ProviderResponse, error) {
		return nil, context.DeadlineExceeded
	})

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindProviderUnavailable, genErr.Kind)
	assert.Contains(t, env.tracks.tracks[1].FailureReason, "timed out")
}

func TestGenerateInvalidProviderResponse(t *testing.T) {
	env := newTestEnv(t, 5, func(attempt int) (ProviderResponse, error) {
		return ErrorPayload{Message: "Server returned HTML instead of audio data."}, nil
	})

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindInvalidResponse, genErr.Kind)
	assert.Equal(t, 1, env.synth.attempts, "error payloads are not retried")

	track := env.tracks.tracks[1]
	assert.Equal(t, model.TrackStatusFailed, track.Status)
	assert.Equal(t, "Invalid response from AI service", track.FailureReason)
	assert.Equal(t, 0, env.quotas.counts[1])
}

func TestGenerateEncodedAudio(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("RIFF"))
	env := newTestEnv(t, 5, func(attempt int) (ProviderResponse, error) {
		return EncodedAudio{Base64: b64}, nil
	})

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})
	require.NoError(t, err)
	assert.Equal(t, "data:audio/wav;base64,"+b64, result.AudioURL)
}

func TestGenerateMalformedBase64(t *testing.T) {
	env := newTestEnv(t, 5, func(attempt int) (ProviderResponse, error) {
		return EncodedAudio{Base64: "%%not-base64%%"}, nil
	})

	_, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindInvalidResponse, genErr.Kind)
	assert.Equal(t, model.TrackStatusFailed, env.tracks.tracks[1].Status)
}

func TestGenerateRemoteAudioURL(t *testing.T) {
	env := newTestEnv(t, 5, func(attempt int) (ProviderResponse, error) {
		return RemoteAudio{URL: "https://cdn.example.com/clip.wav"}, nil
	})

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/clip.wav", result.AudioURL)
	assert.Equal(t, model.TrackStatusCompleted, env.tracks.tracks[1].Status)
}

func TestGenerateSucceedsDespiteBookkeepingFailures(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)
	env.tracks.completedErr = errors.New("update failed")
	env.quotas.incrementErr = errors.New("increment failed")

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})
	require.NoError(t, err, "audio already in hand must reach the caller")
	assert.True(t, strings.HasPrefix(result.AudioURL, "data:audio/wav;base64,"))
	assert.Equal(t, 0, env.quotas.counts[1])
}

func TestGenerateTwiceCreatesIndependentTracks(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)

	req := Request{PrincipalEmail: "jay@example.com", Prompt: "lofi beat", Title: "Chill"}

	first, err := env.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := env.orch.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.TrackID, second.TrackID)
	assert.Len(t, env.tracks.tracks, 2)
	assert.Equal(t, 2, env.quotas.counts[1])
}

func TestGenerateUsesDescriptionInSynthesisText(t *testing.T) {
	var seen string
	synth := &scriptedSynth{script: alwaysRawAudio}
	users := &fakeUserRepo{users: map[string]*model.User{
		"jay@example.com": {ID: 1, Email: "jay@example.com"},
	}}
	tracks := newFakeTrackRepo()
	quotas := newFakeQuotaRepo(5)

	recorder := synthFunc(func(ctx context.Context, text string) (ProviderResponse, error) {
		seen = text
		return synth.Synthesize(ctx, text)
	})

	orch := NewOrchestrator(recorder, users, tracks, quotas, nil, BackoffPolicy{MaxRetries: 1, Base: time.Millisecond, Cap: time.Millisecond})

	_, err := orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
		Description:    "with rain sounds",
	})
	require.NoError(t, err)
	assert.Equal(t, "lofi beat. with rain sounds", seen)
}

// synthFunc adapts a function to the Synthesizer interface.
type synthFunc func(ctx context.Context, text string) (ProviderResponse, error)

func (f synthFunc) Synthesize(ctx context.Context, text string) (ProviderResponse, error) {
	return f(ctx, text)
}

// fakeStore records uploads and can be told to fail.
type fakeStore struct {
	fail    bool
	uploads int
}

func (f *fakeStore) UploadAudio(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if f.fail {
		return "", errors.New("store unavailable")
	}
	f.uploads++
	return "https://cdn.example.com/" + objectName, nil
}

func TestGenerateUploadsToStore(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)
	store := &fakeStore{}
	env.orch.store = store

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.uploads)
	assert.True(t, strings.HasPrefix(result.AudioURL, "https://cdn.example.com/generated/"))
	assert.True(t, strings.HasSuffix(result.AudioURL, ".wav"))
}

func TestGenerateStoreFailureFallsBackToDataURI(t *testing.T) {
	env := newTestEnv(t, 5, alwaysRawAudio)
	env.orch.store = &fakeStore{fail: true}

	result, err := env.orch.Generate(context.Background(), Request{
		PrincipalEmail: "jay@example.com",
		Prompt:         "lofi beat",
	})
	require.NoError(t, err, "storage failure must not discard obtained audio")
	assert.True(t, strings.HasPrefix(result.AudioURL, "data:audio/wav;base64,"))
	assert.Equal(t, model.TrackStatusCompleted, env.tracks.tracks[1].Status)
}
