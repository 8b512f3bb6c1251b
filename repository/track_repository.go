package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cruz-jay/beatbot/model"
)

// TrackRepository defines the interface for track data operations.
//
// MarkTrackCompleted and MarkTrackFailed only match rows still in the
// pending state, so a track that already reached a terminal state can
// never regress.
type TrackRepository interface {
	CreateTrack(track *model.Track) (int64, error)
	GetTrackByID(id int64) (*model.Track, error)
	GetTracksByUserID(userID int64) ([]*model.Track, error)
	MarkTrackCompleted(trackID int64, audioURL string) error
	MarkTrackFailed(trackID int64, reason string) error
	DeleteTrack(trackID, userID int64) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{DB: db}
}

// CreateTrack inserts a new track in the pending state.
func (r *mysqlTrackRepository) CreateTrack(track *model.Track) (int64, error) {
	query := `INSERT INTO tracks (user_id, title, prompt, genre, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateTrack: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.Exec(track.UserID, track.Title, track.Prompt, track.Genre, model.TrackStatusPending, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateTrack: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateTrack: %w", err)
	}
	return id, nil
}

// GetTrackByID retrieves a track by its ID. Returns (nil, nil) when
// no track matches.
func (r *mysqlTrackRepository) GetTrackByID(id int64) (*model.Track, error) {
	query := `SELECT id, user_id, title, prompt, genre, status, audio_url, failure_reason, created_at, updated_at
	           FROM tracks WHERE id = ?`
	row := r.DB.QueryRow(query, id)

	track, err := scanTrack(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Track not found
		}
		return nil, fmt.Errorf("failed to scan track by ID %d: %w", id, err)
	}
	return track, nil
}

// GetTracksByUserID retrieves all of a user's tracks, newest first.
func (r *mysqlTrackRepository) GetTracksByUserID(userID int64) ([]*model.Track, error) {
	query := `SELECT id, user_id, title, prompt, genre, status, audio_url, failure_reason, created_at, updated_at
	           FROM tracks WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track in GetTracksByUserID: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetTracksByUserID: %w", err)
	}

	return tracks, nil
}

// MarkTrackCompleted transitions a pending track to completed and
// records its audio reference.
func (r *mysqlTrackRepository) MarkTrackCompleted(trackID int64, audioURL string) error {
	query := `UPDATE tracks SET status = ?, audio_url = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.DB.Exec(query, model.TrackStatusCompleted, audioURL, time.Now(), trackID, model.TrackStatusPending)
	if err != nil {
		return fmt.Errorf("failed to execute MarkTrackCompleted for track ID %d: %w", trackID, err)
	}
	return checkPendingMatched(res)
}

// MarkTrackFailed transitions a pending track to failed with a reason.
func (r *mysqlTrackRepository) MarkTrackFailed(trackID int64, reason string) error {
	if reason == "" {
		reason = "Unknown error"
	}
	query := `UPDATE tracks SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.DB.Exec(query, model.TrackStatusFailed, reason, time.Now(), trackID, model.TrackStatusPending)
	if err != nil {
		return fmt.Errorf("failed to execute MarkTrackFailed for track ID %d: %w", trackID, err)
	}
	return checkPendingMatched(res)
}

// DeleteTrack removes a track owned by the given user.
func (r *mysqlTrackRepository) DeleteTrack(trackID, userID int64) error {
	query := `DELETE FROM tracks WHERE id = ? AND user_id = ?`
	res, err := r.DB.Exec(query, trackID, userID)
	if err != nil {
		return fmt.Errorf("failed to execute DeleteTrack for track ID %d: %w", trackID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for DeleteTrack: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func checkPendingMatched(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotPending
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(s scanner) (*model.Track, error) {
	track := &model.Track{}
	var genre, audioURL, failureReason sql.NullString
	err := s.Scan(&track.ID, &track.UserID, &track.Title, &track.Prompt, &genre, &track.Status, &audioURL, &failureReason, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	track.Genre = genre.String
	track.AudioURL = audioURL.String
	track.FailureReason = failureReason.String
	return track, nil
}
