package repository

import (
	"fmt"

	"github.com/cruz-jay/beatbot/model"

	"gorm.io/gorm"
)

// QuotaRepository defines the interface for quota data operations.
type QuotaRepository interface {
	// GetOrCreate returns the owner's quota record, creating it with a
	// zero count on first use.
	GetOrCreate(ownerID int64) (*model.Quota, error)

	// IncrementCompleted adds one completed generation to the owner's
	// count. The increment is guarded in SQL by the ceiling, so it can
	// never push tracks_count past max_tracks even under concurrent
	// requests; ErrQuotaCeiling is returned when the guard rejects it.
	IncrementCompleted(ownerID int64) error
}

// gormQuotaRepository implements QuotaRepository on the GORM
// connection. Quotas are a newer module and use GORM rather than the
// hand-written statements of the older repositories.
type gormQuotaRepository struct {
	db        *gorm.DB
	maxTracks int
}

// NewGormQuotaRepository creates a new gormQuotaRepository with the
// given per-user ceiling.
func NewGormQuotaRepository(db *gorm.DB, maxTracks int) QuotaRepository {
	return &gormQuotaRepository{db: db, maxTracks: maxTracks}
}

// GetOrCreate returns the quota row for ownerID, lazily creating one.
func (r *gormQuotaRepository) GetOrCreate(ownerID int64) (*model.Quota, error) {
	quota := &model.Quota{}
	err := r.db.
		Where(model.Quota{OwnerID: ownerID}).
		Attrs(model.Quota{TracksCount: 0, MaxTracks: r.maxTracks}).
		FirstOrCreate(quota).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create quota for owner %d: %w", ownerID, err)
	}
	return quota, nil
}

// IncrementCompleted atomically bumps tracks_count while it is still
// below the ceiling.
func (r *gormQuotaRepository) IncrementCompleted(ownerID int64) error {
	res := r.db.Model(&model.Quota{}).
		Where("owner_id = ? AND tracks_count < max_tracks", ownerID).
		UpdateColumn("tracks_count", gorm.Expr("tracks_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment quota for owner %d: %w", ownerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrQuotaCeiling
	}
	return nil
}
