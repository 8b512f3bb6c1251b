package model

import "time"

// Quota is the per-user generation allowance. One row per user,
// created lazily on the first quota check. TracksCount only ever
// increases, and only after a generation completes.
type Quota struct {
	ID          int64     `gorm:"primaryKey" json:"-"`
	OwnerID     int64     `gorm:"column:owner_id;uniqueIndex;not null" json:"ownerId"`
	TracksCount int       `gorm:"column:tracks_count;not null;default:0" json:"tracksCount"`
	MaxTracks   int       `gorm:"column:max_tracks;not null" json:"maxTracks"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName keeps the table name in line with the hand-written schema.
func (Quota) TableName() string {
	return "quotas"
}

// Remaining reports how many successful generations the owner has left.
func (q *Quota) Remaining() int {
	left := q.MaxTracks - q.TracksCount
	if left < 0 {
		return 0
	}
	return left
}
