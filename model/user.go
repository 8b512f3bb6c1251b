package model

import (
	"database/sql"
	"time"
)

// User represents an account in the system. Accounts are normally
// created by the identity provider callback, so PasswordHash and the
// provider columns may each be empty depending on how the account
// was registered.
type User struct {
	ID                int64          `json:"id"`
	Email             string         `json:"email"`
	FullName          sql.NullString `json:"fullName,omitempty"`
	Provider          sql.NullString `json:"provider,omitempty"` // google, spotify, github, local
	ProviderAccountID sql.NullString `json:"-"`
	PasswordHash      string         `json:"-"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}
