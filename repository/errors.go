package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrDuplicateUser is returned when an insert collides with the
	// unique email constraint.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrQuotaCeiling is returned when an increment would push a
	// quota past its ceiling.
	ErrQuotaCeiling = errors.New("quota ceiling reached")

	// ErrNotPending is returned when a terminal-state update matched
	// no pending row, meaning the track already reached a terminal
	// state.
	ErrNotPending = errors.New("track is not pending")
)

// isDuplicateEntry reports whether err is a MySQL duplicate-key error.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
