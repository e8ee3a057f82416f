package storage

import "errors"

var (
	// ErrDuplicateAccount is returned when the email uniqueness constraint
	// rejects an insert.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrNotFound covers lookups and updates that match no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOrExpiredToken is returned when a reset token is unknown,
	// already consumed, or past its expiry.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
