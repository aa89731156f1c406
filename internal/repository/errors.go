package repository

import "errors"

var (
	// ErrDuplicate maps a uniqueness violation so callers can treat it as
	// "entry already exists, fetch it" instead of a hard failure.
	ErrDuplicate = errors.New("duplicate row")

	// ErrVersionMismatch signals a lock_version compare-and-swap miss: some
	// other writer committed first and the caller must refetch.
	ErrVersionMismatch = errors.New("lock version mismatch")
)
