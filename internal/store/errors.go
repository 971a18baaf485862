package store

import "errors"

var (
	// ErrConflict covers overlapping bookings and illegal status changes.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyConflict means a replayed booking id carries different content.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
