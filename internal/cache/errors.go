package cache

import "errors"

var (
	// ErrClosed is returned by every call made after Close
	ErrClosed = errors.New("cache: store is closed")

	// ErrNotFound is returned when a mutation targets a record that is not cached
	ErrNotFound = errors.New("cache: record not found")

	// ErrNotPersisted fails operations queued behind a create that the
	// service rejected; the record they target never received a real id
	ErrNotPersisted = errors.New("cache: record was never persisted")

	// ErrMissingID is returned for records that carry no usable id
	ErrMissingID = errors.New("cache: record has no id")
)
