package storage

import "errors"

// Area is a named-slot string store: the host primitive a persisted map is
// layered on. Slots are addressed by key and hold one opaque string each.
// Implementations must be safe for concurrent use by multiple goroutines.
type Area interface {
	// GetItem returns the value stored under key and whether the slot exists.
	GetItem(key string) (string, bool, error)
	// SetItem overwrites the slot for key.
	SetItem(key, value string) error
	// RemoveItem deletes the slot for key. Removing an absent slot is not an error.
	RemoveItem(key string) error
}

// Prober is implemented by areas whose availability depends on the
// environment (an open database, a reachable daemon).
type Prober interface {
	Available() bool
}

var (
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	ErrClosed        = errors.New("storage: closed")
)
