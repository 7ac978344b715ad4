// Package blobstore reads and writes whole map blobs in named storage areas.
//
// A blob is one JSON object stored as a single string under the map's name:
//
//	{"<key>": {"value": <any JSON>, "expiry": <epoch milliseconds>}}
//
// expiry is omitted for entries written without a TTL.
package blobstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leonardcser/persisted-map/internal/logger"
	"github.com/leonardcser/persisted-map/internal/storage"
)

// Backend names registered by the binaries.
const (
	Session = "session"
	Durable = "durable"
)

var (
	ErrUnsupportedBackend = errors.New("blobstore: unsupported backend")
	ErrStorageWriteFailed = errors.New("blobstore: storage write failed")
	ErrStorageReadFailed  = errors.New("blobstore: storage read failed")
)

// Entry is one stored value plus its optional absolute expiry.
type Entry struct {
	Value json.RawMessage `json:"value"`
	// Expiry is epoch milliseconds; nil means the entry never expires.
	// Blobs written by other clients may carry fractional milliseconds.
	Expiry *float64 `json:"expiry,omitempty"`
}

// Blob maps keys to entries. It is the sole persisted representation of a map.
type Blob map[string]Entry

// Backends maps backend names to the areas that serve them.
type Backends map[string]storage.Area

// Adapter gives uniform blob access over a fixed set of backends.
type Adapter struct {
	backends Backends
}

// New returns an Adapter over a copy of backends.
func New(backends Backends) *Adapter {
	b := make(Backends, len(backends))
	for name, area := range backends {
		b[name] = area
	}
	return &Adapter{backends: b}
}

func (a *Adapter) area(backend string) (storage.Area, bool) {
	if a == nil {
		return nil, false
	}
	area, ok := a.backends[backend]
	return area, ok && area != nil
}

// IsSupported reports whether backend is registered and usable right now.
func (a *Adapter) IsSupported(backend string) bool {
	area, ok := a.area(backend)
	if !ok {
		return false
	}
	if p, ok := area.(storage.Prober); ok {
		return p.Available()
	}
	return true
}

// Retrieve loads the blob stored under key. A missing slot, a read failure or
// data that does not decode as a blob all yield an empty blob.
func (a *Adapter) Retrieve(backend, key string) Blob {
	blob, err := a.Load(backend, key)
	if err != nil {
		logger.Warnf("retrieve %s/%q: %v", backend, key, err)
		return Blob{}
	}
	return blob
}

// Load is Retrieve for callers about to write the blob back: a missing slot
// or undecodable data still yield an empty blob, but a read failure is
// returned wrapped in ErrStorageReadFailed so the stored blob is not
// overwritten with a partial one.
func (a *Adapter) Load(backend, key string) (Blob, error) {
	area, ok := a.area(backend)
	if !ok {
		return Blob{}, nil
	}
	raw, found, err := area.GetItem(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%q: %w", ErrStorageReadFailed, backend, key, err)
	}
	if !found {
		return Blob{}, nil
	}
	var blob Blob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		logger.Warnf("retrieve %s/%q: discarding undecodable blob: %v", backend, key, err)
		return Blob{}, nil
	}
	if blob == nil {
		// "null" decodes to a nil map.
		return Blob{}, nil
	}
	return blob, nil
}

// Store serializes blob and overwrites the slot for key.
func (a *Adapter) Store(backend, key string, blob Blob) error {
	area, ok := a.area(backend)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
	if blob == nil {
		blob = Blob{}
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrStorageWriteFailed, key, err)
	}
	if err := area.SetItem(key, string(data)); err != nil {
		return fmt.Errorf("%w: %s/%q: %w", ErrStorageWriteFailed, backend, key, err)
	}
	return nil
}

// Remove deletes the slot for key outright.
func (a *Adapter) Remove(backend, key string) error {
	area, ok := a.area(backend)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
	if err := area.RemoveItem(key); err != nil {
		return fmt.Errorf("%w: %s/%q: %w", ErrStorageWriteFailed, backend, key, err)
	}
	return nil
}
