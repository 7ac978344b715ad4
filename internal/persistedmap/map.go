// Package persistedmap provides a string-keyed map persisted as a single blob
// in a storage area, with optional per-entry expiry.
//
// A Map holds no data of its own. Every operation reads the whole blob from
// the area, and every mutation writes the whole blob back, so two Maps with the
// same name and backend observe each other's writes. Nothing serializes those
// read-modify-write cycles: when two writers interleave, the last full-blob
// write wins and the other writer's update is lost.
//
// Expiry is lazy. An expired entry stays in the blob, and is counted by Size
// and Keys, until Get reads it or Sweep is called. Expiry instants are stored
// in epoch milliseconds.
package persistedmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/leonardcser/persisted-map/internal/blobstore"
)

var (
	ErrInvalidArgument    = errors.New("persistedmap: invalid argument")
	ErrUnsupportedBackend = blobstore.ErrUnsupportedBackend
	ErrStorageWriteFailed = blobstore.ErrStorageWriteFailed
	ErrStorageReadFailed  = blobstore.ErrStorageReadFailed
)

// Options configures Create.
type Options struct {
	// Backend names the storage area. Default: blobstore.Durable.
	Backend string
	// DefaultTTL applies to Put. Zero means entries written by Put never expire;
	// negative values are honoured and yield already-expired entries.
	DefaultTTL time.Duration
	// Now is the clock used for expiry. Default: time.Now.
	Now func() time.Time
}

// Map is a view of one persisted blob. It is an immutable value; copying it
// yields another view of the same blob.
type Map struct {
	store      *blobstore.Adapter
	name       string
	backend    string
	defaultTTL time.Duration
	now        func() time.Time
}

// Create returns a Map named name in the backend selected by opts.
// It fails with ErrInvalidArgument when name is empty and with
// ErrUnsupportedBackend when the backend is unknown or unavailable.
func Create(store *blobstore.Adapter, name string, opts Options) (*Map, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: map name required", ErrInvalidArgument)
	}
	backend := opts.Backend
	if backend == "" {
		backend = blobstore.Durable
	}
	if !store.IsSupported(backend) {
		return nil, fmt.Errorf("%w: storage %q is not supported", ErrUnsupportedBackend, backend)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Map{
		store:      store,
		name:       name,
		backend:    backend,
		defaultTTL: opts.DefaultTTL,
		now:        now,
	}, nil
}

func (m *Map) Name() string              { return m.name }
func (m *Map) Backend() string           { return m.backend }
func (m *Map) DefaultTTL() time.Duration { return m.defaultTTL }

// Put stores value under key, expiring after the map's default TTL if set.
func (m *Map) Put(key string, value any) error {
	if m.defaultTTL == 0 {
		return m.put(key, value, nil)
	}
	return m.PutWithTTL(key, value, m.defaultTTL)
}

// PutWithTTL stores value under key, expiring ttl after now regardless of the
// map's default TTL. A positive ttl is rounded up to the next millisecond, so
// the entry never expires before now+ttl; a zero or negative ttl stores an
// entry that is already expired.
func (m *Map) PutWithTTL(key string, value any, ttl time.Duration) error {
	at := m.now().Add(ttl)
	ms := at.UnixMilli()
	if ttl > 0 && at.Nanosecond()%int(time.Millisecond) != 0 {
		ms++
	}
	expiry := float64(ms)
	return m.put(key, value, &expiry)
}

func (m *Map) put(key string, value any, expiry *float64) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: key %q is not valid UTF-8", ErrInvalidArgument, key)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: value for %q: %v", ErrInvalidArgument, key, err)
	}
	blob, err := m.store.Load(m.backend, m.name)
	if err != nil {
		return err
	}
	blob[key] = blobstore.Entry{Value: data, Expiry: expiry}
	return m.store.Store(m.backend, m.name, blob)
}

// Get returns the JSON encoding of the value stored under key. An expired
// entry is deleted from the blob and reported as absent, as is an entry with
// no value.
func (m *Map) Get(key string) (json.RawMessage, bool, error) {
	blob, err := m.store.Load(m.backend, m.name)
	if err != nil {
		return nil, false, err
	}
	entry, ok := blob[key]
	if !ok {
		return nil, false, nil
	}
	if m.expired(entry) {
		delete(blob, key)
		if err := m.store.Store(m.backend, m.name, blob); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if len(entry.Value) == 0 {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// GetAs decodes the value stored under key into a T.
func GetAs[T any](m *Map, key string) (T, bool, error) {
	var out T
	raw, ok, err := m.Get(key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("persistedmap: decode %q: %w", key, err)
	}
	return out, true, nil
}

// Remove deletes key. Removing an absent key writes nothing.
func (m *Map) Remove(key string) error {
	blob, err := m.store.Load(m.backend, m.name)
	if err != nil {
		return err
	}
	if _, ok := blob[key]; !ok {
		return nil
	}
	delete(blob, key)
	return m.store.Store(m.backend, m.name, blob)
}

// Clear deletes the whole blob from the storage area.
func (m *Map) Clear() error {
	return m.store.Remove(m.backend, m.name)
}

// Size counts the stored keys, including expired entries not yet read.
func (m *Map) Size() int {
	return len(m.store.Retrieve(m.backend, m.name))
}

// Keys lists the stored keys in sorted order, including expired entries not
// yet read.
func (m *Map) Keys() []string {
	blob := m.store.Retrieve(m.backend, m.name)
	keys := make([]string, 0, len(blob))
	for k := range blob {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LiveSize counts the entries that have not expired. It does not write.
func (m *Map) LiveSize() int {
	n := 0
	for _, entry := range m.store.Retrieve(m.backend, m.name) {
		if !m.expired(entry) {
			n++
		}
	}
	return n
}

// Sweep deletes every expired entry in a single write and reports how many
// were removed. It writes nothing when no entry has expired.
func (m *Map) Sweep() (int, error) {
	blob, err := m.store.Load(m.backend, m.name)
	if err != nil {
		return 0, err
	}
	removed := 0
	for k, entry := range blob {
		if m.expired(entry) {
			delete(blob, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := m.store.Store(m.backend, m.name, blob); err != nil {
		return 0, err
	}
	return removed, nil
}

// An entry is expired from its expiry instant onwards.
func (m *Map) expired(e blobstore.Entry) bool {
	if e.Expiry == nil {
		return false
	}
	now := m.now()
	ms := now.UnixMilli()
	frac := float64(now.Nanosecond()%int(time.Millisecond)) / float64(time.Millisecond)
	return *e.Expiry-float64(ms) <= frac
}
