package storage

import (
	"sort"
	"sync"
)

// Memory is a process-scoped Area. Its contents live as long as the value
// does, which makes it the session backend and the fake used in tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
	quota int
	used  int
}

// NewMemory returns an empty Memory area. A positive quota caps the total
// number of bytes (keys plus values) the area may hold.
func NewMemory(quota int) *Memory {
	return &Memory{items: make(map[string]string), quota: quota}
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used + len(key) + len(value)
	if prev, ok := m.items[key]; ok {
		used -= len(key) + len(prev)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.items[key] = value
	m.used = used
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.items[key]; ok {
		m.used -= len(key) + len(prev)
		delete(m.items, key)
	}
	return nil
}

// Keys lists the occupied slots in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset drops every slot, like the end of a browsing session.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]string)
	m.used = 0
}
