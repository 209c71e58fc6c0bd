// Package store persists companion state as string key-value pairs, the way the
// phone host exposes local storage.
package store

import (
	"errors"
	"sync"

	"github.com/srg/textwatch/internal/protocol"
)

// OptionsKey is the key holding the serialized watchface settings.
const OptionsKey = "options"

// ErrEmptyKey is returned for operations on an empty key.
var ErrEmptyKey = errors.New("empty key")

// Store is a persistent string key-value store.
type Store interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
}

// LoadOptions returns the persisted settings text, or "{}" when nothing usable
// is stored.
func LoadOptions(s Store) (string, error) {
	v, ok, err := s.GetItem(OptionsKey)
	if err != nil {
		return protocol.DefaultSettingsText, err
	}
	if !ok || v == "" {
		return protocol.DefaultSettingsText, nil
	}
	return v, nil
}

// SaveOptions persists the settings text as-is.
func SaveOptions(s Store, text string) error {
	return s.SetItem(OptionsKey, text)
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItem(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}
