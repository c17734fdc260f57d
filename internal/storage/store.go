// Package storage persists the small amount of client state that survives a
// restart: the local peer id, the contact list and the last presence value.
package storage

import (
	"errors"
	"sync"
)

// Well-known keys.
const (
	KeyPeerID   = "peer_id"
	KeyContacts = "contacts"
	KeyPresence = "presence"
)

var ErrClosed = errors.New("store closed")

// Store is an opaque key-value store. Values are strings; callers own the
// encoding of anything structured.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Memory is an in-process Store. Useful for tests and for running without a
// data directory.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
