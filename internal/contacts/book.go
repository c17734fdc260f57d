// Package contacts is the persisted address book. Contacts are trusted peers
// whose inbound requests are accepted without a prompt.
package contacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nikelwish/p2p-service/internal/storage"
)

var (
	ErrNotFound = errors.New("contact not found")
	ErrEmptyID  = errors.New("contact peer id is empty")
)

type Contact struct {
	PeerID      string    `json:"peerId"`
	DisplayName string    `json:"displayName"`
	LastSeenAt  time.Time `json:"lastSeenAt,omitzero"`
}

// Name returns the display name, falling back to the peer id.
func (c Contact) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.PeerID
}

// Book caches the contact list in memory and writes the whole list back to
// the store after every change.
type Book struct {
	kv storage.Store

	mu       sync.RWMutex
	contacts map[string]Contact
}

// Load reads the serialized list from kv.
func Load(kv storage.Store) (*Book, error) {
	b := &Book{kv: kv, contacts: make(map[string]Contact)}

	raw, ok, err := kv.Get(storage.KeyContacts)
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	if !ok || raw == "" {
		return b, nil
	}

	var list []Contact
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	for _, c := range list {
		if c.PeerID != "" {
			b.contacts[c.PeerID] = c
		}
	}
	return b, nil
}

func (b *Book) IsContact(peerID string) bool {
	b.mu.RLock()
	_, ok := b.contacts[peerID]
	b.mu.RUnlock()
	return ok
}

func (b *Book) Get(peerID string) (Contact, bool) {
	b.mu.RLock()
	c, ok := b.contacts[peerID]
	b.mu.RUnlock()
	return c, ok
}

// List returns contacts sorted by display name.
func (b *Book) List() []Contact {
	b.mu.RLock()
	list := make([]Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		list = append(list, c)
	}
	b.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Name() == list[j].Name() {
			return list[i].PeerID < list[j].PeerID
		}
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Add creates or updates a contact. An empty name keeps the existing one.
func (b *Book) Add(peerID, displayName string) (Contact, error) {
	if peerID == "" {
		return Contact{}, ErrEmptyID
	}

	b.mu.Lock()
	c, ok := b.contacts[peerID]
	if !ok {
		c = Contact{PeerID: peerID}
	}
	if displayName != "" {
		c.DisplayName = displayName
	}
	b.contacts[peerID] = c
	err := b.saveLocked()
	b.mu.Unlock()

	return c, err
}

func (b *Book) Rename(peerID, displayName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.contacts[peerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, peerID)
	}
	c.DisplayName = displayName
	b.contacts[peerID] = c
	return b.saveLocked()
}

func (b *Book) Remove(peerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.contacts[peerID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, peerID)
	}
	delete(b.contacts, peerID)
	return b.saveLocked()
}

// Touch records that a session with peerID was active at t. Unknown peers
// are ignored.
func (b *Book) Touch(peerID string, t time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.contacts[peerID]
	if !ok {
		return nil
	}
	c.LastSeenAt = t
	b.contacts[peerID] = c
	return b.saveLocked()
}

func (b *Book) saveLocked() error {
	list := make([]Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PeerID < list[j].PeerID })

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	if err := b.kv.Set(storage.KeyContacts, string(data)); err != nil {
		return fmt.Errorf("persist contacts: %w", err)
	}
	return nil
}
