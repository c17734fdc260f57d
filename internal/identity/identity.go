// Package identity owns the local peer identifier used as the rendezvous
// address with the transport provider.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/nikelwish/p2p-service/internal/storage"
)

const (
	MaxIDLength       = 64
	GeneratedIDLength = 16
)

var ErrInvalidID = errors.New("invalid peer id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9]+(?:[ _-][A-Za-z0-9]+)*$`)

// Store reads and writes the local id.
type Store struct {
	kv storage.Store
}

func NewStore(kv storage.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted id, or a freshly generated one that has been
// persisted before returning.
func (s *Store) Load() (string, error) {
	id, ok, err := s.kv.Get(storage.KeyPeerID)
	if err != nil {
		return "", fmt.Errorf("read peer id: %w", err)
	}
	if ok && Validate(id) == nil {
		return id, nil
	}
	return s.Regenerate()
}

// Regenerate replaces the stored id with a new random one.
func (s *Store) Regenerate() (string, error) {
	id := Generate()
	if err := s.kv.Set(storage.KeyPeerID, id); err != nil {
		return "", fmt.Errorf("persist peer id: %w", err)
	}
	return id, nil
}

// Set persists a user-chosen id.
func (s *Store) Set(id string) error {
	if err := Validate(id); err != nil {
		return err
	}
	if err := s.kv.Set(storage.KeyPeerID, id); err != nil {
		return fmt.Errorf("persist peer id: %w", err)
	}
	return nil
}

// Generate returns a random alphanumeric token.
func Generate() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return token[:GeneratedIDLength]
}

func Validate(id string) error {
	if id == "" || len(id) > MaxIDLength || !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
