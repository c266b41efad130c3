package notify

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"

	"cargoline/internal/types"
)

var ErrNotFound = errors.New("notification not found")

// Store keeps created notifications in memory. Notifications are
// client-visible state: they are appended before any delivery attempt.
type Store struct {
	mu   sync.RWMutex
	byID map[types.ID]*Notification
}

func NewStore() *Store {
	return &Store{byID: make(map[types.ID]*Notification)}
}

func (s *Store) Append(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := n
	s.byID[n.ID] = &cp
}

// ListForRecipient returns direct notifications for uid plus broadcasts
// addressed to role, newest first.
func (s *Store) ListForRecipient(uid types.ID, role types.Role) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.byID {
		if n.addressedTo(uid, role) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkRead flips the read flag. Only the addressee may acknowledge.
func (s *Store) MarkRead(id, uid types.ID, role types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || !n.addressedTo(uid, role) {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

func (n *Notification) addressedTo(uid types.ID, role types.Role) bool {
	if n.Recipient != nil {
		return *n.Recipient == uid
	}
	for _, r := range n.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
