// Package dialog keeps the follow-up questions the bot is waiting on, one
// per conversation, with a TTL.
package dialog

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/PingMe/internal/models"
)

// DefaultTTL is how long an unanswered dialog is kept
const DefaultTTL = 30 * time.Minute

type Store struct {
	mu      sync.Mutex
	dialogs map[models.DialogKey]models.PendingDialog
	ttl     time.Duration
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		dialogs: make(map[models.DialogKey]models.PendingDialog),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores d under d.Key, assigning a fresh token and expiry. The dialog
// it replaced, if any, is returned so the caller can undo its side effects.
func (s *Store) Put(d models.PendingDialog) (models.PendingDialog, *models.PendingDialog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.Token = uuid.NewString()
	d.ExpiresAt = s.now().Add(s.ttl)

	var replaced *models.PendingDialog
	if old, ok := s.dialogs[d.Key]; ok {
		replaced = &old
	}
	s.dialogs[d.Key] = d
	return d, replaced
}

// Get returns the live dialog for key
func (s *Store) Get(key models.DialogKey) (models.PendingDialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dialogs[key]
	if !ok || s.now().After(d.ExpiresAt) {
		return models.PendingDialog{}, false
	}
	return d, true
}

// TakeToken removes and returns the dialog for key if its token matches.
// Buttons from an older dialog carry a different token and are rejected.
func (s *Store) TakeToken(key models.DialogKey, token string) (models.PendingDialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dialogs[key]
	if !ok || d.Token != token || s.now().After(d.ExpiresAt) {
		return models.PendingDialog{}, false
	}
	delete(s.dialogs, key)
	return d, true
}

// Delete removes the dialog for key, expired or not, and returns it
func (s *Store) Delete(key models.DialogKey) (models.PendingDialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dialogs[key]
	if ok {
		delete(s.dialogs, key)
	}
	return d, ok
}

// Evict drops every expired dialog and returns them
func (s *Store) Evict() []models.PendingDialog {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []models.PendingDialog
	for key, d := range s.dialogs {
		if now.After(d.ExpiresAt) {
			expired = append(expired, d)
			delete(s.dialogs, key)
		}
	}
	return expired
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}
