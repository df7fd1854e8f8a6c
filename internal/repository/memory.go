package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hray3182/PingMe/internal/models"
)

// MemoryReminderRepository keeps reminders in process memory. It backs
// STORAGE_DRIVER=memory and the service tests.
type MemoryReminderRepository struct {
	mu        sync.Mutex
	seq       int64
	reminders map[int64]models.Reminder
	now       func() time.Time
}

func NewMemoryReminderRepository() *MemoryReminderRepository {
	return &MemoryReminderRepository{
		reminders: make(map[int64]models.Reminder),
		now:       time.Now,
	}
}

func copyReminder(r models.Reminder) *models.Reminder {
	if r.MessageID != nil {
		id := *r.MessageID
		r.MessageID = &id
	}
	if r.RecurrenceAnchor != nil {
		at := *r.RecurrenceAnchor
		r.RecurrenceAnchor = &at
	}
	return &r
}

func (r *MemoryReminderRepository) Create(_ context.Context, reminder *models.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	reminder.ID = r.seq
	reminder.CreatedAt = r.now()
	reminder.UpdatedAt = reminder.CreatedAt
	r.reminders[reminder.ID] = *copyReminder(*reminder)
	return nil
}

func (r *MemoryReminderRepository) GetByID(_ context.Context, id int64) (*models.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyReminder(reminder), nil
}

func (r *MemoryReminderRepository) Update(_ context.Context, id int64, fn func(*models.Reminder) error) (*models.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reminders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	reminder := copyReminder(stored)
	if err := fn(reminder); err != nil {
		return nil, err
	}
	reminder.UpdatedAt = r.now()
	r.reminders[id] = *copyReminder(*reminder)
	return reminder, nil
}

func (r *MemoryReminderRepository) ListActiveByUser(_ context.Context, userID int64, offset, limit int) ([]*models.Reminder, error) {
	list := r.filter(func(m models.Reminder) bool { return m.UserID == userID && m.Pending() })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (r *MemoryReminderRepository) ListPending(_ context.Context) ([]*models.Reminder, error) {
	return r.filter(func(m models.Reminder) bool { return m.Pending() }), nil
}

func (r *MemoryReminderRepository) filter(keep func(models.Reminder) bool) []*models.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Reminder
	for _, m := range r.reminders {
		if keep(m) {
			out = append(out, copyReminder(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RemindAt.Equal(out[j].RemindAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RemindAt.Before(out[j].RemindAt)
	})
	return out
}

// MemoryUserSettingsRepository is the in-process counterpart of UserSettingsRepository
type MemoryUserSettingsRepository struct {
	mu       sync.Mutex
	seq      int64
	settings map[int64]models.UserSettings
}

func NewMemoryUserSettingsRepository() *MemoryUserSettingsRepository {
	return &MemoryUserSettingsRepository{settings: make(map[int64]models.UserSettings)}
}

func (r *MemoryUserSettingsRepository) GetOrCreate(_ context.Context, userID int64) (*models.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreateLocked(userID)
	return &s, nil
}

func (r *MemoryUserSettingsRepository) GetByUserID(_ context.Context, userID int64) (*models.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *MemoryUserSettingsRepository) UpdateSnoozeMinutes(_ context.Context, userID int64, minutes int) (*models.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.getOrCreateLocked(userID)
	s.SnoozeMinutes = minutes
	s.UpdatedAt = time.Now()
	r.settings[userID] = s
	return &s, nil
}

func (r *MemoryUserSettingsRepository) UpdateTimezone(_ context.Context, userID int64, timezone string) (*models.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.getOrCreateLocked(userID)
	s.Timezone = timezone
	s.UpdatedAt = time.Now()
	r.settings[userID] = s
	return &s, nil
}

func (r *MemoryUserSettingsRepository) getOrCreateLocked(userID int64) models.UserSettings {
	if s, ok := r.settings[userID]; ok {
		return s
	}
	r.seq++
	s := *models.NewDefaultUserSettings(userID)
	s.ID = r.seq
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	r.settings[userID] = s
	return s
}

// MemoryUserRepository is the in-process counterpart of UserRepository
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]models.User)}
}

func (r *MemoryUserRepository) Upsert(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.users[user.UserID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.UserID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, userID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}
