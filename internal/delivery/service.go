// Package delivery drives a reminder from creation through delivery,
// re-prompts, snoozes, reschedules and confirmation.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/rs/zerolog"
)

const (
	// DefaultRepeatMinutes is the re-prompt interval for owners without settings
	DefaultRepeatMinutes = 15
	// DefaultSnoozeInterval is what the "snooze" button adds
	DefaultSnoozeInterval = time.Hour
	// MaxTextLength is the longest reminder text in characters
	MaxTextLength = 1000
)

type ReminderStore interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, id int64) (*models.Reminder, error)
	Update(ctx context.Context, id int64, fn func(*models.Reminder) error) (*models.Reminder, error)
	ListActiveByUser(ctx context.Context, userID int64, offset, limit int) ([]*models.Reminder, error)
	ListPending(ctx context.Context) ([]*models.Reminder, error)
}

type SettingsStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.UserSettings, error)
	GetByUserID(ctx context.Context, userID int64) (*models.UserSettings, error)
}

// Action is one inline button on a notification
type Action struct {
	Label string
	Data  string
}

// Notifier talks to the owner's chat. Message ids identify a sent
// notification so it can later be retracted or edited.
type Notifier interface {
	Send(ctx context.Context, ownerID int64, text string, actions [][]Action) (int, error)
	Retract(ctx context.Context, ownerID int64, messageID int) error
	Edit(ctx context.Context, ownerID int64, messageID int, text string, actions [][]Action) error
}

// Scheduler is the timer facility. At values are naive wall-clock times
// in tz.
type Scheduler interface {
	Schedule(reminderID int64, at time.Time, tz string)
	Cancel(reminderID int64)
	IsScheduled(reminderID int64) bool
	ScheduledAt(reminderID int64) (time.Time, bool)
	WithLock(reminderID int64, fn func() error) error
}

type Config struct {
	// RepeatFallbackMinutes is used when the owner has no settings row
	RepeatFallbackMinutes int
	SnoozeInterval        time.Duration
	DefaultTimezone       string
	Logger                zerolog.Logger
}

type Service struct {
	reminders ReminderStore
	settings  SettingsStore
	notifier  Notifier
	sched     Scheduler
	clock     clock.Clock
	cfg       Config
	log       zerolog.Logger

	// Reminders with a reschedule dialog open have no timer on purpose
	heldMu sync.Mutex
	held   map[int64]struct{}
}

func New(reminders ReminderStore, settings SettingsStore, notifier Notifier, sched Scheduler, clk clock.Clock, cfg Config) *Service {
	if cfg.RepeatFallbackMinutes <= 0 {
		cfg.RepeatFallbackMinutes = DefaultRepeatMinutes
	}
	if cfg.SnoozeInterval <= 0 {
		cfg.SnoozeInterval = DefaultSnoozeInterval
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = models.DefaultTimezone
	}
	return &Service{
		reminders: reminders,
		settings:  settings,
		notifier:  notifier,
		sched:     sched,
		clock:     clk,
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "delivery").Logger(),
		held:      make(map[int64]struct{}),
	}
}

// ownerSettings returns the owner's timezone and re-prompt interval
// without creating a settings row.
func (s *Service) ownerSettings(ctx context.Context, userID int64) (string, int, error) {
	settings, err := s.settings.GetByUserID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return s.cfg.DefaultTimezone, s.cfg.RepeatFallbackMinutes, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to load settings for user %d: %w", userID, err)
	}

	tz, repeat := settings.Timezone, settings.SnoozeMinutes
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	if repeat <= 0 {
		repeat = s.cfg.RepeatFallbackMinutes
	}
	return tz, repeat, nil
}

// Now returns the owner's current wall-clock time and timezone
func (s *Service) Now(ctx context.Context, userID int64) (time.Time, string, error) {
	tz, _, err := s.ownerSettings(ctx, userID)
	if err != nil {
		return time.Time{}, "", err
	}
	return s.clock.Now(tz), tz, nil
}

// Create persists a new reminder and arms its timer. at is a wall-clock
// time in the owner's timezone and must be in the future.
func (s *Service) Create(ctx context.Context, userID int64, text string, at time.Time, recurrence models.Recurrence) (*models.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty text: %w", models.ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, fmt.Errorf("text longer than %d characters: %w", MaxTextLength, models.ErrValidation)
	}
	if !recurrence.Valid() {
		return nil, fmt.Errorf("recurrence %q: %w", recurrence, models.ErrValidation)
	}

	settings, err := s.settings.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for user %d: %w", userID, err)
	}
	tz := settings.Timezone
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}

	at = clock.Truncate(at)
	if !at.After(s.clock.Now(tz)) {
		return nil, models.ErrPastInstant
	}

	reminder := &models.Reminder{
		UserID:     userID,
		Text:       text,
		RemindAt:   at,
		IsActive:   true,
		Recurrence: recurrence,
	}
	if reminder.IsRecurring() {
		anchor := at
		reminder.RecurrenceAnchor = &anchor
	}
	if err := s.reminders.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	s.sched.Schedule(reminder.ID, reminder.RemindAt, tz)
	s.log.Info().
		Int64("reminder_id", reminder.ID).
		Int64("user_id", userID).
		Time("remind_at", reminder.RemindAt).
		Str("recurrence", string(recurrence)).
		Msg("Reminder created")
	return reminder, nil
}

// List returns the owner's pending reminders ordered by fire time
func (s *Service) List(ctx context.Context, userID int64, offset, limit int) ([]*models.Reminder, error) {
	return s.reminders.ListActiveByUser(ctx, userID, offset, limit)
}

// Delete deactivates the owner's reminder and disarms its timer
func (s *Service) Delete(ctx context.Context, userID, reminderID int64) error {
	_, err := s.transition(ctx, userID, reminderID, func(r *models.Reminder, _ time.Time) error {
		r.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}
	s.release(reminderID)
	s.log.Info().Int64("reminder_id", reminderID).Int64("user_id", userID).Msg("Reminder deleted")
	return nil
}

type transitionResult struct {
	Reminder    *models.Reminder
	PrevMessage *int
	Now         time.Time
	Timezone    string
}

// transition applies fn to the owner's pending reminder under the
// reminder lock, persists it and then arms or disarms the timer to match
// the new state. Another owner's reminder, or one that is no longer
// pending, yields models.ErrNotFound without any change.
func (s *Service) transition(ctx context.Context, userID, reminderID int64, fn func(r *models.Reminder, now time.Time) error) (*transitionResult, error) {
	tz, _, err := s.ownerSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	var res *transitionResult
	err = s.sched.WithLock(reminderID, func() error {
		now := s.clock.Now(tz)
		var prev *int
		updated, err := s.reminders.Update(ctx, reminderID, func(r *models.Reminder) error {
			if r.UserID != userID || !r.Pending() {
				return models.ErrNotFound
			}
			if r.MessageID != nil {
				id := *r.MessageID
				prev = &id
			}
			return fn(r, now)
		})
		if err != nil {
			return err
		}

		if updated.Pending() {
			s.sched.Schedule(updated.ID, updated.RemindAt, tz)
		} else {
			s.sched.Cancel(updated.ID)
		}
		res = &transitionResult{Reminder: updated, PrevMessage: prev, Now: now, Timezone: tz}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) hold(reminderID int64) {
	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	s.held[reminderID] = struct{}{}
}

func (s *Service) release(reminderID int64) {
	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	delete(s.held, reminderID)
}

func (s *Service) isHeld(reminderID int64) bool {
	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	_, ok := s.held[reminderID]
	return ok
}

func (s *Service) edit(ctx context.Context, reminder *models.Reminder, messageID *int, text string, actions [][]Action) {
	if messageID == nil {
		return
	}
	if err := s.notifier.Edit(ctx, reminder.UserID, *messageID, text, actions); err != nil {
		s.log.Warn().Err(err).Int64("reminder_id", reminder.ID).Int("message_id", *messageID).Msg("Failed to edit notification")
	}
}
