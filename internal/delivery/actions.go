package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/rrule"
)

// Confirm marks the reminder done. A recurring reminder instead moves
// both its fire time and anchor to the next occurrence after now.
func (s *Service) Confirm(ctx context.Context, userID, reminderID int64) (*models.Reminder, error) {
	var text string
	res, err := s.transition(ctx, userID, reminderID, func(r *models.Reminder, now time.Time) error {
		if r.IsRecurring() {
			next := rrule.NextAfter(r.Anchor(), r.Recurrence, now)
			r.MoveTo(next)
			r.RecurrenceAnchor = &next
			r.IsSnoozed = false
			text = ConfirmedRecurringText(r)
			return nil
		}
		r.IsConfirmed = true
		r.IsActive = false
		text = ConfirmedText(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.edit(ctx, res.Reminder, res.PrevMessage, text, nil)
	s.log.Info().
		Int64("reminder_id", reminderID).
		Bool("recurring", res.Reminder.IsRecurring()).
		Time("remind_at", res.Reminder.RemindAt).
		Msg("Reminder confirmed")
	return res.Reminder, nil
}

// Snooze postpones the reminder by the configured interval from now.
func (s *Service) Snooze(ctx context.Context, userID, reminderID int64) (*models.Reminder, error) {
	res, err := s.transition(ctx, userID, reminderID, func(r *models.Reminder, now time.Time) error {
		snooze(r, clock.Truncate(now).Add(s.cfg.SnoozeInterval))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.edit(ctx, res.Reminder, res.PrevMessage, SnoozedText(res.Reminder), nil)
	s.log.Info().Int64("reminder_id", reminderID).Time("remind_at", res.Reminder.RemindAt).Msg("Reminder snoozed")
	return res.Reminder, nil
}

// SnoozeDay moves the reminder one day past its current fire time, or one
// day from now if that is already in the past.
func (s *Service) SnoozeDay(ctx context.Context, userID, reminderID int64) (*models.Reminder, error) {
	res, err := s.transition(ctx, userID, reminderID, func(r *models.Reminder, now time.Time) error {
		at := r.RemindAt.AddDate(0, 0, 1)
		if !at.After(now) {
			at = clock.Truncate(now).AddDate(0, 0, 1)
		}
		snooze(r, at)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.edit(ctx, res.Reminder, res.PrevMessage, MovedText(res.Reminder), nil)
	s.log.Info().Int64("reminder_id", reminderID).Time("remind_at", res.Reminder.RemindAt).Msg("Reminder snoozed by a day")
	return res.Reminder, nil
}

func snooze(r *models.Reminder, at time.Time) {
	r.MoveTo(at)
	r.IsSnoozed = true
	r.IsConfirmed = false
}

// BeginReschedule disarms the reminder while the owner types a new time.
// It returns the wall-clock time the disarmed timer was set for so that
// CancelReschedule can put it back.
func (s *Service) BeginReschedule(ctx context.Context, userID, reminderID int64) (*models.Reminder, time.Time, error) {
	tz, _, err := s.ownerSettings(ctx, userID)
	if err != nil {
		return nil, time.Time{}, err
	}

	var (
		reminder *models.Reminder
		original time.Time
	)
	err = s.sched.WithLock(reminderID, func() error {
		r, err := s.reminders.GetByID(ctx, reminderID)
		if err != nil {
			return err
		}
		if r.UserID != userID || !r.Pending() {
			return models.ErrNotFound
		}

		original = r.RemindAt
		if at, ok := s.sched.ScheduledAt(reminderID); ok {
			original = clock.Naive(at, clock.Location(tz, s.cfg.DefaultTimezone))
		}
		s.sched.Cancel(reminderID)
		s.hold(reminderID)
		reminder = r
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	s.edit(ctx, reminder, reminder.MessageID, ReschedulingText(reminder), nil)
	s.log.Info().Int64("reminder_id", reminderID).Time("original", original).Msg("Reschedule started")
	return reminder, original, nil
}

// CancelReschedule re-arms the timer captured by BeginReschedule. It is a
// no-op if the reminder is gone or was re-armed in the meantime.
func (s *Service) CancelReschedule(ctx context.Context, userID, reminderID int64, original time.Time) error {
	tz, _, err := s.ownerSettings(ctx, userID)
	if err != nil {
		return err
	}

	var reminder *models.Reminder
	err = s.sched.WithLock(reminderID, func() error {
		s.release(reminderID)

		r, err := s.reminders.GetByID(ctx, reminderID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.UserID != userID || !r.Pending() || s.sched.IsScheduled(reminderID) {
			return nil
		}
		s.sched.Schedule(reminderID, original, tz)
		reminder = r
		return nil
	})
	if err != nil || reminder == nil {
		return err
	}

	s.edit(ctx, reminder, reminder.MessageID, NotificationText(reminder), NotificationActions(reminder.ID))
	s.log.Info().Int64("reminder_id", reminderID).Time("restored", original).Msg("Reschedule cancelled")
	return nil
}

// ApplyReschedule moves the reminder to the time in input. Unparseable or
// past input returns models.ErrUnparseable or models.ErrPastInstant and
// leaves the reminder untouched.
func (s *Service) ApplyReschedule(ctx context.Context, userID, reminderID int64, input string) (*models.Reminder, error) {
	current, err := s.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID || !current.Pending() {
		return nil, models.ErrNotFound
	}

	now, _, err := s.Now(ctx, userID)
	if err != nil {
		return nil, err
	}
	at, err := ResolveReschedule(input, current.RemindAt, now)
	if err != nil {
		return nil, err
	}

	res, err := s.transition(ctx, userID, reminderID, func(r *models.Reminder, now time.Time) error {
		if !at.After(now) {
			return models.ErrPastInstant
		}
		snooze(r, at)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.release(reminderID)

	s.edit(ctx, res.Reminder, res.PrevMessage, MovedText(res.Reminder), nil)
	s.log.Info().Int64("reminder_id", reminderID).Time("remind_at", res.Reminder.RemindAt).Msg("Reminder rescheduled")
	return res.Reminder, nil
}

// ResolveReschedule turns a free-text reply into a new fire time. A reply
// with a date but no time keeps the time of day of original, and a dotted
// pair like "18.02" is read as a date.
func ResolveReschedule(input string, original, now time.Time) (time.Time, error) {
	res := dateparse.Parse(input, now)
	if res.Status == dateparse.StatusAmbiguous {
		res = dateparse.Clarify(res.Raw, *res.Ambiguity, false, now)
	}

	switch res.Status {
	case dateparse.StatusReady:
		return res.At, nil
	case dateparse.StatusNeedsTime:
		y, m, d := res.At.Date()
		at := time.Date(y, m, d, original.Hour(), original.Minute(), 0, 0, time.UTC)
		if !at.After(now) {
			return at, fmt.Errorf("reschedule to %s: %w", at.Format(time.DateTime), models.ErrPastInstant)
		}
		return at, nil
	case dateparse.StatusPastInstant:
		return res.At, fmt.Errorf("reschedule to %s: %w", res.At.Format(time.DateTime), models.ErrPastInstant)
	}
	return time.Time{}, fmt.Errorf("reschedule %q: %w", input, models.ErrUnparseable)
}
