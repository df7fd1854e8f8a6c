package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/rrule"
)

var errStale = errors.New("reminder no longer pending")

// Fire delivers a due reminder. It runs from the scheduler with the
// reminder lock held.
func (s *Service) Fire(ctx context.Context, reminderID int64) {
	if err := s.deliver(ctx, reminderID); err != nil {
		s.log.Error().Err(err).Int64("reminder_id", reminderID).Msg("Failed to deliver reminder")
	}
}

func (s *Service) deliver(ctx context.Context, reminderID int64) error {
	reminder, err := s.reminders.GetByID(ctx, reminderID)
	if errors.Is(err, models.ErrNotFound) {
		s.log.Debug().Int64("reminder_id", reminderID).Msg("Timer fired for a missing reminder")
		return nil
	}
	if err != nil {
		return err
	}
	if !reminder.Pending() {
		s.log.Debug().Int64("reminder_id", reminderID).Msg("Stale timer ignored")
		return nil
	}

	tz, repeat, err := s.ownerSettings(ctx, reminder.UserID)
	if err != nil {
		return err
	}

	retracted := reminder.MessageID == nil
	if reminder.MessageID != nil {
		if err := s.notifier.Retract(ctx, reminder.UserID, *reminder.MessageID); err != nil {
			s.log.Warn().Err(err).Int64("reminder_id", reminderID).Int("message_id", *reminder.MessageID).Msg("Failed to retract notification")
		} else {
			retracted = true
		}
	}

	messageID, sendErr := s.notifier.Send(ctx, reminder.UserID, NotificationText(reminder), NotificationActions(reminder.ID))

	// The re-prompt is armed whatever happened above so a failed send is
	// retried on the next interval.
	next := s.clock.Now(tz).Add(time.Duration(repeat) * time.Minute)

	_, err = s.reminders.Update(ctx, reminderID, func(r *models.Reminder) error {
		if !r.Pending() {
			return errStale
		}
		r.IsSent = true
		r.IsSnoozed = false
		switch {
		case sendErr == nil:
			r.MessageID = &messageID
		case retracted:
			r.MessageID = nil
		}
		return nil
	})
	if errors.Is(err, errStale) {
		return nil
	}
	s.sched.Schedule(reminderID, next, tz)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	if sendErr != nil {
		return fmt.Errorf("failed to send notification: %w", sendErr)
	}

	s.log.Info().Int64("reminder_id", reminderID).Int("message_id", messageID).Time("reprompt_at", next).Msg("Reminder delivered")
	return nil
}

// Misfire handles a timer that fired past the grace window. A recurring
// reminder moves to its next future occurrence; a one-off one is
// delivered now.
func (s *Service) Misfire(ctx context.Context, reminderID int64) {
	reminder, err := s.reminders.GetByID(ctx, reminderID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.log.Error().Err(err).Int64("reminder_id", reminderID).Msg("Failed to load misfired reminder")
		}
		return
	}
	if !reminder.Pending() {
		return
	}
	if !reminder.IsRecurring() {
		s.Fire(ctx, reminderID)
		return
	}
	if err := s.advanceOverdue(ctx, reminder); err != nil {
		s.log.Error().Err(err).Int64("reminder_id", reminderID).Msg("Failed to advance misfired reminder")
	}
}

// advanceOverdue moves a recurring reminder to the first occurrence after
// now, persists it and arms the timer. The anchor stays where it is.
func (s *Service) advanceOverdue(ctx context.Context, reminder *models.Reminder) error {
	tz, _, err := s.ownerSettings(ctx, reminder.UserID)
	if err != nil {
		return err
	}
	next := rrule.NextAfter(reminder.Anchor(), reminder.Recurrence, s.clock.Now(tz))

	updated, err := s.reminders.Update(ctx, reminder.ID, func(r *models.Reminder) error {
		if !r.Pending() {
			return errStale
		}
		r.MoveTo(next)
		return nil
	})
	if errors.Is(err, errStale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to persist next occurrence: %w", err)
	}

	s.sched.Schedule(updated.ID, updated.RemindAt, tz)
	s.log.Info().Int64("reminder_id", updated.ID).Time("remind_at", updated.RemindAt).Msg("Overdue recurring reminder advanced")
	return nil
}

// Restore re-registers every pending reminder, typically at startup.
// It returns how many reminders were armed.
func (s *Service) Restore(ctx context.Context) (int, error) {
	return s.register(ctx, false)
}

// Reconcile arms pending reminders that have no timer, skipping those
// with a reschedule dialog open.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	return s.register(ctx, true)
}

func (s *Service) register(ctx context.Context, onlyMissing bool) (int, error) {
	pending, err := s.reminders.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending reminders: %w", err)
	}

	armed := 0
	for _, r := range pending {
		if s.isHeld(r.ID) {
			continue
		}
		id := r.ID
		err := s.sched.WithLock(id, func() error {
			if onlyMissing && s.sched.IsScheduled(id) {
				return nil
			}
			ok, err := s.restoreOne(ctx, id)
			if ok {
				armed++
			}
			return err
		})
		if err != nil {
			s.log.Error().Err(err).Int64("reminder_id", id).Msg("Failed to restore reminder")
		}
	}

	s.log.Info().Int("armed", armed).Int("pending", len(pending)).Bool("only_missing", onlyMissing).Msg("Reminders registered")
	return armed, nil
}

func (s *Service) restoreOne(ctx context.Context, reminderID int64) (bool, error) {
	reminder, err := s.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return false, err
	}
	if !reminder.Pending() {
		return false, nil
	}

	tz, _, err := s.ownerSettings(ctx, reminder.UserID)
	if err != nil {
		return false, err
	}
	now := s.clock.Now(tz)

	switch {
	case reminder.RemindAt.After(now):
		s.sched.Schedule(reminder.ID, reminder.RemindAt, tz)
	case reminder.IsRecurring():
		if err := s.advanceOverdue(ctx, reminder); err != nil {
			return false, err
		}
	default:
		// Overdue one-off reminders are delivered right away
		s.sched.Schedule(reminder.ID, now, tz)
	}
	return true, nil
}

// rearmPage is how many reminders Rearm loads per query
const rearmPage = 500

// Rearm re-arms the owner's future reminders in their current timezone,
// typically after the timezone changed. Re-prompt timers of delivered
// reminders count from the delivery instant and are left alone, as are
// reminders with a reschedule dialog open. It returns how many timers
// were replaced.
func (s *Service) Rearm(ctx context.Context, userID int64) (int, error) {
	tz, _, err := s.ownerSettings(ctx, userID)
	if err != nil {
		return 0, err
	}

	rearmed := 0
	for offset := 0; ; offset += rearmPage {
		page, err := s.reminders.ListActiveByUser(ctx, userID, offset, rearmPage)
		if err != nil {
			return rearmed, fmt.Errorf("failed to list reminders of user %d: %w", userID, err)
		}

		for _, r := range page {
			if s.isHeld(r.ID) {
				continue
			}
			id := r.ID
			err := s.sched.WithLock(id, func() error {
				reminder, err := s.reminders.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if !reminder.Pending() || !reminder.RemindAt.After(s.clock.Now(tz)) {
					return nil
				}
				s.sched.Schedule(id, reminder.RemindAt, tz)
				rearmed++
				return nil
			})
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				s.log.Error().Err(err).Int64("reminder_id", id).Msg("Failed to re-arm reminder")
			}
		}

		if len(page) < rearmPage {
			break
		}
	}

	s.log.Info().Int64("user_id", userID).Str("timezone", tz).Int("rearmed", rearmed).Msg("Timers re-armed")
	return rearmed, nil
}
