package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hray3182/PingMe/internal/database"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id, user_id, text, remind_at, is_sent, is_active, is_confirmed, is_snoozed,
	message_id, recurrence, recurrence_anchor, created_at, updated_at`

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var recurrence *string
	err := row.Scan(&reminder.ID, &reminder.UserID, &reminder.Text, &reminder.RemindAt,
		&reminder.IsSent, &reminder.IsActive, &reminder.IsConfirmed, &reminder.IsSnoozed,
		&reminder.MessageID, &recurrence, &reminder.RecurrenceAnchor, &reminder.CreatedAt, &reminder.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if recurrence != nil {
		reminder.Recurrence = models.Recurrence(*recurrence)
	}
	return reminder, nil
}

func nullableRecurrence(r models.Recurrence) *string {
	if r == models.RecurrenceNone {
		return nil
	}
	s := string(r)
	return &s
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminders (user_id, text, remind_at, is_sent, is_active, is_confirmed, is_snoozed, recurrence, recurrence_anchor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		reminder.UserID, reminder.Text, reminder.RemindAt, reminder.IsSent, reminder.IsActive,
		reminder.IsConfirmed, reminder.IsSnoozed, nullableRecurrence(reminder.Recurrence), reminder.RecurrenceAnchor,
	).Scan(&reminder.ID, &reminder.CreatedAt, &reminder.UpdatedAt)
}

func (r *ReminderRepository) GetByID(ctx context.Context, id int64) (*models.Reminder, error) {
	return scanReminder(r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id))
}

// Update loads the reminder under a row lock, applies fn and writes the
// result back in the same transaction. An error from fn aborts the
// transaction and is returned unchanged.
func (r *ReminderRepository) Update(ctx context.Context, id int64, fn func(*models.Reminder) error) (*models.Reminder, error) {
	var updated *models.Reminder
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		reminder, err := scanReminder(tx.QueryRow(ctx,
			`SELECT `+reminderColumns+` FROM reminders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(reminder); err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`UPDATE reminders SET text = $1, remind_at = $2, is_sent = $3, is_active = $4, is_confirmed = $5,
			        is_snoozed = $6, message_id = $7, recurrence = $8, recurrence_anchor = $9,
			        updated_at = CURRENT_TIMESTAMP
			 WHERE id = $10
			 RETURNING updated_at`,
			reminder.Text, reminder.RemindAt, reminder.IsSent, reminder.IsActive, reminder.IsConfirmed,
			reminder.IsSnoozed, reminder.MessageID, nullableRecurrence(reminder.Recurrence), reminder.RecurrenceAnchor,
			reminder.ID,
		).Scan(&reminder.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update reminder %d: %w", id, err)
		}
		updated = reminder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListActiveByUser returns the owner's active reminders ordered by fire time
func (r *ReminderRepository) ListActiveByUser(ctx context.Context, userID int64, offset, limit int) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = $1 AND is_active = TRUE AND is_confirmed = FALSE
		 ORDER BY remind_at ASC
		 OFFSET $2 LIMIT $3`,
		userID, offset, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

// ListPending returns every reminder still waiting for delivery
func (r *ReminderRepository) ListPending(ctx context.Context) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE is_active = TRUE AND is_confirmed = FALSE
		 ORDER BY remind_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func collectReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}
