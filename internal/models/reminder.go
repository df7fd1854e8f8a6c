package models

import "time"

// Recurrence is the cadence of a periodic reminder. The empty value means
// the reminder fires once.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceHourly  Recurrence = "hourly"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is one of the supported kinds (or none).
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceHourly, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Reminder is a single user reminder.
//
// RemindAt and RecurrenceAnchor hold wall-clock values in the owner's
// timezone. They are stored as TIMESTAMP without timezone and carried in
// time.UTC so that pgx round-trips the clock fields unchanged.
type Reminder struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Text             string     `json:"text"`
	RemindAt         time.Time  `json:"remind_at"`
	IsSent           bool       `json:"is_sent"`
	IsActive         bool       `json:"is_active"`
	IsConfirmed      bool       `json:"is_confirmed"`
	IsSnoozed        bool       `json:"is_snoozed"`
	MessageID        *int       `json:"message_id"` // Last delivered notification, retracted before resend
	Recurrence       Recurrence `json:"recurrence,omitempty"`
	RecurrenceAnchor *time.Time `json:"recurrence_anchor,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsRecurring returns true if this reminder repeats
func (r *Reminder) IsRecurring() bool {
	return r.Recurrence != RecurrenceNone
}

// Pending reports whether the reminder still expects delivery.
func (r *Reminder) Pending() bool {
	return r.IsActive && !r.IsConfirmed
}

// Anchor returns the instant the recurrence cadence is computed from.
// Rows created before anchors existed fall back to RemindAt.
func (r *Reminder) Anchor() time.Time {
	if r.RecurrenceAnchor != nil {
		return *r.RecurrenceAnchor
	}
	return r.RemindAt
}

// MoveTo sets a new fire time and forgets the delivered notification.
func (r *Reminder) MoveTo(at time.Time) {
	r.RemindAt = at
	r.MessageID = nil
}
