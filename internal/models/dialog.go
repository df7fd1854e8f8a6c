package models

import "time"

// DialogKind is what a pending dialog is waiting for
type DialogKind string

const (
	// DialogClarify waits for the user to pick time or date for a dotted pair
	DialogClarify DialogKind = "clarify"
	// DialogTime holds a resolved date and waits for a time of day
	DialogTime DialogKind = "time"
	// DialogReschedule waits for a new date/time for an existing reminder
	DialogReschedule DialogKind = "reschedule"
)

// DialogKey identifies a conversation with one owner
type DialogKey struct {
	UserID int64
	ChatID int64
}

// PendingDialog is everything needed to resume an interrupted parse or
// reschedule. It is plain data so it can live in memory or be persisted.
type PendingDialog struct {
	Key        DialogKey  `json:"-"`
	Kind       DialogKind `json:"kind"`
	Token      string     `json:"token"` // Guards stale inline buttons
	RawText    string     `json:"raw_text"`
	Text       string     `json:"text,omitempty"`
	Date       time.Time  `json:"date,omitempty"` // Held date for DialogTime
	Recurrence Recurrence `json:"recurrence,omitempty"`

	Fragment    string `json:"fragment,omitempty"`
	HourGuess   int    `json:"hour_guess,omitempty"`
	MinuteGuess int    `json:"minute_guess,omitempty"`

	ReminderID     int64     `json:"reminder_id,omitempty"`
	OriginalFireAt time.Time `json:"original_fire_at,omitempty"` // Restored when a reschedule is abandoned
	Timezone       string    `json:"timezone,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
}
