package models

import "time"

const (
	// DefaultSnoozeMinutes is the re-prompt interval for new settings rows
	DefaultSnoozeMinutes = 15
	// DefaultTimezone is used when the owner never picked one
	DefaultTimezone = "Europe/Moscow"
)

// SnoozeOptions lists the re-prompt intervals a user can choose from
var SnoozeOptions = []int{5, 15, 30}

// TimezoneOptions lists the zones offered in the settings menu
var TimezoneOptions = []string{
	"Europe/Kaliningrad",
	"Europe/Moscow",
	"Europe/Samara",
	"Asia/Yekaterinburg",
	"Asia/Omsk",
	"Asia/Novosibirsk",
	"Asia/Krasnoyarsk",
	"Asia/Irkutsk",
	"Asia/Yakutsk",
	"Asia/Vladivostok",
	"Asia/Magadan",
	"Asia/Kamchatka",
	"UTC",
}

// UserSettings holds per-owner delivery preferences
type UserSettings struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	SnoozeMinutes int       `json:"snooze_minutes"`
	Timezone      string    `json:"timezone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewDefaultUserSettings creates a new UserSettings with default values
func NewDefaultUserSettings(userID int64) *UserSettings {
	now := time.Now()
	return &UserSettings{
		UserID:        userID,
		SnoozeMinutes: DefaultSnoozeMinutes,
		Timezone:      DefaultTimezone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsSnoozeOption reports whether m is an allowed re-prompt interval
func IsSnoozeOption(m int) bool {
	for _, o := range SnoozeOptions {
		if o == m {
			return true
		}
	}
	return false
}

// IsTimezoneOption reports whether tz is offered in the settings menu
func IsTimezoneOption(tz string) bool {
	for _, o := range TimezoneOptions {
		if o == tz {
			return true
		}
	}
	return false
}
