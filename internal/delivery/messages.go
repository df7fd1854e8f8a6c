package delivery

import (
	"fmt"

	"github.com/hray3182/PingMe/internal/format"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/rrule"
)

// Callback actions carried in notification buttons as "rem:<action>:<id>"
const (
	ActionDone       = "done"
	ActionSnooze     = "snooze"
	ActionSnoozeDay  = "snooze_day"
	ActionReschedule = "reschedule"
)

// CallbackData builds the payload of a notification button
func CallbackData(action string, reminderID int64) string {
	return fmt.Sprintf("rem:%s:%d", action, reminderID)
}

// NotificationActions are the four buttons under a delivered reminder
func NotificationActions(reminderID int64) [][]Action {
	return [][]Action{
		{
			{Label: "✅ Выполнено", Data: CallbackData(ActionDone, reminderID)},
			{Label: "⏱ Отложить на час", Data: CallbackData(ActionSnooze, reminderID)},
		},
		{
			{Label: "📅 +1 день", Data: CallbackData(ActionSnoozeDay, reminderID)},
			{Label: "✏️ Перенести", Data: CallbackData(ActionReschedule, reminderID)},
		},
	}
}

func NotificationText(r *models.Reminder) string {
	text := "⏰ **Напоминание!**\n\n" + r.Text
	if r.IsRecurring() {
		text += "\n\n🔁 " + rrule.Describe(r.Recurrence)
	}
	return text
}

func ConfirmedText(r *models.Reminder) string {
	return "✅ Выполнено: " + r.Text
}

func ConfirmedRecurringText(r *models.Reminder) string {
	return fmt.Sprintf("✅ Выполнено: %s\n\n🔁 Следующее: %s", r.Text, format.When(r.RemindAt))
}

func SnoozedText(r *models.Reminder) string {
	return fmt.Sprintf("⏱ Отложено до %s: %s", format.When(r.RemindAt), r.Text)
}

func MovedText(r *models.Reminder) string {
	return fmt.Sprintf("📅 Перенесено на %s: %s", format.When(r.RemindAt), r.Text)
}

func ReschedulingText(r *models.Reminder) string {
	return "✏️ Перенос: " + r.Text
}
