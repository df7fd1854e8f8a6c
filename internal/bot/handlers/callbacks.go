package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/delivery"
	"github.com/hray3182/PingMe/internal/format"
	"github.com/hray3182/PingMe/internal/models"
)

// handleReminderCallback handles the buttons under a delivered reminder:
// rem:<action>:<id>
func (h *Handlers) handleReminderCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) < 2 {
		h.answerCallback(callback.ID, "", false)
		return
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		h.answerCallback(callback.ID, "Неверная кнопка", true)
		return
	}

	userID := callback.From.ID
	var (
		reminder *models.Reminder
		toast    string
	)
	switch parts[0] {
	case delivery.ActionDone:
		reminder, err = h.reminders.Confirm(ctx, userID, id)
		toast = "✅ Готово"
	case delivery.ActionSnooze:
		reminder, err = h.reminders.Snooze(ctx, userID, id)
		if err == nil {
			toast = "⏱ Напомню в " + reminder.RemindAt.Format("15:04")
		}
	case delivery.ActionSnoozeDay:
		reminder, err = h.reminders.SnoozeDay(ctx, userID, id)
		if err == nil {
			toast = "📅 Напомню " + format.When(reminder.RemindAt)
		}
	case delivery.ActionReschedule:
		h.beginReschedule(ctx, callback, id)
		return
	default:
		h.answerCallback(callback.ID, "", false)
		return
	}

	if err != nil {
		h.answerReminderError(callback, id, err)
		return
	}
	h.answerCallback(callback.ID, toast, false)
}

func (h *Handlers) beginReschedule(ctx context.Context, callback *tgbotapi.CallbackQuery, id int64) {
	reminder, original, err := h.reminders.BeginReschedule(ctx, callback.From.ID, id)
	if err != nil {
		h.answerReminderError(callback, id, err)
		return
	}

	h.putDialog(ctx, models.PendingDialog{
		Key:            models.DialogKey{UserID: callback.From.ID, ChatID: callback.Message.Chat.ID},
		Kind:           models.DialogReschedule,
		RawText:        reminder.Text,
		Text:           reminder.Text,
		ReminderID:     reminder.ID,
		OriginalFireAt: original,
	})
	h.answerCallback(callback.ID, "", false)
	h.sendMessage(callback.Message.Chat.ID, fmt.Sprintf(
		"✏️ Когда напомнить «%s»?\nНапример: _завтра в 10:00_, _25.12 18:30_, _через 2 часа_\n\n/cancel - оставить как было",
		reminder.Text))
}

func (h *Handlers) answerReminderError(callback *tgbotapi.CallbackQuery, id int64, err error) {
	if errors.Is(err, models.ErrNotFound) {
		h.answerCallback(callback.ID, "Напоминание не найдено", true)
		return
	}
	h.log.Error().Err(err).Int64("reminder_id", id).Str("data", callback.Data).Msg("Failed to handle reminder action")
	h.answerCallback(callback.ID, "Что-то пошло не так, попробуй позже", true)
}

// handleAmbiguityCallback resumes a parse after the owner chose how to
// read a dotted pair: amb:time:<token> or amb:date:<token>
func (h *Handlers) handleAmbiguityCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string) {
	key := models.DialogKey{UserID: callback.From.ID, ChatID: callback.Message.Chat.ID}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if len(parts) < 2 || (parts[0] != "time" && parts[0] != "date") {
		h.answerCallback(callback.ID, "", false)
		return
	}

	d, ok := h.dialogs.TakeToken(key, parts[1])
	if !ok {
		h.editMessage(chatID, messageID, "⌛ Вопрос устарел. Отправь напоминание ещё раз.", nil)
		h.answerCallback(callback.ID, "Вопрос устарел", true)
		return
	}

	now, _, err := h.reminders.Now(ctx, key.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", key.UserID).Msg("Failed to load owner clock")
		h.answerCallback(callback.ID, "Что-то пошло не так, попробуй позже", true)
		return
	}

	amb := dateparse.Ambiguity{Fragment: d.Fragment, HourGuess: d.HourGuess, MinuteGuess: d.MinuteGuess}
	asTime := parts[0] == "time"
	choice := "📅 " + amb.AsDate(now)
	if asTime {
		choice = "🕐 " + amb.AsTime()
	}
	h.editMessage(chatID, messageID, fmt.Sprintf("«%s» → %s", d.Fragment, choice), nil)
	h.answerCallback(callback.ID, "", false)

	h.handleParseResult(ctx, key, dateparse.Clarify(d.RawText, amb, asTime, now), now)
}
