package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/format"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/rrule"
)

// listLimit caps how many reminders /list prints
const listLimit = 50

const unparseableText = `🤔 Не понял, когда напомнить.

Попробуй так:
• _завтра в 10:00 позвонить маме_
• _через 2 часа выключить духовку_
• _25.12 в 18:30 купить подарки_`

func (h *Handlers) handleNewReminder(ctx context.Context, msg *tgbotapi.Message, text string) {
	now, _, err := h.reminders.Now(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to load owner clock")
		h.sendMessage(msg.Chat.ID, "❌ Что-то пошло не так, попробуй позже")
		return
	}

	res := dateparse.Parse(text, now)
	if res.Status == dateparse.StatusUnparseable && h.ai != nil {
		fallback, err := h.ai.Fallback(ctx, text, now)
		if err != nil {
			h.log.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("AI fallback failed")
		} else {
			res = fallback
		}
	}

	h.log.Debug().
		Int64("user_id", msg.From.ID).
		Str("status", res.Status.String()).
		Strs("fragments", res.Fragments).
		Msg("Parsed message")

	h.handleParseResult(ctx, dialogKey(msg), res, now)
}

// handleParseResult answers a parse outcome: create, ask for a time, ask
// to disambiguate, or explain the failure.
func (h *Handlers) handleParseResult(ctx context.Context, key models.DialogKey, res dateparse.Result, now time.Time) {
	switch res.Status {
	case dateparse.StatusReady:
		h.createReminder(ctx, key, res)

	case dateparse.StatusNeedsTime:
		h.putDialog(ctx, models.PendingDialog{
			Key:        key,
			Kind:       models.DialogTime,
			RawText:    res.Raw,
			Text:       res.Text,
			Date:       res.At,
			Recurrence: res.Recurrence,
		})
		h.sendMessage(key.ChatID, fmt.Sprintf(
			"📅 %s\nВо сколько напомнить? Например: _10:00_, _9 утра_, _19-30_\n\n/cancel - отменить",
			res.At.Format("02.01.2006")))

	case dateparse.StatusAmbiguous:
		d := h.putDialog(ctx, models.PendingDialog{
			Key:         key,
			Kind:        models.DialogClarify,
			RawText:     res.Raw,
			Fragment:    res.Ambiguity.Fragment,
			HourGuess:   res.Ambiguity.HourGuess,
			MinuteGuess: res.Ambiguity.MinuteGuess,
		})
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🕐 Время "+res.Ambiguity.AsTime(), "amb:time:"+d.Token),
				tgbotapi.NewInlineKeyboardButtonData("📅 Дата "+res.Ambiguity.AsDate(now), "amb:date:"+d.Token),
			),
		)
		h.send(key.ChatID, fmt.Sprintf("🤔 «%s» - это время или дата?", res.Ambiguity.Fragment), &keyboard)

	case dateparse.StatusPastInstant:
		h.sendMessage(key.ChatID, fmt.Sprintf(
			"⌛ %s уже прошло. Укажи время в будущем.", format.When(res.At)))

	default:
		h.sendMessage(key.ChatID, unparseableText)
	}
}

func (h *Handlers) createReminder(ctx context.Context, key models.DialogKey, res dateparse.Result) {
	reminder, err := h.reminders.Create(ctx, key.UserID, res.Text, res.At, res.Recurrence)
	switch {
	case errors.Is(err, models.ErrPastInstant):
		h.sendMessage(key.ChatID, fmt.Sprintf("⌛ %s уже прошло. Укажи время в будущем.", format.When(res.At)))
		return
	case errors.Is(err, models.ErrValidation):
		h.sendMessage(key.ChatID, "❌ Не хватает текста напоминания. Напиши, о чём напомнить.")
		return
	case err != nil:
		h.log.Error().Err(err).Int64("user_id", key.UserID).Msg("Failed to create reminder")
		h.sendMessage(key.ChatID, "❌ Не удалось создать напоминание, попробуй позже")
		return
	}

	h.sendMessage(key.ChatID, createdText(reminder))
}

func createdText(r *models.Reminder) string {
	var sb strings.Builder
	sb.WriteString("✅ **Напоминание создано!**\n\n")
	sb.WriteString(fmt.Sprintf("📝 %s\n", r.Text))
	sb.WriteString(fmt.Sprintf("⏰ %s", format.When(r.RemindAt)))
	if r.IsRecurring() {
		sb.WriteString(fmt.Sprintf("\n🔁 %s", rrule.Describe(r.Recurrence)))
	}
	return sb.String()
}

// putDialog stores d for its owner. A reschedule dialog it replaces is
// abandoned, which re-arms that reminder.
func (h *Handlers) putDialog(ctx context.Context, d models.PendingDialog) models.PendingDialog {
	stored, replaced := h.dialogs.Put(d)
	if replaced != nil {
		h.abandon(ctx, *replaced)
	}
	return stored
}

// abandon undoes the side effects of a dialog that will never be answered
func (h *Handlers) abandon(ctx context.Context, d models.PendingDialog) {
	if d.Kind != models.DialogReschedule {
		return
	}
	if err := h.reminders.CancelReschedule(ctx, d.Key.UserID, d.ReminderID, d.OriginalFireAt); err != nil {
		h.log.Error().Err(err).Int64("reminder_id", d.ReminderID).Msg("Failed to restore rescheduled reminder")
	}
}

// AbandonExpired drops dialogs past their deadline. It runs from the
// maintenance sweep.
func (h *Handlers) AbandonExpired(ctx context.Context) int {
	expired := h.dialogs.Evict()
	for _, d := range expired {
		h.abandon(ctx, d)
	}
	if len(expired) > 0 {
		h.log.Info().Int("count", len(expired)).Msg("Expired dialogs dropped")
	}
	return len(expired)
}

func (h *Handlers) handleTimeReply(ctx context.Context, msg *tgbotapi.Message, d models.PendingDialog) {
	now, _, err := h.reminders.Now(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to load owner clock")
		h.sendMessage(msg.Chat.ID, "❌ Что-то пошло не так, попробуй позже")
		return
	}

	at, err := dateparse.CombineTime(d.Date, msg.Text, now)
	switch {
	case errors.Is(err, models.ErrPastInstant):
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("⌛ %s уже прошло. Укажи другое время или /cancel", format.When(at)))
		return
	case err != nil:
		h.sendMessage(msg.Chat.ID, "🤔 Не понял время. Например: _10:00_, _9 утра_, _19-30_ или /cancel")
		return
	}

	h.dialogs.Delete(d.Key)
	h.createReminder(ctx, d.Key, dateparse.Result{
		Status:     dateparse.StatusReady,
		Raw:        d.RawText,
		Text:       d.Text,
		At:         at,
		Recurrence: d.Recurrence,
	})
}

func (h *Handlers) handleRescheduleReply(ctx context.Context, msg *tgbotapi.Message, d models.PendingDialog) {
	reminder, err := h.reminders.ApplyReschedule(ctx, msg.From.ID, d.ReminderID, msg.Text)
	switch {
	case errors.Is(err, models.ErrUnparseable):
		h.sendMessage(msg.Chat.ID, "🤔 Не понял дату. Например: _завтра в 10:00_, _25.12 18:30_ или /cancel")
		return
	case errors.Is(err, models.ErrPastInstant):
		h.sendMessage(msg.Chat.ID, "⌛ Это время уже прошло. Укажи время в будущем или /cancel")
		return
	case errors.Is(err, models.ErrNotFound):
		h.dialogs.Delete(d.Key)
		h.abandon(ctx, d)
		h.sendMessage(msg.Chat.ID, "❌ Напоминание не найдено")
		return
	case err != nil:
		h.log.Error().Err(err).Int64("reminder_id", d.ReminderID).Msg("Failed to reschedule reminder")
		h.sendMessage(msg.Chat.ID, "❌ Не удалось перенести напоминание, попробуй позже")
		return
	}

	h.dialogs.Delete(d.Key)
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Перенесено на %s", format.When(reminder.RemindAt)))
}

func (h *Handlers) handleList(ctx context.Context, msg *tgbotapi.Message) {
	reminders, err := h.reminders.List(ctx, msg.From.ID, 0, listLimit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to list reminders")
		h.sendMessage(msg.Chat.ID, "❌ Не удалось получить список, попробуй позже")
		return
	}

	if len(reminders) == 0 {
		h.sendMessage(msg.Chat.ID, "📭 Активных напоминаний нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 **Твои напоминания:**\n\n")
	for i, r := range reminders {
		sb.WriteString(fmt.Sprintf("%d. ID: %d\n", i+1, r.ID))
		sb.WriteString(fmt.Sprintf("   📝 %s\n", r.Text))
		sb.WriteString(fmt.Sprintf("   ⏰ %s", format.When(r.RemindAt)))
		if r.IsSnoozed {
			sb.WriteString(" (отложено)")
		}
		if r.IsRecurring() {
			sb.WriteString(fmt.Sprintf("\n   🔁 %s", rrule.Describe(r.Recurrence)))
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("Для удаления используй /delete <ID>")

	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		h.sendMessage(msg.Chat.ID, "❌ Укажи ID напоминания!\nНапример: /delete 1")
		return
	}

	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		h.sendMessage(msg.Chat.ID, "❌ Неверный ID напоминания!")
		return
	}

	err = h.reminders.Delete(ctx, msg.From.ID, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.sendMessage(msg.Chat.ID, "❌ Напоминание не найдено!")
		return
	case err != nil:
		h.log.Error().Err(err).Int64("reminder_id", id).Msg("Failed to delete reminder")
		h.sendMessage(msg.Chat.ID, "❌ Не удалось удалить напоминание, попробуй позже")
		return
	}

	// A reschedule dialog for the deleted reminder has nothing left to do
	key := dialogKey(msg)
	if d, ok := h.dialogs.Get(key); ok && d.Kind == models.DialogReschedule && d.ReminderID == id {
		h.dialogs.Delete(key)
	}

	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Напоминание %d удалено", id))
}

func (h *Handlers) handleCancel(ctx context.Context, msg *tgbotapi.Message) {
	d, ok := h.dialogs.Delete(dialogKey(msg))
	if !ok {
		h.sendMessage(msg.Chat.ID, "Нечего отменять")
		return
	}
	h.abandon(ctx, d)
	h.sendMessage(msg.Chat.ID, "✅ Действие отменено")
}
