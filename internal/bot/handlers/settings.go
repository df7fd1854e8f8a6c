package handlers

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/PingMe/internal/models"
)

// timezoneLabels are the button captions of the timezone picker
var timezoneLabels = map[string]string{
	"Europe/Kaliningrad": "Калининград +2",
	"Europe/Moscow":      "Москва +3",
	"Europe/Samara":      "Самара +4",
	"Asia/Yekaterinburg": "Екатеринбург +5",
	"Asia/Omsk":          "Омск +6",
	"Asia/Novosibirsk":   "Новосибирск +7",
	"Asia/Krasnoyarsk":   "Красноярск +7",
	"Asia/Irkutsk":       "Иркутск +8",
	"Asia/Yakutsk":       "Якутск +9",
	"Asia/Vladivostok":   "Владивосток +10",
	"Asia/Magadan":       "Магадан +11",
	"Asia/Kamchatka":     "Камчатка +12",
	"UTC":                "UTC",
}

func timezoneLabel(tz string) string {
	if label, ok := timezoneLabels[tz]; ok {
		return label
	}
	return tz
}

// handleSettings shows the settings menu
func (h *Handlers) handleSettings(ctx context.Context, msg *tgbotapi.Message) {
	settings, err := h.settings.GetOrCreate(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to get user settings")
		h.sendMessage(msg.Chat.ID, "❌ Не удалось загрузить настройки, попробуй позже")
		return
	}

	keyboard := buildSettingsKeyboard(settings, false)
	h.send(msg.Chat.ID, buildSettingsText(settings), &keyboard)
}

// handleSettingsCallback handles settings-related callbacks
func (h *Handlers) handleSettingsCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	switch parts[0] {
	case "snooze":
		minutes, err := strconv.Atoi(arg(parts))
		if err != nil || !models.IsSnoozeOption(minutes) {
			h.answerCallback(callback.ID, "Недопустимый интервал", true)
			return
		}
		settings, err := h.settings.UpdateSnoozeMinutes(ctx, userID, minutes)
		if err != nil {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to update snooze minutes")
			h.answerCallback(callback.ID, "Не удалось сохранить", true)
			return
		}
		h.showSettings(chatID, messageID, settings, false)
		h.answerCallback(callback.ID, fmt.Sprintf("Повтор каждые %d мин", minutes), false)

	case "tz":
		tz := arg(parts)
		if !models.IsTimezoneOption(tz) {
			h.answerCallback(callback.ID, "Недопустимый часовой пояс", true)
			return
		}
		settings, err := h.settings.UpdateTimezone(ctx, userID, tz)
		if err != nil {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to update timezone")
			h.answerCallback(callback.ID, "Не удалось сохранить", true)
			return
		}
		// Wall-clock reminder times now read in the new zone
		if _, err := h.reminders.Rearm(ctx, userID); err != nil {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to re-arm reminders after timezone change")
		}
		h.showSettings(chatID, messageID, settings, false)
		h.answerCallback(callback.ID, "Часовой пояс: "+timezoneLabel(tz), false)

	case "tz_open", "tz_close":
		settings, err := h.settings.GetOrCreate(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to get user settings")
			h.answerCallback(callback.ID, "", false)
			return
		}
		h.showSettings(chatID, messageID, settings, parts[0] == "tz_open")
		h.answerCallback(callback.ID, "", false)

	case "close":
		h.deleteMessage(chatID, messageID)
		h.answerCallback(callback.ID, "", false)

	default:
		h.answerCallback(callback.ID, "", false)
	}
}

func arg(parts []string) string {
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (h *Handlers) showSettings(chatID int64, messageID int, settings *models.UserSettings, timezonesOpen bool) {
	h.editMessageWithKeyboard(chatID, messageID, buildSettingsText(settings), buildSettingsKeyboard(settings, timezonesOpen))
}

func buildSettingsText(settings *models.UserSettings) string {
	return fmt.Sprintf("⚙️ **Настройки**\n\n⏱ Повтор напоминания: каждые %d мин\n🌍 Часовой пояс: %s",
		settings.SnoozeMinutes, timezoneLabel(settings.Timezone))
}

func buildSettingsKeyboard(settings *models.UserSettings, timezonesOpen bool) tgbotapi.InlineKeyboardMarkup {
	var snoozeRow []tgbotapi.InlineKeyboardButton
	for _, m := range models.SnoozeOptions {
		label := fmt.Sprintf("%d мин", m)
		if m == settings.SnoozeMinutes {
			label = "✅ " + label
		}
		snoozeRow = append(snoozeRow, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("settings:snooze:%d", m)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{snoozeRow}

	if !timezonesOpen {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🌍 Часовой пояс", "settings:tz_open"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("❌ Закрыть", "settings:close"),
			),
		)
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	var row []tgbotapi.InlineKeyboardButton
	for _, tz := range models.TimezoneOptions {
		label := timezoneLabel(tz)
		if tz == settings.Timezone {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "settings:tz:"+tz))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬆️ Свернуть", "settings:tz_close"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handlers) editMessageWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	h.editMessage(chatID, messageID, text, &keyboard)
}

func (h *Handlers) deleteMessage(chatID int64, messageID int) {
	deleteMsg := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := h.api.Request(deleteMsg); err != nil {
		h.log.Warn().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("Failed to delete message")
	}
}
