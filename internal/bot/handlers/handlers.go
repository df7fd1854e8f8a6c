package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/dialog"
	"github.com/hray3182/PingMe/internal/format"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI the handlers use
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ReminderService is implemented by delivery.Service
type ReminderService interface {
	Now(ctx context.Context, userID int64) (time.Time, string, error)
	Create(ctx context.Context, userID int64, text string, at time.Time, recurrence models.Recurrence) (*models.Reminder, error)
	List(ctx context.Context, userID int64, offset, limit int) ([]*models.Reminder, error)
	Delete(ctx context.Context, userID, reminderID int64) error
	Confirm(ctx context.Context, userID, reminderID int64) (*models.Reminder, error)
	Snooze(ctx context.Context, userID, reminderID int64) (*models.Reminder, error)
	SnoozeDay(ctx context.Context, userID, reminderID int64) (*models.Reminder, error)
	BeginReschedule(ctx context.Context, userID, reminderID int64) (*models.Reminder, time.Time, error)
	CancelReschedule(ctx context.Context, userID, reminderID int64, original time.Time) error
	ApplyReschedule(ctx context.Context, userID, reminderID int64, input string) (*models.Reminder, error)
	Rearm(ctx context.Context, userID int64) (int, error)
}

type SettingsStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.UserSettings, error)
	UpdateSnoozeMinutes(ctx context.Context, userID int64, minutes int) (*models.UserSettings, error)
	UpdateTimezone(ctx context.Context, userID int64, timezone string) (*models.UserSettings, error)
}

type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
}

// DateFallback is consulted when the rule-based parser finds no date
type DateFallback interface {
	Fallback(ctx context.Context, raw string, now time.Time) (dateparse.Result, error)
}

type Deps struct {
	Reminders ReminderService
	Settings  SettingsStore
	Users     UserStore
	Dialogs   *dialog.Store
	// AI is optional
	AI DateFallback
}

type Handlers struct {
	api       Sender
	reminders ReminderService
	settings  SettingsStore
	users     UserStore
	dialogs   *dialog.Store
	ai        DateFallback
	log       zerolog.Logger
}

func New(api Sender, deps Deps, log zerolog.Logger) *Handlers {
	return &Handlers{
		api:       api,
		reminders: deps.Reminders,
		settings:  deps.Settings,
		users:     deps.Users,
		dialogs:   deps.Dialogs,
		ai:        deps.AI,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// Commands is the menu registered with Telegram at startup
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Начать работу"},
	{Command: "help", Description: "Как пользоваться"},
	{Command: "list", Description: "Мои напоминания"},
	{Command: "delete", Description: "Удалить напоминание по ID"},
	{Command: "settings", Description: "Настройки"},
	{Command: "cancel", Description: "Отменить текущее действие"},
}

func dialogKey(msg *tgbotapi.Message) models.DialogKey {
	return models.DialogKey{UserID: msg.From.ID, ChatID: msg.Chat.ID}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "list":
		h.handleList(ctx, msg)
	case "delete":
		h.handleDelete(ctx, msg)
	case "settings":
		h.handleSettings(ctx, msg)
	case "cancel":
		h.handleCancel(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Неизвестная команда. Попробуй /list, /settings или /help")
	}
}

// HandleMessage treats free text as an answer to the pending dialog, or
// as a new reminder when nothing is pending.
func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if d, ok := h.dialogs.Get(dialogKey(msg)); ok {
		switch d.Kind {
		case models.DialogTime:
			h.handleTimeReply(ctx, msg, d)
			return
		case models.DialogReschedule:
			h.handleRescheduleReply(ctx, msg, d)
			return
		}
		// An unanswered clarification is dropped by the new message
		h.dialogs.Delete(d.Key)
	}

	h.handleNewReminder(ctx, msg, text)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		h.answerCallback(callback.ID, "", false)
		return
	}

	parts := strings.SplitN(callback.Data, ":", 3)
	if len(parts) < 2 {
		h.answerCallback(callback.ID, "", false)
		return
	}

	switch parts[0] {
	case "rem":
		h.handleReminderCallback(ctx, callback, parts[1:])
	case "amb":
		h.handleAmbiguityCallback(ctx, callback, parts[1:])
	case "settings":
		h.handleSettingsCallback(ctx, callback, parts[1:])
	default:
		h.answerCallback(callback.ID, "", false)
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := &models.User{
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
	}
	if err := h.users.Upsert(ctx, user); err != nil {
		h.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to save user")
	}

	text := fmt.Sprintf(`👋 Привет, %s!

Я **PingMe**, бот для напоминаний.

Просто напиши, о чём и когда напомнить, например:
• _позвонить маме завтра в 10:00_
• _напомни через 2 часа выключить духовку_
• _оплатить интернет 25.03 в 9 утра_
• _пить воду каждый день в 11:00_

/help покажет все команды`, msg.From.FirstName)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(_ context.Context, msg *tgbotapi.Message) {
	h.sendMessage(msg.Chat.ID, helpText)
}

const helpText = `📖 **Как пользоваться**

Напиши текст напоминания вместе с датой и временем. Я понимаю:
• _сегодня, завтра, послезавтра_
• _в понедельник, в следующую пятницу_
• _через 15 минут, через 3 дня, через неделю_
• _25.12, 25.12.2026, 5 марта_
• _в 10:00, в 9 утра, в 7 вечера, в 10-30_
• _каждый день, каждую неделю, ежемесячно_

**Команды**
/list - мои напоминания
/delete <ID> - удалить напоминание
/settings - интервал повтора и часовой пояс
/cancel - отменить текущее действие`

func (h *Handlers) sendMessage(chatID int64, text string) {
	h.send(chatID, text, nil)
}

func (h *Handlers) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := h.api.Send(msg); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (h *Handlers) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	edit.ReplyMarkup = keyboard
	if _, err := h.api.Request(edit); err != nil {
		h.log.Warn().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("Failed to edit message")
	}
}

func (h *Handlers) answerCallback(callbackID, text string, alert bool) {
	answer := tgbotapi.NewCallback(callbackID, text)
	if alert {
		answer = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := h.api.Request(answer); err != nil {
		h.log.Warn().Err(err).Msg("Failed to answer callback")
	}
}
