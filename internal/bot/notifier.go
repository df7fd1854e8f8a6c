package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/PingMe/internal/bot/handlers"
	"github.com/hray3182/PingMe/internal/delivery"
	"github.com/hray3182/PingMe/internal/format"
)

// Notifier delivers reminders to the owner's private chat, whose id is
// the owner's user id.
type Notifier struct {
	api handlers.Sender
}

func NewNotifier(api handlers.Sender) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) Send(_ context.Context, ownerID int64, text string, actions [][]delivery.Action) (int, error) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(ownerID, parsed.Text)
	msg.Entities = parsed.Entities
	if len(actions) > 0 {
		msg.ReplyMarkup = keyboard(actions)
	}

	sent, err := n.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", ownerID, err)
	}
	return sent.MessageID, nil
}

func (n *Notifier) Retract(_ context.Context, ownerID int64, messageID int) error {
	if _, err := n.api.Request(tgbotapi.NewDeleteMessage(ownerID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

// Edit replaces the text of a sent notification. Nil actions remove the
// buttons.
func (n *Notifier) Edit(_ context.Context, ownerID int64, messageID int, text string, actions [][]delivery.Action) error {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageText(ownerID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	if len(actions) > 0 {
		kb := keyboard(actions)
		edit.ReplyMarkup = &kb
	}
	if _, err := n.api.Request(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

func keyboard(actions [][]delivery.Action) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, row := range actions {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, a := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
