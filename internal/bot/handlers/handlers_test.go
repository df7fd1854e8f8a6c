package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/delivery"
	"github.com/hray3182/PingMe/internal/dialog"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner int64 = 100

var now = time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)

func wall(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

type fakeAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	return msg.Text
}

func (f *fakeAPI) lastKeyboard(t *testing.T) tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	require.NotEmpty(t, f.sent)
	msg := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	return markup
}

func (f *fakeAPI) lastAnswer(t *testing.T) tgbotapi.CallbackConfig {
	t.Helper()
	for i := len(f.requested) - 1; i >= 0; i-- {
		if answer, ok := f.requested[i].(tgbotapi.CallbackConfig); ok {
			return answer
		}
	}
	t.Fatal("no callback answer")
	return tgbotapi.CallbackConfig{}
}

func (f *fakeAPI) lastEdit(t *testing.T) tgbotapi.EditMessageTextConfig {
	t.Helper()
	for i := len(f.requested) - 1; i >= 0; i-- {
		if edit, ok := f.requested[i].(tgbotapi.EditMessageTextConfig); ok {
			return edit
		}
	}
	t.Fatal("no edit")
	return tgbotapi.EditMessageTextConfig{}
}

// chatNotifier stands in for the Telegram notifier inside delivery
type chatNotifier struct{ next int }

func (n *chatNotifier) Send(context.Context, int64, string, [][]delivery.Action) (int, error) {
	n.next++
	return 500 + n.next, nil
}

func (n *chatNotifier) Retract(context.Context, int64, int) error { return nil }

func (n *chatNotifier) Edit(context.Context, int64, int, string, [][]delivery.Action) error {
	return nil
}

type fakeScheduler struct {
	timers map[int64]time.Time
	zones  map[int64]string
}

func (s *fakeScheduler) Schedule(id int64, at time.Time, tz string) {
	s.timers[id] = at
	s.zones[id] = tz
}
func (s *fakeScheduler) Cancel(id int64)                          { delete(s.timers, id) }
func (s *fakeScheduler) IsScheduled(id int64) bool {
	_, ok := s.timers[id]
	return ok
}
func (s *fakeScheduler) ScheduledAt(id int64) (time.Time, bool) {
	at, ok := s.timers[id]
	return at, ok
}
func (s *fakeScheduler) WithLock(_ int64, fn func() error) error { return fn() }

type stubFallback struct {
	res   dateparse.Result
	calls int
}

func (f *stubFallback) Fallback(_ context.Context, raw string, _ time.Time) (dateparse.Result, error) {
	f.calls++
	res := f.res
	res.Raw = raw
	return res, nil
}

type fixture struct {
	h         *Handlers
	api       *fakeAPI
	sched     *fakeScheduler
	reminders *repository.MemoryReminderRepository
	settings  *repository.MemoryUserSettingsRepository
	users     *repository.MemoryUserRepository
	dialogs   *dialog.Store
	svc       *delivery.Service
}

func newFixture(t *testing.T, ttl time.Duration, fallback DateFallback) *fixture {
	t.Helper()
	f := &fixture{
		api:       &fakeAPI{},
		sched:     &fakeScheduler{timers: map[int64]time.Time{}, zones: map[int64]string{}},
		reminders: repository.NewMemoryReminderRepository(),
		settings:  repository.NewMemoryUserSettingsRepository(),
		users:     repository.NewMemoryUserRepository(),
		dialogs:   dialog.NewStore(ttl),
	}
	_, err := f.settings.UpdateTimezone(context.Background(), owner, "UTC")
	require.NoError(t, err)

	f.svc = delivery.New(f.reminders, f.settings, &chatNotifier{}, f.sched,
		&clock.Fixed{At: now, Default: "UTC"},
		delivery.Config{DefaultTimezone: "UTC", Logger: zerolog.Nop()})
	f.h = New(f.api, Deps{
		Reminders: f.svc,
		Settings:  f.settings,
		Users:     f.users,
		Dialogs:   f.dialogs,
		AI:        fallback,
	}, zerolog.Nop())
	return f
}

func textMessage(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "Аня", UserName: "anya"},
		Chat:      &tgbotapi.Chat{ID: from},
		Text:      text,
	}
}

func commandMessage(from int64, text string) *tgbotapi.Message {
	msg := textMessage(from, text)
	name := strings.Fields(text)[0]
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}}
	return msg
}

func callback(from int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: from}},
		Data:    data,
	}
}

func (f *fixture) onlyReminder(t *testing.T) *models.Reminder {
	t.Helper()
	list, err := f.reminders.ListActiveByUser(context.Background(), owner, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func (f *fixture) create(t *testing.T, text string, at time.Time) *models.Reminder {
	t.Helper()
	r, err := f.svc.Create(context.Background(), owner, text, at, models.RecurrenceNone)
	require.NoError(t, err)
	return r
}

func TestHandleMessageCreatesReminder(t *testing.T) {
	f := newFixture(t, dialog.DefaultTTL, nil)

	f.h.HandleMessage(context.Background(), textMessage(owner, "позвонить маме завтра в 10:00"))

	r := f.onlyReminder(t)
	assert.Equal(t, "позвонить маме", r.Text)
	assert.Equal(t, wall(2026, 2, 17, 10, 0), r.RemindAt)
	assert.Equal(t, wall(2026, 2, 17, 10, 0), f.sched.timers[r.ID])

	text := f.api.lastText(t)
	assert.Contains(t, text, "Напоминание создано!")
	assert.Contains(t, text, "17.02.2026 10:00")
}

func TestHandleMessageRecurring(t *testing.T) {
	f := newFixture(t, dialog.DefaultTTL, nil)

	f.h.HandleMessage(context.Background(), textMessage(owner, "пить воду каждый день в 10:00"))

	r := f.onlyReminder(t)
	assert.Equal(t, models.RecurrenceDaily, r.Recurrence)
	assert.Contains(t, f.api.lastText(t), "🔁")
}

func TestHandleMessageAsksForTime(t *testing.T) {
	f := newFixture(t, dialog.DefaultTTL, nil)
	ctx := context.Background()

	f.h.HandleMessage(ctx, textMessage(owner, "встреча завтра"))
	assert.Contains(t, f.api.lastText(t), "Во сколько напомнить?")

	d, ok := f.dialogs.Get(models.DialogKey{UserID: owner, ChatID: owner})
	require.True(t, ok)
	assert.Equal(t, models.DialogTime, d.Kind)

	f.h.HandleMessage(ctx, textMessage(owner, "когда-нибудь"))
	assert.Contains(t, f.api.lastText(t), "Не понял время")
	assert.Equal(t, 1, f.dialogs.Len())

	f.h.HandleMessage(ctx, textMessage(owner, "9 утра"))
	r := f.onlyReminder(t)
	assert.Equal(t, "встреча", r.Text)
	assert.Equal(t, wall(2026, 2, 17, 9, 0), r.RemindAt)
	assert.Equal(t, 0, f.dialogs.Len())
}

func TestHandleMessageAmbiguity(t *testing.T) {
	ctx := context.Background()
	key := models.DialogKey{UserID: owner, ChatID: owner}

	t.Run("as time", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleMessage(ctx, textMessage(owner, "встреча 18.02"))

		kb := f.api.lastKeyboard(t)
		require.Len(t, kb.InlineKeyboard, 1)
		assert.Contains(t, kb.InlineKeyboard[0][0].Text, "18:02")
		assert.Contains(t, kb.InlineKeyboard[0][1].Text, "18.02.2026")

		d, ok := f.dialogs.Get(key)
		require.True(t, ok)
		assert.Equal(t, "amb:time:"+d.Token, *kb.InlineKeyboard[0][0].CallbackData)

		f.h.HandleCallbackQuery(ctx, callback(owner, "amb:time:"+d.Token))
		assert.Equal(t, "«18.02» → 🕐 18:02", f.api.lastEdit(t).Text)
		r := f.onlyReminder(t)
		assert.Equal(t, wall(2026, 2, 16, 18, 2), r.RemindAt)
		assert.Equal(t, "встреча", r.Text)
	})

	t.Run("as date asks for time", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleMessage(ctx, textMessage(owner, "встреча 18.02"))
		d, _ := f.dialogs.Get(key)

		f.h.HandleCallbackQuery(ctx, callback(owner, "amb:date:"+d.Token))
		next, ok := f.dialogs.Get(key)
		require.True(t, ok)
		assert.Equal(t, models.DialogTime, next.Kind)
		assert.Equal(t, wall(2026, 2, 18, 0, 0), next.Date)

		f.h.HandleMessage(ctx, textMessage(owner, "15:00"))
		assert.Equal(t, wall(2026, 2, 18, 15, 0), f.onlyReminder(t).RemindAt)
	})

	t.Run("stale button", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleMessage(ctx, textMessage(owner, "встреча 18.02"))
		d, _ := f.dialogs.Get(key)

		f.h.HandleCallbackQuery(ctx, callback(owner, "amb:time:"+d.Token))
		f.h.HandleCallbackQuery(ctx, callback(owner, "amb:date:"+d.Token))

		answer := f.api.lastAnswer(t)
		assert.True(t, answer.ShowAlert)
		assert.Equal(t, "Вопрос устарел", answer.Text)
		f.onlyReminder(t)
	})
}

func TestHandleMessageUnparseable(t *testing.T) {
	f := newFixture(t, dialog.DefaultTTL, nil)

	f.h.HandleMessage(context.Background(), textMessage(owner, "просто текст без даты"))
	assert.Contains(t, f.api.lastText(t), "Не понял, когда напомнить")

	list, err := f.reminders.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleMessagePastInstant(t *testing.T) {
	f := newFixture(t, dialog.DefaultTTL, nil)

	f.h.HandleMessage(context.Background(), textMessage(owner, "сегодня в 8:00 зарядка"))
	assert.Contains(t, f.api.lastText(t), "уже прошло")
}

func TestHandleMessageFallback(t *testing.T) {
	fallback := &stubFallback{res: dateparse.Result{
		Status: dateparse.StatusReady,
		Text:   "сдать отчёт",
		At:     wall(2026, 2, 20, 18, 0),
	}}
	f := newFixture(t, dialog.DefaultTTL, fallback)
	ctx := context.Background()

	f.h.HandleMessage(ctx, textMessage(owner, "позвонить маме завтра в 10:00"))
	assert.Equal(t, 0, fallback.calls)

	f.h.HandleMessage(ctx, textMessage(owner, "сдать отчёт попозже"))
	assert.Equal(t, 1, fallback.calls)

	list, err := f.reminders.ListActiveByUser(ctx, owner, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "сдать отчёт", list[1].Text)
}

func TestReminderCallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("done", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionDone, r.ID)))
		assert.Equal(t, "✅ Готово", f.api.lastAnswer(t).Text)

		got, err := f.reminders.GetByID(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, got.IsConfirmed)
		assert.False(t, f.sched.IsScheduled(r.ID))
	})

	t.Run("snooze", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionSnooze, r.ID)))
		assert.Equal(t, "⏱ Напомню в 10:00", f.api.lastAnswer(t).Text)
		assert.Equal(t, wall(2026, 2, 16, 10, 0), f.sched.timers[r.ID])
	})

	t.Run("snooze day", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionSnoozeDay, r.ID)))
		assert.Equal(t, wall(2026, 2, 17, 10, 0), f.sched.timers[r.ID])
	})

	t.Run("someone else's reminder", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(200, delivery.CallbackData(delivery.ActionDone, r.ID)))
		answer := f.api.lastAnswer(t)
		assert.True(t, answer.ShowAlert)
		assert.Equal(t, "Напоминание не найдено", answer.Text)

		got, err := f.reminders.GetByID(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.IsConfirmed)
	})

	t.Run("bad id", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleCallbackQuery(ctx, callback(owner, "rem:done:abc"))
		assert.True(t, f.api.lastAnswer(t).ShowAlert)
	})
}

func TestRescheduleFlow(t *testing.T) {
	ctx := context.Background()
	key := models.DialogKey{UserID: owner, ChatID: owner}

	t.Run("apply", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionReschedule, r.ID)))
		assert.False(t, f.sched.IsScheduled(r.ID))
		assert.Contains(t, f.api.lastText(t), "Когда напомнить «чай»?")

		d, ok := f.dialogs.Get(key)
		require.True(t, ok)
		assert.Equal(t, models.DialogReschedule, d.Kind)
		assert.Equal(t, wall(2026, 2, 16, 10, 0), d.OriginalFireAt)

		f.h.HandleMessage(ctx, textMessage(owner, "ерунда"))
		assert.Contains(t, f.api.lastText(t), "Не понял дату")
		assert.Equal(t, 1, f.dialogs.Len())

		f.h.HandleMessage(ctx, textMessage(owner, "завтра в 15:00"))
		assert.Contains(t, f.api.lastText(t), "Перенесено на 17.02.2026 15:00")
		assert.Equal(t, wall(2026, 2, 17, 15, 0), f.sched.timers[r.ID])
		assert.Equal(t, 0, f.dialogs.Len())
	})

	t.Run("cancel restores the timer", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionReschedule, r.ID)))
		f.h.HandleCommand(ctx, commandMessage(owner, "/cancel"))

		assert.Equal(t, "✅ Действие отменено", f.api.lastText(t))
		assert.Equal(t, wall(2026, 2, 16, 10, 0), f.sched.timers[r.ID])
	})

	t.Run("new question restores the timer", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionReschedule, r.ID)))
		f.h.HandleCallbackQuery(ctx, callback(owner, "rem:done:999"))
		require.False(t, f.sched.IsScheduled(r.ID))

		second := f.create(t, "кофе", wall(2026, 2, 16, 11, 0))
		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionReschedule, second.ID)))
		assert.Equal(t, wall(2026, 2, 16, 10, 0), f.sched.timers[r.ID])
		assert.False(t, f.sched.IsScheduled(second.ID))
	})

	t.Run("expired dialog restores the timer", func(t *testing.T) {
		f := newFixture(t, time.Millisecond, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCallbackQuery(ctx, callback(owner, delivery.CallbackData(delivery.ActionReschedule, r.ID)))
		require.False(t, f.sched.IsScheduled(r.ID))
		time.Sleep(5 * time.Millisecond)

		assert.Equal(t, 1, f.h.AbandonExpired(ctx))
		assert.Equal(t, wall(2026, 2, 16, 10, 0), f.sched.timers[r.ID])
		assert.Equal(t, 0, f.dialogs.Len())
	})
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("start saves the user", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleCommand(ctx, commandMessage(owner, "/start"))

		u, err := f.users.GetByID(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "anya", u.Username)
		assert.Contains(t, f.api.lastText(t), "Привет, Аня!")
	})

	t.Run("help", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleCommand(ctx, commandMessage(owner, "/help"))
		assert.Contains(t, f.api.lastText(t), "/delete <ID>")
	})

	t.Run("unknown", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleCommand(ctx, commandMessage(owner, "/foo"))
		assert.Contains(t, f.api.lastText(t), "/list")
	})

	t.Run("list", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleCommand(ctx, commandMessage(owner, "/list"))
		assert.Equal(t, "📭 Активных напоминаний нет", f.api.lastText(t))

		late := f.create(t, "кофе", wall(2026, 2, 17, 8, 0))
		early := f.create(t, "чай", wall(2026, 2, 16, 10, 0))
		_, err := f.svc.Snooze(ctx, owner, early.ID)
		require.NoError(t, err)

		f.h.HandleCommand(ctx, commandMessage(owner, "/list"))
		text := f.api.lastText(t)
		assert.Contains(t, text, fmt.Sprintf("1. ID: %d", early.ID))
		assert.Contains(t, text, fmt.Sprintf("2. ID: %d", late.ID))
		assert.Contains(t, text, "(отложено)")
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		r := f.create(t, "чай", wall(2026, 2, 16, 10, 0))

		f.h.HandleCommand(ctx, commandMessage(owner, "/delete"))
		assert.Contains(t, f.api.lastText(t), "Укажи ID")

		f.h.HandleCommand(ctx, commandMessage(owner, "/delete abc"))
		assert.Contains(t, f.api.lastText(t), "Неверный ID")

		f.h.HandleCommand(ctx, commandMessage(owner, "/delete 999"))
		assert.Contains(t, f.api.lastText(t), "не найдено")

		f.h.HandleCommand(ctx, commandMessage(owner, fmt.Sprintf("/delete %d", r.ID)))
		assert.Contains(t, f.api.lastText(t), "удалено")
		assert.False(t, f.sched.IsScheduled(r.ID))

		got, err := f.reminders.GetByID(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("cancel with nothing pending", func(t *testing.T) {
		f := newFixture(t, dialog.DefaultTTL, nil)
		f.h.HandleCommand(ctx, commandMessage(owner, "/cancel"))
		assert.Equal(t, "Нечего отменять", f.api.lastText(t))
	})
}
