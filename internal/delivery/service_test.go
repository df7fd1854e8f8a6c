package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner int64 = 100

type sent struct {
	owner   int64
	id      int
	text    string
	actions [][]Action
}

type edited struct {
	id   int
	text string
}

type fakeNotifier struct {
	mu         sync.Mutex
	nextID     int
	sent       []sent
	retracted  []int
	edits      []edited
	sendErr    error
	retractErr error
}

func (n *fakeNotifier) Send(_ context.Context, ownerID int64, text string, actions [][]Action) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return 0, n.sendErr
	}
	n.nextID++
	n.sent = append(n.sent, sent{owner: ownerID, id: n.nextID, text: text, actions: actions})
	return n.nextID, nil
}

func (n *fakeNotifier) Retract(_ context.Context, _ int64, messageID int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.retractErr != nil {
		return n.retractErr
	}
	n.retracted = append(n.retracted, messageID)
	return nil
}

func (n *fakeNotifier) Edit(_ context.Context, _ int64, messageID int, text string, _ [][]Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits = append(n.edits, edited{id: messageID, text: text})
	return nil
}

type timer struct {
	at time.Time
	tz string
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers map[int64]timer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{timers: make(map[int64]timer)}
}

func (f *fakeScheduler) Schedule(id int64, at time.Time, tz string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timers[id] = timer{at: at, tz: tz}
}

func (f *fakeScheduler) Cancel(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.timers, id)
}

func (f *fakeScheduler) IsScheduled(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[id]
	return ok
}

func (f *fakeScheduler) ScheduledAt(id int64) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timers[id]
	if !ok {
		return time.Time{}, false
	}
	return clock.Absolute(t.at, clock.Location(t.tz, "UTC")), true
}

func (f *fakeScheduler) WithLock(_ int64, fn func() error) error {
	return fn()
}

func (f *fakeScheduler) wall(id int64) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timers[id]
	return t.at, ok
}

type fixture struct {
	svc       *Service
	reminders *repository.MemoryReminderRepository
	settings  *repository.MemoryUserSettingsRepository
	notifier  *fakeNotifier
	sched     *fakeScheduler
	clock     *clock.Fixed
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		reminders: repository.NewMemoryReminderRepository(),
		settings:  repository.NewMemoryUserSettingsRepository(),
		notifier:  &fakeNotifier{},
		sched:     newFakeScheduler(),
		clock:     &clock.Fixed{At: now, Default: "UTC"},
	}
	f.svc = New(f.reminders, f.settings, f.notifier, f.sched, f.clock, Config{
		RepeatFallbackMinutes: 15,
		SnoozeInterval:        time.Hour,
		DefaultTimezone:       "UTC",
		Logger:                zerolog.Nop(),
	})
	return f
}

func (f *fixture) seed(t *testing.T, r models.Reminder) *models.Reminder {
	t.Helper()
	if r.UserID == 0 {
		r.UserID = owner
	}
	r.IsActive = true
	require.NoError(t, f.reminders.Create(context.Background(), &r))
	return &r
}

func (f *fixture) get(t *testing.T, id int64) *models.Reminder {
	t.Helper()
	r, err := f.reminders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func msgID(id int) *int { return &id }

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 16, 9, 0))

	r, err := f.svc.Create(ctx, owner, "  позвонить маме ", date(2026, 2, 17, 10, 0), models.RecurrenceNone)
	require.NoError(t, err)
	assert.Equal(t, "позвонить маме", r.Text)
	assert.True(t, r.IsActive)
	assert.Nil(t, r.RecurrenceAnchor)

	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, date(2026, 2, 17, 10, 0), at)

	s, err := f.settings.GetByUserID(ctx, owner)
	require.NoError(t, err, "settings row is created on first reminder")
	assert.Equal(t, models.DefaultSnoozeMinutes, s.SnoozeMinutes)
}

func TestCreateRecurringSetsAnchor(t *testing.T) {
	f := newFixture(t, date(2026, 2, 16, 9, 0))
	_, err := f.settings.UpdateTimezone(context.Background(), owner, "UTC")
	require.NoError(t, err)

	r, err := f.svc.Create(context.Background(), owner, "зарядка", date(2026, 2, 17, 8, 0), models.RecurrenceDaily)
	require.NoError(t, err)
	require.NotNil(t, r.RecurrenceAnchor)
	assert.Equal(t, r.RemindAt, *r.RecurrenceAnchor)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 16, 9, 0))
	_, err := f.settings.UpdateTimezone(ctx, owner, "UTC")
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, owner, "поздно", date(2026, 2, 16, 9, 0), models.RecurrenceNone)
	assert.ErrorIs(t, err, models.ErrPastInstant)

	_, err = f.svc.Create(ctx, owner, "   ", date(2026, 2, 17, 9, 0), models.RecurrenceNone)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.Create(ctx, owner, "x", date(2026, 2, 17, 9, 0), models.Recurrence("fortnightly"))
	assert.ErrorIs(t, err, models.ErrValidation)

	assert.Equal(t, 0, len(f.sched.timers))
}

func TestFireDeliversAndArmsReprompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	r := f.seed(t, models.Reminder{Text: "позвонить маме", RemindAt: date(2026, 2, 17, 10, 0)})

	f.svc.Fire(ctx, r.ID)

	require.Len(t, f.notifier.sent, 1)
	msg := f.notifier.sent[0]
	assert.Equal(t, owner, msg.owner)
	assert.Contains(t, msg.text, "позвонить маме")
	require.Len(t, msg.actions, 2)
	assert.Equal(t, "rem:done:1", msg.actions[0][0].Data)
	assert.Equal(t, "rem:snooze:1", msg.actions[0][1].Data)
	assert.Equal(t, "rem:snooze_day:1", msg.actions[1][0].Data)
	assert.Equal(t, "rem:reschedule:1", msg.actions[1][1].Data)

	got := f.get(t, r.ID)
	assert.True(t, got.IsSent)
	require.NotNil(t, got.MessageID)
	assert.Equal(t, msg.id, *got.MessageID)

	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, date(2026, 2, 17, 10, 15), at, "fallback interval without a settings row")
}

func TestFireUsesOwnerInterval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	_, err := f.settings.UpdateSnoozeMinutes(ctx, owner, 5)
	require.NoError(t, err)
	_, err = f.settings.UpdateTimezone(ctx, owner, "UTC")
	require.NoError(t, err)
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0)})

	f.svc.Fire(ctx, r.ID)

	at, _ := f.sched.wall(r.ID)
	assert.Equal(t, date(2026, 2, 17, 10, 5), at)
}

func TestFireReplacesPreviousNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 15))
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0), IsSnoozed: true, MessageID: msgID(41)})

	f.svc.Fire(ctx, r.ID)

	assert.Equal(t, []int{41}, f.notifier.retracted)
	got := f.get(t, r.ID)
	assert.False(t, got.IsSnoozed)
	assert.Equal(t, 1, *got.MessageID)
}

func TestFireRetractFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 15))
	f.notifier.retractErr = errors.New("message to delete not found")
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0), MessageID: msgID(41)})

	f.svc.Fire(ctx, r.ID)

	assert.Len(t, f.notifier.sent, 1)
	assert.Equal(t, 1, *f.get(t, r.ID).MessageID)
}

func TestFireSendFailureStillArmsReprompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	f.notifier.sendErr = errors.New("bot was blocked by the user")
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0), MessageID: msgID(41)})

	f.svc.Fire(ctx, r.ID)

	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, date(2026, 2, 17, 10, 15), at)
	assert.Nil(t, f.get(t, r.ID).MessageID, "retracted notification is forgotten")
}

func TestFireIgnoresStaleTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	done := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0), IsConfirmed: true})
	deleted := f.seed(t, models.Reminder{Text: "b", RemindAt: date(2026, 2, 17, 10, 0)})
	_, err := f.reminders.Update(ctx, deleted.ID, func(r *models.Reminder) error {
		r.IsActive = false
		return nil
	})
	require.NoError(t, err)

	f.svc.Fire(ctx, done.ID)
	f.svc.Fire(ctx, deleted.ID)
	f.svc.Fire(ctx, 999)

	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.sched.timers)
}

// A reminder fires and the owner snoozes it for an hour at 10:05.
func TestSnoozeOneHour(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	r := f.seed(t, models.Reminder{Text: "позвонить маме", RemindAt: date(2026, 2, 17, 10, 0)})
	f.svc.Fire(ctx, r.ID)

	f.clock.At = date(2026, 2, 17, 10, 5)
	got, err := f.svc.Snooze(ctx, owner, r.ID)
	require.NoError(t, err)

	assert.Equal(t, date(2026, 2, 17, 11, 5), got.RemindAt)
	assert.True(t, got.IsSnoozed)
	assert.False(t, got.IsConfirmed)
	assert.Nil(t, got.MessageID)

	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, date(2026, 2, 17, 11, 5), at)

	require.Len(t, f.notifier.edits, 1)
	assert.Equal(t, 1, f.notifier.edits[0].id)
	assert.Contains(t, f.notifier.edits[0].text, "Отложено до 17.02.2026 11:05")
}

func TestSnoozeDay(t *testing.T) {
	ctx := context.Background()

	t.Run("from current fire time", func(t *testing.T) {
		f := newFixture(t, date(2026, 2, 17, 10, 5))
		r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0)})

		got, err := f.svc.SnoozeDay(ctx, owner, r.ID)
		require.NoError(t, err)
		assert.Equal(t, date(2026, 2, 18, 10, 0), got.RemindAt)
		assert.True(t, got.IsSnoozed)
	})

	t.Run("falls back to now when still past", func(t *testing.T) {
		f := newFixture(t, date(2026, 2, 20, 12, 30))
		r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0)})

		got, err := f.svc.SnoozeDay(ctx, owner, r.ID)
		require.NoError(t, err)
		assert.Equal(t, date(2026, 2, 21, 12, 30), got.RemindAt)
	})
}

func TestConfirmOneOff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	r := f.seed(t, models.Reminder{Text: "позвонить маме", RemindAt: date(2026, 2, 17, 10, 0)})
	f.svc.Fire(ctx, r.ID)

	got, err := f.svc.Confirm(ctx, owner, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsConfirmed)
	assert.False(t, got.IsActive)
	assert.False(t, f.sched.IsScheduled(r.ID))

	require.Len(t, f.notifier.edits, 1)
	assert.Equal(t, "✅ Выполнено: позвонить маме", f.notifier.edits[0].text)

	_, err = f.svc.Confirm(ctx, owner, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "second tap finds nothing pending")
}

// A daily reminder anchored at 08:00 has been ignored for three days and
// is confirmed at 09:00.
func TestConfirmDormantRecurring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 3, 18, 9, 0))
	anchor := date(2026, 3, 15, 8, 0)
	r := f.seed(t, models.Reminder{
		Text:             "таблетки",
		RemindAt:         anchor,
		Recurrence:       models.RecurrenceDaily,
		RecurrenceAnchor: &anchor,
		MessageID:        msgID(7),
	})

	got, err := f.svc.Confirm(ctx, owner, r.ID)
	require.NoError(t, err)

	want := date(2026, 3, 19, 8, 0)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsConfirmed)
	assert.Equal(t, want, got.RemindAt)
	require.NotNil(t, got.RecurrenceAnchor)
	assert.Equal(t, want, *got.RecurrenceAnchor)
	assert.Nil(t, got.MessageID)

	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, want, at)

	require.Len(t, f.notifier.edits, 1)
	assert.Contains(t, f.notifier.edits[0].text, "Следующее: 19.03.2026 08:00")
}

func TestSnoozeKeepsAnchor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 3, 15, 8, 5))
	anchor := date(2026, 3, 15, 8, 0)
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: anchor, Recurrence: models.RecurrenceDaily, RecurrenceAnchor: &anchor})

	_, err := f.svc.Snooze(ctx, owner, r.ID)
	require.NoError(t, err)

	got, err := f.svc.Confirm(ctx, owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 16, 8, 0), got.RemindAt)
}

func TestForeignOwnerIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0), MessageID: msgID(3)})
	f.sched.Schedule(r.ID, r.RemindAt, "UTC")
	before := f.get(t, r.ID)

	const stranger int64 = 200
	_, err := f.svc.Confirm(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.Snooze(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.SnoozeDay(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, _, err = f.svc.BeginReschedule(ctx, stranger, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, stranger, r.ID), models.ErrNotFound)

	assert.Equal(t, before, f.get(t, r.ID))
	assert.Empty(t, f.notifier.edits)
	assert.True(t, f.sched.IsScheduled(r.ID))

	_, err = f.svc.Confirm(ctx, owner, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRescheduleCancelRestoresTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 17, 10, 0))
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 10, 0)})
	f.svc.Fire(ctx, r.ID)

	_, original, err := f.svc.BeginReschedule(ctx, owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 17, 10, 15), original, "captures the armed re-prompt")
	assert.False(t, f.sched.IsScheduled(r.ID))

	n, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "sweep leaves a held reminder alone")
	assert.False(t, f.sched.IsScheduled(r.ID))

	require.NoError(t, f.svc.CancelReschedule(ctx, owner, r.ID, original))
	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, original, at)
}

func TestRescheduleApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 16, 9, 0))
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 16, 9, 0), MessageID: msgID(5)})

	_, _, err := f.svc.BeginReschedule(ctx, owner, r.ID)
	require.NoError(t, err)

	_, err = f.svc.ApplyReschedule(ctx, owner, r.ID, "когда-нибудь")
	assert.ErrorIs(t, err, models.ErrUnparseable)
	_, err = f.svc.ApplyReschedule(ctx, owner, r.ID, "сегодня в 8:00")
	assert.ErrorIs(t, err, models.ErrPastInstant)
	assert.False(t, f.sched.IsScheduled(r.ID))
	assert.Equal(t, date(2026, 2, 16, 9, 0), f.get(t, r.ID).RemindAt)

	got, err := f.svc.ApplyReschedule(ctx, owner, r.ID, "завтра в 15:00")
	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 17, 15, 0), got.RemindAt)
	assert.True(t, got.IsSnoozed)

	at, ok := f.sched.wall(r.ID)
	require.True(t, ok)
	assert.Equal(t, date(2026, 2, 17, 15, 0), at)

	n, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already armed")
}

func TestResolveReschedule(t *testing.T) {
	now := date(2026, 2, 16, 9, 0)
	original := date(2026, 2, 16, 18, 30)

	tests := []struct {
		input string
		want  time.Time
		err   error
	}{
		{"завтра в 10:00", date(2026, 2, 17, 10, 0), nil},
		{"через 2 часа", date(2026, 2, 16, 11, 0), nil},
		{"послезавтра", date(2026, 2, 18, 18, 30), nil},
		{"20.02", date(2026, 2, 20, 18, 30), nil},
		{"01.02.2026 в 10:00", time.Time{}, models.ErrPastInstant},
		{"непонятно", time.Time{}, models.ErrUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ResolveReschedule(tt.input, original, now)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 16, 9, 0))
	r := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 9, 0)})
	f.sched.Schedule(r.ID, r.RemindAt, "UTC")

	require.NoError(t, f.svc.Delete(ctx, owner, r.ID))
	assert.False(t, f.get(t, r.ID).IsActive)
	assert.False(t, f.sched.IsScheduled(r.ID))

	list, err := f.svc.List(ctx, owner, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 3, 18, 9, 0))
	anchor := date(2026, 3, 15, 8, 0)

	future := f.seed(t, models.Reminder{Text: "future", RemindAt: date(2026, 3, 20, 8, 0)})
	daily := f.seed(t, models.Reminder{Text: "daily", RemindAt: anchor, Recurrence: models.RecurrenceDaily, RecurrenceAnchor: &anchor, MessageID: msgID(41)})
	overdue := f.seed(t, models.Reminder{Text: "overdue", RemindAt: date(2026, 3, 17, 8, 0)})
	done := f.seed(t, models.Reminder{Text: "done", RemindAt: date(2026, 3, 20, 8, 0), IsConfirmed: true})

	n, err := f.svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	at, _ := f.sched.wall(future.ID)
	assert.Equal(t, date(2026, 3, 20, 8, 0), at)

	at, _ = f.sched.wall(daily.ID)
	assert.Equal(t, date(2026, 3, 19, 8, 0), at)
	stored := f.get(t, daily.ID)
	assert.Equal(t, date(2026, 3, 19, 8, 0), stored.RemindAt, "advanced occurrence is persisted")
	assert.Equal(t, anchor, *stored.RecurrenceAnchor, "anchor only moves on confirm")
	assert.Nil(t, stored.MessageID, "moved reminder forgets its old notification")

	at, _ = f.sched.wall(overdue.ID)
	assert.Equal(t, date(2026, 3, 18, 9, 0), at, "overdue one-off fires now")

	assert.False(t, f.sched.IsScheduled(done.ID))
}

func TestMisfire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 3, 18, 9, 0))
	anchor := date(2026, 3, 15, 8, 0)
	daily := f.seed(t, models.Reminder{Text: "daily", RemindAt: anchor, Recurrence: models.RecurrenceDaily, RecurrenceAnchor: &anchor, MessageID: msgID(77)})
	once := f.seed(t, models.Reminder{Text: "once", RemindAt: date(2026, 3, 18, 8, 0)})

	f.svc.Misfire(ctx, daily.ID)
	assert.Empty(t, f.notifier.sent)
	stored := f.get(t, daily.ID)
	assert.Equal(t, date(2026, 3, 19, 8, 0), stored.RemindAt)
	assert.Nil(t, stored.MessageID)

	f.svc.Misfire(ctx, once.ID)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].text, "once")
}

func TestReconcileArmsMissingTimers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2026, 2, 16, 9, 0))
	armed := f.seed(t, models.Reminder{Text: "a", RemindAt: date(2026, 2, 17, 9, 0)})
	lost := f.seed(t, models.Reminder{Text: "b", RemindAt: date(2026, 2, 18, 9, 0)})
	f.sched.Schedule(armed.ID, date(2026, 2, 16, 9, 15), "UTC")

	n, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	at, _ := f.sched.wall(armed.ID)
	assert.Equal(t, date(2026, 2, 16, 9, 15), at, "existing timer untouched")
	at, _ = f.sched.wall(lost.ID)
	assert.Equal(t, date(2026, 2, 18, 9, 0), at)
}
