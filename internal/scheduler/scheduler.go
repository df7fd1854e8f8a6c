package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hray3182/PingMe/internal/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultGrace is how late a timer may fire and still count as on time
const DefaultGrace = 60 * time.Second

// Handler receives timer fires. Both methods run with the reminder's
// lock held, so they must not call WithLock for the same id.
type Handler interface {
	// Fire is called when a timer fires within the grace window.
	Fire(ctx context.Context, reminderID int64)
	// Misfire is called when a timer fires later than the grace window,
	// e.g. after the host was suspended.
	Misfire(ctx context.Context, reminderID int64)
}

type Config struct {
	Grace           time.Duration
	DefaultTimezone string
	Logger          zerolog.Logger
}

type job struct {
	at    time.Time
	timer *time.Timer
	gen   uint64
}

type maintenanceJob struct {
	name string
	run  func(ctx context.Context)
}

// Scheduler keeps exactly one timer per reminder id and runs periodic
// maintenance jobs.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[int64]*job
	seq     uint64
	stopped bool
	ctx     context.Context

	locks     *keyedMutex
	handler   Handler
	grace     time.Duration
	defaultTZ string
	now       func() time.Time

	cron        *cron.Cron
	maintenance []maintenanceJob
	notifyCh    chan struct{}

	wg  sync.WaitGroup
	log zerolog.Logger
}

func New(cfg Config) *Scheduler {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	return &Scheduler{
		jobs:      make(map[int64]*job),
		ctx:       context.Background(),
		locks:     newKeyedMutex(),
		grace:     cfg.Grace,
		defaultTZ: cfg.DefaultTimezone,
		now:       time.Now,
		cron:      cron.New(),
		notifyCh:  make(chan struct{}, 1),
		log:       cfg.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetHandler wires the fire callbacks. It must be called before the
// first Schedule.
func (s *Scheduler) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Schedule arms the timer for reminderID at the wall-clock time at in tz,
// replacing any timer already armed for that id.
func (s *Scheduler) Schedule(reminderID int64, at time.Time, tz string) {
	abs := clock.Absolute(at, clock.Location(tz, s.defaultTZ))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.log.Warn().Int64("reminder_id", reminderID).Msg("Schedule after stop ignored")
		return
	}

	if old, ok := s.jobs[reminderID]; ok {
		old.timer.Stop()
	}
	s.seq++
	gen := s.seq

	delay := abs.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	j := &job{at: abs, gen: gen}
	j.timer = time.AfterFunc(delay, func() { s.run(reminderID, gen) })
	s.jobs[reminderID] = j

	s.log.Debug().Int64("reminder_id", reminderID).Time("fire_at", abs).Dur("in", delay).Msg("Timer armed")
}

// Cancel disarms the timer for reminderID. Unknown ids are ignored.
func (s *Scheduler) Cancel(reminderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[reminderID]; ok {
		j.timer.Stop()
		delete(s.jobs, reminderID)
	}
}

// IsScheduled reports whether a timer is armed for reminderID
func (s *Scheduler) IsScheduled(reminderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[reminderID]
	return ok
}

// ScheduledAt returns the absolute fire instant of an armed timer
func (s *Scheduler) ScheduledAt(reminderID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[reminderID]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

// Len returns the number of armed timers
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// WithLock runs fn while holding the per-reminder lock that timer fires
// also take, so a user action never interleaves with a delivery.
func (s *Scheduler) WithLock(reminderID int64, fn func() error) error {
	unlock := s.locks.Lock(reminderID)
	defer unlock()
	return fn()
}

func (s *Scheduler) run(reminderID int64, gen uint64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	ctx, h := s.ctx, s.handler
	s.mu.Unlock()
	defer s.wg.Done()

	unlock := s.locks.Lock(reminderID)
	defer unlock()

	s.mu.Lock()
	j, ok := s.jobs[reminderID]
	if !ok || j.gen != gen {
		// Replaced or cancelled while waiting for the lock
		s.mu.Unlock()
		return
	}
	delete(s.jobs, reminderID)
	s.mu.Unlock()

	if h == nil {
		s.log.Error().Int64("reminder_id", reminderID).Msg("Timer fired without a handler")
		return
	}

	late := s.now().Sub(j.at)
	if late > s.grace {
		s.log.Warn().Int64("reminder_id", reminderID).Dur("late", late).Msg("Timer misfired")
		h.Misfire(ctx, reminderID)
		return
	}
	h.Fire(ctx, reminderID)
}

// AddJob registers a maintenance job on a cron spec ("@every 5m"). Jobs
// also run whenever Notify is called.
func (s *Scheduler) AddJob(spec, name string, fn func(ctx context.Context)) error {
	mj := maintenanceJob{name: name, run: fn}
	if _, err := s.cron.AddFunc(spec, func() { s.runMaintenance(mj) }); err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	s.mu.Lock()
	s.maintenance = append(s.maintenance, mj)
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) runMaintenance(mj maintenanceJob) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.log.Debug().Str("job", mj.name).Msg("Running maintenance job")
	mj.run(ctx)
}

// Notify triggers the maintenance jobs now. Non-blocking if a run is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

// Start runs the cron loop until ctx is cancelled, then stops all timers.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.log.Info().Msg("Scheduler started")
	s.cron.Start()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			s.log.Info().Msg("Scheduler stopped")
			return
		case <-s.notifyCh:
			s.mu.Lock()
			jobs := append([]maintenanceJob(nil), s.maintenance...)
			s.mu.Unlock()
			for _, mj := range jobs {
				s.runMaintenance(mj)
			}
		}
	}
}

// Stop disarms every timer and waits for running fires to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
}
