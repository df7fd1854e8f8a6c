package main

import (
	"context"

	"github.com/hray3182/PingMe/internal/ai"
	"github.com/hray3182/PingMe/internal/api"
	"github.com/hray3182/PingMe/internal/bot"
	"github.com/hray3182/PingMe/internal/bot/handlers"
	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/config"
	"github.com/hray3182/PingMe/internal/database"
	"github.com/hray3182/PingMe/internal/delivery"
	"github.com/hray3182/PingMe/internal/dialog"
	"github.com/hray3182/PingMe/internal/repository"
	"github.com/hray3182/PingMe/internal/scheduler"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type storage struct {
	reminders delivery.ReminderStore
	settings  interface {
		delivery.SettingsStore
		handlers.SettingsStore
	}
	users  handlers.UserStore
	pinger api.Pinger
	close  func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage, reminders are lost on restart")
		return &storage{
			reminders: repository.NewMemoryReminderRepository(),
			settings:  repository.NewMemoryUserSettingsRepository(),
			users:     repository.NewMemoryUserRepository(),
			close:     func() {},
		}, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	log.Info().Msg("Connected to database")

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	log.Info().Msg("Database migrations completed")

	return &storage{
		reminders: repository.NewReminderRepository(db),
		settings:  repository.NewUserSettingsRepository(db),
		users:     repository.NewUserRepository(db),
		pinger:    db,
		close:     db.Close,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	tgAPI, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		return errors.Wrap(err, "telegram")
	}

	sched := scheduler.New(scheduler.Config{
		Grace:           cfg.MisfireGrace,
		DefaultTimezone: cfg.DefaultTimezone,
		Logger:          log,
	})
	svc := delivery.New(store.reminders, store.settings, bot.NewNotifier(tgAPI), sched,
		clock.System{Default: cfg.DefaultTimezone},
		delivery.Config{
			RepeatFallbackMinutes: cfg.RepeatFallbackMinutes,
			SnoozeInterval:        cfg.SnoozeInterval(),
			DefaultTimezone:       cfg.DefaultTimezone,
			Logger:                log,
		})
	sched.SetHandler(svc)

	deps := handlers.Deps{
		Reminders: svc,
		Settings:  store.settings,
		Users:     store.users,
		Dialogs:   dialog.NewStore(cfg.DialogTTL),
	}
	if cfg.AIEnabled() {
		deps.AI = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Info().Str("model", cfg.AIModel).Msg("AI fallback enabled")
	} else {
		log.Info().Msg("AI client not configured, using the rule-based parser only")
	}
	h := handlers.New(tgAPI, deps, log)

	b := bot.New(tgAPI, h, log)
	if err := b.RegisterCommands(); err != nil {
		log.Warn().Err(err).Msg("Failed to register command menu")
	}

	restored, err := svc.Restore(ctx)
	if err != nil {
		return errors.Wrap(err, "restore timers")
	}
	log.Info().Int("count", restored).Msg("Timers restored")

	err = sched.AddJob(cfg.SweepSchedule, "sweep", func(ctx context.Context) {
		h.AbandonExpired(ctx)
		if n, err := svc.Reconcile(ctx); err != nil {
			log.Error().Err(err).Msg("Reconcile failed")
		} else if n > 0 {
			log.Warn().Int("count", n).Msg("Re-armed reminders without a timer")
		}
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return b.Start(gctx)
	})
	if cfg.APIEnabled {
		server := api.New(svc, store.pinger, log)
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.APIAddr())
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
