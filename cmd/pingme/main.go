package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/config"
	"github.com/hray3182/PingMe/internal/database"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/logger"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "pingme",
		Short:        "Telegram reminder bot that understands Russian dates",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRunCmd(), newMigrateCmd(), newParseCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot, the scheduler and the optional REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateBot(); err != nil {
				return err
			}

			log := logger.New("pingme", cfg.Level())
			cfg.Log(log)

			ctx, cancel := signalContext()
			defer cancel()

			if err := run(ctx, cfg, log); err != nil {
				log.Error().Stack().Err(err).Msg("PingMe stopped with error")
				return err
			}
			log.Info().Msg("PingMe stopped")
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StorageDriver != config.StoragePostgres {
				return fmt.Errorf("migrate needs STORAGE_DRIVER=%s", config.StoragePostgres)
			}
			log := logger.New("pingme", cfg.Level())

			ctx, cancel := signalContext()
			defer cancel()

			db, err := database.New(ctx, cfg.DatabaseURI)
			if err != nil {
				return errors.Wrap(err, "connect")
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			log.Info().Msg("Database migrations completed")
			return nil
		},
	}
}

func newParseCmd() *cobra.Command {
	var (
		tz  string
		now string
	)
	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Show how a message would be parsed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := clock.System{Default: models.DefaultTimezone}.Now(tz)
			if now != "" {
				t, err := time.ParseInLocation("2006-01-02 15:04", now, time.UTC)
				if err != nil {
					return fmt.Errorf("--now must look like 2006-01-02 15:04: %w", err)
				}
				ref = t
			}

			res := dateparse.Parse(strings.Join(args, " "), ref)
			out := map[string]any{
				"status":     res.Status.String(),
				"now":        ref.Format("2006-01-02 15:04"),
				"text":       res.Text,
				"recurrence": res.Recurrence,
				"fragments":  res.Fragments,
			}
			if !res.At.IsZero() {
				out["remind_at"] = res.At.Format("2006-01-02 15:04")
			}
			if res.Ambiguity != nil {
				out["ambiguity"] = map[string]string{
					"fragment": res.Ambiguity.Fragment,
					"as_time":  res.Ambiguity.AsTime(),
					"as_date":  res.Ambiguity.AsDate(ref),
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&tz, "tz", models.DefaultTimezone, "Timezone the text is read in")
	cmd.Flags().StringVar(&now, "now", "", "Reference wall-clock time, 2006-01-02 15:04")
	return cmd
}
