// Package api exposes reminders over a small JSON REST API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hray3182/PingMe/internal/api/recovery"
	"github.com/hray3182/PingMe/internal/api/respond"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/rs/zerolog"
)

// ReminderService is implemented by delivery.Service
type ReminderService interface {
	Now(ctx context.Context, userID int64) (time.Time, string, error)
	Create(ctx context.Context, userID int64, text string, at time.Time, recurrence models.Recurrence) (*models.Reminder, error)
	List(ctx context.Context, userID int64, offset, limit int) ([]*models.Reminder, error)
	Delete(ctx context.Context, userID, reminderID int64) error
}

// Pinger reports whether storage is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	reminders ReminderService
	storage   Pinger
	log       zerolog.Logger
}

// New builds the API. storage may be nil when there is nothing to ping.
func New(reminders ReminderService, storage Pinger, log zerolog.Logger) *Server {
	return &Server{
		reminders: reminders,
		storage:   storage,
		log:       log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recovery.Middleware)

	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/reminders", s.listReminders).Methods(http.MethodGet)
	v1.HandleFunc("/reminders", s.createReminder).Methods(http.MethodPost)
	v1.HandleFunc("/reminders/{id:[0-9]+}", s.deleteReminder).Methods(http.MethodDelete)
	v1.HandleFunc("/parse", s.parse).Methods(http.MethodPost)
	return r
}

// ListenAndServe serves addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "pingme",
		"status":  "running",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Health check failed")
			respond.WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
