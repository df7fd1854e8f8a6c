package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hray3182/PingMe/internal/api/respond"
	"github.com/hray3182/PingMe/internal/clock"
	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/hray3182/PingMe/internal/rrule"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Wall-clock layouts accepted for remind_at, read in the owner's timezone
var wallLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type createReminderRequest struct {
	UserID     int64  `json:"user_id"`
	Text       string `json:"text"`
	RemindAt   string `json:"remind_at"`
	Recurrence string `json:"recurrence,omitempty"`
}

type parseRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type ambiguityResponse struct {
	Fragment string `json:"fragment"`
	AsTime   string `json:"as_time"`
	AsDate   string `json:"as_date"`
}

type parseResponse struct {
	Status     string             `json:"status"`
	Text       string             `json:"text,omitempty"`
	RemindAt   *time.Time         `json:"remind_at,omitempty"`
	Recurrence models.Recurrence  `json:"recurrence,omitempty"`
	Fragments  []string           `json:"fragments,omitempty"`
	Ambiguity  *ambiguityResponse `json:"ambiguity,omitempty"`
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("user_id is required")
	}
	return id, nil
}

// GET /api/v1/reminders?user_id=&skip=&limit=
func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if limit == 0 || limit > maxLimit {
		limit = maxLimit
	}

	reminders, err := s.reminders.List(r.Context(), userID, skip, limit)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list reminders")
		respond.WriteInternalError(w, "failed to list reminders")
		return
	}
	if reminders == nil {
		reminders = []*models.Reminder{}
	}
	respond.WriteJSON(w, http.StatusOK, reminders)
}

// POST /api/v1/reminders
func (s *Server) createReminder(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if req.UserID <= 0 {
		respond.WriteBadRequest(w, "user_id is required")
		return
	}

	recurrence, err := rrule.Parse(req.Recurrence)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	_, tz, err := s.reminders.Now(r.Context(), req.UserID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", req.UserID).Msg("Failed to load owner clock")
		respond.WriteInternalError(w, "failed to create reminder")
		return
	}
	at, err := parseRemindAt(req.RemindAt, tz)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	reminder, err := s.reminders.Create(r.Context(), req.UserID, req.Text, at, recurrence)
	switch {
	case errors.Is(err, models.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
		return
	case errors.Is(err, models.ErrPastInstant):
		respond.WriteBadRequest(w, "remind_at must be in the future")
		return
	case err != nil:
		s.log.Error().Err(err).Int64("user_id", req.UserID).Msg("Failed to create reminder")
		respond.WriteInternalError(w, "failed to create reminder")
		return
	}
	respond.WriteJSON(w, http.StatusCreated, reminder)
}

// parseRemindAt reads a wall-clock time in tz, or an RFC 3339 instant
// which is converted to tz.
func parseRemindAt(v, tz string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("remind_at is required")
	}
	for _, layout := range wallLayouts {
		if at, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return at, nil
		}
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("remind_at %q is not a valid timestamp", v)
	}
	return clock.Naive(at, clock.Location(tz, models.DefaultTimezone)), nil
}

// DELETE /api/v1/reminders/{id}?user_id=
func (s *Server) deleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "invalid id")
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	err = s.reminders.Delete(r.Context(), userID, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		respond.WriteNotFound(w, "reminder not found")
		return
	case err != nil:
		s.log.Error().Err(err).Int64("reminder_id", id).Msg("Failed to delete reminder")
		respond.WriteInternalError(w, "failed to delete reminder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/parse
func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.WriteBadRequest(w, "text is required")
		return
	}

	now, _, err := s.reminders.Now(r.Context(), req.UserID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", req.UserID).Msg("Failed to load owner clock")
		respond.WriteInternalError(w, "failed to parse")
		return
	}

	respond.WriteJSON(w, http.StatusOK, newParseResponse(dateparse.Parse(req.Text, now), now))
}

func newParseResponse(res dateparse.Result, now time.Time) parseResponse {
	out := parseResponse{
		Status:     res.Status.String(),
		Text:       res.Text,
		Recurrence: res.Recurrence,
		Fragments:  res.Fragments,
	}
	if !res.At.IsZero() {
		at := res.At
		out.RemindAt = &at
	}
	if res.Ambiguity != nil {
		out.Ambiguity = &ambiguityResponse{
			Fragment: res.Ambiguity.Fragment,
			AsTime:   res.Ambiguity.AsTime(),
			AsDate:   res.Ambiguity.AsDate(now),
		}
	}
	return out
}
