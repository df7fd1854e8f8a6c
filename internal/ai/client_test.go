package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract(t *testing.T) {
	srv := completionServer(t, `{"found":true,"text":"сдать отчёт","remind_at":"2026-02-20 18:00","has_time":true,"recurrence":"","confidence":0.9}`)
	c := New("sk-test", srv.URL, "test-model")

	e, err := c.Extract(context.Background(), "сдать отчёт в пятницу вечером в шесть", now)
	require.NoError(t, err)
	assert.True(t, e.Found)
	assert.Equal(t, "сдать отчёт", e.Text)
	assert.Equal(t, "2026-02-20 18:00", e.RemindAt)
	assert.NotEmpty(t, e.RawResponse)
}

func TestFallback(t *testing.T) {
	srv := completionServer(t, `{"found":true,"text":"сдать отчёт","remind_at":"2026-02-20 18:00","has_time":true,"recurrence":"weekly","confidence":0.9}`)
	c := New("sk-test", srv.URL, "test-model")

	res, err := c.Fallback(context.Background(), "сдать отчёт в пятницу вечером в шесть", now)
	require.NoError(t, err)
	assert.Equal(t, dateparse.StatusReady, res.Status)
	assert.Equal(t, time.Date(2026, 2, 20, 18, 0, 0, 0, time.UTC), res.At)
	assert.Equal(t, models.RecurrenceWeekly, res.Recurrence)
}

func TestFallbackBadJSON(t *testing.T) {
	srv := completionServer(t, `not json`)
	c := New("sk-test", srv.URL, "test-model")

	res, err := c.Fallback(context.Background(), "что-то", now)
	assert.Error(t, err)
	assert.Equal(t, dateparse.StatusUnparseable, res.Status)
}

func TestExtractionResult(t *testing.T) {
	tests := []struct {
		name   string
		e      Extraction
		status dateparse.Status
		at     time.Time
		text   string
	}{
		{
			name:   "not found",
			e:      Extraction{Found: false, Confidence: 1},
			status: dateparse.StatusUnparseable,
		},
		{
			name:   "low confidence",
			e:      Extraction{Found: true, RemindAt: "2026-02-20 18:00", HasTime: true, Confidence: 0.3},
			status: dateparse.StatusUnparseable,
		},
		{
			name:   "bad timestamp",
			e:      Extraction{Found: true, RemindAt: "в пятницу", HasTime: true, Confidence: 0.9},
			status: dateparse.StatusUnparseable,
		},
		{
			name:   "date only",
			e:      Extraction{Found: true, Text: "отчёт", RemindAt: "2026-02-20 00:00", Confidence: 0.9},
			status: dateparse.StatusNeedsTime,
			at:     time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			text:   "отчёт",
		},
		{
			name:   "past",
			e:      Extraction{Found: true, Text: "отчёт", RemindAt: "2026-02-16 08:00", HasTime: true, Confidence: 0.9},
			status: dateparse.StatusPastInstant,
			at:     time.Date(2026, 2, 16, 8, 0, 0, 0, time.UTC),
			text:   "отчёт",
		},
		{
			name:   "empty text falls back to raw",
			e:      Extraction{Found: true, RemindAt: "2026-02-17 10:00", HasTime: true, Confidence: 0.9},
			status: dateparse.StatusReady,
			at:     time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC),
			text:   "raw input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.e.Result(" raw input ", now)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, "raw input", res.Raw)
			if tt.status != dateparse.StatusUnparseable {
				assert.Equal(t, tt.at, res.At)
				assert.Equal(t, tt.text, res.Text)
			}
		})
	}
}
