package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/PingMe/internal/dateparse"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/sashabaranov/go-openai"
)

// minConfidence is the lowest model confidence accepted as a date
const minConfidence = 0.5

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Extraction is what the model returns for one message
type Extraction struct {
	Found      bool    `json:"found"`
	Text       string  `json:"text"`
	RemindAt   string  `json:"remind_at"`
	HasTime    bool    `json:"has_time"`
	Recurrence string  `json:"recurrence"`
	Confidence float64 `json:"confidence"`

	RawResponse string `json:"-"`
}

const systemPromptTemplate = `Ты помощник бота-напоминалки. Пользователь пишет по-русски, в свободной форме.
Найди в сообщении дату и время напоминания и текст напоминания.

Текущее время пользователя: %s

Правила:
1. remind_at в формате YYYY-MM-DD HH:MM. Относительные выражения ("через неделю", "в следующую пятницу") считай от текущего времени.
2. Если время суток не указано, поставь 00:00 и has_time = false.
3. text: сообщение без слов о дате и времени и без "напомни мне". Не придумывай текст.
4. recurrence: одно из hourly, daily, weekly, monthly, yearly или пустая строка.
5. Если даты в сообщении нет, found = false.
6. confidence от 0 до 1.`

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02 15:04 (Monday)"))
}

// JSON Schema for structured output
var extractionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"found": {
			"type": "boolean",
			"description": "Whether the message contains a date or time"
		},
		"text": {
			"type": "string",
			"description": "Reminder text without the date and time words"
		},
		"remind_at": {
			"type": "string",
			"description": "Local date and time, YYYY-MM-DD HH:MM"
		},
		"has_time": {
			"type": "boolean",
			"description": "Whether the message names a time of day"
		},
		"recurrence": {
			"type": "string",
			"enum": ["", "hourly", "daily", "weekly", "monthly", "yearly"]
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1
		}
	},
	"required": ["found", "text", "remind_at", "has_time", "recurrence", "confidence"],
	"additionalProperties": false
}`)

// Extract asks the model for the reminder date in text. now is the
// owner's wall-clock time.
func (c *Client) Extract(ctx context.Context, text string, now time.Time) (*Extraction, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(now),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "reminder",
				Schema: extractionSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	content := resp.Choices[0].Message.Content
	extraction := &Extraction{RawResponse: content}

	if err := json.Unmarshal([]byte(content), extraction); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return extraction, nil
}

// Fallback runs Extract and maps the answer onto a parser result, so
// callers can treat it like dateparse.Parse output. Anything the model is
// unsure about comes back Unparseable.
func (c *Client) Fallback(ctx context.Context, raw string, now time.Time) (dateparse.Result, error) {
	extraction, err := c.Extract(ctx, raw, now)
	if err != nil {
		return dateparse.Result{Status: dateparse.StatusUnparseable, Raw: raw}, err
	}
	return extraction.Result(raw, now), nil
}

// Result converts the extraction into a parser result
func (e *Extraction) Result(raw string, now time.Time) dateparse.Result {
	res := dateparse.Result{Status: dateparse.StatusUnparseable, Raw: strings.TrimSpace(raw)}
	if !e.Found || e.Confidence < minConfidence {
		return res
	}

	at, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(e.RemindAt), time.UTC)
	if err != nil {
		return res
	}
	recurrence := models.Recurrence(e.Recurrence)
	if !recurrence.Valid() {
		recurrence = models.RecurrenceNone
	}

	res.Text = strings.TrimSpace(e.Text)
	if res.Text == "" {
		res.Text = res.Raw
	}
	res.Recurrence = recurrence

	switch {
	case !e.HasTime:
		res.At = time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		res.Status = dateparse.StatusNeedsTime
	case !at.After(now):
		res.At = at
		res.Status = dateparse.StatusPastInstant
	default:
		res.At = at
		res.Status = dateparse.StatusReady
	}
	return res
}
