// Package bot is the thin chat transport: it decodes Telegram webhook
// updates into commands, hands them to the service, and ships the replies
// back through the Bot API. No business logic lives here.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Update is the subset of a Telegram update the bot consumes.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Message is an inbound chat message.
type Message struct {
	Text string `json:"text"`
	From *User  `json:"from"`
	Chat Chat   `json:"chat"`
}

// User identifies the sender; its ID keys the user's stored record.
type User struct {
	ID int64 `json:"id"`
}

// Chat identifies where replies go.
type Chat struct {
	ID int64 `json:"id"`
}

// CallbackQuery is a pressed inline-keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	From    *User    `json:"from"`
	Message *Message `json:"message"`
}

// inlineButton and inlineKeyboard mirror the Bot API reply_markup shape.
type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// Client sends messages through the Telegram Bot API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		baseURL: "https://api.telegram.org/bot" + token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBase creates a client against a custom API base URL.
// Used by tests to point at a local fake.
func NewClientWithBase(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage delivers one text payload, optionally with an inline keyboard.
// Replies are fire-and-forget: a failure is logged, never retried.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *inlineKeyboard) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	c.call(ctx, "sendMessage", payload)
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) {
	c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID})
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode bot api payload failed", "method", method, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", c.baseURL, method), bytes.NewReader(body))
	if err != nil {
		slog.Error("build bot api request failed", "method", method, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("bot api call failed", "method", method, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("bot api call rejected", "method", method, "status", resp.StatusCode)
	}
}
