package bot

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/stattrack/bot/internal/service"
)

// secretHeader is how Telegram echoes the webhook secret back to us.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook decodes inbound updates and routes them to the service.
type Webhook struct {
	svc    *service.StatsService
	client *Client
	secret string
}

// NewWebhook wires the transport. secret may be empty to disable the
// shared-secret check (local development).
func NewWebhook(svc *service.StatsService, client *Client, secret string) *Webhook {
	return &Webhook{svc: svc, client: client, secret: secret}
}

// ServeHTTP handles one webhook delivery. Telegram retries non-200
// responses, so business failures still return 200; the user already got
// an error message through the chat.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(w.secret)) != 1 {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("undecodable webhook update", "error", err)
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}

	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		cq := update.CallbackQuery
		w.client.AnswerCallback(r.Context(), cq.ID)
		reply := w.svc.Callback(r.Context(), strconv.FormatInt(cq.From.ID, 10), cq.Data)
		if cq.Message != nil {
			w.deliver(r, cq.Message.Chat.ID, reply)
		}

	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		name, args, ok := splitCommand(msg.Text)
		if !ok {
			w.client.SendMessage(r.Context(), msg.Chat.ID, "Use /help to see what I understand.", nil)
			break
		}
		reply := w.svc.Handle(r.Context(), service.Command{
			Name:   name,
			Args:   args,
			UserID: strconv.FormatInt(msg.From.ID, 10),
		})
		w.deliver(r, msg.Chat.ID, reply)
	}

	rw.WriteHeader(http.StatusOK)
}

// deliver sends every reply message; the choices, if any, ride on the last
// one as an inline keyboard.
func (w *Webhook) deliver(r *http.Request, chatID int64, reply service.Reply) {
	for i, msg := range reply.Messages {
		var keyboard *inlineKeyboard
		if i == len(reply.Messages)-1 && len(reply.Choices) > 0 {
			keyboard = keyboardFor(reply.Choices)
		}
		w.client.SendMessage(r.Context(), chatID, msg, keyboard)
	}
}

func keyboardFor(choices []service.Choice) *inlineKeyboard {
	rows := make([][]inlineButton, 0, len(choices))
	for _, choice := range choices {
		rows = append(rows, []inlineButton{{Text: choice.Label, CallbackData: choice.Data}})
	}
	return &inlineKeyboard{InlineKeyboard: rows}
}

// splitCommand parses "/history weight -7:0" into ("history", [weight -7:0]).
// A "@botname" suffix on the command is dropped (group chats add it).
func splitCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
