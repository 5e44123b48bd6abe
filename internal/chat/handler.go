// Package chat implements the text chat request cycle against a remote chat
// endpoint. It is independent of the voice session.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FallbackMessage is shown in place of a reply when a request fails.
const FallbackMessage = "क्षमा करें, आपका संदेश प्रोसेस करने में कोई त्रुटि हुई है।"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of the chat display.
type Message struct {
	ID     string
	Sender Sender
	Text   string
	Time   time.Time

	// Typing marks the transient placeholder shown while a reply is pending
	Typing bool
}

// View is the chat part of the UI.
type View interface {
	AppendMessage(m Message)
	RemoveMessage(id string)
	SetSendEnabled(enabled bool)
	ClearInput()
}

// Handler runs one request/response cycle per Send.
type Handler struct {
	asker Asker
	view  View
	now   func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(asker Asker, view View) (*Handler, error) {
	if asker == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if view == nil {
		return nil, fmt.Errorf("view is required")
	}
	return &Handler{asker: asker, view: view, now: time.Now}, nil
}

// Send posts text and renders the exchange. Blank input is ignored. On
// failure the fallback message is rendered and the error returned.
func (h *Handler) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	h.view.AppendMessage(h.message(SenderUser, text))
	h.view.ClearInput()
	h.view.SetSendEnabled(false)
	defer h.view.SetSendEnabled(true)

	typing := h.message(SenderBot, "")
	typing.Typing = true
	h.view.AppendMessage(typing)

	reply, err := h.asker.Ask(ctx, text)
	h.view.RemoveMessage(typing.ID)
	if err != nil {
		slog.Error("Chat request failed", slog.String("error", err.Error()))
		h.view.AppendMessage(h.message(SenderBot, FallbackMessage))
		return err
	}

	h.view.AppendMessage(h.message(SenderBot, reply))
	return nil
}

func (h *Handler) message(sender Sender, text string) Message {
	return Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		Time:   h.now(),
	}
}
