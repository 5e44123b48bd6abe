// Package rtvi implements the RTVI message envelope exchanged with the bot
// over the transport data channel.
package rtvi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Label marks every RTVI envelope. Packets without it are not RTVI traffic.
const Label = "rtvi-ai"

// ProtocolVersion is announced in the client-ready message.
const ProtocolVersion = "0.3.0"

// MessageType identifies the payload carried by an envelope.
type MessageType string

const (
	// Client to bot
	TypeClientReady MessageType = "client-ready"

	// Bot to client
	TypeBotReady        MessageType = "bot-ready"
	TypeUserTranscript  MessageType = "user-transcription"
	TypeBotTranscript   MessageType = "bot-transcription"
	TypeError           MessageType = "error"
	TypeErrorResponse   MessageType = "error-response"
	TypeUserStarted     MessageType = "user-started-speaking"
	TypeUserStopped     MessageType = "user-stopped-speaking"
	TypeBotStartedSpeak MessageType = "bot-started-speaking"
	TypeBotStoppedSpeak MessageType = "bot-stopped-speaking"
	TypeBotLLMText      MessageType = "bot-llm-text"
	TypeBotTTSText      MessageType = "bot-tts-text"
	TypeMetrics         MessageType = "metrics"
	TypeServerMessage   MessageType = "server-message"
)

// ErrMessageProtocol is returned for packets that claim to be RTVI but
// cannot be decoded.
var ErrMessageProtocol = errors.New("rtvi message protocol error")

// Message is the RTVI envelope.
type Message struct {
	Label string          `json:"label"`
	Type  MessageType     `json:"type"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TranscriptData is the payload of user-transcription and bot-transcription.
// Final is only meaningful for user transcripts.
type TranscriptData struct {
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Timestamp string `json:"timestamp,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// BotReadyData is the payload of bot-ready.
type BotReadyData struct {
	Version string          `json:"version"`
	Config  json.RawMessage `json:"config,omitempty"`
	About   json.RawMessage `json:"about,omitempty"`
}

// ErrorData is the payload of error and error-response.
type ErrorData struct {
	Error string `json:"error"`
	Fatal bool   `json:"fatal"`
}

// ClientReadyData is the payload of client-ready.
type ClientReadyData struct {
	Version string `json:"version"`
	About   About  `json:"about"`
}

// About describes the client library.
type About struct {
	Library        string `json:"library"`
	LibraryVersion string `json:"library_version"`
	Platform       string `json:"platform,omitempty"`
}

// Decode parses a data packet. ok is false when the packet is valid JSON
// but not labelled as RTVI, which callers should ignore silently.
func Decode(payload []byte) (msg *Message, ok bool, err error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMessageProtocol, err)
	}
	if m.Label != Label {
		return nil, false, nil
	}
	if m.Type == "" {
		return nil, true, fmt.Errorf("%w: missing type", ErrMessageProtocol)
	}
	return &m, true, nil
}

// Transcript decodes the payload of a transcription message.
func (m *Message) Transcript() (TranscriptData, error) {
	var d TranscriptData
	if err := m.decodeData(&d); err != nil {
		return d, err
	}
	return d, nil
}

// BotReady decodes the payload of a bot-ready message.
func (m *Message) BotReady() (BotReadyData, error) {
	var d BotReadyData
	if len(m.Data) == 0 {
		return d, nil
	}
	err := m.decodeData(&d)
	return d, err
}

// Error decodes the payload of an error or error-response message.
func (m *Message) Error() (ErrorData, error) {
	var d ErrorData
	err := m.decodeData(&d)
	return d, err
}

func (m *Message) decodeData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMessageProtocol, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMessageProtocol, m.Type, err)
	}
	return nil
}

// NewClientReady builds the client-ready envelope sent once the transport
// is connected.
func NewClientReady(id string, about About) ([]byte, error) {
	data, err := json.Marshal(ClientReadyData{Version: ProtocolVersion, About: about})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client-ready data: %w", err)
	}
	return json.Marshal(Message{
		Label: Label,
		Type:  TypeClientReady,
		ID:    id,
		Data:  data,
	})
}
