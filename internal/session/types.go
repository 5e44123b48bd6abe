package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/chriscow/voicechat/pkg/realtime"
)

// State is the lifecycle state of the controller.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Mode selects between text chat and live voice.
type Mode int

const (
	ModeChat Mode = iota
	ModeVoice
)

func (m Mode) String() string {
	switch m {
	case ModeChat:
		return "chat"
	case ModeVoice:
		return "voice"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode parses "chat" or "voice".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chat":
		return ModeChat, nil
	case "voice":
		return ModeVoice, nil
	default:
		return ModeChat, fmt.Errorf("unknown mode %q", s)
	}
}

// SpeakingIndicatorDelay is how long the speaking indicator stays up after
// each bot transcript.
const SpeakingIndicatorDelay = 3 * time.Second

// UI labels.
const (
	MuteLabel   = "Mute Mic"
	UnmuteLabel = "Unmute Mic"

	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
	StatusError        = "Error"

	TranscriptPlaceholder = "Conversation will appear here"
	InteractionHint       = "Speak to interact with the assistant"
)

// Controls is the enabled state of the voice controls.
type Controls struct {
	ConnectEnabled    bool
	DisconnectEnabled bool
	MuteEnabled       bool
	MuteLabel         string
}

// idleControls is the control state with no live session.
func idleControls() Controls {
	return Controls{
		ConnectEnabled: true,
		MuteLabel:      MuteLabel,
	}
}

// Transcript is one line of the voice conversation.
type Transcript struct {
	Sender realtime.Sender
	Text   string
}

// View is the UI surface driven by the controller. Calls are serialised by
// the controller and must not call back into it.
type View interface {
	SetStatus(status string)
	SetControls(c Controls)
	ShowMode(m Mode)
	AppendTranscript(t Transcript)

	// ClearTranscript resets the transcript list to its placeholder.
	ClearTranscript()
	SetSpeaking(speaking bool)

	// ResetHint restores the interaction hint after a pause.
	ResetHint()
}

// AudioSink is the single bot audio output.
type AudioSink interface {
	Bind(track realtime.Track) (bool, error)
	Release()
}

// TransportFactory builds a fresh transport for each connect attempt.
type TransportFactory func() (realtime.Transport, error)

// ClientFactory builds the real-time client on top of a transport.
type ClientFactory func(transport realtime.Transport, config realtime.Config) (realtime.Client, error)

// Session is the live voice session. At most one exists at a time.
type Session struct {
	client     realtime.Client
	micEnabled bool

	// remoteClosed is set once the client reports a disconnect nobody asked for
	remoteClosed bool
}
