package realtime

import (
	"time"

	"github.com/pion/rtp"
)

// EventType identifies a client event.
type EventType string

const (
	// EventConnected is fired once the transport has joined the room
	EventConnected EventType = "connected"

	// EventDisconnected is fired when the transport leaves the room
	EventDisconnected EventType = "disconnected"

	// EventTransportState is fired on every transport state change
	EventTransportState EventType = "transport_state_changed"

	// EventBotConnected is fired when the bot participant joins
	EventBotConnected EventType = "bot_connected"

	// EventBotDisconnected is fired when the bot participant leaves
	EventBotDisconnected EventType = "bot_disconnected"

	// EventBotReady is fired when the bot announces bot-ready
	EventBotReady EventType = "bot_ready"

	// EventTranscript is fired for user and bot transcriptions
	EventTranscript EventType = "transcript"

	// EventTrackStarted is fired when a media track becomes available
	EventTrackStarted EventType = "track_started"

	// EventTrackStopped is fired when a media track ends
	EventTrackStopped EventType = "track_stopped"

	// EventMessageError is fired for data packets that cannot be decoded
	EventMessageError EventType = "message_error"

	// EventError is fired for bot and transport errors
	EventError EventType = "error"
)

// TransportState is the lifecycle state reported by the transport.
type TransportState string

const (
	StateDisconnected   TransportState = "disconnected"
	StateInitializing   TransportState = "initializing"
	StateInitialized    TransportState = "initialized"
	StateAuthenticating TransportState = "authenticating"
	StateConnecting     TransportState = "connecting"
	StateConnected      TransportState = "connected"
	StateReady          TransportState = "ready"
	StateDisconnecting  TransportState = "disconnecting"
	StateError          TransportState = "error"
)

// Sender tells who produced a transcript.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// TrackKind is the media kind of a track.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Participant describes the owner of a track or a data packet.
type Participant struct {
	ID    string
	Name  string
	Local bool
}

// Track is one media track of a participant.
type Track interface {
	// ID identifies the track. Two tracks with the same ID are the same track.
	ID() string
	Kind() TrackKind

	// ReadRTP blocks until the next packet arrives. It returns an error once
	// the track has ended.
	ReadRTP() (*rtp.Packet, error)

	// Stop ends delivery of the track.
	Stop() error
}

// Tracks is a snapshot of the tracks known to the client.
type Tracks struct {
	// BotAudio is the audio track published by the bot, if any.
	BotAudio Track
}

// Event represents a client event with associated data.
type Event struct {
	Type      EventType
	Timestamp time.Time

	State       TransportState
	Participant Participant
	Track       Track

	// Transcript fields
	Sender Sender
	Text   string
	Final  bool

	// BotVersion is the protocol version announced in bot-ready
	BotVersion string

	Err error
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// WithState adds the transport state to the event.
func (e *Event) WithState(state TransportState) *Event {
	e.State = state
	return e
}

// WithParticipant adds participant information to the event.
func (e *Event) WithParticipant(p Participant) *Event {
	e.Participant = p
	return e
}

// WithTrack adds the track to the event.
func (e *Event) WithTrack(track Track) *Event {
	e.Track = track
	return e
}

// WithTranscript adds a transcription to the event.
func (e *Event) WithTranscript(sender Sender, text string, final bool) *Event {
	e.Sender = sender
	e.Text = text
	e.Final = final
	return e
}

// WithError adds an error to the event.
func (e *Event) WithError(err error) *Event {
	e.Err = err
	return e
}
