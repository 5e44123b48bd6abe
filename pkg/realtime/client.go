// Package realtime implements the real-time voice client. A Client fetches
// room credentials over HTTP, joins the room through a Transport, speaks the
// RTVI protocol over the data channel and reports everything it observes as
// an ordered stream of Events.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/voicechat/pkg/rtvi"
	"github.com/chriscow/voicechat/pkg/version"
	"github.com/google/uuid"
)

var (
	// ErrNotConnected is returned when an operation needs a joined room.
	ErrNotConnected = errors.New("client is not connected")

	// ErrAlreadyConnected is returned by Connect on a client that has joined.
	ErrAlreadyConnected = errors.New("client is already connected")

	// ErrCredentials is returned when the connect endpoint does not hand out
	// usable room credentials.
	ErrCredentials = errors.New("failed to obtain room credentials")

	// ErrClosed is returned by a client that has been disconnected. Clients
	// are single use.
	ErrClosed = errors.New("client is closed")
)

// Client is the capability set the session controller consumes.
type Client interface {
	InitDevices(ctx context.Context) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	EnableMic(enabled bool) error
	IsMicEnabled() bool
	Tracks() Tracks
	Events() <-chan *Event
}

// Config holds configuration for creating an RTVIClient.
type Config struct {
	// BaseURL of the bot server
	BaseURL string

	// ConnectEndpoint is appended to BaseURL to request room credentials
	ConnectEndpoint string

	EnableMic bool
	EnableCam bool

	// HTTPClient used for the credentials request
	HTTPClient *http.Client

	// Buffer size for events channel
	EventBufferSize int
}

// Credentials are returned by the connect endpoint.
type Credentials struct {
	URL   string `json:"url"`
	Token string `json:"token"`

	// RoomURL is accepted as an alias of URL
	RoomURL string `json:"room_url,omitempty"`
}

// RTVIClient implements Client on top of a Transport.
type RTVIClient struct {
	transport  Transport
	config     Config
	httpClient *http.Client

	events chan *Event

	mu         sync.RWMutex
	state      TransportState
	joined     bool
	closed     bool
	micEnabled bool
	botAudio   Track
}

// NewClient creates a new RTVIClient bound to the given transport.
func NewClient(transport Transport, config Config) (*RTVIClient, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	bufferSize := config.EventBufferSize
	if bufferSize == 0 {
		bufferSize = 100
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &RTVIClient{
		transport:  transport,
		config:     config,
		httpClient: httpClient,
		events:     make(chan *Event, bufferSize),
		state:      StateDisconnected,
		micEnabled: config.EnableMic,
	}, nil
}

// Events returns the event channel. It is closed by Disconnect.
func (c *RTVIClient) Events() <-chan *Event {
	return c.events
}

// State returns the current transport state.
func (c *RTVIClient) State() TransportState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// InitDevices prepares the local microphone and camera.
func (c *RTVIClient) InitDevices(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.setState(StateInitializing)
	if err := c.transport.InitDevices(ctx, c.config.EnableMic, c.config.EnableCam); err != nil {
		c.setState(StateError)
		return fmt.Errorf("failed to initialize devices: %w", err)
	}
	c.setState(StateInitialized)
	return nil
}

// Connect obtains room credentials, joins the room and announces the client
// to the bot.
func (c *RTVIClient) Connect(ctx context.Context) error {
	c.mu.RLock()
	joined, closed := c.joined, c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if joined {
		return ErrAlreadyConnected
	}

	c.setState(StateAuthenticating)
	creds, err := c.fetchCredentials(ctx)
	if err != nil {
		c.setState(StateError)
		return err
	}

	c.setState(StateConnecting)
	if err := c.transport.Join(ctx, creds.URL, creds.Token, c); err != nil {
		c.setState(StateError)
		return fmt.Errorf("failed to join room: %w", err)
	}

	c.mu.Lock()
	c.joined = true
	micEnabled := c.micEnabled
	c.mu.Unlock()

	if c.config.EnableMic && !micEnabled {
		if err := c.transport.EnableMic(false); err != nil {
			slog.Warn("Failed to apply initial mic state", slog.String("error", err.Error()))
		}
	}

	c.setState(StateConnected)
	c.emit(NewEvent(EventConnected))

	payload, err := rtvi.NewClientReady(uuid.NewString(), rtvi.About{
		Library:        version.Name,
		LibraryVersion: version.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to build client-ready: %w", err)
	}
	if err := c.Send(payload); err != nil {
		return fmt.Errorf("failed to send client-ready: %w", err)
	}

	slog.Info("Client connected", slog.String("url", creds.URL))
	return nil
}

// Disconnect leaves the room and closes the event channel. It may be called
// on a client that never finished connecting.
func (c *RTVIClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasJoined := c.joined
	c.joined = false
	c.mu.Unlock()

	c.setState(StateDisconnecting)
	err := c.transport.Leave(ctx)
	if err != nil {
		c.setState(StateError)
	} else {
		c.setState(StateDisconnected)
	}

	if wasJoined {
		c.emit(NewEvent(EventDisconnected))
	}

	c.mu.Lock()
	c.closed = true
	c.botAudio = nil
	close(c.events)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	return nil
}

// EnableMic mutes or unmutes the microphone. Before the room is joined it
// only records the desired state.
func (c *RTVIClient) EnableMic(enabled bool) error {
	c.mu.Lock()
	joined := c.joined
	if !joined {
		c.micEnabled = enabled
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.transport.EnableMic(enabled); err != nil {
		return fmt.Errorf("failed to set mic enabled=%t: %w", enabled, err)
	}

	c.mu.Lock()
	c.micEnabled = enabled
	c.mu.Unlock()
	return nil
}

// Send writes a raw RTVI packet to the data channel.
func (c *RTVIClient) Send(payload []byte) error {
	c.mu.RLock()
	joined := c.joined
	c.mu.RUnlock()

	if !joined {
		return ErrNotConnected
	}
	return c.transport.SendData(payload)
}

// IsMicEnabled reports the current microphone state.
func (c *RTVIClient) IsMicEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.micEnabled
}

// Tracks returns a snapshot of the known tracks.
func (c *RTVIClient) Tracks() Tracks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Tracks{BotAudio: c.botAudio}
}

func (c *RTVIClient) fetchCredentials(ctx context.Context) (*Credentials, error) {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(c.config.ConnectEndpoint, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrCredentials, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentials, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrCredentials, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrCredentials, err)
	}
	if creds.URL == "" {
		creds.URL = creds.RoomURL
	}
	if creds.URL == "" || creds.Token == "" {
		return nil, fmt.Errorf("%w: response is missing url or token", ErrCredentials)
	}
	return &creds, nil
}

// Transport callbacks

// OnStateChange implements TransportHandler.
func (c *RTVIClient) OnStateChange(state TransportState) {
	c.setState(state)
}

// OnParticipantJoined implements TransportHandler.
func (c *RTVIClient) OnParticipantJoined(p Participant) {
	if p.Local {
		return
	}
	c.emit(NewEvent(EventBotConnected).WithParticipant(p))
}

// OnParticipantLeft implements TransportHandler.
func (c *RTVIClient) OnParticipantLeft(p Participant) {
	if p.Local {
		return
	}
	c.emit(NewEvent(EventBotDisconnected).WithParticipant(p))
}

// OnTrackStarted implements TransportHandler.
func (c *RTVIClient) OnTrackStarted(track Track, p Participant) {
	if !p.Local && track.Kind() == TrackKindAudio {
		c.mu.Lock()
		c.botAudio = track
		c.mu.Unlock()
	}
	c.emit(NewEvent(EventTrackStarted).WithTrack(track).WithParticipant(p))
}

// OnTrackStopped implements TransportHandler.
func (c *RTVIClient) OnTrackStopped(track Track, p Participant) {
	c.mu.Lock()
	if c.botAudio != nil && c.botAudio.ID() == track.ID() {
		c.botAudio = nil
	}
	c.mu.Unlock()
	c.emit(NewEvent(EventTrackStopped).WithTrack(track).WithParticipant(p))
}

// OnData implements TransportHandler. Packets that are not RTVI are ignored.
func (c *RTVIClient) OnData(payload []byte, from Participant) {
	msg, ok, err := rtvi.Decode(payload)
	if err != nil {
		c.emit(NewEvent(EventMessageError).WithParticipant(from).WithError(err))
		return
	}
	if !ok {
		slog.Debug("Ignoring non-RTVI data packet", slog.String("from", from.ID))
		return
	}

	switch msg.Type {
	case rtvi.TypeBotReady:
		d, err := msg.BotReady()
		if err != nil {
			c.emit(NewEvent(EventMessageError).WithError(err))
			return
		}
		c.setState(StateReady)
		ev := NewEvent(EventBotReady).WithParticipant(from)
		ev.BotVersion = d.Version
		c.emit(ev)

	case rtvi.TypeUserTranscript, rtvi.TypeBotTranscript:
		d, err := msg.Transcript()
		if err != nil {
			c.emit(NewEvent(EventMessageError).WithError(err))
			return
		}
		sender := SenderUser
		if msg.Type == rtvi.TypeBotTranscript {
			sender = SenderBot
		}
		c.emit(NewEvent(EventTranscript).WithTranscript(sender, d.Text, d.Final))

	case rtvi.TypeError, rtvi.TypeErrorResponse:
		d, err := msg.Error()
		if err != nil {
			c.emit(NewEvent(EventMessageError).WithError(err))
			return
		}
		c.emit(NewEvent(EventError).WithError(fmt.Errorf("bot error: %s", d.Error)))

	default:
		slog.Debug("Unhandled RTVI message", slog.String("type", string(msg.Type)))
	}
}

// OnDisconnected implements TransportHandler. It reports a disconnect the
// client did not ask for.
func (c *RTVIClient) OnDisconnected() {
	c.mu.Lock()
	wasJoined := c.joined
	c.joined = false
	c.botAudio = nil
	c.mu.Unlock()

	if !wasJoined {
		return
	}
	c.setState(StateDisconnected)
	c.emit(NewEvent(EventDisconnected))
}

func (c *RTVIClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *RTVIClient) setState(state TransportState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.emit(NewEvent(EventTransportState).WithState(state))
}

// emit sends an event to the Events channel if the client is still open.
func (c *RTVIClient) emit(event *Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.events <- event:
	default:
		slog.Warn("Events channel is full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}
