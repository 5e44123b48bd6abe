// Package session implements the voice session lifecycle controller. It owns
// at most one real-time client at a time, drives it through connect and
// disconnect, and maps the client's events onto view updates and the bot
// audio sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicechat/pkg/realtime"
)

// Config holds configuration for creating a Controller.
type Config struct {
	// BaseURL of the bot server
	BaseURL string

	// ConnectEndpoint is requested on BaseURL to obtain room credentials
	ConnectEndpoint string

	NewTransport TransportFactory
	NewClient    ClientFactory

	View View
	Sink AudioSink

	// SpeakingDelay overrides SpeakingIndicatorDelay
	SpeakingDelay time.Duration

	// InitialMode defaults to ModeChat
	InitialMode Mode
}

type sessionEvent struct {
	session *Session
	event   *realtime.Event
}

// Controller is the session lifecycle state machine.
type Controller struct {
	config Config
	view   View
	sink   AudioSink
	delay  time.Duration

	events chan sessionEvent

	mu       sync.Mutex
	state    State
	mode     Mode
	session  *Session
	controls Controls
}

// New creates a Controller in the Idle state.
func New(config Config) (*Controller, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.NewTransport == nil {
		return nil, fmt.Errorf("transport factory is required")
	}
	if config.NewClient == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	if config.View == nil {
		return nil, fmt.Errorf("view is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("audio sink is required")
	}

	delay := config.SpeakingDelay
	if delay == 0 {
		delay = SpeakingIndicatorDelay
	}

	return &Controller{
		config:   config,
		view:     config.View,
		sink:     config.Sink,
		delay:    delay,
		events:   make(chan sessionEvent, 256),
		state:    StateIdle,
		mode:     config.InitialMode,
		controls: idleControls(),
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// HasSession reports whether a session is live.
func (c *Controller) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Controls returns the current control state.
func (c *Controller) Controls() Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls
}

// Run renders the initial view and dispatches client events in the order
// they were emitted until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.view.ShowMode(c.mode)
	c.view.SetStatus(StatusDisconnected)
	c.view.SetControls(c.controls)
	c.view.ClearTranscript()
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case se := <-c.events:
			c.handle(se)
		}
	}
}

// Connect starts a new session. It returns once the client has connected;
// the Connected state follows with the client's connected event.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != ModeVoice {
		c.mu.Unlock()
		return ErrWrongMode
	}
	if c.state == StateConnecting || c.state == StateDisconnecting {
		c.mu.Unlock()
		return ErrSessionActive
	}
	stale := c.session
	if stale != nil && !stale.remoteClosed {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if stale != nil {
		c.sink.Release()
	}
	c.session = nil
	c.state = StateConnecting
	c.setControlsLocked(Controls{MuteLabel: MuteLabel})
	c.mu.Unlock()

	if stale != nil {
		// the server already dropped it; just close the old client
		if err := stale.client.Disconnect(ctx); err != nil {
			slog.Debug("Failed to close stale client", slog.String("error", err.Error()))
		}
	}

	slog.Info("Connecting voice session", slog.String("base_url", c.config.BaseURL))

	transport, err := c.config.NewTransport()
	if err != nil {
		return c.abortConnect(ctx, nil, fmt.Errorf("%w: failed to create transport: %w", ErrConnect, err))
	}

	client, err := c.config.NewClient(transport, realtime.Config{
		BaseURL:         c.config.BaseURL,
		ConnectEndpoint: c.config.ConnectEndpoint,
		EnableMic:       true,
		EnableCam:       false,
	})
	if err != nil {
		return c.abortConnect(ctx, nil, fmt.Errorf("%w: failed to create client: %w", ErrConnect, err))
	}

	sess := &Session{client: client, micEnabled: true}
	c.mu.Lock()
	if c.mode != ModeVoice || c.state != StateConnecting {
		c.mu.Unlock()
		return c.cancelConnect(ctx, client)
	}
	c.session = sess
	c.mu.Unlock()

	go c.forward(sess)

	slog.Info("Initializing devices...")
	if err := client.InitDevices(ctx); err != nil {
		return c.abortConnect(ctx, sess, fmt.Errorf("%w: %w", ErrDeviceInit, err))
	}

	slog.Info("Connecting to bot...")
	if err := client.Connect(ctx); err != nil {
		return c.abortConnect(ctx, sess, fmt.Errorf("%w: %w", ErrConnect, err))
	}

	c.mu.Lock()
	superseded := c.session != sess
	c.mu.Unlock()
	if superseded {
		slog.Info("Session was torn down while connecting")
		return ErrConnectAborted
	}

	slog.Info("Connection complete")
	return nil
}

// cancelConnect drops a client built for a connect attempt that the mode
// switch overtook. The controller goes back to Idle.
func (c *Controller) cancelConnect(ctx context.Context, client realtime.Client) error {
	if err := client.Disconnect(ctx); err != nil {
		slog.Debug("Failed to close unused client", slog.String("error", err.Error()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := ErrConnectAborted
	if c.mode != ModeVoice {
		err = ErrWrongMode
	}
	if c.state == StateConnecting && c.session == nil {
		c.state = StateIdle
		c.view.SetStatus(StatusDisconnected)
		c.setControlsLocked(idleControls())
	}
	slog.Info("Connect cancelled", slog.String("mode", c.mode.String()))
	return err
}

// abortConnect moves to Error after a failed connect. The half-formed client
// is disconnected best-effort; a failure there is only logged.
func (c *Controller) abortConnect(ctx context.Context, sess *Session, err error) error {
	slog.Error("Error connecting", slog.String("error", err.Error()))

	if sess != nil {
		if derr := sess.client.Disconnect(ctx); derr != nil {
			slog.Warn("Error during disconnect", slog.String("error", derr.Error()))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// a Disconnect or mode switch already tore this attempt down
	if sess != nil && c.session != sess {
		return err
	}
	if sess == nil && (c.session != nil || c.state != StateConnecting) {
		return err
	}
	c.session = nil
	c.state = StateError
	c.view.SetStatus(StatusError)
	c.setControlsLocked(idleControls())
	return err
}

// Disconnect tears down the session. With no session it does nothing.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	if sess == nil || c.state == StateDisconnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnecting
	c.setControlsLocked(Controls{MuteLabel: c.controls.MuteLabel})
	c.mu.Unlock()

	err := sess.client.Disconnect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	// released on failure too; a client that failed to leave may still
	// hold transport resources
	if c.session == sess {
		c.session = nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDisconnect, err)
		slog.Error("Error disconnecting", slog.String("error", err.Error()))
	}
	if c.session != nil || c.state != StateDisconnecting {
		// a newer connect owns the state now
		return err
	}

	c.state = StateIdle
	c.sink.Release()

	if err != nil {
		c.view.SetStatus(StatusError)
		c.setControlsLocked(idleControls())
		return err
	}

	c.view.SetStatus(StatusDisconnected)
	c.setControlsLocked(idleControls())
	c.view.ClearTranscript()
	c.view.SetSpeaking(false)
	c.view.ResetHint()
	slog.Info("Transcript history cleared")
	return nil
}

// SwitchMode changes the visible mode. Leaving voice tears the session down
// first. Entering voice never connects.
func (c *Controller) SwitchMode(ctx context.Context, mode Mode) error {
	c.mu.Lock()
	if c.mode == mode {
		c.mu.Unlock()
		return nil
	}
	// the mode flips first so a connect in flight sees it; the view flips
	// only after teardown
	c.mode = mode
	live := c.session != nil
	c.mu.Unlock()

	var err error
	if mode == ModeChat && live {
		err = c.Disconnect(ctx)
		if err != nil {
			slog.Warn("Session teardown failed during mode switch", slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	c.view.ShowMode(c.mode)
	c.mu.Unlock()

	slog.Info("Switched mode", slog.String("mode", mode.String()))
	return err
}

// ToggleMute flips the microphone of the live session.
func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}

	client := c.session.client
	enabled := client.IsMicEnabled()
	if err := client.EnableMic(!enabled); err != nil {
		slog.Error("Failed to toggle microphone", slog.String("error", err.Error()))
		return err
	}
	c.session.micEnabled = !enabled

	controls := c.controls
	if c.session.micEnabled {
		controls.MuteLabel = MuteLabel
		slog.Info("Microphone enabled")
	} else {
		controls.MuteLabel = UnmuteLabel
		slog.Info("Microphone disabled")
	}
	c.setControlsLocked(controls)
	return nil
}

// forward copies the session's events to the controller until the client
// closes its channel.
func (c *Controller) forward(sess *Session) {
	for ev := range sess.client.Events() {
		c.events <- sessionEvent{session: sess, event: ev}
	}
}

func (c *Controller) handle(se sessionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if se.session != c.session {
		slog.Debug("Discarding event from previous client", slog.String("event_type", string(se.event.Type)))
		return
	}

	ev := se.event
	switch ev.Type {
	case realtime.EventConnected:
		c.onConnectedLocked()
	case realtime.EventDisconnected:
		c.onDisconnectedLocked()
	case realtime.EventTransportState:
		c.onTransportStateLocked(ev.State)
	case realtime.EventBotConnected:
		slog.Info("Bot connected", slog.String("participant", ev.Participant.ID))
		c.flashSpeakingLocked()
	case realtime.EventBotDisconnected:
		slog.Info("Bot disconnected", slog.String("participant", ev.Participant.ID))
	case realtime.EventBotReady:
		slog.Info("Bot ready", slog.String("version", ev.BotVersion))
		c.discoverTracksLocked()
	case realtime.EventTranscript:
		c.onTranscriptLocked(ev)
	case realtime.EventTrackStarted:
		c.onTrackStartedLocked(ev)
	case realtime.EventTrackStopped:
		slog.Info("Track stopped event",
			slog.String("kind", trackKind(ev.Track)),
			slog.String("participant", participantName(ev.Participant)))
	case realtime.EventMessageError:
		slog.Warn("Message error", slog.Any("error", ev.Err))
	case realtime.EventError:
		slog.Error("Client error", slog.Any("error", ev.Err))
	default:
		slog.Debug("Unhandled client event", slog.String("event_type", string(ev.Type)))
	}
}

func (c *Controller) onConnectedLocked() {
	c.state = StateConnected
	c.view.SetStatus(StatusConnected)

	label := MuteLabel
	if !c.session.micEnabled {
		label = UnmuteLabel
	}
	c.setControlsLocked(Controls{
		DisconnectEnabled: true,
		MuteEnabled:       true,
		MuteLabel:         label,
	})
	slog.Info("Client connected")
}

// onDisconnectedLocked only updates the status and controls. Teardown is
// left to Disconnect or the next Connect.
func (c *Controller) onDisconnectedLocked() {
	c.session.remoteClosed = true
	if c.state == StateConnected || c.state == StateConnecting {
		c.state = StateIdle
	}
	c.view.SetStatus(StatusDisconnected)

	controls := c.controls
	controls.ConnectEnabled = true
	controls.DisconnectEnabled = false
	c.setControlsLocked(controls)
	slog.Info("Client disconnected")
}

func (c *Controller) onTransportStateLocked(state realtime.TransportState) {
	c.view.SetStatus("Transport: " + string(state))
	slog.Info("Transport state changed", slog.String("state", string(state)))
	if state == realtime.StateReady {
		c.discoverTracksLocked()
	}
}

func (c *Controller) onTranscriptLocked(ev *realtime.Event) {
	switch ev.Sender {
	case realtime.SenderUser:
		if !ev.Final {
			return
		}
		slog.Info("User: " + ev.Text)
		c.view.AppendTranscript(Transcript{Sender: realtime.SenderUser, Text: ev.Text})
	case realtime.SenderBot:
		slog.Info("Bot: " + ev.Text)
		c.view.AppendTranscript(Transcript{Sender: realtime.SenderBot, Text: ev.Text})
		c.flashSpeakingLocked()
	}
}

func (c *Controller) onTrackStartedLocked(ev *realtime.Event) {
	if ev.Track == nil {
		return
	}
	slog.Info("Track started event",
		slog.String("kind", trackKind(ev.Track)),
		slog.String("participant", participantName(ev.Participant)))

	if !ev.Participant.Local && ev.Track.Kind() == realtime.TrackKindAudio {
		c.bindLocked(ev.Track)
	}
}

// discoverTracksLocked binds the bot audio track the client already knows of.
func (c *Controller) discoverTracksLocked() {
	if track := c.session.client.Tracks().BotAudio; track != nil {
		c.bindLocked(track)
	}
}

func (c *Controller) bindLocked(track realtime.Track) {
	bound, err := c.sink.Bind(track)
	if err != nil {
		slog.Debug("Failed to bind audio track", slog.String("track_id", track.ID()), slog.String("error", err.Error()))
		return
	}
	if bound {
		slog.Info("Setting up audio track", slog.String("track_id", track.ID()))
	}
}

// flashSpeakingLocked shows the speaking indicator and hides it after the
// delay. Every call arms its own timer.
func (c *Controller) flashSpeakingLocked() {
	c.view.SetSpeaking(true)
	time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.view.SetSpeaking(false)
	})
}

func (c *Controller) setControlsLocked(controls Controls) {
	c.controls = controls
	c.view.SetControls(controls)
}

func trackKind(t realtime.Track) string {
	if t == nil {
		return "unknown"
	}
	return string(t.Kind())
}

func participantName(p realtime.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	if p.ID != "" {
		return p.ID
	}
	return "unknown"
}

// IsUserError reports whether err came from a user action that was not
// allowed in the current state rather than from the client.
func IsUserError(err error) bool {
	return errors.Is(err, ErrWrongMode) || errors.Is(err, ErrSessionActive) ||
		errors.Is(err, ErrNoSession) || errors.Is(err, ErrConnectAborted)
}
