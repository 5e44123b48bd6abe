// Package fake provides in-memory implementations of the realtime
// interfaces for tests.
package fake

import (
	"context"
	"io"
	"sync"

	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/pion/rtp"
)

// FakeTrack is a Track fed from a channel of packets.
type FakeTrack struct {
	id      string
	kind    realtime.TrackKind
	packets chan *rtp.Packet

	mu       sync.Mutex
	stopped  bool
	done     chan struct{}
	stopHits int
}

// NewFakeTrack creates a track with room for a handful of queued packets.
func NewFakeTrack(id string, kind realtime.TrackKind) *FakeTrack {
	return &FakeTrack{
		id:      id,
		kind:    kind,
		packets: make(chan *rtp.Packet, 16),
		done:    make(chan struct{}),
	}
}

func (t *FakeTrack) ID() string               { return t.id }
func (t *FakeTrack) Kind() realtime.TrackKind { return t.kind }

// Push queues a packet for ReadRTP.
func (t *FakeTrack) Push(pkt *rtp.Packet) {
	select {
	case t.packets <- pkt:
	case <-t.done:
	}
}

// ReadRTP returns the next queued packet, or io.EOF once stopped.
func (t *FakeTrack) ReadRTP() (*rtp.Packet, error) {
	select {
	case pkt := <-t.packets:
		return pkt, nil
	case <-t.done:
		return nil, io.EOF
	}
}

// Stop ends the track. Repeated calls are counted but harmless.
func (t *FakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopHits++
	if !t.stopped {
		t.stopped = true
		close(t.done)
	}
	return nil
}

// Stopped reports whether Stop has been called.
func (t *FakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// FakeTransport records calls and lets tests drive the handler.
type FakeTransport struct {
	InitErr  error
	JoinErr  error
	LeaveErr error
	SendErr  error
	MicErr   error

	mu         sync.Mutex
	handler    realtime.TransportHandler
	joinedURL  string
	token      string
	sent       [][]byte
	micEnabled bool
	leaveCalls int
}

// NewFakeTransport creates a new fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{micEnabled: true}
}

func (f *FakeTransport) InitDevices(ctx context.Context, enableMic, enableCam bool) error {
	return f.InitErr
}

func (f *FakeTransport) Join(ctx context.Context, url, token string, h realtime.TransportHandler) error {
	if f.JoinErr != nil {
		return f.JoinErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	f.joinedURL = url
	f.token = token
	return nil
}

func (f *FakeTransport) Leave(ctx context.Context) error {
	f.mu.Lock()
	f.leaveCalls++
	f.mu.Unlock()
	return f.LeaveErr
}

func (f *FakeTransport) SendData(payload []byte) error {
	if f.SendErr != nil {
		return f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *FakeTransport) EnableMic(enabled bool) error {
	if f.MicErr != nil {
		return f.MicErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.micEnabled = enabled
	return nil
}

// Handler returns the handler passed to Join.
func (f *FakeTransport) Handler() realtime.TransportHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

// Joined returns the URL and token passed to Join.
func (f *FakeTransport) Joined() (url, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joinedURL, f.token
}

// Sent returns every data packet sent so far.
func (f *FakeTransport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

// MicEnabled returns the last mic state applied.
func (f *FakeTransport) MicEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.micEnabled
}

// LeaveCalls returns how many times Leave was called.
func (f *FakeTransport) LeaveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaveCalls
}

// FakeClient is a scripted realtime.Client.
type FakeClient struct {
	InitErr       error
	ConnectErr    error
	DisconnectErr error
	MicErr        error

	// BotAudio is returned by Tracks
	BotAudio realtime.Track

	// DisconnectGate, when set, holds Disconnect until it is closed
	DisconnectGate chan struct{}

	events chan *realtime.Event

	mu              sync.Mutex
	micEnabled      bool
	closed          bool
	initCalls       int
	connectCalls    int
	disconnectCalls int
}

// NewFakeClient creates a client with the mic enabled.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		events:     make(chan *realtime.Event, 64),
		micEnabled: true,
	}
}

func (f *FakeClient) InitDevices(ctx context.Context) error {
	f.mu.Lock()
	f.initCalls++
	f.mu.Unlock()
	return f.InitErr
}

// Connect emits EventConnected on success, the way a real client does.
func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCalls++
	f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.Emit(realtime.NewEvent(realtime.EventConnected))
	return nil
}

// Disconnect closes the event channel even when DisconnectErr is set.
func (f *FakeClient) Disconnect(ctx context.Context) error {
	if f.DisconnectGate != nil {
		<-f.DisconnectGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return f.DisconnectErr
}

func (f *FakeClient) EnableMic(enabled bool) error {
	if f.MicErr != nil {
		return f.MicErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.micEnabled = enabled
	return nil
}

func (f *FakeClient) IsMicEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.micEnabled
}

func (f *FakeClient) Tracks() realtime.Tracks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return realtime.Tracks{BotAudio: f.BotAudio}
}

// SetBotAudio replaces the track reported by Tracks.
func (f *FakeClient) SetBotAudio(track realtime.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BotAudio = track
}

func (f *FakeClient) Events() <-chan *realtime.Event {
	return f.events
}

// Emit delivers an event unless the client has been disconnected.
func (f *FakeClient) Emit(ev *realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- ev
}

// Calls returns the number of InitDevices, Connect and Disconnect calls.
func (f *FakeClient) Calls() (initCalls, connectCalls, disconnectCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.connectCalls, f.disconnectCalls
}
