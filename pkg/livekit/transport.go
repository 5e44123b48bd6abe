// Package livekit implements realtime.Transport on top of a LiveKit room.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chriscow/voicechat/pkg/media"
	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// ErrAlreadyJoined is returned by Join on a transport that is in a room.
var ErrAlreadyJoined = errors.New("transport already joined a room")

// Config contains configuration for the LiveKit transport.
type Config struct {
	// MicFile is an Ogg/Opus file published as the local microphone. When
	// empty the client joins listen-only.
	MicFile string

	// MicTrackName is the name of the published microphone track
	MicTrackName string
}

// Transport joins a LiveKit room and reports room callbacks to a
// realtime.TransportHandler.
type Transport struct {
	config Config

	mu         sync.RWMutex
	room       *lksdk.Room
	handler    realtime.TransportHandler
	publishMic bool
	micMuted   bool
	micPub     *lksdk.LocalTrackPublication
	tracks     map[string]*remoteTrack
	leaving    bool
}

// New creates a transport. Nothing touches the network until Join.
func New(config Config) *Transport {
	if config.MicTrackName == "" {
		config.MicTrackName = "microphone"
	}
	return &Transport{
		config: config,
		tracks: make(map[string]*remoteTrack),
	}
}

// InitDevices validates the microphone source. There is no camera support;
// a camera request is ignored.
func (t *Transport) InitDevices(ctx context.Context, enableMic, enableCam bool) error {
	if enableCam {
		slog.Debug("Camera requested but not supported, ignoring")
	}

	publish := false
	if enableMic {
		if t.config.MicFile == "" {
			slog.Info("No microphone source configured, joining listen-only")
		} else {
			info, err := media.ProbeOpusFile(t.config.MicFile)
			if err != nil {
				return err
			}
			slog.Info("Microphone source ready",
				slog.String("file", t.config.MicFile),
				slog.Int("channels", int(info.Channels)),
				slog.Int("sample_rate", int(info.SampleRate)))
			publish = true
		}
	}

	t.mu.Lock()
	t.publishMic = publish
	t.mu.Unlock()
	return nil
}

// Join connects to the room at url. It honours ctx while the SDK dials; a
// room that finishes connecting after ctx is done is disconnected at once.
func (t *Transport) Join(ctx context.Context, url, token string, h realtime.TransportHandler) error {
	if url == "" {
		return fmt.Errorf("URL is required")
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required")
	}

	t.mu.Lock()
	if t.room != nil {
		t.mu.Unlock()
		return ErrAlreadyJoined
	}
	t.handler = h
	t.leaving = false
	t.mu.Unlock()

	type result struct {
		room *lksdk.Room
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(url, token, t.roomCallback())
		ch <- result{room: room, err: err}
	}()

	var room *lksdk.Room
	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("failed to connect to room: %w", r.err)
		}
		room = r.room
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return ctx.Err()
	}

	t.mu.Lock()
	t.room = room
	publish := t.publishMic
	t.mu.Unlock()

	slog.Info("Connected to LiveKit room",
		slog.String("room_name", room.Name()),
		slog.String("url", url))

	if publish {
		if err := t.publishMicrophone(room); err != nil {
			room.Disconnect()
			t.mu.Lock()
			t.room = nil
			t.mu.Unlock()
			return err
		}
	}
	return nil
}

func (t *Transport) publishMicrophone(room *lksdk.Room) error {
	track, err := lksdk.NewLocalFileTrack(t.config.MicFile)
	if err != nil {
		return fmt.Errorf("failed to create microphone track: %w", err)
	}

	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   t.config.MicTrackName,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return fmt.Errorf("failed to publish microphone track: %w", err)
	}

	t.mu.Lock()
	t.micPub = pub
	muted := t.micMuted
	t.mu.Unlock()

	if muted {
		pub.SetMuted(true)
	}
	slog.Info("Published microphone track", slog.String("track_sid", pub.SID()))
	return nil
}

// Leave disconnects from the room.
func (t *Transport) Leave(ctx context.Context) error {
	t.mu.Lock()
	room := t.room
	t.room = nil
	t.micPub = nil
	t.leaving = true
	t.tracks = make(map[string]*remoteTrack)
	t.mu.Unlock()

	if room == nil {
		return nil
	}

	room.Disconnect()
	slog.Info("Disconnected from LiveKit room")
	return nil
}

// SendData publishes a reliable data packet.
func (t *Transport) SendData(payload []byte) error {
	t.mu.RLock()
	room := t.room
	t.mu.RUnlock()

	if room == nil {
		return realtime.ErrNotConnected
	}
	if err := room.LocalParticipant.PublishData(payload, lksdk.WithDataPublishReliable(true)); err != nil {
		return fmt.Errorf("failed to publish data: %w", err)
	}
	return nil
}

// EnableMic mutes or unmutes the published microphone. Without a published
// microphone only the desired state is recorded.
func (t *Transport) EnableMic(enabled bool) error {
	t.mu.Lock()
	t.micMuted = !enabled
	pub := t.micPub
	t.mu.Unlock()

	if pub != nil {
		pub.SetMuted(!enabled)
	}
	return nil
}

// MicMuted reports the desired microphone state.
func (t *Transport) MicMuted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.micMuted
}

func (t *Transport) roomCallback() *lksdk.RoomCallback {
	cb := lksdk.NewRoomCallback()
	cb.OnParticipantConnected = t.onParticipantConnected
	cb.OnParticipantDisconnected = t.onParticipantDisconnected
	cb.OnDisconnected = t.onDisconnected
	cb.OnReconnecting = func() { t.dispatch(func(h realtime.TransportHandler) { h.OnStateChange(realtime.StateConnecting) }) }
	cb.OnReconnected = func() { t.dispatch(func(h realtime.TransportHandler) { h.OnStateChange(realtime.StateConnected) }) }
	cb.ParticipantCallback.OnTrackSubscribed = t.onTrackSubscribed
	cb.ParticipantCallback.OnTrackUnsubscribed = t.onTrackUnsubscribed
	cb.ParticipantCallback.OnDataPacket = t.onDataPacket
	return cb
}

// Event handlers

func (t *Transport) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	slog.Info("Participant connected",
		slog.String("identity", rp.Identity()),
		slog.String("sid", rp.SID()))
	t.dispatch(func(h realtime.TransportHandler) { h.OnParticipantJoined(participantOf(rp)) })
}

func (t *Transport) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	slog.Info("Participant disconnected",
		slog.String("identity", rp.Identity()),
		slog.String("sid", rp.SID()))
	t.dispatch(func(h realtime.TransportHandler) { h.OnParticipantLeft(participantOf(rp)) })
}

func (t *Transport) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	rt := &remoteTrack{track: track, pub: pub}

	t.mu.Lock()
	t.tracks[pub.SID()] = rt
	t.mu.Unlock()

	slog.Info("Track subscribed",
		slog.String("participant", rp.Identity()),
		slog.String("track_sid", pub.SID()),
		slog.String("track_kind", string(rt.Kind())))
	t.dispatch(func(h realtime.TransportHandler) { h.OnTrackStarted(rt, participantOf(rp)) })
}

func (t *Transport) onTrackUnsubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	t.mu.Lock()
	rt, ok := t.tracks[pub.SID()]
	delete(t.tracks, pub.SID())
	t.mu.Unlock()

	if !ok {
		rt = &remoteTrack{track: track, pub: pub}
	}
	t.dispatch(func(h realtime.TransportHandler) { h.OnTrackStopped(rt, participantOf(rp)) })
}

func (t *Transport) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	packet, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}

	from := realtime.Participant{ID: params.SenderIdentity}
	if params.Sender != nil {
		from = participantOf(params.Sender)
	}
	t.dispatch(func(h realtime.TransportHandler) { h.OnData(packet.Payload, from) })
}

func (t *Transport) onDisconnected() {
	t.mu.Lock()
	leaving := t.leaving
	t.room = nil
	t.micPub = nil
	t.mu.Unlock()

	// a local Leave reports its own disconnect
	if leaving {
		return
	}
	slog.Warn("Disconnected from LiveKit room by server")
	t.dispatch(func(h realtime.TransportHandler) { h.OnDisconnected() })
}

func (t *Transport) dispatch(fn func(h realtime.TransportHandler)) {
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()

	if h != nil {
		fn(h)
	}
}

func participantOf(rp *lksdk.RemoteParticipant) realtime.Participant {
	return realtime.Participant{ID: rp.Identity(), Name: rp.Name()}
}

// remoteTrack adapts a subscribed LiveKit track to realtime.Track.
type remoteTrack struct {
	track *webrtc.TrackRemote
	pub   *lksdk.RemoteTrackPublication
}

func (r *remoteTrack) ID() string {
	return r.pub.SID()
}

func (r *remoteTrack) Kind() realtime.TrackKind {
	return kindOf(r.track.Kind())
}

func (r *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	return pkt, err
}

// Stop unsubscribes from the track, which ends ReadRTP.
func (r *remoteTrack) Stop() error {
	return r.pub.SetSubscribed(false)
}

func kindOf(k webrtc.RTPCodecType) realtime.TrackKind {
	if k == webrtc.RTPCodecTypeAudio {
		return realtime.TrackKindAudio
	}
	return realtime.TrackKindVideo
}
