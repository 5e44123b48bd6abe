package livekit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chriscow/voicechat/pkg/media"
	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/chriscow/voicechat/pkg/realtime/fake"
	"github.com/matryer/is"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

func writeOpusFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic.ogg")
	w, err := oggwriter.New(path, 48000, 1)
	if err != nil {
		t.Fatalf("failed to create ogg file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close ogg file: %v", err)
	}
	return path
}

func TestTransport_InitDevices(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		micFile     func(t *testing.T) string
		enableMic   bool
		wantErr     error
		wantPublish bool
	}{
		{
			name:        "valid opus file",
			micFile:     writeOpusFile,
			enableMic:   true,
			wantPublish: true,
		},
		{
			name:      "no mic source is listen-only",
			micFile:   func(*testing.T) string { return "" },
			enableMic: true,
		},
		{
			name:      "mic disabled skips the file",
			micFile:   func(*testing.T) string { return "/does/not/exist.ogg" },
			enableMic: false,
		},
		{
			name: "not an opus file",
			micFile: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "mic.wav")
				if err := os.WriteFile(path, []byte("RIFF0000WAVE"), 0o644); err != nil {
					t.Fatal(err)
				}
				return path
			},
			enableMic: true,
			wantErr:   media.ErrNotOpus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			tr := New(Config{MicFile: tt.micFile(t)})
			err := tr.InitDevices(ctx, tt.enableMic, true)
			if tt.wantErr != nil {
				is.True(errors.Is(err, tt.wantErr))
				return
			}
			is.NoErr(err)
			is.Equal(tr.publishMic, tt.wantPublish)
		})
	}
}

func TestTransport_JoinValidation(t *testing.T) {
	ctx := context.Background()
	h := realtime.TransportHandler(nil)

	client, err := realtime.NewClient(fake.NewFakeTransport(), realtime.Config{BaseURL: "http://localhost"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		url     string
		token   string
		handler realtime.TransportHandler
	}{
		{name: "missing URL", token: "tok", handler: client},
		{name: "missing token", url: "wss://example.livekit.cloud", handler: client},
		{name: "missing handler", url: "wss://example.livekit.cloud", token: "tok", handler: h},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			err := New(Config{}).Join(ctx, tt.url, tt.token, tt.handler)
			is.True(err != nil)
		})
	}
}

func TestTransport_NotJoined(t *testing.T) {
	is := is.New(t)

	tr := New(Config{})
	is.Equal(tr.config.MicTrackName, "microphone") // default track name

	is.True(errors.Is(tr.SendData([]byte(`{}`)), realtime.ErrNotConnected))
	is.NoErr(tr.Leave(context.Background())) // leaving without a room is a no-op

	// mute state is remembered until a microphone is published
	is.NoErr(tr.EnableMic(false))
	is.True(tr.MicMuted())
	is.NoErr(tr.EnableMic(true))
	is.True(!tr.MicMuted())
}

func TestTransport_DispatchWithoutHandler(t *testing.T) {
	tr := New(Config{})
	called := false
	tr.dispatch(func(realtime.TransportHandler) { called = true })
	if called {
		t.Error("dispatch should not call through without a handler")
	}
}

func TestTransport_RemoteDisconnectReachesHandler(t *testing.T) {
	is := is.New(t)

	h := &recordingHandler{}
	tr := New(Config{})
	tr.handler = h

	tr.onDisconnected()
	is.Equal(h.disconnects, 1)

	// after a local leave the callback is swallowed
	is.NoErr(tr.Leave(context.Background()))
	tr.onDisconnected()
	is.Equal(h.disconnects, 1)
}

func TestKindOf(t *testing.T) {
	is := is.New(t)
	is.Equal(kindOf(webrtc.RTPCodecTypeAudio), realtime.TrackKindAudio)
	is.Equal(kindOf(webrtc.RTPCodecTypeVideo), realtime.TrackKindVideo)
}

type recordingHandler struct {
	disconnects int
}

func (h *recordingHandler) OnStateChange(realtime.TransportState)               {}
func (h *recordingHandler) OnParticipantJoined(realtime.Participant)            {}
func (h *recordingHandler) OnParticipantLeft(realtime.Participant)              {}
func (h *recordingHandler) OnTrackStarted(realtime.Track, realtime.Participant) {}
func (h *recordingHandler) OnTrackStopped(realtime.Track, realtime.Participant) {}
func (h *recordingHandler) OnData([]byte, realtime.Participant)                 {}
func (h *recordingHandler) OnDisconnected()                                     { h.disconnects++ }
