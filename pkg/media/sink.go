// Package media owns the bot audio output: a single-slot sink that drains
// the RTP packets of the bound remote track into a recorder.
package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	// Opus over WebRTC always runs at 48kHz. Two channels keeps stereo
	// bot voices intact.
	opusSampleRate = 48000
	opusChannels   = 2
)

// RTPWriter receives the packets of the bound track.
type RTPWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// WriterFactory opens a writer for a newly bound track.
type WriterFactory func(trackID string) (RTPWriter, error)

// Sink is the single bot audio output. At most one track is bound at a time.
type Sink struct {
	newWriter WriterFactory

	mu    sync.Mutex
	track realtime.Track
	stop  chan struct{}
	done  chan struct{}
	binds int

	packets atomic.Int64
}

// Option configures a Sink.
type Option func(*Sink)

// WithWriterFactory sets the writer used for each bound track.
func WithWriterFactory(f WriterFactory) Option {
	return func(s *Sink) {
		s.newWriter = f
	}
}

// WithOggRecording records every bound track to <dir>/<time>-<trackID>.ogg.
func WithOggRecording(dir string) Option {
	return WithWriterFactory(func(trackID string) (RTPWriter, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
		name := fmt.Sprintf("%s-%s.ogg", time.Now().Format("20060102-150405"), trackID)
		w, err := oggwriter.New(filepath.Join(dir, name), opusSampleRate, opusChannels)
		if err != nil {
			return nil, fmt.Errorf("failed to create ogg writer: %w", err)
		}
		return w, nil
	})
}

// NewOggWriter records Opus packets into an Ogg stream on w.
func NewOggWriter(w io.Writer) (RTPWriter, error) {
	ow, err := oggwriter.NewWith(w, opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("failed to create ogg writer: %w", err)
	}
	return ow, nil
}

// NewSink creates an empty sink. Without options packets are discarded.
func NewSink(opts ...Option) *Sink {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	if s.newWriter == nil {
		s.newWriter = func(string) (RTPWriter, error) { return discard{}, nil }
	}
	return s
}

// Bind attaches track to the sink. Binding the track that is already bound
// is a no-op and returns false. Binding a different track releases the
// previous one first.
func (s *Sink) Bind(track realtime.Track) (bool, error) {
	if track == nil {
		return false, errors.New("track is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track != nil && s.track.ID() == track.ID() {
		return false, nil
	}
	s.releaseLocked()

	w, err := s.newWriter(track.ID())
	if err != nil {
		return false, err
	}

	s.track = track
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.binds++

	go s.pump(track, w, s.stop, s.done)

	slog.Info("Bound bot audio track", slog.String("track_id", track.ID()))
	return true, nil
}

// Release stops the bound track, if any, and empties the sink.
func (s *Sink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// BoundID returns the ID of the bound track, or "" when empty.
func (s *Sink) BoundID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return ""
	}
	return s.track.ID()
}

// Empty reports whether no track is bound.
func (s *Sink) Empty() bool {
	return s.BoundID() == ""
}

// Binds returns how many binds took effect over the sink's lifetime.
func (s *Sink) Binds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binds
}

// Packets returns the number of packets written across all tracks.
func (s *Sink) Packets() int64 {
	return s.packets.Load()
}

func (s *Sink) releaseLocked() {
	if s.track == nil {
		return
	}

	close(s.stop)
	if err := s.track.Stop(); err != nil {
		slog.Debug("Failed to stop track", slog.String("track_id", s.track.ID()), slog.String("error", err.Error()))
	}
	slog.Info("Released bot audio track", slog.String("track_id", s.track.ID()))

	s.track = nil
	s.stop = nil
	s.done = nil
}

// pump drains the track until it ends or the sink lets go of it.
func (s *Sink) pump(track realtime.Track, w RTPWriter, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("Failed to close audio writer", slog.String("error", err.Error()))
		}
	}()

	for {
		pkt, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("Audio track read failed", slog.String("track_id", track.ID()), slog.String("error", err.Error()))
			}
			return
		}

		select {
		case <-stop:
			return
		default:
		}

		if err := w.WriteRTP(pkt); err != nil {
			slog.Debug("Dropping audio packet", slog.String("error", err.Error()))
			continue
		}
		if n := s.packets.Add(1); n%500 == 0 {
			slog.Debug("Bot audio packets received", slog.Int64("count", n))
		}
	}
}

type discard struct{}

func (discard) WriteRTP(*rtp.Packet) error { return nil }
func (discard) Close() error               { return nil }
