package media

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/chriscow/voicechat/pkg/realtime/fake"
	"github.com/matryer/is"
	"github.com/pion/rtp"
)

type recordingWriter struct {
	mu      sync.Mutex
	packets []*rtp.Packet
	closed  bool
}

func (w *recordingWriter) WriteRTP(p *rtp.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.packets = append(w.packets, p)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.packets)
}

func (w *recordingWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func opusPacket(seq uint16) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: seq, Timestamp: uint32(seq) * 960},
		Payload: []byte{0xfc, 0xff, 0xfe},
	}
}

func TestSink_BindIsIdempotent(t *testing.T) {
	is := is.New(t)

	var opened int
	sink := NewSink(WithWriterFactory(func(string) (RTPWriter, error) {
		opened++
		return &recordingWriter{}, nil
	}))

	track := fake.NewFakeTrack("TR_bot", realtime.TrackKindAudio)
	for i := 0; i < 5; i++ {
		bound, err := sink.Bind(track)
		is.NoErr(err)
		is.Equal(bound, i == 0) // only the first bind takes effect
	}

	// a different value with the same ID is the same track
	bound, err := sink.Bind(fake.NewFakeTrack("TR_bot", realtime.TrackKindAudio))
	is.NoErr(err)
	is.True(!bound)

	is.Equal(sink.Binds(), 1)
	is.Equal(opened, 1)
	is.Equal(sink.BoundID(), "TR_bot")
	is.True(!track.Stopped())

	sink.Release()
}

func TestSink_RebindStopsPrevious(t *testing.T) {
	is := is.New(t)

	first := fake.NewFakeTrack("TR_1", realtime.TrackKindAudio)
	second := fake.NewFakeTrack("TR_2", realtime.TrackKindAudio)

	sink := NewSink()
	_, err := sink.Bind(first)
	is.NoErr(err)
	bound, err := sink.Bind(second)
	is.NoErr(err)
	is.True(bound)

	is.True(first.Stopped())   // previous track should be stopped
	is.True(!second.Stopped()) // new track stays live
	is.Equal(sink.BoundID(), "TR_2")
	is.Equal(sink.Binds(), 2)

	sink.Release()
}

func TestSink_PumpAndRelease(t *testing.T) {
	is := is.New(t)

	w := &recordingWriter{}
	sink := NewSink(WithWriterFactory(func(string) (RTPWriter, error) { return w, nil }))

	track := fake.NewFakeTrack("TR_bot", realtime.TrackKindAudio)
	_, err := sink.Bind(track)
	is.NoErr(err)

	sink.mu.Lock()
	done := sink.done
	sink.mu.Unlock()

	for i := 0; i < 3; i++ {
		track.Push(opusPacket(uint16(i)))
	}
	waitFor(t, func() bool { return w.count() == 3 })
	is.Equal(sink.Packets(), int64(3))

	sink.Release()
	is.True(sink.Empty())
	is.True(track.Stopped())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not exit after release")
	}
	is.True(w.isClosed()) // writer closed when the pump exits

	// releasing an empty sink is harmless
	sink.Release()
}

func TestSink_WriterFactoryError(t *testing.T) {
	is := is.New(t)

	boom := errors.New("disk full")
	sink := NewSink(WithWriterFactory(func(string) (RTPWriter, error) { return nil, boom }))

	bound, err := sink.Bind(fake.NewFakeTrack("TR_bot", realtime.TrackKindAudio))
	is.True(errors.Is(err, boom))
	is.True(!bound)
	is.True(sink.Empty())
}

func TestSink_BindNil(t *testing.T) {
	is := is.New(t)

	_, err := NewSink().Bind(nil)
	is.True(err != nil)
}

func TestSink_OggRecording(t *testing.T) {
	is := is.New(t)

	dir := t.TempDir()
	sink := NewSink(WithOggRecording(dir))

	track := fake.NewFakeTrack("TR_bot", realtime.TrackKindAudio)
	_, err := sink.Bind(track)
	is.NoErr(err)

	track.Push(opusPacket(1))
	track.Push(opusPacket(2))
	waitFor(t, func() bool { return sink.Packets() == 2 })

	sink.mu.Lock()
	done := sink.done
	sink.mu.Unlock()
	sink.Release()
	<-done

	matches, err := filepath.Glob(filepath.Join(dir, "*-TR_bot.ogg"))
	is.NoErr(err)
	is.Equal(len(matches), 1)

	info, err := ProbeOpusFile(matches[0])
	is.NoErr(err)
	is.Equal(info.SampleRate, uint32(48000))
	is.Equal(info.Channels, uint8(2))
}

func TestNewOggWriter(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	w, err := NewOggWriter(&buf)
	is.NoErr(err)
	is.NoErr(w.WriteRTP(opusPacket(1)))
	is.NoErr(w.Close())
	is.True(bytes.HasPrefix(buf.Bytes(), []byte("OggS")))
}

func TestProbeOpusFile(t *testing.T) {
	is := is.New(t)

	_, err := ProbeOpusFile(filepath.Join(t.TempDir(), "missing.ogg"))
	is.True(errors.Is(err, os.ErrNotExist))

	bogus := filepath.Join(t.TempDir(), "mic.ogg")
	is.NoErr(os.WriteFile(bogus, []byte("RIFF....WAVEfmt "), 0o644))
	_, err = ProbeOpusFile(bogus)
	is.True(errors.Is(err, ErrNotOpus))
}
