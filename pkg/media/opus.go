package media

import (
	"errors"
	"fmt"
	"os"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// ErrNotOpus is returned for microphone sources that are not Ogg/Opus.
var ErrNotOpus = errors.New("not an Ogg/Opus stream")

// OpusInfo describes an Ogg/Opus microphone source.
type OpusInfo struct {
	SampleRate uint32
	Channels   uint8
	PreSkip    uint16
}

// ProbeOpusFile checks that path holds an Ogg/Opus stream the transport can
// publish as-is and returns its header.
func ProbeOpusFile(path string) (*OpusInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone source: %w", err)
	}
	defer f.Close()

	_, header, err := oggreader.NewWith(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpus, path, err)
	}
	if header.Channels == 0 {
		return nil, fmt.Errorf("%w: %s has no channels", ErrNotOpus, path)
	}

	return &OpusInfo{
		SampleRate: header.SampleRate,
		Channels:   header.Channels,
		PreSkip:    header.PreSkip,
	}, nil
}
