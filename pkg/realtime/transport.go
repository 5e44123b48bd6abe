package realtime

import "context"

// Transport is the networking layer a Client uses to reach the bot. The
// LiveKit implementation lives in pkg/livekit.
type Transport interface {
	// InitDevices prepares local media. It is called before Join.
	InitDevices(ctx context.Context, enableMic, enableCam bool) error

	// Join connects to the room and starts delivering callbacks to h.
	Join(ctx context.Context, url, token string, h TransportHandler) error

	// Leave disconnects from the room. Calling Leave on a transport that
	// never joined is a no-op.
	Leave(ctx context.Context) error

	// SendData sends a reliable data packet to the other participants.
	SendData(payload []byte) error

	// EnableMic mutes or unmutes the local microphone track.
	EnableMic(enabled bool) error
}

// TransportHandler receives transport callbacks. Calls are made from
// transport goroutines and must not block.
type TransportHandler interface {
	OnStateChange(state TransportState)
	OnParticipantJoined(p Participant)
	OnParticipantLeft(p Participant)
	OnTrackStarted(track Track, p Participant)
	OnTrackStopped(track Track, p Participant)
	OnData(payload []byte, from Participant)
	OnDisconnected()
}
