package session

import "errors"

// Session lifecycle errors. Failures stop at the user action that caused
// them: they are logged, reflected in the status label and returned.
var (
	// ErrDeviceInit is returned when local media cannot be prepared.
	ErrDeviceInit = errors.New("device initialization failed")

	// ErrConnect is returned when the client cannot reach the bot.
	ErrConnect = errors.New("connect failed")

	// ErrDisconnect is returned when the client fails to leave cleanly. The
	// session is released regardless.
	ErrDisconnect = errors.New("disconnect failed")

	// ErrNoSession is returned by operations that need a live session.
	ErrNoSession = errors.New("no active session")

	// ErrSessionActive is returned by Connect while a session exists or
	// another connect or disconnect is in progress.
	ErrSessionActive = errors.New("session already active")

	// ErrWrongMode is returned by Connect outside voice mode.
	ErrWrongMode = errors.New("connect is only available in voice mode")

	// ErrConnectAborted is returned by Connect when the attempt was torn
	// down before it completed.
	ErrConnectAborted = errors.New("connect aborted")
)
