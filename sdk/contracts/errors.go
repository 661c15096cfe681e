package contracts

import "errors"

// Sentinel errors returned by session operations. Fault sites wrap them
// with fmt.Errorf("%w: ...", ...) so callers can match with errors.Is
// and still see the platform diagnostic.
var (
	// ErrInit is returned when a session cannot be constructed, for
	// example because the platform driver already failed to load.
	ErrInit = errors.New("midi session initialization failed")

	// ErrPortNumberOutOfRange is returned by port lookups and connection
	// attempts whose index is not in [0, PortCount()). The session is
	// left unchanged and remains usable.
	ErrPortNumberOutOfRange = errors.New("port number out of range")

	// ErrConnect is returned when the backend rejects opening a port, or
	// when the session is already connected.
	ErrConnect = errors.New("port connection failed")

	// ErrSend is returned when the backend rejects an outbound message.
	ErrSend = errors.New("message send failed")
)
