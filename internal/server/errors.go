package server

import (
	"errors"
	"strings"
)

var (
	// ErrClientClosed is returned when sending to a client whose socket is gone.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned when a client's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrHubClosed is returned when a connection arrives during shutdown.
	ErrHubClosed = errors.New("hub is shutting down")
)

// isExpectedCloseError reports errors that routinely happen while a socket
// is being torn down and are not worth logging.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
