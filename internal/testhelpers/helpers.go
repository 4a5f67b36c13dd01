// Package testhelpers holds WebSocket and HTTP helpers shared by the relay's
// tests.
package testhelpers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every read in these helpers.
const DefaultTimeout = 2 * time.Second

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// Dial opens a WebSocket to url with the given headers and registers cleanup.
func Dial(t *testing.T, url string, headers http.Header) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialAs opens a WebSocket that presents forwardedFor as its origin, for
// servers that trust X-Forwarded-For.
func DialAs(t *testing.T, url, forwardedFor string) *websocket.Conn {
	t.Helper()
	headers := http.Header{}
	headers.Set("X-Forwarded-For", forwardedFor)
	return Dial(t, url, headers)
}

// ReadText reads the next text frame, failing the test after DefaultTimeout.
func ReadText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	return string(data)
}

// ReadUntil reads frames until match accepts one and returns it. Frames that
// do not match are skipped.
func ReadUntil(t *testing.T, conn *websocket.Conn, match func(string) bool) string {
	t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if text := string(data); match(text) {
			return text
		}
	}
	t.Fatalf("no matching message within %s", DefaultTimeout)
	return ""
}

// ExpectNoMessage asserts nothing arrives on conn within wait.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message %q", string(data))
}

// CloseWebSocket sends a normal close frame and closes conn.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// Eventually polls cond until it holds or DefaultTimeout elapses.
func Eventually(t *testing.T, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, DefaultTimeout, 10*time.Millisecond, msgAndArgs...)
}
