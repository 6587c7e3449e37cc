package connection

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Frame is one text message from the websocket with its local receipt time.
type Frame struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Command is a Binance websocket control command.
type Command struct {
	Method string   `json:"method"` // "SUBSCRIBE", "UNSUBSCRIBE", "LIST_SUBSCRIPTIONS"
	Params []string `json:"params,omitempty"`
	ID     int64    `json:"id"`
}

// Response is the server's answer to a Command.
type Response struct {
	Result json.RawMessage `json:"result"`
	ID     int64           `json:"id"`
	Error  *ErrorMsg       `json:"error,omitempty"`
}

// ErrorMsg is the error payload of a failed command.
type ErrorMsg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full stream URL (see StreamURL)
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingTimeout      time.Duration // Max time without ping before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       10000,
	}
}

// StreamURL builds the endpoint for a set of streams.
//
// With subscribe=true the base URL is returned unchanged and streams are
// requested later with a SUBSCRIBE command. Otherwise streams are encoded in
// the URL: ".../ws" takes a slash separated path, ".../stream" takes the
// combined-stream query form.
func StreamURL(base string, streams []string, subscribe bool) string {
	base = strings.TrimRight(base, "/")
	if subscribe || len(streams) == 0 {
		return base
	}
	if strings.HasSuffix(base, "/stream") {
		return base + "?streams=" + strings.Join(streams, "/")
	}
	return base + "/" + strings.Join(streams, "/")
}
