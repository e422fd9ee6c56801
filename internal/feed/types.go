package feed

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateReconnectScheduled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	default:
		return "unknown"
	}
}

// InboundMessage wraps raw frame data with a receive timestamp.
type InboundMessage struct {
	Data       []byte    // Raw message bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Inbound message types, discriminated by the "type" field.
const (
	msgPriceUpdate     = "price_update"
	msgOrderbookUpdate = "orderbook_update"
	msgTrade           = "trade"
	msgHeartbeat       = "heartbeat"
)

// envelope is used for fast type extraction.
type envelope struct {
	Type string `json:"type"`
}

// subscribeFrame is the outbound subscribe/unsubscribe wire message.
type subscribeFrame struct {
	Type     string `json:"type"` // "subscribe" or "unsubscribe"
	Channel  string `json:"channel"`
	MarketID string `json:"marketId"`
}

// pingFrame is the outbound liveness ping.
type pingFrame struct {
	Type string `json:"type"` // "ping"
}

// marketChannel is the only channel the client subscribes on.
const marketChannel = "market"

// UnknownMessage is the payload for unknown-message diagnostic events.
type UnknownMessage struct {
	Type string // The unrecognized "type" field value
	Data []byte
}

// ParseError is the payload for parse-error diagnostic events.
type ParseError struct {
	Err  error
	Data []byte
}

// ClientConfig configures a single WebSocket connection.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://feed.example.com/ws)
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	URL                string        // WebSocket URL
	ReconnectBaseDelay time.Duration // First backoff step
	ReconnectMaxDelay  time.Duration // Backoff cap
	HeartbeatInterval  time.Duration // Liveness ping interval
	HandshakeTimeout   time.Duration // Dial handshake deadline
	WriteTimeout       time.Duration // Write deadline for sends
	MessageBufferSize  int           // Inbound message channel buffer size
}

// DefaultManagerConfig returns sensible defaults. The URL must be set by
// the caller.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		HeartbeatInterval:  30 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       5 * time.Second,
		MessageBufferSize:  1000,
	}
}

// ManagerStats provides a snapshot of manager state for introspection.
type ManagerStats struct {
	State             State
	ReconnectAttempts int
	Subscriptions     int
	CachedPrices      int
}
