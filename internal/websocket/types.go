package websocket

import (
	"errors"
	"time"
)

// ReloadMessage is the only message the server sends to reload clients.
var ReloadMessage = []byte("reload")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed between messages or pongs from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outgoing messages buffered per client before it counts as stalled.
	sendBufferSize = 16
)

var (
	// ErrClientClosed is returned when sending to a client that has gone.
	ErrClientClosed = errors.New("client closed")

	// ErrClientStalled is returned when a client's send buffer is full.
	ErrClientStalled = errors.New("client send buffer full")
)

// Client is one connected reload client as seen by the Registry.
type Client interface {
	// Send queues message for delivery without blocking.
	Send(message []byte) error
	// Close ends the connection. Closing twice is harmless.
	Close(reason string)
}
