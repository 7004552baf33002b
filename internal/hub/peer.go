package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Peer is a WebSocket-backed subscriber: one live channel for one
// (session, participant) pair.
type Peer struct {
	SessionID     string
	ParticipantID string
	Conn          *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewPeer wraps an upgraded connection as a hub subscriber.
func NewPeer(sessionID, participantID string, conn *websocket.Conn, maxMessageSize int64) *Peer {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Peer{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Conn:          conn,
		send:          make(chan []byte, 256),
	}
}

// Push implements Subscriber. The actor loop publishes while the handler
// goroutine may be tearing the peer down, so the closed check and the
// channel send share one critical section; the send buffer keeps the
// non-blocking contract.
func (p *Peer) Push(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

// Close implements Subscriber. Idempotent and safe to call concurrently
// with Push.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

// WritePump drains the send buffer to the connection until Close.
// Run as a goroutine by the gateway handler.
func (p *Peer) WritePump() {
	defer func() {
		_ = p.Conn.Close()
	}()
	for data := range p.send {
		if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}
