package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 1<<20 + 64
)

// session is one websocket connection to a remote peer. Writes are
// serialized; reads happen on the owning goroutine only.
type session struct {
	peer string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newSession(peer string, conn *websocket.Conn) *session {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &session{peer: peer, conn: conn}
}

// WriteFrame sends one binary envelope.
func (s *session) WriteFrame(frame []byte) error {
	return s.write(websocket.BinaryMessage, frame)
}

func (s *session) ping() error {
	return s.write(websocket.PingMessage, nil)
}

func (s *session) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// Close sends a close frame and tears the connection down. It is safe to
// call more than once.
func (s *session) Close(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	s.mu.Unlock()
	_ = s.conn.Close()
}
