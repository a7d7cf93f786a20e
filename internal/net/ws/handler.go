// Package ws carries replication envelopes between peers over websockets.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PeerHeader carries the accepting peer's id in the upgrade response.
const PeerHeader = "X-Tes3mp-Peer"

var (
	ErrDuplicatePeer = errors.New("peer already connected")
	ErrNoPeerID      = errors.New("remote peer did not identify itself")
)

// Receiver consumes inbound frames.
type Receiver interface {
	Receive(ctx context.Context, from string, frame []byte) error
}

// Config wires a transport.
type Config struct {
	// Peer is the local peer id announced to remote peers.
	Peer     string
	Receiver Receiver
	Logger   *log.Logger
	// OnConnect and OnDisconnect observe session lifecycle.
	OnConnect    func(peer string)
	OnDisconnect func(peer string)
}

// Transport is the set of live peer connections. It accepts connections
// through Handle, opens them through Dial and implements the router's
// Deliver contract.
type Transport struct {
	cfg      Config
	logger   *log.Logger
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewTransport constructs an empty transport.
func NewTransport(cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Transport{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		sessions: make(map[string]*session),
	}
}

// Handle upgrades an inbound connection from the peer named by the id
// query parameter.
func (t *Transport) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	peerID := r.URL.Query().Get("id")
	if peerID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}
	header := nethttp.Header{}
	header.Set(PeerHeader, t.cfg.Peer)
	conn, err := t.upgrader.Upgrade(w, r, header)
	if err != nil {
		t.logger.Printf("upgrade failed for %s: %v", peerID, err)
		return
	}
	sess, err := t.register(peerID, conn)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	t.serve(r.Context(), sess)
}

// Dial connects to a remote peer's endpoint and serves the session in the
// background. It returns the remote peer id.
func (t *Transport) Dial(ctx context.Context, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("id", t.cfg.Peer)
	u.RawQuery = q.Encode()

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", endpoint, err)
	}
	remote := ""
	if resp != nil {
		remote = resp.Header.Get(PeerHeader)
	}
	if remote == "" {
		conn.Close()
		return "", ErrNoPeerID
	}
	sess, err := t.register(remote, conn)
	if err != nil {
		conn.Close()
		return "", err
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.serve(context.WithoutCancel(ctx), sess)
	}()
	return remote, nil
}

// Deliver writes frame to target, or to every peer except target when
// broadcast is set. Unknown targets are ignored.
func (t *Transport) Deliver(_ context.Context, target string, broadcast bool, frame []byte) error {
	t.mu.RLock()
	var recipients []*session
	if broadcast {
		recipients = make([]*session, 0, len(t.sessions))
		for id, sess := range t.sessions {
			if id != target {
				recipients = append(recipients, sess)
			}
		}
	} else if sess, ok := t.sessions[target]; ok {
		recipients = append(recipients, sess)
	}
	t.mu.RUnlock()

	var errs []error
	for _, sess := range recipients {
		if err := sess.WriteFrame(frame); err != nil {
			errs = append(errs, fmt.Errorf("write to %s: %w", sess.peer, err))
			t.drop(sess, "write failed")
		}
	}
	return errors.Join(errs...)
}

// Peers lists connected peer ids.
func (t *Transport) Peers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	peers := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		peers = append(peers, id)
	}
	return peers
}

// Close disconnects every peer and waits for dialed sessions to stop.
func (t *Transport) Close() {
	t.mu.RLock()
	sessions := make([]*session, 0, len(t.sessions))
	for _, sess := range t.sessions {
		sessions = append(sessions, sess)
	}
	t.mu.RUnlock()
	for _, sess := range sessions {
		t.drop(sess, "shutdown")
	}
	t.wg.Wait()
}

func (t *Transport) register(peer string, conn *websocket.Conn) (*session, error) {
	t.mu.Lock()
	if _, exists := t.sessions[peer]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", peer, ErrDuplicatePeer)
	}
	sess := newSession(peer, conn)
	t.sessions[peer] = sess
	t.mu.Unlock()

	if t.cfg.OnConnect != nil {
		t.cfg.OnConnect(peer)
	}
	return sess, nil
}

func (t *Transport) serve(ctx context.Context, sess *session) {
	defer t.drop(sess, "closed")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sess.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			t.logger.Printf("discarding non-binary message from %s", sess.peer)
			continue
		}
		if t.cfg.Receiver == nil {
			continue
		}
		// The receiver logs and counts bad frames; the connection stays up.
		_ = t.cfg.Receiver.Receive(ctx, sess.peer, payload)
	}
}

func (t *Transport) drop(sess *session, reason string) {
	t.mu.Lock()
	current, ok := t.sessions[sess.peer]
	removed := ok && current == sess
	if removed {
		delete(t.sessions, sess.peer)
	}
	t.mu.Unlock()

	sess.Close(reason)
	if removed && t.cfg.OnDisconnect != nil {
		t.cfg.OnDisconnect(sess.peer)
	}
}
