// Package authority classifies entities as simulated by this peer (Local)
// or replicated from another peer (Dedicated).
package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/michaelt919/TES3MP/internal/rng"
)

// Tag is the authority classification of an entity on this peer.
type Tag uint8

const (
	// Dedicated entities are simulated elsewhere; this peer only applies
	// reported state.
	Dedicated Tag = iota
	// Local entities are simulated by this peer.
	Local
)

func (t Tag) String() string {
	if t == Local {
		return "local"
	}
	return "dedicated"
}

// ErrAuthorityViolation is returned when a peer attempts or receives a
// mutation for an entity whose authority it does not hold correctly.
var ErrAuthorityViolation = errors.New("authority violation")

// Violation describes one rejected operation.
type Violation struct {
	Peer   string
	Entity string
	Op     string
	// Inbound is true when the violation came from a received packet.
	Inbound bool
}

// Monitor observes violations. Implementations log and count them.
type Monitor interface {
	AuthorityViolation(ctx context.Context, v Violation)
}

// Session is the explicit authority context passed into every resolution
// and mutation call in place of process-wide lookups.
type Session struct {
	peer    string
	table   *Table
	random  rng.Factory
	monitor Monitor
}

// Option configures a Session.
type Option func(*Session)

// WithRandom sets the per-action random source factory.
func WithRandom(f rng.Factory) Option {
	return func(s *Session) {
		s.random = f
	}
}

// WithMonitor sets the violation observer.
func WithMonitor(m Monitor) Option {
	return func(s *Session) {
		s.monitor = m
	}
}

// NewSession builds a session for peer over table. Without WithRandom the
// session derives random sources from seed zero.
func NewSession(peer string, table *Table, opts ...Option) Session {
	s := Session{peer: peer, table: table}
	for _, opt := range opts {
		opt(&s)
	}
	if s.random == nil {
		s.random = rng.SeededFactory(0)
	}
	return s
}

// Peer returns the id of this peer.
func (s Session) Peer() string {
	return s.peer
}

// Table returns the ownership table backing the session.
func (s Session) Table() *Table {
	return s.table
}

// Classify reports whether this peer simulates entity. Entities with no
// ownership row are Dedicated.
func (s Session) Classify(entity string) Tag {
	owner, ok := s.table.Owner(entity)
	if ok && owner == s.peer && s.peer != "" {
		return Local
	}
	return Dedicated
}

// RequireLocal rejects op unless entity is Local, reporting the violation
// to the monitor.
func (s Session) RequireLocal(ctx context.Context, entity, op string) error {
	if s.Classify(entity) == Local {
		return nil
	}
	s.Report(ctx, Violation{Peer: s.peer, Entity: entity, Op: op})
	return fmt.Errorf("%s on %s: %w", op, entity, ErrAuthorityViolation)
}

// RequireDedicated rejects an inbound op that targets a Local entity.
func (s Session) RequireDedicated(ctx context.Context, entity, op string) error {
	if s.Classify(entity) == Dedicated {
		return nil
	}
	s.Report(ctx, Violation{Peer: s.peer, Entity: entity, Op: op, Inbound: true})
	return fmt.Errorf("inbound %s on %s: %w", op, entity, ErrAuthorityViolation)
}

// RequireOwner rejects an inbound op on entity unless from is the peer the
// table names as its owner. Unowned and Local entities always fail.
func (s Session) RequireOwner(ctx context.Context, entity, from, op string) error {
	owner, ok := s.table.Owner(entity)
	if ok && owner == from && s.Classify(entity) == Dedicated {
		return nil
	}
	s.Report(ctx, Violation{Peer: s.peer, Entity: entity, Op: op, Inbound: true})
	return fmt.Errorf("inbound %s on %s from %q: %w", op, entity, from, ErrAuthorityViolation)
}

// Report forwards v to the monitor, if any.
func (s Session) Report(ctx context.Context, v Violation) {
	if s.monitor == nil {
		return
	}
	s.monitor.AuthorityViolation(ctx, v)
}

// Random returns the random source for one action of entity.
func (s Session) Random(entity string, seq uint64) rng.Source {
	return s.random(entity, seq)
}
