package attack

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/michaelt919/TES3MP/internal/authority"
)

// State is the lifecycle position of an entity's action slot.
type State uint8

const (
	StateIdle State = iota
	StatePending
	StateResolved
	StateSent
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateSent:
		return "sent"
	default:
		return "unknown"
	}
}

var (
	// ErrActionInFlight is returned when an action begins before the previous
	// action of the same entity reached Sent.
	ErrActionInFlight = errors.New("action already in flight")
	// ErrInvalidTransition is returned when a step is called out of order.
	ErrInvalidTransition = errors.New("invalid attack state transition")
)

type slot struct {
	state  State
	record Record
	table  *authority.Table
}

// Tracker holds the action slot of every Local entity and the last record
// reported for every Dedicated entity.
type Tracker struct {
	mu       sync.Mutex
	slots    map[string]*slot
	seq      map[string]uint64
	reported map[string]Record
}

func NewTracker() *Tracker {
	return &Tracker{
		slots:    make(map[string]*slot),
		seq:      make(map[string]uint64),
		reported: make(map[string]Record),
	}
}

// Begin moves the slot of owner from Idle to Pending. The owner must be Local
// in sess; its authority stays pinned until MarkSent.
func (t *Tracker) Begin(ctx context.Context, sess authority.Session, owner string, kind Kind) (Record, error) {
	if err := sess.RequireLocal(ctx, owner, "attack.begin"); err != nil {
		return Record{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.slots[owner]; ok {
		return Record{}, fmt.Errorf("%s is %s: %w", owner, current.state, ErrActionInFlight)
	}
	t.seq[owner]++
	rec := Record{Owner: owner, Kind: kind, Seq: t.seq[owner]}
	table := sess.Table()
	table.Pin(owner)
	t.slots[owner] = &slot{state: StatePending, record: rec, table: table}
	return rec, nil
}

// Resolve runs fn against the pending record and moves the slot to Resolved.
// Every pending action reaches Resolved: when fn fails the record degrades
// to no effect and the error is returned alongside the transition.
func (t *Tracker) Resolve(owner string, fn func(*Record) error) error {
	t.mu.Lock()
	current, ok := t.slots[owner]
	if !ok || current.state != StatePending {
		t.mu.Unlock()
		return fmt.Errorf("resolve %s: %w", owner, ErrInvalidTransition)
	}
	rec := current.record.Clone()
	t.mu.Unlock()

	var err error
	if fn != nil {
		err = fn(&rec)
	}
	if err != nil {
		rec.NoEffect()
	}
	rec.Owner = owner

	t.mu.Lock()
	current.record = rec
	current.state = StateResolved
	t.mu.Unlock()
	return err
}

// Finalize asserts ShouldSend, moves the slot to Sent and returns the record
// to hand to the router.
func (t *Tracker) Finalize(owner string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.slots[owner]
	if !ok || current.state != StateResolved {
		return Record{}, fmt.Errorf("finalize %s: %w", owner, ErrInvalidTransition)
	}
	current.record.ShouldSend = true
	current.state = StateSent
	return current.record.Clone(), nil
}

// MarkSent clears the slot once the record has been queued and releases the
// authority pin, returning the entity to Idle.
func (t *Tracker) MarkSent(owner string) error {
	t.mu.Lock()
	current, ok := t.slots[owner]
	if !ok || current.state != StateSent {
		t.mu.Unlock()
		return fmt.Errorf("mark sent %s: %w", owner, ErrInvalidTransition)
	}
	delete(t.slots, owner)
	t.mu.Unlock()
	current.table.Unpin(owner)
	return nil
}

// State reports the slot state of owner.
func (t *Tracker) State(owner string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.slots[owner]; ok {
		return current.state
	}
	return StateIdle
}

// Observe stores a record reported by the peer that simulates rec.Owner.
func (t *Tracker) Observe(rec Record) {
	if rec.Owner == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reported[rec.Owner] = rec.Clone()
}

// Reported returns the last record observed for owner.
func (t *Tracker) Reported(owner string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.reported[owner]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// Forget drops the reported record of an entity that left the simulation.
// In-flight slots are left to finish; actions are never cancelled.
func (t *Tracker) Forget(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reported, owner)
}
