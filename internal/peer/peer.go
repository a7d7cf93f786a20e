// Package peer ties authority, resolution, state buffering and the packet
// router into the control flow of one peer: Local entities are resolved
// here and published; records for Dedicated entities are applied as
// received.
package peer

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/michaelt919/TES3MP/internal/attack"
	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/mechanics"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
	"github.com/michaelt919/TES3MP/internal/statebuf"
	"github.com/michaelt919/TES3MP/internal/telemetry"
	"github.com/michaelt919/TES3MP/logging"
)

var (
	// ErrNotCombatant is returned when an object is asked to attack or to
	// publish equipment.
	ErrNotCombatant = errors.New("entity cannot take part in combat")
	// ErrUnknownEntity reports an action or record naming an entity this
	// peer does not hold.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrPeerMismatch is returned when a message names a peer other than its
	// sender.
	ErrPeerMismatch = errors.New("message peer does not match sender")
)

// Config wires a peer.
type Config struct {
	Session   authority.Session
	Store     entity.Store
	Catalog   *entity.Catalog
	Router    *router.Router
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Settings  mechanics.Settings
	// Formulas overrides DefaultFormulas built from Settings.
	Formulas mechanics.Formulas
	Tracer   trace.Tracer
}

// Peer is the authority and replication core of one process.
type Peer struct {
	sess    authority.Session
	store   entity.Store
	router  *router.Router
	pub     logging.Publisher
	metrics telemetry.Metrics

	tracker *attack.Tracker
	engine  *mechanics.Engine
	buffer  *statebuf.Buffer
	resyncs resyncs
}

// New builds a peer and registers its inbound handlers on cfg.Router.
func New(cfg Config) (*Peer, error) {
	if cfg.Store == nil {
		return nil, errors.New("peer requires an entity store")
	}
	if cfg.Router == nil {
		return nil, errors.New("peer requires a router")
	}
	if cfg.Session.Table() == nil {
		return nil, errors.New("peer requires an authority session")
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	formulas := cfg.Formulas
	if formulas == nil {
		formulas = mechanics.DefaultFormulas{Settings: cfg.Settings}
	}

	p := &Peer{
		sess:    cfg.Session,
		store:   cfg.Store,
		router:  cfg.Router,
		pub:     pub,
		metrics: cfg.Metrics,
		tracker: attack.NewTracker(),
	}
	p.engine = mechanics.NewEngine(cfg.Catalog, p.tracker,
		mechanics.WithFormulas(formulas),
		mechanics.WithTracer(cfg.Tracer),
	)
	p.buffer = statebuf.New(cfg.Store, p, pub)
	p.registerHandlers()
	return p, nil
}

// Session returns the authority session of this peer.
func (p *Peer) Session() authority.Session {
	return p.sess
}

// ID returns the local peer id.
func (p *Peer) ID() string {
	return p.sess.Peer()
}

// Store returns the entity store.
func (p *Peer) Store() entity.Store {
	return p.store
}

// Buffer returns the inventory and equipment buffer.
func (p *Peer) Buffer() *statebuf.Buffer {
	return p.buffer
}

// Tracker returns the attack state machine.
func (p *Peer) Tracker() *attack.Tracker {
	return p.tracker
}

// Ownership lists the authority table in insertion order.
func (p *Peer) Ownership() []authority.Ownership {
	return p.sess.Table().Entries()
}

func (p *Peer) registerHandlers() {
	handlers := map[proto.MessageType]router.Handler{
		proto.MsgHandshake:        p.handleHandshake,
		proto.MsgUserDisconnected: p.handleDisconnect,
		proto.MsgPlayerBaseInfo:   p.handleSpawn,
		proto.MsgActorList:        p.handleActorList,
		proto.MsgActorAuthority:   p.handleAuthority,
		proto.MsgPlayerAttack:     p.handleAttack,
		proto.MsgActorAttack:      p.handleAttack,
		proto.MsgPlayerInventory:  p.handleInventory,
		proto.MsgContainer:        p.handleInventory,
		proto.MsgPlayerEquipment:  p.handleEquipment,
		proto.MsgActorEquipment:   p.handleEquipment,
	}
	for t, h := range handlers {
		p.router.Handle(t, p.observed(h))
	}
}

func (p *Peer) broadcast(class entity.Class) router.Target {
	return router.Target{Peer: p.sess.Peer(), Class: class}
}

func (p *Peer) entity(id string) (entity.Entity, error) {
	e, ok := p.store.Get(id)
	if !ok {
		return entity.Entity{}, fmt.Errorf("%s: %w", id, ErrUnknownEntity)
	}
	return e, nil
}

func (p *Peer) addMetric(key string, delta uint64) {
	if p.metrics != nil {
		p.metrics.Add(key, delta)
	}
}

func entityRef(e entity.Entity) logging.EntityRef {
	return refFor(e.ID, e.Class)
}

func refFor(id string, class entity.Class) logging.EntityRef {
	if id == "" {
		return logging.EntityRef{}
	}
	kind := logging.EntityKindObject
	switch class {
	case entity.ClassPlayer:
		kind = logging.EntityKindPlayer
	case entity.ClassActor:
		kind = logging.EntityKindActor
	}
	return logging.EntityRef{ID: id, Kind: kind}
}

func peerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPeer}
}
