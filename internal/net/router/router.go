// Package router frames outbound records onto channel lanes and dispatches
// inbound frames to per-message handlers.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/net/lane"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/logging"
	lognetwork "github.com/michaelt919/TES3MP/logging/network"
)

const (
	unknownMessageMetricKey   = "router_unknown_message_total"
	malformedMetricKey        = "router_malformed_envelope_total"
	unhandledMessageMetricKey = "router_unhandled_message_total"
	deliveryFailedMetricKey   = "router_delivery_failed_total"
	sentMetricKey             = "router_sent_total"
	dispatchedMetricKey       = "router_dispatched_total"
	handlerFailedMetricKey    = "router_handler_failed_total"
)

// ErrChannelMismatch reports an envelope received on a lane other than the
// one its message type is registered for.
var ErrChannelMismatch = errors.New("message on wrong channel")

// Metrics receives router counters.
type Metrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// Transport writes framed envelopes to remote peers. A broadcast goes to
// every connected peer except target; otherwise only target receives it.
type Transport interface {
	Deliver(ctx context.Context, target string, broadcast bool, frame []byte) error
}

// Target addresses an outbound message.
type Target struct {
	Peer string
	// Class selects the lane of messages routed by entity class.
	Class entity.Class
}

// Inbound is a decoded message handed to a handler.
type Inbound struct {
	From     string
	Envelope proto.Envelope
	// Payload is a pointer to the registered payload type, or the raw body
	// for untyped messages.
	Payload any
}

// Handler consumes one inbound message.
type Handler func(ctx context.Context, msg Inbound) error

type outbound struct {
	target    string
	broadcast bool
	msgType   proto.MessageType
	frame     []byte
}

type received struct {
	from  string
	frame []byte
}

// Router owns the per-channel lanes of one peer.
type Router struct {
	codec     *proto.Codec
	transport Transport
	pub       logging.Publisher
	metrics   Metrics

	outbound *lane.Registry[outbound]
	inbound  *lane.Registry[received]

	mu       sync.RWMutex
	handlers map[proto.MessageType]Handler
}

// Config wires a router.
type Config struct {
	Codec        *proto.Codec
	Transport    Transport
	Publisher    logging.Publisher
	Metrics      Metrics
	LaneCapacity int
}

// New constructs a router. Lanes are idle until Run is called.
func New(cfg Config) (*Router, error) {
	if cfg.Codec == nil {
		return nil, errors.New("router requires a codec")
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Router{
		codec:     cfg.Codec,
		transport: cfg.Transport,
		pub:       pub,
		metrics:   cfg.Metrics,
		outbound:  lane.NewRegistry[outbound]("outbound", cfg.LaneCapacity, cfg.Metrics),
		inbound:   lane.NewRegistry[received]("inbound", cfg.LaneCapacity, cfg.Metrics),
		handlers:  make(map[proto.MessageType]Handler),
	}, nil
}

// SetTransport replaces the transport used by the outbound workers.
func (r *Router) SetTransport(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport = t
}

// Handle registers fn for t, replacing any previous handler.
func (r *Router) Handle(t proto.MessageType, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.handlers, t)
		return
	}
	r.handlers[t] = fn
}

// Send encodes payload and queues it on the lane of the message. Delivery
// happens asynchronously on that lane's worker.
func (r *Router) Send(ctx context.Context, target Target, t proto.MessageType, payload any, broadcast bool) error {
	ch, err := r.codec.Registry().ChannelFor(t, target.Class)
	if err != nil {
		return err
	}
	var flags proto.Flags
	if broadcast {
		flags |= proto.FlagBroadcast
	}
	env, err := r.codec.Encode(t, ch, payload, flags)
	if err != nil {
		return err
	}
	frame, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	if err := r.outbound.Push(ch, outbound{target: target.Peer, broadcast: broadcast, msgType: t, frame: frame}); err != nil {
		r.overflow(ctx, ch)
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

// Receive queues a raw inbound frame on the lane named in its header.
func (r *Router) Receive(ctx context.Context, from string, frame []byte) error {
	ch, err := proto.PeekChannel(frame)
	if err != nil {
		r.malformed(ctx, from, 0, "", err)
		return err
	}
	if err := r.inbound.Push(ch, received{from: from, frame: frame}); err != nil {
		r.overflow(ctx, ch)
		return err
	}
	return nil
}

// Dispatch decodes frame and runs the registered handler synchronously.
// Unknown message types are logged, counted and dropped without error.
func (r *Router) Dispatch(ctx context.Context, from string, frame []byte) error {
	var env proto.Envelope
	if err := env.UnmarshalBinary(frame); err != nil {
		r.malformed(ctx, from, 0, "", err)
		return err
	}
	ctx = logging.WithChannel(ctx, env.Channel.String())
	spec, ok := r.codec.Registry().Lookup(env.Type)
	if !ok {
		r.addMetric(unknownMessageMetricKey, 1)
		lognetwork.UnknownMessage(ctx, r.pub, peerRef(from), lognetwork.MessagePayload{
			MessageType: uint16(env.Type),
			Channel:     env.Channel.String(),
			From:        from,
		}, nil)
		return nil
	}
	if !spec.ByClass && env.Channel != spec.Channel {
		err := fmt.Errorf("%s on %s: %w", spec.Name, env.Channel, ErrChannelMismatch)
		r.malformed(ctx, from, env.Type, env.Channel.String(), err)
		return err
	}
	payload, err := r.codec.Decode(env)
	if err != nil {
		r.malformed(ctx, from, env.Type, env.Channel.String(), err)
		return err
	}

	r.mu.RLock()
	handler := r.handlers[env.Type]
	r.mu.RUnlock()
	if handler == nil {
		r.addMetric(unhandledMessageMetricKey, 1)
		return nil
	}
	r.addMetric(dispatchedMetricKey, 1)
	if err := handler(ctx, Inbound{From: from, Envelope: env, Payload: payload}); err != nil {
		r.addMetric(handlerFailedMetricKey, 1)
		lognetwork.HandlerFailed(ctx, r.pub, peerRef(from), lognetwork.MessagePayload{
			MessageType: uint16(env.Type),
			Channel:     env.Channel.String(),
			From:        from,
			Error:       err.Error(),
		}, nil)
		return err
	}
	return nil
}

// Run starts the outbound and inbound lane workers and blocks until ctx is
// cancelled.
func (r *Router) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.outbound.Run(gctx, func(ctx context.Context, ch proto.Channel, o outbound) {
			r.deliver(logging.WithChannel(ctx, ch.String()), o)
		})
	})
	g.Go(func() error {
		return r.inbound.Run(gctx, func(ctx context.Context, _ proto.Channel, in received) {
			// Dispatch already logged and counted any failure.
			_ = r.Dispatch(ctx, in.from, in.frame)
		})
	})
	return g.Wait()
}

// Backlog reports queued outbound and inbound frames per channel.
func (r *Router) Backlog() (out, in map[proto.Channel]int) {
	return r.outbound.Backlog(), r.inbound.Backlog()
}

func (r *Router) deliver(ctx context.Context, o outbound) {
	r.mu.RLock()
	transport := r.transport
	r.mu.RUnlock()
	if transport == nil {
		return
	}
	if err := transport.Deliver(ctx, o.target, o.broadcast, o.frame); err != nil {
		r.addMetric(deliveryFailedMetricKey, 1)
		lognetwork.DeliveryFailed(ctx, r.pub, peerRef(o.target), lognetwork.MessagePayload{
			MessageType: uint16(o.msgType),
			Error:       err.Error(),
		}, nil)
		return
	}
	r.addMetric(sentMetricKey, 1)
}

func (r *Router) malformed(ctx context.Context, from string, t proto.MessageType, channel string, err error) {
	r.addMetric(malformedMetricKey, 1)
	lognetwork.MalformedEnvelope(ctx, r.pub, peerRef(from), lognetwork.MessagePayload{
		MessageType: uint16(t),
		Channel:     channel,
		From:        from,
		Error:       err.Error(),
	}, nil)
}

func (r *Router) overflow(ctx context.Context, ch proto.Channel) {
	capacity := 0
	if l, ok := r.outbound.Lane(ch); ok {
		capacity = l.Capacity()
	}
	lognetwork.LaneOverflow(ctx, r.pub, logging.EntityRef{}, lognetwork.LanePayload{Channel: ch.String(), Capacity: capacity}, nil)
}

func (r *Router) addMetric(key string, delta uint64) {
	if r.metrics == nil {
		return
	}
	r.metrics.Add(key, delta)
}

func peerRef(id string) logging.EntityRef {
	if id == "" {
		return logging.EntityRef{}
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPeer}
}
