package lane

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/michaelt919/TES3MP/internal/net/proto"
)

// DefaultCapacity is the per-channel queue length.
const DefaultCapacity = 1024

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrLaneFull       = errors.New("lane full")
)

// Registry holds one lane per replication channel. Lanes are independent:
// nothing orders items across channels.
type Registry[T any] struct {
	lanes map[proto.Channel]*Lane[T]
}

// NewRegistry builds a lane for every channel.
func NewRegistry[T any](prefix string, capacity int, metrics Metrics) *Registry[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	r := &Registry[T]{lanes: make(map[proto.Channel]*Lane[T], proto.ChannelCount)}
	for _, ch := range proto.Channels() {
		r.lanes[ch] = New[T](prefix+"_"+ch.String(), capacity, metrics)
	}
	return r
}

// Lane returns the lane of ch.
func (r *Registry[T]) Lane(ch proto.Channel) (*Lane[T], bool) {
	if r == nil {
		return nil, false
	}
	l, ok := r.lanes[ch]
	return l, ok
}

// Push queues item on the lane of ch.
func (r *Registry[T]) Push(ch proto.Channel, item T) error {
	l, ok := r.Lane(ch)
	if !ok {
		return fmt.Errorf("push on %s: %w", ch, ErrUnknownChannel)
	}
	if !l.Push(item) {
		return fmt.Errorf("push on %s: %w", ch, ErrLaneFull)
	}
	return nil
}

// Backlog reports the queued item count of every lane.
func (r *Registry[T]) Backlog() map[proto.Channel]int {
	out := make(map[proto.Channel]int, len(r.lanes))
	for ch, l := range r.lanes {
		out[ch] = l.Len()
	}
	return out
}

// Run starts one worker per lane and blocks until ctx is cancelled. Items
// of one channel are handled sequentially; channels run concurrently.
func (r *Registry[T]) Run(ctx context.Context, handle func(context.Context, proto.Channel, T)) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range proto.Channels() {
		l := r.lanes[ch]
		g.Go(func() error {
			return l.Run(gctx, func(ctx context.Context, item T) {
				handle(ctx, ch, item)
			})
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
