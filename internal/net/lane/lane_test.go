package lane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/michaelt919/TES3MP/internal/net/proto"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func (m *countingMetrics) Add(key string, delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]uint64)
	}
	m.counts[key] += delta
}

func (m *countingMetrics) Store(key string, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]uint64)
	}
	m.counts[key] = value
}

func (m *countingMetrics) get(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func TestLaneWraparound(t *testing.T) {
	l := New[string]("test", 3, nil)
	items := []string{"a", "b", "c"}
	for _, item := range items {
		if !l.Push(item) {
			t.Fatalf("expected push to succeed for %s", item)
		}
	}
	if l.Push("overflow") {
		t.Fatalf("expected push to fail when lane full")
	}
	drained := l.Drain()
	if len(drained) != len(items) {
		t.Fatalf("expected %d items, got %d", len(items), len(drained))
	}
	for i, item := range drained {
		if item != items[i] {
			t.Fatalf("expected drain order %v, got %v", items[i], item)
		}
	}
	for _, item := range []string{"d", "e"} {
		if !l.Push(item) {
			t.Fatalf("expected push to succeed after drain for %s", item)
		}
	}
	wrapped := l.Drain()
	if len(wrapped) != 2 || wrapped[0] != "d" || wrapped[1] != "e" {
		t.Fatalf("unexpected order after wraparound: %v", wrapped)
	}
}

func TestLaneOverflowCounted(t *testing.T) {
	metrics := &countingMetrics{}
	l := New[int]("actor", 1, metrics)
	l.Push(1)
	l.Push(2)
	if got := metrics.get("lane_actor_overflow_total"); got != 1 {
		t.Fatalf("expected 1 overflow, got %d", got)
	}
	if got := metrics.get("lane_actor_occupancy"); got != 1 {
		t.Fatalf("expected occupancy 1, got %d", got)
	}
}

func TestRegistryPreservesPerChannelOrder(t *testing.T) {
	reg := NewRegistry[int]("inbound", 64, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	seen := make(map[proto.Channel][]int)
	done := make(chan struct{})
	total := 0
	const perChannel = 20

	go func() {
		_ = reg.Run(ctx, func(_ context.Context, ch proto.Channel, item int) {
			mu.Lock()
			defer mu.Unlock()
			seen[ch] = append(seen[ch], item)
			total++
			if total == perChannel*2 {
				close(done)
			}
		})
	}()

	for i := 0; i < perChannel; i++ {
		if err := reg.Push(proto.ChannelActor, i); err != nil {
			t.Fatalf("push actor: %v", err)
		}
		if err := reg.Push(proto.ChannelPlayer, i); err != nil {
			t.Fatalf("push player: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for lanes to drain")
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	for _, ch := range []proto.Channel{proto.ChannelActor, proto.ChannelPlayer} {
		got := seen[ch]
		if len(got) != perChannel {
			t.Fatalf("%s: expected %d items, got %d", ch, perChannel, len(got))
		}
		for i, item := range got {
			if item != i {
				t.Fatalf("%s: expected item %d at %d, got %d", ch, i, i, item)
			}
		}
	}
}

func TestRegistryRunReturnsNilOnCancel(t *testing.T) {
	reg := NewRegistry[int]("inbound", 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := reg.Run(ctx, func(context.Context, proto.Channel, int) {}); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
}

func TestRegistryRejectsUnknownChannel(t *testing.T) {
	reg := NewRegistry[int]("outbound", 1, nil)
	if err := reg.Push(proto.Channel(42), 1); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
	_ = reg.Push(proto.ChannelSystem, 1)
	if err := reg.Push(proto.ChannelSystem, 2); !errors.Is(err, ErrLaneFull) {
		t.Fatalf("expected ErrLaneFull, got %v", err)
	}
	if backlog := reg.Backlog(); backlog[proto.ChannelSystem] != 1 {
		t.Fatalf("expected backlog 1 on system, got %v", backlog)
	}
}
