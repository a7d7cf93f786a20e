package sinks

import (
	"context"
	"sync"

	"github.com/michaelt919/TES3MP/logging"
)

// MemorySink keeps every event in order. Tests read it back with Events or
// OfType.
type MemorySink struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event logging.Event) error {
	stored := event
	if len(event.Targets) > 0 {
		stored.Targets = append([]logging.EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		stored.Extra = make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			stored.Extra[k] = v
		}
	}
	s.mu.Lock()
	s.events = append(s.events, stored)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]logging.Event(nil), s.events...)
}

// OfType returns the stored events of one type, oldest first.
func (s *MemorySink) OfType(t logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []logging.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
