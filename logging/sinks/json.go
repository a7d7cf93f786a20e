package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/michaelt919/TES3MP/logging"
)

// jsonLine is the wire layout of one event.
type jsonLine struct {
	Type      logging.EventType   `json:"type"`
	Time      string              `json:"time"`
	Peer      string              `json:"peer,omitempty"`
	Channel   string              `json:"channel,omitempty"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	Actor     *logging.EntityRef  `json:"actor,omitempty"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	MessageID string              `json:"messageId,omitempty"`
}

// JSON emits newline-delimited events. Lines are buffered and flushed
// every MaxBatch events, on each FlushInterval tick, and on Close. A zero
// FlushInterval flushes every line.
type JSON struct {
	mu      sync.Mutex
	writer  *bufio.Writer
	encoder *json.Encoder
	closer  io.Closer
	batch   int
	pending int

	stop chan struct{}
	done chan struct{}
}

// NewJSON writes to w. Files other than stdout and stderr are closed with
// the sink.
func NewJSON(w io.Writer, cfg logging.JSONConfig) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	s := &JSON{writer: buf, encoder: json.NewEncoder(buf), batch: cfg.MaxBatch}
	if f, ok := w.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		s.closer = f
	}
	if cfg.FlushInterval <= 0 {
		s.batch = 1
		return s
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.flushEvery(cfg.FlushInterval)
	return s
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	line := jsonLine{
		Type:      event.Type,
		Time:      event.Time.UTC().Format(time.RFC3339Nano),
		Peer:      event.Peer,
		Channel:   event.Channel,
		Severity:  event.Severity.String(),
		Category:  event.Category,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		MessageID: event.MessageID,
	}
	if event.Actor.ID != "" || event.Actor.Kind != "" {
		actor := event.Actor
		line.Actor = &actor
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(line); err != nil {
		return err
	}
	s.pending++
	if s.batch > 0 && s.pending >= s.batch {
		return s.flushLocked()
	}
	return nil
}

// Close stops the flusher, flushes and closes an owned file.
func (s *JSON) Close(context.Context) error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.flushLocked()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}

func (s *JSON) flushLocked() error {
	s.pending = 0
	return s.writer.Flush()
}

func (s *JSON) flushEvery(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			_ = s.flushLocked()
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
