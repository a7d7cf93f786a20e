package rng

import "sync"

// Script is a Source that replays queued values in order and counts draws.
// Exhausted queues fall back to the last value, or zero when empty.
type Script struct {
	mu    sync.Mutex
	rolls []int
	probs []float32
	draws int
}

// NewScript builds a Script from queued Roll0to99 results.
func NewScript(rolls ...int) *Script {
	return &Script{rolls: append([]int(nil), rolls...)}
}

// WithProbabilities queues RollProbability results.
func (s *Script) WithProbabilities(probs ...float32) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probs = append(s.probs, probs...)
	return s
}

func (s *Script) Roll0to99() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	if len(s.rolls) == 0 {
		return 0
	}
	v := s.rolls[0]
	if len(s.rolls) > 1 {
		s.rolls = s.rolls[1:]
	}
	return v
}

func (s *Script) RollProbability() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	if len(s.probs) == 0 {
		return 0
	}
	v := s.probs[0]
	if len(s.probs) > 1 {
		s.probs = s.probs[1:]
	}
	return v
}

// Draws reports how many values have been drawn.
func (s *Script) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}
