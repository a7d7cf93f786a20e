package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/net/router"
	loglifecycle "github.com/michaelt919/TES3MP/logging/lifecycle"
)

const (
	resyncMetricKey = "resync_scheduled_total"

	// A remote is resynchronised once at least this many of every hundred
	// messages it sent were authority violations.
	violationThresholdPerHundred = 1
	resyncReasonLimit            = 8
)

// resyncSignal is the summary handed out when a policy trips.
type resyncSignal struct {
	Violations uint64
	Messages   uint64
	Reasons    []string
}

// resyncPolicy tracks how often one remote peer sends records that
// contradict the local ownership view.
type resyncPolicy struct {
	messages   uint64
	violations uint64
	pending    bool
	reasons    []string
}

func newResyncPolicy() *resyncPolicy {
	return &resyncPolicy{reasons: make([]string, 0, resyncReasonLimit)}
}

func (r *resyncPolicy) noteMessage() {
	if r.messages == ^uint64(0) {
		r.messages /= 2
		r.violations /= 2
	}
	r.messages++
}

func (r *resyncPolicy) noteViolation(reason string) {
	r.violations++
	if len(r.reasons) < resyncReasonLimit {
		r.reasons = append(r.reasons, reason)
	}
	r.evaluate()
}

func (r *resyncPolicy) evaluate() {
	if r.pending || r.violations == 0 {
		return
	}
	total := r.messages
	if total == 0 {
		total = 1
	}
	if r.violations*100 >= total*violationThresholdPerHundred {
		r.pending = true
	}
}

func (r *resyncPolicy) consume() (resyncSignal, bool) {
	if !r.pending {
		return resyncSignal{}, false
	}
	signal := resyncSignal{
		Violations: r.violations,
		Messages:   r.messages,
		Reasons:    append([]string(nil), r.reasons...),
	}
	r.pending = false
	r.messages = 0
	r.violations = 0
	r.reasons = r.reasons[:0]
	return signal, true
}

func (s resyncSignal) summary() string {
	return fmt.Sprintf("violations=%d messages=%d reasons=%v", s.Violations, s.Messages, s.Reasons)
}

// resyncs holds one policy per remote peer. Inbound lanes run
// concurrently, so access is locked.
type resyncs struct {
	mu       sync.Mutex
	policies map[string]*resyncPolicy
}

// note records one handled message from remote and reports whether remote
// should be resynchronised now.
func (r *resyncs) note(remote string, msg router.Inbound, err error) (resyncSignal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.policies == nil {
		r.policies = make(map[string]*resyncPolicy)
	}
	policy, ok := r.policies[remote]
	if !ok {
		policy = newResyncPolicy()
		r.policies[remote] = policy
	}
	policy.noteMessage()
	if errors.Is(err, authority.ErrAuthorityViolation) {
		policy.noteViolation(msg.Envelope.Type.String())
	}
	return policy.consume()
}

func (r *resyncs) forget(remote string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.policies, remote)
}

// observed wraps an inbound handler so violations sent by a remote feed
// its resync policy. A tripped policy replays every Local entity to the
// remote so its ownership view converges.
func (p *Peer) observed(h router.Handler) router.Handler {
	return func(ctx context.Context, msg router.Inbound) error {
		err := h(ctx, msg)
		if msg.From == "" || msg.From == p.sess.Peer() {
			return err
		}
		signal, resync := p.resyncs.note(msg.From, msg, err)
		if !resync {
			return err
		}
		p.addMetric(resyncMetricKey, 1)
		loglifecycle.ResyncScheduled(ctx, p.pub, peerRef(msg.From), loglifecycle.ResyncPayload{
			Violations: signal.Violations,
			Messages:   signal.Messages,
			Reasons:    signal.Reasons,
		}, map[string]any{"summary": signal.summary()})
		if rerr := p.replay(ctx, msg.From); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
}
