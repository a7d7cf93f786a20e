package peer

import (
	"context"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/telemetry"
	"github.com/michaelt919/TES3MP/logging"
	lognetwork "github.com/michaelt919/TES3MP/logging/network"
)

const violationMetricKey = "authority_violation_total"

// Monitor counts and logs rejected authority operations. It is built before
// the session so the session can report into it.
type Monitor struct {
	pub     logging.Publisher
	metrics telemetry.Metrics
}

// NewMonitor builds a monitor. Nil arguments disable the respective output.
func NewMonitor(pub logging.Publisher, metrics telemetry.Metrics) *Monitor {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Monitor{pub: pub, metrics: metrics}
}

// AuthorityViolation implements authority.Monitor.
func (m *Monitor) AuthorityViolation(ctx context.Context, v authority.Violation) {
	if m.metrics != nil {
		m.metrics.Add(violationMetricKey, 1)
	}
	lognetwork.AuthorityViolation(ctx, m.pub, logging.EntityRef{ID: v.Entity}, lognetwork.ViolationPayload{
		Op:      v.Op,
		Inbound: v.Inbound,
	}, map[string]any{"peer": v.Peer})
}
