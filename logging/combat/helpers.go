package combat

import (
	"context"

	"github.com/michaelt919/TES3MP/logging"
)

const (
	// EventAttackResolved is emitted when a Local attacker's outcome is computed.
	EventAttackResolved logging.EventType = "combat.attack_resolved"
	// EventAttackSent is emitted when a finalized record is queued for peers.
	EventAttackSent logging.EventType = "combat.attack_sent"
	// EventAttackApplied is emitted when a reported record is applied to a
	// Dedicated entity.
	EventAttackApplied logging.EventType = "combat.attack_applied"
	// EventResolutionFailed is emitted when resolution degraded to no effect
	// because of an error.
	EventResolutionFailed logging.EventType = "combat.resolution_failed"
)

// ResolutionFailedPayload captures why an action ended without effect.
type ResolutionFailedPayload struct {
	Kind   string `json:"kind"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
}

// AttackResolved publishes a debug event with the computed outcome.
func AttackResolved(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload AttackPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventAttackResolved,
		Actor:    actor,
		Targets:  targets(target),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// AttackSent publishes an info event once the record is queued.
func AttackSent(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload AttackPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventAttackSent,
		Actor:    actor,
		Targets:  targets(target),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// AttackApplied publishes an info event for a replicated record.
func AttackApplied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload AttackPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventAttackApplied,
		Actor:    actor,
		Targets:  targets(target),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ResolutionFailed publishes a warning when an action degraded to no effect.
func ResolutionFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ResolutionFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventResolutionFailed,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
