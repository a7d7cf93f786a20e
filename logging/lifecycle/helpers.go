package lifecycle

import (
	"context"

	"github.com/michaelt919/TES3MP/logging"
)

const (
	// EventPeerJoined is emitted when a remote peer completes its handshake.
	EventPeerJoined logging.EventType = "lifecycle.peer_joined"
	// EventPeerLeft is emitted when a remote peer disconnects.
	EventPeerLeft logging.EventType = "lifecycle.peer_left"
	// EventEntitySpawned is emitted when an entity enters the simulation.
	EventEntitySpawned logging.EventType = "lifecycle.entity_spawned"
	// EventEntityDespawned is emitted when an entity leaves the simulation.
	EventEntityDespawned logging.EventType = "lifecycle.entity_despawned"
	// EventOwnershipChanged is emitted when an entity changes owner.
	EventOwnershipChanged logging.EventType = "lifecycle.ownership_changed"
	// EventResyncScheduled is emitted when a remote peer keeps sending
	// records that contradict this peer's ownership and is sent a fresh
	// announcement of every Local entity.
	EventResyncScheduled logging.EventType = "lifecycle.resync_scheduled"
)

// PeerPayload captures connection metadata.
type PeerPayload struct {
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// EntityPayload describes a spawned or despawned entity.
type EntityPayload struct {
	Class     string `json:"class"`
	Authority string `json:"authority"`
}

// OwnershipPayload describes an ownership change.
type OwnershipPayload struct {
	Owner    string `json:"owner"`
	Deferred bool   `json:"deferred,omitempty"`
}

// ResyncPayload summarises why a resync was scheduled.
type ResyncPayload struct {
	Violations uint64   `json:"violations"`
	Messages   uint64   `json:"messages"`
	Reasons    []string `json:"reasons,omitempty"`
}

// PeerJoined publishes a peer join event.
func PeerJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PeerPayload, extra map[string]any) {
	publish(ctx, pub, EventPeerJoined, logging.SeverityInfo, actor, payload, extra)
}

// PeerLeft publishes a peer disconnect event.
func PeerLeft(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PeerPayload, extra map[string]any) {
	publish(ctx, pub, EventPeerLeft, logging.SeverityInfo, actor, payload, extra)
}

// EntitySpawned publishes an entity spawn event.
func EntitySpawned(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload EntityPayload, extra map[string]any) {
	publish(ctx, pub, EventEntitySpawned, logging.SeverityDebug, actor, payload, extra)
}

// EntityDespawned publishes an entity despawn event.
func EntityDespawned(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload EntityPayload, extra map[string]any) {
	publish(ctx, pub, EventEntityDespawned, logging.SeverityDebug, actor, payload, extra)
}

// OwnershipChanged publishes an ownership change event.
func OwnershipChanged(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload OwnershipPayload, extra map[string]any) {
	publish(ctx, pub, EventOwnershipChanged, logging.SeverityInfo, actor, payload, extra)
}

// ResyncScheduled publishes a warning when a remote peer is resynchronised.
func ResyncScheduled(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ResyncPayload, extra map[string]any) {
	publish(ctx, pub, EventResyncScheduled, logging.SeverityWarn, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
