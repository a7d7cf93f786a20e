package inventory

import (
	"context"

	"github.com/michaelt919/TES3MP/logging"
)

const (
	// EventDeltaPublished is emitted when a Local entity's pending inventory
	// changes are drained and transmitted.
	EventDeltaPublished logging.EventType = "inventory.delta_published"
	// EventDeltaApplied is emitted when a replicated delta is applied to a
	// Dedicated entity.
	EventDeltaApplied logging.EventType = "inventory.delta_applied"
	// EventEquipmentPublished is emitted when an equipment array is sent.
	EventEquipmentPublished logging.EventType = "inventory.equipment_published"
	// EventEquipmentApplied is emitted when a replicated equipment array is
	// applied.
	EventEquipmentApplied logging.EventType = "inventory.equipment_applied"
	// EventUnequipStub is emitted whenever the unequip stub is called.
	EventUnequipStub logging.EventType = "inventory.unequip_stub"
)

// StackPayload is the loggable view of one item stack.
type StackPayload struct {
	RefID     string `json:"refId"`
	Count     uint32 `json:"count"`
	Condition int32  `json:"condition"`
}

// DeltaPayload summarises one inventory delta.
type DeltaPayload struct {
	Action string         `json:"action"`
	Items  []StackPayload `json:"items"`
}

// SnapshotPayload summarises a published or applied inventory snapshot.
type SnapshotPayload struct {
	Deltas []DeltaPayload `json:"deltas"`
}

// EquipmentPayload summarises an equipment publication.
type EquipmentPayload struct {
	Slots     int  `json:"slots"`
	Broadcast bool `json:"broadcast"`
}

// UnequipStubPayload names the slot that was requested.
type UnequipStubPayload struct {
	Slot int `json:"slot"`
}

// DeltaPublished publishes an info event for a transmitted snapshot.
func DeltaPublished(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SnapshotPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDeltaPublished,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// DeltaApplied publishes an info event for an applied snapshot.
func DeltaApplied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SnapshotPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDeltaApplied,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EquipmentPublished publishes a debug event for a sent equipment array.
func EquipmentPublished(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload EquipmentPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEquipmentPublished,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EquipmentApplied publishes a debug event for an applied equipment array.
func EquipmentApplied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload EquipmentPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEquipmentApplied,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// UnequipStub publishes a warning: unequipping is not implemented.
func UnequipStub(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload UnequipStubPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventUnequipStub,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryInventory,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
