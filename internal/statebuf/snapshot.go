package statebuf

import (
	"context"

	"github.com/michaelt919/TES3MP/internal/entity"
)

// Action selects how a delta's items are applied.
type Action uint8

const (
	ActionAdd Action = iota
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Delta is one ordered inventory change.
type Delta struct {
	Action Action             `json:"action"`
	Items  []entity.ItemStack `json:"items"`
}

// Snapshot is the immutable result of draining an entity's pending
// mutations. Adds come first, then at most one Remove.
type Snapshot struct {
	Entity string       `json:"entity"`
	Class  entity.Class `json:"class"`
	Deltas []Delta      `json:"deltas"`
}

// Empty reports whether the snapshot carries no changes.
func (s Snapshot) Empty() bool {
	return len(s.Deltas) == 0
}

// EquipmentSnapshot is the full equipment array of one entity.
type EquipmentSnapshot struct {
	Entity string        `json:"entity"`
	Class  entity.Class  `json:"class"`
	Slots  []entity.Slot `json:"slots"`
}

// Transmitter hands published snapshots to the replication layer.
type Transmitter interface {
	TransmitInventory(ctx context.Context, snap Snapshot) error
	TransmitEquipment(ctx context.Context, snap EquipmentSnapshot, broadcast bool) error
}

// ApplyDeltas applies deltas to list in order and returns the result.
func ApplyDeltas(list entity.ItemList, deltas []Delta) entity.ItemList {
	for _, delta := range deltas {
		for _, item := range delta.Items {
			switch delta.Action {
			case ActionAdd:
				list = list.Add(item)
			case ActionRemove:
				list, _ = list.Remove(item)
			}
		}
	}
	return list
}
