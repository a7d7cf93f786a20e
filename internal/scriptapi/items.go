// Package scriptapi exposes the item accessors and mutators that scripting
// glue calls by entity id. Lookups of unknown entities return zero values
// instead of failing.
package scriptapi

import (
	"context"
	"errors"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/statebuf"
)

// Items is the script-facing view of one peer's inventories and equipment.
type Items struct {
	sess  authority.Session
	store entity.Store
	buf   *statebuf.Buffer
}

// NewItems binds the accessors to a session, the entity store and the
// buffer that owns pending mutations.
func NewItems(sess authority.Session, store entity.Store, buf *statebuf.Buffer) *Items {
	return &Items{sess: sess, store: store, buf: buf}
}

// GetEquipmentSize is the number of equipment slots.
func (i *Items) GetEquipmentSize() int {
	return entity.MaxSlots
}

// GetInventorySize is the number of stacks in the visible inventory.
func (i *Items) GetInventorySize(id string) int {
	e, ok := i.store.Get(id)
	if !ok {
		return 0
	}
	return e.Inventory.Len()
}

// EquipItem writes into a slot of a Local entity. Bad slots panic.
func (i *Items) EquipItem(ctx context.Context, id string, slot int, refID string, count uint32, condition int32) error {
	entity.CheckSlot(slot)
	if !i.known(id) {
		return nil
	}
	return ignoreUnknown(i.buf.EquipItem(ctx, i.sess, id, slot, refID, count, condition))
}

// UnequipItem is accepted but leaves the slot untouched.
func (i *Items) UnequipItem(ctx context.Context, id string, slot int) {
	i.buf.UnequipItem(ctx, i.sess, id, slot)
}

// AddItem queues an added stack until the next SendInventory.
func (i *Items) AddItem(ctx context.Context, id, refID string, count uint32, condition int32) error {
	if !i.known(id) {
		return nil
	}
	return ignoreUnknown(i.buf.AddItem(ctx, i.sess, id, refID, count, condition))
}

// RemoveItem queues a removal, replacing any removal queued before it.
func (i *Items) RemoveItem(ctx context.Context, id, refID string, count uint32) error {
	if !i.known(id) {
		return nil
	}
	return ignoreUnknown(i.buf.RemoveItem(ctx, i.sess, id, refID, count))
}

// HasItemEquipped matches refID against every slot, ignoring case.
func (i *Items) HasItemEquipped(id, refID string) bool {
	e, ok := i.store.Get(id)
	if !ok {
		return false
	}
	return e.Equipment.HasEquipped(refID)
}

func (i *Items) GetEquipmentItemId(id string, slot int) string {
	stack, _ := i.buf.EquipmentItem(id, slot)
	return stack.RefID
}

func (i *Items) GetEquipmentItemCount(id string, slot int) uint32 {
	stack, _ := i.buf.EquipmentItem(id, slot)
	return stack.Count
}

func (i *Items) GetEquipmentItemHealth(id string, slot int) int32 {
	stack, _ := i.buf.EquipmentItem(id, slot)
	return stack.Condition
}

// GetInventoryItemId returns entity.InvalidItemID for an index past the end
// of a known entity's inventory, since peers briefly disagree on inventory
// sizes while deltas are in flight. Unknown entities return "".
func (i *Items) GetInventoryItemId(id string, index int) string {
	if !i.known(id) {
		return ""
	}
	stack, ok := i.buf.InventoryItem(id, index)
	if !ok {
		return entity.InvalidItemID
	}
	return stack.RefID
}

func (i *Items) GetInventoryItemCount(id string, index int) uint32 {
	stack, _ := i.buf.InventoryItem(id, index)
	return stack.Count
}

func (i *Items) GetInventoryItemHealth(id string, index int) int32 {
	stack, _ := i.buf.InventoryItem(id, index)
	return stack.Condition
}

// SendEquipment publishes the entity's full equipment array.
func (i *Items) SendEquipment(ctx context.Context, id string) error {
	if !i.known(id) {
		return nil
	}
	_, err := i.buf.PublishEquipment(ctx, i.sess, id)
	return ignoreUnknown(err)
}

// SendInventory publishes the pending inventory delta.
func (i *Items) SendInventory(ctx context.Context, id string) error {
	if !i.known(id) {
		return nil
	}
	_, err := i.buf.Publish(ctx, i.sess, id)
	return ignoreUnknown(err)
}

// known keeps unknown ids away from the authority checks, which would
// otherwise report them as violations.
func (i *Items) known(id string) bool {
	_, ok := i.store.Get(id)
	return ok
}

func ignoreUnknown(err error) error {
	if errors.Is(err, statebuf.ErrUnknownEntity) {
		return nil
	}
	return err
}
