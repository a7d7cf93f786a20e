package statebuf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/logging"
	loginventory "github.com/michaelt919/TES3MP/logging/inventory"
)

// ErrUnknownEntity reports a mutation or read against an entity the store
// does not hold.
var ErrUnknownEntity = errors.New("unknown entity")

type pending struct {
	adds   []entity.ItemStack
	remove []entity.ItemStack
}

func (p *pending) empty() bool {
	return p == nil || (len(p.adds) == 0 && p.remove == nil)
}

// Buffer owns the pending inventory writes of every Local entity and the
// equipment accessors shared by both sides. Pending state is separate from
// the visible inventory held by the store until Publish drains it.
type Buffer struct {
	store entity.Store
	tx    Transmitter
	pub   logging.Publisher

	mu      sync.Mutex
	pending map[string]*pending
}

// New constructs a buffer over store. A nil publisher disables events.
func New(store entity.Store, tx Transmitter, pub logging.Publisher) *Buffer {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Buffer{
		store:   store,
		tx:      tx,
		pub:     pub,
		pending: make(map[string]*pending),
	}
}

// AddItem appends a stack to the entity's pending Add delta.
func (b *Buffer) AddItem(ctx context.Context, sess authority.Session, id, refID string, count uint32, condition int32) error {
	if err := b.mutable(ctx, sess, id, "inventory.add"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pendingLocked(id)
	p.adds = append(p.adds, entity.ItemStack{RefID: refID, Count: count, Condition: condition})
	return nil
}

// RemoveItem replaces the entity's pending Remove delta. Earlier removals
// in the same publish window are discarded.
func (b *Buffer) RemoveItem(ctx context.Context, sess authority.Session, id, refID string, count uint32) error {
	if err := b.mutable(ctx, sess, id, "inventory.remove"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pendingLocked(id)
	p.remove = []entity.ItemStack{{RefID: refID, Count: count, Condition: entity.ConditionUnset}}
	return nil
}

// Publish drains the entity's pending mutations into a snapshot, transmits
// it and then applies it to the visible inventory. With nothing pending it
// returns an empty snapshot and sends nothing. A failed transmit leaves the
// visible inventory untouched and the mutations pending.
func (b *Buffer) Publish(ctx context.Context, sess authority.Session, id string) (Snapshot, error) {
	if err := sess.RequireLocal(ctx, id, "inventory.publish"); err != nil {
		return Snapshot{}, err
	}
	e, ok := b.store.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("publish %s: %w", id, ErrUnknownEntity)
	}

	b.mu.Lock()
	p := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	snap := Snapshot{Entity: id, Class: e.Class}
	if p.empty() {
		return snap, nil
	}
	if len(p.adds) > 0 {
		snap.Deltas = append(snap.Deltas, Delta{Action: ActionAdd, Items: p.adds})
	}
	if p.remove != nil {
		snap.Deltas = append(snap.Deltas, Delta{Action: ActionRemove, Items: p.remove})
	}

	if b.tx != nil {
		if err := b.tx.TransmitInventory(ctx, snap); err != nil {
			b.restore(id, p)
			return Snapshot{}, fmt.Errorf("transmit inventory %s: %w", id, err)
		}
	}
	if err := b.store.Update(id, func(e *entity.Entity) {
		e.Inventory = ApplyDeltas(e.Inventory, snap.Deltas)
	}); err != nil {
		return snap, fmt.Errorf("publish %s: %w", id, err)
	}
	loginventory.DeltaPublished(ctx, b.pub, entityRef(e), snapshotPayload(snap), nil)
	return snap, nil
}

// restore puts a drained delta back in front of anything queued since.
// A removal queued after the drain still wins.
func (b *Buffer) restore(id string, drained *pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.pending[id]
	if !ok {
		b.pending[id] = drained
		return
	}
	cur.adds = append(drained.adds, cur.adds...)
	if cur.remove == nil {
		cur.remove = drained.remove
	}
}

// Pending reports whether the entity has unpublished mutations.
func (b *Buffer) Pending(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.pending[id].empty()
}

// Discard drops any unpublished mutations of the entity.
func (b *Buffer) Discard(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
}

// EquipItem writes a stack into an equipment slot. An out-of-range slot
// panics with *entity.IndexOutOfRangeError.
func (b *Buffer) EquipItem(ctx context.Context, sess authority.Session, id string, slot int, refID string, count uint32, condition int32) error {
	entity.CheckSlot(slot)
	if err := sess.RequireLocal(ctx, id, "equipment.equip"); err != nil {
		return err
	}
	err := b.store.Update(id, func(e *entity.Entity) {
		e.Equipment.Set(slot, entity.ItemStack{RefID: refID, Count: count, Condition: condition})
	})
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("equip %s: %w", id, ErrUnknownEntity)
	}
	return err
}

// UnequipItem is not implemented: it validates the slot, logs a warning
// and leaves the slot untouched.
func (b *Buffer) UnequipItem(ctx context.Context, sess authority.Session, id string, slot int) {
	entity.CheckSlot(slot)
	e, ok := b.store.Get(id)
	if !ok {
		return
	}
	loginventory.UnequipStub(ctx, b.pub, entityRef(e), loginventory.UnequipStubPayload{Slot: slot}, nil)
}

// EquipmentItem reads a slot. An out-of-range slot panics; an unknown
// entity reports false.
func (b *Buffer) EquipmentItem(id string, slot int) (entity.ItemStack, bool) {
	entity.CheckSlot(slot)
	e, ok := b.store.Get(id)
	if !ok {
		return entity.ItemStack{}, false
	}
	return e.Equipment.Get(slot), true
}

// InventoryItem reads the visible inventory at index. An index past the
// end reports false rather than panicking.
func (b *Buffer) InventoryItem(id string, index int) (entity.ItemStack, bool) {
	e, ok := b.store.Get(id)
	if !ok {
		return entity.ItemStack{}, false
	}
	return e.Inventory.At(index)
}

// PublishEquipment sends the full equipment array to the owner's peer and
// then broadcasts it to everyone else.
func (b *Buffer) PublishEquipment(ctx context.Context, sess authority.Session, id string) (EquipmentSnapshot, error) {
	if err := sess.RequireLocal(ctx, id, "equipment.publish"); err != nil {
		return EquipmentSnapshot{}, err
	}
	e, ok := b.store.Get(id)
	if !ok {
		return EquipmentSnapshot{}, fmt.Errorf("publish equipment %s: %w", id, ErrUnknownEntity)
	}
	snap := EquipmentSnapshot{Entity: id, Class: e.Class, Slots: e.Equipment.Slots()}
	if b.tx != nil {
		for _, broadcast := range []bool{false, true} {
			if err := b.tx.TransmitEquipment(ctx, snap, broadcast); err != nil {
				return snap, fmt.Errorf("transmit equipment %s: %w", id, err)
			}
		}
	}
	loginventory.EquipmentPublished(ctx, b.pub, entityRef(e), loginventory.EquipmentPayload{Slots: len(snap.Slots), Broadcast: true}, nil)
	return snap, nil
}

// ApplyInventory applies a replicated snapshot to a Dedicated entity.
func (b *Buffer) ApplyInventory(ctx context.Context, sess authority.Session, snap Snapshot) error {
	if err := sess.RequireDedicated(ctx, snap.Entity, "inventory.apply"); err != nil {
		return err
	}
	var ref logging.EntityRef
	err := b.store.Update(snap.Entity, func(e *entity.Entity) {
		e.Inventory = ApplyDeltas(e.Inventory, snap.Deltas)
		ref = entityRef(*e)
	})
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("apply inventory %s: %w", snap.Entity, ErrUnknownEntity)
	}
	if err != nil {
		return err
	}
	loginventory.DeltaApplied(ctx, b.pub, ref, snapshotPayload(snap), nil)
	return nil
}

// ApplyEquipment writes a replicated equipment array onto a Dedicated
// entity. Inbound slot indices outside the layout are rejected as an error.
func (b *Buffer) ApplyEquipment(ctx context.Context, sess authority.Session, snap EquipmentSnapshot) error {
	if err := sess.RequireDedicated(ctx, snap.Entity, "equipment.apply"); err != nil {
		return err
	}
	for _, slot := range snap.Slots {
		if slot.Index < 0 || slot.Index >= entity.MaxSlots {
			return fmt.Errorf("apply equipment %s: %w", snap.Entity, &entity.IndexOutOfRangeError{Index: slot.Index, Limit: entity.MaxSlots})
		}
	}
	var ref logging.EntityRef
	err := b.store.Update(snap.Entity, func(e *entity.Entity) {
		for _, slot := range snap.Slots {
			e.Equipment.Set(slot.Index, slot.Item)
		}
		ref = entityRef(*e)
	})
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("apply equipment %s: %w", snap.Entity, ErrUnknownEntity)
	}
	if err != nil {
		return err
	}
	loginventory.EquipmentApplied(ctx, b.pub, ref, loginventory.EquipmentPayload{Slots: len(snap.Slots)}, nil)
	return nil
}

func (b *Buffer) mutable(ctx context.Context, sess authority.Session, id, op string) error {
	if err := sess.RequireLocal(ctx, id, op); err != nil {
		return err
	}
	if _, ok := b.store.Get(id); !ok {
		return fmt.Errorf("%s %s: %w", op, id, ErrUnknownEntity)
	}
	return nil
}

func (b *Buffer) pendingLocked(id string) *pending {
	p, ok := b.pending[id]
	if !ok {
		p = &pending{}
		b.pending[id] = p
	}
	return p
}

func entityRef(e entity.Entity) logging.EntityRef {
	kind := logging.EntityKindActor
	switch e.Class {
	case entity.ClassPlayer:
		kind = logging.EntityKindPlayer
	case entity.ClassObject:
		kind = logging.EntityKindObject
	}
	return logging.EntityRef{ID: e.ID, Kind: kind}
}

func snapshotPayload(snap Snapshot) loginventory.SnapshotPayload {
	payload := loginventory.SnapshotPayload{Deltas: make([]loginventory.DeltaPayload, 0, len(snap.Deltas))}
	for _, delta := range snap.Deltas {
		items := make([]loginventory.StackPayload, 0, len(delta.Items))
		for _, item := range delta.Items {
			items = append(items, loginventory.StackPayload{RefID: item.RefID, Count: item.Count, Condition: item.Condition})
		}
		payload.Deltas = append(payload.Deltas, loginventory.DeltaPayload{Action: delta.Action.String(), Items: items})
	}
	return payload
}
