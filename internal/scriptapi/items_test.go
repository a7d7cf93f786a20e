package scriptapi

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/statebuf"
)

type recordingTransmitter struct {
	mu        sync.Mutex
	inventory []statebuf.Snapshot
	equipment []bool
}

func (r *recordingTransmitter) TransmitInventory(_ context.Context, snap statebuf.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory = append(r.inventory, snap)
	return nil
}

func (r *recordingTransmitter) TransmitEquipment(_ context.Context, _ statebuf.EquipmentSnapshot, broadcast bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.equipment = append(r.equipment, broadcast)
	return nil
}

func newItems(t *testing.T) (*Items, *recordingTransmitter) {
	t.Helper()
	table := authority.NewTable()
	table.Assign("player_1", "peer-a")
	table.Assign("guard_01", "peer-b")
	store := entity.NewMemoryStore()
	store.Put(entity.Entity{ID: "player_1", Class: entity.ClassPlayer})
	store.Put(entity.Entity{ID: "guard_01", Class: entity.ClassActor})
	tx := &recordingTransmitter{}
	sess := authority.NewSession("peer-a", table)
	return NewItems(sess, store, statebuf.New(store, tx, nil)), tx
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("%s: expected panic", name)
		}
		err, ok := r.(error)
		var oob *entity.IndexOutOfRangeError
		if !ok || !errors.As(err, &oob) {
			t.Fatalf("%s: expected IndexOutOfRangeError, got %v", name, r)
		}
	}()
	fn()
}

func TestSlotFaultsButInventoryIndexReturnsSentinel(t *testing.T) {
	items, _ := newItems(t)
	ctx := context.Background()
	if err := items.AddItem(ctx, "player_1", "gold_001", 5, entity.ConditionUnset); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := items.SendInventory(ctx, "player_1"); err != nil {
		t.Fatalf("send: %v", err)
	}

	expectPanic(t, "id", func() { items.GetEquipmentItemId("player_1", entity.MaxSlots) })
	expectPanic(t, "count", func() { items.GetEquipmentItemCount("player_1", -1) })
	expectPanic(t, "health", func() { items.GetEquipmentItemHealth("player_1", entity.MaxSlots+3) })

	if got := items.GetInventorySize("player_1"); got != 1 {
		t.Fatalf("expected 1 stack, got %d", got)
	}
	if got := items.GetInventoryItemId("player_1", 1); got != entity.InvalidItemID {
		t.Fatalf("expected %q, got %q", entity.InvalidItemID, got)
	}
	if got := items.GetInventoryItemCount("player_1", 7); got != 0 {
		t.Fatalf("expected 0 count, got %d", got)
	}
	if got := items.GetInventoryItemHealth("player_1", 7); got != 0 {
		t.Fatalf("expected 0 health, got %d", got)
	}
	if got := items.GetInventoryItemId("player_1", 0); got != "gold_001" {
		t.Fatalf("expected gold_001, got %q", got)
	}
	if got := items.GetInventoryItemCount("player_1", 0); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestUnknownEntityReturnsSafeDefaults(t *testing.T) {
	items, tx := newItems(t)
	ctx := context.Background()

	if got := items.GetInventorySize("ghost"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if items.HasItemEquipped("ghost", "iron_helm") {
		t.Fatalf("expected false for unknown entity")
	}
	if got := items.GetEquipmentItemId("ghost", entity.SlotHelmet); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	if got := items.GetInventoryItemId("ghost", 0); got != "" {
		t.Fatalf("expected empty id for unknown entity, got %q", got)
	}
	for name, err := range map[string]error{
		"equip":  items.EquipItem(ctx, "ghost", entity.SlotHelmet, "iron_helm", 1, 10),
		"add":    items.AddItem(ctx, "ghost", "gold_001", 1, entity.ConditionUnset),
		"remove": items.RemoveItem(ctx, "ghost", "gold_001", 1),
		"sendI":  items.SendInventory(ctx, "ghost"),
		"sendE":  items.SendEquipment(ctx, "ghost"),
	} {
		if err != nil {
			t.Fatalf("%s: expected nil, got %v", name, err)
		}
	}
	if len(tx.inventory) != 0 || len(tx.equipment) != 0 {
		t.Fatalf("expected nothing transmitted")
	}
}

func TestEquipmentAccessors(t *testing.T) {
	items, tx := newItems(t)
	ctx := context.Background()

	if items.GetEquipmentSize() != entity.MaxSlots {
		t.Fatalf("expected %d slots, got %d", entity.MaxSlots, items.GetEquipmentSize())
	}
	if err := items.EquipItem(ctx, "player_1", entity.SlotCarriedLeft, "Iron_Shield", 1, 120); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if !items.HasItemEquipped("player_1", "iron_shield") {
		t.Fatalf("expected case-insensitive match")
	}
	if got := items.GetEquipmentItemHealth("player_1", entity.SlotCarriedLeft); got != 120 {
		t.Fatalf("expected health 120, got %d", got)
	}
	items.UnequipItem(ctx, "player_1", entity.SlotCarriedLeft)
	if got := items.GetEquipmentItemId("player_1", entity.SlotCarriedLeft); got != "Iron_Shield" {
		t.Fatalf("expected unequip to leave the slot, got %q", got)
	}
	if err := items.SendEquipment(ctx, "player_1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(tx.equipment) != 2 || tx.equipment[0] || !tx.equipment[1] {
		t.Fatalf("expected direct then broadcast send, got %v", tx.equipment)
	}
}

func TestRemoteEntityMutationsAreRejected(t *testing.T) {
	items, tx := newItems(t)
	ctx := context.Background()
	err := items.AddItem(ctx, "guard_01", "gold_001", 1, entity.ConditionUnset)
	if !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected authority violation, got %v", err)
	}
	if err := items.SendInventory(ctx, "guard_01"); !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected authority violation, got %v", err)
	}
	if len(tx.inventory) != 0 {
		t.Fatalf("expected nothing transmitted")
	}
}

func TestLatestRemoveWins(t *testing.T) {
	items, tx := newItems(t)
	ctx := context.Background()
	_ = items.RemoveItem(ctx, "player_1", "gold_001", 50)
	_ = items.RemoveItem(ctx, "player_1", "gold_001", 10)
	if err := items.SendInventory(ctx, "player_1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(tx.inventory) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(tx.inventory))
	}
	deltas := tx.inventory[0].Deltas
	if len(deltas) != 1 || deltas[0].Action != statebuf.ActionRemove || deltas[0].Items[0].Count != 10 {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
	if err := items.SendInventory(ctx, "player_1"); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if len(tx.inventory) != 1 {
		t.Fatalf("expected empty publish to send nothing")
	}
}
