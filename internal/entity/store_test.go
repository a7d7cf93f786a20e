package entity

import (
	"errors"
	"testing"
)

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Entity{ID: "p1", Inventory: ItemList{{RefID: "gold_001", Count: 5}}})

	got, ok := store.Get("p1")
	if !ok {
		t.Fatalf("expected entity to be stored")
	}
	got.Inventory[0].Count = 99

	again, _ := store.Get("p1")
	if again.Inventory[0].Count != 5 {
		t.Fatalf("expected store copy to be isolated, got %d", again.Inventory[0].Count)
	}

	if err := store.Update("p1", func(e *Entity) { e.Inventory[0].Count = 7 }); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	again, _ = store.Get("p1")
	if again.Inventory[0].Count != 7 {
		t.Fatalf("expected update to persist, got %d", again.Inventory[0].Count)
	}

	if err := store.Update("missing", func(*Entity) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !store.Delete("p1") || store.Delete("p1") {
		t.Fatalf("expected delete to succeed once")
	}
}
