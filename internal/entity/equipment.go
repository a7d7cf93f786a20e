package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Equipment slot indices, in the order the engine's inventory store lays
// them out. Both peers must agree on this layout.
const (
	SlotHelmet = iota
	SlotCuirass
	SlotGreaves
	SlotLeftPauldron
	SlotRightPauldron
	SlotLeftGauntlet
	SlotRightGauntlet
	SlotBoots
	SlotShirt
	SlotPants
	SlotSkirt
	SlotRobe
	SlotLeftRing
	SlotRightRing
	SlotAmulet
	SlotBelt
	SlotCarriedRight
	SlotCarriedLeft
	SlotAmmunition

	// MaxSlots is the fixed equipment array length.
	MaxSlots
)

// ErrIndexOutOfRange is the sentinel wrapped by IndexOutOfRangeError.
var ErrIndexOutOfRange = errors.New("equipment slot index out of range")

// IndexOutOfRangeError is raised (as a panic value) when an equipment slot
// index falls outside [0, MaxSlots). A bad slot index means the two peers
// disagree on the slot layout, so it is never clamped.
type IndexOutOfRangeError struct {
	Index int
	Limit int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("equipment slot %d outside [0, %d)", e.Index, e.Limit)
}

func (e *IndexOutOfRangeError) Unwrap() error {
	return ErrIndexOutOfRange
}

// CheckSlot panics with *IndexOutOfRangeError when slot is out of bounds.
func CheckSlot(slot int) {
	if slot < 0 || slot >= MaxSlots {
		panic(&IndexOutOfRangeError{Index: slot, Limit: MaxSlots})
	}
}

// Slot pairs an equipment index with the stack occupying it.
type Slot struct {
	Index int       `json:"index"`
	Item  ItemStack `json:"item"`
}

// Equipment is the fixed-size equipped item array of an actor.
type Equipment [MaxSlots]ItemStack

// Get returns the stack in slot. It panics on an out-of-range slot.
func (e *Equipment) Get(slot int) ItemStack {
	CheckSlot(slot)
	return e[slot]
}

// Set writes the stack into slot. It panics on an out-of-range slot.
func (e *Equipment) Set(slot int, stack ItemStack) {
	CheckSlot(slot)
	e[slot] = stack
}

// Clear empties slot. It panics on an out-of-range slot.
func (e *Equipment) Clear(slot int) {
	CheckSlot(slot)
	e[slot] = ItemStack{}
}

// Slots lists every slot, occupied or not, in index order.
func (e *Equipment) Slots() []Slot {
	slots := make([]Slot, MaxSlots)
	for i := range e {
		slots[i] = Slot{Index: i, Item: e[i]}
	}
	return slots
}

// HasEquipped reports whether any slot holds refID, ignoring case.
func (e *Equipment) HasEquipped(refID string) bool {
	if refID == "" {
		return false
	}
	for i := range e {
		if strings.EqualFold(e[i].RefID, refID) {
			return true
		}
	}
	return false
}
