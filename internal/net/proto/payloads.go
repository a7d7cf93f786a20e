package proto

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/michaelt919/TES3MP/internal/attack"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/statebuf"
)

// HandshakePayload opens a connection between two peers.
type HandshakePayload struct {
	Peer    string `json:"peer" jsonschema:"required,minLength=1"`
	Version int    `json:"version" jsonschema:"required"`
}

// DisconnectPayload announces that a peer left the session.
type DisconnectPayload struct {
	Peer   string `json:"peer" jsonschema:"required,minLength=1"`
	Reason string `json:"reason,omitempty"`
}

// SpawnPayload announces an entity entering the simulation.
type SpawnPayload struct {
	ID       string     `json:"id" jsonschema:"required,minLength=1"`
	Class    string     `json:"class" jsonschema:"required,enum=player,enum=actor,enum=object"`
	Owner    string     `json:"owner,omitempty"`
	Position [3]float32 `json:"position"`
	Heading  float32    `json:"heading"`
}

// ActorListPayload adds or removes a batch of actors.
type ActorListPayload struct {
	Action string         `json:"action" jsonschema:"required,enum=add,enum=remove"`
	Actors []SpawnPayload `json:"actors" jsonschema:"required"`
}

// AuthorityPayload hands actors to a peer.
type AuthorityPayload struct {
	Peer   string   `json:"peer" jsonschema:"required,minLength=1"`
	Actors []string `json:"actors" jsonschema:"required"`
}

// AttackPayload is the wire form of an attack record.
type AttackPayload struct {
	Owner                  string      `json:"owner" jsonschema:"required,minLength=1"`
	Target                 string      `json:"target,omitempty"`
	Kind                   string      `json:"kind" jsonschema:"required,enum=melee,enum=ranged,enum=magic"`
	Seq                    uint64      `json:"seq"`
	Success                bool        `json:"success"`
	Blocked                bool        `json:"blocked"`
	Hit                    bool        `json:"hit,omitempty"`
	HitPosition            *[3]float32 `json:"hitPosition,omitempty"`
	EnchantmentApplied     bool        `json:"enchantmentApplied,omitempty"`
	AmmoEnchantmentApplied bool        `json:"ammoEnchantmentApplied,omitempty"`
	ShouldSend             bool        `json:"shouldSend"`
	Weapon                 string      `json:"weapon,omitempty"`
	Spell                  string      `json:"spell,omitempty"`
}

// ItemPayload is the wire form of an item stack.
type ItemPayload struct {
	RefID     string `json:"refId" jsonschema:"required,minLength=1"`
	Count     uint32 `json:"count"`
	Condition int32  `json:"condition"`
}

// DeltaPayload is one ordered inventory change.
type DeltaPayload struct {
	Action string        `json:"action" jsonschema:"required,enum=add,enum=remove"`
	Items  []ItemPayload `json:"items" jsonschema:"required"`
}

// InventoryPayload carries a published inventory snapshot.
type InventoryPayload struct {
	Entity string         `json:"entity" jsonschema:"required,minLength=1"`
	Deltas []DeltaPayload `json:"deltas"`
}

// SlotPayload is one equipment slot. An empty refId means unequipped.
type SlotPayload struct {
	Index     int    `json:"index" jsonschema:"minimum=0"`
	RefID     string `json:"refId,omitempty"`
	Count     uint32 `json:"count,omitempty"`
	Condition int32  `json:"condition"`
}

// EquipmentPayload carries a full equipment array.
type EquipmentPayload struct {
	Entity string        `json:"entity" jsonschema:"required,minLength=1"`
	Slots  []SlotPayload `json:"slots" jsonschema:"required"`
}

// AttackFromRecord converts a finalized record for the wire.
func AttackFromRecord(rec attack.Record) AttackPayload {
	payload := AttackPayload{
		Owner:                  rec.Owner,
		Target:                 rec.Target,
		Kind:                   rec.Kind.String(),
		Seq:                    rec.Seq,
		Success:                rec.Success,
		Blocked:                rec.Blocked,
		Hit:                    rec.Hit,
		EnchantmentApplied:     rec.EnchantmentApplied,
		AmmoEnchantmentApplied: rec.AmmoEnchantmentApplied,
		ShouldSend:             rec.ShouldSend,
		Weapon:                 rec.Weapon,
		Spell:                  rec.Spell,
	}
	if rec.HitPosition != nil {
		pos := [3]float32(*rec.HitPosition)
		payload.HitPosition = &pos
	}
	return payload
}

// Record converts the payload back into an attack record.
func (p AttackPayload) Record() (attack.Record, error) {
	kind, ok := attack.ParseKind(p.Kind)
	if !ok {
		return attack.Record{}, fmt.Errorf("attack kind %q: %w", p.Kind, ErrInvalidPayload)
	}
	rec := attack.Record{
		Owner:                  p.Owner,
		Target:                 p.Target,
		Kind:                   kind,
		Seq:                    p.Seq,
		Success:                p.Success,
		Blocked:                p.Blocked,
		Hit:                    p.Hit,
		EnchantmentApplied:     p.EnchantmentApplied,
		AmmoEnchantmentApplied: p.AmmoEnchantmentApplied,
		ShouldSend:             p.ShouldSend,
		Weapon:                 p.Weapon,
		Spell:                  p.Spell,
	}
	if p.HitPosition != nil {
		pos := mgl32.Vec3(*p.HitPosition)
		rec.HitPosition = &pos
	}
	return rec, nil
}

// InventoryFromSnapshot converts a drained snapshot for the wire.
func InventoryFromSnapshot(snap statebuf.Snapshot) InventoryPayload {
	payload := InventoryPayload{Entity: snap.Entity, Deltas: make([]DeltaPayload, 0, len(snap.Deltas))}
	for _, delta := range snap.Deltas {
		items := make([]ItemPayload, 0, len(delta.Items))
		for _, item := range delta.Items {
			items = append(items, ItemPayload{RefID: item.RefID, Count: item.Count, Condition: item.Condition})
		}
		payload.Deltas = append(payload.Deltas, DeltaPayload{Action: delta.Action.String(), Items: items})
	}
	return payload
}

// Snapshot converts the payload into a snapshot for the given class.
func (p InventoryPayload) Snapshot(class entity.Class) (statebuf.Snapshot, error) {
	snap := statebuf.Snapshot{Entity: p.Entity, Class: class, Deltas: make([]statebuf.Delta, 0, len(p.Deltas))}
	for _, delta := range p.Deltas {
		var action statebuf.Action
		switch delta.Action {
		case "add":
			action = statebuf.ActionAdd
		case "remove":
			action = statebuf.ActionRemove
		default:
			return statebuf.Snapshot{}, fmt.Errorf("inventory action %q: %w", delta.Action, ErrInvalidPayload)
		}
		items := make([]entity.ItemStack, 0, len(delta.Items))
		for _, item := range delta.Items {
			items = append(items, entity.ItemStack{RefID: item.RefID, Count: item.Count, Condition: item.Condition})
		}
		snap.Deltas = append(snap.Deltas, statebuf.Delta{Action: action, Items: items})
	}
	return snap, nil
}

// EquipmentFromSnapshot converts an equipment array for the wire.
func EquipmentFromSnapshot(snap statebuf.EquipmentSnapshot) EquipmentPayload {
	payload := EquipmentPayload{Entity: snap.Entity, Slots: make([]SlotPayload, 0, len(snap.Slots))}
	for _, slot := range snap.Slots {
		payload.Slots = append(payload.Slots, SlotPayload{
			Index:     slot.Index,
			RefID:     slot.Item.RefID,
			Count:     slot.Item.Count,
			Condition: slot.Item.Condition,
		})
	}
	return payload
}

// Snapshot converts the payload into an equipment snapshot. Slot indices
// are validated when the snapshot is applied.
func (p EquipmentPayload) Snapshot(class entity.Class) statebuf.EquipmentSnapshot {
	snap := statebuf.EquipmentSnapshot{Entity: p.Entity, Class: class, Slots: make([]entity.Slot, 0, len(p.Slots))}
	for _, slot := range p.Slots {
		snap.Slots = append(snap.Slots, entity.Slot{
			Index: slot.Index,
			Item:  entity.ItemStack{RefID: slot.RefID, Count: slot.Count, Condition: slot.Condition},
		})
	}
	return snap
}

// ParseClass maps a wire class name onto an entity class.
func ParseClass(name string) (entity.Class, bool) {
	switch name {
	case "player":
		return entity.ClassPlayer, true
	case "actor":
		return entity.ClassActor, true
	case "object":
		return entity.ClassObject, true
	default:
		return entity.ClassObject, false
	}
}

// SpawnFromEntity converts an entity for the wire.
func SpawnFromEntity(e entity.Entity, owner string) SpawnPayload {
	return SpawnPayload{
		ID:       e.ID,
		Class:    e.Class.String(),
		Owner:    owner,
		Position: [3]float32(e.Position),
		Heading:  e.Heading,
	}
}

// Entity converts the payload into a fresh entity.
func (p SpawnPayload) Entity() (entity.Entity, error) {
	class, ok := ParseClass(p.Class)
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity class %q: %w", p.Class, ErrInvalidPayload)
	}
	return entity.Entity{
		ID:       p.ID,
		Class:    class,
		Position: mgl32.Vec3(p.Position),
		Heading:  p.Heading,
	}, nil
}
