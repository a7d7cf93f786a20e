package peer

import (
	"context"
	"fmt"

	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
	"github.com/michaelt919/TES3MP/internal/statebuf"
)

// TransmitInventory implements statebuf.Transmitter. Player inventories use
// ID_PLAYER_INVENTORY; actor and object inventories ride ID_CONTAINER on
// the lane of their class.
func (p *Peer) TransmitInventory(ctx context.Context, snap statebuf.Snapshot) error {
	msgType := proto.MsgContainer
	if snap.Class == entity.ClassPlayer {
		msgType = proto.MsgPlayerInventory
	}
	return p.router.Send(ctx, p.broadcast(snap.Class), msgType, proto.InventoryFromSnapshot(snap), true)
}

// TransmitEquipment implements statebuf.Transmitter. The non-broadcast copy
// addresses this peer's own session and is skipped by the transport.
func (p *Peer) TransmitEquipment(ctx context.Context, snap statebuf.EquipmentSnapshot, broadcast bool) error {
	var msgType proto.MessageType
	switch snap.Class {
	case entity.ClassPlayer:
		msgType = proto.MsgPlayerEquipment
	case entity.ClassActor:
		msgType = proto.MsgActorEquipment
	default:
		return fmt.Errorf("%s: %w", snap.Entity, ErrNotCombatant)
	}
	return p.router.Send(ctx, p.broadcast(snap.Class), msgType, proto.EquipmentFromSnapshot(snap), broadcast)
}

// handleInventory applies a delta sent by the owner of the entity. Deltas
// from any other peer are violations.
func (p *Peer) handleInventory(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.InventoryPayload)
	if !ok {
		return fmt.Errorf("inventory payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	target, err := p.entity(payload.Entity)
	if err != nil {
		return err
	}
	if err := p.sess.RequireOwner(ctx, target.ID, msg.From, "inventory.apply"); err != nil {
		return err
	}
	snap, err := payload.Snapshot(target.Class)
	if err != nil {
		return err
	}
	return p.buffer.ApplyInventory(ctx, p.sess, snap)
}

func (p *Peer) handleEquipment(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.EquipmentPayload)
	if !ok {
		return fmt.Errorf("equipment payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	target, err := p.entity(payload.Entity)
	if err != nil {
		return err
	}
	if err := p.sess.RequireOwner(ctx, target.ID, msg.From, "equipment.apply"); err != nil {
		return err
	}
	return p.buffer.ApplyEquipment(ctx, p.sess, payload.Snapshot(target.Class))
}
