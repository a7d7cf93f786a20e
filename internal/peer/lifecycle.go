package peer

import (
	"context"
	"errors"
	"fmt"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
	"github.com/michaelt919/TES3MP/internal/statebuf"
	loglifecycle "github.com/michaelt919/TES3MP/logging/lifecycle"
)

// Spawn adds e to the store owned by owner; an empty owner means this peer.
// Entities spawned Local are announced to every connected peer.
func (p *Peer) Spawn(ctx context.Context, e entity.Entity, owner string) error {
	if e.ID == "" {
		return fmt.Errorf("spawn: empty id: %w", ErrUnknownEntity)
	}
	if owner == "" {
		owner = p.sess.Peer()
	}
	p.store.Put(e)
	p.sess.Table().Assign(e.ID, owner)
	tag := p.sess.Classify(e.ID)
	loglifecycle.EntitySpawned(ctx, p.pub, entityRef(e), loglifecycle.EntityPayload{
		Class:     e.Class.String(),
		Authority: tag.String(),
	}, nil)
	if tag != authority.Local {
		return nil
	}
	return p.announce(ctx, e, router.Target{Peer: p.sess.Peer(), Class: e.Class}, true)
}

// Despawn removes a Local entity and announces the removal of actors.
func (p *Peer) Despawn(ctx context.Context, id string) error {
	if err := p.sess.RequireLocal(ctx, id, "entity.despawn"); err != nil {
		return err
	}
	e, err := p.entity(id)
	if err != nil {
		return err
	}
	p.forget(ctx, e, authority.Local)
	if e.Class != entity.ClassActor {
		return nil
	}
	return p.router.Send(ctx, p.broadcast(e.Class), proto.MsgActorList, proto.ActorListPayload{
		Action: "remove",
		Actors: []proto.SpawnPayload{proto.SpawnFromEntity(e, p.sess.Peer())},
	}, true)
}

// TransferAuthority hands Local actors to another peer. Pinned actors move
// once their in-flight action is sent.
func (p *Peer) TransferAuthority(ctx context.Context, to string, actors ...string) error {
	if to == "" {
		return fmt.Errorf("transfer authority: %w", ErrPeerMismatch)
	}
	for _, id := range actors {
		if err := p.sess.RequireLocal(ctx, id, "authority.transfer"); err != nil {
			return err
		}
	}
	for _, id := range actors {
		p.assign(ctx, id, to)
	}
	return p.router.Send(ctx, p.broadcast(entity.ClassActor), proto.MsgActorAuthority, proto.AuthorityPayload{
		Peer:   to,
		Actors: actors,
	}, true)
}

// Connected greets a newly connected peer and replays this peer's Local
// entities and their equipment to it. Inventories are delta based and are
// not replayed.
func (p *Peer) Connected(ctx context.Context, remote string) error {
	loglifecycle.PeerJoined(ctx, p.pub, peerRef(remote), loglifecycle.PeerPayload{Remote: remote}, nil)
	target := router.Target{Peer: remote}
	if err := p.router.Send(ctx, target, proto.MsgHandshake, proto.HandshakePayload{Peer: p.sess.Peer(), Version: proto.Version}, false); err != nil {
		return err
	}
	return p.replay(ctx, remote)
}

// replay sends remote a spawn announcement and the equipment of every
// Local entity.
func (p *Peer) replay(ctx context.Context, remote string) error {
	target := router.Target{Peer: remote}
	var errs []error
	for _, id := range p.store.IDs() {
		if p.sess.Classify(id) != authority.Local {
			continue
		}
		e, ok := p.store.Get(id)
		if !ok {
			continue
		}
		target.Class = e.Class
		if err := p.announce(ctx, e, target, false); err != nil {
			errs = append(errs, err)
			continue
		}
		if !e.Class.IsActor() {
			continue
		}
		snap := proto.EquipmentFromSnapshot(equipmentSnapshot(e))
		msgType := proto.MsgActorEquipment
		if e.Class == entity.ClassPlayer {
			msgType = proto.MsgPlayerEquipment
		}
		if err := p.router.Send(ctx, target, msgType, snap, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Disconnected releases everything remote owned. Its entities stay in the
// store as Dedicated state with no owner until reassigned.
func (p *Peer) Disconnected(ctx context.Context, remote, reason string) {
	p.resyncs.forget(remote)
	for _, id := range p.sess.Table().ReleasePeer(remote) {
		p.tracker.Forget(id)
		loglifecycle.OwnershipChanged(ctx, p.pub, p.targetRef(id), loglifecycle.OwnershipPayload{
			Deferred: p.sess.Table().Pinned(id),
		}, map[string]any{"previous": remote})
	}
	loglifecycle.PeerLeft(ctx, p.pub, peerRef(remote), loglifecycle.PeerPayload{Remote: remote, Reason: reason}, nil)
}

func (p *Peer) announce(ctx context.Context, e entity.Entity, target router.Target, broadcast bool) error {
	spawn := proto.SpawnFromEntity(e, p.sess.Peer())
	switch e.Class {
	case entity.ClassPlayer:
		return p.router.Send(ctx, target, proto.MsgPlayerBaseInfo, spawn, broadcast)
	case entity.ClassActor:
		return p.router.Send(ctx, target, proto.MsgActorList, proto.ActorListPayload{
			Action: "add",
			Actors: []proto.SpawnPayload{spawn},
		}, broadcast)
	default:
		return nil
	}
}

func (p *Peer) forget(ctx context.Context, e entity.Entity, tag authority.Tag) {
	p.store.Delete(e.ID)
	p.sess.Table().Release(e.ID)
	p.tracker.Forget(e.ID)
	p.buffer.Discard(e.ID)
	loglifecycle.EntityDespawned(ctx, p.pub, entityRef(e), loglifecycle.EntityPayload{
		Class:     e.Class.String(),
		Authority: tag.String(),
	}, nil)
}

func (p *Peer) assign(ctx context.Context, id, owner string) {
	applied := p.sess.Table().Assign(id, owner)
	loglifecycle.OwnershipChanged(ctx, p.pub, p.targetRef(id), loglifecycle.OwnershipPayload{
		Owner:    owner,
		Deferred: !applied,
	}, nil)
}

func (p *Peer) handleHandshake(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.HandshakePayload)
	if !ok {
		return fmt.Errorf("handshake payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	if payload.Peer != msg.From {
		return fmt.Errorf("handshake from %s names %s: %w", msg.From, payload.Peer, ErrPeerMismatch)
	}
	if payload.Version != proto.Version {
		return fmt.Errorf("handshake from %s: version %d, want %d: %w", msg.From, payload.Version, proto.Version, proto.ErrInvalidPayload)
	}
	return nil
}

func (p *Peer) handleDisconnect(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.DisconnectPayload)
	if !ok {
		return fmt.Errorf("disconnect payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	if payload.Peer == p.sess.Peer() {
		return fmt.Errorf("disconnect names this peer: %w", ErrPeerMismatch)
	}
	p.Disconnected(ctx, payload.Peer, payload.Reason)
	return nil
}

func (p *Peer) handleSpawn(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.SpawnPayload)
	if !ok {
		return fmt.Errorf("spawn payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	return p.spawnRemote(ctx, msg.From, *payload)
}

func (p *Peer) handleActorList(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.ActorListPayload)
	if !ok {
		return fmt.Errorf("actor list payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	var errs []error
	for _, actor := range payload.Actors {
		var err error
		if payload.Action == "remove" {
			err = p.despawnRemote(ctx, msg.From, actor.ID)
		} else {
			err = p.spawnRemote(ctx, msg.From, actor)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handleAuthority accepts an ownership transfer only from the current owner
// of each actor, or for actors nobody owns.
func (p *Peer) handleAuthority(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.AuthorityPayload)
	if !ok {
		return fmt.Errorf("authority payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	var errs []error
	for _, id := range payload.Actors {
		if owner, owned := p.sess.Table().Owner(id); owned && owner != msg.From {
			p.sess.Report(ctx, authority.Violation{Peer: p.sess.Peer(), Entity: id, Op: "authority.transfer", Inbound: true})
			errs = append(errs, fmt.Errorf("transfer of %s from %s: %w", id, msg.From, authority.ErrAuthorityViolation))
			continue
		}
		p.assign(ctx, id, payload.Peer)
	}
	return errors.Join(errs...)
}

// spawnRemote accepts an announcement only when it names its sender as the
// owner and the entity is unowned or already owned by that sender. Ownership
// changes between peers go through handleAuthority.
func (p *Peer) spawnRemote(ctx context.Context, from string, payload proto.SpawnPayload) error {
	e, err := payload.Entity()
	if err != nil {
		return err
	}
	owner := payload.Owner
	if owner == "" {
		owner = from
	}
	current, owned := p.sess.Table().Owner(e.ID)
	if from == "" || owner != from || (owned && current != from) {
		p.sess.Report(ctx, authority.Violation{Peer: p.sess.Peer(), Entity: e.ID, Op: "entity.spawn", Inbound: true})
		return fmt.Errorf("remote spawn of %s from %q owned by %q: %w", e.ID, from, owner, authority.ErrAuthorityViolation)
	}
	if existing, ok := p.store.Get(e.ID); ok {
		// Position and heading refresh; equipment and inventory stay.
		existing.Position = e.Position
		existing.Heading = e.Heading
		e = existing
	}
	return p.Spawn(ctx, e, owner)
}

func (p *Peer) despawnRemote(ctx context.Context, from, id string) error {
	e, err := p.entity(id)
	if err != nil {
		return err
	}
	if err := p.sess.RequireOwner(ctx, id, from, "entity.despawn"); err != nil {
		return err
	}
	p.forget(ctx, e, authority.Dedicated)
	return nil
}

func equipmentSnapshot(e entity.Entity) statebuf.EquipmentSnapshot {
	return statebuf.EquipmentSnapshot{Entity: e.ID, Class: e.Class, Slots: e.Equipment.Slots()}
}
