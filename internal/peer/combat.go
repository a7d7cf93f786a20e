package peer

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/michaelt919/TES3MP/internal/attack"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/mechanics"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
	"github.com/michaelt919/TES3MP/logging"
	logcombat "github.com/michaelt919/TES3MP/logging/combat"
)

const (
	attacksSentMetricKey    = "attack_sent_total"
	attacksAppliedMetricKey = "attack_applied_total"
)

// RangedAction describes a projectile impact reported by the game.
type RangedAction struct {
	Attacker string
	// Victim is empty when the projectile hit the world.
	Victim      string
	Weapon      entity.ItemStack
	Projectile  entity.ItemStack
	HitPosition mgl32.Vec3
	Strength    float32
}

// Melee resolves a swing of attacker against victim and replicates it.
// An empty or unknown victim produces a no-effect record that is still sent.
func (p *Peer) Melee(ctx context.Context, attackerID, victimID string, strength float32) (attack.Record, error) {
	return p.act(ctx, attackerID, attack.KindMelee, func(ctx context.Context, attacker *entity.Entity, rec *attack.Record) error {
		return p.engine.ResolveMelee(ctx, p.sess, rec, mechanics.MeleeRequest{
			Attacker: attacker,
			Victim:   p.lookup(victimID),
			Strength: strength,
		})
	})
}

// Ranged resolves a projectile impact and replicates it.
func (p *Peer) Ranged(ctx context.Context, action RangedAction) (attack.Record, error) {
	return p.act(ctx, action.Attacker, attack.KindRanged, func(ctx context.Context, attacker *entity.Entity, rec *attack.Record) error {
		return p.engine.ResolveRanged(ctx, p.sess, rec, mechanics.RangedRequest{
			Attacker:    attacker,
			Victim:      p.lookup(action.Victim),
			Weapon:      action.Weapon,
			Projectile:  action.Projectile,
			HitPosition: action.HitPosition,
			Strength:    action.Strength,
		})
	})
}

// Cast resolves a spell cast. An empty spell uses the caster's selected
// spell.
func (p *Peer) Cast(ctx context.Context, casterID, targetID, spell string) (attack.Record, error) {
	return p.act(ctx, casterID, attack.KindMagic, func(ctx context.Context, caster *entity.Entity, rec *attack.Record) error {
		return p.engine.ResolveMagic(ctx, p.sess, rec, mechanics.MagicRequest{
			Caster: caster,
			Target: p.lookup(targetID),
			Spell:  spell,
		})
	})
}

type resolveFunc func(ctx context.Context, attacker *entity.Entity, rec *attack.Record) error

// act runs one action through Begin, Resolve, Finalize, Send and MarkSent.
// The slot always returns to Idle once Begin succeeded.
func (p *Peer) act(ctx context.Context, owner string, kind attack.Kind, resolve resolveFunc) (attack.Record, error) {
	attacker, err := p.entity(owner)
	if err != nil {
		return attack.Record{}, err
	}
	msgType, err := attackMessage(attacker.Class)
	if err != nil {
		return attack.Record{}, fmt.Errorf("%s: %w", owner, err)
	}
	if _, err := p.tracker.Begin(ctx, p.sess, owner, kind); err != nil {
		return attack.Record{}, err
	}

	resolveErr := p.tracker.Resolve(owner, func(rec *attack.Record) error {
		return resolve(ctx, &attacker, rec)
	})
	rec, err := p.tracker.Finalize(owner)
	if err != nil {
		return rec, err
	}
	target := p.targetRef(rec.Target)
	if resolveErr != nil {
		logcombat.ResolutionFailed(ctx, p.pub, entityRef(attacker), logcombat.ResolutionFailedPayload{
			Kind:   kind.String(),
			Seq:    rec.Seq,
			Reason: resolveErr.Error(),
		}, nil)
	} else {
		logcombat.AttackResolved(ctx, p.pub, entityRef(attacker), target, attackPayload(rec), nil)
	}

	sendErr := p.router.Send(ctx, p.broadcast(attacker.Class), msgType, proto.AttackFromRecord(rec), true)
	if err := p.tracker.MarkSent(owner); err != nil {
		return rec, err
	}
	if sendErr != nil {
		return rec, sendErr
	}
	p.addMetric(attacksSentMetricKey, 1)
	logcombat.AttackSent(ctx, p.pub, entityRef(attacker), target, attackPayload(rec), nil)
	p.present(rec)
	return rec, nil
}

func (p *Peer) handleAttack(ctx context.Context, msg router.Inbound) error {
	payload, ok := msg.Payload.(*proto.AttackPayload)
	if !ok {
		return fmt.Errorf("attack payload %T: %w", msg.Payload, proto.ErrInvalidPayload)
	}
	rec, err := payload.Record()
	if err != nil {
		return err
	}
	attacker, err := p.entity(rec.Owner)
	if err != nil {
		return err
	}
	if err := p.sess.RequireOwner(ctx, rec.Owner, msg.From, "attack.apply"); err != nil {
		return err
	}
	// Observed before presenting so a Local swing against this attacker can
	// honor its reported block.
	p.tracker.Observe(rec)
	p.present(rec)
	p.addMetric(attacksAppliedMetricKey, 1)
	logcombat.AttackApplied(ctx, p.pub, entityRef(attacker), p.targetRef(rec.Target), attackPayload(rec), map[string]any{"from": msg.From})
	return nil
}

// present copies the outcome into the visible state of the attacker.
func (p *Peer) present(rec attack.Record) {
	_ = p.store.Update(rec.Owner, func(e *entity.Entity) {
		e.Presentation.LastAttackKind = rec.Kind.String()
		e.Presentation.LastAttackSuccess = rec.Success
		e.Presentation.LastAttackBlocked = rec.Blocked
		e.Presentation.LastHitPosition = nil
		if rec.HitPosition != nil {
			pos := *rec.HitPosition
			e.Presentation.LastHitPosition = &pos
		}
	})
	if rec.Target != "" && rec.Blocked {
		_ = p.store.Update(rec.Target, func(e *entity.Entity) {
			e.Presentation.Blocking = true
		})
	}
}

func (p *Peer) lookup(id string) *entity.Entity {
	if id == "" {
		return nil
	}
	e, ok := p.store.Get(id)
	if !ok {
		return nil
	}
	return &e
}

func (p *Peer) targetRef(id string) logging.EntityRef {
	if e, ok := p.store.Get(id); ok {
		return entityRef(e)
	}
	return refFor(id, entity.ClassObject)
}

func attackMessage(class entity.Class) (proto.MessageType, error) {
	switch class {
	case entity.ClassPlayer:
		return proto.MsgPlayerAttack, nil
	case entity.ClassActor:
		return proto.MsgActorAttack, nil
	default:
		return 0, ErrNotCombatant
	}
}

func attackPayload(rec attack.Record) logcombat.AttackPayload {
	payload := logcombat.AttackPayload{
		Kind:                   rec.Kind.String(),
		Seq:                    rec.Seq,
		Success:                rec.Success,
		Blocked:                rec.Blocked,
		Hit:                    rec.Hit,
		EnchantmentApplied:     rec.EnchantmentApplied,
		AmmoEnchantmentApplied: rec.AmmoEnchantmentApplied,
		Weapon:                 rec.Weapon,
		Spell:                  rec.Spell,
	}
	if rec.HitPosition != nil {
		pos := [3]float32(*rec.HitPosition)
		payload.HitPosition = &pos
	}
	return payload
}
