// Package mechanics resolves attacks and spell casts for Local entities.
// Dedicated entities never reach this package: their outcomes arrive as
// replicated records.
package mechanics

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/michaelt919/TES3MP/internal/attack"
	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/rng"
)

const tracerName = "github.com/michaelt919/TES3MP/internal/mechanics"

// Reports exposes the last record reported for a Dedicated entity.
type Reports interface {
	Reported(owner string) (attack.Record, bool)
}

// Engine drives the formulas for Local attackers and writes the outcome into
// the pending attack record.
type Engine struct {
	formulas Formulas
	catalog  *entity.Catalog
	reports  Reports
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithFormulas replaces the default game rules.
func WithFormulas(f Formulas) Option {
	return func(e *Engine) {
		if f != nil {
			e.formulas = f
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine constructs an engine reading records from catalog and remote
// block reports from reports.
func NewEngine(catalog *entity.Catalog, reports Reports, opts ...Option) *Engine {
	e := &Engine{
		formulas: DefaultFormulas{Settings: DefaultSettings()},
		catalog:  catalog,
		reports:  reports,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MeleeRequest describes a swing that reached its hit frame.
type MeleeRequest struct {
	Attacker *entity.Entity
	// Victim is nil when the swing found nothing in reach.
	Victim   *entity.Entity
	Strength float32
}

// RangedRequest describes a projectile that struck a victim or the world.
type RangedRequest struct {
	Attacker *entity.Entity
	Victim   *entity.Entity
	// Weapon is the launcher; it equals Projectile for thrown weapons.
	Weapon      entity.ItemStack
	Projectile  entity.ItemStack
	HitPosition mgl32.Vec3
	Strength    float32
}

// MagicRequest describes a spell cast reaching its release frame.
type MagicRequest struct {
	Caster *entity.Entity
	Target *entity.Entity
	// Spell defaults to the caster's selected spell.
	Spell string
}

// ResolveMelee rolls hit and block for a swing. Missing weapon records or an
// absent victim leave a no-effect record.
func (e *Engine) ResolveMelee(ctx context.Context, sess authority.Session, rec *attack.Record, req MeleeRequest) error {
	ctx, span := e.tracer.Start(ctx, "mechanics.resolve_melee")
	defer span.End()

	if req.Attacker == nil {
		rec.NoEffect()
		return nil
	}
	if err := sess.RequireLocal(ctx, req.Attacker.ID, "attack.melee"); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	rec.Kind = attack.KindMelee

	attacker := NewCombatant(req.Attacker, e.catalog)
	weapon := equipped(attacker, entity.SlotCarriedRight)
	rec.Weapon = weapon.RefID

	victim := NewCombatant(req.Victim, e.catalog)
	if !victim.Valid() {
		rec.NoEffect()
		return nil
	}
	rec.Target = victim.Entity.ID

	skill, ok := e.weaponSkill(attacker, weapon, entity.SkillHandToHand)
	if !ok {
		rec.NoEffect()
		return nil
	}

	src := sess.Random(attacker.Entity.ID, rec.Seq)
	chance := e.formulas.HitChance(attacker, victim, skill)
	if float32(src.Roll0to99()) >= chance {
		rec.Success = false
		e.annotate(span, rec, chance)
		return nil
	}

	rec.Success = true
	pos := victim.Entity.Position
	rec.HitPosition = &pos
	rec.Blocked = e.block(sess, src, attacker, victim, skill, req.Strength)
	rec.EnchantmentApplied = e.onStrike(attacker, weapon)
	e.annotate(span, rec, chance)
	return nil
}

// ResolveRanged handles a projectile impact. The record becomes a ranged hit
// as soon as the projectile lands; success is then decided by the hit roll.
func (e *Engine) ResolveRanged(ctx context.Context, sess authority.Session, rec *attack.Record, req RangedRequest) error {
	ctx, span := e.tracer.Start(ctx, "mechanics.resolve_ranged")
	defer span.End()

	if req.Attacker == nil {
		rec.NoEffect()
		return nil
	}
	if err := sess.RequireLocal(ctx, req.Attacker.ID, "attack.ranged"); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	rec.Kind = attack.KindRanged
	rec.Hit = true
	rec.Weapon = req.Weapon.RefID

	attacker := NewCombatant(req.Attacker, e.catalog)
	victim := NewCombatant(req.Victim, e.catalog)
	validVictim := victim.Valid()

	if validVictim {
		rec.Target = victim.Entity.ID
		skill, ok := e.weaponSkill(attacker, req.Weapon, entity.SkillMarksman)
		if !ok {
			rec.NoEffect()
			return nil
		}
		rec.Success = true
		src := sess.Random(attacker.Entity.ID, rec.Seq)
		chance := e.formulas.HitChance(attacker, victim, skill)
		if float32(src.Roll0to99()) >= chance {
			rec.Success = false
			e.annotate(span, rec, chance)
			return nil
		}
	}

	rec.AmmoEnchantmentApplied = e.onStrike(attacker, req.Projectile)
	pos := req.HitPosition
	rec.HitPosition = &pos
	if !validVictim {
		rec.ShouldSend = true
	}
	e.annotate(span, rec, 0)
	return nil
}

// ResolveMagic rolls the cast chance of a spell.
func (e *Engine) ResolveMagic(ctx context.Context, sess authority.Session, rec *attack.Record, req MagicRequest) error {
	ctx, span := e.tracer.Start(ctx, "mechanics.resolve_magic")
	defer span.End()

	if req.Caster == nil {
		rec.NoEffect()
		return nil
	}
	if err := sess.RequireLocal(ctx, req.Caster.ID, "attack.magic"); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	rec.Kind = attack.KindMagic

	spellID := req.Spell
	if spellID == "" {
		spellID = req.Caster.SelectedSpell
	}
	rec.Spell = spellID
	spell, ok := e.catalog.Spell(spellID)
	if !ok {
		rec.NoEffect()
		return nil
	}
	if req.Target != nil {
		rec.Target = req.Target.ID
		pos := req.Target.Position
		rec.HitPosition = &pos
	}

	caster := NewCombatant(req.Caster, e.catalog)
	src := sess.Random(caster.Entity.ID, rec.Seq)
	chance := e.formulas.SpellSuccessChance(caster, spell)
	rec.Success = float32(src.Roll0to99()) < chance
	e.annotate(span, rec, chance)
	return nil
}

// block decides whether victim blocks the swing. A block already reported
// by the peer that simulates the victim is honored without rolling.
func (e *Engine) block(sess authority.Session, src rng.Source, attacker, victim Combatant, attackerSkill, strength float32) bool {
	if sess.Classify(victim.Entity.ID) == authority.Dedicated && e.reports != nil {
		if reported, ok := e.reports.Reported(victim.Entity.ID); ok && reported.Blocked {
			return true
		}
	}

	if victim.Caps.Inventory == nil {
		return false
	}
	stats := victim.stats()
	if stats.KnockedDown || stats.HitRecovery || stats.Paralyzed {
		return false
	}
	if !stats.ReadyToBlock {
		return false
	}
	shield := victim.Caps.Inventory.Equipped(entity.SlotCarriedLeft)
	if shield.Empty() {
		return false
	}
	if _, ok := e.catalog.ArmorPiece(shield.RefID); !ok {
		return false
	}
	if !e.formulas.WithinBlockArc(attacker, victim) {
		return false
	}
	return src.Roll0to99() < e.formulas.BlockChance(attacker, victim, attackerSkill, strength)
}

// weaponSkill returns the attacker's skill with weapon, or with fallback when
// nothing is equipped. An equipped item without a weapon record reports false.
func (e *Engine) weaponSkill(attacker Combatant, weapon entity.ItemStack, fallback entity.Skill) (float32, bool) {
	if weapon.Empty() {
		return attacker.skill(fallback), true
	}
	rec, ok := e.catalog.Weapon(weapon.RefID)
	if !ok {
		return 0, false
	}
	return attacker.skill(rec.Skill), true
}

func (e *Engine) onStrike(attacker Combatant, item entity.ItemStack) bool {
	if attacker.Caps.Enchantment == nil {
		return false
	}
	_, ok := attacker.Caps.Enchantment.OnStrike(item)
	return ok
}

func (e *Engine) annotate(span trace.Span, rec *attack.Record, chance float32) {
	span.SetAttributes(
		attribute.String("attack.owner", rec.Owner),
		attribute.String("attack.target", rec.Target),
		attribute.String("attack.kind", rec.Kind.String()),
		attribute.Bool("attack.success", rec.Success),
		attribute.Bool("attack.blocked", rec.Blocked),
		attribute.Float64("attack.chance", float64(chance)),
	)
}

func equipped(c Combatant, slot int) entity.ItemStack {
	if c.Caps.Inventory == nil {
		return entity.ItemStack{}
	}
	return c.Caps.Inventory.Equipped(slot)
}
