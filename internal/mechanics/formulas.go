package mechanics

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/michaelt919/TES3MP/internal/entity"
)

// Combatant pairs an entity snapshot with its capability table.
type Combatant struct {
	Entity *entity.Entity
	Caps   entity.Capabilities
}

// NewCombatant builds the capability table for e from catalog.
func NewCombatant(e *entity.Entity, catalog *entity.Catalog) Combatant {
	return Combatant{Entity: e, Caps: entity.CapabilitiesOf(e, catalog)}
}

// Valid reports whether the combatant refers to an actor.
func (c Combatant) Valid() bool {
	return c.Entity != nil && c.Entity.Class.IsActor()
}

func (c Combatant) attribute(a entity.Attribute) float32 {
	if c.Caps.Attributes == nil {
		return 0
	}
	return c.Caps.Attributes.Attribute(a)
}

func (c Combatant) skill(s entity.Skill) float32 {
	if c.Caps.Skills == nil {
		return 0
	}
	return c.Caps.Skills.Skill(s)
}

func (c Combatant) stats() *entity.CreatureStats {
	return &c.Entity.Stats
}

// Formulas are the game-rule functions consumed by the engine. They must be
// pure: every random draw happens in the engine.
type Formulas interface {
	// HitChance returns the percentage chance that attacker connects with
	// victim using a weapon skill of skillValue.
	HitChance(attacker, victim Combatant, skillValue float32) float32
	// BlockChance returns the clamped percentage chance that blocker blocks
	// a swing of the given strength.
	BlockChance(attacker, blocker Combatant, attackerSkill float32, attackStrength float32) int
	// WithinBlockArc reports whether attacker stands inside the shield arc
	// of blocker.
	WithinBlockArc(attacker, blocker Combatant) bool
	// SpellSuccessChance returns the capped percentage chance that caster
	// casts spell.
	SpellSuccessChance(caster Combatant, spell entity.SpellRecord) float32
}

// DefaultFormulas implements the stock Morrowind rules.
type DefaultFormulas struct {
	Settings Settings
}

// FatigueTerm scales most checks by how rested an actor is.
func (f DefaultFormulas) FatigueTerm(stats *entity.CreatureStats) float32 {
	fatigueMax := stats.Fatigue.Max
	normalised := float32(1)
	if math32.Floor(fatigueMax) != 0 {
		normalised = math32.Max(0, stats.Fatigue.Current/fatigueMax)
	}
	return f.Settings.FatigueBase - f.Settings.FatigueMult*(1-normalised)
}

// Evasion is the defensive term of an aware victim.
func (f DefaultFormulas) Evasion(c Combatant) float32 {
	evasion := c.attribute(entity.AttributeAgility)/5 + c.attribute(entity.AttributeLuck)/10
	evasion *= f.FatigueTerm(c.stats())
	return evasion + c.stats().Effect(entity.EffectSanctuary)
}

func (f DefaultFormulas) HitChance(attacker, victim Combatant, skillValue float32) float32 {
	victimStats := victim.stats()
	var defenseTerm float32
	if victimStats.Fatigue.Current >= 0 {
		if !(victimStats.KnockedDown || victimStats.Paralyzed) {
			defenseTerm = f.Evasion(victim)
		}
		defenseTerm += math32.Min(100, f.Settings.CombatInvisoMult*victimStats.Effect(entity.EffectChameleon))
		defenseTerm += math32.Min(100, f.Settings.CombatInvisoMult*victimStats.Effect(entity.EffectInvisibility))
	}

	stats := attacker.stats()
	attackTerm := skillValue + attacker.attribute(entity.AttributeAgility)/5 + attacker.attribute(entity.AttributeLuck)/10
	fatigueTerm := f.FatigueTerm(stats)
	attackTerm *= fatigueTerm
	attackTerm += stats.Effect(entity.EffectFortifyAttack) - stats.Effect(entity.EffectBlind)

	if !f.Settings.AttacksUsuallyHit {
		return round(attackTerm - defenseTerm)
	}
	fatigueAdjustedSkill := skillValue * fatigueTerm
	agilityTerm := attackTerm - fatigueAdjustedSkill
	if agilityTerm > defenseTerm {
		return 100 + round(agilityTerm-defenseTerm)
	}
	if fatigueAdjustedSkill == 0 {
		return 0
	}
	return round(100 * (attackTerm - defenseTerm) / fatigueAdjustedSkill)
}

func (f DefaultFormulas) BlockChance(attacker, blocker Combatant, attackerSkill float32, attackStrength float32) int {
	blockerStats := blocker.stats()
	blockTerm := blocker.skill(entity.SkillBlock) +
		0.2*blocker.attribute(entity.AttributeAgility) +
		0.1*blocker.attribute(entity.AttributeLuck)
	swingTerm := attackStrength*f.Settings.SwingBlockMult + f.Settings.SwingBlockBase

	blockerTerm := blockTerm * swingTerm
	if !blockerStats.Moving {
		blockerTerm *= f.Settings.BlockStillBonus
	}
	blockerTerm *= f.FatigueTerm(blockerStats)

	attackerTerm := attackerSkill +
		0.2*attacker.attribute(entity.AttributeAgility) +
		0.1*attacker.attribute(entity.AttributeLuck)
	attackerTerm *= f.FatigueTerm(attacker.stats())

	x := int(blockerTerm - attackerTerm)
	if x > f.Settings.BlockMaxChance {
		x = f.Settings.BlockMaxChance
	}
	if x < f.Settings.BlockMinChance {
		x = f.Settings.BlockMinChance
	}
	return x
}

func (f DefaultFormulas) WithinBlockArc(attacker, blocker Combatant) bool {
	angle := mgl32.RadToDeg(SignedAngle(
		attacker.Entity.Position.Sub(blocker.Entity.Position),
		blocker.Entity.Forward(),
		mgl32.Vec3{0, 0, 1},
	))
	return angle >= f.Settings.CombatBlockLeftAngle && angle <= f.Settings.CombatBlockRightAngle
}

// SignedAngle returns the angle in radians from v1 to v2 around normal.
func SignedAngle(v1, v2, normal mgl32.Vec3) float32 {
	return math32.Atan2(normal.Dot(v1.Cross(v2)), v1.Dot(v2))
}

// SpellBaseChance is the cast chance before fatigue, sound and caps. The
// weakest school among the spell's effects governs the result.
func (f DefaultFormulas) SpellBaseChance(caster Combatant, spell entity.SpellRecord) float32 {
	y := float32(math32.MaxFloat32)
	var lowestSkill float32
	for _, effect := range spell.Effects {
		x := effect.Duration
		if !effect.AppliedOnce {
			x = math32.Max(1, x)
		}
		x *= 0.1 * effect.BaseCost
		x *= 0.5 * (effect.MagnMin + effect.MagnMax)
		x += effect.Area * 0.05 * effect.BaseCost
		if effect.OnTarget {
			x *= 1.5
		}
		x *= f.Settings.EffectCostMult

		s := 2 * caster.skill(effect.School.Skill())
		if s-x < y {
			y = s - x
			lowestSkill = s
		}
	}
	willpower := caster.attribute(entity.AttributeWillpower)
	luck := caster.attribute(entity.AttributeLuck)
	return lowestSkill - spell.Cost + 0.2*willpower + 0.1*luck
}

func (f DefaultFormulas) SpellSuccessChance(caster Combatant, spell entity.SpellRecord) float32 {
	stats := caster.stats()
	if stats.Effect(entity.EffectSilence) > 0 {
		return 0
	}
	// Powers are treated as always available.
	if spell.Type != entity.SpellTypeSpell {
		return 100
	}
	if spell.Cost > 0 && stats.Magicka.Current < spell.Cost {
		return 0
	}
	if spell.Always {
		return 100
	}
	chance := f.SpellBaseChance(caster, spell) - stats.Effect(entity.EffectSound)
	chance *= f.FatigueTerm(stats)
	return math32.Max(0, math32.Min(100, chance))
}

// round rounds half away from zero.
func round(x float32) float32 {
	return math32.Copysign(math32.Floor(math32.Abs(x)+0.5), x)
}
