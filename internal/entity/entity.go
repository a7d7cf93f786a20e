package entity

import "github.com/go-gl/mathgl/mgl32"

// Class selects the replication lane and message family of an entity.
type Class uint8

const (
	ClassPlayer Class = iota
	ClassActor
	ClassObject
)

func (c Class) String() string {
	switch c {
	case ClassPlayer:
		return "player"
	case ClassActor:
		return "actor"
	case ClassObject:
		return "object"
	default:
		return "unknown"
	}
}

// IsActor reports whether the class can take part in combat.
func (c Class) IsActor() bool {
	return c == ClassPlayer || c == ClassActor
}

// Variant selects the capability table of an entity.
type Variant uint8

const (
	VariantNPC Variant = iota
	VariantCreature
	VariantContainer
)

// DynamicStat is a current/maximum pair such as health or fatigue.
type DynamicStat struct {
	Current float32 `json:"current" yaml:"current"`
	Max     float32 `json:"max" yaml:"max"`
}

// CreatureStats holds the combat-relevant state of an actor.
type CreatureStats struct {
	Attributes [AttributeCount]float32 `json:"attributes" yaml:"attributes"`
	Skills     [SkillCount]float32     `json:"skills" yaml:"skills"`
	// Combat, Magic and Stealth are the three aggregate skill values used by
	// creatures in place of per-skill values.
	Combat  float32 `json:"combat,omitempty" yaml:"combat"`
	Magic   float32 `json:"magic,omitempty" yaml:"magic"`
	Stealth float32 `json:"stealth,omitempty" yaml:"stealth"`

	Health  DynamicStat `json:"health" yaml:"health"`
	Magicka DynamicStat `json:"magicka" yaml:"magicka"`
	Fatigue DynamicStat `json:"fatigue" yaml:"fatigue"`

	KnockedDown  bool `json:"knockedDown,omitempty" yaml:"knocked_down"`
	HitRecovery  bool `json:"hitRecovery,omitempty" yaml:"hit_recovery"`
	Paralyzed    bool `json:"paralyzed,omitempty" yaml:"paralyzed"`
	ReadyToBlock bool `json:"readyToBlock,omitempty" yaml:"ready_to_block"`
	Moving       bool `json:"moving,omitempty" yaml:"moving"`

	Effects map[MagicEffect]float32 `json:"effects,omitempty" yaml:"effects"`
}

// Effect returns the magnitude of an active magic effect.
func (s CreatureStats) Effect(effect MagicEffect) float32 {
	if s.Effects == nil {
		return 0
	}
	return s.Effects[effect]
}

// Presentation is the visible state applied from replicated records. It is
// written on the observing peer only and never fed back into resolution.
type Presentation struct {
	LastAttackKind    string      `json:"lastAttackKind,omitempty"`
	LastAttackSuccess bool        `json:"lastAttackSuccess,omitempty"`
	LastAttackBlocked bool        `json:"lastAttackBlocked,omitempty"`
	LastHitPosition   *mgl32.Vec3 `json:"lastHitPosition,omitempty"`
	Blocking          bool        `json:"blocking,omitempty"`
}

// Entity is a simulated object known to this peer.
type Entity struct {
	ID       string     `json:"id"`
	Class    Class      `json:"class"`
	Variant  Variant    `json:"variant"`
	Position mgl32.Vec3 `json:"position"`
	// Heading is the yaw in radians; zero faces +Y.
	Heading float32 `json:"heading"`

	// UsesWeapons marks creatures that carry an inventory store.
	UsesWeapons bool `json:"usesWeapons,omitempty"`

	Equipment Equipment     `json:"equipment"`
	Inventory ItemList      `json:"inventory"`
	Stats     CreatureStats `json:"stats"`

	// SelectedSpell is the spell id readied for casting.
	SelectedSpell string `json:"selectedSpell,omitempty"`

	Presentation Presentation `json:"presentation"`
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	cloned := e
	cloned.Inventory = e.Inventory.Clone()
	if e.Stats.Effects != nil {
		cloned.Stats.Effects = make(map[MagicEffect]float32, len(e.Stats.Effects))
		for k, v := range e.Stats.Effects {
			cloned.Stats.Effects[k] = v
		}
	}
	if e.Presentation.LastHitPosition != nil {
		pos := *e.Presentation.LastHitPosition
		cloned.Presentation.LastHitPosition = &pos
	}
	return cloned
}

// Forward returns the unit facing vector derived from Heading.
func (e Entity) Forward() mgl32.Vec3 {
	return mgl32.Rotate3DZ(-e.Heading).Mul3x1(mgl32.Vec3{0, 1, 0})
}
