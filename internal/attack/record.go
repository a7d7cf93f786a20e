// Package attack tracks the lifecycle of one in-flight action per entity,
// from initiation on the simulating peer to the replicated outcome.
package attack

import "github.com/go-gl/mathgl/mgl32"

// Kind identifies the delivery of an attack.
type Kind uint8

const (
	KindMelee Kind = iota
	KindRanged
	KindMagic
)

func (k Kind) String() string {
	switch k {
	case KindMelee:
		return "melee"
	case KindRanged:
		return "ranged"
	case KindMagic:
		return "magic"
	default:
		return "unknown"
	}
}

// ParseKind maps the wire name back to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "melee":
		return KindMelee, true
	case "ranged":
		return KindRanged, true
	case "magic":
		return KindMagic, true
	default:
		return KindMelee, false
	}
}

// Record is the outcome of one action. It is filled once by the resolution
// engine on the simulating peer and applied verbatim everywhere else.
type Record struct {
	Owner  string
	Target string
	Kind   Kind
	// Seq numbers the actions of Owner and seeds the action's random source.
	Seq uint64

	Success bool
	Blocked bool
	// Hit is set when a projectile connected with anything.
	Hit bool
	// HitPosition is absent when the action had no target.
	HitPosition *mgl32.Vec3

	EnchantmentApplied     bool
	AmmoEnchantmentApplied bool
	// ShouldSend is asserted on finalize so observers render the attempt
	// even when nothing was struck.
	ShouldSend bool

	Weapon string
	Spell  string
}

// Clone returns a copy that shares no pointer with r.
func (r Record) Clone() Record {
	cloned := r
	if r.HitPosition != nil {
		pos := *r.HitPosition
		cloned.HitPosition = &pos
	}
	return cloned
}

// NoEffect resets the outcome fields, keeping the identity of the action.
// Missing weapon or target state ends here instead of failing.
func (r *Record) NoEffect() {
	r.Success = false
	r.Blocked = false
	r.Hit = false
	r.HitPosition = nil
	r.EnchantmentApplied = false
	r.AmmoEnchantmentApplied = false
}
