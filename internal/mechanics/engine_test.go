package mechanics

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/michaelt919/TES3MP/internal/attack"
	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/rng"
)

func testCatalog() *entity.Catalog {
	return &entity.Catalog{
		Weapons: map[string]entity.WeaponRecord{
			"iron_longsword":   {Skill: entity.SkillLongBlade, Enchantment: "fire_strike"},
			"chitin_bow":       {Skill: entity.SkillMarksman},
			"iron_arrow":       {Skill: entity.SkillMarksman},
			"flame_arrow":      {Skill: entity.SkillMarksman, Enchantment: "fire_strike"},
			"steel_dai-katana": {Skill: entity.SkillLongBlade},
		},
		Armor: map[string]entity.ArmorRecord{
			"iron_shield": {Weight: 15},
		},
		Enchantments: map[string]entity.EnchantmentRecord{
			"fire_strike": {Type: entity.EnchantmentWhenStrikes},
		},
		Spells: map[string]entity.SpellRecord{
			"fire_bite": {
				Type: entity.SpellTypeSpell,
				Cost: 5,
				Effects: []entity.SpellEffect{
					{School: entity.SchoolDestruction, BaseCost: 5, Duration: 1, MagnMin: 2, MagnMax: 10, OnTarget: true},
				},
			},
		},
	}
}

func testNPC(id string, pos mgl32.Vec3) *entity.Entity {
	e := &entity.Entity{ID: id, Class: entity.ClassActor, Variant: entity.VariantNPC, Position: pos}
	e.Stats.Attributes[entity.AttributeAgility] = 50
	e.Stats.Attributes[entity.AttributeLuck] = 50
	e.Stats.Attributes[entity.AttributeWillpower] = 50
	e.Stats.Skills[entity.SkillLongBlade] = 50
	e.Stats.Skills[entity.SkillMarksman] = 50
	e.Stats.Skills[entity.SkillDestruction] = 50
	e.Stats.Skills[entity.SkillBlock] = 40
	e.Stats.Skills[entity.SkillHandToHand] = 50
	e.Stats.Fatigue = entity.DynamicStat{Current: 100, Max: 100}
	e.Stats.Magicka = entity.DynamicStat{Current: 50, Max: 50}
	return e
}

func withShield(e *entity.Entity) *entity.Entity {
	e.Equipment.Set(entity.SlotCarriedLeft, entity.ItemStack{RefID: "iron_shield", Count: 1, Condition: entity.ConditionUnset})
	e.Stats.ReadyToBlock = true
	return e
}

type staticReports map[string]attack.Record

func (r staticReports) Reported(owner string) (attack.Record, bool) {
	rec, ok := r[owner]
	return rec, ok
}

func newSession(src rng.Source, owners map[string]string) authority.Session {
	table := authority.NewTable()
	for id, owner := range owners {
		table.Assign(id, owner)
	}
	return authority.NewSession("peer-a", table, authority.WithRandom(rng.Fixed(src)))
}

func TestDedicatedVictimReportedBlockIsHonoredWithoutRolling(t *testing.T) {
	src := rng.NewScript(0)
	sess := newSession(src, map[string]string{"player_1": "peer-a", "guard_01": "peer-b"})
	reports := staticReports{"guard_01": {Owner: "guard_01", Blocked: true}}
	engine := NewEngine(testCatalog(), reports)

	attacker := testNPC("player_1", mgl32.Vec3{0, 10, 0})
	attacker.Class = entity.ClassPlayer
	attacker.Equipment.Set(entity.SlotCarriedRight, entity.ItemStack{RefID: "steel_dai-katana", Count: 1})
	// No shield: local eligibility would refuse the block.
	victim := testNPC("guard_01", mgl32.Vec3{})

	rec := attack.Record{Owner: "player_1", Seq: 1}
	if err := engine.ResolveMelee(context.Background(), sess, &rec, MeleeRequest{Attacker: attacker, Victim: victim, Strength: 1}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !rec.Success {
		t.Fatalf("expected the scripted hit roll to connect")
	}
	if !rec.Blocked {
		t.Fatalf("expected reported block to be honored")
	}
	if src.Draws() != 1 {
		t.Fatalf("expected only the hit roll to be drawn, got %d draws", src.Draws())
	}
}

func TestLocalVictimBlockRolls(t *testing.T) {
	tests := []struct {
		name    string
		rolls   []int
		pos     mgl32.Vec3
		blocked bool
		draws   int
	}{
		{name: "low roll blocks", rolls: []int{0, 0}, pos: mgl32.Vec3{0, 10, 0}, blocked: true, draws: 2},
		{name: "high roll misses block", rolls: []int{0, 99}, pos: mgl32.Vec3{0, 10, 0}, blocked: false, draws: 2},
		{name: "attacker behind blocker", rolls: []int{0, 0}, pos: mgl32.Vec3{0, -10, 0}, blocked: false, draws: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := rng.NewScript(tt.rolls...)
			sess := newSession(src, map[string]string{"player_1": "peer-a", "guard_01": "peer-a"})
			engine := NewEngine(testCatalog(), staticReports{})

			attacker := testNPC("player_1", tt.pos)
			victim := withShield(testNPC("guard_01", mgl32.Vec3{}))

			rec := attack.Record{Owner: "player_1", Seq: 1}
			if err := engine.ResolveMelee(context.Background(), sess, &rec, MeleeRequest{Attacker: attacker, Victim: victim, Strength: 0.5}); err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if rec.Blocked != tt.blocked {
				t.Fatalf("expected blocked=%v, got %v", tt.blocked, rec.Blocked)
			}
			if src.Draws() != tt.draws {
				t.Fatalf("expected %d draws, got %d", tt.draws, src.Draws())
			}
		})
	}
}

func TestMeleeMissAndEnchantment(t *testing.T) {
	sess := newSession(rng.NewScript(99), map[string]string{"player_1": "peer-a"})
	engine := NewEngine(testCatalog(), nil)
	attacker := testNPC("player_1", mgl32.Vec3{0, 10, 0})
	attacker.Equipment.Set(entity.SlotCarriedRight, entity.ItemStack{RefID: "iron_longsword", Count: 1})
	victim := testNPC("guard_01", mgl32.Vec3{})

	rec := attack.Record{Owner: "player_1"}
	if err := engine.ResolveMelee(context.Background(), sess, &rec, MeleeRequest{Attacker: attacker, Victim: victim}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rec.Success || rec.HitPosition != nil {
		t.Fatalf("expected a miss without hit position, got %+v", rec)
	}
	if rec.Weapon != "iron_longsword" {
		t.Fatalf("expected weapon to be recorded, got %q", rec.Weapon)
	}

	sess = newSession(rng.NewScript(0), map[string]string{"player_1": "peer-a"})
	rec = attack.Record{Owner: "player_1"}
	if err := engine.ResolveMelee(context.Background(), sess, &rec, MeleeRequest{Attacker: attacker, Victim: victim}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !rec.Success || !rec.EnchantmentApplied {
		t.Fatalf("expected enchanted hit, got %+v", rec)
	}
	if rec.HitPosition == nil || *rec.HitPosition != victim.Position {
		t.Fatalf("expected hit position at victim, got %v", rec.HitPosition)
	}
}

func TestMeleeMissingStateDegradesToNoEffect(t *testing.T) {
	src := rng.NewScript(0)
	sess := newSession(src, map[string]string{"player_1": "peer-a"})
	engine := NewEngine(testCatalog(), nil)
	attacker := testNPC("player_1", mgl32.Vec3{})

	rec := attack.Record{Owner: "player_1"}
	if err := engine.ResolveMelee(context.Background(), sess, &rec, MeleeRequest{Attacker: attacker}); err != nil {
		t.Fatalf("expected no error for missing victim, got %v", err)
	}
	if rec.Success || rec.Target != "" {
		t.Fatalf("expected no-effect record, got %+v", rec)
	}

	attacker.Equipment.Set(entity.SlotCarriedRight, entity.ItemStack{RefID: "mystery_blade", Count: 1})
	victim := testNPC("guard_01", mgl32.Vec3{})
	rec = attack.Record{Owner: "player_1"}
	if err := engine.ResolveMelee(context.Background(), sess, &rec, MeleeRequest{Attacker: attacker, Victim: victim}); err != nil {
		t.Fatalf("expected no error for unknown weapon, got %v", err)
	}
	if rec.Success {
		t.Fatalf("expected no-effect record for unknown weapon, got %+v", rec)
	}
	if src.Draws() != 0 {
		t.Fatalf("expected no draws, got %d", src.Draws())
	}
}

func TestDedicatedAttackerIsRejected(t *testing.T) {
	sess := newSession(rng.NewScript(0), map[string]string{"guard_01": "peer-b"})
	engine := NewEngine(testCatalog(), nil)
	rec := attack.Record{Owner: "guard_01"}
	err := engine.ResolveRanged(context.Background(), sess, &rec, RangedRequest{Attacker: testNPC("guard_01", mgl32.Vec3{})})
	if !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected authority violation, got %v", err)
	}
	if rec.Hit {
		t.Fatalf("expected record untouched for dedicated attacker")
	}
}

func TestRangedWithoutVictimStillSends(t *testing.T) {
	src := rng.NewScript(0)
	sess := newSession(src, map[string]string{"player_1": "peer-a"})
	engine := NewEngine(testCatalog(), nil)

	rec := attack.Record{Owner: "player_1"}
	impact := mgl32.Vec3{12.5, -3.25, 100.125}
	err := engine.ResolveRanged(context.Background(), sess, &rec, RangedRequest{
		Attacker:    testNPC("player_1", mgl32.Vec3{}),
		Weapon:      entity.ItemStack{RefID: "chitin_bow", Count: 1},
		Projectile:  entity.ItemStack{RefID: "flame_arrow", Count: 1},
		HitPosition: impact,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rec.Kind != attack.KindRanged || !rec.Hit || !rec.ShouldSend {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.HitPosition == nil || *rec.HitPosition != impact {
		t.Fatalf("expected impact position, got %v", rec.HitPosition)
	}
	if !rec.AmmoEnchantmentApplied {
		t.Fatalf("expected ammo enchantment to apply")
	}
	if src.Draws() != 0 {
		t.Fatalf("expected no rolls without a victim, got %d", src.Draws())
	}
}

func TestRangedMissClearsSuccess(t *testing.T) {
	sess := newSession(rng.NewScript(99), map[string]string{"player_1": "peer-a"})
	engine := NewEngine(testCatalog(), nil)

	rec := attack.Record{Owner: "player_1"}
	err := engine.ResolveRanged(context.Background(), sess, &rec, RangedRequest{
		Attacker:   testNPC("player_1", mgl32.Vec3{}),
		Victim:     testNPC("guard_01", mgl32.Vec3{0, 50, 0}),
		Weapon:     entity.ItemStack{RefID: "chitin_bow", Count: 1},
		Projectile: entity.ItemStack{RefID: "flame_arrow", Count: 1},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rec.Success || !rec.Hit || rec.AmmoEnchantmentApplied {
		t.Fatalf("expected failed ranged hit without enchantment, got %+v", rec)
	}
}

func TestResolveMagic(t *testing.T) {
	tests := []struct {
		name    string
		spell   string
		silence float32
		success bool
	}{
		{name: "cast succeeds", spell: "fire_bite", success: true},
		{name: "silenced caster fails", spell: "fire_bite", silence: 10},
		{name: "unknown spell has no effect", spell: "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession(rng.NewScript(0), map[string]string{"player_1": "peer-a"})
			engine := NewEngine(testCatalog(), nil)
			caster := testNPC("player_1", mgl32.Vec3{})
			caster.SelectedSpell = tt.spell
			if tt.silence > 0 {
				caster.Stats.Effects = map[entity.MagicEffect]float32{entity.EffectSilence: tt.silence}
			}
			rec := attack.Record{Owner: "player_1"}
			if err := engine.ResolveMagic(context.Background(), sess, &rec, MagicRequest{Caster: caster}); err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if rec.Kind != attack.KindMagic || rec.Spell != tt.spell {
				t.Fatalf("unexpected record identity: %+v", rec)
			}
			if rec.Success != tt.success {
				t.Fatalf("expected success=%v, got %v", tt.success, rec.Success)
			}
		})
	}
}
