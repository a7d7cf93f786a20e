package entity

// Attribute indexes CreatureStats.Attributes.
type Attribute int

const (
	AttributeStrength Attribute = iota
	AttributeIntelligence
	AttributeWillpower
	AttributeAgility
	AttributeSpeed
	AttributeEndurance
	AttributePersonality
	AttributeLuck

	AttributeCount
)

// Skill indexes CreatureStats.Skills.
type Skill int

const (
	SkillBlock Skill = iota
	SkillArmorer
	SkillMediumArmor
	SkillHeavyArmor
	SkillBluntWeapon
	SkillLongBlade
	SkillAxe
	SkillSpear
	SkillAthletics
	SkillEnchant
	SkillDestruction
	SkillAlteration
	SkillIllusion
	SkillConjuration
	SkillMysticism
	SkillRestoration
	SkillAlchemy
	SkillUnarmored
	SkillSecurity
	SkillSneak
	SkillAcrobatics
	SkillLightArmor
	SkillShortBlade
	SkillMarksman
	SkillMercantile
	SkillSpeechcraft
	SkillHandToHand

	SkillCount
)

// Specialization groups skills for creature skill lookups.
type Specialization int

const (
	SpecializationCombat Specialization = iota
	SpecializationMagic
	SpecializationStealth
)

// Specialization reports the group a skill belongs to. Skills are laid out
// in three blocks of nine.
func (s Skill) Specialization() Specialization {
	switch {
	case s < SkillEnchant:
		return SpecializationCombat
	case s < SkillSecurity:
		return SpecializationMagic
	default:
		return SpecializationStealth
	}
}

// School is a magic school.
type School int

const (
	SchoolAlteration School = iota
	SchoolConjuration
	SchoolDestruction
	SchoolIllusion
	SchoolMysticism
	SchoolRestoration
)

// Skill maps a school to the skill that governs it.
func (s School) Skill() Skill {
	switch s {
	case SchoolAlteration:
		return SkillAlteration
	case SchoolConjuration:
		return SkillConjuration
	case SchoolDestruction:
		return SkillDestruction
	case SchoolIllusion:
		return SkillIllusion
	case SchoolMysticism:
		return SkillMysticism
	case SchoolRestoration:
		return SkillRestoration
	default:
		return SkillAlteration
	}
}

// MagicEffect names an active effect whose magnitude influences combat.
type MagicEffect string

const (
	EffectChameleon     MagicEffect = "chameleon"
	EffectInvisibility  MagicEffect = "invisibility"
	EffectFortifyAttack MagicEffect = "fortify_attack"
	EffectBlind         MagicEffect = "blind"
	EffectSanctuary     MagicEffect = "sanctuary"
	EffectSilence       MagicEffect = "silence"
	EffectSound         MagicEffect = "sound"
)
