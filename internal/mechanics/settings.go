package mechanics

// Settings carries the game settings consumed by the default formulas. The
// yaml keys follow the engine's GMST names in snake case.
type Settings struct {
	CombatBlockLeftAngle  float32 `yaml:"combat_block_left_angle"`
	CombatBlockRightAngle float32 `yaml:"combat_block_right_angle"`
	SwingBlockMult        float32 `yaml:"swing_block_mult"`
	SwingBlockBase        float32 `yaml:"swing_block_base"`
	BlockStillBonus       float32 `yaml:"block_still_bonus"`
	BlockMaxChance        int     `yaml:"block_max_chance"`
	BlockMinChance        int     `yaml:"block_min_chance"`
	CombatInvisoMult      float32 `yaml:"combat_inviso_mult"`
	FatigueBase           float32 `yaml:"fatigue_base"`
	FatigueMult           float32 `yaml:"fatigue_mult"`
	EffectCostMult        float32 `yaml:"effect_cost_mult"`

	// AttacksUsuallyHit rescales hit chance so that skill mostly affects
	// damage and dodge instead of connecting.
	AttacksUsuallyHit bool `yaml:"attacks_usually_hit"`
}

// DefaultSettings returns the stock game values.
func DefaultSettings() Settings {
	return Settings{
		CombatBlockLeftAngle:  -90,
		CombatBlockRightAngle: 30,
		SwingBlockMult:        1,
		SwingBlockBase:        1,
		BlockStillBonus:       1.25,
		BlockMaxChance:        50,
		BlockMinChance:        10,
		CombatInvisoMult:      0.2,
		FatigueBase:           1.25,
		FatigueMult:           0.5,
		EffectCostMult:        0.5,
	}
}
