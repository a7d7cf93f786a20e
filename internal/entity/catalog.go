package entity

// EnchantmentType selects when an enchantment fires.
type EnchantmentType string

const (
	EnchantmentCastOnce    EnchantmentType = "cast_once"
	EnchantmentWhenStrikes EnchantmentType = "when_strikes"
	EnchantmentWhenUsed    EnchantmentType = "when_used"
	EnchantmentConstant    EnchantmentType = "constant"
)

// WeaponRecord is the static definition of a weapon or ammunition item.
type WeaponRecord struct {
	Skill       Skill   `yaml:"skill" json:"skill"`
	Weight      float32 `yaml:"weight" json:"weight"`
	Enchantment string  `yaml:"enchantment" json:"enchantment,omitempty"`
	Silver      bool    `yaml:"silver" json:"silver,omitempty"`
	Magical     bool    `yaml:"magical" json:"magical,omitempty"`
}

// ArmorRecord is the static definition of an armor piece. Shields are armor
// worn in the carried-left slot.
type ArmorRecord struct {
	Weight      float32 `yaml:"weight" json:"weight"`
	Enchantment string  `yaml:"enchantment" json:"enchantment,omitempty"`
}

// EnchantmentRecord is the static definition of an enchantment.
type EnchantmentRecord struct {
	Type   EnchantmentType `yaml:"type" json:"type"`
	Charge int             `yaml:"charge" json:"charge"`
}

// SpellEffect is one entry of a spell's effect list.
type SpellEffect struct {
	School      School  `yaml:"school" json:"school"`
	BaseCost    float32 `yaml:"base_cost" json:"baseCost"`
	AppliedOnce bool    `yaml:"applied_once" json:"appliedOnce,omitempty"`
	Duration    float32 `yaml:"duration" json:"duration"`
	MagnMin     float32 `yaml:"magn_min" json:"magnMin"`
	MagnMax     float32 `yaml:"magn_max" json:"magnMax"`
	Area        float32 `yaml:"area" json:"area"`
	OnTarget    bool    `yaml:"on_target" json:"onTarget,omitempty"`
}

// SpellType distinguishes castable spells from powers and abilities.
type SpellType string

const (
	SpellTypeSpell SpellType = "spell"
	SpellTypePower SpellType = "power"
	SpellTypeOther SpellType = "other"
)

// SpellRecord is the static definition of a spell.
type SpellRecord struct {
	Type    SpellType     `yaml:"type" json:"type"`
	Cost    float32       `yaml:"cost" json:"cost"`
	Always  bool          `yaml:"always" json:"always,omitempty"`
	Effects []SpellEffect `yaml:"effects" json:"effects"`
}

// Catalog is the read-only record store shared by both peers. Lookups of
// unknown ids report false; callers degrade to a no-effect outcome.
type Catalog struct {
	Weapons      map[string]WeaponRecord      `yaml:"weapons"`
	Armor        map[string]ArmorRecord       `yaml:"armor"`
	Enchantments map[string]EnchantmentRecord `yaml:"enchantments"`
	Spells       map[string]SpellRecord       `yaml:"spells"`
}

func (c *Catalog) Weapon(refID string) (WeaponRecord, bool) {
	if c == nil || c.Weapons == nil {
		return WeaponRecord{}, false
	}
	rec, ok := c.Weapons[refID]
	return rec, ok
}

func (c *Catalog) ArmorPiece(refID string) (ArmorRecord, bool) {
	if c == nil || c.Armor == nil {
		return ArmorRecord{}, false
	}
	rec, ok := c.Armor[refID]
	return rec, ok
}

func (c *Catalog) Enchantment(id string) (EnchantmentRecord, bool) {
	if c == nil || c.Enchantments == nil {
		return EnchantmentRecord{}, false
	}
	rec, ok := c.Enchantments[id]
	return rec, ok
}

func (c *Catalog) Spell(id string) (SpellRecord, bool) {
	if c == nil || c.Spells == nil {
		return SpellRecord{}, false
	}
	rec, ok := c.Spells[id]
	return rec, ok
}

// ItemEnchantment returns the enchantment id carried by a weapon or armor
// record.
func (c *Catalog) ItemEnchantment(refID string) string {
	if rec, ok := c.Weapon(refID); ok {
		return rec.Enchantment
	}
	if rec, ok := c.ArmorPiece(refID); ok {
		return rec.Enchantment
	}
	return ""
}
