package entity

// Attributes exposes modified attribute values.
type Attributes interface {
	Attribute(a Attribute) float32
}

// Skills exposes modified skill values.
type Skills interface {
	Skill(s Skill) float32
}

// Inventory exposes the equipment store of an actor.
type Inventory interface {
	Equipped(slot int) ItemStack
	Items() ItemList
}

// Enchantment resolves the on-strike enchantment carried by an item.
type Enchantment interface {
	OnStrike(item ItemStack) (EnchantmentRecord, bool)
}

// Capabilities is the interface table of an entity variant. A nil entry
// means the variant does not have that capability.
type Capabilities struct {
	Attributes  Attributes
	Skills      Skills
	Inventory   Inventory
	Enchantment Enchantment
}

// CapabilitiesOf builds the interface table for the entity's variant. The
// returned table reads from e, so it must not outlive the snapshot it was
// built from.
func CapabilitiesOf(e *Entity, catalog *Catalog) Capabilities {
	if e == nil {
		return Capabilities{}
	}
	enchant := catalogEnchantment{catalog: catalog}
	switch e.Variant {
	case VariantNPC:
		return Capabilities{
			Attributes:  statAttributes{stats: &e.Stats},
			Skills:      npcSkills{stats: &e.Stats},
			Inventory:   equipmentStore{entity: e},
			Enchantment: enchant,
		}
	case VariantCreature:
		caps := Capabilities{
			Attributes: statAttributes{stats: &e.Stats},
			Skills:     creatureSkills{stats: &e.Stats},
		}
		if e.UsesWeapons {
			caps.Inventory = equipmentStore{entity: e}
			caps.Enchantment = enchant
		}
		return caps
	default:
		return Capabilities{}
	}
}

type statAttributes struct {
	stats *CreatureStats
}

func (a statAttributes) Attribute(attr Attribute) float32 {
	if attr < 0 || attr >= AttributeCount {
		return 0
	}
	return a.stats.Attributes[attr]
}

type npcSkills struct {
	stats *CreatureStats
}

func (s npcSkills) Skill(skill Skill) float32 {
	if skill < 0 || skill >= SkillCount {
		return 0
	}
	return s.stats.Skills[skill]
}

// creatureSkills answers every skill with the aggregate of its
// specialization.
type creatureSkills struct {
	stats *CreatureStats
}

func (s creatureSkills) Skill(skill Skill) float32 {
	switch skill.Specialization() {
	case SpecializationCombat:
		return s.stats.Combat
	case SpecializationMagic:
		return s.stats.Magic
	default:
		return s.stats.Stealth
	}
}

type equipmentStore struct {
	entity *Entity
}

func (s equipmentStore) Equipped(slot int) ItemStack {
	return s.entity.Equipment.Get(slot)
}

func (s equipmentStore) Items() ItemList {
	return s.entity.Inventory
}

type catalogEnchantment struct {
	catalog *Catalog
}

func (c catalogEnchantment) OnStrike(item ItemStack) (EnchantmentRecord, bool) {
	if item.Empty() {
		return EnchantmentRecord{}, false
	}
	id := c.catalog.ItemEnchantment(item.RefID)
	if id == "" {
		return EnchantmentRecord{}, false
	}
	rec, ok := c.catalog.Enchantment(id)
	if !ok || rec.Type != EnchantmentWhenStrikes {
		return EnchantmentRecord{}, false
	}
	return rec, true
}
