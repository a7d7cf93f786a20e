package combat

import "github.com/michaelt919/TES3MP/logging"

// AttackPayload is the loggable view of an attack record.
type AttackPayload struct {
	Kind                   string      `json:"kind"`
	Seq                    uint64      `json:"seq"`
	Success                bool        `json:"success"`
	Blocked                bool        `json:"blocked"`
	Hit                    bool        `json:"hit,omitempty"`
	HitPosition            *[3]float32 `json:"hitPosition,omitempty"`
	EnchantmentApplied     bool        `json:"enchantmentApplied,omitempty"`
	AmmoEnchantmentApplied bool        `json:"ammoEnchantmentApplied,omitempty"`
	Weapon                 string      `json:"weapon,omitempty"`
	Spell                  string      `json:"spell,omitempty"`
}

func targets(target logging.EntityRef) []logging.EntityRef {
	if target.ID == "" {
		return nil
	}
	return []logging.EntityRef{target}
}
