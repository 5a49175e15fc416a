package domain

import (
	"sort"
	"strings"
)

// CombatantType describes what kind of participant a combatant is.
type CombatantType int

const (
	// CombatantTypeUnspecified represents an invalid combatant type.
	CombatantTypeUnspecified CombatantType = iota
	// CombatantTypePC is a player character.
	CombatantTypePC
	// CombatantTypeNPC is a non-player character.
	CombatantTypeNPC
	// CombatantTypeMonster is a monster.
	CombatantTypeMonster
)

// StatBlock holds NPC/monster statistics. PCs carry a character reference
// instead.
type StatBlock struct {
	Strength     int      `json:"strength"`
	Dexterity    int      `json:"dexterity"`
	Constitution int      `json:"constitution"`
	Intelligence int      `json:"intelligence"`
	Wisdom       int      `json:"wisdom"`
	Charisma     int      `json:"charisma"`
	Speed        string   `json:"speed,omitempty"`
	Senses       string   `json:"senses,omitempty"`
	Immunities   []string `json:"immunities,omitempty"`
	Traits       []string `json:"traits,omitempty"`
	Attacks      []string `json:"attacks,omitempty"`
}

// Combatant is a participant in an active encounter. Combatants are embedded
// in the encounter document, not separately addressable records.
type Combatant struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Type CombatantType `json:"type"`
	// Initiative orders combatants descending; ties keep insertion order.
	Initiative int      `json:"initiative"`
	HP         int      `json:"hp"`
	MaxHP      int      `json:"max_hp"`
	AC         int      `json:"ac"`
	Conditions []string `json:"conditions,omitempty"`
	// CharacterID links a PC combatant to its character record.
	CharacterID string `json:"character_id,omitempty"`
	// StatBlock is set for NPC/monster combatants only.
	StatBlock *StatBlock `json:"stat_block,omitempty"`
}

// CombatantPatch is a partial update to a combatant. Nil fields are left
// unchanged.
type CombatantPatch struct {
	Name       *string
	Initiative *int
	HP         *int
	MaxHP      *int
	AC         *int
	Conditions *[]string
}

// ApplyPatch merges a patch into a combatant. HP is always clamped to
// [0, MaxHP] and conditions are de-duplicated, so no sequence of patches can
// leave a combatant outside its invariants.
func ApplyPatch(combatant Combatant, patch CombatantPatch) Combatant {
	if patch.Name != nil {
		combatant.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Initiative != nil {
		combatant.Initiative = *patch.Initiative
	}
	if patch.MaxHP != nil {
		combatant.MaxHP = *patch.MaxHP
	}
	if patch.HP != nil {
		combatant.HP = *patch.HP
	}
	if patch.AC != nil {
		combatant.AC = *patch.AC
	}
	if patch.Conditions != nil {
		combatant.Conditions = DedupeConditions(*patch.Conditions)
	}
	combatant.HP = ClampHP(combatant.HP, combatant.MaxHP)
	return combatant
}

// ClampHP clamps hp into [0, maxHP].
func ClampHP(hp, maxHP int) int {
	if maxHP < 0 {
		maxHP = 0
	}
	if hp < 0 {
		return 0
	}
	if hp > maxHP {
		return maxHP
	}
	return hp
}

// DedupeConditions removes duplicate condition names, preserving first
// occurrence order.
func DedupeConditions(conditions []string) []string {
	if len(conditions) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(conditions))
	result := make([]string, 0, len(conditions))
	for _, condition := range conditions {
		condition = strings.TrimSpace(condition)
		if condition == "" {
			continue
		}
		key := strings.ToLower(condition)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, condition)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// SortCombatants orders combatants by descending initiative. The sort is
// stable: equal initiative keeps the caller's insertion order, with no
// secondary randomization.
func SortCombatants(combatants []Combatant) {
	sort.SliceStable(combatants, func(i, j int) bool {
		return combatants[i].Initiative > combatants[j].Initiative
	})
}

// HPBand classifies a combatant's remaining health for display.
type HPBand int

const (
	// HPBandNominal is above half health.
	HPBandNominal HPBand = iota
	// HPBandWarning is between a quarter and half health.
	HPBandWarning
	// HPBandCritical is below a quarter health or at zero.
	HPBandCritical
)

// BandForHP returns the display band for an hp/maxHP pair.
func BandForHP(hp, maxHP int) HPBand {
	if hp <= 0 || maxHP <= 0 {
		return HPBandCritical
	}
	percent := hp * 100 / maxHP
	switch {
	case percent > 50:
		return HPBandNominal
	case percent >= 25:
		return HPBandWarning
	default:
		return HPBandCritical
	}
}

// CombatantTypeLabel returns a stable label for a combatant type.
func CombatantTypeLabel(combatantType CombatantType) string {
	switch combatantType {
	case CombatantTypePC:
		return "PC"
	case CombatantTypeNPC:
		return "NPC"
	case CombatantTypeMonster:
		return "MONSTER"
	default:
		return "UNSPECIFIED"
	}
}

// CombatantTypeFromLabel converts a label to a CombatantType value.
func CombatantTypeFromLabel(label string) CombatantType {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PC":
		return CombatantTypePC
	case "NPC":
		return CombatantTypeNPC
	case "MONSTER":
		return CombatantTypeMonster
	default:
		return CombatantTypeUnspecified
	}
}
