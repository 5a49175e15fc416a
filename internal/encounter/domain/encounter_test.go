package domain

import (
	"errors"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func testCombatants() []Combatant {
	return []Combatant{
		{ID: "c1", Name: "Goblin", Type: CombatantTypeMonster, Initiative: 18, HP: 7, MaxHP: 7, AC: 15},
		{ID: "c2", Name: "Astrid", Type: CombatantTypePC, Initiative: 12, HP: 10, MaxHP: 10, AC: 16},
		{ID: "c3", Name: "Goblin Boss", Type: CombatantTypeMonster, Initiative: 9, HP: 21, MaxHP: 21, AC: 17},
	}
}

func TestCreateEncounter(t *testing.T) {
	encounter, err := CreateEncounter(CreateEncounterInput{
		CampaignID: "camp-1",
		Name:       "Goblin Ambush",
		Combatants: testCombatants(),
	}, fixedNow, nil)
	if err != nil {
		t.Fatalf("create encounter: %v", err)
	}

	if !encounter.Active {
		t.Fatal("expected active encounter")
	}
	if encounter.Round != 1 {
		t.Fatalf("round = %d, want 1", encounter.Round)
	}
	if encounter.CurrentTurnIndex != 0 {
		t.Fatalf("turn index = %d, want 0", encounter.CurrentTurnIndex)
	}
	if len(encounter.Combatants) != 3 {
		t.Fatalf("combatants = %d, want 3", len(encounter.Combatants))
	}
	if encounter.EndedAt != nil {
		t.Fatal("expected no end timestamp")
	}
}

func TestCreateEncounterValidation(t *testing.T) {
	if _, err := CreateEncounter(CreateEncounterInput{CampaignID: "c", Combatants: testCombatants()}, fixedNow, nil); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("error = %v, want ErrEmptyName", err)
	}
	if _, err := CreateEncounter(CreateEncounterInput{CampaignID: "c", Name: "Fight"}, fixedNow, nil); !errors.Is(err, ErrNoCombatants) {
		t.Fatalf("error = %v, want ErrNoCombatants", err)
	}
}

func TestAdvanceTurnWrapsAndIncrementsRound(t *testing.T) {
	index, round := 0, 1
	count := 3

	// A full cycle of L turns returns to index 0 and bumps the round once.
	for i := 0; i < count; i++ {
		index, round = AdvanceTurn(index, round, count)
	}
	if index != 0 {
		t.Fatalf("turn index after full cycle = %d, want 0", index)
	}
	if round != 2 {
		t.Fatalf("round after full cycle = %d, want 2", round)
	}
}

func TestAdvanceTurnMidRound(t *testing.T) {
	index, round := AdvanceTurn(0, 1, 3)
	if index != 1 || round != 1 {
		t.Fatalf("got index=%d round=%d, want 1/1", index, round)
	}
	index, round = AdvanceTurn(1, 1, 3)
	if index != 2 || round != 1 {
		t.Fatalf("got index=%d round=%d, want 2/1", index, round)
	}
}

func TestAdvanceTurnSingleCombatant(t *testing.T) {
	index, round := AdvanceTurn(0, 4, 1)
	if index != 0 || round != 5 {
		t.Fatalf("got index=%d round=%d, want 0/5", index, round)
	}
}

func TestApplyPatchClampsHP(t *testing.T) {
	combatant := Combatant{ID: "c1", Name: "Astrid", HP: 10, MaxHP: 10}

	damage := -999
	patched := ApplyPatch(combatant, CombatantPatch{HP: &damage})
	if patched.HP != 0 {
		t.Fatalf("hp after massive damage = %d, want 0", patched.HP)
	}

	heal := 999
	patched = ApplyPatch(patched, CombatantPatch{HP: &heal})
	if patched.HP != 10 {
		t.Fatalf("hp after massive heal = %d, want 10", patched.HP)
	}

	// Lowering max hp re-clamps current hp.
	lowered := 4
	patched = ApplyPatch(patched, CombatantPatch{MaxHP: &lowered})
	if patched.HP != 4 {
		t.Fatalf("hp after max lowered = %d, want 4", patched.HP)
	}
}

func TestApplyPatchDedupesConditions(t *testing.T) {
	conditions := []string{"poisoned", "Poisoned", "prone", " ", "prone"}
	patched := ApplyPatch(Combatant{HP: 5, MaxHP: 5}, CombatantPatch{Conditions: &conditions})
	if len(patched.Conditions) != 2 {
		t.Fatalf("conditions = %v, want [poisoned prone]", patched.Conditions)
	}
}

func TestSortCombatantsStableDescending(t *testing.T) {
	combatants := []Combatant{
		{ID: "a", Initiative: 12},
		{ID: "b", Initiative: 18},
		{ID: "c", Initiative: 12},
		{ID: "d", Initiative: 9},
	}
	SortCombatants(combatants)

	wantOrder := []string{"b", "a", "c", "d"}
	for i, want := range wantOrder {
		if combatants[i].ID != want {
			t.Fatalf("position %d = %s, want %s (ties must keep insertion order)", i, combatants[i].ID, want)
		}
	}
}

func TestBandForHP(t *testing.T) {
	tests := []struct {
		name  string
		hp    int
		maxHP int
		want  HPBand
	}{
		{"full", 10, 10, HPBandNominal},
		{"just above half", 6, 10, HPBandNominal},
		{"half", 5, 10, HPBandWarning},
		{"quarter", 25, 100, HPBandWarning},
		{"below quarter", 2, 10, HPBandCritical},
		{"zero", 0, 10, HPBandCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BandForHP(tt.hp, tt.maxHP); got != tt.want {
				t.Fatalf("band = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTurnChangeEntryAnnouncesRound(t *testing.T) {
	entry := TurnChangeEntry("Astrid", 2, true, fixedNow())
	if entry.Type != LogEntryTurnChange {
		t.Fatalf("type = %s, want turn_change", entry.Type)
	}
	if entry.Description != "Round 2 begins. It's Astrid's turn." {
		t.Fatalf("description = %q", entry.Description)
	}

	entry = TurnChangeEntry("Goblin", 2, false, fixedNow())
	if entry.Description != "It's Goblin's turn." {
		t.Fatalf("description = %q", entry.Description)
	}
}

func TestCombatantLookups(t *testing.T) {
	encounter := Encounter{Combatants: testCombatants(), CurrentTurnIndex: 1}
	if idx := encounter.CombatantByID("c3"); idx != 2 {
		t.Fatalf("index = %d, want 2", idx)
	}
	if idx := encounter.CombatantByID("missing"); idx != -1 {
		t.Fatalf("index = %d, want -1", idx)
	}
	current, ok := encounter.CurrentCombatant()
	if !ok || current.ID != "c2" {
		t.Fatalf("current = %+v ok=%v, want c2", current, ok)
	}
}
