package service

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	campaignservice "github.com/louisbranch/wyrmtable/internal/campaign/service"
	"github.com/louisbranch/wyrmtable/internal/encounter/domain"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/storage"
	sqlitestore "github.com/louisbranch/wyrmtable/internal/storage/sqlite"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *notify.Hub, string) {
	t.Helper()

	hub := notify.NewHub()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"), sqlitestore.WithNotifier(hub))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	registry := campaignservice.NewRegistry(store, hub)
	campaign, err := registry.CreateCampaign(context.Background(), campaignservice.CreateCampaignInput{
		Name:          "Sunless Citadel",
		DmUID:         "dm-1",
		DmDisplayName: "Astrid",
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	coordinator := NewCoordinator(store, hub, WithRand(rand.New(rand.NewSource(7))))
	return coordinator, hub, campaign.ID
}

func twoCombatantDrafts() []CombatantDraft {
	return []CombatantDraft{
		{Name: "Kira", Type: domain.CombatantTypePC, Initiative: 18, HP: 24, MaxHP: 24, AC: 16},
		{Name: "Goblin", Type: domain.CombatantTypeMonster, Initiative: 12, HP: 7, MaxHP: 7, AC: 13},
	}
}

func TestStartEncounterSeedsStateAndLog(t *testing.T) {
	t.Parallel()

	coordinator, _, campaignID := newTestCoordinator(t)
	record, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Goblin Ambush",
		Drafts:     twoCombatantDrafts(),
	})
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}

	if record.Round != 1 || record.CurrentTurnIndex != 0 {
		t.Fatalf("state = round %d index %d, want round 1 index 0", record.Round, record.CurrentTurnIndex)
	}
	if record.Combatants[0].Name != "Kira" {
		t.Fatalf("first combatant = %q, want Kira (highest initiative)", record.Combatants[0].Name)
	}
	if len(record.Log) != 1 || record.Log[0].Type != domain.LogEntryEncounterStart {
		t.Fatalf("log = %+v, want one start entry", record.Log)
	}

	// A second start is rejected while the first is active.
	_, err = coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Second Fight",
		Drafts:     twoCombatantDrafts(),
	})
	if !apperrors.IsCode(err, apperrors.CodeEncounterAlreadyActive) {
		t.Fatalf("err = %v, want already active", err)
	}
}

func TestStartEncounterRequiresDM(t *testing.T) {
	t.Parallel()

	coordinator, _, campaignID := newTestCoordinator(t)
	_, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "player-1",
		Name:       "Goblin Ambush",
		Drafts:     twoCombatantDrafts(),
	})
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}
}

func TestRolledInitiativeIsDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	coordinator, _, _ := newTestCoordinator(t)
	drafts := []CombatantDraft{
		{Name: "Rogue", RollInitiative: true, DexModifier: 4, HP: 20, MaxHP: 20},
		{Name: "Cleric", RollInitiative: true, DexModifier: 0, HP: 22, MaxHP: 22},
	}
	combatants, err := coordinator.CombatantsFromDrafts(drafts)
	if err != nil {
		t.Fatalf("combatants from drafts: %v", err)
	}
	for _, combatant := range combatants {
		if combatant.Initiative < 1 || combatant.Initiative > 24 {
			t.Fatalf("initiative %d outside 1d20+mod range", combatant.Initiative)
		}
	}
	for i := 1; i < len(combatants); i++ {
		if combatants[i-1].Initiative < combatants[i].Initiative {
			t.Fatalf("combatants not sorted descending: %+v", combatants)
		}
	}
}

func TestNextTurnAdvancesAndWrapsRound(t *testing.T) {
	t.Parallel()

	coordinator, _, campaignID := newTestCoordinator(t)
	record, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Goblin Ambush",
		Drafts:     twoCombatantDrafts(),
	})
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}

	after, err := coordinator.NextTurn(context.Background(), "dm-1", campaignID, record.ID)
	if err != nil {
		t.Fatalf("next turn: %v", err)
	}
	if after.CurrentTurnIndex != 1 || after.Round != 1 {
		t.Fatalf("turn = (%d, round %d), want (1, round 1)", after.CurrentTurnIndex, after.Round)
	}

	after, err = coordinator.NextTurn(context.Background(), "dm-1", campaignID, record.ID)
	if err != nil {
		t.Fatalf("wrap turn: %v", err)
	}
	if after.CurrentTurnIndex != 0 || after.Round != 2 {
		t.Fatalf("turn = (%d, round %d), want (0, round 2)", after.CurrentTurnIndex, after.Round)
	}

	got, err := coordinator.GetEncounter(context.Background(), "dm-1", campaignID, record.ID)
	if err != nil {
		t.Fatalf("get encounter: %v", err)
	}
	var turnChanges int
	for _, entry := range got.Log {
		if entry.Type == domain.LogEntryTurnChange {
			turnChanges++
		}
	}
	if turnChanges != 2 {
		t.Fatalf("turn change entries = %d, want 2", turnChanges)
	}
	last := got.Log[len(got.Log)-1]
	if last.Description != "Round 2 begins. It's Kira's turn." {
		t.Fatalf("wrap entry = %q", last.Description)
	}
}

func TestUpdateCombatantLogsDamageAndUnknownCombatant(t *testing.T) {
	t.Parallel()

	coordinator, _, campaignID := newTestCoordinator(t)
	record, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Goblin Ambush",
		Drafts:     twoCombatantDrafts(),
	})
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}
	goblinID := record.Combatants[1].ID

	hp := 2
	updated, err := coordinator.UpdateCombatant(context.Background(), "dm-1", campaignID, record.ID, goblinID, domain.CombatantPatch{HP: &hp})
	if err != nil {
		t.Fatalf("update combatant: %v", err)
	}
	if updated.HP != 2 {
		t.Fatalf("hp = %d, want 2", updated.HP)
	}

	got, err := coordinator.GetEncounter(context.Background(), "dm-1", campaignID, record.ID)
	if err != nil {
		t.Fatalf("get encounter: %v", err)
	}
	last := got.Log[len(got.Log)-1]
	if last.Type != domain.LogEntryDamage {
		t.Fatalf("last entry type = %q, want damage", last.Type)
	}

	_, err = coordinator.UpdateCombatant(context.Background(), "dm-1", campaignID, record.ID, "nope", domain.CombatantPatch{HP: &hp})
	if !apperrors.IsCode(err, apperrors.CodeEncounterUnknownCombatant) {
		t.Fatalf("err = %v, want unknown combatant", err)
	}
}

func TestEndEncounterAllowsANewStart(t *testing.T) {
	t.Parallel()

	coordinator, _, campaignID := newTestCoordinator(t)
	record, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Goblin Ambush",
		Drafts:     twoCombatantDrafts(),
	})
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}

	if err := coordinator.EndEncounter(context.Background(), "dm-1", campaignID, record.ID); err != nil {
		t.Fatalf("end encounter: %v", err)
	}
	if err := coordinator.EndEncounter(context.Background(), "dm-1", campaignID, record.ID); !apperrors.IsCode(err, apperrors.CodeEncounterNotActive) {
		t.Fatalf("double end err = %v, want not active", err)
	}
	if _, err := coordinator.NextTurn(context.Background(), "dm-1", campaignID, record.ID); !apperrors.IsCode(err, apperrors.CodeEncounterNotActive) {
		t.Fatalf("next turn after end err = %v, want not active", err)
	}

	if _, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Rematch",
		Drafts:     twoCombatantDrafts(),
	}); err != nil {
		t.Fatalf("start after end: %v", err)
	}
}

func TestStartFromTemplateResetsHP(t *testing.T) {
	t.Parallel()

	coordinator, _, campaignID := newTestCoordinator(t)
	template, err := coordinator.SaveTemplate(context.Background(), "dm-1", campaignID, "Goblin Patrol", []CombatantDraft{
		{Name: "Goblin A", Type: domain.CombatantTypeMonster, Initiative: 12, HP: 3, MaxHP: 7, AC: 13},
		{Name: "Goblin B", Type: domain.CombatantTypeMonster, Initiative: 9, HP: 7, MaxHP: 7, AC: 13},
	})
	if err != nil {
		t.Fatalf("save template: %v", err)
	}

	record, err := coordinator.StartFromTemplate(context.Background(), "dm-1", campaignID, template.ID, "Patrol Fight")
	if err != nil {
		t.Fatalf("start from template: %v", err)
	}
	for _, combatant := range record.Combatants {
		if combatant.HP != combatant.MaxHP {
			t.Fatalf("combatant %q hp = %d, want full %d", combatant.Name, combatant.HP, combatant.MaxHP)
		}
		for _, original := range template.Combatants {
			if combatant.ID == original.ID {
				t.Fatalf("combatant id %q reused from template", combatant.ID)
			}
		}
	}
}

// Full scenario: start with three combatants, cycle turns, down one
// combatant, end, and verify the log tells the whole story in order.
func TestCombatScenarioEndToEnd(t *testing.T) {
	t.Parallel()

	coordinator, hub, campaignID := newTestCoordinator(t)
	sub := hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionEncounters},
	})
	defer sub.Close()

	record, err := coordinator.StartEncounter(context.Background(), StartEncounterInput{
		CampaignID: campaignID,
		ActorUID:   "dm-1",
		Name:       "Bridge Battle",
		Drafts: []CombatantDraft{
			{Name: "Kira", Type: domain.CombatantTypePC, Initiative: 18, HP: 24, MaxHP: 24, AC: 16},
			{Name: "Ogre", Type: domain.CombatantTypeMonster, Initiative: 14, HP: 30, MaxHP: 30, AC: 11},
			{Name: "Bram", Type: domain.CombatantTypePC, Initiative: 14, HP: 20, MaxHP: 20, AC: 14},
		},
	})
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}
	// Stable sort keeps Ogre before Bram on the initiative tie.
	if record.Combatants[1].Name != "Ogre" || record.Combatants[2].Name != "Bram" {
		t.Fatalf("initiative order = %v", record.Combatants)
	}

	for i := 0; i < 3; i++ {
		if _, err := coordinator.NextTurn(context.Background(), "dm-1", campaignID, record.ID); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	zero := 0
	ogreID := record.Combatants[1].ID
	downed, err := coordinator.UpdateCombatant(context.Background(), "dm-1", campaignID, record.ID, ogreID, domain.CombatantPatch{HP: &zero})
	if err != nil {
		t.Fatalf("down ogre: %v", err)
	}
	if domain.BandForHP(downed.HP, downed.MaxHP) != domain.HPBandCritical {
		t.Fatalf("band = %v, want critical at 0 HP", domain.BandForHP(downed.HP, downed.MaxHP))
	}

	if err := coordinator.EndEncounter(context.Background(), "dm-1", campaignID, record.ID); err != nil {
		t.Fatalf("end encounter: %v", err)
	}

	got, err := coordinator.GetEncounter(context.Background(), "dm-1", campaignID, record.ID)
	if err != nil {
		t.Fatalf("get encounter: %v", err)
	}
	if got.Round != 2 {
		t.Fatalf("round = %d, want 2 after three turns of three combatants", got.Round)
	}
	types := make([]domain.LogEntryType, 0, len(got.Log))
	for _, entry := range got.Log {
		types = append(types, entry.Type)
	}
	want := []domain.LogEntryType{
		domain.LogEntryEncounterStart,
		domain.LogEntryTurnChange,
		domain.LogEntryTurnChange,
		domain.LogEntryTurnChange,
		domain.LogEntryDamage,
		domain.LogEntryEncounterEnd,
	}
	if len(types) != len(want) {
		t.Fatalf("log types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q", i, types[i], want[i])
		}
	}

	// The change feed observed at least the start and end commits.
	var changes int
	timeout := time.After(time.Second)
	for changes < 2 {
		select {
		case <-sub.C():
			changes++
		case <-timeout:
			t.Fatalf("observed %d encounter changes, want at least 2", changes)
		}
	}
}
