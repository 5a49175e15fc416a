package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

var (
	// ErrEmptyName indicates a missing encounter name.
	ErrEmptyName = apperrors.New(apperrors.CodeEncounterNameEmpty, "encounter name is required")
	// ErrNoCombatants indicates an encounter was started without combatants.
	ErrNoCombatants = apperrors.New(apperrors.CodeEncounterNoCombatants, "at least one combatant is required")
)

// LogEntryType describes the kind of a combat log entry.
type LogEntryType string

const (
	LogEntryTurnChange     LogEntryType = "turn_change"
	LogEntryDamage         LogEntryType = "damage"
	LogEntryHeal           LogEntryType = "heal"
	LogEntryCondition      LogEntryType = "condition"
	LogEntryEncounterStart LogEntryType = "encounter_start"
	LogEntryEncounterEnd   LogEntryType = "encounter_end"
)

// LogEntry is one append-only combat log record. The timestamp is advisory;
// insertion order is the authoritative ordering.
type LogEntry struct {
	Timestamp time.Time
	Type      LogEntryType
	ActorName string
	// Description is pre-rendered at write time and never reconstructed
	// from structured fields later.
	Description string
}

// Encounter is a combat encounter. At most one active encounter exists per
// campaign, enforced by the campaign's ActiveEncounterID pointer.
type Encounter struct {
	ID         string
	CampaignID string
	Name       string
	Active     bool
	// Round starts at 1 and increments exactly when the turn pointer wraps.
	Round int
	// CurrentTurnIndex is a 0-based index into Combatants.
	CurrentTurnIndex int
	Combatants       []Combatant
	// Log is populated on reads; appends go through the store so concurrent
	// writers cannot clobber each other.
	Log       []LogEntry
	CreatedAt time.Time
	EndedAt   *time.Time
}

// CreateEncounterInput describes the data needed to start an encounter.
type CreateEncounterInput struct {
	CampaignID string
	Name       string
	Combatants []Combatant
}

// CreateEncounter creates an active encounter at round 1, turn 0. Combatants
// must arrive pre-sorted descending by initiative; ties keep the caller's
// order.
func CreateEncounter(input CreateEncounterInput, now func() time.Time, idGenerator func() (string, error)) (Encounter, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Encounter{}, ErrEmptyName
	}
	if len(input.Combatants) == 0 {
		return Encounter{}, ErrNoCombatants
	}

	encounterID, err := idGenerator()
	if err != nil {
		return Encounter{}, fmt.Errorf("generate encounter id: %w", err)
	}

	combatants := make([]Combatant, len(input.Combatants))
	copy(combatants, input.Combatants)
	for i := range combatants {
		combatants[i].HP = ClampHP(combatants[i].HP, combatants[i].MaxHP)
		combatants[i].Conditions = DedupeConditions(combatants[i].Conditions)
	}

	return Encounter{
		ID:               encounterID,
		CampaignID:       input.CampaignID,
		Name:             input.Name,
		Active:           true,
		Round:            1,
		CurrentTurnIndex: 0,
		Combatants:       combatants,
		CreatedAt:        now().UTC(),
	}, nil
}

// AdvanceTurn computes the next turn pointer and round for an encounter with
// count combatants. The round increments exactly when the pointer wraps to 0.
func AdvanceTurn(currentIndex, round, count int) (nextIndex, nextRound int) {
	if count <= 0 {
		return currentIndex, round
	}
	nextIndex = (currentIndex + 1) % count
	nextRound = round
	if nextIndex == 0 {
		nextRound = round + 1
	}
	return nextIndex, nextRound
}

// StartEntry builds the seeded log entry for a new encounter.
func StartEntry(encounterName, firstActor string, now time.Time) LogEntry {
	return LogEntry{
		Timestamp:   now.UTC(),
		Type:        LogEntryEncounterStart,
		ActorName:   firstActor,
		Description: fmt.Sprintf("%s begins. %s acts first.", encounterName, firstActor),
	}
}

// TurnChangeEntry builds the log entry for an advanced turn. When the turn
// pointer wrapped, the entry also announces the new round.
func TurnChangeEntry(actorName string, round int, wrapped bool, now time.Time) LogEntry {
	description := fmt.Sprintf("It's %s's turn.", actorName)
	if wrapped {
		description = fmt.Sprintf("Round %d begins. It's %s's turn.", round, actorName)
	}
	return LogEntry{
		Timestamp:   now.UTC(),
		Type:        LogEntryTurnChange,
		ActorName:   actorName,
		Description: description,
	}
}

// EndEntry builds the log entry for an ended encounter.
func EndEntry(encounterName string, round int, now time.Time) LogEntry {
	return LogEntry{
		Timestamp:   now.UTC(),
		Type:        LogEntryEncounterEnd,
		Description: fmt.Sprintf("%s ends after %d round(s).", encounterName, round),
	}
}

// CombatantByID returns the index of the combatant with the given id, or -1.
func (e Encounter) CombatantByID(combatantID string) int {
	for i, combatant := range e.Combatants {
		if combatant.ID == combatantID {
			return i
		}
	}
	return -1
}

// CurrentCombatant returns the combatant whose turn it is.
func (e Encounter) CurrentCombatant() (Combatant, bool) {
	if len(e.Combatants) == 0 || e.CurrentTurnIndex < 0 || e.CurrentTurnIndex >= len(e.Combatants) {
		return Combatant{}, false
	}
	return e.Combatants[e.CurrentTurnIndex], true
}
