// Package character bridges character sheets into campaign membership
// snapshots. Sheet arithmetic itself lives behind the Recalculator interface;
// this package only derives the denormalized summary stored on a member.
package character

import (
	"context"
	"fmt"
	"sort"
	"strings"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
)

// journalPreviewLimit bounds the journal excerpt carried on the summary.
const journalPreviewLimit = 120

// topEntryLimit bounds the skill and feature lists on the summary.
const topEntryLimit = 3

// Skill is one ranked skill on a sheet.
type Skill struct {
	Name     string
	Modifier int
}

// Attack is one attack option on a sheet.
type Attack struct {
	Name   string
	Bonus  int
	Damage string
}

// Sheet is the recalculated character sheet view this package consumes.
type Sheet struct {
	ID                 string
	Name               string
	Race               string
	Class              string
	Level              int
	PortraitURL        string
	HP                 int
	MaxHP              int
	AC                 int
	DexModifier        int
	PerceptionModifier int
	Skills             []Skill
	Features           []string
	Attacks            []Attack
	Journal            string
}

// Recalculator recomputes derived sheet fields. Implementations must be pure
// and idempotent: recalculating twice yields the same sheet as once.
type Recalculator interface {
	Recalculate(sheet Sheet) (Sheet, error)
}

// SheetLoader fetches a character sheet by id.
type SheetLoader interface {
	LoadSheet(ctx context.Context, characterID string) (Sheet, error)
}

// SummaryFromSheet derives the membership snapshot from a recalculated sheet.
// Passive perception is 10 + the perception modifier.
func SummaryFromSheet(sheet Sheet) campaigndomain.CharacterSummary {
	return campaigndomain.CharacterSummary{
		Name:              sheet.Name,
		Race:              sheet.Race,
		Class:             sheet.Class,
		Level:             sheet.Level,
		PortraitURL:       sheet.PortraitURL,
		HP:                sheet.HP,
		MaxHP:             sheet.MaxHP,
		AC:                sheet.AC,
		Initiative:        sheet.DexModifier,
		PassivePerception: 10 + sheet.PerceptionModifier,
		TopSkills:         topSkills(sheet.Skills),
		TopFeatures:       topFeatures(sheet.Features),
		PrimaryAttack:     primaryAttack(sheet.Attacks),
		JournalPreview:    journalPreview(sheet.Journal),
	}
}

func topSkills(skills []Skill) []string {
	ranked := append([]Skill(nil), skills...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Modifier > ranked[j].Modifier })
	if len(ranked) > topEntryLimit {
		ranked = ranked[:topEntryLimit]
	}
	names := make([]string, 0, len(ranked))
	for _, skill := range ranked {
		names = append(names, skill.Name)
	}
	return names
}

func topFeatures(features []string) []string {
	if len(features) > topEntryLimit {
		features = features[:topEntryLimit]
	}
	return append([]string(nil), features...)
}

func primaryAttack(attacks []Attack) string {
	if len(attacks) == 0 {
		return ""
	}
	first := attacks[0]
	if first.Damage == "" {
		return first.Name
	}
	return fmt.Sprintf("%s (%+d, %s)", first.Name, first.Bonus, first.Damage)
}

func journalPreview(journal string) string {
	journal = strings.TrimSpace(journal)
	runes := []rune(journal)
	if len(runes) <= journalPreviewLimit {
		return journal
	}
	return strings.TrimSpace(string(runes[:journalPreviewLimit])) + "…"
}

// Source loads sheets, recalculates them, and exposes membership summaries.
// It satisfies the campaign registry's character source dependency.
type Source struct {
	loader       SheetLoader
	recalculator Recalculator
}

// NewSource creates a summary source. recalculator may be nil when sheets are
// stored already recalculated.
func NewSource(loader SheetLoader, recalculator Recalculator) *Source {
	return &Source{loader: loader, recalculator: recalculator}
}

// Summary returns the denormalized snapshot for a character.
func (s *Source) Summary(ctx context.Context, characterID string) (campaigndomain.CharacterSummary, error) {
	sheet, err := s.loader.LoadSheet(ctx, characterID)
	if err != nil {
		return campaigndomain.CharacterSummary{}, fmt.Errorf("load sheet %s: %w", characterID, err)
	}
	if s.recalculator != nil {
		sheet, err = s.recalculator.Recalculate(sheet)
		if err != nil {
			return campaigndomain.CharacterSummary{}, fmt.Errorf("recalculate sheet %s: %w", characterID, err)
		}
	}
	return SummaryFromSheet(sheet), nil
}
