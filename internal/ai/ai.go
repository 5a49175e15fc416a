// Package ai wraps the external content-generation collaborator. Generators
// are fallible and may return malformed payloads; everything that crosses the
// boundary is validated here before the rest of the system sees it.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/ratelimit"
)

// ResponseFormat selects the shape of a Generate result.
type ResponseFormat string

const (
	FormatText  ResponseFormat = "text"
	FormatJSON  ResponseFormat = "json"
	FormatImage ResponseFormat = "image"
)

// Output is one generation result. Exactly the field matching the requested
// format is set. A nil Image with no error means the generator declined to
// produce one, which is a valid outcome.
type Output struct {
	Text  string
	JSON  json.RawMessage
	Image []byte
}

// EncounterPrompt describes the party an encounter is generated for.
type EncounterPrompt struct {
	PartyLevels  []int
	PartyClasses []string
	Difficulty   string
	Environment  string
	Scenario     string
}

// Creature is one monster group in a generated encounter draft.
type Creature struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	HP          int    `json:"hp"`
	AC          int    `json:"ac"`
	DexModifier int    `json:"dexModifier"`
	XP          int    `json:"xp"`
}

// EncounterDraft is a validated generated encounter.
type EncounterDraft struct {
	Name            string     `json:"name"`
	Creatures       []Creature `json:"creatures"`
	TotalXP         int        `json:"totalXP"`
	AdjustedXP      int        `json:"adjustedXP"`
	NarrativeHook   string     `json:"narrativeHook,omitempty"`
	TerrainFeatures []string   `json:"terrainFeatures,omitempty"`
}

// Generator is the external generation collaborator. GenerateEncounter
// returns the raw payload; callers validate it with DecodeEncounterDraft.
type Generator interface {
	Generate(ctx context.Context, prompt string, format ResponseFormat) (Output, error)
	GenerateEncounter(ctx context.Context, prompt EncounterPrompt) (json.RawMessage, error)
}

// DecodeEncounterDraft parses and validates a generated encounter payload.
// Missing names or creature stats fail with an upstream-malformed error, never
// a silently defaulted draft.
func DecodeEncounterDraft(raw json.RawMessage) (EncounterDraft, error) {
	var draft EncounterDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return EncounterDraft{}, apperrors.Wrap(apperrors.CodeUpstreamMalformed, "encounter draft is not valid JSON", err)
	}
	if strings.TrimSpace(draft.Name) == "" {
		return EncounterDraft{}, apperrors.New(apperrors.CodeUpstreamMalformed, "encounter draft is missing a name")
	}
	if len(draft.Creatures) == 0 {
		return EncounterDraft{}, apperrors.New(apperrors.CodeUpstreamMalformed, "encounter draft has no creatures")
	}
	for i, creature := range draft.Creatures {
		if strings.TrimSpace(creature.Name) == "" {
			return EncounterDraft{}, apperrors.WithMetadata(apperrors.CodeUpstreamMalformed,
				"encounter draft creature is missing a name", map[string]string{"index": strconv.Itoa(i)})
		}
		if creature.Count < 1 || creature.HP < 1 || creature.AC < 1 {
			return EncounterDraft{}, apperrors.WithMetadata(apperrors.CodeUpstreamMalformed,
				"encounter draft creature is missing stats", map[string]string{"creature": creature.Name})
		}
	}
	return draft, nil
}

// Service gates generator calls behind a per-caller rate limit and validates
// encounter payloads before handing them out.
type Service struct {
	generator Generator
	limiter   *ratelimit.Limiter
}

// NewService creates an AI service. When limit is zero or less, calls are not
// rate limited.
func NewService(generator Generator, limit int, window time.Duration, clock func() time.Time) *Service {
	return &Service{
		generator: generator,
		limiter:   ratelimit.New(limit, window, clock),
	}
}

// Generate produces free-form content for uid.
func (s *Service) Generate(ctx context.Context, uid, prompt string, format ResponseFormat) (Output, error) {
	if !s.limiter.Allow("ai/" + uid) {
		return Output{}, apperrors.New(apperrors.CodeUpstreamRateLimited, "generation rate limit reached, try again shortly")
	}
	output, err := s.generator.Generate(ctx, prompt, format)
	if err != nil {
		return Output{}, fmt.Errorf("generate: %w", err)
	}
	return output, nil
}

// GenerateEncounter produces a validated encounter draft for uid.
func (s *Service) GenerateEncounter(ctx context.Context, uid string, prompt EncounterPrompt) (EncounterDraft, error) {
	if !s.limiter.Allow("ai/" + uid) {
		return EncounterDraft{}, apperrors.New(apperrors.CodeUpstreamRateLimited, "generation rate limit reached, try again shortly")
	}
	raw, err := s.generator.GenerateEncounter(ctx, prompt)
	if err != nil {
		return EncounterDraft{}, fmt.Errorf("generate encounter: %w", err)
	}
	return DecodeEncounterDraft(raw)
}
