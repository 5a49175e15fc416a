// Package service coordinates combat encounters: the turn state machine,
// combatant mutations, and the append-only combat log.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/dice"
	"github.com/louisbranch/wyrmtable/internal/encounter/domain"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// Coordinator is the combat encounter service.
type Coordinator struct {
	store       storage.Store
	hub         *notify.Hub
	clock       func() time.Time
	idGenerator func() (string, error)
	logger      zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock overrides the coordinator clock.
func WithClock(clock func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(generator func() (string, error)) CoordinatorOption {
	return func(c *Coordinator) { c.idGenerator = generator }
}

// WithRand overrides the initiative RNG.
func WithRand(rng *rand.Rand) CoordinatorOption {
	return func(c *Coordinator) { c.rng = rng }
}

// WithLogger overrides the coordinator logger.
func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates an encounter coordinator with default dependencies.
func NewCoordinator(store storage.Store, hub *notify.Hub, opts ...CoordinatorOption) *Coordinator {
	coordinator := &Coordinator{
		store:       store,
		hub:         hub,
		clock:       time.Now,
		idGenerator: id.NewID,
		logger:      zerolog.Nop(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator
}

// CombatantDraft describes one combatant before an encounter starts. When
// RollInitiative is set the initiative is rolled as 1d20 plus DexModifier;
// otherwise the provided Initiative is kept.
type CombatantDraft struct {
	Name           string
	Type           domain.CombatantType
	Initiative     int
	RollInitiative bool
	DexModifier    int
	HP             int
	MaxHP          int
	AC             int
	Conditions     []string
	CharacterID    string
	StatBlock      *domain.StatBlock
}

// CombatantsFromDrafts materializes drafts into combatants with generated
// ids and resolved initiative, sorted descending. Equal initiative keeps
// draft order.
func (c *Coordinator) CombatantsFromDrafts(drafts []CombatantDraft) ([]domain.Combatant, error) {
	combatants := make([]domain.Combatant, 0, len(drafts))
	for _, draft := range drafts {
		combatantID, err := c.idGenerator()
		if err != nil {
			return nil, fmt.Errorf("generate combatant id: %w", err)
		}
		initiative := draft.Initiative
		if draft.RollInitiative {
			c.rngMu.Lock()
			initiative = dice.RollInitiative(c.rng, draft.DexModifier)
			c.rngMu.Unlock()
		}
		combatants = append(combatants, domain.Combatant{
			ID:          combatantID,
			Name:        strings.TrimSpace(draft.Name),
			Type:        draft.Type,
			Initiative:  initiative,
			HP:          draft.HP,
			MaxHP:       draft.MaxHP,
			AC:          draft.AC,
			Conditions:  draft.Conditions,
			CharacterID: draft.CharacterID,
			StatBlock:   draft.StatBlock,
		})
	}
	domain.SortCombatants(combatants)
	return combatants, nil
}

// StartEncounterInput describes an encounter start request.
type StartEncounterInput struct {
	CampaignID string
	ActorUID   string
	Name       string
	Drafts     []CombatantDraft
}

// StartEncounter starts combat. DM only. A campaign with an active encounter
// rejects a second start.
func (c *Coordinator) StartEncounter(ctx context.Context, input StartEncounterInput) (domain.Encounter, error) {
	campaign, err := c.requireDM(ctx, input.ActorUID, input.CampaignID)
	if err != nil {
		return domain.Encounter{}, err
	}
	if campaign.ActiveEncounterID != "" {
		return domain.Encounter{}, apperrors.New(apperrors.CodeEncounterAlreadyActive, "an encounter is already active")
	}

	combatants, err := c.CombatantsFromDrafts(input.Drafts)
	if err != nil {
		return domain.Encounter{}, err
	}
	record, err := domain.CreateEncounter(domain.CreateEncounterInput{
		CampaignID: input.CampaignID,
		Name:       input.Name,
		Combatants: combatants,
	}, c.clock, c.idGenerator)
	if err != nil {
		return domain.Encounter{}, err
	}

	first, _ := record.CurrentCombatant()
	seed := domain.StartEntry(record.Name, first.Name, c.clock().UTC())
	if err := c.store.CreateEncounter(ctx, record, seed); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return domain.Encounter{}, apperrors.New(apperrors.CodeEncounterAlreadyActive, "an encounter is already active")
		}
		return domain.Encounter{}, fmt.Errorf("persist encounter: %w", err)
	}
	record.Log = append(record.Log, seed)
	return record, nil
}

// GetEncounter loads one encounter, including its log, for any member.
func (c *Coordinator) GetEncounter(ctx context.Context, actorUID, campaignID, encounterID string) (domain.Encounter, error) {
	if _, err := c.requireMember(ctx, actorUID, campaignID); err != nil {
		return domain.Encounter{}, err
	}
	record, err := c.store.GetEncounter(ctx, campaignID, encounterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Encounter{}, apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return domain.Encounter{}, fmt.Errorf("load encounter: %w", err)
	}
	return record, nil
}

// GetActiveEncounter loads the campaign's active encounter, if any. The
// boolean reports whether one exists.
func (c *Coordinator) GetActiveEncounter(ctx context.Context, actorUID, campaignID string) (domain.Encounter, bool, error) {
	campaign, err := c.requireMember(ctx, actorUID, campaignID)
	if err != nil {
		return domain.Encounter{}, false, err
	}
	if campaign.ActiveEncounterID == "" {
		return domain.Encounter{}, false, nil
	}
	record, err := c.store.GetEncounter(ctx, campaignID, campaign.ActiveEncounterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Encounter{}, false, nil
		}
		return domain.Encounter{}, false, fmt.Errorf("load encounter: %w", err)
	}
	return record, true, nil
}

// NextTurn advances the turn pointer. DM only. The advance is a
// compare-and-set against the turn the DM observed: when another writer
// advanced first the call fails with a turn conflict and exactly one
// turn-change log entry exists for the winning advance.
func (c *Coordinator) NextTurn(ctx context.Context, actorUID, campaignID, encounterID string) (domain.Encounter, error) {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return domain.Encounter{}, err
	}
	record, err := c.store.GetEncounter(ctx, campaignID, encounterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Encounter{}, apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return domain.Encounter{}, fmt.Errorf("load encounter: %w", err)
	}
	if !record.Active {
		return domain.Encounter{}, apperrors.New(apperrors.CodeEncounterNotActive, "encounter has ended")
	}

	nextIndex, nextRound := domain.AdvanceTurn(record.CurrentTurnIndex, record.Round, len(record.Combatants))
	wrapped := nextIndex == 0
	nextActor := record.Combatants[nextIndex]
	entry := domain.TurnChangeEntry(nextActor.Name, nextRound, wrapped, c.clock().UTC())

	if err := c.store.AdvanceTurn(ctx, campaignID, encounterID, record.CurrentTurnIndex, nextIndex, nextRound, entry); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.Encounter{}, apperrors.New(apperrors.CodeEncounterTurnConflict, "another turn advance won; re-read the encounter")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Encounter{}, apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return domain.Encounter{}, fmt.Errorf("advance turn: %w", err)
	}

	record.CurrentTurnIndex = nextIndex
	record.Round = nextRound
	record.Log = append(record.Log, entry)
	return record, nil
}

// UpdateCombatant applies a partial combatant update and logs the resulting
// HP or condition change. DM only.
func (c *Coordinator) UpdateCombatant(ctx context.Context, actorUID, campaignID, encounterID, combatantID string, patch domain.CombatantPatch) (domain.Combatant, error) {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return domain.Combatant{}, err
	}
	record, err := c.store.GetEncounter(ctx, campaignID, encounterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Combatant{}, apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return domain.Combatant{}, fmt.Errorf("load encounter: %w", err)
	}
	index := record.CombatantByID(combatantID)
	if index < 0 {
		return domain.Combatant{}, apperrors.New(apperrors.CodeEncounterUnknownCombatant, "combatant is not part of this encounter")
	}
	before := record.Combatants[index]

	updated, err := c.store.UpdateCombatant(ctx, campaignID, encounterID, combatantID, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Combatant{}, apperrors.New(apperrors.CodeEncounterUnknownCombatant, "combatant is not part of this encounter")
		}
		return domain.Combatant{}, fmt.Errorf("update combatant: %w", err)
	}

	if entry, ok := changeEntry(before, updated, c.clock().UTC()); ok {
		if err := c.store.AppendLogEntry(ctx, campaignID, encounterID, entry); err != nil {
			c.logger.Warn().Err(err).
				Str("encounter_id", encounterID).
				Str("combatant_id", combatantID).
				Msg("append combat log entry failed")
		}
	}
	return updated, nil
}

// changeEntry renders an HP or condition change into a log entry. HP changes
// take precedence over condition changes when both happen in one patch.
func changeEntry(before, after domain.Combatant, now time.Time) (domain.LogEntry, bool) {
	switch {
	case after.HP < before.HP:
		return domain.LogEntry{
			Timestamp:   now,
			Type:        domain.LogEntryDamage,
			ActorName:   after.Name,
			Description: fmt.Sprintf("%s takes %d damage (%d/%d HP).", after.Name, before.HP-after.HP, after.HP, after.MaxHP),
		}, true
	case after.HP > before.HP:
		return domain.LogEntry{
			Timestamp:   now,
			Type:        domain.LogEntryHeal,
			ActorName:   after.Name,
			Description: fmt.Sprintf("%s recovers %d HP (%d/%d HP).", after.Name, after.HP-before.HP, after.HP, after.MaxHP),
		}, true
	case !equalConditions(before.Conditions, after.Conditions):
		description := fmt.Sprintf("%s's conditions are now: %s.", after.Name, strings.Join(after.Conditions, ", "))
		if len(after.Conditions) == 0 {
			description = fmt.Sprintf("%s is free of conditions.", after.Name)
		}
		return domain.LogEntry{
			Timestamp:   now,
			Type:        domain.LogEntryCondition,
			ActorName:   after.Name,
			Description: description,
		}, true
	default:
		return domain.LogEntry{}, false
	}
}

func equalConditions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// AppendCombatLog appends a free-form log entry. DM only.
func (c *Coordinator) AppendCombatLog(ctx context.Context, actorUID, campaignID, encounterID string, entryType domain.LogEntryType, actorName, description string) error {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return err
	}
	entry := domain.LogEntry{
		Timestamp:   c.clock().UTC(),
		Type:        entryType,
		ActorName:   actorName,
		Description: description,
	}
	if err := c.store.AppendLogEntry(ctx, campaignID, encounterID, entry); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// EndEncounter ends combat. DM only. Ending an already-ended encounter
// reports the encounter as inactive.
func (c *Coordinator) EndEncounter(ctx context.Context, actorUID, campaignID, encounterID string) error {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return err
	}
	record, err := c.store.GetEncounter(ctx, campaignID, encounterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return fmt.Errorf("load encounter: %w", err)
	}
	endedAt := c.clock().UTC()
	entry := domain.EndEntry(record.Name, record.Round, endedAt)
	if err := c.store.EndEncounter(ctx, campaignID, encounterID, endedAt, entry); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return apperrors.New(apperrors.CodeEncounterNotActive, "encounter has ended")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "encounter not found")
		}
		return fmt.Errorf("end encounter: %w", err)
	}
	return nil
}

// SaveTemplate saves a reusable combatant group. DM only.
func (c *Coordinator) SaveTemplate(ctx context.Context, actorUID, campaignID, name string, drafts []CombatantDraft) (domain.Template, error) {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return domain.Template{}, err
	}
	combatants, err := c.CombatantsFromDrafts(drafts)
	if err != nil {
		return domain.Template{}, err
	}
	record, err := domain.CreateTemplate(campaignID, name, combatants, c.clock, c.idGenerator)
	if err != nil {
		return domain.Template{}, err
	}
	if err := c.store.PutTemplate(ctx, record); err != nil {
		return domain.Template{}, fmt.Errorf("persist template: %w", err)
	}
	return record, nil
}

// ListTemplates returns a campaign's saved templates. DM only.
func (c *Coordinator) ListTemplates(ctx context.Context, actorUID, campaignID string) ([]domain.Template, error) {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return nil, err
	}
	templates, err := c.store.ListTemplates(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes one saved template. DM only.
func (c *Coordinator) DeleteTemplate(ctx context.Context, actorUID, campaignID, templateID string) error {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return err
	}
	if err := c.store.DeleteTemplate(ctx, campaignID, templateID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "template not found")
		}
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// StartFromTemplate starts an encounter from a saved template. Combatants
// get fresh ids and full HP so one template can seed many encounters.
func (c *Coordinator) StartFromTemplate(ctx context.Context, actorUID, campaignID, templateID, name string) (domain.Encounter, error) {
	if _, err := c.requireDM(ctx, actorUID, campaignID); err != nil {
		return domain.Encounter{}, err
	}
	templates, err := c.store.ListTemplates(ctx, campaignID)
	if err != nil {
		return domain.Encounter{}, fmt.Errorf("list templates: %w", err)
	}
	for _, template := range templates {
		if template.ID != templateID {
			continue
		}
		drafts := make([]CombatantDraft, 0, len(template.Combatants))
		for _, combatant := range template.Combatants {
			drafts = append(drafts, CombatantDraft{
				Name:        combatant.Name,
				Type:        combatant.Type,
				Initiative:  combatant.Initiative,
				HP:          combatant.MaxHP,
				MaxHP:       combatant.MaxHP,
				AC:          combatant.AC,
				CharacterID: combatant.CharacterID,
				StatBlock:   combatant.StatBlock,
			})
		}
		return c.StartEncounter(ctx, StartEncounterInput{
			CampaignID: campaignID,
			ActorUID:   actorUID,
			Name:       name,
			Drafts:     drafts,
		})
	}
	return domain.Encounter{}, apperrors.New(apperrors.CodeNotFound, "template not found")
}

// SubscribeEncounters observes one campaign's encounter changes.
func (c *Coordinator) SubscribeEncounters(campaignID string) *notify.Subscription {
	return c.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionEncounters},
	})
}

func (c *Coordinator) requireDM(ctx context.Context, actorUID, campaignID string) (campaigndomain.Campaign, error) {
	campaign, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return campaigndomain.Campaign{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return campaigndomain.Campaign{}, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.DmUID != actorUID {
		return campaigndomain.Campaign{}, apperrors.New(apperrors.CodePermissionDenied, "only the DM may perform this operation")
	}
	return campaign, nil
}

func (c *Coordinator) requireMember(ctx context.Context, actorUID, campaignID string) (campaigndomain.Campaign, error) {
	campaign, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return campaigndomain.Campaign{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return campaigndomain.Campaign{}, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.HasMember(actorUID) {
		return campaigndomain.Campaign{}, apperrors.New(apperrors.CodePermissionDenied, "caller is not a campaign member")
	}
	return campaign, nil
}
