// Package service coordinates campaign lifecycle, membership, and invites on
// top of the storage contracts. All permission checks live here; stores only
// enforce structural invariants.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// CharacterSource resolves an assigned character into its denormalized
// summary. The summary is refreshed only when the assignment changes.
type CharacterSource interface {
	Summary(ctx context.Context, characterID string) (domain.CharacterSummary, error)
}

// Registry is the campaign and membership service.
type Registry struct {
	store         storage.Store
	hub           *notify.Hub
	characters    CharacterSource
	clock         func() time.Time
	idGenerator   func() (string, error)
	codeGenerator func() (string, error)
	logger        zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCharacterSource wires character summary resolution into the registry.
func WithCharacterSource(source CharacterSource) RegistryOption {
	return func(r *Registry) { r.characters = source }
}

// WithClock overrides the registry clock.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(generator func() (string, error)) RegistryOption {
	return func(r *Registry) { r.idGenerator = generator }
}

// WithCodeGenerator overrides join code generation.
func WithCodeGenerator(generator func() (string, error)) RegistryOption {
	return func(r *Registry) { r.codeGenerator = generator }
}

// WithLogger overrides the registry logger.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a campaign registry with default dependencies.
func NewRegistry(store storage.Store, hub *notify.Hub, opts ...RegistryOption) *Registry {
	registry := &Registry{
		store:         store,
		hub:           hub,
		clock:         time.Now,
		idGenerator:   id.NewID,
		codeGenerator: domain.NewJoinCode,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// CreateCampaignInput describes a campaign creation request.
type CreateCampaignInput struct {
	Name          string
	DmUID         string
	DmDisplayName string
	Description   string
}

// CreateCampaign creates a campaign owned by the caller and writes the DM
// membership record in the same batch.
func (r *Registry) CreateCampaign(ctx context.Context, input CreateCampaignInput) (domain.Campaign, error) {
	campaign, err := domain.CreateCampaign(domain.CreateCampaignInput{
		Name:        input.Name,
		DmUID:       input.DmUID,
		Description: input.Description,
	}, r.clock, r.idGenerator, r.codeGenerator)
	if err != nil {
		return domain.Campaign{}, err
	}

	displayName := input.DmDisplayName
	if displayName == "" {
		displayName = "DM"
	}
	dm, err := domain.CreateMember(domain.CreateMemberInput{
		CampaignID:  campaign.ID,
		UID:         campaign.DmUID,
		DisplayName: displayName,
		Role:        domain.RoleDM,
	}, r.clock)
	if err != nil {
		return domain.Campaign{}, err
	}

	if err := r.store.CreateCampaignWithDM(ctx, campaign, dm); err != nil {
		return domain.Campaign{}, fmt.Errorf("persist campaign: %w", err)
	}
	return campaign, nil
}

// GetCampaign loads one campaign the caller belongs to.
func (r *Registry) GetCampaign(ctx context.Context, actorUID, campaignID string) (domain.Campaign, error) {
	campaign, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Campaign{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return domain.Campaign{}, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.HasMember(actorUID) {
		return domain.Campaign{}, apperrors.New(apperrors.CodePermissionDenied, "caller is not a campaign member")
	}
	return campaign, nil
}

// ListCampaignsForUser returns active campaigns the uid belongs to.
func (r *Registry) ListCampaignsForUser(ctx context.Context, uid string) ([]domain.Campaign, error) {
	campaigns, err := r.store.ListCampaignsForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// UpdateCampaignInput is a partial campaign metadata update. Nil fields are
// left unchanged. Writes are last-write-wins at field granularity.
type UpdateCampaignInput struct {
	Name        *string
	Description *string
	Settings    *domain.Settings
}

// UpdateCampaign applies a DM-only metadata update.
func (r *Registry) UpdateCampaign(ctx context.Context, actorUID, campaignID string, input UpdateCampaignInput) (domain.Campaign, error) {
	campaign, err := r.requireDM(ctx, actorUID, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if input.Name != nil {
		normalized, err := domain.NormalizeCreateCampaignInput(domain.CreateCampaignInput{
			Name:  *input.Name,
			DmUID: campaign.DmUID,
		})
		if err != nil {
			return domain.Campaign{}, err
		}
		campaign.Name = normalized.Name
	}
	if input.Description != nil {
		campaign.Description = *input.Description
	}
	if input.Settings != nil {
		campaign.Settings = *input.Settings
	}
	campaign.UpdatedAt = r.clock().UTC()
	if err := r.store.PutCampaign(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("persist campaign: %w", err)
	}
	return campaign, nil
}

// AdvanceSession increments the campaign's session counter. DM only.
func (r *Registry) AdvanceSession(ctx context.Context, actorUID, campaignID string) (domain.Campaign, error) {
	campaign, err := r.requireDM(ctx, actorUID, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaign.CurrentSessionNumber++
	campaign.UpdatedAt = r.clock().UTC()
	if err := r.store.PutCampaign(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("persist campaign: %w", err)
	}
	return campaign, nil
}

// ArchiveCampaign soft-deletes a campaign. Archived campaigns stop matching
// join codes and membership listings but keep their data.
func (r *Registry) ArchiveCampaign(ctx context.Context, actorUID, campaignID string) error {
	campaign, err := r.requireDM(ctx, actorUID, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status == domain.StatusArchived {
		return nil
	}
	campaign.Status = domain.StatusArchived
	campaign.UpdatedAt = r.clock().UTC()
	if err := r.store.PutCampaign(ctx, campaign); err != nil {
		return fmt.Errorf("persist campaign: %w", err)
	}
	return nil
}

// DeleteCampaign permanently removes a campaign and every subcollection.
// Subcollections are deleted before the campaign document so a crash
// mid-cascade leaves an intact campaign with partial children, never
// orphaned children without a parent a retry could find.
func (r *Registry) DeleteCampaign(ctx context.Context, actorUID, campaignID string) error {
	if _, err := r.requireDM(ctx, actorUID, campaignID); err != nil {
		return err
	}
	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"encounters", r.store.DeleteEncountersForCampaign},
		{"notes", r.store.DeleteNotesForCampaign},
		{"templates", r.store.DeleteTemplatesForCampaign},
		{"whispers", r.store.DeleteWhispersForCampaign},
		{"roll requests", r.store.DeleteRollRequestsForCampaign},
		{"messages", r.store.DeleteMessagesForCampaign},
		{"invites", r.store.DeleteInvitesForCampaign},
		{"members", r.store.DeleteMembers},
	}
	for _, step := range steps {
		if err := step.fn(ctx, campaignID); err != nil {
			return fmt.Errorf("delete campaign %s: %w", step.name, err)
		}
	}
	if err := r.store.DeleteCampaign(ctx, campaignID); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

// RegenerateJoinCode replaces the campaign's join code. DM only. The old
// code stops resolving immediately.
func (r *Registry) RegenerateJoinCode(ctx context.Context, actorUID, campaignID string) (domain.Campaign, error) {
	campaign, err := r.requireDM(ctx, actorUID, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	code, err := r.codeGenerator()
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("generate join code: %w", err)
	}
	campaign.JoinCode = code
	campaign.UpdatedAt = r.clock().UTC()
	if err := r.store.PutCampaign(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("persist campaign: %w", err)
	}
	return campaign, nil
}

// JoinByCodeInput describes a join-by-code request. CharacterID optionally
// assigns a character to the new membership in the same write.
type JoinByCodeInput struct {
	Code        string
	UID         string
	DisplayName string
	CharacterID string
}

// JoinByCode adds the caller to the campaign the code resolves to. Joining a
// campaign the caller already belongs to is idempotent and returns the
// existing membership.
func (r *Registry) JoinByCode(ctx context.Context, input JoinByCodeInput) (domain.Campaign, domain.Member, error) {
	campaign, err := r.store.GetCampaignByJoinCode(ctx, input.Code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Campaign{}, domain.Member{}, apperrors.New(apperrors.CodeNotFound, "no campaign matches this join code")
		}
		return domain.Campaign{}, domain.Member{}, fmt.Errorf("resolve join code: %w", err)
	}

	if existing, err := r.store.GetMember(ctx, campaign.ID, input.UID); err == nil {
		return campaign, existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.Campaign{}, domain.Member{}, fmt.Errorf("load membership: %w", err)
	}

	member, err := domain.CreateMember(domain.CreateMemberInput{
		CampaignID:  campaign.ID,
		UID:         input.UID,
		DisplayName: input.DisplayName,
		Role:        domain.RolePlayer,
	}, r.clock)
	if err != nil {
		return domain.Campaign{}, domain.Member{}, err
	}
	if err := r.assignCharacter(ctx, &member, input.CharacterID); err != nil {
		return domain.Campaign{}, domain.Member{}, err
	}
	if err := r.store.PutMember(ctx, member); err != nil {
		return domain.Campaign{}, domain.Member{}, fmt.Errorf("persist membership: %w", err)
	}

	// Best-effort index update. The membership reconciler converges the
	// index from the member change regardless of this write's outcome.
	if err := r.store.AddMemberUID(ctx, campaign.ID, input.UID); err != nil {
		r.logger.Warn().Err(err).
			Str("campaign_id", campaign.ID).
			Str("uid", input.UID).
			Msg("best-effort membership index update failed")
	} else {
		campaign.MemberUIDs = domain.WithMember(campaign.MemberUIDs, input.UID)
	}
	return campaign, member, nil
}

// LeaveCampaign removes the caller's own membership. The DM cannot leave;
// ownership transfer is not supported, so the DM archives or deletes
// instead.
func (r *Registry) LeaveCampaign(ctx context.Context, uid, campaignID string) error {
	campaign, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return fmt.Errorf("load campaign: %w", err)
	}
	if campaign.DmUID == uid {
		return apperrors.New(apperrors.CodeIllegalOperation, "the DM cannot leave their own campaign")
	}
	return r.removeMembership(ctx, campaign, uid)
}

// RemoveMember removes a player from the campaign. DM only. The DM's own
// membership cannot be removed.
func (r *Registry) RemoveMember(ctx context.Context, actorUID, campaignID, uid string) error {
	campaign, err := r.requireDM(ctx, actorUID, campaignID)
	if err != nil {
		return err
	}
	if uid == campaign.DmUID {
		return apperrors.New(apperrors.CodeIllegalOperation, "the DM membership cannot be removed")
	}
	return r.removeMembership(ctx, campaign, uid)
}

func (r *Registry) removeMembership(ctx context.Context, campaign domain.Campaign, uid string) error {
	if err := r.store.DeleteMember(ctx, campaign.ID, uid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "membership not found")
		}
		return fmt.Errorf("delete membership: %w", err)
	}
	// Best-effort; the reconciler converges the index from the change feed.
	if err := r.store.RemoveMemberUID(ctx, campaign.ID, uid); err != nil {
		r.logger.Warn().Err(err).
			Str("campaign_id", campaign.ID).
			Str("uid", uid).
			Msg("best-effort membership index removal failed")
	}
	return nil
}

// ListMembers returns a campaign's membership records. Any member may list.
func (r *Registry) ListMembers(ctx context.Context, actorUID, campaignID string) ([]domain.Member, error) {
	if _, err := r.GetCampaign(ctx, actorUID, campaignID); err != nil {
		return nil, err
	}
	members, err := r.store.ListMembers(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// SetMemberCharacter assigns a character to the caller's membership and
// refreshes the denormalized summary snapshot. The snapshot is not
// live-synced afterwards.
func (r *Registry) SetMemberCharacter(ctx context.Context, uid, campaignID, characterID string) (domain.Member, error) {
	member, err := r.store.GetMember(ctx, campaignID, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Member{}, apperrors.New(apperrors.CodeNotFound, "membership not found")
		}
		return domain.Member{}, fmt.Errorf("load membership: %w", err)
	}
	member.CharacterID = characterID
	member.CharacterSummary = nil
	if characterID != "" && r.characters != nil {
		summary, err := r.characters.Summary(ctx, characterID)
		if err != nil {
			return domain.Member{}, fmt.Errorf("resolve character summary: %w", err)
		}
		member.CharacterSummary = &summary
	}
	if err := r.store.PutMember(ctx, member); err != nil {
		return domain.Member{}, fmt.Errorf("persist membership: %w", err)
	}
	return member, nil
}

// assignCharacter attaches a character and its denormalized summary to a
// new membership before it is persisted. An empty characterID is a no-op.
func (r *Registry) assignCharacter(ctx context.Context, member *domain.Member, characterID string) error {
	if characterID == "" {
		return nil
	}
	member.CharacterID = characterID
	if r.characters == nil {
		return nil
	}
	summary, err := r.characters.Summary(ctx, characterID)
	if err != nil {
		return fmt.Errorf("resolve character summary: %w", err)
	}
	member.CharacterSummary = &summary
	return nil
}

// SubscribeUserCampaigns observes campaign changes relevant to a user's
// campaign list. Subscribers re-query on every change.
func (r *Registry) SubscribeUserCampaigns() *notify.Subscription {
	return r.hub.Subscribe(notify.Filter{Collections: []storage.Collection{storage.CollectionCampaigns}})
}

// SubscribeCampaign observes one campaign's document changes.
func (r *Registry) SubscribeCampaign(campaignID string) *notify.Subscription {
	return r.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionCampaigns},
	})
}

// SubscribeMembers observes one campaign's membership changes.
func (r *Registry) SubscribeMembers(campaignID string) *notify.Subscription {
	return r.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionMembers},
	})
}

func (r *Registry) requireDM(ctx context.Context, actorUID, campaignID string) (domain.Campaign, error) {
	campaign, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Campaign{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return domain.Campaign{}, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.DmUID != actorUID {
		return domain.Campaign{}, apperrors.New(apperrors.CodePermissionDenied, "only the DM may perform this operation")
	}
	return campaign, nil
}
