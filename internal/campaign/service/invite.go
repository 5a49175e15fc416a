package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/campaign/invite"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// CreateInviteInput describes an invite creation request.
type CreateInviteInput struct {
	CampaignID string
	ActorUID   string
	Email      string
}

// CreateInvite creates a pending email invite. The DM may always invite;
// players may invite only when the campaign allows player invites.
func (r *Registry) CreateInvite(ctx context.Context, input CreateInviteInput) (invite.Invite, error) {
	campaign, err := r.store.GetCampaign(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invite.Invite{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return invite.Invite{}, fmt.Errorf("load campaign: %w", err)
	}

	actor, err := r.store.GetMember(ctx, input.CampaignID, input.ActorUID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invite.Invite{}, apperrors.New(apperrors.CodePermissionDenied, "caller is not a campaign member")
		}
		return invite.Invite{}, fmt.Errorf("load membership: %w", err)
	}
	if actor.Role != domain.RoleDM && !campaign.Settings.AllowPlayerInvites {
		return invite.Invite{}, apperrors.New(apperrors.CodePermissionDenied, "player invites are disabled for this campaign")
	}

	record, err := invite.CreateInvite(invite.CreateInviteInput{
		CampaignID:    campaign.ID,
		CampaignName:  campaign.Name,
		Email:         input.Email,
		InvitedByUID:  actor.UID,
		InvitedByName: actor.DisplayName,
	}, r.clock, r.idGenerator)
	if err != nil {
		return invite.Invite{}, err
	}
	if err := r.store.CreateInvite(ctx, record); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return invite.Invite{}, apperrors.WithMetadata(
				apperrors.CodeInviteDuplicate,
				"a pending invite already exists for this email",
				map[string]string{"email": record.Email},
			)
		}
		return invite.Invite{}, fmt.Errorf("persist invite: %w", err)
	}
	return record, nil
}

// AcceptInviteInput describes an invite acceptance. CharacterID optionally
// assigns a character to the new membership in the same write.
type AcceptInviteInput struct {
	InviteID    string
	UID         string
	Email       string
	DisplayName string
	CharacterID string
}

// AcceptInvite accepts a pending invite addressed to the caller's email and
// creates the membership record in the same batch. An expired invite is
// auto-declined and reported as expired.
func (r *Registry) AcceptInvite(ctx context.Context, input AcceptInviteInput) (domain.Member, error) {
	record, err := r.store.GetInvite(ctx, input.InviteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Member{}, apperrors.New(apperrors.CodeNotFound, "invite not found")
		}
		return domain.Member{}, fmt.Errorf("load invite: %w", err)
	}
	if !strings.EqualFold(record.Email, strings.TrimSpace(input.Email)) {
		return domain.Member{}, apperrors.New(apperrors.CodePermissionDenied, "invite is addressed to a different email")
	}
	if record.Status != invite.StatusPending {
		return domain.Member{}, apperrors.New(apperrors.CodeInviteNotPending, "invite is no longer pending")
	}
	if record.Expired(r.clock().UTC()) {
		if err := r.store.UpdateInviteStatus(ctx, record.ID, invite.StatusDeclined); err != nil {
			r.logger.Warn().Err(err).Str("invite_id", record.ID).Msg("auto-decline of expired invite failed")
		}
		return domain.Member{}, apperrors.New(apperrors.CodeInviteExpired, "invite has expired")
	}

	member, err := domain.CreateMember(domain.CreateMemberInput{
		CampaignID:  record.CampaignID,
		UID:         input.UID,
		DisplayName: input.DisplayName,
		Role:        domain.RolePlayer,
	}, r.clock)
	if err != nil {
		return domain.Member{}, err
	}
	if err := r.assignCharacter(ctx, &member, input.CharacterID); err != nil {
		return domain.Member{}, err
	}
	if err := r.store.AcceptInviteWithMember(ctx, record.ID, member); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.Member{}, apperrors.New(apperrors.CodeInviteNotPending, "invite is no longer pending")
		}
		return domain.Member{}, fmt.Errorf("accept invite: %w", err)
	}

	// Best-effort; the reconciler converges the index from the change feed.
	if err := r.store.AddMemberUID(ctx, record.CampaignID, input.UID); err != nil {
		r.logger.Warn().Err(err).
			Str("campaign_id", record.CampaignID).
			Str("uid", input.UID).
			Msg("best-effort membership index update failed")
	}
	return member, nil
}

// DeclineInvite declines a pending invite addressed to the caller's email.
func (r *Registry) DeclineInvite(ctx context.Context, inviteID, email string) error {
	record, err := r.store.GetInvite(ctx, inviteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "invite not found")
		}
		return fmt.Errorf("load invite: %w", err)
	}
	if !strings.EqualFold(record.Email, strings.TrimSpace(email)) {
		return apperrors.New(apperrors.CodePermissionDenied, "invite is addressed to a different email")
	}
	if record.Status != invite.StatusPending {
		return apperrors.New(apperrors.CodeInviteNotPending, "invite is no longer pending")
	}
	if err := r.store.UpdateInviteStatus(ctx, inviteID, invite.StatusDeclined); err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	return nil
}

// ListMyInvites returns the caller's pending, unexpired invites. Expiry is
// evaluated at read time; expired rows are skipped, not mutated.
func (r *Registry) ListMyInvites(ctx context.Context, email string) ([]invite.Invite, error) {
	records, err := r.store.ListPendingInvitesByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	now := r.clock().UTC()
	live := records[:0]
	for _, record := range records {
		if record.Expired(now) {
			continue
		}
		live = append(live, record)
	}
	return live, nil
}

// SubscribeInvites observes invite changes across campaigns. Subscribers
// re-query their own pending invites on every change.
func (r *Registry) SubscribeInvites() *notify.Subscription {
	return r.hub.Subscribe(notify.Filter{Collections: []storage.Collection{storage.CollectionInvites}})
}
