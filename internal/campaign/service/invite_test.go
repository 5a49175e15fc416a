package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/campaign/invite"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	sqlitestore "github.com/louisbranch/wyrmtable/internal/storage/sqlite"
)

func TestCreateInvitePermissions(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	if _, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: campaign.JoinCode, UID: "player-1", DisplayName: "Bram"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Player invites are off by default.
	_, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "player-1",
		Email:      "friend@example.com",
	})
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}

	settings := domain.Settings{AllowPlayerInvites: true}
	if _, err := registry.UpdateCampaign(context.Background(), "dm-1", campaign.ID, UpdateCampaignInput{Settings: &settings}); err != nil {
		t.Fatalf("enable player invites: %v", err)
	}
	if _, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "player-1",
		Email:      "friend@example.com",
	}); err != nil {
		t.Fatalf("player invite with setting enabled: %v", err)
	}
}

func TestCreateInviteRejectsDuplicatePending(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	input := CreateInviteInput{CampaignID: campaign.ID, ActorUID: "dm-1", Email: "Friend@Example.com"}
	if _, err := registry.CreateInvite(context.Background(), input); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	_, err := registry.CreateInvite(context.Background(), input)
	if !apperrors.IsCode(err, apperrors.CodeInviteDuplicate) {
		t.Fatalf("err = %v, want duplicate invite", err)
	}
}

func TestAcceptInviteCreatesMembership(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	record, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	member, err := registry.AcceptInvite(context.Background(), AcceptInviteInput{
		InviteID:    record.ID,
		UID:         "player-1",
		Email:       "FRIEND@example.com",
		DisplayName: "Bram",
	})
	if err != nil {
		t.Fatalf("accept invite: %v", err)
	}
	if member.Role != domain.RolePlayer {
		t.Fatalf("role = %v, want player", member.Role)
	}

	// A second acceptance finds the invite consumed.
	_, err = registry.AcceptInvite(context.Background(), AcceptInviteInput{
		InviteID:    record.ID,
		UID:         "player-2",
		Email:       "friend@example.com",
		DisplayName: "Impostor",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteNotPending) {
		t.Fatalf("err = %v, want not pending", err)
	}
}

func TestAcceptInviteWithCharacterSeedsSummary(t *testing.T) {
	t.Parallel()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	source := staticCharacterSource{summary: domain.CharacterSummary{Name: "Kira", Class: "Ranger", Level: 4, HP: 27, MaxHP: 27}}
	registry := NewRegistry(store, notify.NewHub(), WithCharacterSource(source))
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	record, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	member, err := registry.AcceptInvite(context.Background(), AcceptInviteInput{
		InviteID:    record.ID,
		UID:         "player-1",
		Email:       "friend@example.com",
		DisplayName: "Bram",
		CharacterID: "char-1",
	})
	if err != nil {
		t.Fatalf("accept invite: %v", err)
	}
	if member.CharacterID != "char-1" {
		t.Fatalf("character id = %q, want char-1", member.CharacterID)
	}
	if member.CharacterSummary == nil || member.CharacterSummary.Class != "Ranger" {
		t.Fatalf("summary = %+v, want Ranger snapshot", member.CharacterSummary)
	}
}

func TestAcceptInviteRejectsWrongEmail(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	record, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	_, err = registry.AcceptInvite(context.Background(), AcceptInviteInput{
		InviteID:    record.ID,
		UID:         "player-1",
		Email:       "other@example.com",
		DisplayName: "Bram",
	})
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}
}

func TestAcceptExpiredInviteAutoDeclines(t *testing.T) {
	t.Parallel()

	registry, clock := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	record, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	clock.Advance(invite.TTL + time.Hour)

	_, err = registry.AcceptInvite(context.Background(), AcceptInviteInput{
		InviteID:    record.ID,
		UID:         "player-1",
		Email:       "friend@example.com",
		DisplayName: "Bram",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteExpired) {
		t.Fatalf("err = %v, want expired", err)
	}

	// The expired invite was flipped to declined, so a retry is not pending.
	_, err = registry.AcceptInvite(context.Background(), AcceptInviteInput{
		InviteID:    record.ID,
		UID:         "player-1",
		Email:       "friend@example.com",
		DisplayName: "Bram",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteNotPending) {
		t.Fatalf("retry err = %v, want not pending", err)
	}
}

func TestListMyInvitesFiltersExpired(t *testing.T) {
	t.Parallel()

	registry, clock := newTestRegistry(t)
	first := mustCreateCampaign(t, registry, "First", "dm-1")
	if _, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: first.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	}); err != nil {
		t.Fatalf("create first invite: %v", err)
	}

	clock.Advance(invite.TTL + time.Hour)

	second := mustCreateCampaign(t, registry, "Second", "dm-1")
	if _, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: second.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	}); err != nil {
		t.Fatalf("create second invite: %v", err)
	}

	invites, err := registry.ListMyInvites(context.Background(), "friend@example.com")
	if err != nil {
		t.Fatalf("list invites: %v", err)
	}
	if len(invites) != 1 || invites[0].CampaignID != second.ID {
		t.Fatalf("invites = %+v, want only the unexpired one", invites)
	}
}

func TestDeclineInvite(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	record, err := registry.CreateInvite(context.Background(), CreateInviteInput{
		CampaignID: campaign.ID,
		ActorUID:   "dm-1",
		Email:      "friend@example.com",
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if err := registry.DeclineInvite(context.Background(), record.ID, "friend@example.com"); err != nil {
		t.Fatalf("decline invite: %v", err)
	}
	if err := registry.DeclineInvite(context.Background(), record.ID, "friend@example.com"); !apperrors.IsCode(err, apperrors.CodeInviteNotPending) {
		t.Fatalf("second decline err = %v, want not pending", err)
	}
}
