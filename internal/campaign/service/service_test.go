package service

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/storage"
	sqlitestore "github.com/louisbranch/wyrmtable/internal/storage/sqlite"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T) (*Registry, *testClock) {
	t.Helper()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	clock := &testClock{now: time.Date(2026, time.August, 21, 9, 0, 0, 0, time.UTC)}
	registry := NewRegistry(store, notify.NewHub(), WithClock(clock.Now))
	return registry, clock
}

func mustCreateCampaign(t *testing.T, registry *Registry, name, dmUID string) domain.Campaign {
	t.Helper()

	campaign, err := registry.CreateCampaign(context.Background(), CreateCampaignInput{
		Name:          name,
		DmUID:         dmUID,
		DmDisplayName: "Astrid",
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return campaign
}

func TestCreateCampaignSeedsDMMembership(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	if len(campaign.JoinCode) != domain.JoinCodeLength {
		t.Fatalf("join code %q, want %d chars", campaign.JoinCode, domain.JoinCodeLength)
	}
	members, err := registry.ListMembers(context.Background(), "dm-1", campaign.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].Role != domain.RoleDM {
		t.Fatalf("members = %+v, want one DM", members)
	}
}

func TestJoinByCodeIsIdempotent(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	input := JoinByCodeInput{Code: campaign.JoinCode, UID: "player-1", DisplayName: "Bram"}
	_, first, err := registry.JoinByCode(context.Background(), input)
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	_, second, err := registry.JoinByCode(context.Background(), input)
	if err != nil {
		t.Fatalf("join again: %v", err)
	}
	if !first.JoinedAt.Equal(second.JoinedAt) {
		t.Fatalf("second join created a new membership: %v vs %v", first.JoinedAt, second.JoinedAt)
	}

	campaigns, err := registry.ListCampaignsForUser(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("list campaigns for player: %v", err)
	}
	if len(campaigns) != 1 || campaigns[0].ID != campaign.ID {
		t.Fatalf("campaigns = %v, want [%s]", campaigns, campaign.ID)
	}
}

func TestJoinByCodeUnknownCode(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	_, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: "ZZZZZZ", UID: "player-1", DisplayName: "Bram"})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestLeaveCampaignBlocksDM(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	err := registry.LeaveCampaign(context.Background(), "dm-1", campaign.ID)
	if !apperrors.IsCode(err, apperrors.CodeIllegalOperation) {
		t.Fatalf("err = %v, want illegal operation", err)
	}
}

func TestRemoveMemberRequiresDM(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	if _, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: campaign.JoinCode, UID: "player-1", DisplayName: "Bram"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	err := registry.RemoveMember(context.Background(), "player-1", campaign.ID, "dm-1")
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}
	if err := registry.RemoveMember(context.Background(), "dm-1", campaign.ID, "dm-1"); !apperrors.IsCode(err, apperrors.CodeIllegalOperation) {
		t.Fatalf("err = %v, want illegal operation", err)
	}
	if err := registry.RemoveMember(context.Background(), "dm-1", campaign.ID, "player-1"); err != nil {
		t.Fatalf("remove player: %v", err)
	}

	campaigns, err := registry.ListCampaignsForUser(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(campaigns) != 0 {
		t.Fatalf("campaigns = %v, want empty after removal", campaigns)
	}
}

func TestRegenerateJoinCodeInvalidatesOldCode(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	oldCode := campaign.JoinCode

	if _, err := registry.RegenerateJoinCode(context.Background(), "player-9", campaign.ID); !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}

	updated, err := registry.RegenerateJoinCode(context.Background(), "dm-1", campaign.ID)
	if err != nil {
		t.Fatalf("regenerate join code: %v", err)
	}
	if updated.JoinCode == oldCode {
		t.Fatal("join code did not change")
	}

	_, _, err = registry.JoinByCode(context.Background(), JoinByCodeInput{Code: oldCode, UID: "player-1", DisplayName: "Bram"})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("old code still resolves: %v", err)
	}
	if _, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: updated.JoinCode, UID: "player-1", DisplayName: "Bram"}); err != nil {
		t.Fatalf("new code join: %v", err)
	}
}

func TestArchiveCampaignHidesFromJoinAndListing(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	if err := registry.ArchiveCampaign(context.Background(), "dm-1", campaign.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	_, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: campaign.JoinCode, UID: "player-1", DisplayName: "Bram"})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("archived campaign join err = %v, want not found", err)
	}
	campaigns, err := registry.ListCampaignsForUser(context.Background(), "dm-1")
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(campaigns) != 0 {
		t.Fatalf("campaigns = %v, want empty after archive", campaigns)
	}
}

func TestDeleteCampaignCascades(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	if _, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: campaign.JoinCode, UID: "player-1", DisplayName: "Bram"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := registry.DeleteCampaign(context.Background(), "dm-1", campaign.ID); err != nil {
		t.Fatalf("delete campaign: %v", err)
	}
	if _, err := registry.GetCampaign(context.Background(), "dm-1", campaign.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	campaigns, err := registry.ListCampaignsForUser(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(campaigns) != 0 {
		t.Fatalf("campaigns = %v, want empty after delete", campaigns)
	}
}

// cascadeRecorder wraps a real store and records the delete cascade order.
type cascadeRecorder struct {
	storage.Store
	order []string
}

func (s *cascadeRecorder) step(name string, err error) error {
	s.order = append(s.order, name)
	return err
}

func (s *cascadeRecorder) DeleteEncountersForCampaign(ctx context.Context, campaignID string) error {
	return s.step("encounters", s.Store.DeleteEncountersForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteNotesForCampaign(ctx context.Context, campaignID string) error {
	return s.step("notes", s.Store.DeleteNotesForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteTemplatesForCampaign(ctx context.Context, campaignID string) error {
	return s.step("templates", s.Store.DeleteTemplatesForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteWhispersForCampaign(ctx context.Context, campaignID string) error {
	return s.step("whispers", s.Store.DeleteWhispersForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteRollRequestsForCampaign(ctx context.Context, campaignID string) error {
	return s.step("rollRequests", s.Store.DeleteRollRequestsForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteMessagesForCampaign(ctx context.Context, campaignID string) error {
	return s.step("messages", s.Store.DeleteMessagesForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteInvitesForCampaign(ctx context.Context, campaignID string) error {
	return s.step("invites", s.Store.DeleteInvitesForCampaign(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteMembers(ctx context.Context, campaignID string) error {
	return s.step("members", s.Store.DeleteMembers(ctx, campaignID))
}

func (s *cascadeRecorder) DeleteCampaign(ctx context.Context, campaignID string) error {
	return s.step("campaign", s.Store.DeleteCampaign(ctx, campaignID))
}

func TestDeleteCampaignCascadeOrder(t *testing.T) {
	t.Parallel()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	recorder := &cascadeRecorder{Store: store}
	registry := NewRegistry(recorder, notify.NewHub())
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	if err := registry.DeleteCampaign(context.Background(), "dm-1", campaign.ID); err != nil {
		t.Fatalf("delete campaign: %v", err)
	}

	// Members go last among subcollections, the campaign document after
	// everything else.
	want := []string{"encounters", "notes", "templates", "whispers", "rollRequests", "messages", "invites", "members", "campaign"}
	if !reflect.DeepEqual(recorder.order, want) {
		t.Fatalf("cascade order = %v, want %v", recorder.order, want)
	}
}

func TestJoinByCodeWithCharacterSeedsSummary(t *testing.T) {
	t.Parallel()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	source := staticCharacterSource{summary: domain.CharacterSummary{Name: "Kira", Class: "Ranger", Level: 4, HP: 27, MaxHP: 27}}
	registry := NewRegistry(store, notify.NewHub(), WithCharacterSource(source))
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	_, member, err := registry.JoinByCode(context.Background(), JoinByCodeInput{
		Code:        campaign.JoinCode,
		UID:         "player-1",
		DisplayName: "Bram",
		CharacterID: "char-1",
	})
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if member.CharacterID != "char-1" {
		t.Fatalf("character id = %q, want char-1", member.CharacterID)
	}
	if member.CharacterSummary == nil || member.CharacterSummary.Class != "Ranger" {
		t.Fatalf("summary = %+v, want Ranger snapshot", member.CharacterSummary)
	}
}

func TestUpdateCampaignRequiresDM(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	name := "Renamed"
	if _, err := registry.UpdateCampaign(context.Background(), "player-1", campaign.ID, UpdateCampaignInput{Name: &name}); !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}

	updated, err := registry.UpdateCampaign(context.Background(), "dm-1", campaign.ID, UpdateCampaignInput{
		Name:     &name,
		Settings: &domain.Settings{AllowPlayerInvites: true},
	})
	if err != nil {
		t.Fatalf("update campaign: %v", err)
	}
	if updated.Name != "Renamed" || !updated.Settings.AllowPlayerInvites {
		t.Fatalf("updated = %+v, want renamed with player invites", updated)
	}
}

func TestAdvanceSessionIncrements(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t)
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")

	updated, err := registry.AdvanceSession(context.Background(), "dm-1", campaign.ID)
	if err != nil {
		t.Fatalf("advance session: %v", err)
	}
	if updated.CurrentSessionNumber != 2 {
		t.Fatalf("session = %d, want 2", updated.CurrentSessionNumber)
	}
}

type staticCharacterSource struct {
	summary domain.CharacterSummary
}

func (s staticCharacterSource) Summary(_ context.Context, _ string) (domain.CharacterSummary, error) {
	return s.summary, nil
}

func TestSetMemberCharacterRefreshesSummary(t *testing.T) {
	t.Parallel()

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	source := staticCharacterSource{summary: domain.CharacterSummary{Name: "Kira", Class: "Rogue", Level: 5, HP: 31, MaxHP: 31}}
	registry := NewRegistry(store, notify.NewHub(), WithCharacterSource(source))
	campaign := mustCreateCampaign(t, registry, "Sunless Citadel", "dm-1")
	if _, _, err := registry.JoinByCode(context.Background(), JoinByCodeInput{Code: campaign.JoinCode, UID: "player-1", DisplayName: "Bram"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	member, err := registry.SetMemberCharacter(context.Background(), "player-1", campaign.ID, "char-1")
	if err != nil {
		t.Fatalf("set member character: %v", err)
	}
	if member.CharacterSummary == nil || member.CharacterSummary.Class != "Rogue" {
		t.Fatalf("summary = %+v, want Rogue snapshot", member.CharacterSummary)
	}

	cleared, err := registry.SetMemberCharacter(context.Background(), "player-1", campaign.ID, "")
	if err != nil {
		t.Fatalf("clear character: %v", err)
	}
	if cleared.CharacterID != "" || cleared.CharacterSummary != nil {
		t.Fatalf("cleared = %+v, want empty assignment", cleared)
	}
}
