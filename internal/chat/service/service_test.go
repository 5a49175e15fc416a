package service

import (
	"context"
	"path/filepath"
	"testing"

	campaignservice "github.com/louisbranch/wyrmtable/internal/campaign/service"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	sqlitestore "github.com/louisbranch/wyrmtable/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	hub := notify.NewHub()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "wyrmtable.db"), sqlitestore.WithNotifier(hub))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	registry := campaignservice.NewRegistry(store, hub)
	campaign, err := registry.CreateCampaign(context.Background(), campaignservice.CreateCampaignInput{
		Name:          "Sunless Citadel",
		DmUID:         "dm-1",
		DmDisplayName: "Astrid",
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	for _, player := range []struct{ uid, name string }{{"player-1", "Bram"}, {"player-2", "Kira"}} {
		if _, _, err := registry.JoinByCode(context.Background(), campaignservice.JoinByCodeInput{
			Code:        campaign.JoinCode,
			UID:         player.uid,
			DisplayName: player.name,
		}); err != nil {
			t.Fatalf("join %s: %v", player.uid, err)
		}
	}
	return New(store, hub), campaign.ID
}

func TestSendMessageStampsDisplayName(t *testing.T) {
	t.Parallel()

	service, campaignID := newTestService(t)
	message, err := service.SendMessage(context.Background(), campaignID, "player-1", "We should scout the bridge.")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if message.DisplayName != "Bram" {
		t.Fatalf("display name = %q, want Bram", message.DisplayName)
	}

	messages, err := service.ListMessages(context.Background(), "player-2", campaignID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "We should scout the bridge." {
		t.Fatalf("messages = %+v", messages)
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	t.Parallel()

	service, campaignID := newTestService(t)
	_, err := service.SendMessage(context.Background(), campaignID, "outsider", "hello")
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("err = %v, want permission denied", err)
	}
}

func TestWhispersFlowThroughDM(t *testing.T) {
	t.Parallel()

	service, campaignID := newTestService(t)

	if _, err := service.SendWhisper(context.Background(), campaignID, "dm-1", "player-1", "You notice a trap."); err != nil {
		t.Fatalf("dm whisper: %v", err)
	}
	if _, err := service.SendWhisper(context.Background(), campaignID, "player-1", "dm-1", "Can I disarm it?"); err != nil {
		t.Fatalf("player whisper to dm: %v", err)
	}
	if _, err := service.SendWhisper(context.Background(), campaignID, "player-1", "player-2", "psst"); !apperrors.IsCode(err, apperrors.CodeIllegalOperation) {
		t.Fatalf("player-to-player whisper err = %v, want illegal operation", err)
	}

	// player-2 sees neither whisper.
	whispers, err := service.ListWhispers(context.Background(), "player-2", campaignID)
	if err != nil {
		t.Fatalf("list whispers: %v", err)
	}
	if len(whispers) != 0 {
		t.Fatalf("player-2 whispers = %+v, want none", whispers)
	}

	whispers, err = service.ListWhispers(context.Background(), "player-1", campaignID)
	if err != nil {
		t.Fatalf("list player-1 whispers: %v", err)
	}
	if len(whispers) != 2 {
		t.Fatalf("player-1 whispers = %d, want 2", len(whispers))
	}
}
