package membership

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/louisbranch/wyrmtable/internal/notify"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

type fakeCampaignStore struct {
	storage.CampaignStore

	mu      sync.Mutex
	added   []string
	removed []string
}

func (f *fakeCampaignStore) AddMemberUID(_ context.Context, campaignID, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, campaignID+"/"+uid)
	return nil
}

func (f *fakeCampaignStore) RemoveMemberUID(_ context.Context, campaignID, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, campaignID+"/"+uid)
	return nil
}

func (f *fakeCampaignStore) snapshot() (added, removed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...), append([]string(nil), f.removed...)
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestReconcilerAppliesMemberChanges(t *testing.T) {
	t.Parallel()

	store := &fakeCampaignStore{}
	hub := notify.NewHub()
	reconciler := NewReconciler(store, hub, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		reconciler.Run(ctx)
	}()

	// Give the subscription time to register before publishing.
	waitFor(t, func() bool { return hub.Len() == 1 })

	hub.Publish(storage.Change{Collection: storage.CollectionMembers, Kind: storage.ChangeCreated, CampaignID: "camp-1", DocID: "player-1"})
	hub.Publish(storage.Change{Collection: storage.CollectionMembers, Kind: storage.ChangeDeleted, CampaignID: "camp-1", DocID: "player-2"})
	// Bulk deletion without a uid is skipped.
	hub.Publish(storage.Change{Collection: storage.CollectionMembers, Kind: storage.ChangeDeleted, CampaignID: "camp-1"})
	// Non-member changes are not observed at all.
	hub.Publish(storage.Change{Collection: storage.CollectionCampaigns, Kind: storage.ChangeUpdated, CampaignID: "camp-1", DocID: "camp-1"})

	waitFor(t, func() bool {
		added, removed := store.snapshot()
		return len(added) == 1 && len(removed) == 1
	})
	added, removed := store.snapshot()
	if added[0] != "camp-1/player-1" {
		t.Fatalf("added = %v, want [camp-1/player-1]", added)
	}
	if removed[0] != "camp-1/player-2" {
		t.Fatalf("removed = %v, want [camp-1/player-2]", removed)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on cancel")
	}
}
