package notify

import (
	"testing"
	"time"

	"github.com/louisbranch/wyrmtable/internal/storage"
)

func waitForChange(t *testing.T, ch <-chan storage.Change) storage.Change {
	t.Helper()
	select {
	case change, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return change
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	return storage.Change{}
}

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	hub := NewHub()
	all := hub.Subscribe(Filter{})
	defer all.Close()
	scoped := hub.Subscribe(Filter{CampaignID: "camp-1", Collections: []storage.Collection{storage.CollectionMembers}})
	defer scoped.Close()
	other := hub.Subscribe(Filter{CampaignID: "camp-2"})
	defer other.Close()

	hub.Publish(storage.Change{
		Collection: storage.CollectionMembers,
		Kind:       storage.ChangeCreated,
		CampaignID: "camp-1",
		DocID:      "player-1",
	})

	change := waitForChange(t, all.C())
	if change.DocID != "player-1" {
		t.Fatalf("doc id = %q, want player-1", change.DocID)
	}
	change = waitForChange(t, scoped.C())
	if change.Collection != storage.CollectionMembers {
		t.Fatalf("collection = %q, want members", change.Collection)
	}

	select {
	case unexpected := <-other.C():
		t.Fatalf("unexpected delivery to camp-2 subscriber: %+v", unexpected)
	default:
	}
}

func TestFilterByCollection(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Filter{Collections: []storage.Collection{storage.CollectionEncounters}})
	defer sub.Close()

	hub.Publish(storage.Change{Collection: storage.CollectionNotes, CampaignID: "camp-1"})
	hub.Publish(storage.Change{Collection: storage.CollectionEncounters, CampaignID: "camp-1", DocID: "enc-1"})

	change := waitForChange(t, sub.C())
	if change.Collection != storage.CollectionEncounters {
		t.Fatalf("collection = %q, want encounters", change.Collection)
	}
}

func TestCloseIsIdempotentAndReleasesSlot(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Filter{})
	if hub.Len() != 1 {
		t.Fatalf("len = %d, want 1", hub.Len())
	}
	sub.Close()
	sub.Close()
	if hub.Len() != 0 {
		t.Fatalf("len after close = %d, want 0", hub.Len())
	}

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel after Close")
	}
}

func TestPublishDropsOldestWhenBufferFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Filter{})
	defer sub.Close()

	total := subscriptionBuffer + 10
	for i := 0; i < total; i++ {
		hub.Publish(storage.Change{Collection: storage.CollectionMessages, DocID: "msg"})
	}

	received := 0
	for {
		select {
		case <-sub.C():
			received++
		default:
			if received != subscriptionBuffer {
				t.Fatalf("received %d buffered changes, want %d", received, subscriptionBuffer)
			}
			return
		}
	}
}
