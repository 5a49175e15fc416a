package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/louisbranch/wyrmtable/internal/notify"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

func testBridge(hub *notify.Hub) *Bridge {
	return &Bridge{hub: hub, instanceID: "local", logger: zerolog.Nop()}
}

func mustMarshal(t *testing.T, env envelope) []byte {
	t.Helper()

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestHandleRemoteInjectsPeerChanges(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub()
	bridge := testBridge(hub)
	sub := hub.Subscribe(notify.Filter{})
	defer sub.Close()

	at := time.Date(2026, time.August, 21, 9, 0, 0, 0, time.UTC)
	bridge.handleRemote(mustMarshal(t, envelope{
		Origin:     "peer",
		Collection: string(storage.CollectionNotes),
		Kind:       int(storage.ChangeCreated),
		CampaignID: "camp-1",
		DocID:      "note-1",
		At:         at,
	}))

	select {
	case change := <-sub.C():
		if change.Collection != storage.CollectionNotes || change.DocID != "note-1" {
			t.Fatalf("change = %+v, want notes/note-1", change)
		}
		if change.Origin != "peer" {
			t.Fatalf("origin = %q, want peer", change.Origin)
		}
	default:
		t.Fatal("peer change was not published to the hub")
	}
}

func TestHandleRemoteDropsOwnEcho(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub()
	bridge := testBridge(hub)
	sub := hub.Subscribe(notify.Filter{})
	defer sub.Close()

	bridge.handleRemote(mustMarshal(t, envelope{
		Origin:     "local",
		Collection: string(storage.CollectionNotes),
		CampaignID: "camp-1",
		DocID:      "note-1",
	}))
	bridge.handleRemote([]byte(`{`))

	select {
	case change := <-sub.C():
		t.Fatalf("unexpected change published: %+v", change)
	default:
	}
}

func TestForwardSkipsPeerChanges(t *testing.T) {
	t.Parallel()

	// No connection is wired; forwarding a peer change must return before
	// touching it.
	bridge := testBridge(notify.NewHub())
	err := bridge.forward(storage.Change{
		Collection: storage.CollectionNotes,
		CampaignID: "camp-1",
		DocID:      "note-1",
		Origin:     "peer",
	})
	if err != nil {
		t.Fatalf("forward peer change: %v", err)
	}
}
