package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/louisbranch/wyrmtable/internal/notify"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// changeEvent is the wire form of a storage change pushed to clients.
type changeEvent struct {
	Collection string    `json:"collection"`
	Kind       string    `json:"kind"`
	CampaignID string    `json:"campaignId"`
	DocID      string    `json:"docId,omitempty"`
	At         time.Time `json:"at"`
}

func changeKindLabel(kind storage.ChangeKind) string {
	switch kind {
	case storage.ChangeCreated:
		return "created"
	case storage.ChangeUpdated:
		return "updated"
	case storage.ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// handleWebsocket streams committed changes for one campaign to the client.
// Clients re-read state on every change, so a drop under backpressure only
// delays convergence.
func (g *Gateway) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	campaignID := r.URL.Query().Get("campaign")

	// Membership gates the feed; a campaign's changes are visible to its
	// members only.
	if _, err := g.campaigns.GetCampaign(r.Context(), caller.UID, campaignID); err != nil {
		writeError(w, err)
		return
	}

	filter := notify.Filter{CampaignID: campaignID}
	if raw := r.URL.Query().Get("collections"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			filter.Collections = append(filter.Collections, storage.Collection(strings.TrimSpace(name)))
		}
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := g.hub.Subscribe(filter)
	defer sub.Close()

	// Reader drains control frames and signals the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case change, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			event := changeEvent{
				Collection: string(change.Collection),
				Kind:       changeKindLabel(change.Kind),
				CampaignID: change.CampaignID,
				DocID:      change.DocID,
				At:         change.At,
			}
			if err := conn.WriteJSON(event); err != nil {
				g.logger.Debug().Err(err).Str("uid", caller.UID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
