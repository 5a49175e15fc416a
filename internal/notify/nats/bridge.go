// Package nats bridges in-process change notifications across server
// instances over NATS. Locally committed changes are published to
// per-campaign subjects; changes published by peer instances are injected
// back into the local hub so every instance's subscribers observe every
// committed write.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/louisbranch/wyrmtable/internal/notify"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// SubjectPrefix roots every change subject.
const SubjectPrefix = "wyrmtable.changes"

// Bridge mirrors hub changes onto NATS and peer changes back into the hub.
type Bridge struct {
	nc         *nats.Conn
	hub        *notify.Hub
	instanceID string
	logger     zerolog.Logger
}

type envelope struct {
	Origin     string    `json:"origin"`
	Collection string    `json:"collection"`
	Kind       int       `json:"kind"`
	CampaignID string    `json:"campaign_id"`
	DocID      string    `json:"doc_id"`
	At         time.Time `json:"at"`
}

// Connect dials NATS and returns a bridge bound to the hub.
func Connect(url string, hub *notify.Hub, logger zerolog.Logger) (*Bridge, error) {
	instanceID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate instance id: %w", err)
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Bridge{nc: nc, hub: hub, instanceID: instanceID, logger: logger}, nil
}

// Run mirrors changes in both directions until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	remote, err := b.nc.Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		b.handleRemote(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("subscribe to nats changes")
	} else {
		defer func() { _ = remote.Unsubscribe() }()
	}

	sub := b.hub.Subscribe(notify.Filter{})
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.C():
			if !ok {
				return
			}
			if err := b.forward(change); err != nil {
				b.logger.Error().Err(err).
					Str("collection", string(change.Collection)).
					Str("campaign_id", change.CampaignID).
					Msg("forward change to nats")
			}
		}
	}
}

// forward publishes one locally committed change. Changes injected by a
// peer carry their origin and are never re-forwarded, otherwise two bridged
// instances would bounce the same change between each other indefinitely.
func (b *Bridge) forward(change storage.Change) error {
	if change.Origin != "" {
		return nil
	}
	subject := fmt.Sprintf("%s.%s.%s", SubjectPrefix, change.CampaignID, change.Collection)
	data, err := json.Marshal(envelope{
		Origin:     b.instanceID,
		Collection: string(change.Collection),
		Kind:       int(change.Kind),
		CampaignID: change.CampaignID,
		DocID:      change.DocID,
		At:         change.At,
	})
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// handleRemote injects a peer's change into the local hub. The bridge's own
// publishes come back from NATS and are dropped by origin.
func (b *Bridge) handleRemote(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Error().Err(err).Msg("decode remote change")
		return
	}
	if env.Origin == "" || env.Origin == b.instanceID {
		return
	}
	b.hub.Publish(storage.Change{
		Collection: storage.Collection(env.Collection),
		Kind:       storage.ChangeKind(env.Kind),
		CampaignID: env.CampaignID,
		DocID:      env.DocID,
		At:         env.At,
		Origin:     env.Origin,
	})
}

// Close drains the connection.
func (b *Bridge) Close() {
	if b == nil || b.nc == nil {
		return
	}
	b.nc.Close()
}
