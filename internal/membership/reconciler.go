// Package membership keeps the denormalized campaign membership index
// consistent with membership records. Client-side index updates are
// best-effort; this reconciler is the authoritative writer, converging the
// index from the committed change feed.
package membership

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/louisbranch/wyrmtable/internal/notify"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// Reconciler consumes membership changes and repairs the campaign
// membership index.
type Reconciler struct {
	store  storage.CampaignStore
	hub    *notify.Hub
	logger zerolog.Logger
}

// NewReconciler creates a membership reconciler.
func NewReconciler(store storage.CampaignStore, hub *notify.Hub, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, hub: hub, logger: logger}
}

// Run consumes membership changes until ctx is cancelled. Index writes are
// idempotent, so replaying a change the best-effort client path already
// applied is harmless.
func (r *Reconciler) Run(ctx context.Context) {
	sub := r.hub.Subscribe(notify.Filter{Collections: []storage.Collection{storage.CollectionMembers}})
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.C():
			if !ok {
				return
			}
			r.apply(ctx, change)
		}
	}
}

func (r *Reconciler) apply(ctx context.Context, change storage.Change) {
	// Bulk deletions carry no uid; the campaign cascade removes the
	// parent document and its index with it.
	if change.DocID == "" {
		return
	}

	var err error
	switch change.Kind {
	case storage.ChangeCreated, storage.ChangeUpdated:
		err = r.store.AddMemberUID(ctx, change.CampaignID, change.DocID)
	case storage.ChangeDeleted:
		err = r.store.RemoveMemberUID(ctx, change.CampaignID, change.DocID)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Error().Err(err).
			Str("campaign_id", change.CampaignID).
			Str("uid", change.DocID).
			Int("kind", int(change.Kind)).
			Msg("reconcile membership index")
		return
	}
	if err == nil {
		r.logger.Debug().
			Str("campaign_id", change.CampaignID).
			Str("uid", change.DocID).
			Msg("membership index reconciled")
	}
}
