// Package service manages DM campaign notes. Notes are DM-private: only the
// campaign owner may read or write them.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/wyrmtable/internal/note"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// Service is the DM note service.
type Service struct {
	store       storage.Store
	hub         *notify.Hub
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(generator func() (string, error)) Option {
	return func(s *Service) { s.idGenerator = generator }
}

// New creates a note service with default dependencies.
func New(store storage.Store, hub *notify.Hub, opts ...Option) *Service {
	service := &Service{
		store:       store,
		hub:         hub,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateInput describes a note creation request.
type CreateInput struct {
	CampaignID    string
	ActorUID      string
	Tag           note.Tag
	Title         string
	Content       string
	Tags          []string
	SessionNumber *int
}

// Create writes a new DM note.
func (s *Service) Create(ctx context.Context, input CreateInput) (note.Note, error) {
	if err := s.requireDM(ctx, input.ActorUID, input.CampaignID); err != nil {
		return note.Note{}, err
	}
	record, err := note.CreateNote(note.CreateNoteInput{
		CampaignID:    input.CampaignID,
		Tag:           input.Tag,
		Title:         input.Title,
		Content:       input.Content,
		Tags:          input.Tags,
		SessionNumber: input.SessionNumber,
	}, s.clock, s.idGenerator)
	if err != nil {
		return note.Note{}, err
	}
	if err := s.store.PutNote(ctx, record); err != nil {
		return note.Note{}, fmt.Errorf("persist note: %w", err)
	}
	return record, nil
}

// UpdateInput is a partial note update. Nil fields are left unchanged.
type UpdateInput struct {
	Tag           *note.Tag
	Title         *string
	Content       *string
	Tags          *[]string
	SessionNumber *int
}

// Update applies a partial note update last-write-wins.
func (s *Service) Update(ctx context.Context, actorUID, campaignID, noteID string, input UpdateInput) (note.Note, error) {
	if err := s.requireDM(ctx, actorUID, campaignID); err != nil {
		return note.Note{}, err
	}
	record, err := s.store.GetNote(ctx, campaignID, noteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return note.Note{}, apperrors.New(apperrors.CodeNotFound, "note not found")
		}
		return note.Note{}, fmt.Errorf("load note: %w", err)
	}
	if input.Tag != nil {
		if !note.ValidTag(*input.Tag) {
			return note.Note{}, note.ErrInvalidTag
		}
		record.Tag = *input.Tag
	}
	if input.Title != nil {
		if *input.Title == "" {
			return note.Note{}, note.ErrEmptyTitle
		}
		record.Title = *input.Title
	}
	if input.Content != nil {
		record.Content = *input.Content
	}
	if input.Tags != nil {
		record.Tags = *input.Tags
	}
	if input.SessionNumber != nil {
		record.SessionNumber = input.SessionNumber
	}
	record.UpdatedAt = s.clock().UTC()
	if err := s.store.PutNote(ctx, record); err != nil {
		return note.Note{}, fmt.Errorf("persist note: %w", err)
	}
	return record, nil
}

// Delete removes one note.
func (s *Service) Delete(ctx context.Context, actorUID, campaignID, noteID string) error {
	if err := s.requireDM(ctx, actorUID, campaignID); err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, campaignID, noteID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "note not found")
		}
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// List returns a campaign's notes, newest first.
func (s *Service) List(ctx context.Context, actorUID, campaignID string) ([]note.Note, error) {
	if err := s.requireDM(ctx, actorUID, campaignID); err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotes(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// Subscribe observes one campaign's note changes.
func (s *Service) Subscribe(campaignID string) *notify.Subscription {
	return s.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionNotes},
	})
}

func (s *Service) requireDM(ctx context.Context, actorUID, campaignID string) error {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return fmt.Errorf("load campaign: %w", err)
	}
	if campaign.DmUID != actorUID {
		return apperrors.New(apperrors.CodePermissionDenied, "notes are DM-private")
	}
	return nil
}
