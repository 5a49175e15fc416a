// Package service manages campaign chat and private whispers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/chat"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// Service is the chat service.
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

// New creates a chat service with default dependencies.
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

// SendMessage posts one message to the campaign's shared chat.
func (s *Service) SendMessage(ctx context.Context, campaignID, uid, content string) (chat.Message, error) {
	member, err := s.requireMember(ctx, uid, campaignID)
	if err != nil {
		return chat.Message{}, err
	}
	message, err := chat.NewMessage(campaignID, uid, member.DisplayName, content, s.clock, s.idGenerator)
	if err != nil {
		return chat.Message{}, err
	}
	if err := s.store.AppendMessage(ctx, message); err != nil {
		return chat.Message{}, fmt.Errorf("persist message: %w", err)
	}
	return message, nil
}

// ListMessages returns the campaign's shared chat in send order.
func (s *Service) ListMessages(ctx context.Context, actorUID, campaignID string) ([]chat.Message, error) {
	if _, err := s.requireMember(ctx, actorUID, campaignID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// SendWhisper posts a private message. Whispers flow between the DM and one
// player: the DM may whisper any member, a player only the DM.
func (s *Service) SendWhisper(ctx context.Context, campaignID, fromUID, toUID, content string) (chat.Whisper, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return chat.Whisper{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return chat.Whisper{}, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.HasMember(fromUID) || !campaign.HasMember(toUID) {
		return chat.Whisper{}, apperrors.New(apperrors.CodePermissionDenied, "both parties must be campaign members")
	}
	if fromUID != campaign.DmUID && toUID != campaign.DmUID {
		return chat.Whisper{}, apperrors.New(apperrors.CodeIllegalOperation, "whispers flow between the DM and a player")
	}
	whisper, err := chat.NewWhisper(campaignID, fromUID, toUID, content, s.clock, s.idGenerator)
	if err != nil {
		return chat.Whisper{}, err
	}
	if err := s.store.AppendWhisper(ctx, whisper); err != nil {
		return chat.Whisper{}, fmt.Errorf("persist whisper: %w", err)
	}
	return whisper, nil
}

// ListWhispers returns whispers the caller sent or received.
func (s *Service) ListWhispers(ctx context.Context, actorUID, campaignID string) ([]chat.Whisper, error) {
	if _, err := s.requireMember(ctx, actorUID, campaignID); err != nil {
		return nil, err
	}
	whispers, err := s.store.ListWhispers(ctx, campaignID, actorUID)
	if err != nil {
		return nil, fmt.Errorf("list whispers: %w", err)
	}
	return whispers, nil
}

// SubscribeMessages observes one campaign's shared chat changes.
func (s *Service) SubscribeMessages(campaignID string) *notify.Subscription {
	return s.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionMessages},
	})
}

// SubscribeWhispers observes one campaign's whisper changes. Callers filter
// delivered whispers to their own uid when re-querying.
func (s *Service) SubscribeWhispers(campaignID string) *notify.Subscription {
	return s.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionWhispers},
	})
}

func (s *Service) requireMember(ctx context.Context, uid, campaignID string) (campaigndomain.Member, error) {
	member, err := s.store.GetMember(ctx, campaignID, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return campaigndomain.Member{}, apperrors.New(apperrors.CodePermissionDenied, "caller is not a campaign member")
		}
		return campaigndomain.Member{}, fmt.Errorf("load membership: %w", err)
	}
	return member, nil
}
