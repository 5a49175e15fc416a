// Package service coordinates DM-initiated roll requests and their fan-in
// responses. Rolls are resolved server-side so results cannot be forged.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/louisbranch/wyrmtable/internal/dice"
	"github.com/louisbranch/wyrmtable/internal/notify"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
	"github.com/louisbranch/wyrmtable/internal/roll"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// Service is the roll request service.
type Service struct {
	store       storage.Store
	hub         *notify.Hub
	clock       func() time.Time
	idGenerator func() (string, error)

	rngMu sync.Mutex
	rng   *rand.Rand
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

// WithRand overrides the roll RNG.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// New creates a roll service with default dependencies.
func New(store storage.Store, hub *notify.Hub, opts ...Option) *Service {
	service := &Service{
		store:       store,
		hub:         hub,
		clock:       time.Now,
		idGenerator: id.NewID,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateRequestInput describes a roll request creation.
type CreateRequestInput struct {
	CampaignID string
	ActorUID   string
	Type       string
	DC         *int
	TargetUIDs []string
}

// CreateRequest fans a roll prompt out to target players. DM only.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (roll.Request, error) {
	campaign, err := s.store.GetCampaign(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return roll.Request{}, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return roll.Request{}, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.DmUID != input.ActorUID {
		return roll.Request{}, apperrors.New(apperrors.CodePermissionDenied, "only the DM may request rolls")
	}

	record, err := roll.CreateRequest(roll.CreateRequestInput{
		CampaignID: input.CampaignID,
		DmUID:      input.ActorUID,
		Type:       input.Type,
		DC:         input.DC,
		TargetUIDs: input.TargetUIDs,
	}, s.clock, s.idGenerator)
	if err != nil {
		return roll.Request{}, err
	}
	if err := s.store.CreateRollRequest(ctx, record); err != nil {
		return roll.Request{}, fmt.Errorf("persist roll request: %w", err)
	}
	return record, nil
}

// SubmitResponseInput describes a player's answer to a roll request.
type SubmitResponseInput struct {
	CampaignID  string
	RequestID   string
	UID         string
	DisplayName string
	// Dice to roll, e.g. one d20 with the character's save modifier.
	Dice []dice.Spec
}

// SubmitResponse rolls the given dice server-side and records the result.
// Only targeted players may respond, and only once; the first response wins.
func (s *Service) SubmitResponse(ctx context.Context, input SubmitResponseInput) (roll.Response, error) {
	record, err := s.store.GetRollRequest(ctx, input.CampaignID, input.RequestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return roll.Response{}, apperrors.New(apperrors.CodeNotFound, "roll request not found")
		}
		return roll.Response{}, fmt.Errorf("load roll request: %w", err)
	}
	targeted := false
	for _, uid := range record.TargetUIDs {
		if uid == input.UID {
			targeted = true
			break
		}
	}
	if !targeted {
		return roll.Response{}, apperrors.New(apperrors.CodePermissionDenied, "caller is not a target of this roll request")
	}

	s.rngMu.Lock()
	result, err := dice.RollWithRng(s.rng, input.Dice)
	s.rngMu.Unlock()
	if err != nil {
		return roll.Response{}, err
	}

	response := roll.Response{
		UID:         input.UID,
		DisplayName: input.DisplayName,
		Result:      result,
		Timestamp:   s.clock().UTC(),
	}
	if err := s.store.AppendRollResponse(ctx, input.CampaignID, input.RequestID, response); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return roll.Response{}, apperrors.New(apperrors.CodeRollDuplicateResponse, "a response was already recorded for this player")
		}
		return roll.Response{}, fmt.Errorf("persist roll response: %w", err)
	}
	return response, nil
}

// GetRequest loads one roll request with its responses.
func (s *Service) GetRequest(ctx context.Context, campaignID, requestID string) (roll.Request, error) {
	record, err := s.store.GetRollRequest(ctx, campaignID, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return roll.Request{}, apperrors.New(apperrors.CodeNotFound, "roll request not found")
		}
		return roll.Request{}, fmt.Errorf("load roll request: %w", err)
	}
	return record, nil
}

// ListRequests returns a campaign's roll requests for any member.
func (s *Service) ListRequests(ctx context.Context, actorUID, campaignID string) ([]roll.Request, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "campaign not found")
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if !campaign.HasMember(actorUID) {
		return nil, apperrors.New(apperrors.CodePermissionDenied, "caller is not a campaign member")
	}
	requests, err := s.store.ListRollRequests(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list roll requests: %w", err)
	}
	return requests, nil
}

// Subscribe observes one campaign's roll request changes.
func (s *Service) Subscribe(campaignID string) *notify.Subscription {
	return s.hub.Subscribe(notify.Filter{
		CampaignID:  campaignID,
		Collections: []storage.Collection{storage.CollectionRollRequests},
	})
}
