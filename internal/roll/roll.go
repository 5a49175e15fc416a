// Package roll provides DM-initiated roll requests and their fan-in responses.
package roll

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/wyrmtable/internal/dice"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

var (
	// ErrEmptyType indicates a missing roll type.
	ErrEmptyType = apperrors.New(apperrors.CodeRollEmptyType, "roll type is required")
	// ErrNoTargets indicates a roll request with no targets.
	ErrNoTargets = apperrors.New(apperrors.CodeRollNoTargets, "at least one target is required")
)

// Response is one player's answer to a roll request. At most one response is
// recorded per target uid; responses accumulate and are never removed.
type Response struct {
	UID         string
	DisplayName string
	Result      dice.Result
	Timestamp   time.Time
}

// Request is a DM-initiated roll prompt fanned out to target players.
type Request struct {
	ID         string
	CampaignID string
	DmUID      string
	// Type is free text, e.g. "DEX Save".
	Type string
	// DC is nil when the DM keeps the difficulty hidden or irrelevant.
	DC         *int
	TargetUIDs []string
	Responses  []Response
	CreatedAt  time.Time
}

// CreateRequestInput describes the data needed to create a roll request.
type CreateRequestInput struct {
	CampaignID string
	DmUID      string
	Type       string
	DC         *int
	TargetUIDs []string
}

// CreateRequest creates a roll request with an empty response list.
func CreateRequest(input CreateRequestInput, now func() time.Time, idGenerator func() (string, error)) (Request, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Type = strings.TrimSpace(input.Type)
	if input.Type == "" {
		return Request{}, ErrEmptyType
	}
	if len(input.TargetUIDs) == 0 {
		return Request{}, ErrNoTargets
	}

	requestID, err := idGenerator()
	if err != nil {
		return Request{}, fmt.Errorf("generate roll request id: %w", err)
	}

	return Request{
		ID:         requestID,
		CampaignID: strings.TrimSpace(input.CampaignID),
		DmUID:      strings.TrimSpace(input.DmUID),
		Type:       input.Type,
		DC:         input.DC,
		TargetUIDs: input.TargetUIDs,
		CreatedAt:  now().UTC(),
	}, nil
}

// HasResponse reports whether uid already responded to the request.
func (r Request) HasResponse(uid string) bool {
	for _, response := range r.Responses {
		if response.UID == uid {
			return true
		}
	}
	return false
}

// Passes reports whether a roll total meets the request's DC. The result is
// display-only; requests without a DC never pass or fail.
func (r Request) Passes(total int) (passed, hasDC bool) {
	if r.DC == nil {
		return false, false
	}
	return total >= *r.DC, true
}
