package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

// Status describes the lifecycle of a campaign.
type Status int

const (
	// StatusUnspecified represents an invalid campaign status value.
	StatusUnspecified Status = iota
	// StatusActive indicates the campaign is running and joinable.
	StatusActive
	// StatusArchived indicates the campaign is soft-deleted. Archived
	// campaigns are indistinguishable from nonexistent ones to joiners.
	StatusArchived
)

var (
	// ErrEmptyName indicates a missing campaign name.
	ErrEmptyName = apperrors.New(apperrors.CodeCampaignNameEmpty, "campaign name is required")
	// ErrEmptyDmUID indicates a missing campaign owner.
	ErrEmptyDmUID = apperrors.New(apperrors.CodeCampaignEmptyDmUID, "dm uid is required")
)

// Settings holds DM-tunable campaign behavior.
type Settings struct {
	AllowPlayerInvites         bool
	DefaultCharacterVisibility string
}

// Campaign represents a tabletop campaign and its denormalized membership index.
type Campaign struct {
	ID          string
	Name        string
	DmUID       string
	Description string
	// JoinCode is stored upper-cased; lookups are case-insensitive.
	JoinCode string
	Status   Status
	// CurrentSessionNumber is a DM-advanced monotonic counter.
	CurrentSessionNumber int
	Settings             Settings
	// ActiveEncounterID points at the single active encounter, if any.
	ActiveEncounterID string
	// MemberUIDs is the denormalized membership index used only for
	// membership-filtered queries. The membership reconciler is the
	// authoritative writer; client-side updates are best-effort.
	MemberUIDs []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateCampaignInput describes the metadata needed to create a campaign.
type CreateCampaignInput struct {
	Name        string
	DmUID       string
	Description string
}

// CreateCampaign creates a new campaign with a generated ID, join code, and
// the DM pre-seeded into the membership index.
func CreateCampaign(input CreateCampaignInput, now func() time.Time, idGenerator func() (string, error), codeGenerator func() (string, error)) (Campaign, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if codeGenerator == nil {
		codeGenerator = NewJoinCode
	}

	normalized, err := NormalizeCreateCampaignInput(input)
	if err != nil {
		return Campaign{}, err
	}

	campaignID, err := idGenerator()
	if err != nil {
		return Campaign{}, fmt.Errorf("generate campaign id: %w", err)
	}
	joinCode, err := codeGenerator()
	if err != nil {
		return Campaign{}, fmt.Errorf("generate join code: %w", err)
	}

	createdAt := now().UTC()
	return Campaign{
		ID:                   campaignID,
		Name:                 normalized.Name,
		DmUID:                normalized.DmUID,
		Description:          normalized.Description,
		JoinCode:             joinCode,
		Status:               StatusActive,
		CurrentSessionNumber: 1,
		MemberUIDs:           []string{normalized.DmUID},
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}, nil
}

// NormalizeCreateCampaignInput trims and validates campaign input metadata.
func NormalizeCreateCampaignInput(input CreateCampaignInput) (CreateCampaignInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateCampaignInput{}, ErrEmptyName
	}
	input.DmUID = strings.TrimSpace(input.DmUID)
	if input.DmUID == "" {
		return CreateCampaignInput{}, ErrEmptyDmUID
	}
	input.Description = strings.TrimSpace(input.Description)
	return input, nil
}

// HasMember reports whether uid is present in the membership index.
func (c Campaign) HasMember(uid string) bool {
	for _, member := range c.MemberUIDs {
		if member == uid {
			return true
		}
	}
	return false
}

// WithMember returns a copy of uids with uid added once.
func WithMember(uids []string, uid string) []string {
	for _, member := range uids {
		if member == uid {
			return uids
		}
	}
	result := make([]string, 0, len(uids)+1)
	result = append(result, uids...)
	return append(result, uid)
}

// WithoutMember returns a copy of uids with uid removed.
func WithoutMember(uids []string, uid string) []string {
	result := make([]string, 0, len(uids))
	for _, member := range uids {
		if member != uid {
			result = append(result, member)
		}
	}
	return result
}

// StatusLabel returns a stable label for a campaign status.
func StatusLabel(status Status) string {
	switch status {
	case StatusActive:
		return "ACTIVE"
	case StatusArchived:
		return "ARCHIVED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ACTIVE":
		return StatusActive
	case "ARCHIVED":
		return StatusArchived
	default:
		return StatusUnspecified
	}
}
