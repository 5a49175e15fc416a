package domain

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
)

// Role describes a member's role within a campaign.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleDM indicates the campaign owner and referee.
	RoleDM
	// RolePlayer indicates a regular player.
	RolePlayer
)

var (
	// ErrEmptyMemberUID indicates a missing member identity.
	ErrEmptyMemberUID = apperrors.New(apperrors.CodeMemberEmptyUID, "member uid is required")
	// ErrEmptyMemberCampaignID indicates a missing campaign reference.
	ErrEmptyMemberCampaignID = apperrors.New(apperrors.CodeMemberEmptyCampaignID, "campaign id is required")
	// ErrInvalidRole indicates a missing or invalid member role.
	ErrInvalidRole = apperrors.New(apperrors.CodeMemberInvalidRole, "member role is required")
	// ErrEmptyDisplayName indicates a missing display name.
	ErrEmptyDisplayName = apperrors.New(apperrors.CodeMemberEmptyDisplayName, "display name is required")
)

// CharacterSummary is a denormalized snapshot of an assigned character.
// It is refreshed whenever the assignment changes and is not live-synced
// thereafter.
type CharacterSummary struct {
	Name              string
	Race              string
	Class             string
	Level             int
	PortraitURL       string
	HP                int
	MaxHP             int
	AC                int
	Initiative        int
	PassivePerception int
	TopSkills         []string
	TopFeatures       []string
	PrimaryAttack     string
	JournalPreview    string
}

// Member represents one (campaign, identity) membership record.
type Member struct {
	CampaignID  string
	UID         string
	DisplayName string
	Role        Role
	CharacterID string
	// CharacterSummary is nil until a character is assigned.
	CharacterSummary *CharacterSummary
	JoinedAt         time.Time
}

// CreateMemberInput describes the data needed to create a membership record.
type CreateMemberInput struct {
	CampaignID  string
	UID         string
	DisplayName string
	Role        Role
	CharacterID string
}

// CreateMember creates a membership record keyed by identity.
func CreateMember(input CreateMemberInput, now func() time.Time) (Member, error) {
	if now == nil {
		now = time.Now
	}

	normalized, err := NormalizeCreateMemberInput(input)
	if err != nil {
		return Member{}, err
	}

	return Member{
		CampaignID:  normalized.CampaignID,
		UID:         normalized.UID,
		DisplayName: normalized.DisplayName,
		Role:        normalized.Role,
		CharacterID: normalized.CharacterID,
		JoinedAt:    now().UTC(),
	}, nil
}

// NormalizeCreateMemberInput trims and validates membership input.
func NormalizeCreateMemberInput(input CreateMemberInput) (CreateMemberInput, error) {
	input.CampaignID = strings.TrimSpace(input.CampaignID)
	if input.CampaignID == "" {
		return CreateMemberInput{}, ErrEmptyMemberCampaignID
	}
	input.UID = strings.TrimSpace(input.UID)
	if input.UID == "" {
		return CreateMemberInput{}, ErrEmptyMemberUID
	}
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		return CreateMemberInput{}, ErrEmptyDisplayName
	}
	if input.Role != RoleDM && input.Role != RolePlayer {
		return CreateMemberInput{}, ErrInvalidRole
	}
	return input, nil
}

// RoleLabel returns a stable label for a member role.
func RoleLabel(role Role) string {
	switch role {
	case RoleDM:
		return "DM"
	case RolePlayer:
		return "PLAYER"
	default:
		return "UNSPECIFIED"
	}
}

// RoleFromLabel converts a role label to a Role value.
func RoleFromLabel(label string) Role {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "DM":
		return RoleDM
	case "PLAYER":
		return RolePlayer
	default:
		return RoleUnspecified
	}
}
