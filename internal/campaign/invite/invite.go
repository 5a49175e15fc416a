// Package invite provides campaign email-invite management.
package invite

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

// TTL is how long an invite stays acceptable after creation.
const TTL = 7 * 24 * time.Hour

var (
	// ErrEmptyCampaignID indicates a missing campaign ID.
	ErrEmptyCampaignID = apperrors.New(apperrors.CodeInviteEmptyCampaignID, "campaign id is required")
	// ErrEmptyEmail indicates a missing invitee email.
	ErrEmptyEmail = apperrors.New(apperrors.CodeInviteEmptyEmail, "email is required")
)

// Status represents the lifecycle status of an invite.
type Status int

const (
	// StatusUnspecified represents an invalid invite status.
	StatusUnspecified Status = iota
	// StatusPending indicates an invite is awaiting a response.
	StatusPending
	// StatusAccepted indicates an invite was accepted.
	StatusAccepted
	// StatusDeclined indicates an invite was declined or expired.
	StatusDeclined
)

// Invite represents one outstanding email invite to a campaign.
type Invite struct {
	ID            string
	CampaignID    string
	CampaignName  string
	Email         string
	InvitedByUID  string
	InvitedByName string
	Status        Status
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// CreateInviteInput describes the metadata needed to create an invite.
type CreateInviteInput struct {
	CampaignID    string
	CampaignName  string
	Email         string
	InvitedByUID  string
	InvitedByName string
}

// CreateInvite creates a pending invite with a generated ID and a TTL expiry.
func CreateInvite(input CreateInviteInput, now func() time.Time, idGenerator func() (string, error)) (Invite, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInviteInput(input)
	if err != nil {
		return Invite{}, err
	}

	inviteID, err := idGenerator()
	if err != nil {
		return Invite{}, fmt.Errorf("generate invite id: %w", err)
	}

	createdAt := now().UTC()
	return Invite{
		ID:            inviteID,
		CampaignID:    normalized.CampaignID,
		CampaignName:  normalized.CampaignName,
		Email:         normalized.Email,
		InvitedByUID:  normalized.InvitedByUID,
		InvitedByName: normalized.InvitedByName,
		Status:        StatusPending,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(TTL),
	}, nil
}

// NormalizeCreateInviteInput trims and validates invite input metadata.
// Emails are lowercased so lookups are case-insensitive.
func NormalizeCreateInviteInput(input CreateInviteInput) (CreateInviteInput, error) {
	input.CampaignID = strings.TrimSpace(input.CampaignID)
	if input.CampaignID == "" {
		return CreateInviteInput{}, ErrEmptyCampaignID
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" {
		return CreateInviteInput{}, ErrEmptyEmail
	}
	input.CampaignName = strings.TrimSpace(input.CampaignName)
	input.InvitedByUID = strings.TrimSpace(input.InvitedByUID)
	input.InvitedByName = strings.TrimSpace(input.InvitedByName)
	return input, nil
}

// Expired reports whether the invite is past its expiry at the given time.
func (i Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// StatusLabel returns the string label for an invite status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusDeclined:
		return "DECLINED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending
	case "ACCEPTED":
		return StatusAccepted
	case "DECLINED":
		return StatusDeclined
	default:
		return StatusUnspecified
	}
}
