// Package note provides DM note records.
package note

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

var (
	// ErrEmptyTitle indicates a missing note title.
	ErrEmptyTitle = apperrors.New(apperrors.CodeNoteEmptyTitle, "note title is required")
	// ErrInvalidTag indicates a missing or invalid note tag.
	ErrInvalidTag = apperrors.New(apperrors.CodeNoteInvalidTag, "note tag is required")
)

// Tag categorizes a DM note.
type Tag string

const (
	TagSession  Tag = "session"
	TagEvent    Tag = "event"
	TagNPC      Tag = "npc"
	TagLocation Tag = "location"
	TagLore     Tag = "lore"
	TagQuest    Tag = "quest"
)

// ValidTag reports whether the tag is one of the known categories.
func ValidTag(tag Tag) bool {
	switch tag {
	case TagSession, TagEvent, TagNPC, TagLocation, TagLore, TagQuest:
		return true
	default:
		return false
	}
}

// Note is a DM-authored campaign note.
type Note struct {
	ID         string
	CampaignID string
	Tag        Tag
	Title      string
	Content    string
	Tags       []string
	// SessionNumber is set for session-scoped notes only.
	SessionNumber *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateNoteInput describes the data needed to create a note.
type CreateNoteInput struct {
	CampaignID    string
	Tag           Tag
	Title         string
	Content       string
	Tags          []string
	SessionNumber *int
}

// CreateNote creates a note with a generated ID and timestamps.
func CreateNote(input CreateNoteInput, now func() time.Time, idGenerator func() (string, error)) (Note, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Note{}, ErrEmptyTitle
	}
	if !ValidTag(input.Tag) {
		return Note{}, ErrInvalidTag
	}

	noteID, err := idGenerator()
	if err != nil {
		return Note{}, fmt.Errorf("generate note id: %w", err)
	}

	createdAt := now().UTC()
	return Note{
		ID:            noteID,
		CampaignID:    strings.TrimSpace(input.CampaignID),
		Tag:           input.Tag,
		Title:         input.Title,
		Content:       input.Content,
		Tags:          input.Tags,
		SessionNumber: input.SessionNumber,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}
