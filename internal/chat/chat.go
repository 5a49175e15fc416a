// Package chat provides campaign chat messages and private whispers.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

// Message is one entry in a campaign's shared chat.
type Message struct {
	ID          string
	CampaignID  string
	UID         string
	DisplayName string
	Content     string
	CreatedAt   time.Time
}

// Whisper is a private DM-to-player or player-to-DM message.
type Whisper struct {
	ID         string
	CampaignID string
	FromUID    string
	ToUID      string
	Content    string
	CreatedAt  time.Time
}

// NewMessage creates a chat message with a generated ID.
func NewMessage(campaignID, uid, displayName, content string, now func() time.Time, idGenerator func() (string, error)) (Message, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, fmt.Errorf("message content is required")
	}
	messageID, err := idGenerator()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}
	return Message{
		ID:          messageID,
		CampaignID:  campaignID,
		UID:         uid,
		DisplayName: displayName,
		Content:     content,
		CreatedAt:   now().UTC(),
	}, nil
}

// NewWhisper creates a whisper with a generated ID.
func NewWhisper(campaignID, fromUID, toUID, content string, now func() time.Time, idGenerator func() (string, error)) (Whisper, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Whisper{}, fmt.Errorf("whisper content is required")
	}
	whisperID, err := idGenerator()
	if err != nil {
		return Whisper{}, fmt.Errorf("generate whisper id: %w", err)
	}
	return Whisper{
		ID:         whisperID,
		CampaignID: campaignID,
		FromUID:    fromUID,
		ToUID:      toUID,
		Content:    content,
		CreatedAt:  now().UTC(),
	}, nil
}
