package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/wyrmtable/internal/chat"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// AppendMessage inserts one chat message.
func (s *Store) AppendMessage(ctx context.Context, record chat.Message) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (campaign_id, id, uid, display_name, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.CampaignID,
		record.ID,
		record.UID,
		record.DisplayName,
		record.Content,
		toMillis(record.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", record.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	s.publish(storage.CollectionMessages, storage.ChangeCreated, record.CampaignID, record.ID)
	return nil
}

// ListMessages returns a campaign's chat messages in send order.
func (s *Store) ListMessages(ctx context.Context, campaignID string) ([]chat.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT campaign_id, id, uid, display_name, content, created_at
		 FROM messages WHERE campaign_id = ?
		 ORDER BY created_at, id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var record chat.Message
		var createdAt int64
		if err := rows.Scan(&record.CampaignID, &record.ID, &record.UID, &record.DisplayName, &record.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		messages = append(messages, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteMessagesForCampaign removes every chat message for a campaign.
func (s *Store) DeleteMessagesForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM messages WHERE campaign_id = ?`,
		campaignID,
	); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	s.publish(storage.CollectionMessages, storage.ChangeDeleted, campaignID, "")
	return nil
}

// AppendWhisper inserts one private whisper.
func (s *Store) AppendWhisper(ctx context.Context, record chat.Whisper) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO whispers (campaign_id, id, from_uid, to_uid, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.CampaignID,
		record.ID,
		record.FromUID,
		record.ToUID,
		record.Content,
		toMillis(record.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("whisper %s: %w", record.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert whisper: %w", err)
	}
	s.publish(storage.CollectionWhispers, storage.ChangeCreated, record.CampaignID, record.ID)
	return nil
}

// ListWhispers returns whispers the uid sent or received, in send order.
func (s *Store) ListWhispers(ctx context.Context, campaignID, uid string) ([]chat.Whisper, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT campaign_id, id, from_uid, to_uid, content, created_at
		 FROM whispers
		 WHERE campaign_id = ? AND (from_uid = ? OR to_uid = ?)
		 ORDER BY created_at, id`,
		campaignID,
		uid,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("query whispers: %w", err)
	}
	defer rows.Close()

	var whispers []chat.Whisper
	for rows.Next() {
		var record chat.Whisper
		var createdAt int64
		if err := rows.Scan(&record.CampaignID, &record.ID, &record.FromUID, &record.ToUID, &record.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan whisper: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		whispers = append(whispers, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whispers: %w", err)
	}
	return whispers, nil
}

// DeleteWhispersForCampaign removes every whisper for a campaign.
func (s *Store) DeleteWhispersForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM whispers WHERE campaign_id = ?`,
		campaignID,
	); err != nil {
		return fmt.Errorf("delete whispers: %w", err)
	}
	s.publish(storage.CollectionWhispers, storage.ChangeDeleted, campaignID, "")
	return nil
}
