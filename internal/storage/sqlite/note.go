package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/wyrmtable/internal/note"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

const noteColumns = `campaign_id, id, tag, title, content, tags,
	session_number, created_at, updated_at`

func scanNote(row rowScanner) (note.Note, error) {
	var record note.Note
	var tag, tags string
	var sessionNumber sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.CampaignID,
		&record.ID,
		&tag,
		&record.Title,
		&record.Content,
		&tags,
		&sessionNumber,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return note.Note{}, err
	}
	record.Tag = note.Tag(tag)
	if err := decodeJSON(tags, &record.Tags); err != nil {
		return note.Note{}, fmt.Errorf("decode tags: %w", err)
	}
	if sessionNumber.Valid {
		value := int(sessionNumber.Int64)
		record.SessionNumber = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// PutNote upserts one DM note.
func (s *Store) PutNote(ctx context.Context, record note.Note) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tags, err := encodeStrings(record.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	var sessionNumber any
	if record.SessionNumber != nil {
		sessionNumber = *record.SessionNumber
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO notes (
		   campaign_id, id, tag, title, content, tags,
		   session_number, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (campaign_id, id) DO UPDATE SET
		   tag = excluded.tag,
		   title = excluded.title,
		   content = excluded.content,
		   tags = excluded.tags,
		   session_number = excluded.session_number,
		   updated_at = excluded.updated_at`,
		record.CampaignID,
		record.ID,
		string(record.Tag),
		record.Title,
		record.Content,
		tags,
		sessionNumber,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put note: %w", err)
	}
	s.publish(storage.CollectionNotes, storage.ChangeUpdated, record.CampaignID, record.ID)
	return nil
}

// GetNote loads one note.
func (s *Store) GetNote(ctx context.Context, campaignID, noteID string) (note.Note, error) {
	if err := s.ready(ctx); err != nil {
		return note.Note{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+noteColumns+` FROM notes WHERE campaign_id = ? AND id = ?`,
		campaignID,
		noteID,
	)
	record, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return note.Note{}, fmt.Errorf("note %s: %w", noteID, storage.ErrNotFound)
		}
		return note.Note{}, fmt.Errorf("query note: %w", err)
	}
	return record, nil
}

// DeleteNote removes one note.
func (s *Store) DeleteNote(ctx context.Context, campaignID, noteID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM notes WHERE campaign_id = ? AND id = ?`,
		campaignID,
		noteID,
	)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("note %s: %w", noteID, storage.ErrNotFound)
	}
	s.publish(storage.CollectionNotes, storage.ChangeDeleted, campaignID, noteID)
	return nil
}

// ListNotes returns a campaign's notes, newest first.
func (s *Store) ListNotes(ctx context.Context, campaignID string) ([]note.Note, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+noteColumns+` FROM notes WHERE campaign_id = ?
		 ORDER BY created_at DESC, id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		record, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// DeleteNotesForCampaign removes every note for a campaign.
func (s *Store) DeleteNotesForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM notes WHERE campaign_id = ?`,
		campaignID,
	); err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	s.publish(storage.CollectionNotes, storage.ChangeDeleted, campaignID, "")
	return nil
}
