package sqlite

import (
	"context"
	"fmt"

	encounterdomain "github.com/louisbranch/wyrmtable/internal/encounter/domain"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// PutTemplate upserts one saved encounter template.
func (s *Store) PutTemplate(ctx context.Context, record encounterdomain.Template) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	combatants, err := encodeJSON(record.Combatants)
	if err != nil {
		return fmt.Errorf("encode combatants: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO templates (campaign_id, id, name, combatants, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (campaign_id, id) DO UPDATE SET
		   name = excluded.name,
		   combatants = excluded.combatants`,
		record.CampaignID,
		record.ID,
		record.Name,
		combatants,
		toMillis(record.CreatedAt),
	); err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	s.publish(storage.CollectionTemplates, storage.ChangeUpdated, record.CampaignID, record.ID)
	return nil
}

// ListTemplates returns a campaign's saved templates, newest first.
func (s *Store) ListTemplates(ctx context.Context, campaignID string) ([]encounterdomain.Template, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT campaign_id, id, name, combatants, created_at
		 FROM templates WHERE campaign_id = ?
		 ORDER BY created_at DESC, id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []encounterdomain.Template
	for rows.Next() {
		var record encounterdomain.Template
		var combatants string
		var createdAt int64
		if err := rows.Scan(&record.CampaignID, &record.ID, &record.Name, &combatants, &createdAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if err := decodeJSON(combatants, &record.Combatants); err != nil {
			return nil, fmt.Errorf("decode combatants: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		templates = append(templates, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes one saved template.
func (s *Store) DeleteTemplate(ctx context.Context, campaignID, templateID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM templates WHERE campaign_id = ? AND id = ?`,
		campaignID,
		templateID,
	)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("template %s: %w", templateID, storage.ErrNotFound)
	}
	s.publish(storage.CollectionTemplates, storage.ChangeDeleted, campaignID, templateID)
	return nil
}

// DeleteTemplatesForCampaign removes every template for a campaign.
func (s *Store) DeleteTemplatesForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM templates WHERE campaign_id = ?`,
		campaignID,
	); err != nil {
		return fmt.Errorf("delete templates: %w", err)
	}
	s.publish(storage.CollectionTemplates, storage.ChangeDeleted, campaignID, "")
	return nil
}
