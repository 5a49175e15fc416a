package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

const memberColumns = `campaign_id, uid, display_name, role, character_id,
	character_summary, joined_at`

func scanMember(row rowScanner) (campaigndomain.Member, error) {
	var member campaigndomain.Member
	var role string
	var summary sql.NullString
	var joinedAt int64
	err := row.Scan(
		&member.CampaignID,
		&member.UID,
		&member.DisplayName,
		&role,
		&member.CharacterID,
		&summary,
		&joinedAt,
	)
	if err != nil {
		return campaigndomain.Member{}, err
	}
	member.Role = campaigndomain.RoleFromLabel(role)
	if summary.Valid && summary.String != "" {
		var decoded campaigndomain.CharacterSummary
		if err := decodeJSON(summary.String, &decoded); err != nil {
			return campaigndomain.Member{}, fmt.Errorf("decode character summary: %w", err)
		}
		member.CharacterSummary = &decoded
	}
	member.JoinedAt = fromMillis(joinedAt)
	return member, nil
}

func insertMember(ctx context.Context, db execer, member campaigndomain.Member) error {
	var summary any
	if member.CharacterSummary != nil {
		encoded, err := encodeJSON(member.CharacterSummary)
		if err != nil {
			return fmt.Errorf("encode character summary: %w", err)
		}
		summary = encoded
	}
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO members (
		   campaign_id, uid, display_name, role, character_id,
		   character_summary, joined_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (campaign_id, uid) DO UPDATE SET
		   display_name = excluded.display_name,
		   role = excluded.role,
		   character_id = excluded.character_id,
		   character_summary = excluded.character_summary`,
		member.CampaignID,
		member.UID,
		member.DisplayName,
		campaigndomain.RoleLabel(member.Role),
		member.CharacterID,
		summary,
		toMillis(member.JoinedAt),
	)
	return err
}

// PutMember upserts one membership record keyed by (campaign, uid).
func (s *Store) PutMember(ctx context.Context, member campaigndomain.Member) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := insertMember(ctx, s.sqlDB, member); err != nil {
		return fmt.Errorf("put member: %w", err)
	}
	s.publish(storage.CollectionMembers, storage.ChangeUpdated, member.CampaignID, member.UID)
	return nil
}

// GetMember loads one membership record.
func (s *Store) GetMember(ctx context.Context, campaignID, uid string) (campaigndomain.Member, error) {
	if err := s.ready(ctx); err != nil {
		return campaigndomain.Member{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+memberColumns+` FROM members WHERE campaign_id = ? AND uid = ?`,
		campaignID,
		uid,
	)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaigndomain.Member{}, fmt.Errorf("member %s: %w", uid, storage.ErrNotFound)
		}
		return campaigndomain.Member{}, fmt.Errorf("query member: %w", err)
	}
	return member, nil
}

// DeleteMember removes one membership record.
func (s *Store) DeleteMember(ctx context.Context, campaignID, uid string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM members WHERE campaign_id = ? AND uid = ?`,
		campaignID,
		uid,
	)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete member rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %s: %w", uid, storage.ErrNotFound)
	}
	s.publish(storage.CollectionMembers, storage.ChangeDeleted, campaignID, uid)
	return nil
}

// ListMembers returns every membership record for a campaign in join order.
func (s *Store) ListMembers(ctx context.Context, campaignID string) ([]campaigndomain.Member, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+memberColumns+` FROM members WHERE campaign_id = ? ORDER BY joined_at, uid`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []campaigndomain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// DeleteMembers removes every membership record for a campaign.
func (s *Store) DeleteMembers(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM members WHERE campaign_id = ?`,
		campaignID,
	); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	s.publish(storage.CollectionMembers, storage.ChangeDeleted, campaignID, "")
	return nil
}
