package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

const campaignColumns = `id, name, dm_uid, description, join_code, status,
	session_number, allow_player_invites, default_character_visibility,
	active_encounter_id, member_uids, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (campaigndomain.Campaign, error) {
	var campaign campaigndomain.Campaign
	var status, memberUIDs string
	var allowInvites int
	var createdAt, updatedAt int64
	err := row.Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.DmUID,
		&campaign.Description,
		&campaign.JoinCode,
		&status,
		&campaign.CurrentSessionNumber,
		&allowInvites,
		&campaign.Settings.DefaultCharacterVisibility,
		&campaign.ActiveEncounterID,
		&memberUIDs,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return campaigndomain.Campaign{}, err
	}
	campaign.Status = campaigndomain.StatusFromLabel(status)
	campaign.Settings.AllowPlayerInvites = allowInvites != 0
	if err := decodeJSON(memberUIDs, &campaign.MemberUIDs); err != nil {
		return campaigndomain.Campaign{}, fmt.Errorf("decode member uids: %w", err)
	}
	campaign.CreatedAt = fromMillis(createdAt)
	campaign.UpdatedAt = fromMillis(updatedAt)
	return campaign, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCampaign(ctx context.Context, db execer, campaign campaigndomain.Campaign) error {
	memberUIDs, err := encodeStrings(campaign.MemberUIDs)
	if err != nil {
		return fmt.Errorf("encode member uids: %w", err)
	}
	allowInvites := 0
	if campaign.Settings.AllowPlayerInvites {
		allowInvites = 1
	}
	_, err = db.ExecContext(
		ctx,
		`INSERT INTO campaigns (
		   id, name, dm_uid, description, join_code, status,
		   session_number, allow_player_invites, default_character_visibility,
		   active_encounter_id, member_uids, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		campaign.ID,
		campaign.Name,
		campaign.DmUID,
		campaign.Description,
		strings.ToUpper(campaign.JoinCode),
		campaigndomain.StatusLabel(campaign.Status),
		campaign.CurrentSessionNumber,
		allowInvites,
		campaign.Settings.DefaultCharacterVisibility,
		campaign.ActiveEncounterID,
		memberUIDs,
		toMillis(campaign.CreatedAt),
		toMillis(campaign.UpdatedAt),
	)
	return err
}

// CreateCampaignWithDM writes the campaign and its DM membership record in
// one transaction so the campaign is never visible without its owner.
func (s *Store) CreateCampaignWithDM(ctx context.Context, campaign campaigndomain.Campaign, dm campaigndomain.Member) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertCampaign(ctx, tx, campaign); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("campaign %s: %w", campaign.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	if err := insertMember(ctx, tx, dm); err != nil {
		return fmt.Errorf("insert dm member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit campaign creation: %w", err)
	}
	s.publish(storage.CollectionCampaigns, storage.ChangeCreated, campaign.ID, campaign.ID)
	s.publish(storage.CollectionMembers, storage.ChangeCreated, campaign.ID, dm.UID)
	return nil
}

// GetCampaign loads one campaign by id.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (campaigndomain.Campaign, error) {
	if err := s.ready(ctx); err != nil {
		return campaigndomain.Campaign{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`,
		campaignID,
	)
	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaigndomain.Campaign{}, fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
		}
		return campaigndomain.Campaign{}, fmt.Errorf("query campaign: %w", err)
	}
	return campaign, nil
}

// PutCampaign overwrites campaign metadata last-write-wins.
func (s *Store) PutCampaign(ctx context.Context, campaign campaigndomain.Campaign) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	memberUIDs, err := encodeStrings(campaign.MemberUIDs)
	if err != nil {
		return fmt.Errorf("encode member uids: %w", err)
	}
	allowInvites := 0
	if campaign.Settings.AllowPlayerInvites {
		allowInvites = 1
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE campaigns SET
		   name = ?, dm_uid = ?, description = ?, join_code = ?, status = ?,
		   session_number = ?, allow_player_invites = ?,
		   default_character_visibility = ?, active_encounter_id = ?,
		   member_uids = ?, updated_at = ?
		 WHERE id = ?`,
		campaign.Name,
		campaign.DmUID,
		campaign.Description,
		strings.ToUpper(campaign.JoinCode),
		campaigndomain.StatusLabel(campaign.Status),
		campaign.CurrentSessionNumber,
		allowInvites,
		campaign.Settings.DefaultCharacterVisibility,
		campaign.ActiveEncounterID,
		memberUIDs,
		toMillis(campaign.UpdatedAt),
		campaign.ID,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("campaign %s: %w", campaign.ID, storage.ErrNotFound)
	}
	s.publish(storage.CollectionCampaigns, storage.ChangeUpdated, campaign.ID, campaign.ID)
	return nil
}

// DeleteCampaign removes the campaign document only. Subcollection cascades
// are the caller's responsibility so deletion order stays explicit.
func (s *Store) DeleteCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, campaignID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete campaign rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
	}
	s.publish(storage.CollectionCampaigns, storage.ChangeDeleted, campaignID, campaignID)
	return nil
}

// GetCampaignByJoinCode resolves a join code to an active campaign. Lookups
// are case-insensitive; archived campaigns never match.
func (s *Store) GetCampaignByJoinCode(ctx context.Context, code string) (campaigndomain.Campaign, error) {
	if err := s.ready(ctx); err != nil {
		return campaigndomain.Campaign{}, err
	}
	normalized := campaigndomain.NormalizeJoinCode(code)
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE join_code = ? AND status = ?`,
		normalized,
		campaigndomain.StatusLabel(campaigndomain.StatusActive),
	)
	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaigndomain.Campaign{}, fmt.Errorf("join code %s: %w", normalized, storage.ErrNotFound)
		}
		return campaigndomain.Campaign{}, fmt.Errorf("query campaign by join code: %w", err)
	}
	return campaign, nil
}

// ListCampaignsForUser returns active campaigns whose membership index
// contains uid, newest first.
func (s *Store) ListCampaignsForUser(ctx context.Context, uid string) ([]campaigndomain.Campaign, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT campaigns.id, campaigns.name, campaigns.dm_uid, campaigns.description,
		 campaigns.join_code, campaigns.status, campaigns.session_number,
		 campaigns.allow_player_invites, campaigns.default_character_visibility,
		 campaigns.active_encounter_id, campaigns.member_uids, campaigns.created_at,
		 campaigns.updated_at
		 FROM campaigns, json_each(campaigns.member_uids)
		 WHERE json_each.value = ? AND campaigns.status = ?
		 ORDER BY campaigns.created_at DESC`,
		uid,
		campaigndomain.StatusLabel(campaigndomain.StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("query campaigns for user: %w", err)
	}
	defer rows.Close()

	var campaigns []campaigndomain.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return campaigns, nil
}

// AddMemberUID inserts uid into the campaign's membership index. The
// read-modify-write runs in one transaction so concurrent index updates
// serialize.
func (s *Store) AddMemberUID(ctx context.Context, campaignID, uid string) error {
	return s.mutateMemberUIDs(ctx, campaignID, uid, true)
}

// RemoveMemberUID removes uid from the campaign's membership index. A
// missing campaign is a no-op because the parent may already be deleted when
// a trailing member deletion is observed.
func (s *Store) RemoveMemberUID(ctx context.Context, campaignID, uid string) error {
	return s.mutateMemberUIDs(ctx, campaignID, uid, false)
}

func (s *Store) mutateMemberUIDs(ctx context.Context, campaignID, uid string, add bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var encoded string
	row := tx.QueryRowContext(ctx, `SELECT member_uids FROM campaigns WHERE id = ?`, campaignID)
	if err := row.Scan(&encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if !add {
				return nil
			}
			return fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
		}
		return fmt.Errorf("query member uids: %w", err)
	}

	var uids []string
	if err := decodeJSON(encoded, &uids); err != nil {
		return fmt.Errorf("decode member uids: %w", err)
	}
	var updated []string
	if add {
		updated = campaigndomain.WithMember(uids, uid)
	} else {
		updated = campaigndomain.WithoutMember(uids, uid)
	}
	if len(updated) == len(uids) {
		return nil
	}

	encoded, err = encodeStrings(updated)
	if err != nil {
		return fmt.Errorf("encode member uids: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE campaigns SET member_uids = ?, updated_at = ? WHERE id = ?`,
		encoded,
		toMillis(s.now().UTC()),
		campaignID,
	); err != nil {
		return fmt.Errorf("update member uids: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit member uids: %w", err)
	}
	s.publish(storage.CollectionCampaigns, storage.ChangeUpdated, campaignID, campaignID)
	return nil
}
