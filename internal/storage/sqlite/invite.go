package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/campaign/invite"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

const inviteColumns = `id, campaign_id, campaign_name, email, invited_by_uid,
	invited_by_name, status, created_at, expires_at`

func scanInvite(row rowScanner) (invite.Invite, error) {
	var record invite.Invite
	var status string
	var createdAt, expiresAt int64
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.CampaignName,
		&record.Email,
		&record.InvitedByUID,
		&record.InvitedByName,
		&status,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		return invite.Invite{}, err
	}
	record.Status = invite.StatusFromLabel(status)
	record.CreatedAt = fromMillis(createdAt)
	record.ExpiresAt = fromMillis(expiresAt)
	return record, nil
}

// CreateInvite inserts one invite. A pending invite already covering the
// same (campaign, email) pair fails with ErrDuplicate.
func (s *Store) CreateInvite(ctx context.Context, record invite.Invite) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO invites (
		   id, campaign_id, campaign_name, email, invited_by_uid,
		   invited_by_name, status, created_at, expires_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CampaignID,
		record.CampaignName,
		record.Email,
		record.InvitedByUID,
		record.InvitedByName,
		invite.StatusLabel(record.Status),
		toMillis(record.CreatedAt),
		toMillis(record.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invite for %s: %w", record.Email, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	s.publish(storage.CollectionInvites, storage.ChangeCreated, record.CampaignID, record.ID)
	return nil
}

// GetInvite loads one invite by id.
func (s *Store) GetInvite(ctx context.Context, inviteID string) (invite.Invite, error) {
	if err := s.ready(ctx); err != nil {
		return invite.Invite{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE id = ?`,
		inviteID,
	)
	record, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invite.Invite{}, fmt.Errorf("invite %s: %w", inviteID, storage.ErrNotFound)
		}
		return invite.Invite{}, fmt.Errorf("query invite: %w", err)
	}
	return record, nil
}

// UpdateInviteStatus sets an invite's lifecycle status.
func (s *Store) UpdateInviteStatus(ctx context.Context, inviteID string, status invite.Status) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	var campaignID string
	row := s.sqlDB.QueryRowContext(ctx, `SELECT campaign_id FROM invites WHERE id = ?`, inviteID)
	if err := row.Scan(&campaignID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("invite %s: %w", inviteID, storage.ErrNotFound)
		}
		return fmt.Errorf("query invite: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE invites SET status = ? WHERE id = ?`,
		invite.StatusLabel(status),
		inviteID,
	); err != nil {
		return fmt.Errorf("update invite status: %w", err)
	}
	s.publish(storage.CollectionInvites, storage.ChangeUpdated, campaignID, inviteID)
	return nil
}

// AcceptInviteWithMember flips a pending invite to accepted and writes the
// membership record in one transaction. A non-pending invite fails with
// ErrConflict so double-acceptance is visible to the caller.
func (s *Store) AcceptInviteWithMember(ctx context.Context, inviteID string, member campaigndomain.Member) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE invites SET status = ? WHERE id = ? AND status = ?`,
		invite.StatusLabel(invite.StatusAccepted),
		inviteID,
		invite.StatusLabel(invite.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept invite rows: %w", err)
	}
	if affected == 0 {
		var status string
		row := tx.QueryRowContext(ctx, `SELECT status FROM invites WHERE id = ?`, inviteID)
		if scanErr := row.Scan(&status); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("invite %s: %w", inviteID, storage.ErrNotFound)
			}
			return fmt.Errorf("query invite status: %w", scanErr)
		}
		return fmt.Errorf("invite %s is %s: %w", inviteID, status, storage.ErrConflict)
	}
	if err := insertMember(ctx, tx, member); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invite acceptance: %w", err)
	}
	s.publish(storage.CollectionInvites, storage.ChangeUpdated, member.CampaignID, inviteID)
	s.publish(storage.CollectionMembers, storage.ChangeCreated, member.CampaignID, member.UID)
	return nil
}

// ListPendingInvitesByEmail returns pending invites for an email, newest
// first. Expired entries are filtered by the caller at read time.
func (s *Store) ListPendingInvitesByEmail(ctx context.Context, email string) ([]invite.Invite, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+inviteColumns+`
		 FROM invites WHERE email = ? AND status = ?
		 ORDER BY created_at DESC`,
		email,
		invite.StatusLabel(invite.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}
	defer rows.Close()

	var invites []invite.Invite
	for rows.Next() {
		record, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return invites, nil
}

// DeleteInvitesForCampaign removes every invite for a campaign.
func (s *Store) DeleteInvitesForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM invites WHERE campaign_id = ?`,
		campaignID,
	); err != nil {
		return fmt.Errorf("delete invites: %w", err)
	}
	s.publish(storage.CollectionInvites, storage.ChangeDeleted, campaignID, "")
	return nil
}
