package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/wyrmtable/internal/roll"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

// CreateRollRequest inserts one roll request with an empty response list.
func (s *Store) CreateRollRequest(ctx context.Context, record roll.Request) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	targets, err := encodeStrings(record.TargetUIDs)
	if err != nil {
		return fmt.Errorf("encode target uids: %w", err)
	}
	var dc any
	if record.DC != nil {
		dc = *record.DC
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO roll_requests (campaign_id, id, dm_uid, type, dc, target_uids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.CampaignID,
		record.ID,
		record.DmUID,
		record.Type,
		dc,
		targets,
		toMillis(record.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("roll request %s: %w", record.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert roll request: %w", err)
	}
	s.publish(storage.CollectionRollRequests, storage.ChangeCreated, record.CampaignID, record.ID)
	return nil
}

func (s *Store) loadRollResponses(ctx context.Context, campaignID, requestID string) ([]roll.Response, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT uid, display_name, result, ts
		 FROM roll_responses
		 WHERE campaign_id = ? AND request_id = ?
		 ORDER BY ts, uid`,
		campaignID,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roll responses: %w", err)
	}
	defer rows.Close()

	var responses []roll.Response
	for rows.Next() {
		var response roll.Response
		var result string
		var ts int64
		if err := rows.Scan(&response.UID, &response.DisplayName, &result, &ts); err != nil {
			return nil, fmt.Errorf("scan roll response: %w", err)
		}
		if err := decodeJSON(result, &response.Result); err != nil {
			return nil, fmt.Errorf("decode roll result: %w", err)
		}
		response.Timestamp = fromMillis(ts)
		responses = append(responses, response)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roll responses: %w", err)
	}
	return responses, nil
}

func scanRollRequest(row rowScanner) (roll.Request, error) {
	var record roll.Request
	var dc sql.NullInt64
	var targets string
	var createdAt int64
	err := row.Scan(
		&record.CampaignID,
		&record.ID,
		&record.DmUID,
		&record.Type,
		&dc,
		&targets,
		&createdAt,
	)
	if err != nil {
		return roll.Request{}, err
	}
	if dc.Valid {
		value := int(dc.Int64)
		record.DC = &value
	}
	if err := decodeJSON(targets, &record.TargetUIDs); err != nil {
		return roll.Request{}, fmt.Errorf("decode target uids: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// GetRollRequest loads one roll request including its accumulated responses.
func (s *Store) GetRollRequest(ctx context.Context, campaignID, requestID string) (roll.Request, error) {
	if err := s.ready(ctx); err != nil {
		return roll.Request{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT campaign_id, id, dm_uid, type, dc, target_uids, created_at
		 FROM roll_requests WHERE campaign_id = ? AND id = ?`,
		campaignID,
		requestID,
	)
	record, err := scanRollRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roll.Request{}, fmt.Errorf("roll request %s: %w", requestID, storage.ErrNotFound)
		}
		return roll.Request{}, fmt.Errorf("query roll request: %w", err)
	}
	record.Responses, err = s.loadRollResponses(ctx, campaignID, requestID)
	if err != nil {
		return roll.Request{}, err
	}
	return record, nil
}

// AppendRollResponse records one response. The responses table's primary key
// rejects a second response from the same uid with ErrDuplicate, so the
// first write wins regardless of interleaving.
func (s *Store) AppendRollResponse(ctx context.Context, campaignID, requestID string, response roll.Response) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	var exists int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM roll_requests WHERE campaign_id = ? AND id = ?`,
		campaignID,
		requestID,
	)
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("roll request %s: %w", requestID, storage.ErrNotFound)
		}
		return fmt.Errorf("query roll request: %w", err)
	}
	result, err := encodeJSON(response.Result)
	if err != nil {
		return fmt.Errorf("encode roll result: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO roll_responses (campaign_id, request_id, uid, display_name, result, ts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		campaignID,
		requestID,
		response.UID,
		response.DisplayName,
		result,
		toMillis(response.Timestamp),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("response from %s: %w", response.UID, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert roll response: %w", err)
	}
	s.publish(storage.CollectionRollRequests, storage.ChangeUpdated, campaignID, requestID)
	return nil
}

// ListRollRequests returns a campaign's roll requests, newest first, with
// responses attached.
func (s *Store) ListRollRequests(ctx context.Context, campaignID string) ([]roll.Request, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT campaign_id, id, dm_uid, type, dc, target_uids, created_at
		 FROM roll_requests WHERE campaign_id = ?
		 ORDER BY created_at DESC, id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roll requests: %w", err)
	}
	defer rows.Close()

	var requests []roll.Request
	for rows.Next() {
		record, err := scanRollRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roll request: %w", err)
		}
		requests = append(requests, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roll requests: %w", err)
	}
	for i := range requests {
		requests[i].Responses, err = s.loadRollResponses(ctx, campaignID, requests[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return requests, nil
}

// DeleteRollRequestsForCampaign removes every roll request and response for
// a campaign.
func (s *Store) DeleteRollRequestsForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roll_responses WHERE campaign_id = ?`, campaignID); err != nil {
		return fmt.Errorf("delete roll responses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM roll_requests WHERE campaign_id = ?`, campaignID); err != nil {
		return fmt.Errorf("delete roll requests: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roll request deletion: %w", err)
	}
	s.publish(storage.CollectionRollRequests, storage.ChangeDeleted, campaignID, "")
	return nil
}
