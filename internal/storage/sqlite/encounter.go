package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	encounterdomain "github.com/louisbranch/wyrmtable/internal/encounter/domain"
	"github.com/louisbranch/wyrmtable/internal/storage"
)

const encounterColumns = `campaign_id, id, name, active, round,
	current_turn_index, combatants, created_at, ended_at`

func scanEncounter(row rowScanner) (encounterdomain.Encounter, error) {
	var record encounterdomain.Encounter
	var active int
	var combatants string
	var createdAt int64
	var endedAt sql.NullInt64
	err := row.Scan(
		&record.CampaignID,
		&record.ID,
		&record.Name,
		&active,
		&record.Round,
		&record.CurrentTurnIndex,
		&combatants,
		&createdAt,
		&endedAt,
	)
	if err != nil {
		return encounterdomain.Encounter{}, err
	}
	record.Active = active != 0
	if err := decodeJSON(combatants, &record.Combatants); err != nil {
		return encounterdomain.Encounter{}, fmt.Errorf("decode combatants: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	if endedAt.Valid {
		ended := fromMillis(endedAt.Int64)
		record.EndedAt = &ended
	}
	return record, nil
}

func insertLogEntry(ctx context.Context, db execer, campaignID, encounterID string, entry encounterdomain.LogEntry) error {
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO encounter_log (campaign_id, encounter_id, ts, type, actor_name, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		campaignID,
		encounterID,
		toMillis(entry.Timestamp),
		string(entry.Type),
		entry.ActorName,
		entry.Description,
	)
	return err
}

// CreateEncounter writes the encounter, its seeded start log entry, and the
// campaign's active-encounter pointer in one transaction. A campaign with an
// active encounter already set fails with ErrDuplicate; the single-active
// invariant is enforced here, not just in the caller.
func (s *Store) CreateEncounter(ctx context.Context, record encounterdomain.Encounter, seed encounterdomain.LogEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	combatants, err := encodeJSON(record.Combatants)
	if err != nil {
		return fmt.Errorf("encode combatants: %w", err)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE campaigns SET active_encounter_id = ?, updated_at = ?
		 WHERE id = ? AND active_encounter_id = ''`,
		record.ID,
		toMillis(s.now().UTC()),
		record.CampaignID,
	)
	if err != nil {
		return fmt.Errorf("set active encounter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active encounter rows: %w", err)
	}
	if affected == 0 {
		var exists int
		row := tx.QueryRowContext(ctx, `SELECT 1 FROM campaigns WHERE id = ?`, record.CampaignID)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("campaign %s: %w", record.CampaignID, storage.ErrNotFound)
			}
			return fmt.Errorf("query campaign: %w", scanErr)
		}
		return fmt.Errorf("campaign %s has an active encounter: %w", record.CampaignID, storage.ErrDuplicate)
	}

	active := 0
	if record.Active {
		active = 1
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO encounters (
		   campaign_id, id, name, active, round, current_turn_index,
		   combatants, created_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		record.CampaignID,
		record.ID,
		record.Name,
		active,
		record.Round,
		record.CurrentTurnIndex,
		combatants,
		toMillis(record.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("encounter %s: %w", record.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert encounter: %w", err)
	}
	if err := insertLogEntry(ctx, tx, record.CampaignID, record.ID, seed); err != nil {
		return fmt.Errorf("insert start log entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit encounter creation: %w", err)
	}
	s.publish(storage.CollectionEncounters, storage.ChangeCreated, record.CampaignID, record.ID)
	s.publish(storage.CollectionCampaigns, storage.ChangeUpdated, record.CampaignID, record.CampaignID)
	return nil
}

// GetEncounter loads an encounter including its combat log in insertion
// order.
func (s *Store) GetEncounter(ctx context.Context, campaignID, encounterID string) (encounterdomain.Encounter, error) {
	if err := s.ready(ctx); err != nil {
		return encounterdomain.Encounter{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+encounterColumns+` FROM encounters WHERE campaign_id = ? AND id = ?`,
		campaignID,
		encounterID,
	)
	record, err := scanEncounter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return encounterdomain.Encounter{}, fmt.Errorf("encounter %s: %w", encounterID, storage.ErrNotFound)
		}
		return encounterdomain.Encounter{}, fmt.Errorf("query encounter: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT ts, type, actor_name, description
		 FROM encounter_log
		 WHERE campaign_id = ? AND encounter_id = ?
		 ORDER BY seq`,
		campaignID,
		encounterID,
	)
	if err != nil {
		return encounterdomain.Encounter{}, fmt.Errorf("query encounter log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry encounterdomain.LogEntry
		var entryType string
		var ts int64
		if err := rows.Scan(&ts, &entryType, &entry.ActorName, &entry.Description); err != nil {
			return encounterdomain.Encounter{}, fmt.Errorf("scan log entry: %w", err)
		}
		entry.Timestamp = fromMillis(ts)
		entry.Type = encounterdomain.LogEntryType(entryType)
		record.Log = append(record.Log, entry)
	}
	if err := rows.Err(); err != nil {
		return encounterdomain.Encounter{}, fmt.Errorf("iterate encounter log: %w", err)
	}
	return record, nil
}

// AdvanceTurn moves the turn pointer with a compare-and-set on the current
// index and appends the turn-change log entry in the same transaction. A
// writer that lost the race observes ErrConflict and should re-read.
func (s *Store) AdvanceTurn(ctx context.Context, campaignID, encounterID string, expectedIndex, nextIndex, nextRound int, entry encounterdomain.LogEntry) error {
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
		`UPDATE encounters SET current_turn_index = ?, round = ?
		 WHERE campaign_id = ? AND id = ? AND active = 1 AND current_turn_index = ?`,
		nextIndex,
		nextRound,
		campaignID,
		encounterID,
		expectedIndex,
	)
	if err != nil {
		return fmt.Errorf("advance turn: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance turn rows: %w", err)
	}
	if affected == 0 {
		var active int
		row := tx.QueryRowContext(
			ctx,
			`SELECT active FROM encounters WHERE campaign_id = ? AND id = ?`,
			campaignID,
			encounterID,
		)
		if scanErr := row.Scan(&active); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("encounter %s: %w", encounterID, storage.ErrNotFound)
			}
			return fmt.Errorf("query encounter: %w", scanErr)
		}
		return fmt.Errorf("turn pointer moved for encounter %s: %w", encounterID, storage.ErrConflict)
	}
	if err := insertLogEntry(ctx, tx, campaignID, encounterID, entry); err != nil {
		return fmt.Errorf("insert turn log entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn advance: %w", err)
	}
	s.publish(storage.CollectionEncounters, storage.ChangeUpdated, campaignID, encounterID)
	return nil
}

// UpdateCombatant applies a patch to one combatant inside a transaction so
// concurrent combatant mutations on the same encounter serialize.
func (s *Store) UpdateCombatant(ctx context.Context, campaignID, encounterID, combatantID string, patch encounterdomain.CombatantPatch) (encounterdomain.Combatant, error) {
	if err := s.ready(ctx); err != nil {
		return encounterdomain.Combatant{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return encounterdomain.Combatant{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var encoded string
	row := tx.QueryRowContext(
		ctx,
		`SELECT combatants FROM encounters WHERE campaign_id = ? AND id = ?`,
		campaignID,
		encounterID,
	)
	if err := row.Scan(&encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return encounterdomain.Combatant{}, fmt.Errorf("encounter %s: %w", encounterID, storage.ErrNotFound)
		}
		return encounterdomain.Combatant{}, fmt.Errorf("query combatants: %w", err)
	}

	var combatants []encounterdomain.Combatant
	if err := decodeJSON(encoded, &combatants); err != nil {
		return encounterdomain.Combatant{}, fmt.Errorf("decode combatants: %w", err)
	}
	index := -1
	for i, combatant := range combatants {
		if combatant.ID == combatantID {
			index = i
			break
		}
	}
	if index < 0 {
		return encounterdomain.Combatant{}, fmt.Errorf("combatant %s: %w", combatantID, storage.ErrNotFound)
	}
	combatants[index] = encounterdomain.ApplyPatch(combatants[index], patch)

	encoded, err = encodeJSON(combatants)
	if err != nil {
		return encounterdomain.Combatant{}, fmt.Errorf("encode combatants: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE encounters SET combatants = ? WHERE campaign_id = ? AND id = ?`,
		encoded,
		campaignID,
		encounterID,
	); err != nil {
		return encounterdomain.Combatant{}, fmt.Errorf("update combatants: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return encounterdomain.Combatant{}, fmt.Errorf("commit combatant update: %w", err)
	}
	s.publish(storage.CollectionEncounters, storage.ChangeUpdated, campaignID, encounterID)
	return combatants[index], nil
}

// AppendLogEntry appends one combat log entry. Insertion order is the
// authoritative log ordering.
func (s *Store) AppendLogEntry(ctx context.Context, campaignID, encounterID string, entry encounterdomain.LogEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	var exists int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM encounters WHERE campaign_id = ? AND id = ?`,
		campaignID,
		encounterID,
	)
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("encounter %s: %w", encounterID, storage.ErrNotFound)
		}
		return fmt.Errorf("query encounter: %w", err)
	}
	if err := insertLogEntry(ctx, s.sqlDB, campaignID, encounterID, entry); err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	s.publish(storage.CollectionEncounters, storage.ChangeUpdated, campaignID, encounterID)
	return nil
}

// EndEncounter deactivates the encounter, stamps endedAt, appends the end
// log entry, and clears the campaign's active-encounter pointer in one
// transaction. An already-ended encounter fails with ErrConflict.
func (s *Store) EndEncounter(ctx context.Context, campaignID, encounterID string, endedAt time.Time, entry encounterdomain.LogEntry) error {
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
		`UPDATE encounters SET active = 0, ended_at = ?
		 WHERE campaign_id = ? AND id = ? AND active = 1`,
		toMillis(endedAt),
		campaignID,
		encounterID,
	)
	if err != nil {
		return fmt.Errorf("end encounter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end encounter rows: %w", err)
	}
	if affected == 0 {
		var exists int
		row := tx.QueryRowContext(
			ctx,
			`SELECT 1 FROM encounters WHERE campaign_id = ? AND id = ?`,
			campaignID,
			encounterID,
		)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("encounter %s: %w", encounterID, storage.ErrNotFound)
			}
			return fmt.Errorf("query encounter: %w", scanErr)
		}
		return fmt.Errorf("encounter %s already ended: %w", encounterID, storage.ErrConflict)
	}
	if err := insertLogEntry(ctx, tx, campaignID, encounterID, entry); err != nil {
		return fmt.Errorf("insert end log entry: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE campaigns SET active_encounter_id = '', updated_at = ?
		 WHERE id = ? AND active_encounter_id = ?`,
		toMillis(endedAt),
		campaignID,
		encounterID,
	); err != nil {
		return fmt.Errorf("clear active encounter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit encounter end: %w", err)
	}
	s.publish(storage.CollectionEncounters, storage.ChangeUpdated, campaignID, encounterID)
	s.publish(storage.CollectionCampaigns, storage.ChangeUpdated, campaignID, campaignID)
	return nil
}

// DeleteEncountersForCampaign removes every encounter and log entry for a
// campaign.
func (s *Store) DeleteEncountersForCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM encounter_log WHERE campaign_id = ?`, campaignID); err != nil {
		return fmt.Errorf("delete encounter log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM encounters WHERE campaign_id = ?`, campaignID); err != nil {
		return fmt.Errorf("delete encounters: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit encounter deletion: %w", err)
	}
	s.publish(storage.CollectionEncounters, storage.ChangeDeleted, campaignID, "")
	return nil
}
