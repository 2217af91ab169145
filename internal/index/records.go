package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/ident"
)

// Entry is the catalogued metadata of one stored record. Fields that do not
// apply to a record's bucket are empty.
type Entry struct {
	ID        string
	Bucket    string
	Kind      string
	AgentID   string
	SessionID string
	TargetID  string
	Subtype   string
	Structure string
	StoredAt  time.Time

	// Participants lists the agent ids of a simulation record.
	Participants []string
}

// PutRecord inserts or replaces the catalog row for e.
// Replacing is safe: rows are derived from immutable records, so a repeated
// put carries the same values.
func (x *Index) PutRecord(ctx context.Context, e Entry) error {
	if err := ident.ValidateBucket(e.Bucket); err != nil {
		return err
	}
	if err := ident.ValidateID(e.ID); err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records
		(bucket, id, kind, agent_id, session_id, target_id, subtype, structure, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bucket, id) DO UPDATE SET
			kind = excluded.kind,
			agent_id = excluded.agent_id,
			session_id = excluded.session_id,
			target_id = excluded.target_id,
			subtype = excluded.subtype,
			structure = excluded.structure,
			stored_at = excluded.stored_at
	`,
		e.Bucket,
		e.ID,
		e.Kind,
		e.AgentID,
		e.SessionID,
		e.TargetID,
		e.Subtype,
		e.Structure,
		e.StoredAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM participants WHERE bucket = ? AND session_id = ?`, e.Bucket, e.ID,
	); err != nil {
		return fmt.Errorf("put record participants: %w", err)
	}
	for _, agent := range e.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (bucket, session_id, agent_id)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, e.Bucket, e.ID, agent); err != nil {
			return fmt.Errorf("put record participants: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// DeleteRecord removes the row for bucket/id and its participants.
// Deleting a missing row is not an error.
func (x *Index) DeleteRecord(ctx context.Context, bucket, id string) error {
	if _, err := x.db.ExecContext(ctx,
		`DELETE FROM records WHERE bucket = ? AND id = ?`, bucket, id,
	); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Record returns the catalog entry for bucket/id, or a NOT_FOUND error.
func (x *Index) Record(ctx context.Context, bucket, id string) (Entry, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT bucket, id, kind, agent_id, session_id, target_id, subtype, structure, stored_at
		FROM records
		WHERE bucket = ? AND id = ?
	`, bucket, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, errs.NotFound("catalog_record", bucket, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read record: %w", err)
	}

	e.Participants, err = x.Participants(ctx, bucket, id)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// RecordsBySession returns every entry whose session_id is sessionID.
// Results are ordered deterministically: ORDER BY stored_at ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the session has no records.
func (x *Index) RecordsBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT bucket, id, kind, agent_id, session_id, target_id, subtype, structure, stored_at
		FROM records
		WHERE session_id = ?
		ORDER BY stored_at ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session records: %w", err)
	}
	return entries, nil
}

// Participants returns the agent ids listed on the session record
// bucket/sessionID, sorted. An unknown session yields an empty slice.
func (x *Index) Participants(ctx context.Context, bucket, sessionID string) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT agent_id FROM participants
		WHERE bucket = ? AND session_id = ?
		ORDER BY agent_id COLLATE BINARY ASC
	`, bucket, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	agents := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return agents, nil
}

// Count returns the number of catalogued records.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Reset removes every row. Used before a full re-index.
func (x *Index) Reset(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		storedAt int64
	)
	err := s.Scan(
		&e.Bucket,
		&e.ID,
		&e.Kind,
		&e.AgentID,
		&e.SessionID,
		&e.TargetID,
		&e.Subtype,
		&e.Structure,
		&storedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	e.StoredAt = time.Unix(0, storedAt).UTC()
	return e, nil
}
