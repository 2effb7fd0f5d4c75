package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"care-ats/internal/types"
)

// Store is the relational repository for candidates, calls, notes and the
// processed-call ledger.
type Store struct {
	db  *DB
	now func() time.Time
}

func New(db *DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.GetConn().PingContext(ctx)
}

// ClaimCall atomically takes ownership of callID before any work is done.
// It returns false when another delivery already holds or finished the call.
// A no_recording entry can be reclaimed so a later recording event for the
// same call is still processed.
func (s *Store) ClaimCall(ctx context.Context, callID, phone string) (bool, error) {
	now := s.now()
	res, err := s.db.Exec(ctx, `
		INSERT INTO processed_calls (call_id, phone, status, detail, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
		ON CONFLICT (call_id) DO UPDATE
			SET status = excluded.status,
			    phone = excluded.phone,
			    detail = '',
			    updated_at = excluded.updated_at
			WHERE processed_calls.status = ?`,
		callID, phone, types.LedgerProcessing, now, now, types.LedgerNoRecording)
	if err != nil {
		return false, fmt.Errorf("claim call %s: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim call %s rows: %w", callID, err)
	}
	return n == 1, nil
}

// RecordNoRecording writes a no_recording entry unless the call is already
// in the ledger. It reports whether a row was written.
func (s *Store) RecordNoRecording(ctx context.Context, callID, phone string) (bool, error) {
	now := s.now()
	res, err := s.db.Exec(ctx, `
		INSERT INTO processed_calls (call_id, phone, status, detail, created_at, updated_at)
		VALUES (?, ?, ?, 'hangup without recording', ?, ?)
		ON CONFLICT (call_id) DO NOTHING`,
		callID, phone, types.LedgerNoRecording, now, now)
	if err != nil {
		return false, fmt.Errorf("record no_recording %s: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCall sets the terminal status of a call.
func (s *Store) MarkCall(ctx context.Context, callID, status, detail string) error {
	now := s.now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO processed_calls (call_id, phone, status, detail, created_at, updated_at)
		VALUES (?, '', ?, ?, ?, ?)
		ON CONFLICT (call_id) DO UPDATE
			SET status = excluded.status,
			    detail = excluded.detail,
			    updated_at = excluded.updated_at`,
		callID, status, detail, now, now)
	if err != nil {
		return fmt.Errorf("mark call %s %s: %w", callID, status, err)
	}
	return nil
}

func (s *Store) GetLedgerEntry(ctx context.Context, callID string) (*types.LedgerEntry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT call_id, COALESCE(phone, ''), status, detail, created_at, updated_at
		FROM processed_calls WHERE call_id = ?`, callID)

	var e types.LedgerEntry
	if err := row.Scan(&e.CallID, &e.Phone, &e.Status, &e.Detail, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry %s: %w", callID, err)
	}
	return &e, nil
}

// ListLedger returns entries newest first, optionally filtered by status.
// limit <= 0 means no limit.
func (s *Store) ListLedger(ctx context.Context, status string, limit int) ([]types.LedgerEntry, error) {
	q := `SELECT call_id, COALESCE(phone, ''), status, detail, created_at, updated_at FROM processed_calls`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY updated_at DESC, call_id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []types.LedgerEntry
	for rows.Next() {
		var e types.LedgerEntry
		if err := rows.Scan(&e.CallID, &e.Phone, &e.Status, &e.Detail, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearLedgerEntry deletes the entry so the call can be processed again.
func (s *Store) ClearLedgerEntry(ctx context.Context, callID string) error {
	res, err := s.db.Exec(ctx, `DELETE FROM processed_calls WHERE call_id = ?`, callID)
	if err != nil {
		return fmt.Errorf("clear ledger entry %s: %w", callID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
