package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"care-ats/internal/types"
)

const callColumns = `call_id, candidate_id, phone, direction, duration_secs, started_at,
	recording_url, transcript, summary, analysis, energy_score, quality_rating,
	call_type, processed_at`

// UpsertCall writes the call row, updating it in place when the call ID is
// already present.
func (s *Store) UpsertCall(ctx context.Context, r *types.CallRecord) error {
	if r.ProcessedAt.IsZero() {
		r.ProcessedAt = s.now()
	}

	var analysis any
	if r.Analysis != nil {
		b, err := json.Marshal(r.Analysis)
		if err != nil {
			return fmt.Errorf("encode analysis %s: %w", r.CallID, err)
		}
		analysis = string(b)
	}

	_, err := s.db.Exec(ctx, `INSERT INTO call_history (`+callColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (call_id) DO UPDATE SET
			candidate_id = excluded.candidate_id,
			phone = excluded.phone,
			direction = excluded.direction,
			duration_secs = excluded.duration_secs,
			started_at = excluded.started_at,
			recording_url = excluded.recording_url,
			transcript = excluded.transcript,
			summary = excluded.summary,
			analysis = excluded.analysis,
			energy_score = excluded.energy_score,
			quality_rating = excluded.quality_rating,
			call_type = excluded.call_type,
			processed_at = excluded.processed_at`,
		r.CallID, nullString(r.CandidateID), r.Phone, nullString(r.Direction), r.DurationSecs, r.StartedAt.UTC(),
		nullString(r.RecordingURL), nullString(r.Transcript), nullString(r.Summary), analysis,
		nullInt(r.EnergyScore), nullInt(r.QualityRating), nullString(r.CallType), r.ProcessedAt)
	if err != nil {
		return fmt.Errorf("upsert call %s: %w", r.CallID, err)
	}
	return nil
}

// UpsertCallMinimal records that the call happened using identity columns
// only.
func (s *Store) UpsertCallMinimal(ctx context.Context, r *types.CallRecord) error {
	if r.ProcessedAt.IsZero() {
		r.ProcessedAt = s.now()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO call_history (call_id, candidate_id, phone, started_at, processed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (call_id) DO UPDATE SET
			candidate_id = excluded.candidate_id,
			processed_at = excluded.processed_at`,
		r.CallID, nullString(r.CandidateID), r.Phone, r.StartedAt.UTC(), r.ProcessedAt)
	if err != nil {
		return fmt.Errorf("upsert minimal call %s: %w", r.CallID, err)
	}
	return nil
}

func scanCall(row scanner) (*types.CallRecord, error) {
	var (
		r                                             types.CallRecord
		candidateID, direction, recording, transcript sql.NullString
		summary, analysis, callType                   sql.NullString
		energy, quality                               sql.NullInt64
	)
	err := row.Scan(&r.CallID, &candidateID, &r.Phone, &direction, &r.DurationSecs, &r.StartedAt,
		&recording, &transcript, &summary, &analysis, &energy, &quality, &callType, &r.ProcessedAt)
	if err != nil {
		return nil, err
	}

	r.CandidateID = candidateID.String
	r.Direction = direction.String
	r.RecordingURL = recording.String
	r.Transcript = transcript.String
	r.Summary = summary.String
	r.CallType = callType.String
	if energy.Valid {
		v := int(energy.Int64)
		r.EnergyScore = &v
	}
	if quality.Valid {
		v := int(quality.Int64)
		r.QualityRating = &v
	}
	if analysis.Valid && analysis.String != "" {
		var a types.Analysis
		if err := json.Unmarshal([]byte(analysis.String), &a); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		r.Analysis = &a
	}
	return &r, nil
}

func (s *Store) GetCall(ctx context.Context, callID string) (*types.CallRecord, error) {
	r, err := scanCall(s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_history WHERE call_id = ?`, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call %s: %w", callID, err)
	}
	return r, nil
}

// ListCallsForCandidate returns the candidate's calls, newest first.
func (s *Store) ListCallsForCandidate(ctx context.Context, candidateID string) ([]types.CallRecord, error) {
	return s.listCalls(ctx, `SELECT `+callColumns+` FROM call_history WHERE candidate_id = ? ORDER BY started_at DESC`, candidateID)
}

// ListCallsByPhone returns every call for a phone number, newest first.
func (s *Store) ListCallsByPhone(ctx context.Context, phone string) ([]types.CallRecord, error) {
	return s.listCalls(ctx, `SELECT `+callColumns+` FROM call_history WHERE phone = ? ORDER BY started_at DESC`, phone)
}

func (s *Store) listCalls(ctx context.Context, q string, args ...any) ([]types.CallRecord, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []types.CallRecord
	for rows.Next() {
		r, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}
