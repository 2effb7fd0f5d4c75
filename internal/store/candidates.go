package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"care-ats/internal/types"
)

const candidateColumns = `id, phone, name, status, source, roles, qualifications,
	driver_status, dbs_status, right_to_work, training_status,
	earliest_start_date, preferred_hours, experience_summary,
	energy_score, last_contacted_at, created_at, updated_at`

// CandidateFilter narrows ListCandidates. Query matches name or phone.
type CandidateFilter struct {
	Status string
	Query  string
	Limit  int
	Offset int
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row scanner) (*types.Candidate, error) {
	var (
		c                                types.Candidate
		name, driver, dbs, rtw, training sql.NullString
		start, hours, summary            sql.NullString
		roles, quals                     string
		energy                           sql.NullFloat64
		lastContacted                    sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Phone, &name, &c.Status, &c.Source, &roles, &quals,
		&driver, &dbs, &rtw, &training, &start, &hours, &summary,
		&energy, &lastContacted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Name = name.String
	c.DriverStatus = driver.String
	c.DBSStatus = dbs.String
	c.RightToWork = rtw.String
	c.TrainingStatus = training.String
	c.EarliestStartDate = start.String
	c.PreferredHours = hours.String
	c.ExperienceSummary = summary.String
	if energy.Valid {
		v := energy.Float64
		c.EnergyScore = &v
	}
	if lastContacted.Valid {
		t := lastContacted.Time
		c.LastContactedAt = &t
	}
	if err := json.Unmarshal([]byte(roles), &c.Roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if err := json.Unmarshal([]byte(quals), &c.Qualifications); err != nil {
		return nil, fmt.Errorf("decode qualifications: %w", err)
	}
	return &c, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*types.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) GetCandidateByPhone(ctx context.Context, phone string) (*types.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE phone = ?`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate by phone: %w", err)
	}
	return c, nil
}

func (s *Store) ListCandidates(ctx context.Context, f CandidateFilter) ([]types.Candidate, error) {
	q := `SELECT ` + candidateColumns + ` FROM candidates`
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, f.Status)
	}
	if f.Query != "" {
		where = append(where, `(LOWER(COALESCE(name, '')) LIKE ? OR phone LIKE ?)`)
		like := "%" + strings.ToLower(f.Query) + "%"
		args = append(args, like, like)
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY updated_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// InsertCandidate creates c, assigning ID and timestamps when unset. It
// returns ErrDuplicate when the phone number is already taken.
func (s *Store) InsertCandidate(ctx context.Context, c *types.Candidate) error {
	s.prepareInsert(c)

	roles, quals := encodeSet(c.Roles), encodeSet(c.Qualifications)
	_, err := s.db.Exec(ctx, `INSERT INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Phone, nullString(c.Name), c.Status, c.Source, roles, quals,
		nullString(c.DriverStatus), nullString(c.DBSStatus), nullString(c.RightToWork), nullString(c.TrainingStatus),
		nullString(c.EarliestStartDate), nullString(c.PreferredHours), nullString(c.ExperienceSummary),
		nullFloat(c.EnergyScore), nullTime(c.LastContactedAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert candidate %s: %w", c.Phone, ErrDuplicate)
		}
		return fmt.Errorf("insert candidate %s: %w", c.Phone, err)
	}
	return nil
}

// InsertCandidateMinimal writes only identity columns. It is the fallback
// when a full insert fails for reasons other than a duplicate.
func (s *Store) InsertCandidateMinimal(ctx context.Context, c *types.Candidate) error {
	s.prepareInsert(c)

	_, err := s.db.Exec(ctx, `INSERT INTO candidates (id, phone, name, status, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Phone, nullString(c.Name), c.Status, c.Source, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert minimal candidate %s: %w", c.Phone, ErrDuplicate)
		}
		return fmt.Errorf("insert minimal candidate %s: %w", c.Phone, err)
	}
	return nil
}

// UpdateCandidate persists every mutable column of c.
func (s *Store) UpdateCandidate(ctx context.Context, c *types.Candidate) error {
	c.UpdatedAt = s.now()
	res, err := s.db.Exec(ctx, `UPDATE candidates SET
			name = ?, status = ?, roles = ?, qualifications = ?,
			driver_status = ?, dbs_status = ?, right_to_work = ?, training_status = ?,
			earliest_start_date = ?, preferred_hours = ?, experience_summary = ?,
			energy_score = ?, last_contacted_at = ?, updated_at = ?
		WHERE id = ?`,
		nullString(c.Name), c.Status, encodeSet(c.Roles), encodeSet(c.Qualifications),
		nullString(c.DriverStatus), nullString(c.DBSStatus), nullString(c.RightToWork), nullString(c.TrainingStatus),
		nullString(c.EarliestStartDate), nullString(c.PreferredHours), nullString(c.ExperienceSummary),
		nullFloat(c.EnergyScore), nullTime(c.LastContactedAt), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update candidate %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateCandidateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.Exec(ctx, `UPDATE candidates SET status = ?, updated_at = ? WHERE id = ?`, status, s.now(), id)
	if err != nil {
		return fmt.Errorf("update candidate status %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) prepareInsert(c *types.Candidate) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = types.StatusNew
	}
	if c.Source == "" {
		c.Source = types.SourceCall
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func encodeSet(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
