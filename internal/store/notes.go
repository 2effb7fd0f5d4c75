package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"care-ats/internal/types"
)

// AddNote appends a note. Notes are never edited or deleted.
func (s *Store) AddNote(ctx context.Context, n *types.Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = s.now()

	_, err := s.db.Exec(ctx, `INSERT INTO notes (id, candidate_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.CandidateID, n.Author, n.Body, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("add note for %s: %w", n.CandidateID, err)
	}
	return nil
}

// ListNotes returns a candidate's notes oldest first.
func (s *Store) ListNotes(ctx context.Context, candidateID string) ([]types.Note, error) {
	rows, err := s.db.Query(ctx, `SELECT id, candidate_id, author, body, created_at
		FROM notes WHERE candidate_id = ? ORDER BY created_at, id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []types.Note
	for rows.Next() {
		var n types.Note
		if err := rows.Scan(&n.ID, &n.CandidateID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
