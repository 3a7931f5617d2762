// ABOUTME: Transition journal store methods for SQLiteStore
// ABOUTME: Append, fetch, filter, count and per-run summaries over the transitions table

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveTransition appends a transition record.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) SaveTransition(ctx context.Context, r *TransitionRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transitions (transition_id, run_id, seq, from_status, to_status, event, user_id, generation, error, noop, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.RunID,
		r.Seq,
		r.FromStatus,
		r.ToStatus,
		r.Event,
		nullString(r.UserID),
		r.Generation,
		nullString(r.Error),
		r.Noop,
		r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}

	s.logger.Debug("saved transition",
		"id", r.ID,
		"run_id", r.RunID,
		"seq", r.Seq,
		"edge", r.FromStatus+"->"+r.ToStatus,
	)
	return nil
}

const transitionColumns = `transition_id, run_id, seq, from_status, to_status, event, user_id, generation, error, noop, created_at`

// GetTransition retrieves a transition by ID.
func (s *SQLiteStore) GetTransition(ctx context.Context, id string) (*TransitionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transitionColumns+` FROM transitions WHERE transition_id = ?`, id)

	r, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const transitionFilterClause = `
	WHERE (? IS NULL OR run_id = ?)
	  AND (? IS NULL OR user_id = ?)
	  AND (? IS NULL OR to_status = ?)
	  AND (? IS NULL OR created_at >= ?)
	  AND (? = 0 OR noop = 0)
`

func filterArgs(f TransitionFilter) []any {
	var since *string
	if f.Since != nil {
		str := f.Since.UTC().Format(timeLayout)
		since = &str
	}
	return []any{
		f.RunID, f.RunID,
		f.UserID, f.UserID,
		f.ToStatus, f.ToStatus,
		since, since,
		f.SkipNoop,
	}
}

// ListTransitions returns transitions matching the filter, oldest first.
func (s *SQLiteStore) ListTransitions(ctx context.Context, f TransitionFilter) ([]TransitionRecord, error) {
	query := `SELECT ` + transitionColumns + ` FROM transitions` + transitionFilterClause +
		`ORDER BY created_at ASC, seq ASC LIMIT ?`

	args := append(filterArgs(f), normalizeLimit(f.Limit))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []TransitionRecord{}
	for rows.Next() {
		r, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return records, nil
}

// CountTransitions returns the number of transitions matching the filter.
func (s *SQLiteStore) CountTransitions(ctx context.Context, f TransitionFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transitions`+transitionFilterClause, filterArgs(f)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting transitions: %w", err)
	}
	return n, nil
}

// ListRuns summarizes every run, most recently active first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	query := `
		SELECT t.run_id, COUNT(*), MIN(t.created_at), MAX(t.created_at),
			(SELECT l.to_status FROM transitions l WHERE l.run_id = t.run_id ORDER BY l.seq DESC LIMIT 1)
		FROM transitions t
		GROUP BY t.run_id
		ORDER BY MAX(t.created_at) DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var first, last string
		if err := rows.Scan(&r.RunID, &r.Transitions, &first, &last, &r.LastStatus); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.FirstAt, err = time.Parse(timeLayout, first); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		if r.LastAt, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// scanTransition scans a row into a TransitionRecord.
func scanTransition(scanner interface{ Scan(dest ...any) error }) (TransitionRecord, error) {
	var r TransitionRecord
	var userID, errText sql.NullString
	var createdAt string

	if err := scanner.Scan(
		&r.ID,
		&r.RunID,
		&r.Seq,
		&r.FromStatus,
		&r.ToStatus,
		&r.Event,
		&userID,
		&r.Generation,
		&errText,
		&r.Noop,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning transition: %w", err)
	}

	r.UserID = userID.String
	r.Error = errText.String

	var err error
	r.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return r, fmt.Errorf("parsing timestamp: %w", err)
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
