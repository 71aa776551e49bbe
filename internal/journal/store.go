package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"neotask/internal/platform/sqlite"
	"neotask/internal/shared"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Run is one finished task as recorded in the journal.
type Run struct {
	ID         string        `json:"id"`
	TaskID     string        `json:"task_id"`
	TaskName   string        `json:"task_name"`
	Location   string        `json:"location"`
	Manager    string        `json:"manager"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Ticks      int           `json:"ticks"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Manager string
	Outcome string
	Limit   int
}

const defaultLimit = 50

// Store persists runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open applies the journal schema to db and returns a store on top of it.
func Open(db *sql.DB) (*Store, error) {
	if _, err := sqlite.Migrate(db, migrations, "migrations"); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert stores a run.
func (s *Store) Insert(ctx context.Context, r Run) error {
	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}
	err := sqlite.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, task_id, task_name, location, manager, outcome, error, ticks, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.TaskID, r.TaskName, r.Location, r.Manager, r.Outcome, errText, r.Ticks,
			r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return shared.MarkKind(fmt.Errorf("journal: insert run %s: %w", r.ID, err), shared.KindDependencyFailure)
	}
	return nil
}

// Get returns a run by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("journal: run %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("journal: get run %s: %w", id, err)
	}
	return r, nil
}

// List returns the newest runs first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Manager != "" {
		where = append(where, "manager = ?")
		args = append(args, f.Manager)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	q := selectRuns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	q += " ORDER BY finished_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of runs per outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM runs GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("journal: count runs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("journal: scan count: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// Prune deletes runs that finished before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := sqlite.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE finished_at < ?", cutoff.UnixMilli())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return n, nil
}

const selectRuns = `SELECT id, task_id, task_name, location, manager, outcome, error, ticks, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                 Run
		errText           sql.NullString
		started, finished int64
	)
	if err := s.Scan(&r.ID, &r.TaskID, &r.TaskName, &r.Location, &r.Manager, &r.Outcome,
		&errText, &r.Ticks, &started, &finished); err != nil {
		return Run{}, err
	}
	r.Error = errText.String
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finished).UTC()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	return r, nil
}
