package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339Nano

// NewRunID returns an id of the form run_YYYY-MM-DD_HH-MM-SS_<8 hex>.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "run_" + now.Format("2006-01-02_15-04-05") + "_" + suffix
}

// RunRepository handles database operations for pipeline runs
type RunRepository struct {
	db  *DB
	now func() time.Time
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

func (r *RunRepository) CreateRun(run Run) error {
	params, err := json.Marshal(nonNilParams(run.Params))
	if err != nil {
		return fmt.Errorf("failed to encode run params: %w", err)
	}
	status := run.Status
	if status == "" {
		status = RunPending
	}
	kind := run.Kind
	if kind == "" {
		kind = RunManual
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	_, err = r.db.Exec(`
		INSERT INTO runs (id, kind, status, mode, params, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, kind, string(status), run.Mode, string(params), run.Error,
		created.UTC().Format(timeLayout), created.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

const runColumns = `id, kind, status, mode, params, error, created_at, updated_at, finished_at`

func (r *RunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first.
func (r *RunRepository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus sets the status and error message. Terminal states also
// stamp finished_at.
func (r *RunRepository) UpdateRunStatus(id string, status RunStatus, errMsg string) error {
	now := r.now().UTC().Format(timeLayout)
	var finished any
	if status.Terminal() {
		finished = now
	}

	res, err := r.db.Exec(`
		UPDATE runs SET status = ?, error = ?, updated_at = ?, finished_at = COALESCE(?, finished_at)
		WHERE id = ?
	`, string(status), errMsg, now, finished, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return requireRow(res)
}

func (r *RunRepository) UpdateRunParams(id string, params map[string]any) error {
	data, err := json.Marshal(nonNilParams(params))
	if err != nil {
		return fmt.Errorf("failed to encode run params: %w", err)
	}
	res, err := r.db.Exec(`UPDATE runs SET params = ?, updated_at = ? WHERE id = ?`,
		string(data), r.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to update run params: %w", err)
	}
	return requireRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run              Run
		status, params   string
		created, updated string
		finished         sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Kind, &status, &run.Mode, &params, &run.Error, &created, &updated, &finished); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to decode run params: %w", err)
	}
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	if finished.Valid && finished.String != "" {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nonNilParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return params
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
