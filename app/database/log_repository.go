package database

import (
	"fmt"
	"time"
)

// LogRepository keeps the progress lines emitted while a run executes.
type LogRepository struct {
	db  *DB
	now func() time.Time
}

func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db, now: time.Now}
}

func (r *LogRepository) AppendLog(runID, line string) error {
	_, err := r.db.Exec(`
		INSERT INTO run_logs (run_id, seq, line, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ? FROM run_logs WHERE run_id = ?
	`, runID, line, r.now().UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

// GetLogs returns lines with seq greater than afterSeq, oldest first.
func (r *LogRepository) GetLogs(runID string, afterSeq, limit int) ([]LogLine, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.Query(`
		SELECT seq, line, created_at FROM run_logs
		WHERE run_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?
	`, runID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run logs: %w", err)
	}
	defer rows.Close()

	var lines []LogLine
	for rows.Next() {
		var (
			line    LogLine
			created string
		)
		if err := rows.Scan(&line.Seq, &line.Line, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		line.CreatedAt = parseTime(created)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
