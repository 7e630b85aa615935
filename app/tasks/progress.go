package tasks

import (
	"log/slog"

	"github.com/lysyi3m/threat-comb/app/database"
)

// RunLog writes progress lines to slog and to the run's stored log.
type RunLog struct {
	logs database.LogRepositoryInterface
}

func NewRunLog(logs database.LogRepositoryInterface) *RunLog {
	return &RunLog{logs: logs}
}

func (l *RunLog) Log(runID, line string) {
	slog.Info(line, "run", runID)

	if l.logs == nil {
		return
	}
	if err := l.logs.AppendLog(runID, line); err != nil {
		slog.Warn("Failed to store run log line", "run", runID, "error", err)
	}
}
