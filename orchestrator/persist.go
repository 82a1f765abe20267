package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// mkSessionDir creates a fresh session directory under outputsRoot. An
// existing session is never reused.
func mkSessionDir(outputsRoot string, now time.Time) (string, string, error) {
	sid := "session_" + now.Format("20060102-150405.000")
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(outputsRoot, 0o755); err != nil {
		return "", "", err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", "", err
	}
	return sid, dir, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// ExportHistory writes the newest limit entries to history.json and their
// summary to summary.json inside a new session directory under dir, and
// returns that directory.
func (p *Pipeline) ExportHistory(ctx context.Context, dir string, limit int) (string, error) {
	entries, err := p.History(ctx, limit)
	if err != nil {
		return "", err
	}
	now := p.now()
	sid, outDir, err := mkSessionDir(dir, now)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	if err := writeJSON(filepath.Join(outDir, "history.json"), entries); err != nil {
		return "", fmt.Errorf("export history: %w", err)
	}
	sum := summarize(entries)
	sum.SessionID = sid
	sum.GeneratedAt = now
	if err := writeJSON(filepath.Join(outDir, "summary.json"), sum); err != nil {
		return "", fmt.Errorf("export summary: %w", err)
	}
	p.log.WithFields(logrus.Fields{"dir": outDir, "entries": len(entries)}).Info("history exported")
	return outDir, nil
}
