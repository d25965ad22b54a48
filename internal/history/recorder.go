// Package history keeps the list of completed games and writes it to disk.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/verte-zerg/cpsclick/internal/model"
)

// ErrNoData is returned by Export when there is nothing to export.
var ErrNoData = errors.New("no session data available for export")

// Archive receives completed sessions alongside the JSON history.
type Archive interface {
	InsertSession(ctx context.Context, summary model.SessionSummary, samples []model.RateSample) error
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithArchive mirrors every recorded session into a.
func WithArchive(a Archive) Option {
	return func(r *Recorder) { r.archive = a }
}

// Recorder accumulates session summaries and persists the full list after
// each one. Persistence failures are logged and never reach the caller.
type Recorder struct {
	path    string
	logger  *slog.Logger
	archive Archive

	mu       sync.Mutex
	sessions []model.SessionSummary
}

// NewRecorder returns an empty recorder that saves to path.
func NewRecorder(path string, opts ...Option) *Recorder {
	r := &Recorder{
		path:   path,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the history file path.
func (r *Recorder) Path() string {
	return r.path
}

// Load reads prior history. Any read or decode failure yields an empty history.
func (r *Recorder) Load() {
	sessions, err := readHistory(r.path)
	if err != nil {
		r.logger.Debug("starting with empty history", "path", r.path, "error", err)
		sessions = nil
	}
	r.mu.Lock()
	r.sessions = sessions
	r.mu.Unlock()
}

// Record appends summary and rewrites the history file.
func (r *Recorder) Record(summary model.SessionSummary, samples []model.RateSample) {
	r.mu.Lock()
	r.sessions = append(r.sessions, summary)
	snapshot := append([]model.SessionSummary(nil), r.sessions...)
	r.mu.Unlock()

	if err := writeHistory(r.path, snapshot); err != nil {
		r.logger.Error("failed to save session data", "path", r.path, "error", err)
	}
	if r.archive != nil {
		if err := r.archive.InsertSession(context.Background(), summary, samples); err != nil {
			r.logger.Error("failed to archive session", "id", summary.ID, "error", err)
		}
	}
}

// Sessions returns a copy of the recorded history, oldest first.
func (r *Recorder) Sessions() []model.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SessionSummary(nil), r.sessions...)
}

// Len returns the number of recorded sessions.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Export writes the history as CSV into dir and returns the file path.
func (r *Recorder) Export(dir string, now time.Time) (string, error) {
	sessions := r.Sessions()
	if len(sessions) == 0 {
		return "", ErrNoData
	}
	path, err := WriteCSV(dir, now, sessions)
	if err != nil {
		r.logger.Error("export failed", "dir", dir, "error", err)
		return "", err
	}
	r.logger.Info("exported session data", "path", path, "sessions", len(sessions))
	return path, nil
}

func readHistory(path string) ([]model.SessionSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sessions []model.SessionSummary
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return sessions, nil
}

func writeHistory(path string, sessions []model.SessionSummary) error {
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "session_data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp history: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}
