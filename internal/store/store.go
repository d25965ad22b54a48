// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/cpsclick/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Timestamps are stored in UTC with fixed-width fractions so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps SQLite access for archived sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			ended_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			time_limit_s INTEGER NOT NULL,
			total_clicks INTEGER NOT NULL,
			total_time_ms INTEGER NOT NULL,
			final_rate REAL NOT NULL,
			max_rate REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_rate_samples (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			rate INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_mode ON sessions(mode);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a completed session and its rate samples.
func (s *Store) InsertSession(ctx context.Context, summary model.SessionSummary, samples []model.RateSample) (err error) {
	if summary.ID == "" {
		return fmt.Errorf("session id is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if err = insertSummary(ctx, tx, summary); err != nil {
		return err
	}

	if len(samples) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO session_rate_samples (session_id, seq, elapsed_ms, rate) VALUES (?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, sample := range samples {
			if _, err = stmt.ExecContext(ctx, summary.ID, i, sample.Elapsed.Milliseconds(), sample.Rate); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ImportSummaries inserts summaries whose IDs are not archived yet and
// returns how many were added. Summaries without an ID get one derived from
// their content, so importing the same history twice adds nothing.
func (s *Store) ImportSummaries(ctx context.Context, summaries []model.SessionSummary) (added int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	for _, summary := range summaries {
		if summary.ID == "" {
			summary.ID = LegacyID(summary)
		}
		var exists int
		if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, summary.ID).Scan(&exists); err != nil {
			return 0, err
		}
		if exists > 0 {
			continue
		}
		if err = insertSummary(ctx, tx, summary); err != nil {
			return 0, err
		}
		added++
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// LegacyID derives a stable session ID for summaries recorded without one.
func LegacyID(s model.SessionSummary) string {
	key := fmt.Sprintf("%s|%s|%d|%d|%g|%g|%g",
		s.Timestamp.UTC().Format(timeLayout), s.Mode, s.TimeLimit, s.TotalClicks, s.TotalTime, s.FinalRate, s.MaxRate)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func insertSummary(ctx context.Context, tx *sql.Tx, summary model.SessionSummary) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, ended_at, mode, time_limit_s, total_clicks, total_time_ms, final_rate, max_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID,
		summary.Timestamp.UTC().Format(timeLayout),
		summary.Mode.String(),
		summary.TimeLimit,
		summary.TotalClicks,
		int64(summary.TotalTime*1000),
		summary.FinalRate,
		summary.MaxRate,
	)
	return err
}

// CountSessions returns the number of archived sessions.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListSessions returns archived sessions matching filter, oldest first.
func (s *Store) ListSessions(ctx context.Context, filter model.HistoryFilter) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Mode != nil {
		clauses = append(clauses, "mode = ?")
		args = append(args, filter.Mode.String())
	}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, mode, time_limit_s, total_clicks, total_time_ms, final_rate, max_rate
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt, mode string
		if err := rows.Scan(&agg.SessionID, &endedAt, &mode, &agg.TimeLimit, &agg.TotalClicks, &agg.TotalTimeMs, &agg.FinalRate, &agg.MaxRate); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		if agg.Mode, err = model.ParseMode(mode); err != nil {
			return nil, err
		}
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSamples returns the rate samples of one session in order.
func (s *Store) ListSamples(ctx context.Context, sessionID string) ([]model.RateSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT elapsed_ms, rate FROM session_rate_samples WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var samples []model.RateSample
	for rows.Next() {
		var elapsedMs int64
		var sample model.RateSample
		if err := rows.Scan(&elapsedMs, &sample.Rate); err != nil {
			return nil, err
		}
		sample.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
