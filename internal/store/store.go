// Package store persists finished engine sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/inputsim/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
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
			variant TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			events INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			recoveries INTEGER NOT NULL,
			refreshes INTEGER NOT NULL,
			cpu_percent REAL NOT NULL,
			memory_bytes INTEGER NOT NULL,
			config_source TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_patterns (
			session_id TEXT NOT NULL,
			pattern TEXT NOT NULL,
			runs INTEGER NOT NULL,
			events INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			PRIMARY KEY (session_id, pattern)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_session_patterns_pattern ON session_patterns(pattern);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordSession stores a finished session and its per-pattern counters.
func (s *Store) RecordSession(ctx context.Context, rec model.SessionRecord) (err error) {
	if rec.ID == "" {
		return fmt.Errorf("record session: empty id")
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

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, variant, started_at, ended_at, events, failures, recoveries, refreshes, cpu_percent, memory_bytes, config_source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Variant,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.EndedAt.UTC().Format(time.RFC3339Nano),
		rec.Events,
		rec.Failures,
		rec.Recoveries,
		rec.Refreshes,
		rec.FinalUsage.CPUPercent,
		int64(rec.FinalUsage.MemoryBytes),
		rec.ConfigSource,
	)
	if err != nil {
		return err
	}

	if len(rec.Patterns) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO session_patterns (session_id, pattern, runs, events, failures)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, pc := range rec.Patterns {
			if _, err = stmt.ExecContext(ctx, rec.ID, pc.Pattern, pc.Runs, pc.Events, pc.Failures); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

func filter(cfg model.HistoryConfig) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Variant != "" {
		clauses = append(clauses, "variant = ?")
		args = append(args, cfg.Variant)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	return strings.Join(clauses, " AND "), args
}

// ListSessions returns stored sessions matching cfg, oldest first. When
// cfg.Last is positive only the most recent Last sessions are returned.
func (s *Store) ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error) {
	where, args := filter(cfg)
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, variant, started_at, ended_at, events, failures, recoveries, refreshes
		FROM (
			SELECT * FROM sessions
			WHERE %s
			ORDER BY ended_at DESC
			LIMIT ?
		)
		ORDER BY ended_at ASC`, where)
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
		var startedAt, endedAt string
		if err := rows.Scan(&agg.ID, &agg.Variant, &startedAt, &endedAt, &agg.Events, &agg.Failures, &agg.Recoveries, &agg.Refreshes); err != nil {
			return nil, err
		}
		if agg.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if agg.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListPatternAggregates sums pattern counters across the given sessions.
func (s *Store) ListPatternAggregates(ctx context.Context, sessionIDs []string) ([]model.PatternAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT pattern, SUM(runs) AS runs, SUM(events) AS events, SUM(failures) AS failures
		FROM session_patterns
		WHERE session_id IN (%s)
		GROUP BY pattern
		ORDER BY pattern`, strings.Join(placeholders, ","))
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

	var result []model.PatternAggregate
	for rows.Next() {
		var agg model.PatternAggregate
		if err := rows.Scan(&agg.Pattern, &agg.Runs, &agg.Events, &agg.Failures); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
