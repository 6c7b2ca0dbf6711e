package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS decisions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL,
				reasoning TEXT NOT NULL DEFAULT '',
				assumptions TEXT NOT NULL DEFAULT '',
				expected_outcome TEXT NOT NULL DEFAULT '',
				confidence_score INTEGER NOT NULL DEFAULT 50,
				category TEXT NOT NULL DEFAULT 'Strategy',
				decision_type TEXT NOT NULL DEFAULT 'reversible',
				embedding TEXT,
				review_date TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_decisions_user_created ON decisions(user_id, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS reflections (
				id TEXT PRIMARY KEY,
				decision_id TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
				actual_outcome TEXT NOT NULL,
				lessons TEXT NOT NULL DEFAULT '',
				accuracy_score INTEGER NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reflections_decision ON reflections(decision_id, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS insights (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				insight_type TEXT NOT NULL,
				description TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_insights_user_type ON insights(user_id, insight_type, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS weekly_summary (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				week_start TEXT NOT NULL,
				maintenance_pct REAL NOT NULL DEFAULT 0,
				growth_pct REAL NOT NULL DEFAULT 0,
				brand_pct REAL NOT NULL DEFAULT 0,
				admin_pct REAL NOT NULL DEFAULT 0,
				strategic_pct REAL NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_weekly_summary_user ON weekly_summary(user_id, created_at DESC)`,
		},
	},
}

// migrate applies pending migrations and records each in schema_migrations.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		s.logger.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}
