// Package postgres is the PostgreSQL store backend. Vector ranking uses the
// pgvector extension's cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/store"
)

var tracer = otel.Tracer("decisiond.store.postgres")

// Store implements store.Store on PostgreSQL with pgvector.
type Store struct {
	db        *sql.DB
	dimension int
	logger    *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to dsn and initializes the schema. dimension fixes the
// embedding column size.
func New(ctx context.Context, dsn string, dimension int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db, dimension: dimension, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		reasoning TEXT NOT NULL DEFAULT '',
		assumptions TEXT NOT NULL DEFAULT '',
		expected_outcome TEXT NOT NULL DEFAULT '',
		confidence_score INTEGER NOT NULL DEFAULT 50,
		category TEXT NOT NULL DEFAULT 'Strategy',
		decision_type TEXT NOT NULL DEFAULT 'reversible',
		embedding vector(%d),
		review_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_user_created ON decisions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		decision_id TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
		actual_outcome TEXT NOT NULL,
		lessons TEXT NOT NULL DEFAULT '',
		accuracy_score INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_decision ON reflections(decision_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		insight_type TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_user_type ON insights(user_id, insight_type, created_at DESC);

	CREATE TABLE IF NOT EXISTS weekly_summary (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		week_start TIMESTAMPTZ NOT NULL,
		maintenance_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		growth_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		brand_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		admin_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		strategic_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_weekly_summary_user ON weekly_summary(user_id, created_at DESC);

	INSERT INTO schema_migrations (version, name) VALUES (1, 'initial_schema')
	ON CONFLICT (version) DO NOTHING;
	`, s.dimension)

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// nullVector scans a nullable vector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func embeddingArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

const decisionColumns = `id, user_id, title, reasoning, assumptions, expected_outcome,
	confidence_score, category, decision_type, embedding, review_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner, extra ...any) (store.Decision, error) {
	var (
		d      store.Decision
		emb    nullVector
		review sql.NullTime
	)
	dest := append([]any{&d.ID, &d.UserID, &d.Title, &d.Reasoning, &d.Assumptions, &d.ExpectedOutcome,
		&d.ConfidenceScore, &d.Category, &d.DecisionType, &emb, &review, &d.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return d, err
	}
	if emb.valid {
		d.Embedding = emb.vec.Slice()
	}
	if review.Valid {
		t := review.Time.UTC()
		d.ReviewDate = &t
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (s *Store) queryDecisions(ctx context.Context, query string, args ...any) ([]store.Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	out := make([]store.Decision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateDecision(ctx context.Context, d *store.Decision) error {
	ctx, span := tracer.Start(ctx, "postgres.CreateDecision")
	defer span.End()

	store.Stamp(&d.ID, &d.CreatedAt)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (`+decisionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.UserID, d.Title, d.Reasoning, d.Assumptions, d.ExpectedOutcome,
		d.ConfidenceScore, d.Category, d.DecisionType, embeddingArg(d.Embedding), d.ReviewDate, d.CreatedAt,
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

func (s *Store) GetDecision(ctx context.Context, id string) (*store.Decision, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+decisionColumns+" FROM decisions WHERE id = $1", id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return &d, nil
}

func (s *Store) ListDecisions(ctx context.Context, userID string, limit int) ([]store.Decision, error) {
	query := "SELECT " + decisionColumns + " FROM decisions WHERE user_id = $1 ORDER BY created_at DESC, id DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryDecisions(ctx, query, args...)
}

func (s *Store) ListDecisionsSince(ctx context.Context, userID string, since time.Time) ([]store.Decision, error) {
	return s.queryDecisions(ctx,
		"SELECT "+decisionColumns+" FROM decisions WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC",
		userID, since)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM decisions ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDecision relies on ON DELETE CASCADE for reflections.
func (s *Store) DeleteDecision(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete decision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("decision %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) NearestDecisions(ctx context.Context, userID string, vector []float32, k int) ([]store.ScoredDecision, error) {
	ctx, span := tracer.Start(ctx, "postgres.NearestDecisions")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return []store.ScoredDecision{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+decisionColumns+`, 1 - (embedding <=> $1) AS similarity
		 FROM decisions WHERE user_id = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1, id LIMIT $3`,
		pgvector.NewVector(vector), userID, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to rank decisions: %w", err)
	}
	defer rows.Close()

	out := make([]store.ScoredDecision, 0, k)
	for rows.Next() {
		var sim float64
		d, err := scanDecision(rows, &sim)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranked decision: %w", err)
		}
		out = append(out, store.ScoredDecision{Decision: d, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

func (s *Store) ListEmbeddedDecisions(ctx context.Context, userID string) ([]store.Decision, error) {
	return s.queryDecisions(ctx,
		"SELECT "+decisionColumns+" FROM decisions WHERE user_id = $1 AND embedding IS NOT NULL ORDER BY created_at DESC, id DESC",
		userID)
}

func (s *Store) CreateReflection(ctx context.Context, r *store.Reflection) error {
	store.Stamp(&r.ID, &r.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (id, decision_id, actual_outcome, lessons, accuracy_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.DecisionID, r.ActualOutcome, r.Lessons, r.AccuracyScore, r.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return fmt.Errorf("decision %s: %w", r.DecisionID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to insert reflection: %w", err)
	}
	return nil
}

func (s *Store) LatestReflection(ctx context.Context, decisionID string) (*store.Reflection, error) {
	var r store.Reflection
	err := s.db.QueryRowContext(ctx,
		`SELECT id, decision_id, actual_outcome, lessons, accuracy_score, created_at
		 FROM reflections WHERE decision_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, decisionID,
	).Scan(&r.ID, &r.DecisionID, &r.ActualOutcome, &r.Lessons, &r.AccuracyScore, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reflection for decision %s: %w", decisionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *Store) CountReflections(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reflections r JOIN decisions d ON d.id = r.decision_id WHERE d.user_id = $1`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reflections: %w", err)
	}
	return n, nil
}

func (s *Store) RecentLessons(ctx context.Context, userID string, limit int) ([]string, error) {
	query := `SELECT r.lessons FROM reflections r JOIN decisions d ON d.id = r.decision_id
		WHERE d.user_id = $1 AND TRIM(r.lessons) <> '' ORDER BY r.created_at DESC, r.id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()
	lessons := make([]string, 0)
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (s *Store) CreateInsight(ctx context.Context, in *store.Insight) error {
	store.Stamp(&in.ID, &in.CreatedAt)
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO insights (id, user_id, insight_type, description, created_at) VALUES ($1, $2, $3, $4, $5)",
		in.ID, in.UserID, in.Type, in.Description, in.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

func (s *Store) ListInsights(ctx context.Context, userID, insightType string, limit int) ([]store.Insight, error) {
	query := "SELECT id, user_id, insight_type, description, created_at FROM insights WHERE user_id = $1"
	args := []any{userID}
	if insightType != "" {
		args = append(args, insightType)
		query += fmt.Sprintf(" AND insight_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()
	out := make([]store.Insight, 0)
	for rows.Next() {
		var in store.Insight
		if err := rows.Scan(&in.ID, &in.UserID, &in.Type, &in.Description, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.CreatedAt = in.CreatedAt.UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) DeleteInsights(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM insights WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete insights: %w", err)
	}
	return nil
}

func (s *Store) CreateWeeklySummary(ctx context.Context, ws *store.WeeklySummary) error {
	store.Stamp(&ws.ID, &ws.CreatedAt)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_summary (id, user_id, week_start, maintenance_pct, growth_pct, brand_pct,
		 admin_pct, strategic_pct, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ws.ID, ws.UserID, ws.WeekStart, ws.MaintenancePct, ws.GrowthPct, ws.BrandPct,
		ws.AdminPct, ws.StrategicPct, ws.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert weekly summary: %w", err)
	}
	return nil
}

func (s *Store) LatestWeeklySummary(ctx context.Context, userID string) (*store.WeeklySummary, error) {
	var ws store.WeeklySummary
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, week_start, maintenance_pct, growth_pct, brand_pct, admin_pct, strategic_pct, created_at
		 FROM weekly_summary WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&ws.ID, &ws.UserID, &ws.WeekStart, &ws.MaintenancePct, &ws.GrowthPct, &ws.BrandPct,
		&ws.AdminPct, &ws.StrategicPct, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("weekly summary for %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly summary: %w", err)
	}
	ws.WeekStart = ws.WeekStart.UTC()
	ws.CreatedAt = ws.CreatedAt.UTC()
	return &ws, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
