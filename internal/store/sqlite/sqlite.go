// Package sqlite is a pure-Go SQLite store backend.
//
// Embeddings are stored as JSON text. SQLite has no vector operators, so
// NearestDecisions returns store.ErrVectorSearchUnsupported unless a
// store.VectorIndex is attached.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

var tracer = otel.Tracer("decisiond.store.sqlite")

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements store.Store on SQLite.
type Store struct {
	db     *sql.DB
	index  store.VectorIndex
	logger *zap.Logger

	// indexBehind is set when an upsert failed; NearestDecisions reports
	// store.ErrVectorSearchUnsupported until a reindex succeeds.
	indexBehind atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithVectorIndex delegates vector ranking to idx.
func WithVectorIndex(idx store.VectorIndex) Option {
	return func(s *Store) { s.index = idx }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens dsn, applies migrations and, when an index is attached,
// loads every stored embedding into it.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", buildDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if s.index != nil {
		if err := s.reindex(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
	}
	return s, nil
}

// buildDSN accepts a plain path or a sqlite:// URL and enables foreign keys.
func buildDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "sqlite:///"):
		dsn = strings.TrimPrefix(dsn, "sqlite:///")
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) reindex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, user_id, embedding FROM decisions WHERE embedding IS NOT NULL")
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var id, userID string
		var raw sql.NullString
		if err := rows.Scan(&id, &userID, &raw); err != nil {
			return err
		}
		vec, err := decodeEmbedding(raw)
		if err != nil {
			return err
		}
		if err := s.index.Upsert(ctx, userID, id, vec); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.logger.Info("loaded vector index", zap.Int("decisions", n))
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func encodeEmbedding(v []float32) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeEmbedding(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return v, nil
}

const decisionColumns = `id, user_id, title, reasoning, assumptions, expected_outcome,
	confidence_score, category, decision_type, embedding, review_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (store.Decision, error) {
	var (
		d         store.Decision
		emb       sql.NullString
		review    sql.NullString
		createdAt string
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Reasoning, &d.Assumptions, &d.ExpectedOutcome,
		&d.ConfidenceScore, &d.Category, &d.DecisionType, &emb, &review, &createdAt); err != nil {
		return d, err
	}
	var err error
	if d.Embedding, err = decodeEmbedding(emb); err != nil {
		return d, err
	}
	if review.Valid {
		t, err := parseTime(review.String)
		if err != nil {
			return d, fmt.Errorf("failed to parse review_date: %w", err)
		}
		d.ReviewDate = &t
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return d, fmt.Errorf("failed to parse created_at: %w", err)
	}
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
	ctx, span := tracer.Start(ctx, "sqlite.CreateDecision")
	defer span.End()

	store.Stamp(&d.ID, &d.CreatedAt)
	emb, err := encodeEmbedding(d.Embedding)
	if err != nil {
		return err
	}
	var review sql.NullString
	if d.ReviewDate != nil {
		review = sql.NullString{String: formatTime(*d.ReviewDate), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (`+decisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Title, d.Reasoning, d.Assumptions, d.ExpectedOutcome,
		d.ConfidenceScore, d.Category, d.DecisionType, emb, review, formatTime(d.CreatedAt),
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	if s.index != nil && len(d.Embedding) > 0 {
		if err := s.index.Upsert(ctx, d.UserID, d.ID, d.Embedding); err != nil {
			s.indexBehind.Store(true)
			s.logger.Warn("failed to index decision", zap.String("id", d.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Store) GetDecision(ctx context.Context, id string) (*store.Decision, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+decisionColumns+" FROM decisions WHERE id = ?", id)
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
	query := "SELECT " + decisionColumns + " FROM decisions WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryDecisions(ctx, query, args...)
}

func (s *Store) ListDecisionsSince(ctx context.Context, userID string, since time.Time) ([]store.Decision, error) {
	return s.queryDecisions(ctx,
		"SELECT "+decisionColumns+" FROM decisions WHERE user_id = ? AND created_at >= ? ORDER BY created_at DESC, id DESC",
		userID, formatTime(since))
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

func (s *Store) DeleteDecision(ctx context.Context, id string) error {
	d, err := s.GetDecision(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reflections WHERE decision_id = ?", id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete reflections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM decisions WHERE id = ?", id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete decision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, d.UserID, id); err != nil {
			s.logger.Warn("failed to remove decision from index", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Store) NearestDecisions(ctx context.Context, userID string, vector []float32, k int) ([]store.ScoredDecision, error) {
	if s.index == nil {
		return nil, store.ErrVectorSearchUnsupported
	}
	ctx, span := tracer.Start(ctx, "sqlite.NearestDecisions")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if s.indexBehind.Load() {
		if err := s.reindex(ctx); err != nil {
			s.logger.Warn("vector index still behind", zap.Error(err))
			return nil, store.ErrVectorSearchUnsupported
		}
		s.indexBehind.Store(false)
	}

	matches, err := s.index.Nearest(ctx, userID, vector, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("vector index query: %w", err)
	}

	out := make([]store.ScoredDecision, 0, len(matches))
	for _, m := range matches {
		d, err := s.GetDecision(ctx, m.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(d.Embedding) != len(vector) {
			continue
		}
		// Score the stored row so both retrieval paths agree exactly.
		out = append(out, store.ScoredDecision{Decision: *d, Similarity: embeddings.Cosine(vector, d.Embedding)})
	}
	store.SortScored(out)
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

func (s *Store) ListEmbeddedDecisions(ctx context.Context, userID string) ([]store.Decision, error) {
	return s.queryDecisions(ctx,
		"SELECT "+decisionColumns+" FROM decisions WHERE user_id = ? AND embedding IS NOT NULL ORDER BY created_at DESC, id DESC",
		userID)
}

func (s *Store) CreateReflection(ctx context.Context, r *store.Reflection) error {
	if _, err := s.GetDecision(ctx, r.DecisionID); err != nil {
		return err
	}
	store.Stamp(&r.ID, &r.CreatedAt)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (id, decision_id, actual_outcome, lessons, accuracy_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.DecisionID, r.ActualOutcome, r.Lessons, r.AccuracyScore, formatTime(r.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert reflection: %w", err)
	}
	return nil
}

func (s *Store) LatestReflection(ctx context.Context, decisionID string) (*store.Reflection, error) {
	var (
		r         store.Reflection
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, decision_id, actual_outcome, lessons, accuracy_score, created_at
		 FROM reflections WHERE decision_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, decisionID,
	).Scan(&r.ID, &r.DecisionID, &r.ActualOutcome, &r.Lessons, &r.AccuracyScore, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reflection for decision %s: %w", decisionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection: %w", err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CountReflections(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reflections r JOIN decisions d ON d.id = r.decision_id WHERE d.user_id = ?`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reflections: %w", err)
	}
	return n, nil
}

func (s *Store) RecentLessons(ctx context.Context, userID string, limit int) ([]string, error) {
	query := `SELECT r.lessons FROM reflections r JOIN decisions d ON d.id = r.decision_id
		WHERE d.user_id = ? AND TRIM(r.lessons) != '' ORDER BY r.created_at DESC, r.id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
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
		"INSERT INTO insights (id, user_id, insight_type, description, created_at) VALUES (?, ?, ?, ?, ?)",
		in.ID, in.UserID, in.Type, in.Description, formatTime(in.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

func (s *Store) ListInsights(ctx context.Context, userID, insightType string, limit int) ([]store.Insight, error) {
	query := "SELECT id, user_id, insight_type, description, created_at FROM insights WHERE user_id = ?"
	args := []any{userID}
	if insightType != "" {
		query += " AND insight_type = ?"
		args = append(args, insightType)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()
	out := make([]store.Insight, 0)
	for rows.Next() {
		var (
			in        store.Insight
			createdAt string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.Type, &in.Description, &createdAt); err != nil {
			return nil, err
		}
		if in.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) DeleteInsights(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM insights WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete insights: %w", err)
	}
	return nil
}

func (s *Store) CreateWeeklySummary(ctx context.Context, ws *store.WeeklySummary) error {
	store.Stamp(&ws.ID, &ws.CreatedAt)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_summary (id, user_id, week_start, maintenance_pct, growth_pct, brand_pct,
		 admin_pct, strategic_pct, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.UserID, formatTime(ws.WeekStart), ws.MaintenancePct, ws.GrowthPct, ws.BrandPct,
		ws.AdminPct, ws.StrategicPct, formatTime(ws.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert weekly summary: %w", err)
	}
	return nil
}

func (s *Store) LatestWeeklySummary(ctx context.Context, userID string) (*store.WeeklySummary, error) {
	var (
		ws                   store.WeeklySummary
		weekStart, createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, week_start, maintenance_pct, growth_pct, brand_pct, admin_pct, strategic_pct, created_at
		 FROM weekly_summary WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&ws.ID, &ws.UserID, &weekStart, &ws.MaintenancePct, &ws.GrowthPct, &ws.BrandPct,
		&ws.AdminPct, &ws.StrategicPct, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("weekly summary for %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly summary: %w", err)
	}
	if ws.WeekStart, err = parseTime(weekStart); err != nil {
		return nil, err
	}
	if ws.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Close closes the database and any attached index.
func (s *Store) Close() error {
	var indexErr error
	if s.index != nil {
		indexErr = s.index.Close()
	}
	return errors.Join(s.db.Close(), indexErr)
}
