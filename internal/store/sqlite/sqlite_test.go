package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/store/storetest"
	"github.com/fyrsmithlabs/decisiond/internal/vectorstore"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "decisiond.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	}, storetest.Options{VectorSearch: false})
}

func TestStoreContract_WithVectorIndex(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, nil)
		require.NoError(t, err)
		return newTestStore(t, WithVectorIndex(idx))
	}, storetest.Options{VectorSearch: true})
}

func TestNew_ReindexesExistingRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decisiond.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.CreateDecision(ctx, &store.Decision{UserID: "u", Title: "east", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, s.Close())

	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)
	s, err = New(ctx, path, WithVectorIndex(idx))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.NearestDecisions(ctx, "u", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "east", got[0].Title)
}

// flakyIndex fails the first failUpserts upserts.
type flakyIndex struct {
	store.VectorIndex
	failUpserts atomic.Int32
}

func (f *flakyIndex) Upsert(ctx context.Context, userID, id string, vector []float32) error {
	if f.failUpserts.Add(-1) >= 0 {
		return errors.New("index unavailable")
	}
	return f.VectorIndex.Upsert(ctx, userID, id, vector)
}

func TestNearestDecisions_IndexBehind(t *testing.T) {
	ctx := context.Background()
	chromem, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)
	idx := &flakyIndex{VectorIndex: chromem}
	s := newTestStore(t, WithVectorIndex(idx))

	// First upsert plus the reindex attempt on the next query both fail.
	idx.failUpserts.Store(2)
	require.NoError(t, s.CreateDecision(ctx, &store.Decision{ID: "east", UserID: "u", Embedding: []float32{1, 0, 0}}))

	_, err = s.NearestDecisions(ctx, "u", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, store.ErrVectorSearchUnsupported)

	got, err := s.NearestDecisions(ctx, "u", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "east", got[0].ID)
}

func TestNearestDecisions_ScoresStoredRows(t *testing.T) {
	ctx := context.Background()
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)
	s := newTestStore(t, WithVectorIndex(idx))

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.CreateDecision(ctx, &store.Decision{ID: id, UserID: "u", Embedding: []float32{0.6, 0.8}}))
	}
	got, err := s.NearestDecisions(ctx, "u", []float32{0.6, 0.8}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate(context.Background()))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/var/lib/decisiond.db", want: "/var/lib/decisiond.db?"},
		{in: "sqlite:///./jarvis.db", want: "./jarvis.db?"},
		{in: "sqlite://data.db", want: "data.db?"},
		{in: "file:x.db?mode=rwc", want: "file:x.db?mode=rwc&"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", buildDSN(tt.in), tt.in)
	}
}
