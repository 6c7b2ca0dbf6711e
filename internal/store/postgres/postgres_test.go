package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/store/storetest"
)

// Requires a PostgreSQL server with the vector extension available.
func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("DECISIOND_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DECISIOND_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(context.Background(), dsn, 3, nil)
		require.NoError(t, err)
		_, err = s.db.Exec("TRUNCATE decisions, reflections, insights, weekly_summary")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, storetest.Options{VectorSearch: true})
}

func TestNullVector_Scan(t *testing.T) {
	var n nullVector
	require.NoError(t, n.Scan(nil))
	assert.False(t, n.valid)

	require.NoError(t, n.Scan([]byte("[1,2,3]")))
	assert.True(t, n.valid)
	assert.Equal(t, []float32{1, 2, 3}, n.vec.Slice())
}

func TestNew_RejectsBadDimension(t *testing.T) {
	_, err := New(context.Background(), "postgres://localhost/none", 0, nil)
	assert.Error(t, err)
}

func TestEmbeddingArg(t *testing.T) {
	assert.Nil(t, embeddingArg(nil))
	assert.NotNil(t, embeddingArg([]float32{1}))
}
