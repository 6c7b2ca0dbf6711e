package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/store"
)

var qdrantTracer = otel.Tracer("decisiond.vectorstore.qdrant")

var (
	// ErrInvalidConfig is returned for unusable index configuration.
	ErrInvalidConfig = errors.New("invalid vector index configuration")

	// ErrConnectionFailed is returned when the Qdrant server cannot be reached.
	ErrConnectionFailed = errors.New("vector index connection failed")
)

// Point ids must be UUIDs or integers, so decision ids are mapped to a
// name-based UUID and kept verbatim in this payload key.
const qdrantIDKey = "id"

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string

	// Port is the gRPC port, not the REST one. Default: 6334.
	Port int

	APIKey string
	UseTLS bool

	// HealthTimeout bounds the startup health check. Default: 5s.
	HealthTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// qdrantClient is the subset of *qdrant.Client the index uses.
type qdrantClient interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// QdrantIndex keeps one cosine collection per user on a Qdrant server. A
// collection takes the dimension of the first vector written to it.
type QdrantIndex struct {
	client qdrantClient
	logger *zap.Logger

	mu          sync.Mutex
	collections map[string]bool
}

var _ store.VectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant and checks the server is healthy.
func NewQdrantIndex(cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HealthTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant index initialized", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return newQdrantIndex(client, logger), nil
}

func newQdrantIndex(client qdrantClient, logger *zap.Logger) *QdrantIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QdrantIndex{client: client, logger: logger, collections: make(map[string]bool)}
}

// pointID maps a decision id onto a stable point UUID.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// ensureCollection creates the user's collection sized for dim if missing.
func (x *QdrantIndex) ensureCollection(ctx context.Context, name string, dim int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.collections[name] {
		return nil
	}

	exists, err := x.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		x.logger.Debug("created qdrant collection", zap.String("collection", name), zap.Int("dimension", dim))
	}
	x.collections[name] = true
	return nil
}

// Upsert stores or replaces the vector for id.
func (x *QdrantIndex) Upsert(ctx context.Context, userID, id string, vector []float32) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()

	if userID == "" {
		return ErrMissingUser
	}
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for %s", id)
	}
	name := collectionName(userID)
	if err := x.ensureCollection(ctx, name, len(vector)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		indexOps.WithLabelValues("upsert", "error").Inc()
		return err
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      pointID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: map[string]*qdrant.Value{qdrantIDKey: qdrant.NewValueString(id)},
		}},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		indexOps.WithLabelValues("upsert", "error").Inc()
		return fmt.Errorf("upserting %s: %w", id, err)
	}
	indexOps.WithLabelValues("upsert", "ok").Inc()
	return nil
}

// Delete removes id. Unknown ids are ignored.
func (x *QdrantIndex) Delete(ctx context.Context, userID, id string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Delete")
	defer span.End()

	if userID == "" {
		return ErrMissingUser
	}
	name := collectionName(userID)
	exists, err := x.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	_, err = x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointID(id)),
	})
	if err != nil {
		span.RecordError(err)
		indexOps.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	indexOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Nearest returns up to k matches ordered by similarity descending, then
// id ascending.
func (x *QdrantIndex) Nearest(ctx context.Context, userID string, vector []float32, k int) ([]store.VectorMatch, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Nearest")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.Int("k", k))

	if userID == "" {
		return nil, ErrMissingUser
	}
	if k <= 0 {
		return []store.VectorMatch{}, nil
	}
	name := collectionName(userID)
	exists, err := x.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return []store.VectorMatch{}, nil
	}

	// Qdrant does not order equal scores by id, so rank the whole
	// collection and cut to k after the tie-break.
	count, err := x.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return nil, fmt.Errorf("counting collection %s: %w", name, err)
	}
	if count == 0 {
		return []store.VectorMatch{}, nil
	}

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(count),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		indexOps.WithLabelValues("query", "error").Inc()
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	matches := make([]store.VectorMatch, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[qdrantIDKey].GetStringValue()
		if id == "" {
			continue
		}
		matches = append(matches, store.VectorMatch{ID: id, Similarity: float64(p.GetScore())})
	}
	store.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	indexOps.WithLabelValues("query", "ok").Inc()

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	x.logger.Debug("queried qdrant index",
		zap.String("user_id", userID),
		zap.Int("k", k),
		zap.Int("results", len(matches)),
	)
	return matches, nil
}

// Close closes the gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}
