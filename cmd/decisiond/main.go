// Decisiond is the decision memory daemon.
//
// It captures business decisions, retrieves similar past decisions, runs
// reflection and weekly pattern analysis, and serves the results over HTTP.
//
// Configuration is read from ~/.config/decisiond/config.yaml (or --config)
// and DECISIOND_* environment variables. See internal/config.
//
// Usage:
//
//	# Start with defaults (memory store, fastembed)
//	decisiond
//
//	# Persistent store and a custom port
//	DECISIOND_STORE_DRIVER=sqlite DECISIOND_STORE_DSN=/var/lib/decisiond/db.sqlite \
//	DECISIOND_SERVER_PORT=9000 decisiond
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/config"
	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/generation"
	httpapi "github.com/fyrsmithlabs/decisiond/internal/http"
	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/redact"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
	"github.com/fyrsmithlabs/decisiond/internal/scheduler"
	"github.com/fyrsmithlabs/decisiond/internal/service"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/store/memory"
	"github.com/fyrsmithlabs/decisiond/internal/store/postgres"
	"github.com/fyrsmithlabs/decisiond/internal/store/sqlite"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
	"github.com/fyrsmithlabs/decisiond/internal/telemetry"
	"github.com/fyrsmithlabs/decisiond/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  decisiond [--config path]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  decisiond version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("decisiond by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every component and blocks until ctx is canceled, then shuts
// down in reverse order.
func run(ctx context.Context, cfg *config.Config) error {
	logCfg, err := logging.ConfigFromStrings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	logCfg.Fields = map[string]string{"service": cfg.Observability.ServiceName, "version": version}
	logCfg.OTEL = cfg.Observability.EnableTelemetry

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	lg, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := lg.Underlying()
	defer func() {
		_ = lg.Sync()
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown failed: %v", err)
		}
	}()

	lg.Info(ctx, "starting decisiond",
		zap.String("store", cfg.Store.Driver),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("generation", cfg.Generation.Provider),
		zap.Int("port", cfg.Server.Port))

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:       cfg.Embeddings.Provider,
		Model:          cfg.Embeddings.Model,
		BaseURL:        cfg.Embeddings.BaseURL,
		CacheDir:       cfg.Embeddings.CacheDir,
		Dimension:      cfg.Embeddings.Dimension,
		QueryCacheSize: cfg.Embeddings.QueryCacheSize,
	}, logger.Named("embeddings"))
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	st, err := openStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var redactor *redact.Redactor
	if cfg.Generation.RedactPrompts {
		redactor = redact.MustNew(nil)
	}
	gen, err := generation.New(generation.Config{
		Provider:   cfg.Generation.Provider,
		Model:      cfg.Generation.Model,
		APIKey:     cfg.Generation.APIKey.Value(),
		BaseURL:    cfg.Generation.BaseURL,
		Timeout:    cfg.Generation.Timeout,
		RateLimit:  cfg.Generation.RateLimit,
		MaxRetries: cfg.Generation.MaxRetries,
		Redactor:   redactor,
	}, logger.Named("generation"))
	if err != nil {
		return fmt.Errorf("failed to create generation provider: %w", err)
	}

	tables, closeTables, err := openTaxonomy(ctx, cfg.Taxonomy, logger.Named("taxonomy"))
	if err != nil {
		return err
	}
	defer closeTables()

	publisher, err := openPublisher(cfg.Events, logger.Named("events"))
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	svc, err := service.New(service.Deps{
		Store:         st,
		Embedder:      embedder,
		Categories:    taxonomy.NewCategoryClassifier(embedder, tables, logger.Named("taxonomy")),
		Reversibility: taxonomy.NewReversibilityClassifier(tables, gen, logger.Named("taxonomy")),
		Retriever:     retrieval.New(embedder, st, logger.Named("retrieval")),
		Insights: insights.New(gen,
			insights.WithMinLength(cfg.Patterns.MinInsightLength),
			insights.WithLogger(logger.Named("insights"))),
		Publisher: publisher,
		Logger:    logger.Named("service"),
	}, service.Config{
		PrincipleThreshold: cfg.Patterns.PrincipleThreshold,
		PrincipleCap:       cfg.Patterns.PrincipleCap,
		LessonWindow:       cfg.Patterns.LessonWindow,
		WeeklyWindow:       cfg.Scheduler.Window,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if cfg.Scheduler.Enabled {
		sched, err := newScheduler(svc, cfg.Scheduler, logger.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	srv, err := httpapi.NewServer(svc, logger, &httpapi.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigins:   splitList(cfg.Server.CORSOrigins),
		DefaultUserID: cfg.Service.DefaultUserID,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case "sqlite":
		opts := []sqlite.Option{sqlite.WithLogger(logger)}
		idx, err := openVectorIndex(cfg.Store, logger.Named("vectorstore"))
		if err != nil {
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
		if idx != nil {
			opts = append(opts, sqlite.WithVectorIndex(idx))
		}
		st, err := sqlite.New(ctx, cfg.Store.DSN.Value(), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case "postgres":
		st, err := postgres.New(ctx, cfg.Store.DSN.Value(), cfg.Embeddings.Dimension, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Store.Driver)
	}
}

// openVectorIndex returns the configured index, or nil for in-memory ranking.
func openVectorIndex(cfg config.StoreConfig, logger *zap.Logger) (store.VectorIndex, error) {
	switch cfg.VectorIndex {
	case "":
		return nil, nil
	case "chromem":
		return vectorstore.NewChromemIndex(vectorstore.ChromemConfig{
			Path:     cfg.VectorIndexPath,
			Compress: true,
		}, logger)
	case "qdrant":
		return vectorstore.NewQdrantIndex(vectorstore.QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey.Value(),
			UseTLS: cfg.Qdrant.UseTLS,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported vector index: %q", cfg.VectorIndex)
	}
}

// openTaxonomy returns the label tables. A configured file is loaded and,
// when watching, reloaded on change.
func openTaxonomy(ctx context.Context, cfg config.TaxonomyConfig, logger *zap.Logger) (taxonomy.Source, func(), error) {
	if cfg.Path == "" {
		return taxonomy.DefaultTable(), func() {}, nil
	}
	if !cfg.Watch {
		t, err := taxonomy.LoadFile(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load taxonomy: %w", err)
		}
		return t, func() {}, nil
	}
	w, err := taxonomy.NewWatcher(cfg.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch taxonomy: %w", err)
	}
	go w.Run(ctx)
	return w, func() { _ = w.Close() }, nil
}

// openPublisher connects to NATS when configured.
func openPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.Noop{}, nil
	}
	p, err := events.NewNATSPublisher(events.NATSConfig{
		URL:           cfg.NATSURL,
		SubjectPrefix: cfg.SubjectPrefix,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return p, nil
}

// newScheduler registers the weekly analysis and principle retention jobs.
func newScheduler(svc *service.Service, cfg config.SchedulerConfig, logger *zap.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(logger,
		scheduler.WithRunTimeout(cfg.RunTimeout),
		scheduler.WithJob(scheduler.Job{
			Name:     "weekly_analysis",
			Schedule: scheduler.WeeklyAt(time.Monday, 0),
			Run: func(ctx context.Context) error {
				_, err := svc.RunWeeklyAnalysis(ctx)
				return err
			},
		}),
		scheduler.WithJob(scheduler.Job{
			Name:     "principle_retention",
			Schedule: scheduler.Every(cfg.PruneInterval),
			Run: func(ctx context.Context) error {
				_, err := svc.PrunePrinciples(ctx)
				return err
			},
		}),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
