// Package app builds the crawler's long-lived services from configuration and
// owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/api"
	"github.com/JakeFAU/job-skills-crawler/internal/canonical"
	"github.com/JakeFAU/job-skills-crawler/internal/clock/system"
	"github.com/JakeFAU/job-skills-crawler/internal/config"
	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
	"github.com/JakeFAU/job-skills-crawler/internal/cursor"
	"github.com/JakeFAU/job-skills-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/job-skills-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/job-skills-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/job-skills-crawler/internal/hash/sha256"
	"github.com/JakeFAU/job-skills-crawler/internal/headless/detector"
	"github.com/JakeFAU/job-skills-crawler/internal/id/uuid"
	"github.com/JakeFAU/job-skills-crawler/internal/listing"
	"github.com/JakeFAU/job-skills-crawler/internal/metrics"
	"github.com/JakeFAU/job-skills-crawler/internal/pipeline"
	"github.com/JakeFAU/job-skills-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/job-skills-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/job-skills-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/job-skills-crawler/internal/snapshot"
	memorysource "github.com/JakeFAU/job-skills-crawler/internal/source/memory"
	websource "github.com/JakeFAU/job-skills-crawler/internal/source/web"
	gcsstorage "github.com/JakeFAU/job-skills-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/job-skills-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/job-skills-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/job-skills-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/job-skills-crawler/internal/storage/redis"
	sqlitestore "github.com/JakeFAU/job-skills-crawler/internal/storage/sqlite"
	"github.com/JakeFAU/job-skills-crawler/internal/telemetry"
)

// Version is reported in traces and on every log line.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Runner    *pipeline.Runner
	Catalog   crawler.Catalog
	Publisher crawler.Publisher

	gcsClient      *storage.Client
	pubsub         *gcppublisher.Publisher
	headless       *headlessfetcher.Fetcher
	sqlite         *sqlitestore.Store
	postgres       *pgstore.Store
	redis          *redisstore.CursorStore
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. On error everything built so
// far is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			a.closeInfrastructure(ctx)
		}
	}()

	metrics.Init()
	if err := a.setupTracing(ctx); err != nil {
		return nil, err
	}
	logger.Info("building application dependencies")

	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.Catalog, err = a.setupCatalog(ctx)
	if err != nil {
		return nil, err
	}
	cursorStore, err := a.setupCursor(ctx)
	if err != nil {
		return nil, err
	}
	a.Publisher, err = a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	newSource, err := a.setupSource()
	if err != nil {
		return nil, err
	}
	extractor, err := a.setupExtractor()
	if err != nil {
		return nil, err
	}
	canon, err := NewCanonicalizer(cfg.Canonical, logger.Named("canonical"))
	if err != nil {
		return nil, err
	}

	walker, err := cursor.NewWalker(cursorStore,
		cursor.WithMaxPages(cfg.Crawl.MaxPages),
		cursor.WithLogger(logger.Named("cursor")),
	)
	if err != nil {
		return nil, fmt.Errorf("cursor walker init failed: %w", err)
	}
	writer, err := snapshot.NewWriter(blobs, a.Catalog, sha256.New(), cfg.Storage.Prefix, logger.Named("snapshot"))
	if err != nil {
		return nil, fmt.Errorf("snapshot writer init failed: %w", err)
	}
	a.Runner, err = pipeline.New(pipeline.Deps{
		Walker:        walker,
		NewSource:     newSource,
		Extractor:     extractor,
		Canonicalizer: canon,
		Snapshots:     writer,
		Publisher:     a.Publisher,
		Topic:         cfg.PubSub.TopicName,
		Clock:         system.New(),
		IDs:           uuid.New(),
		Workers:       cfg.Crawl.Workers,
		TopN:          cfg.Canonical.TopN,
		Logger:        logger.Named("pipeline"),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}
	built = true
	return a, nil
}

// NewCanonicalizer builds the canonicalizer from config, prepending the
// built-in aliases when enabled.
func NewCanonicalizer(cfg config.CanonicalConfig, logger *zap.Logger) (*canonical.Canonicalizer, error) {
	var aliases []canonical.Alias
	if cfg.DefaultAliases {
		aliases = append(aliases, canonical.DefaultAliases()...)
	}
	aliases = append(aliases, cfg.Aliases...)
	c, err := canonical.New(canonical.Config{
		LooseThreshold: cfg.LooseThreshold,
		MergeThreshold: cfg.MergeThreshold,
		Aliases:        aliases,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("canonicalizer init failed: %w", err)
	}
	return c, nil
}

func (a *App) setupTracing(ctx context.Context) error {
	if !a.cfg.Tracing.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName:    a.cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		SampleRatio:    a.cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown
	return nil
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.Bucket))
		client, err := a.gcs(ctx)
		if err != nil {
			return nil, err
		}
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case "local":
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupCatalog(ctx context.Context) (crawler.Catalog, error) {
	switch a.cfg.Catalog.Backend {
	case "sqlite":
		return a.sqliteStore(ctx)
	case "postgres":
		return a.postgresStore(ctx)
	default:
		a.logger.Warn("using in-memory snapshot catalog; listings reset on restart")
		return memorystorage.NewCatalog(), nil
	}
}

func (a *App) setupCursor(ctx context.Context) (crawler.CursorStore, error) {
	c := a.cfg.Cursor
	a.logger.Info("cursor backend", zap.String("backend", c.Backend))
	switch c.Backend {
	case "file":
		store, err := localstorage.NewCursorFile(c.Path)
		if err != nil {
			return nil, fmt.Errorf("cursor file init failed: %w", err)
		}
		return store, nil
	case "redis":
		store, err := redisstore.New(ctx, a.cfg.Redis.URL, c.Key, c.TTL)
		if err != nil {
			return nil, fmt.Errorf("redis cursor init failed: %w", err)
		}
		a.redis = store
		return store, nil
	case "sqlite":
		return a.sqliteStore(ctx)
	case "postgres":
		return a.postgresStore(ctx)
	case "gcs":
		client, err := a.gcs(ctx)
		if err != nil {
			return nil, err
		}
		store, err := gcsstorage.NewCursorStore(client, a.cfg.Storage.Bucket, c.Object)
		if err != nil {
			return nil, fmt.Errorf("gcs cursor init failed: %w", err)
		}
		return store, nil
	default:
		a.logger.Warn("using in-memory cursor; every process starts from the top of the listing")
		return memorystorage.NewCursorStore(), nil
	}
}

// sqliteStore opens the SQLite database once; catalog and cursor share it.
func (a *App) sqliteStore(ctx context.Context) (*sqlitestore.Store, error) {
	if a.sqlite != nil {
		return a.sqlite, nil
	}
	store, err := sqlitestore.Open(ctx, a.cfg.DB.SQLitePath, a.cfg.Cursor.Name)
	if err != nil {
		return nil, fmt.Errorf("sqlite store init failed: %w", err)
	}
	a.logger.Info("sqlite store opened", zap.String("path", a.cfg.DB.SQLitePath))
	a.sqlite = store
	return store, nil
}

// postgresStore connects and migrates once; catalog and cursor share it.
func (a *App) postgresStore(ctx context.Context) (*pgstore.Store, error) {
	if a.postgres != nil {
		return a.postgres, nil
	}
	store, err := pgstore.New(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		CatalogTable:    a.cfg.DB.CatalogTable,
		CursorTable:     a.cfg.DB.CursorTable,
		CursorName:      a.cfg.Cursor.Name,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	a.postgres = store
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres migrate failed: %w", err)
	}
	a.logger.Info("postgres store initialized", zap.String("catalog_table", a.cfg.DB.CatalogTable))
	return store, nil
}

func (a *App) gcs(ctx context.Context) (*storage.Client, error) {
	if a.gcsClient != nil {
		return a.gcsClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	a.gcsClient = client
	return client, nil
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsub = gcppublisher.New(client)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.pubsub, nil
}

func (a *App) setupSource() (pipeline.SourceFactory, error) {
	if a.cfg.Crawl.Fixture != "" {
		pages, err := memorysource.Load(a.cfg.Crawl.Fixture)
		if err != nil {
			return nil, err
		}
		a.logger.Info("using listing fixture", zap.String("path", a.cfg.Crawl.Fixture), zap.Int("pages", len(pages)))
		return func(context.Context) (crawler.PageSource, error) {
			return memorysource.New(pages), nil
		}, nil
	}

	parser, err := listing.NewParser(a.cfg.Selectors)
	if err != nil {
		return nil, fmt.Errorf("listing parser init failed: %w", err)
	}
	fetcher, err := a.setupFetcher()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: a.cfg.Crawl.RPS, Burst: a.cfg.Crawl.Burst}, metrics.ObserveRateLimitDelay)
	headers := make(http.Header, len(a.cfg.Crawl.Headers))
	for k, v := range a.cfg.Crawl.Headers {
		headers.Set(k, v)
	}
	webCfg := websource.Config{
		StartURL:      a.cfg.Crawl.StartURL,
		RespectRobots: a.cfg.Crawl.RespectRobots,
		Headers:       headers,
	}
	logger := a.logger.Named("source")
	return func(context.Context) (crawler.PageSource, error) {
		src, err := websource.New(webCfg, fetcher, parser, limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("web source init failed: %w", err)
		}
		return src, nil
	}, nil
}

func (a *App) setupFetcher() (crawler.Fetcher, error) {
	crawl := a.cfg.Crawl
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     crawl.UserAgent,
		RespectRobots: crawl.RespectRobots,
		Timeout:       crawl.Timeout,
		MaxBodySize:   crawl.MaxBodyBytes,
	})
	a.logger.Info("using colly fetcher", zap.String("user_agent", crawl.UserAgent))
	if crawl.Headless.Mode == config.HeadlessOff {
		return probe, nil
	}

	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       crawl.Headless.MaxParallel,
		UserAgent:         crawl.UserAgent,
		NavigationTimeout: crawl.Headless.NavigationTimeout,
		WaitSelector:      crawl.Headless.WaitSelector,
		SettleDelay:       crawl.Headless.SettleDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.headless = headless
	a.logger.Info("headless fetcher enabled",
		zap.String("mode", crawl.Headless.Mode),
		zap.Int("max_parallel", crawl.Headless.MaxParallel),
	)
	if crawl.Headless.Mode == config.HeadlessAlways {
		return headless, nil
	}
	heuristic, err := detector.NewHeuristic(crawl.Headless.MinBodyBytes, a.cfg.Selectors.Posting)
	if err != nil {
		return nil, fmt.Errorf("headless heuristic init failed: %w", err)
	}
	promoting, err := detector.NewFetcher(probe, headless, heuristic, a.logger.Named("detector"))
	if err != nil {
		return nil, fmt.Errorf("promoting fetcher init failed: %w", err)
	}
	return promoting, nil
}

func (a *App) setupExtractor() (*extract.Extractor, error) {
	stopwords, err := extract.NewStopwordFilter(a.cfg.Stopwords.Languages, a.cfg.Stopwords.ExtraFile)
	if err != nil {
		return nil, fmt.Errorf("stopword filter init failed: %w", err)
	}
	segmenter := extract.NewSegmenter(extract.SegmenterConfig{
		RoleKeyword:     a.cfg.Extract.RoleKeyword,
		Separators:      a.cfg.Extract.Separators,
		OptionalMarkers: a.cfg.Extract.OptionalMarkers,
		RequiredMarkers: a.cfg.Extract.RequiredMarkers,
	})
	return extract.New(segmenter, stopwords), nil
}

// Serve runs the HTTP API until ctx is canceled, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	server := api.NewServer(a.Runner, a.Catalog, api.Config{
		AuthEnabled:    a.cfg.Auth.Enabled,
		APIKey:         a.cfg.Auth.APIKey,
		RunTimeout:     a.cfg.Server.RunTimeout,
		RequestTimeout: a.cfg.Server.RequestTimeout,
	}, a.logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown initiated")
	case serveErr = <-errCh:
		a.logger.Error("http server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	server.Close()
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) {
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.headless != nil {
		if err := a.headless.Close(); err != nil {
			a.logger.Warn("headless fetcher close failed", zap.Error(err))
		}
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
