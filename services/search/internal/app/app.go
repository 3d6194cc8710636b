package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Salle79/Litium/pkg/database"
	"github.com/Salle79/Litium/pkg/health"
	"github.com/Salle79/Litium/pkg/httpclient"
	pkgkafka "github.com/Salle79/Litium/pkg/kafka"
	"github.com/Salle79/Litium/pkg/middleware"
	"github.com/Salle79/Litium/pkg/tracing"
	"github.com/Salle79/Litium/services/search/internal/config"
	"github.com/Salle79/Litium/services/search/internal/engine"
	esengine "github.com/Salle79/Litium/services/search/internal/engine/elasticsearch"
	"github.com/Salle79/Litium/services/search/internal/engine/memory"
	"github.com/Salle79/Litium/services/search/internal/event"
	"github.com/Salle79/Litium/services/search/internal/facet"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
	handler "github.com/Salle79/Litium/services/search/internal/handler/http"
	"github.com/Salle79/Litium/services/search/internal/pricing"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/repository/postgres"
	redisrepo "github.com/Salle79/Litium/services/search/internal/repository/redis"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
	"github.com/Salle79/Litium/services/search/internal/seed"
	"github.com/Salle79/Litium/services/search/internal/service"
	"github.com/Salle79/Litium/services/search/internal/sorting"
	"github.com/Salle79/Litium/services/search/migrations"
)

// idempotencyTTL is how long consumed event ids are remembered.
const idempotencyTTL = 24 * time.Hour

// idempotencyKeyPrefix namespaces consumed event ids in Redis.
const idempotencyKeyPrefix = "search:events:"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "search",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	fields, err := a.fieldStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	markets, memMarkets, err := a.marketRepository(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	eng, memEngine, err := a.searchEngine(healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	if cfg.FieldDefinitionsFile != "" {
		if err := loadSeed(ctx, cfg.FieldDefinitionsFile, fields, memMarkets, memEngine, logger); err != nil {
			a.closeResources()
			return nil, err
		}
	}

	// Build the query pipeline.
	prices := pricing.NewRangeFilter()
	builder := query.NewBuilder(prices, cfg.BrandTagName)
	planner := facet.NewPlanner(builder, facet.Limits{
		Values: cfg.FacetValueLimit,
		Prices: cfg.PriceTermsLimit,
	})
	decoder := facet.NewDecoder(fields, facet.NewEqualWidth(cfg.PriceHistogramBuckets), logger)
	sorts := sorting.NewPlanner(prices)

	searchService := service.NewSearchService(eng, builder, planner, decoder, sorts, logger)
	if memEngine != nil {
		searchService.SetIndexer(memEngine)
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.wireKafka(searchService, fields, memEngine != nil, healthHandler)
	} else {
		logger.Info("kafka disabled, no brokers configured")
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(
		searchService,
		reqctx.NewResolver(markets, logger),
		healthHandler,
		handler.RouterConfig{
			CORS:              corsCfg,
			PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
			RequestTimeout:    cfg.RequestTimeout(),
			RateLimit: middleware.RateLimitConfig{
				RPS:   cfg.RateLimitRPS,
				Burst: cfg.RateLimitBurst,
			},
			TagTermsMaxAge: cfg.TagTermsCacheSeconds,
		},
		logger,
	)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// fieldStore returns the Redis-backed field definitions when REDIS_URL is
// set and an in-process store otherwise.
func (a *App) fieldStore(ctx context.Context, hh *health.Handler) (fielddef.Store, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Info("using in-memory field definitions")
		return fielddef.NewMemoryStore(), nil
	}

	redisCfg := database.DefaultRedisConfig()
	redisCfg.URL = a.cfg.RedisURL
	client, err := database.NewRedisClient(ctx, redisCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", client.Options().Addr))

	repo := redisrepo.NewFieldDefinitionRepository(client)
	hh.Register("redis", repo.Ping)
	return repo, nil
}

// marketRepository returns the PostgreSQL market context when DATABASE_URL is
// set. Otherwise it returns an in-process repository, also as the second
// result so the seed can fill it.
func (a *App) marketRepository(ctx context.Context, hh *health.Handler) (reqctx.Repository, *reqctx.MemoryRepository, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Info("using in-memory market context")
		mem := reqctx.NewMemoryRepository()
		return mem, mem, nil
	}

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.URL = a.cfg.DatabaseURL
	pgCfg.MaxConns = a.cfg.DBMaxConns

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL")
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "search"); err != nil {
		return nil, nil, fmt.Errorf("register pool metrics: %w", err)
	}

	if a.cfg.DatabaseRunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")
	}

	if threshold := a.cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, a.logger)
	}

	hh.Register("postgres", pool.Ping)
	return postgres.NewContextRepository(pool), nil, nil
}

// searchEngine builds the engine selected by SEARCH_ENGINE. The memory engine
// is also returned on its own because it accepts document writes.
func (a *App) searchEngine(hh *health.Handler) (engine.SearchEngine, *memory.Engine, error) {
	switch a.cfg.SearchEngine {
	case config.EngineElasticsearch:
		transport := httpclient.NewBreakerTransport(
			httpclient.NewTransport(httpclient.DefaultConfig()),
			a.cfg.CircuitBreaker(),
			a.logger,
		)
		esEng, err := esengine.New(esengine.Config{
			URL:       a.cfg.ElasticsearchURL,
			Index:     a.cfg.ElasticsearchIndex,
			Username:  a.cfg.ElasticsearchUsername,
			Password:  a.cfg.ElasticsearchPassword,
			Transport: transport,
		}, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		hh.Register("elasticsearch", esEng.Ping)
		a.logger.Info("elasticsearch search engine initialized",
			slog.String("url", a.cfg.ElasticsearchURL),
			slog.String("index", a.cfg.ElasticsearchIndex),
		)
		return esEng, nil, nil
	default:
		memEng := memory.New()
		a.logger.Info("in-memory search engine initialized")
		return memEng, memEng, nil
	}
}

// wireKafka sets up the analytics producer and the read-model consumers.
// Document topics are only consumed when the engine owns its documents.
func (a *App) wireKafka(svc *service.SearchService, fields fielddef.Store, withDocuments bool, hh *health.Handler) {
	producerCfg := pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers)
	producerCfg.Async = true
	a.producer = pkgkafka.NewProducer(producerCfg, a.logger)
	svc.SetPublisher(event.NewSearchPublisher(a.producer))

	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	var idempotency pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	if a.redis != nil {
		idempotency = pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyKeyPrefix, idempotencyTTL)
	}
	eventConsumer := event.NewConsumer(svc, fields, a.logger)

	topics := event.FieldDefinitionTopics()
	if withDocuments {
		topics = append(topics, event.DocumentTopics()...)
	}
	for _, topic := range topics {
		c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:     a.cfg.KafkaBrokers,
			GroupID:     a.cfg.KafkaConsumerGroup,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10e6, // 10 MB
			DLQ:         a.dlq,
			Idempotency: idempotency,
		}, eventConsumer.Handle, a.logger)
		a.consumers = append(a.consumers, c)
	}

	hh.RegisterOptional("kafka", a.producer.Ping)
	a.logger.Info("kafka initialized",
		slog.Any("brokers", a.cfg.KafkaBrokers),
		slog.String("group", a.cfg.KafkaConsumerGroup),
		slog.Int("topic_count", len(topics)),
	)
}

// loadSeed fills the in-process stores from a YAML file. Stores backed by an
// external system other than the field definitions are left alone.
func loadSeed(
	ctx context.Context,
	path string,
	fields fielddef.Store,
	markets *reqctx.MemoryRepository,
	docs *memory.Engine,
	logger *slog.Logger,
) error {
	f, err := seed.ReadFile(path)
	if err != nil {
		return err
	}

	targets := seed.Targets{Fields: fields}
	if markets != nil {
		targets.Markets = markets
	}
	if docs != nil {
		targets.Documents = docs
	}
	if err := f.Load(ctx, targets); err != nil {
		return err
	}

	logger.Info("seed loaded",
		slog.String("path", path),
		slog.Int("field_definitions", len(f.FieldDefinitions)),
		slog.Int("channels", len(f.Channels)),
		slog.Int("documents", len(f.Documents)),
	)
	return nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources()...)

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases the backend connections opened so far.
func (a *App) closeResources() []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
		a.producer = nil
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dlq producer: %w", err))
		}
		a.dlq = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errs
}
