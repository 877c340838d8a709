package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/ClassifiedsGo/pkg/database"
	"github.com/utafrali/ClassifiedsGo/pkg/health"
	pkgkafka "github.com/utafrali/ClassifiedsGo/pkg/kafka"
	"github.com/utafrali/ClassifiedsGo/pkg/middleware"
	"github.com/utafrali/ClassifiedsGo/pkg/tracing"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/config"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/event"
	handler "github.com/utafrali/ClassifiedsGo/services/media/internal/handler/http"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/lock"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/repository/postgres"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/retrieval"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/service"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/storage/local"
	"github.com/utafrali/ClassifiedsGo/services/media/migrations"
)

const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the media service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	files          *local.Store
	gateway        *retrieval.Gateway
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	if err := a.init(ctx); err != nil {
		_ = a.release()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// PostgreSQL holds media records and owner links.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "media")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = redisClient
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Image files and the read-only view used to serve them.
	files, err := local.New(cfg.StorageRoot, logger)
	if err != nil {
		return fmt.Errorf("open media storage: %w", err)
	}
	a.files = files

	gateway, err := retrieval.NewGateway(cfg.StorageRoot, logger)
	if err != nil {
		return fmt.Errorf("open retrieval gateway: %w", err)
	}
	a.gateway = gateway

	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	mediaService := service.NewMediaService(
		postgres.NewMediaRepository(pool),
		postgres.NewOwnerRepository(pool),
		files,
		service.Pipeline{
			Validator: imaging.NewValidator(imaging.ValidatorConfig{
				AllowedTypes: cfg.AllowedTypes,
				MaxBytes:     cfg.MaxUploadBytes,
				MaxPixels:    cfg.MaxPixels,
			}),
			Transcoder: imaging.NewTranscoder(cfg.JPEGQuality),
			Canvases: domain.Canvases{
				domain.OwnerKindAvatar:       {Width: cfg.AvatarWidth, Height: cfg.AvatarHeight},
				domain.OwnerKindListingPhoto: {Width: cfg.ListingWidth, Height: cfg.ListingHeight},
			},
		},
		event.NewProducer(a.producer, logger),
		logger,
	)

	if cfg.ConsumersEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		eventConsumer := event.NewConsumer(mediaService, logger)
		store := pkgkafka.NewRedisIdempotencyStore(redisClient, cfg.KafkaConsumerGroup, idempotencyTTL)
		h := pkgkafka.IdempotentHandler(store, eventConsumer.Handle, cfg.KafkaConsumerGroup, logger)

		topics := event.ConsumedTopics()
		for _, topic := range topics {
			consumerCfg := pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaConsumerGroup,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}
			a.consumers = append(a.consumers, pkgkafka.NewConsumer(consumerCfg, h, a.dlq, logger))
		}
		logger.Info("kafka consumers initialized",
			slog.String("group", cfg.KafkaConsumerGroup),
			slog.Int("topic_count", len(topics)),
		)
	}

	// A nil interface disables locking; never pass a typed nil here.
	var locker handler.OwnerLocker
	if cfg.OwnerLock {
		locker = lock.NewOwnerLock(redisClient, cfg.OwnerLockTTL)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("storage", files.Check)

	router := handler.NewRouter(mediaService, gateway, locker, healthHandler, handler.RouterConfig{
		ServiceName: "media-service",
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			ExposedHeaders: []string{middleware.CorrelationHeader},
			Environment:    cfg.Environment,
		},
		MaxUploadBytes:   cfg.MaxUploadBytes,
		ImageCacheMaxAge: cfg.ImageCacheMaxAge,
		UploadRateLimit:  cfg.UploadRateLimit,
		UploadBurst:      cfg.UploadBurst,
		TrustedProxies:   cfg.TrustedProxyCIDRs,
		PprofCIDRs:       cfg.PprofCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("storage_root", a.cfg.StorageRoot),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed, shutting down", slog.String("error", runErr.Error()))
	}

	cancel()
	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight uploads)
// 2. Kafka consumers
// 3. Everything the request path depends on
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
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

	errs = append(errs, a.release())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release closes whatever init managed to open.
func (a *App) release() error {
	var errs []error
	closeLogged := func(name string, fn func() error) {
		if err := fn(); err != nil {
			a.logger.Error(name+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		closeLogged("kafka producer", a.producer.Close)
	}
	if a.dlq != nil {
		closeLogged("kafka dlq producer", a.dlq.Close)
	}
	if a.gateway != nil {
		closeLogged("retrieval gateway", a.gateway.Close)
	}
	if a.files != nil {
		closeLogged("media storage", a.files.Close)
	}
	if a.redis != nil {
		closeLogged("redis", a.redis.Close)
	}
	if a.pool != nil {
		a.pool.Close()
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
