package app

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vipogroup/vipo-orders/internal/config"
	"github.com/vipogroup/vipo-orders/internal/event"
	handler "github.com/vipogroup/vipo-orders/internal/handler/http"
	"github.com/vipogroup/vipo-orders/internal/repository/postgres"
	"github.com/vipogroup/vipo-orders/internal/service"
	"github.com/vipogroup/vipo-orders/pkg/database"
	"github.com/vipogroup/vipo-orders/pkg/health"
	pkgkafka "github.com/vipogroup/vipo-orders/pkg/kafka"
	"github.com/vipogroup/vipo-orders/pkg/tracing"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// dedupTTL bounds how long processed payment event IDs are remembered. The
// unique event_id constraint in PostgreSQL remains the durable backstop.
const dedupTTL = 72 * time.Hour

// App wires together all dependencies and runs the order lifecycle service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *service.PaymentEventConsumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tracing.
	tracingCfg := tracing.DefaultConfig("vipo-orders")
	tracingCfg.Environment = cfg.Environment
	if cfg.OTLPEndpoint != "" {
		tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
		tracingCfg.Enabled = true
	}
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "orders")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Schema migrations.
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Redis for cross-instance payment event dedup.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost))

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	orderRepo := postgres.NewOrderRepository(pool)
	paymentEventRepo := postgres.NewPaymentEventRepository(pool)
	auditRepo := postgres.NewAuditLogRepository(pool)

	eventProducer := event.NewProducer(producer, logger)
	lifecycle := service.NewOrderLifecycle(orderRepo, auditRepo, eventProducer, logger)
	orderService := service.NewOrderService(orderRepo, auditRepo, lifecycle, logger)

	dedupStore := pkgkafka.NewRedisIdempotencyStore(redisClient, "vipo:orders:payment-events", dedupTTL)
	reconciler := service.NewReconciler(paymentEventRepo, lifecycle, dedupStore, logger)

	consumer := service.NewPaymentEventConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, reconciler, dedupStore, logger)

	// Health checks.
	// Redis and Kafka are non-critical: the dedup store fails open and the
	// event_id unique constraint is the durable backstop, and publish
	// failures never block status updates.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	// HTTP router.
	router := handler.NewRouter(cfg, orderService, reconciler, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		consumer:       consumer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the payment event consumer, and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		if err := a.consumer.Start(consumerCtx); err != nil {
			errCh <- fmt.Errorf("payment event consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.consumer.Close(); err != nil {
		a.logger.Error("payment event consumer close error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
