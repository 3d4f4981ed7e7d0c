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

	"github.com/ecomstack/identity/internal/auth"
	"github.com/ecomstack/identity/internal/cart"
	"github.com/ecomstack/identity/internal/config"
	"github.com/ecomstack/identity/internal/event"
	handler "github.com/ecomstack/identity/internal/handler/http"
	"github.com/ecomstack/identity/internal/ratelimit"
	"github.com/ecomstack/identity/internal/repository/postgres"
	"github.com/ecomstack/identity/internal/service"
	"github.com/ecomstack/identity/migrations"
	"github.com/ecomstack/identity/pkg/database"
	"github.com/ecomstack/identity/pkg/health"
	"github.com/ecomstack/identity/pkg/httpclient"
	pkgkafka "github.com/ecomstack/identity/pkg/kafka"
	"github.com/ecomstack/identity/pkg/middleware"
	"github.com/ecomstack/identity/pkg/tracing"
)

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "identity",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
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
	database.RegisterPoolMetrics(pool, "identity")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis for login and reset throttling.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Cart service client behind a circuit breaker.
	cartHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("cart"),
		logger,
	)
	cartClient := cart.NewClient(cartHTTP, cfg.CartServiceURL, logger)

	// Rate limiters; nil disables throttling entirely.
	var loginLimiter, resetLimiter service.RateLimiter
	if !cfg.RateLimitingDisabled {
		loginLimiter = ratelimit.NewLimiter(redisClient, "login", cfg.LoginRateLimit,
			time.Duration(cfg.LoginRateWindowSecs)*time.Second, logger)
		resetLimiter = ratelimit.NewLimiter(redisClient, "pwreset", cfg.ResetRateLimit,
			time.Duration(cfg.ResetRateWindowSecs)*time.Second, logger)
	}

	// Build the dependency graph.
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Expiry:   cfg.AccessExpiry(),
	})
	accountRepo := postgres.NewAccountRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	txManager := postgres.NewTxManager(pool)
	eventProducer := event.NewProducer(producer, logger)

	identityService := service.NewIdentityService(service.IdentityServiceDeps{
		Accounts:     accountRepo,
		Tokens:       tokenRepo,
		Tx:           txManager,
		Codes:        auth.NewCodeGenerator(),
		RefreshFact:  auth.NewRefreshTokenFactory(cfg.RefreshExpiry()),
		Issuer:       issuer,
		ResetTokens:  auth.NewResetTokenProvider(cfg.JWTSecret, cfg.ResetTokenTTL()),
		Hasher:       auth.NewPasswordHasher(auth.DefaultBcryptCost),
		Carts:        cartClient,
		Producer:     eventProducer,
		LoginLimiter: loginLimiter,
		ResetLimiter: resetLimiter,
		ResetLinks: service.ResetLinkConfig{
			WebBaseURL:   cfg.ResetLinkWebBaseURL,
			MobileScheme: cfg.ResetLinkMobileScheme,
			Page:         cfg.ResetLinkPage,
		},
		CodeTTL: cfg.CodeTTL(),
		Logger:  logger,
	})

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.Environment = cfg.Environment

	cookies := handler.CookieConfig{
		Secure: cfg.Environment != "development",
		MaxAge: cfg.RefreshExpiry(),
	}

	router := handler.NewRouter(identityService, issuer, healthHandler, cookies, corsConfig, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
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

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Redis client.
	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis client close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
