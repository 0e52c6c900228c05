package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/core/port"
	"github.com/kangalos/auth-service/internal/infra/config"
	"github.com/kangalos/auth-service/internal/infra/database"
	kafkainfra "github.com/kangalos/auth-service/internal/infra/kafka"
	"github.com/kangalos/auth-service/internal/infra/logger"
	"github.com/kangalos/auth-service/internal/infra/notification"
	redisinfra "github.com/kangalos/auth-service/internal/infra/redis"
	"github.com/kangalos/auth-service/internal/infra/security"
	"github.com/kangalos/auth-service/internal/infra/telemetry"
	postgresrepo "github.com/kangalos/auth-service/internal/repository/postgres"
	redisrepo "github.com/kangalos/auth-service/internal/repository/redis"
	"github.com/kangalos/auth-service/internal/transport/http/handlers"
	"github.com/kangalos/auth-service/internal/transport/http/middleware"
	"github.com/kangalos/auth-service/internal/transport/http/routes"
	"github.com/kangalos/auth-service/internal/usecase"
)

// Application owns every long-lived resource of the service.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

// New wires configuration into the full dependency graph.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	signer, err := security.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	encryptionKey, err := cfg.Crypto.Key()
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	encryptor, err := security.NewTokenEncryptor(encryptionKey)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token encryptor: %w", err)
	}

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	users := postgresrepo.NewUserRepository(pool)
	notifier := notification.NewLoggingDispatcher(log)
	passwordValidator := security.DefaultPasswordValidator()

	registrationService := usecase.NewRegistrationService(cfg, users, notifier, eventPublisher, signer, encryptor, passwordValidator, log)
	authService := usecase.NewAuthService(users, signer, log)
	passwordResetService := usecase.NewPasswordResetService(cfg, users, notifier, eventPublisher, signer, encryptor, passwordValidator, log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), "auth:rate-limit", rateLimitWindow*2)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	health := handlers.NewHealthHandler(
		handlers.ReadinessCheck{Name: "postgres", Check: pool.Ping},
		handlers.ReadinessCheck{Name: "redis", Check: redisClient.HealthCheck},
	)

	engine := routes.NewRouter(routes.Dependencies{
		Config:       cfg,
		Logger:       log,
		Registration: handlers.NewRegistrationHandler(registrationService, log),
		Auth:         handlers.NewAuthHandler(authService, log),
		Password:     handlers.NewPasswordHandler(passwordResetService, log),
		Health:       health,
		RateLimiter:  rateLimiter,
		Metrics:      metrics,
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		tracer:   tracer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then drains connections.
func (a *Application) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()
	defer a.pool.Close()
	defer func() { _ = a.redis.Close() }()
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	}()
	defer func() {
		if a.tracer != nil {
			if err := a.tracer.Shutdown(context.Background()); err != nil {
				a.logger.Warn("shutdown tracer provider", zap.Error(err))
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("server stopped gracefully")
		return nil
	case err := <-serverErrCh:
		return err
	}
}
