package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/infra/config"
	"github.com/finvora/invoicing-auth/internal/infra/database"
	kafkainfra "github.com/finvora/invoicing-auth/internal/infra/kafka"
	"github.com/finvora/invoicing-auth/internal/infra/logger"
	"github.com/finvora/invoicing-auth/internal/infra/mailer"
	redisinfra "github.com/finvora/invoicing-auth/internal/infra/redis"
	"github.com/finvora/invoicing-auth/internal/infra/security"
	postgresrepo "github.com/finvora/invoicing-auth/internal/repository/postgres"
	redisrepo "github.com/finvora/invoicing-auth/internal/repository/redis"
	"github.com/finvora/invoicing-auth/internal/transport/http/middleware"
	"github.com/finvora/invoicing-auth/internal/transport/http/routes"
	"github.com/finvora/invoicing-auth/internal/usecase"
)

// Application wires the service together and runs the HTTP server.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	codec, err := security.NewTokenCodec(security.TokenCodecConfig{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
		Issuer:        cfg.App.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	// Mail dispatch degrades to log-only when Kafka is not available so
	// the service still comes up in local environments.
	var mail port.Mailer
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, falling back to log mailer", zap.Error(err))
			mail = mailer.NewLogMailer(log)
			producer = nil
		} else {
			mail = mailer.NewKafkaMailer(producer, cfg.Mail, log)
			log.Info("kafka mailer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using log mailer")
		mail = mailer.NewLogMailer(log)
	}

	validator := security.DefaultPasswordValidator()

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "invauth:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	authService, err := usecase.NewAuthService(repos.Users, repos.Sessions, hasher, codec, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	registrationService, err := usecase.NewRegistrationService(
		repos.Users, repos.Verifications, hasher, validator, mail,
		cfg.Mail.FrontendURL, cfg.Tokens.VerificationTTL, log,
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init registration service: %w", err)
	}

	passwordService, err := usecase.NewPasswordService(
		repos.Users, repos.ResetTokens, repos.Sessions, hasher, validator, mail,
		cfg.Mail.FrontendURL, cfg.Tokens.ResetTTL, log,
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password service: %w", err)
	}
	passwordService.WithRateLimit(rateLimitStore, cfg.RateLimit.PasswordResetMaxAttempts, rateLimitWindow)

	sessionService := usecase.NewSessionService(repos.Sessions, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Metrics:     metrics,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Passwords:    passwordService,
			Sessions:     sessionService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
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
		return nil
	case err := <-serverErrCh:
		return err
	}
}
