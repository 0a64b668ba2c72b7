package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/thebigby10/sugarvoice-backend/app/db"
	"github.com/thebigby10/sugarvoice-backend/config"
	"github.com/thebigby10/sugarvoice-backend/internal/api/auth"
	"github.com/thebigby10/sugarvoice-backend/internal/api/glucose"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *slog.Logger
	Pool           *pgxpool.Pool
	AuthService    auth.AuthService
	AuthHandler    *auth.AuthHandler
	GlucoseHandler *glucose.HandlerImpl
}

// NewContainer opens the database pool and wires repositories, services and
// handlers on top of it.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	c, err := Wire(cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	c.Pool = pool
	return c, nil
}

// Wire builds the object graph over any database.Pool.
func Wire(cfg *config.Config, pool database.Pool, logger *slog.Logger) (*Container, error) {
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost, cfg.Auth.MaxConcurrentHashes, logger)
	tokens, err := auth.NewJWTTokenService(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	limiter := auth.NewLoginLimiter(cfg.Auth.MaxFailedLogins, cfg.Auth.LockoutWindow)

	credentialStore := auth.NewPostgresCredentialStore(pool, hasher, logger)
	authService, err := auth.NewAuthService(credentialStore, hasher, tokens, limiter, cfg.JWT.AccessTokenTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	authHandler := auth.NewAuthHandler(authService, logger)

	glucoseRepo := glucose.NewPostgresGlucoseRepo(pool, logger)
	glucoseService := glucose.NewGlucoseService(glucoseRepo, logger)
	glucoseHandler := glucose.NewHandler(glucoseService, logger)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		AuthService:    authService,
		AuthHandler:    authHandler,
		GlucoseHandler: glucoseHandler,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
		c.Logger.Info("Database connection pool closed")
	}
}
