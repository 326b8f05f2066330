package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"score_gate/internal/config"
	"score_gate/internal/handler"
	"score_gate/internal/ledger"
	"score_gate/internal/middleware"
	"score_gate/internal/repository"
	"score_gate/internal/service"
	"score_gate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var appLogger logger.Logger
	if cfg.IsProduction() {
		appLogger = logger.New(cfg.Log.Level)
	} else {
		appLogger = logger.NewDevelopment(cfg.Log.Level)
	}
	defer appLogger.Sync()

	ctx := context.Background()

	// PostgreSQL is optional: without it audit events go to the log.
	var dbPool *pgxpool.Pool
	if cfg.Database.DSN != "" {
		dbPool, err = connectDB(ctx, cfg.Database)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", "error", err)
		}
		defer dbPool.Close()
		appLogger.Info("Database connection established")
	}

	// Redis is optional: without it counters and caches stay in memory.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	ledgerClient, err := ledger.Dial(ctx, cfg.Ledger, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize ledger client", "error", err)
	}
	defer ledgerClient.Close()

	repos := repository.NewRepositories(dbPool, rdb, cfg.Redis.Prefix, cfg.Redis.StatsTTL, appLogger)
	services := service.NewServices(repos, ledgerClient, cfg, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.Server.AuxRequestsPerMinute, appLogger)
	handlers := handler.NewHandlers(services, ledgerClient.Configured, cfg, appLogger)

	router, err := setupRouter(handlers, rateLimitMiddleware, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to set up router", "error", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ledger.SubmitTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	// Admitted submissions may still be waiting on the ledger.
	if err := services.Admission.Drain(shutdownCtx); err != nil {
		appLogger.Error("Ledger writes still pending at shutdown", "error", err)
	}
	if err := services.Audit.Close(shutdownCtx); err != nil {
		appLogger.Error("Audit queue not drained", "error", err)
	}

	appLogger.Info("Server exited")
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_DSN: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func setupRouter(
	handlers *handler.Handlers,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.RateLimit.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	router.HandleMethodNotAllowed = true
	router.NoMethod(handler.MethodNotAllowed)

	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)
	router.GET("/server-info", handlers.Health.ServerInfo)

	api := router.Group("/api")
	{
		// The admission pipeline applies its own origin and wallet limits.
		api.POST("/submit-score", handlers.Score.Submit)

		api.GET("/leaderboard", rateLimitMiddleware.Limit(), handlers.Leaderboard.Get)
		api.GET("/leaderboard/:address", rateLimitMiddleware.Limit(), handlers.Leaderboard.GetPlayer)
		api.GET("/stats", rateLimitMiddleware.Limit(), handlers.Stats.GetDecisionStats)

		if handlers.Auth != nil {
			api.POST("/auth/mock", rateLimitMiddleware.Limit(), handlers.Auth.MockLogin)
		}
	}

	return router, nil
}
