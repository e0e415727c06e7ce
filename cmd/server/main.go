package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model-trainer-service/internal/adapters/primary/http/handlers"
	"model-trainer-service/internal/adapters/primary/http/middleware"
	"model-trainer-service/internal/adapters/secondary/artifacts"
	"model-trainer-service/internal/adapters/secondary/postgres"
	"model-trainer-service/internal/adapters/secondary/sqlite"
	"model-trainer-service/internal/config"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/ports/output"
	"model-trainer-service/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	closeLog := initLogger(cfg)
	defer closeLog()

	repo, closeDB, err := openRepository(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("open metadata store: %v", err)
	}
	defer closeDB()
	log.WithField("driver", cfg.Database.Driver).Info("metadata store ready")

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	registry := ml.NewRegistry()

	// Secondary Adapters (Output Ports)
	store := artifacts.NewOsStore(cfg.Models.Dir, registry)

	// Core Services (Application Layer)
	trainingSvc := services.NewTrainingService(registry, repo, store, int64(cfg.Models.TrainingMaxConcurrent))
	predictionSvc := services.NewPredictionService(registry, cfg.Models.MaxBatchSize)
	modelSvc := services.NewModelService(repo, store)
	sessions, err := services.NewSessionStore(cfg.Models.SessionCacheSize)
	if err != nil {
		log.Fatalf("create session store: %v", err)
	}

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(registry, trainingSvc, predictionSvc, modelSvc, sessions)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	api := router.Group("/api/v1")
	api.Use(middleware.Auth([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer))
	h.RegisterRoutes(api)

	// Health check with metadata store ping
	router.GET("/healthz", func(c *gin.Context) {
		if err := repo.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (ports.ModelRecordRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewModelRecordRepository(db), func() { db.Close() }, nil

	default:
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create db pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping db: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgres.NewModelRecordRepository(pool), pool.Close, nil
	}
}

func initLogger(cfg *config.Config) func() {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.Logger.File == "" {
		return func() {}
	}
	rotating := &lumberjack.Logger{
		Filename:   cfg.Logger.File,
		MaxSize:    cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return func() { rotating.Close() }
}
