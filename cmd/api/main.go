package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumebuilder/internal/analysis"
	"resumebuilder/internal/api"
	"resumebuilder/internal/auth"
	"resumebuilder/internal/config"
	"resumebuilder/internal/database"
	"resumebuilder/internal/pdf"
	"resumebuilder/internal/storage"
	"resumebuilder/internal/tasks"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.String("name", cfg.Database.Name),
	)

	authService, err := auth.LoadAuthService(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.AccessTokenTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	renderer, err := pdf.NewRenderer(cfg.PDF)
	if err != nil {
		log.Fatalf("init pdf renderer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		DB:                    db,
		Auth:                  authService,
		Renderer:              pdf.NewService(renderer, cfg.PDF.RenderTimeout),
		Analyzer:              analysis.NewHeuristic(),
		Logger:                logger,
		LoginRateLimitPerHour: cfg.Auth.LoginRateLimitPerHour,
		UIRedirectURL:         cfg.API.UIRedirectURL,
		AllowedOrigins:        cfg.API.AllowedOrigins,
	}

	if cfg.Google.Enabled() {
		deps.Google = auth.NewGoogleService(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		logger.Info("google sign-in enabled")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable; rate limiting, notifications and archiving disabled",
			slog.String("addr", cfg.Redis.Addr()),
			slog.Any("error", err),
		)
	} else {
		deps.Redis = redisClient

		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
		defer asynqClient.Close()

		storageClient, err := storage.NewClient(ctx, cfg.MinIO)
		if err != nil {
			logger.Warn("object storage unavailable; archiving disabled", slog.Any("error", err))
		} else {
			deps.Queue = tasks.Enqueuer(asynqClient)
			deps.Storage = storageClient
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr), slog.String("pdf_engine", cfg.PDF.Engine))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
