package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumebuilder/internal/config"
	"resumebuilder/internal/database"
	"resumebuilder/internal/metrics"
	"resumebuilder/internal/pdf"
	"resumebuilder/internal/repository"
	"resumebuilder/internal/storage"
	"resumebuilder/internal/tasks"
	"resumebuilder/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	ctx := context.Background()

	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	renderer, err := pdf.NewRenderer(cfg.PDF)
	if err != nil {
		log.Fatalf("init pdf renderer: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		// Each in-flight task holds one browser.
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{tasks.QueueDefault: 1},
		Logger:      newAsynqLogger(logger),
	})

	archiveHandler := worker.NewPDFArchiveHandler(
		repository.NewResumes(db),
		pdf.NewService(renderer, cfg.PDF.RenderTimeout),
		storageClient,
		worker.NewRedisNotifier(redisClient),
		logger,
	)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypePDFArchive, archiveHandler)

	go serveMetrics(cfg.Worker.MetricsAddr, logger)

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.String("pdf_engine", cfg.PDF.Engine),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}
