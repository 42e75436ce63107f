package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alliance-observatory/internal/api"
	"alliance-observatory/internal/config"
	"alliance-observatory/internal/db"
	"alliance-observatory/internal/grouper"
	"alliance-observatory/internal/logging"
	"alliance-observatory/internal/ocr"
	"alliance-observatory/internal/pipeline"
	"alliance-observatory/internal/redis"
	"alliance-observatory/internal/resolver"
	"alliance-observatory/internal/storage"
	"alliance-observatory/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "alliance-observatory", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL (with retry; the db container may still be coming up)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Error("schema_init_failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// screenshot archive: S3/R2 when configured, deterministic simulator otherwise
	var archiveClient storage.ArchiveClient
	if cfg.ArchiveEndpoint != "" && cfg.ArchiveBucket != "" && cfg.ArchiveKeysRaw != "" {
		var keys map[string]string
		if err := json.Unmarshal([]byte(cfg.ArchiveKeysRaw), &keys); err == nil {
			s3Client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.ArchiveEndpoint,
				AccessKeyID:     keys["access_key_id"],
				SecretAccessKey: keys["secret_access_key"],
				Bucket:          cfg.ArchiveBucket,
				PublicURL:       cfg.ArchivePublicURL,
				Region:          cfg.ArchiveRegion,
			})
			if err == nil {
				archiveClient = s3Client
				logger.Info("using_s3_archive", "endpoint", cfg.ArchiveEndpoint)
			} else {
				logger.Warn("s3_archive_init_failed", "error", err)
			}
		}
	}
	if archiveClient == nil {
		archiveClient = storage.NewSimulator(cfg.ArchiveBucket, cfg.ArchiveEndpoint)
		logger.Info("using_archive_simulator")
	}

	// hosted vision model behind the shared call limiter; tesseract as the
	// degraded fallback
	var primary ocr.Recognizer
	if cfg.VisionEndpoint != "" && cfg.VisionAPIKey != "" {
		limiter := ocr.NewCallLimiter(cfg.VisionMinInterval)
		retry := ocr.DefaultRetryConfig()
		retry.MaxRetries = cfg.VisionMaxRetries
		primary = ocr.NewVisionClient(logger, cfg.VisionEndpoint, cfg.VisionAPIKey, cfg.VisionModel, limiter, retry)
		logger.Info("vision_client_configured",
			"model", cfg.VisionModel,
			"min_interval", cfg.VisionMinInterval.String(),
			"api_key", logging.MaskKey(cfg.VisionAPIKey),
		)
	} else {
		logger.Warn("vision_not_configured", "msg", "recognition will run on tesseract only")
	}
	fallback := ocr.NewTesseractRecognizer(cfg.TesseractLangs)

	tz, err := time.LoadLocation(cfg.ScreenshotTZ)
	if err != nil {
		logger.Warn("invalid_screenshot_tz", "tz", cfg.ScreenshotTZ, "error", err)
		tz = time.UTC
	}

	st := store.New(dbConn)
	res := resolver.New(logger, st)
	grp := grouper.New(logger, st)

	pipe := pipeline.New(logger, st, redisClient, res, grp, archiveClient, primary, fallback, tz)
	proc := pipeline.NewProcessor(logger, pipe, redisClient, cfg.QueueSize)
	proc.StartWorkers(cfg.WorkerCount)

	srv := api.NewServer(logger, st, redisClient, proc, res, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// stop accepting uploads first, then let in-flight jobs finish
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	proc.StopWorkers()
	logger.Info("pipeline_workers_stopped")

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()
	logger.Info("service_stopped")
}
