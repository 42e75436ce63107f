package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alliance-observatory/internal/config"
	"alliance-observatory/internal/db"
	"alliance-observatory/internal/grouper"
	"alliance-observatory/internal/logging"
	"alliance-observatory/internal/models"
	"alliance-observatory/internal/ocr"
	"alliance-observatory/internal/pipeline"
	"alliance-observatory/internal/redis"
	"alliance-observatory/internal/resolver"
	"alliance-observatory/internal/storage"
	"alliance-observatory/internal/store"
)

// ingest runs a directory of screenshots through the full pipeline without
// the HTTP server. Useful for backfills and for re-processing a batch after
// a parser fix.
func main() {
	dir := flag.String("dir", "", "directory of screenshots to process")
	typeOverride := flag.String("type", "", "bypass the classifier with this screenshot type")
	allianceID := flag.Int64("alliance", 0, "alliance id (default from config)")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -dir <path> [-type <screenshot_type>] [-alliance <id>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_ingest", "dir", *dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
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

	var archiveClient storage.ArchiveClient
	if cfg.ArchiveEndpoint != "" && cfg.ArchiveBucket != "" && cfg.ArchiveKeysRaw != "" {
		var keys map[string]string
		if err := json.Unmarshal([]byte(cfg.ArchiveKeysRaw), &keys); err == nil {
			if s3Client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.ArchiveEndpoint,
				AccessKeyID:     keys["access_key_id"],
				SecretAccessKey: keys["secret_access_key"],
				Bucket:          cfg.ArchiveBucket,
				PublicURL:       cfg.ArchivePublicURL,
				Region:          cfg.ArchiveRegion,
			}); err == nil {
				archiveClient = s3Client
			}
		}
	}
	if archiveClient == nil {
		archiveClient = storage.NewSimulator(cfg.ArchiveBucket, cfg.ArchiveEndpoint)
	}

	var primary ocr.Recognizer
	if cfg.VisionEndpoint != "" && cfg.VisionAPIKey != "" {
		limiter := ocr.NewCallLimiter(cfg.VisionMinInterval)
		retry := ocr.DefaultRetryConfig()
		retry.MaxRetries = cfg.VisionMaxRetries
		primary = ocr.NewVisionClient(logger, cfg.VisionEndpoint, cfg.VisionAPIKey, cfg.VisionModel, limiter, retry)
	}
	fallback := ocr.NewTesseractRecognizer(cfg.TesseractLangs)

	tz, err := time.LoadLocation(cfg.ScreenshotTZ)
	if err != nil {
		tz = time.UTC
	}

	st := store.New(dbConn)
	res := resolver.New(logger, st)
	grp := grouper.New(logger, st)
	pipe := pipeline.New(logger, st, redisClient, res, grp, archiveClient, primary, fallback, tz)

	alliance := cfg.DefaultAllianceID
	if *allianceID > 0 {
		alliance = *allianceID
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("read_dir_failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	processed, failed := 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}

		path := filepath.Join(*dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("file_read_failed", "path", path, "error", err)
			failed++
			continue
		}

		sc := &models.Screenshot{AllianceID: alliance, Filename: entry.Name()}
		id, err := st.CreateScreenshot(ctx, sc)
		if err != nil {
			logger.Error("screenshot_create_failed", "path", path, "error", err)
			failed++
			continue
		}

		result := pipe.Process(ctx, pipeline.Job{
			ScreenshotID: id,
			AllianceID:   alliance,
			Filename:     entry.Name(),
			Data:         data,
			TypeOverride: models.ScreenshotType(*typeOverride),
		})

		if result.Status == models.StatusSucceeded {
			processed++
			fmt.Printf("%-50s %-22s records=%d degraded=%v\n",
				entry.Name(), result.DetectedType, result.RecordsSaved, result.Degraded)
		} else {
			failed++
			fmt.Printf("%-50s FAILED: %s\n", entry.Name(), result.ErrorMessage)
		}
	}

	logger.Info("ingest_finished", "processed", processed, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
