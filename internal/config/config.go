package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// screenshot archive (S3/R2 compatible)
	ArchiveEndpoint  string
	ArchiveBucket    string
	ArchiveRegion    string
	ArchivePublicURL string
	ArchiveKeysRaw   string // raw secret, kept in-memory only; never log

	// hosted recognition service
	VisionEndpoint    string
	VisionAPIKey      string
	VisionModel       string
	VisionMinInterval time.Duration
	VisionMaxRetries  int

	// local tesseract fallback
	TesseractLangs string

	ScreenshotTZ      string
	DefaultAllianceID int64
	WorkerCount       int
	QueueSize         int

	AdminSecretKey string
	CORSOrigins    []string
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:           os.Getenv("DB_DSN"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:        getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		ArchiveEndpoint: getenvDefault("ARCHIVE_ENDPOINT", ""),
		ArchiveBucket:   getenvDefault("ARCHIVE_BUCKET", ""),
		ArchiveRegion:   getenvDefault("ARCHIVE_REGION", "auto"),
		ArchivePublicURL: getenvDefault("ARCHIVE_PUBLIC_URL", ""),
		ArchiveKeysRaw:  os.Getenv("ARCHIVE_KEYS"),
		VisionEndpoint:  getenvDefault("VISION_ENDPOINT", ""),
		VisionAPIKey:    os.Getenv("VISION_API_KEY"),
		VisionModel:     getenvDefault("VISION_MODEL", "gpt-4o-mini"),
		TesseractLangs:  getenvDefault("TESSERACT_LANGS", "eng"),
		ScreenshotTZ:    getenvDefault("SCREENSHOT_TZ", "UTC"),
		AdminSecretKey:  getenvDefault("ADMIN_SECRET_KEY", ""),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// light validation: archive keys must be valid json if set
	if cfg.ArchiveKeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.ArchiveKeysRaw), &tmp); err != nil {
			return Config{}, errors.New("ARCHIVE_KEYS must be valid json")
		}
	}

	// minimum spacing between hosted recognition calls; the service throttles
	// somewhere above this, so the default stays generous
	intervalSec := getenvInt("VISION_MIN_INTERVAL_SECONDS", 12)
	if intervalSec < 1 {
		intervalSec = 1
	}
	cfg.VisionMinInterval = time.Duration(intervalSec) * time.Second

	cfg.VisionMaxRetries = getenvInt("VISION_MAX_RETRIES", 3)
	if cfg.VisionMaxRetries < 0 {
		cfg.VisionMaxRetries = 0
	}

	cfg.DefaultAllianceID = int64(getenvInt("DEFAULT_ALLIANCE_ID", 1))
	cfg.WorkerCount = getenvInt("WORKER_COUNT", 2)
	cfg.QueueSize = getenvInt("QUEUE_SIZE", 256)

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"}
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
