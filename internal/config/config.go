package config

import (
	"fmt"
	"github.com/joho/godotenv"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/satdata/tracegas-aggregation/internal/tracegas"
)

type AppConfig struct {
	// Local product file layout.
	DataDir    string
	FilePrefix string

	// Remote archive; empty disables remote fetching.
	ArchiveBaseURL string
	HTTPTimeout    time.Duration

	// Optional holiday calendar file (one yyyymmdd per line).
	HolidayFile string

	// ScheduleInterval controls how often standing jobs re-run.
	ScheduleInterval time.Duration

	// Standing averaging jobs over a trailing window of days.
	JobField      string
	JobBounds     tracegas.Bounds
	JobWindowDays int
	JobEnabled    bool

	// In-memory store retention.
	StoreMaxHistory int           // max number of results per field (0 = unlimited)
	StoreMaxAge     time.Duration // max age of results (0 = unlimited)

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.FilePrefix = getenvDefault("FILE_PREFIX", "OMI-Aura_L2-OMNO2_")

	cfg.ArchiveBaseURL = os.Getenv("ARCHIVE_BASE_URL")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "60s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.HolidayFile = os.Getenv("HOLIDAY_FILE")

	// Scheduler interval: default 6 hours.
	intervalStr := getenvDefault("SCHEDULE_INTERVAL", "6h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_INTERVAL: %w", err)
	}
	cfg.ScheduleInterval = interval

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 30)

	maxAgeStr := getenvDefault("STORE_MAX_AGE", "720h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge
	cfg.Port = getenvDefault("PORT", "8080")

	if err := loadStandingJob(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadStandingJob parses the optional standing-job settings. The job is
// enabled only when JOB_BOUNDS is set.
func loadStandingJob(cfg *AppConfig) error {
	bounds := os.Getenv("JOB_BOUNDS")
	if bounds == "" {
		return nil
	}

	parts := strings.Split(bounds, ",")
	if len(parts) != 4 {
		return fmt.Errorf("JOB_BOUNDS must be lonmin,lonmax,latmin,latmax")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("invalid JOB_BOUNDS value %q: %w", p, err)
		}
		vals[i] = v
	}

	cfg.JobBounds = tracegas.Bounds{
		LonMin: vals[0], LonMax: vals[1],
		LatMin: vals[2], LatMax: vals[3],
	}
	cfg.JobField = getenvDefault("JOB_FIELD", "ColumnAmountNO2Trop")
	cfg.JobWindowDays = getenvInt("JOB_WINDOW_DAYS", 30)
	cfg.JobEnabled = true

	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
