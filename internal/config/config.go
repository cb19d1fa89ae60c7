package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries all environment-derived settings for the backend.
type Config struct {
	AppEnv   string
	AppName  string
	AppPort  string
	LogLevel string

	MetricsPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Broker URLs, one primary/overflow pair per content pipeline.
	RedisTextPrimaryURL   string
	RedisTextOverflowURL  string
	RedisImagePrimaryURL  string
	RedisImageOverflowURL string

	// DrainInterval is how often each queue router flushes its local buffer.
	DrainInterval time.Duration
	// TransferInterval is how often buffered primary-stream entries are moved
	// to the overflow broker. Zero disables the transfer job.
	TransferInterval time.Duration
	// MemoryThresholdMB is the primary broker utilization above which jobs
	// route to the overflow stream.
	MemoryThresholdMB float64

	// ImageAnalysisMode selects the image pipeline: "ml" or "forensic".
	ImageAnalysisMode string

	RateLimit  int
	RateWindow time.Duration

	TextCallbackURL  string
	ImageCallbackURL string
}

// Load reads configuration from the environment, applying defaults where the
// variable is unset and failing on malformed values or missing required keys.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:                os.Getenv("APP_ENV"),
		AppName:               os.Getenv("APP_NAME"),
		AppPort:               os.Getenv("APP_PORT"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		MetricsPort:           os.Getenv("METRICS_PORT"),
		DBHost:                os.Getenv("DB_HOST"),
		DBPort:                os.Getenv("DB_PORT"),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBName:                os.Getenv("DB_NAME"),
		DBSSLMode:             os.Getenv("DB_SSL_MODE"),
		RedisTextPrimaryURL:   os.Getenv("REDIS_TEXT_PRIMARY_URL"),
		RedisTextOverflowURL:  os.Getenv("REDIS_TEXT_OVERFLOW_URL"),
		RedisImagePrimaryURL:  os.Getenv("REDIS_IMAGE_PRIMARY_URL"),
		RedisImageOverflowURL: os.Getenv("REDIS_IMAGE_OVERFLOW_URL"),
		ImageAnalysisMode:     os.Getenv("IMAGE_ANALYSIS_MODE"),
		TextCallbackURL:       os.Getenv("RESULT_RECEIVER_TEXT"),
		ImageCallbackURL:      os.Getenv("RESULT_RECEIVER_IMAGE"),
	}

	if cfg.AppName == "" {
		cfg.AppName = "satyamark-backend"
	}
	if cfg.AppPort == "" {
		cfg.AppPort = "1000"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.ImageAnalysisMode == "" {
		cfg.ImageAnalysisMode = "ml"
	}

	var err error
	if cfg.DrainInterval, err = durationEnv("JOB_DRAIN_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.TransferInterval, err = durationEnv("STREAM_TRANSFER_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = durationEnv("RATE_WINDOW", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = intEnv("RATE_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.MemoryThresholdMB, err = floatEnv("BROKER_MEMORY_THRESHOLD_MB", 23); err != nil {
		return nil, err
	}

	if cfg.DBHost == "" || cfg.DBPort == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("missing required database environment variables")
	}
	if cfg.RedisTextPrimaryURL == "" || cfg.RedisImagePrimaryURL == "" {
		return nil, fmt.Errorf("missing required broker environment variables")
	}
	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
