package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains storage and messaging parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	EventsIndex       string
	SourcesIndex      string
	SourcesFile       string
	KafkaBrokers      []string
	KafkaTopic        string
}

// Ingest tunes a scrape run.
type Ingest struct {
	Concurrency       int
	DetailConcurrency int
	FetchTimeout      time.Duration
	RetentionMonths   int
	UserAgent         string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Ingest
	BindAddr   string
	CronSecret string
	RunTimeout time.Duration
}

// Worker holds configuration for the scheduled run loop.
type Worker struct {
	Common
	Ingest
	Interval time.Duration
	Once     bool
}

// Retention configures the standalone cleanup loop.
type Retention struct {
	Common
	Interval        time.Duration
	RetentionMonths int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		EventsIndex:       getEnv("ELASTICSEARCH_INDEX", "events"),
		SourcesIndex:      getEnv("ELASTICSEARCH_SOURCES_INDEX", "sources"),
		SourcesFile:       getEnv("SOURCES_FILE", "sources.yml"),
		KafkaBrokers:      splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "event_runs"),
	}
}

func loadIngest() (Ingest, error) {
	c := Ingest{
		Concurrency:       getInt("INGEST_CONCURRENCY", 4),
		DetailConcurrency: getInt("DETAIL_CONCURRENCY", 4),
		FetchTimeout:      getDuration("FETCH_TIMEOUT", "15s"),
		RetentionMonths:   getInt("RETENTION_MONTHS", 3),
		UserAgent:         getEnv("SCRAPER_USER_AGENT", "CambridgeInnovationEvents/1.0 (community aggregator)"),
	}

	if c.Concurrency <= 0 {
		return c, fmt.Errorf("INGEST_CONCURRENCY must be positive")
	}
	if c.DetailConcurrency <= 0 {
		return c, fmt.Errorf("DETAIL_CONCURRENCY must be positive")
	}
	if c.FetchTimeout <= 0 {
		return c, fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.RetentionMonths <= 0 {
		return c, fmt.Errorf("RETENTION_MONTHS must be positive")
	}
	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	ingest, err := loadIngest()
	if err != nil {
		return nil, err
	}
	c := &API{
		Common:     loadCommon(),
		Ingest:     ingest,
		BindAddr:   getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		CronSecret: os.Getenv("CRON_SECRET"),
		RunTimeout: getDuration("API_RUN_TIMEOUT", "5m"),
	}

	if c.RunTimeout <= 0 {
		return nil, fmt.Errorf("API_RUN_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	ingest, err := loadIngest()
	if err != nil {
		return nil, err
	}
	c := &Worker{
		Common:   loadCommon(),
		Ingest:   ingest,
		Interval: getDuration("WORKER_INTERVAL", "3h"),
		Once:     getBool("WORKER_ONCE", false),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("WORKER_INTERVAL must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:          loadCommon(),
		Interval:        getDuration("RETENTION_CRON", "24h"),
		RetentionMonths: getInt("RETENTION_MONTHS", 3),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.RetentionMonths <= 0 {
		return nil, fmt.Errorf("RETENTION_MONTHS must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
