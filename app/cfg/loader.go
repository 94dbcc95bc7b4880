package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./subtide.db" description:"Path to the SQLite database file"`

	// Cache configuration
	RedisAddr string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the response cache (optional, cache disabled when empty)"`

	// Application configuration
	SubscriptionsDir  string `long:"subscriptions-dir" env:"SUBSCRIPTIONS_DIR" default:"./subscriptions" description:"Directory containing per-user subscription files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers for ingestion tasks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`

	// Ingestion policy
	FetchDelaySeconds    int `long:"fetch-delay" env:"FETCH_DELAY_SECONDS" default:"2" description:"Base delay between source fetches in seconds"`
	BacklogStaleDays     int `long:"backlog-stale-days" env:"BACKLOG_STALE_DAYS" default:"7" description:"Fetch a backlog page when the last fetch is older than this many days"`
	BacklogCooldownHours int `long:"backlog-cooldown-hours" env:"BACKLOG_COOLDOWN_HOURS" default:"23" description:"Minimum interval between scheduled backlog top-up runs"`
	BacklogPageSize      int `long:"backlog-page-size" env:"BACKLOG_PAGE_SIZE" default:"50" description:"Items requested per backlog page"`
	BacklogBatchSize     int `long:"backlog-batch-size" env:"BACKLOG_BATCH_SIZE" default:"5" description:"Sources crawled per backlog top-up run"`

	// Feed composition policy
	RecencyWindowDays int     `long:"recency-window-days" env:"RECENCY_WINDOW_DAYS" default:"7" description:"Items published within this window count as recent"`
	TargetFeedSize    int     `long:"target-feed-size" env:"TARGET_FEED_SIZE" default:"50" description:"Maximum number of items in a composed feed"`
	NotNowFraction    float64 `long:"not-now-fraction" env:"NOT_NOW_FRACTION" default:"0.2" description:"Fraction of the composed feed eligible for not-now reintegration"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Subtide/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		RedisAddr:            raw.RedisAddr,
		SubscriptionsDir:     raw.SubscriptionsDir,
		Port:                 raw.Port,
		WorkerCount:          raw.WorkerCount,
		SchedulerInterval:    raw.SchedulerInterval,
		APIAccessKey:         raw.APIAccessKey,
		FetchDelaySeconds:    raw.FetchDelaySeconds,
		BacklogStaleDays:     raw.BacklogStaleDays,
		BacklogCooldownHours: raw.BacklogCooldownHours,
		BacklogPageSize:      raw.BacklogPageSize,
		BacklogBatchSize:     raw.BacklogBatchSize,
		RecencyWindowDays:    raw.RecencyWindowDays,
		TargetFeedSize:       raw.TargetFeedSize,
		NotNowFraction:       raw.NotNowFraction,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
