package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subtide/subtide/app/adapters"
	"github.com/subtide/subtide/app/api"
	"github.com/subtide/subtide/app/cache"
	"github.com/subtide/subtide/app/cfg"
	"github.com/subtide/subtide/app/database"
	"github.com/subtide/subtide/app/feedgen"
	"github.com/subtide/subtide/app/ingest"
	"github.com/subtide/subtide/app/subscriptions"
	"github.com/subtide/subtide/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Subtide server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	itemRepo := database.NewItemRepository(db)
	interactionRepo := database.NewInteractionRepository(db)
	prefRepo := database.NewPreferenceRepository(db)

	registry := buildRegistry(appCfg)

	seedSubscriptions(appCfg.SubscriptionsDir, sourceRepo, prefRepo)

	orchestrator := ingest.NewOrchestrator(registry, sourceRepo, itemRepo)

	scheduler := tasks.NewScheduler(orchestrator)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	generator := feedgen.NewGenerator(nil)

	handler := api.NewHandler(sourceRepo, itemRepo, interactionRepo, prefRepo, registry, generator, orchestrator, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// buildRegistry wires every supported source adapter, wrapping each in the
// Redis response cache when one is configured.
func buildRegistry(appCfg *cfg.Cfg) *adapters.Registry {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	var responseCache cache.Cache
	if appCfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(appCfg.RedisAddr)
		if err != nil {
			slog.Warn("Redis unavailable, running without response cache", "addr", appCfg.RedisAddr, "error", err)
		} else {
			responseCache = redisCache
			slog.Info("Response cache enabled", "addr", appCfg.RedisAddr)
		}
	}

	wrap := func(a adapters.Adapter) adapters.Adapter {
		if responseCache == nil {
			return a
		}
		return adapters.NewCachedAdapter(a, responseCache)
	}

	registry := adapters.NewRegistry()
	registry.Register(adapters.SourceTypeRSS, wrap(adapters.NewRSSAdapter(httpClient, appCfg.UserAgent)))

	return registry
}

// seedSubscriptions registers users, sources, filter rules, and preference
// overrides from the subscriptions directory. Seeding is best-effort: a bad
// entry is logged and skipped so one broken file cannot block startup.
func seedSubscriptions(dir string, sourceRepo database.SourceRepository, prefRepo database.PreferenceRepository) {
	files, err := subscriptions.LoadAll(dir)
	if err != nil {
		slog.Error("Failed to load subscription files", "dir", dir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Info("No subscription files found", "dir", dir)
		return
	}

	for _, file := range files {
		if err := sourceRepo.EnsureUser(file.UserID, file.Name); err != nil {
			slog.Warn("Failed to register user", "user", file.UserID, "error", err)
			continue
		}

		for _, entry := range file.Sources {
			_, err := sourceRepo.RegisterSource(&database.Source{
				UserID:      file.UserID,
				Type:        database.SourceType(entry.Type),
				SourceID:    entry.ID,
				DisplayName: entry.Name,
			})
			if err != nil {
				slog.Warn("Failed to register source", "user", file.UserID, "source_id", entry.ID, "error", err)
			}
		}

		seedFilterRules(file, prefRepo)
		seedPreferences(file, prefRepo)

		slog.Info("Seeded subscriptions", "user", file.UserID, "sources", len(file.Sources), "filters", len(file.Filters))
	}
}

// seedFilterRules adds the file's filter entries, skipping rules the user
// already has so restarts do not duplicate them.
func seedFilterRules(file *subscriptions.File, prefRepo database.PreferenceRepository) {
	existing, err := prefRepo.ListFilterRules(file.UserID)
	if err != nil {
		slog.Warn("Failed to list filter rules", "user", file.UserID, "error", err)
		return
	}

	seen := make(map[string]bool, len(existing))
	for _, rule := range existing {
		seen[ruleSignature(rule.Kind, rule.Pattern, rule.MinSeconds, rule.MaxSeconds)] = true
	}

	for _, entry := range file.Filters {
		rule := database.FilterRule{UserID: file.UserID}
		if entry.Keyword != "" {
			rule.Kind = database.FilterRuleKeyword
			rule.Pattern = entry.Keyword
		} else {
			rule.Kind = database.FilterRuleDuration
			rule.MinSeconds = minutesToSeconds(entry.MinMinutes)
			rule.MaxSeconds = minutesToSeconds(entry.MaxMinutes)
		}

		if seen[ruleSignature(rule.Kind, rule.Pattern, rule.MinSeconds, rule.MaxSeconds)] {
			continue
		}

		if err := prefRepo.AddFilterRule(&rule); err != nil {
			slog.Warn("Failed to add filter rule", "user", file.UserID, "error", err)
		}
	}
}

func seedPreferences(file *subscriptions.File, prefRepo database.PreferenceRepository) {
	if file.Preferences == nil {
		return
	}

	prefs, err := prefRepo.Get(file.UserID)
	if err != nil {
		prefs = database.DefaultPreferences(file.UserID)
	}

	if file.Preferences.BacklogRatio != nil {
		prefs.BacklogRatio = *file.Preferences.BacklogRatio
	}
	if file.Preferences.MaxConsecutive != nil {
		prefs.MaxConsecutive = *file.Preferences.MaxConsecutive
	}

	if err := prefRepo.Upsert(prefs); err != nil {
		slog.Warn("Failed to store preferences", "user", file.UserID, "error", err)
	}
}

func ruleSignature(kind database.FilterRuleKind, pattern string, minSec, maxSec *int) string {
	return fmt.Sprintf("%s|%s|%s|%s", kind, pattern, intPtrString(minSec), intPtrString(maxSec))
}

func intPtrString(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func minutesToSeconds(minutes *int) *int {
	if minutes == nil {
		return nil
	}
	seconds := *minutes * 60
	return &seconds
}
