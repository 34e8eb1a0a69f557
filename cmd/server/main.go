package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oraclewatch/core/internal/alerting"
	"github.com/oraclewatch/core/internal/alerting/rulesfile"
	"github.com/oraclewatch/core/internal/api"
	"github.com/oraclewatch/core/internal/api/websocket"
	"github.com/oraclewatch/core/internal/config"
	"github.com/oraclewatch/core/internal/services"
	"github.com/oraclewatch/core/pkg/cache"
	"github.com/oraclewatch/core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting ORACLEWATCH-CORE", "environment", cfg.Environment)

	// Valkey cache; fall back to the in-memory cache when unreachable so the
	// engine still runs in degraded mode.
	valkeyCache, err := cache.NewValkey(cfg.Cache.Nodes, time.Duration(cfg.Cache.TTL)*time.Second, logger)
	if err != nil {
		logger.Warn("Valkey connection failed", "error", err)
		valkeyCache = cache.NewNoopValkey(logger)
	} else {
		logger.Info("Valkey cache initialized", "nodes", len(cfg.Cache.Nodes))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket fan-out hub
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// Notification collaborator behind the escalation seam
	notifier := services.NewNotifier(cfg.Integrations, logger, hub)

	// Alert engine
	engine := alerting.NewEngine(alerting.Config{
		DedupWindow:             cfg.Alerting.DedupWindow(),
		SuppressionLogRetention: cfg.Alerting.SuppressionRetention(),
		CleanupInterval:         cfg.Alerting.CleanupInterval(),
		OnEscalate:              notifier.OnEscalate,
		Events:                  hub,
	}, logger)
	engine.Start()
	defer engine.Close()

	// Optional suppression-rule / policy bootstrap file
	if cfg.Alerting.RulesPath != "" {
		loader := rulesfile.NewLoader(cfg.Alerting.RulesPath, engine, logger)
		if err := loader.Load(); err != nil {
			logger.Error("Failed to load rules file", "path", cfg.Alerting.RulesPath, "error", err)
		}
		if cfg.Alerting.WatchRules {
			if err := loader.Watch(ctx); err != nil {
				logger.Error("Failed to watch rules file", "path", cfg.Alerting.RulesPath, "error", err)
			}
		}
	}

	apiServer := api.NewServer(cfg, logger, valkeyCache, engine, hub)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}

	logger.Info("ORACLEWATCH-CORE shutdown complete")
}
