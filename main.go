package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"stockboard/config"
	"stockboard/db"
	qhttp "stockboard/http"
	"stockboard/llm"
	"stockboard/logging"
	"stockboard/market"
	"stockboard/market/providers"
	"stockboard/pipeline"
)

func main() {
	// 1. Load config
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize logging
	sync, err := logging.Init(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer sync()

	// 3. Initialize database
	if err := db.InitDB(cfg.Database.Path); err != nil {
		zap.S().Fatalw("database init failed", "path", cfg.Database.Path, "err", err)
	}
	defer db.Close()
	zap.S().Infow("database initialized", "path", cfg.Database.Path)

	// 4. Build the pipeline: feed -> cache -> candidate manager -> transforms
	quotes := providers.NewCachingSource(providers.NewYahooProvider(), cfg.Cache.Size, cfg.CacheTTL())
	manager := providers.NewManager(quotes)

	opts := []pipeline.Option{
		pipeline.WithFlows(providers.NewEastmoneyFlowProvider()),
		pipeline.WithDailyQuotes(providers.NewSinaDailyProvider()),
		pipeline.WithStore(db.Store{}),
	}
	if cfg.SessionSet() {
		opts = append(opts, pipeline.WithSession(market.Session{
			MorningOpen:    cfg.Session.MorningOpen,
			MorningClose:   cfg.Session.MorningClose,
			AfternoonOpen:  cfg.Session.AfternoonOpen,
			AfternoonClose: cfg.Session.AfternoonClose,
		}))
	}
	svc := pipeline.NewService(manager, opts...)
	qhttp.SetPipeline(svc)

	if cfg.LLM.APIKey != "" {
		qhttp.SetAnalyzer(llm.NewDeepSeekAnalyzer(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLMTimeout(), cfg.LLM.MaxTokens))
	} else {
		zap.S().Warn("llm api key not set, analysis endpoint disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Dashboard websocket hub
	hub := qhttp.NewHub(svc, cfg.RefreshInterval())
	go hub.Run(ctx)

	// 6. Watch config for reload-safe changes
	go config.Watch(ctx, "config.yaml", func(fresh *config.Config) {
		// Only symbol-list edits apply without a restart today.
		cfg.Symbols = fresh.Symbols
	})

	// 7. Warm the cache for the configured watchlist
	go func() {
		for _, symbol := range cfg.Symbols {
			if _, err := svc.Load(ctx, symbol, market.IntervalDaily); err != nil {
				zap.S().Warnw("warmup load failed", "symbol", symbol, "err", err)
			}
		}
	}()

	// 8. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTPTimeout(),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, hub)
	go func() {
		if err := server.Start(); err != nil {
			zap.S().Fatalw("http server failed", "err", err)
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down")

	cancel()
	if err := server.Stop(); err != nil {
		zap.S().Warnw("server forced to shutdown", "err", err)
	}
}
