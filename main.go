package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-scenario-engine/config"
	"crypto-scenario-engine/internal/analysis"
	"crypto-scenario-engine/internal/api"
	"crypto-scenario-engine/internal/feed"
	"crypto-scenario-engine/internal/forwardtest"
	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/levels"
	"crypto-scenario-engine/internal/logging"
	"crypto-scenario-engine/internal/marketdata"
	"crypto-scenario-engine/internal/scenario"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Output: cfg.LoggingConfig.Output,
		Pretty: cfg.LoggingConfig.Pretty,
	})
	log.Info().Msg("starting scenario engine")

	var provider marketdata.Provider
	if cfg.MarketDataConfig.MockMode {
		log.Warn().
			Strs("symbols", cfg.MarketDataConfig.MockSymbols).
			Msg("mock mode enabled, using simulated market data")
		mock := marketdata.NewMockProvider()
		for _, symbol := range cfg.MarketDataConfig.MockSymbols {
			mock.SeedSynthetic(symbol, cfg.AnalysisConfig.DefaultInterval, cfg.AnalysisConfig.DefaultLimit)
		}
		provider = mock
	} else {
		provider = marketdata.NewClient(cfg.MarketDataConfig.BaseURL, cfg.MarketDataConfig.RequestTimeout)
	}

	var cached *marketdata.CachedProvider
	if cfg.RedisConfig.Enabled {
		cached, err = marketdata.NewCachedProvider(provider, marketdata.RedisConfig{
			Enabled:  true,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		} else {
			provider = cached
			defer cached.Close()
		}
	}

	levelCfg := levels.Config{
		SwingWindow:         cfg.AnalysisConfig.SwingWindow,
		ClusterTolerancePct: cfg.AnalysisConfig.ClusterTolerance,
	}
	opts := scenario.Options{ATRPeriod: cfg.AnalysisConfig.ATRPeriod}

	analyzer, err := analysis.NewAnalyzer(provider, indicators.DefaultConfig(), levelCfg, opts, log)
	if err != nil {
		return fmt.Errorf("init analyzer: %w", err)
	}

	sessions := forwardtest.NewManager(log)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	if cfg.FeedConfig.Enabled {
		if cfg.FeedConfig.Symbol == "" {
			return fmt.Errorf("feed enabled but FEED_SYMBOL is not set")
		}
		live := sessions.Create(forwardtest.Config{Logger: log})
		src := feed.NewWSSource(feed.WSConfig{
			BaseURL:        cfg.FeedConfig.StreamURL,
			Symbol:         cfg.FeedConfig.Symbol,
			ReconnectDelay: cfg.FeedConfig.ReconnectDelay,
		}, log)
		log.Info().
			Str("symbol", cfg.FeedConfig.Symbol).
			Str("session", live.ID()).
			Msg("live tick feed started")
		go func() {
			accepted, rejected, err := feed.Drive(feedCtx, src, live)
			if err != nil && feedCtx.Err() == nil {
				log.Error().Err(err).Msg("live tick feed stopped")
			}
			log.Info().Int("accepted", accepted).Int("rejected", rejected).Msg("live tick feed drained")
		}()
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, analyzer, provider, sessions, log)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	stopFeed()

	timeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("shutdown complete")
	return nil
}
