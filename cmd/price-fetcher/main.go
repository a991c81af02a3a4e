package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/config"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/metrics"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/api"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/cache"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/resolver"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/version"

	// Import adapters to register them
	_ "github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources/aggregator"
	_ "github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources/cex"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("price-fetcher version %s\n", version.Version)
		os.Exit(0)
	}

	// Load .env if present so ${VAR} references in the config resolve
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting price-fetcher", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Build source adapters from the registry in declaration order.
	srcs := make([]sources.Source, 0, len(cfg.Sources))
	for _, sourceCfg := range cfg.EnabledSources() {
		adapterConfig := sourceCfg.Config
		if adapterConfig == nil {
			adapterConfig = make(map[string]interface{})
		}
		adapterConfig["logger"] = logger

		src, err := sources.Create(sourceCfg.Name, adapterConfig)
		if err != nil {
			logger.Fatal("Failed to create source", "name", sourceCfg.Name, "error", err)
		}
		logger.Info("Configured source", "name", src.Name(), "type", string(src.Type()))
		srcs = append(srcs, src)
	}

	priceCache := cache.New(cfg.Server.FailureTTL.ToDuration(), logger)
	res := resolver.New(
		srcs,
		priceCache,
		cfg.Server.CacheTTL.ToDuration(),
		cfg.Server.FetchTimeout.ToDuration(),
		cfg.Server.Intermediates,
		logger,
	)

	server := api.NewServer(cfg.Server.HTTP.Addr, res, cfg.Server.DefaultQuote, logger)

	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(res, cfg.Server.WebSocket.PushInterval.ToDuration(), logger)
		wsServer.Start()
		server.SetWebSocketServer(wsServer)
		logger.Info("WebSocket streaming enabled", "push_interval", cfg.Server.WebSocket.PushInterval.ToDuration().String())
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if wsServer != nil {
		wsServer.Stop()
	}
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Shutdown complete")
}
