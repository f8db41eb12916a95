package main

import (
	_ "embed"
	"flag"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"dfchart/pkg/config"
	"dfchart/pkg/log"
	"dfchart/pkg/monitor"
	"dfchart/pkg/server"
)

//go:embed VERSION
var Version string

func main() {
	// Initialize logger first
	_ = log.Logger

	configPath := flag.String("config", "", "YAML configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	overrides := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	overrides.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := log.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}
	if *debug {
		log.SetDebugMode()
	}

	log.Debug().
		Str("listen", cfg.Listen).
		Str("store", cfg.Store.Path).
		Str("cache", cfg.Cache.Dir).
		Str("format", cfg.Render.Format).
		Bool("coalesce", cfg.Cache.Coalesce).
		Msg("Configuration loaded")
	if cfg.Cache.MaxAge <= 0 {
		log.Warn().Str("cache", cfg.Cache.Dir).Msg("Cache pruning disabled, artifacts are kept forever")
	}

	service, err := monitor.Open(cfg, prometheus.DefaultRegisterer, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store.Path).Msg("Failed to open sample store")
	}

	srv := server.NewChartServer(service, server.Options{
		Version:       strings.TrimSpace(Version),
		Gatherer:      prometheus.DefaultGatherer,
		Pruner:        service.Cache,
		MaxAge:        cfg.Cache.MaxAge,
		PruneInterval: cfg.Cache.PruneInterval,
	}, log.Logger.With().Str("component", "server").Logger())

	if err := srv.Start(cfg.Listen); err != nil {
		_ = service.Close()
		log.Fatal().Err(err).Msg("Server failed")
	}

	if err := service.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close sample store")
	}
	os.Exit(0)
}
