package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"dfchart/pkg/cache"
	"dfchart/pkg/config"
	"dfchart/pkg/extrema"
	"dfchart/pkg/metrics"
	"dfchart/pkg/render"
	"dfchart/pkg/samplestore"
	"dfchart/pkg/series"
	"dfchart/pkg/window"
)

// Service is a Monitor wired to the sample database, the render cache and
// the gnuplot engine described by a configuration.
type Service struct {
	*Monitor
	Cache *cache.Cache
	Store samplestore.Store
}

// Open builds a Service from cfg. Collectors are registered with reg when
// it is not nil.
func Open(cfg *config.Config, reg prometheus.Registerer, logger zerolog.Logger) (*Service, error) {
	format, err := cfg.RenderFormat()
	if err != nil {
		return nil, err
	}

	store, err := samplestore.Open(cfg.Store.Path, samplestore.Options{
		Migrate:  cfg.Store.Migrate,
		TraceSQL: cfg.Store.TraceSQL,
		Logger:   logger.With().Str("component", "store").Logger(),
	})
	if err != nil {
		return nil, err
	}

	return NewService(cfg, store, render.NewGnuplot(cfg.Render.Binary, logger), format, reg, logger)
}

// NewService wires a Service around an already opened store and engine.
func NewService(cfg *config.Config, store samplestore.Store, engine render.Engine, format render.Format,
	reg prometheus.Registerer, logger zerolog.Logger) (*Service, error) {
	fetcher := series.NewFetcher(store, series.Options{}, logger.With().Str("component", "series").Logger())
	aggregator := extrema.NewAggregator(store, logger.With().Str("component", "extrema").Logger())

	artifacts, err := cache.New(cache.Options{
		Dir:      cfg.Cache.Dir,
		Format:   format,
		Terminal: cfg.TerminalOptions(),
		Coalesce: cfg.Cache.Coalesce,
	}, fetcher, aggregator, engine, metrics.New(reg), logger.With().Str("component", "cache").Logger())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Service{
		Monitor: New(window.NewResolver(nil), artifacts, aggregator, store, logger),
		Cache:   artifacts,
		Store:   store,
	}, nil
}

// Close releases the sample database.
func (s *Service) Close() error {
	return s.Store.Close()
}
