package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dfchart/pkg/cache"
	"dfchart/pkg/monitor"
)

const (
	shutdownTimeout = 10
	mountsTTL       = 30 * time.Second
	mountsKey       = "mounts"
)

// Monitor answers the queries served over HTTP.
type Monitor interface {
	Chart(ctx context.Context, req monitor.Request) (*cache.Artifact, error)
	Extrema(ctx context.Context, req monitor.Request) (*monitor.ExtremaResult, error)
	Mounts(ctx context.Context) ([]string, error)
}

// Pruner expires old artifacts.
type Pruner interface {
	Prune(maxAge time.Duration, now time.Time) (int, error)
}

// Options configure a ChartServer.
type Options struct {
	Version string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Pruner is run every PruneInterval when MaxAge is positive.
	Pruner        Pruner
	MaxAge        time.Duration
	PruneInterval time.Duration
}

// ChartServer exposes charts, extrema and mounts over HTTP.
type ChartServer struct {
	echo    *echo.Echo
	monitor Monitor
	opts    Options
	mounts  gcache.Cache
	logger  zerolog.Logger
	stop    context.CancelFunc
	done    chan struct{}
}

// NewChartServer creates a server answering from mon.
func NewChartServer(mon Monitor, opts Options, logger zerolog.Logger) *ChartServer {
	srv := &ChartServer{
		echo:    echo.New(),
		monitor: mon,
		opts:    opts,
		logger:  logger,
	}
	srv.mounts = gcache.New(1).
		LRU().
		Expiration(mountsTTL).
		LoaderFunc(func(interface{}) (interface{}, error) {
			return srv.monitor.Mounts(context.Background())
		}).
		Build()
	return srv
}

// Handler returns the routed HTTP handler.
func (srv *ChartServer) Handler() http.Handler {
	return srv.echo
}

// Start serves on addr until SIGINT or SIGTERM, then shuts down gracefully.
func (srv *ChartServer) Start(addr string) error {
	srv.setupRoutes()
	srv.startPruner()

	go func() {
		srv.logger.Info().
			Str("addr", addr).
			Str("version", srv.opts.Version).
			Dur("cache_max_age", srv.opts.MaxAge).
			Msg("Starting chart server")

		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return srv.Shutdown()
}

// Shutdown stops the pruner and drains in-flight requests.
func (srv *ChartServer) Shutdown() error {
	srv.logger.Info().Msg("Shutting down server...")

	if srv.stop != nil {
		srv.stop()
		<-srv.done
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout*time.Second)
	defer cancel()

	if err := srv.echo.Shutdown(ctx); err != nil {
		srv.logger.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	srv.logger.Info().Msg("Server gracefully stopped")
	return nil
}

// startPruner runs cache expiry in the background when enabled.
func (srv *ChartServer) startPruner() {
	if srv.opts.Pruner == nil || srv.opts.MaxAge <= 0 || srv.opts.PruneInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv.stop = cancel
	srv.done = make(chan struct{})

	go func() {
		defer close(srv.done)
		srv.pruneLoop(ctx, time.NewTicker(srv.opts.PruneInterval))
	}()
}

func (srv *ChartServer) pruneLoop(ctx context.Context, ticker *time.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := srv.opts.Pruner.Prune(srv.opts.MaxAge, now); err != nil {
				srv.logger.Warn().Err(err).Msg("Cache prune failed")
			}
		}
	}
}

func (srv *ChartServer) setupRoutes() {
	srv.echo.HideBanner = true
	srv.echo.HidePort = true

	srv.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	srv.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${id} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	srv.echo.Use(middleware.Recover())

	srv.echo.GET("/", srv.serveSwaggerUI)
	srv.echo.GET("/swagger.yml", srv.serveSwaggerSpec)
	srv.echo.GET("/health", srv.getHealth)
	srv.echo.GET("/chart", srv.getChart)
	srv.echo.GET("/extrema", srv.getExtrema)
	srv.echo.GET("/mounts", srv.getMounts)
	if srv.opts.Gatherer != nil {
		srv.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(srv.opts.Gatherer, promhttp.HandlerOpts{})))
	}
}
