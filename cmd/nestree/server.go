package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluesky-social/nestedset/catalog"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the category HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "Specify the local IP/port to bind to",
			Value:   ":6700",
			EnvVars: []string{"NESTREE_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"NESTREE_METRICS_LISTEN"},
		},
		&cli.BoolFlag{
			Name:    "pprof",
			Usage:   "expose /debug/pprof on the API listener",
			EnvVars: []string{"NESTREE_PPROF"},
		},
	},
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		srv := NewServer(Config{
			Logger:     slog.Default(),
			Catalog:    cat,
			Bind:       cctx.String("bind"),
			Registerer: prometheus.DefaultRegisterer,
			Pprof:      cctx.Bool("pprof"),
		})

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.RunMetrics(ctx, cctx.String("metrics-listen"))
		})
		eg.Go(func() error {
			return srv.RunAPI(ctx)
		})
		return eg.Wait()
	}),
}

type Server struct {
	cat    *catalog.Catalog
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

type Config struct {
	Logger  *slog.Logger
	Catalog *catalog.Catalog
	Bind    string

	// request metrics are registered here; nil disables them
	Registerer prometheus.Registerer
	Pprof      bool
}

func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := echo.New()

	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		cat:    config.Catalog,
		echo:   e,
		logger: logger.With("system", "server"),
	}
	srv.httpd = &http.Server{
		Handler:        otelhttp.NewHandler(srv, "nestree"),
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler
	if config.Registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "nestree",
			Registerer: config.Registerer,
		}))
	}
	if config.Pprof {
		pprof.Register(e)
	}

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/categories", srv.HandleList)
	e.POST("/categories", srv.HandleCreate)
	e.GET("/categories/:id", srv.HandleGet)
	e.PATCH("/categories/:id", srv.HandleRename)
	e.DELETE("/categories/:id", srv.HandleDelete)
	e.GET("/categories/:id/tree", srv.HandleSubtree)
	e.GET("/categories/:id/path", srv.HandlePath)
	e.POST("/categories/:id/move", srv.HandleMove)
	e.POST("/categories/:id/reparent", srv.HandleReparent)
	e.GET("/admin/check", srv.HandleCheck)
	e.POST("/admin/rebuild", srv.HandleRebuild)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// RunAPI serves until ctx is done, then shuts down gracefully.
func (srv *Server) RunAPI(ctx context.Context) error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)

	errc := make(chan error, 1)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	srv.logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.httpd.Shutdown(sctx); err != nil {
		return err
	}
	srv.logger.Info("graceful shutdown complete")
	return nil
}

// RunMetrics serves prometheus metrics on /metrics until ctx is done.
func (srv *Server) RunMetrics(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	msrv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		msrv.Close()
	}()
	if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start metrics endpoint: %w", err)
	}
	return nil
}
