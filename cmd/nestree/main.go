package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bluesky-social/nestedset/catalog"
	"github.com/bluesky-social/nestedset/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "nestree",
		Usage:   "category trees stored as nested sets",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string for the category database",
			Value:   "sqlite://./data/nestree/catalog.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Usage:   "maximum number of open database connections (postgres only)",
			Value:   40,
			EnvVars: []string{"NESTREE_MAX_DB_CONNECTIONS"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "trace database queries with opentelemetry",
			EnvVars: []string{"NESTREE_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"NESTREE_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"NESTREE_LOG_FMT"},
		},
		&cli.BoolFlag{
			Name:  "jaeger",
			Usage: "export traces to a local jaeger collector",
		},
		&cli.StringFlag{
			Name:    "otel-exporter-otlp-endpoint",
			EnvVars: []string{"OTEL_EXPORTER_OTLP_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "env",
			Value:   "dev",
			EnvVars: []string{"ENVIRONMENT"},
			Usage:   "declared hosting environment (prod, qa, etc); used in traces",
		},
	}

	app.Commands = []*cli.Command{
		initCmd,
		addCmd,
		renameCmd,
		moveCmd,
		reparentCmd,
		removeCmd,
		showCmd,
		pathCmd,
		checkCmd,
		rebuildCmd,
		seedCmd,
		serveCmd,
	}

	return app.Run(args)
}

// openCatalog sets up logging, tracing and the database, and returns a
// migrated catalog. The returned func flushes traces and closes the database.
func openCatalog(cctx *cli.Context) (*catalog.Catalog, func(), error) {
	logger, err := cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
	if err != nil {
		return nil, nil, err
	}

	shutdownOTEL, err := setupOTEL(cctx)
	if err != nil {
		return nil, nil, err
	}

	dburl := cctx.String("db-url")
	logger.Debug("setting up database", "url", dburl)
	db, err := cliutil.SetupDatabase(dburl, cctx.Int("max-db-connections"), logger)
	if err != nil {
		shutdownOTEL()
		return nil, nil, err
	}
	if cctx.Bool("db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			shutdownOTEL()
			return nil, nil, err
		}
	}

	cleanup := func() {
		if sqldb, err := db.DB(); err == nil {
			sqldb.Close()
		}
		shutdownOTEL()
	}

	cat, err := catalog.New(db, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := cat.Migrate(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	return cat, cleanup, nil
}

// withCatalog wraps a command action that needs an open catalog.
func withCatalog(fn func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cat, cleanup, err := openCatalog(cctx)
		if err != nil {
			return err
		}
		defer cleanup()
		return fn(cctx.Context, cctx, cat)
	}
}
