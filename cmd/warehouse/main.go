// cmd/warehouse/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/connector"
	"github.com/jaysh0/retail-warehouse/pkg/pipeline"
	"github.com/jaysh0/retail-warehouse/pkg/warehouse"
)

func usage() {
	fmt.Fprintf(os.Stderr, `retail-warehouse ingestion pipeline

Usage:
  warehouse clean <file.csv> [...]          clean files, write artifacts, no database
  warehouse load <file.csv> [...]           clean files and load them into the warehouse
  warehouse load-catalog <file.csv> [...]   load a product catalog into the products dimension
  warehouse init-schema                     create the warehouse tables and indexes
  warehouse populate-time [-start YYYY-MM-DD] [-end YYYY-MM-DD]
                                            populate the time dimension for a date range

Configuration comes from the environment (.env is read when present).
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]
	if err := dispatch(ctx, cfg, logger, command, args); err != nil {
		logger.Error("Command failed",
			zap.String("command", command),
			zap.Error(err))
		os.Exit(1)
	}
}

// buildLogger constructs the process logger from configuration. The json
// format is the production default; console is for local runs.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg.Level = parsed

	return zcfg.Build()
}

func dispatch(ctx context.Context, cfg *config.Config, logger *zap.Logger, command string, args []string) error {
	switch command {
	case "clean":
		return runClean(ctx, cfg, logger, args)
	case "load":
		return runLoad(ctx, cfg, logger, args)
	case "load-catalog":
		return runLoadCatalog(ctx, cfg, logger, args)
	case "init-schema":
		return runInitSchema(ctx, cfg)
	case "populate-time":
		return runPopulateTime(ctx, cfg, args)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// connect opens the warehouse connection and verifies it is usable
func connect(ctx context.Context, cfg *config.Config) (*connector.PostgresConnector, error) {
	pgCfg, err := cfg.RequireDatabase()
	if err != nil {
		return nil, err
	}

	conn, err := connector.NewPostgresConnector(ctx, pgCfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Validate(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// runClean cleans the given files without touching the warehouse
func runClean(ctx context.Context, cfg *config.Config, logger *zap.Logger, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("clean requires at least one input file")
	}

	manager, err := pipeline.NewManager(cfg, nil, logger)
	if err != nil {
		return err
	}

	summary, err := manager.Run(ctx, files)
	logSummary(logger, manager, summary)
	return err
}

// runLoad cleans the given files and loads them into the warehouse. The
// star tables are ensured first so a fresh database works without a
// separate init-schema run.
func runLoad(ctx context.Context, cfg *config.Config, logger *zap.Logger, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("load requires at least one input file")
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	schemaManager := warehouse.NewSchemaManager(conn, conn.Schema()).
		WithTimeout(cfg.OperationTimeout)
	if err := schemaManager.EnsureTables(ctx); err != nil {
		return err
	}

	manager, err := pipeline.NewManager(cfg, conn, logger)
	if err != nil {
		return err
	}

	summary, err := manager.Run(ctx, files)
	logSummary(logger, manager, summary)
	return err
}

// runLoadCatalog loads product catalog files into the products dimension,
// forcing the catalog cleaning profile regardless of file names
func runLoadCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("load-catalog requires at least one catalog file")
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	schemaManager := warehouse.NewSchemaManager(conn, conn.Schema()).
		WithTimeout(cfg.OperationTimeout)
	if err := schemaManager.EnsureTables(ctx); err != nil {
		return err
	}

	manager, err := pipeline.NewManager(cfg, conn, logger)
	if err != nil {
		return err
	}

	summary, err := manager.RunCatalog(ctx, files)
	logSummary(logger, manager, summary)
	return err
}

// runInitSchema creates the warehouse tables and indexes
func runInitSchema(ctx context.Context, cfg *config.Config) error {
	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return warehouse.NewSchemaManager(conn, conn.Schema()).
		WithTimeout(cfg.OperationTimeout).
		EnsureTables(ctx)
}

// runPopulateTime fills the time dimension for the configured (or
// flag-overridden) date range
func runPopulateTime(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("populate-time", flag.ExitOnError)
	start := fs.String("start", cfg.TimeRangeStart, "first date to populate, inclusive (YYYY-MM-DD)")
	end := fs.String("end", cfg.TimeRangeEnd, "last date to populate, inclusive (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", *start, err)
	}
	endDate, err := time.Parse("2006-01-02", *end)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", *end, err)
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	schemaManager := warehouse.NewSchemaManager(conn, conn.Schema()).
		WithTimeout(cfg.OperationTimeout)
	if err := schemaManager.EnsureTables(ctx); err != nil {
		return err
	}

	loader := warehouse.NewTimeDimensionLoader(conn, conn.Schema(), cfg.FiscalYearStart).
		WithBatchSize(cfg.BatchSize).
		WithTimeout(cfg.OperationTimeout)
	_, err = loader.Populate(ctx, startDate, endDate)
	return err
}

// logSummary emits the end-of-run accounting for file-processing commands
func logSummary(logger *zap.Logger, manager *pipeline.Manager, summary *pipeline.RunSummary) {
	if summary == nil {
		return
	}

	logger.Info("Run summary",
		zap.Int("files", summary.Files),
		zap.Int("succeeded", len(summary.SucceededFiles)),
		zap.Int("failed", len(summary.FailedFiles)),
		zap.Int64("rows_read", summary.TotalRowsRead),
		zap.Int64("rows_accepted", summary.TotalRowsAccepted),
		zap.Int64("rows_rejected", summary.TotalRowsRejected),
		zap.Int64("duplicates_removed", summary.TotalDuplicatesRemoved),
		zap.Int64("facts_upserted", summary.TotalFactsUpserted),
		zap.Int64("products_upserted", summary.TotalProductsUpserted),
		zap.Int64("placeholder_products", summary.TotalPlaceholderProducts),
		zap.Int64("placeholder_customers", summary.TotalPlaceholderCustomers),
		zap.Float64("success_rate", summary.SuccessRate()))

	for file, err := range summary.FailedFiles {
		logger.Warn("File failed", zap.String("file", file), zap.Error(err))
	}

	fmt.Println(manager.Metrics().GenerateMetricsReport())
}
