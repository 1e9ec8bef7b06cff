package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidoyelade/invoice-pipeline/internal/common"
	"github.com/davidoyelade/invoice-pipeline/internal/detect"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/export"
	"github.com/davidoyelade/invoice-pipeline/internal/extract"
	"github.com/davidoyelade/invoice-pipeline/internal/ingest"
	"github.com/davidoyelade/invoice-pipeline/internal/llm"
	"github.com/davidoyelade/invoice-pipeline/internal/llm/openai"
	"github.com/davidoyelade/invoice-pipeline/internal/ocr"
	"github.com/davidoyelade/invoice-pipeline/internal/pipeline"
	"github.com/davidoyelade/invoice-pipeline/internal/repository"
	"github.com/davidoyelade/invoice-pipeline/internal/validate"
)

var (
	flagDir         string
	flagConcurrency int
	flagForce       bool
	flagSkipHidden  bool
	flagLocalDB     string
	flagReport      string
)

var rootCmd = &cobra.Command{
	Use:   "invoice-batch [files...]",
	Short: "Run a batch of invoices through the extraction pipeline",
	Long: `Discovers invoice documents (PDF, image, spreadsheet), extracts structured
fields, validates them, and persists the outcomes. Uses Postgres when DB_URL
is set, otherwise a local SQLite file.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), args)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagDir, "dir", "", "directory to scan for invoice documents")
	rootCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "max documents in flight (default from PIPELINE_CONCURRENCY)")
	rootCmd.Flags().BoolVar(&flagForce, "force", false, "reprocess documents whose content hash was already persisted")
	rootCmd.Flags().BoolVar(&flagSkipHidden, "skip-hidden", true, "skip hidden files and directories while scanning")
	rootCmd.Flags().StringVar(&flagLocalDB, "local", "invoices.db", "SQLite file used when DB_URL is not set")
	rootCmd.Flags().StringVar(&flagReport, "report", "", "write an XLSX batch report to this path")
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}
}

func runBatch(ctx context.Context, paths []string) error {
	logger := slog.Default()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if flagDir == "" && len(paths) == 0 {
		return fmt.Errorf("nothing to do: pass file paths or --dir")
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	discoverer := ingest.NewFSDiscoverer(logger)
	var docs []entity.RawDocument
	if flagDir != "" {
		found, stats, err := discoverer.DiscoverDirectory(ctx, flagDir, flagSkipHidden)
		if err != nil {
			return fmt.Errorf("discover %s: %w", flagDir, err)
		}
		logger.Info("discovery complete",
			"dir", flagDir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
		docs = append(docs, found...)
	}
	for _, p := range paths {
		doc, err := discoverer.DiscoverPath(ctx, p)
		if err != nil {
			return fmt.Errorf("discover %s: %w", p, err)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no processable documents found")
	}

	concurrency := flagConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Pipeline.Concurrency
	}

	coordinator := buildCoordinator(cfg, store, logger)
	job := coordinator.Run(ctx, docs, concurrency, flagForce)

	fmt.Printf("batch %s: %d total, %d persisted, %d failed, %d duplicates, %d skipped\n",
		job.ID, job.Total, job.Succeeded, job.Failed, job.Duplicates, job.Skipped)
	for _, o := range job.Outcomes {
		line := fmt.Sprintf("  %-10s %s", o.Status, o.Document.SourcePath)
		if o.Err != "" {
			line += " (" + o.Err + ")"
		}
		fmt.Println(line)
	}

	if flagReport != "" {
		b, err := export.NewService(logger).BatchReportXLSX(job)
		if err != nil {
			return fmt.Errorf("build report: %w", err)
		}
		if err := os.WriteFile(flagReport, b, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report written", "path", flagReport)
	}

	if job.Cancelled {
		return fmt.Errorf("batch cancelled after %d of %d documents", job.Total-job.Skipped, job.Total)
	}
	return nil
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.RecordStore, error) {
	if cfg.Database.DSN != "" {
		pool, err := repository.OpenPool(ctx, repository.PoolConfig{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open database pool: %w", err)
		}
		if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database health check: %w", err)
		}
		return repository.NewPostgresStore(pool, logger), nil
	}
	return repository.OpenSQLite(flagLocalDB, logger)
}

func buildCoordinator(cfg *common.Config, store repository.RecordStore, logger *slog.Logger) *pipeline.Coordinator {
	ocrx := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Magick:        cfg.OCR.Magick,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		MaxParallel:   cfg.OCR.MaxParallel,
		MaxImageBytes: cfg.OCR.MaxImageBytes,
		MaxDimension:  cfg.OCR.MaxDimension,
		Timeout:       cfg.OCR.Timeout,
	}, logger)

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	engine := llm.NewEngine(client, llm.Config{
		DefaultCurrency: cfg.Pipeline.DefaultCurrency,
		Timeout:         cfg.LLM.Timeout,
	}, logger)

	validator := validate.New(validate.Config{
		Tolerance:   cfg.Pipeline.Tolerance,
		MaxTotal:    cfg.Pipeline.MaxTotal,
		GraceWindow: cfg.Pipeline.DateGrace,
	})

	controller := pipeline.NewRefinementController(engine, validator, cfg.Pipeline.MaxRetries, logger)
	processor := pipeline.NewProcessor(
		logger,
		detect.NewDetector(logger),
		extract.NewExtractor(ocrx, logger),
		controller,
		store,
	)
	return pipeline.NewCoordinator(processor, logger)
}
