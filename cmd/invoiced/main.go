package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidoyelade/invoice-pipeline/internal/common"
	"github.com/davidoyelade/invoice-pipeline/internal/detect"
	"github.com/davidoyelade/invoice-pipeline/internal/extract"
	"github.com/davidoyelade/invoice-pipeline/internal/ingest"
	"github.com/davidoyelade/invoice-pipeline/internal/llm"
	"github.com/davidoyelade/invoice-pipeline/internal/llm/openai"
	"github.com/davidoyelade/invoice-pipeline/internal/ocr"
	"github.com/davidoyelade/invoice-pipeline/internal/pipeline"
	"github.com/davidoyelade/invoice-pipeline/internal/reconcile"
	"github.com/davidoyelade/invoice-pipeline/internal/repository"
	"github.com/davidoyelade/invoice-pipeline/internal/server"
	"github.com/davidoyelade/invoice-pipeline/internal/validate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.OpenPool(ctx, repository.PoolConfig{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database pool", "error", err)
		os.Exit(1)
	}
	store := repository.NewPostgresStore(pool, logger)
	defer store.Close()

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	coordinator := buildCoordinator(cfg, store, logger)

	deps := server.Deps{
		Batches: server.NewBatchHandler(
			ingest.NewFSDiscoverer(logger),
			coordinator,
			cfg.Pipeline.Concurrency,
			logger,
		),
		Reconcile: server.NewReconcileHandler(
			reconcile.NewEngine(cfg.Pipeline.Tolerance),
			logger,
		),
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
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
