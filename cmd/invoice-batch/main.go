package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/internal/common"
	"github.com/joseph-ayodele/invoice-lines/internal/core"
	"github.com/joseph-ayodele/invoice-lines/internal/core/llm"
	"github.com/joseph-ayodele/invoice-lines/internal/core/llm/openai"
	"github.com/joseph-ayodele/invoice-lines/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/export"
	"github.com/joseph-ayodele/invoice-lines/internal/ingest"
	repo "github.com/joseph-ayodele/invoice-lines/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem = flag.Bool("inmem", false, "use an in-memory SQLite database")
		dir   = flag.String("dir", "", "directory to process invoices from (required)")
		out   = flag.String("out", "", "output XLSX file path (defaults to <parent of dir>/invoice-lines.xlsx)")
		force = flag.Bool("force", false, "reprocess files whose content was already processed")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoice-lines.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	dbCfg := repo.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}
	if *inmem {
		dbCfg = repo.Config{Driver: repo.DriverSQLite, DSN: ":memory:"}
	}
	db, err := repo.Open(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	jobsRepo := repo.NewExtractJobRepository(db, logger)
	itemsRepo := repo.NewLineItemRepository(db, logger)

	tpl := table.DefaultTemplate()
	if cfg.Template.File != "" {
		if tpl, err = table.LoadTemplateFile(cfg.Template.File); err != nil {
			logger.Error("failed to load template", "file", cfg.Template.File, "error", err)
			os.Exit(1)
		}
	}
	extractor, err := table.NewExtractor(tpl, logger)
	if err != nil {
		logger.Error("invalid template", "error", err)
		os.Exit(1)
	}

	ocrExtractor := ocr.NewExtractor(ocr.Config{
		Tesseract:   cfg.OCR.TesseractBin,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         cfg.OCR.PSM,
		DPI:         cfg.OCR.DPI,
		Preprocess:  cfg.OCR.Preprocess,
	}, logger)

	var refiner llm.Refiner
	if cfg.LLM.Enabled() {
		refiner = openai.NewClient(openai.Config{
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		logger.Info("OpenAI client initialized", "model", cfg.LLM.Model)
	} else {
		logger.Warn("OpenAI API key not configured, refinement will be skipped")
	}

	processor := core.NewProcessor(logger, ocrExtractor, extractor, refiner, jobsRepo, itemsRepo, cfg.LLM.Model)
	ingestor := ingest.NewFSIngestor(processor, logger)
	ingestor.Force = *force

	logger.Info("starting ingestion", "dir", *dir)
	results, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	var (
		jobIDs              []uuid.UUID
		processed, failures int
		needsReview         int
	)
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		jobIDs = append(jobIDs, r.JobID)
		if r.Deduplicated {
			continue
		}
		outcome, err := processor.ProcessJob(ctx, r.JobID)
		if err != nil {
			logger.Error("failed to process file", "path", r.SourcePath, "job_id", r.JobID, "error", err)
			failures++
			continue
		}
		processed++
		if outcome.NeedsReview {
			needsReview++
		}
	}

	logger.Info("exporting to XLSX", "output", *out)
	b, err := export.NewService(itemsRepo, logger).ExportLineItemsXLSX(ctx, jobIDs)
	if err != nil {
		logger.Error("failed to export line items", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", processed,
		"needs_review", needsReview,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Needs review: %d\n", needsReview)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}
