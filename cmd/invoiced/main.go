package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-lines/internal/common"
	"github.com/joseph-ayodele/invoice-lines/internal/core"
	"github.com/joseph-ayodele/invoice-lines/internal/core/async"
	"github.com/joseph-ayodele/invoice-lines/internal/core/llm"
	"github.com/joseph-ayodele/invoice-lines/internal/core/llm/openai"
	"github.com/joseph-ayodele/invoice-lines/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/export"
	"github.com/joseph-ayodele/invoice-lines/internal/ingest"
	repo "github.com/joseph-ayodele/invoice-lines/internal/repository"
	"github.com/joseph-ayodele/invoice-lines/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

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
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	} else {
		logger.Info("refinement disabled", "reason", "OPENAI_API_KEY not set")
	}

	jobsRepo := repo.NewExtractJobRepository(db, logger)
	itemsRepo := repo.NewLineItemRepository(db, logger)
	processor := core.NewProcessor(logger, ocrExtractor, extractor, refiner, jobsRepo, itemsRepo, cfg.LLM.Model)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	ingestor := ingest.NewFSIngestor(processor, logger)

	if len(cfg.Watch.Dirs) > 0 {
		go watch(ctx, logger, cfg.Watch, ingestor, queue)
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Extractor:   extractor,
			Submitter:   processor,
			Ingestor:    ingestor,
			Queue:       queue,
			Jobs:        jobsRepo,
			Items:       itemsRepo,
			Export:      export.NewService(itemsRepo, logger),
			Health:      db,
			UploadDir:   cfg.Server.UploadDir,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	grpcServer, healthServer := server.NewGRPCServer(logger)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		server.SetServing(healthServer, true)
		go func() {
			logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc serve error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	server.SetServing(healthServer, false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
}

// watch ingests files that appear under the configured directories and queues
// each new job.
func watch(ctx context.Context, logger *slog.Logger, cfg common.WatchConfig, ingestor ingest.Ingestor, queue async.Queue) {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Dirs,
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    cfg.Debounce,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("watcher.start_failed", "dirs", cfg.Dirs, "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher.error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return
			}
			res, err := ingestor.IngestPath(ctx, path)
			if err != nil {
				logger.Warn("watcher.ingest_failed", "path", path, "error", err)
				continue
			}
			if res.Deduplicated {
				continue
			}
			if err := queue.Enqueue(ctx, async.Job{JobID: res.JobID, Source: path}); err != nil {
				logger.Warn("watcher.enqueue_failed", "path", path, "job_id", res.JobID, "error", err)
			}
		}
	}
}
