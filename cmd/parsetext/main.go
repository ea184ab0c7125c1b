package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/export"
)

// parsetext prints the line-item result for one invoice without touching a
// database. Images and PDFs go through OCR first.
func main() {
	var (
		in       = flag.String("in", "-", "invoice file, or - for stdin text")
		xlsxOut  = flag.String("xlsx", "", "also write the result to this XLSX file")
		template = flag.String("template", "", "YAML template overriding the built-in one")
		debug    = flag.Bool("debug", false, "log pipeline diagnostics to stderr")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	tpl := table.DefaultTemplate()
	if *template != "" {
		var err error
		if tpl, err = table.LoadTemplateFile(*template); err != nil {
			logger.Error("load template", "file", *template, "error", err)
			os.Exit(2)
		}
	}
	extractor, err := table.NewExtractor(tpl, logger)
	if err != nil {
		logger.Error("invalid template", "error", err)
		os.Exit(2)
	}

	text, err := readInput(*in, logger)
	if err != nil {
		logger.Error("read input", "in", *in, "error", err)
		os.Exit(1)
	}

	res := extractor.Extract(text)
	for _, d := range res.Diagnostics {
		logger.Warn("diagnostic", "detail", d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}

	if *xlsxOut != "" {
		b, err := export.NewService(nil, logger).ExportResultXLSX(*in, res)
		if err != nil {
			logger.Error("export xlsx", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxOut, b, 0o644); err != nil {
			logger.Error("write xlsx", "out", *xlsxOut, "error", err)
			os.Exit(1)
		}
	}
	if res.NeedsReview() {
		fmt.Fprintln(os.Stderr, "result needs review")
		os.Exit(3)
	}
}

func readInput(in string, logger *slog.Logger) (string, error) {
	if in == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	if constants.FormatForExt(filepath.Ext(in)) == constants.FormatText {
		b, err := os.ReadFile(in)
		return string(b), err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r, err := ocr.NewExtractor(ocr.Config{}, logger).Extract(ctx, in)
	if err != nil {
		return "", err
	}
	logger.Info("ocr done", "method", r.Method, "pages", r.Pages, "confidence", r.Confidence)
	return r.Text, nil
}
