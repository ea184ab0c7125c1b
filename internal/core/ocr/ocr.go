package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-lines/constants"
)

// Extraction methods reported in ExtractionResult.Method.
const (
	MethodText     = "text"
	MethodImageOCR = "image-ocr"
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
)

// LowConfidenceThreshold marks OCR output that should be reviewed by a person.
const LowConfidenceThreshold = 0.6

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Language    string // default "kor+eng"
	TessdataDir string
	PSM         int // 6 treats the page as one uniform block, which keeps table rows intact
	OEM         int // 0 leaves the engine default

	DPI      int // rasterization DPI for scanned PDFs, default 300
	MaxPages int // 0 = no limit

	Preprocess      bool
	MinWidth        int     // images narrower than this are upscaled before OCR
	ColumnGapFactor float64 // word gap, in median word heights, that starts a new column
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.FormatText | FormatImage | FormatPDF
	Method     string
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "kor+eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = 1600
	}
	if cfg.ColumnGapFactor <= 0 {
		cfg.ColumnGapFactor = DefaultColumnGapFactor
	}
	var env []string
	if cfg.TessdataDir != "" {
		env = append(env, "TESSDATA_PREFIX="+cfg.TessdataDir)
	}
	e := &Extractor{cfg: cfg, runner: ExecRunner{Env: env}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks a strategy based on file extension. Text files are returned
// verbatim; images and PDFs come back as lines whose columns are tab-separated.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.FormatForExt(ext) {
	case constants.FormatText:
		res, err = e.extractText(path)
	case constants.FormatImage:
		res, err = e.extractImage(ctx, path)
	case constants.FormatPDF:
		res, err = e.extractPDF(ctx, path)
	default:
		e.logger.Error("ocr.extract.unsupported", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
		"text_bytes", len(res.Text),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractText(path string) (ExtractionResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.FormatText}, fmt.Errorf("read text: %w", err)
	}
	return ExtractionResult{
		Text:       string(b),
		Pages:      1,
		SourceType: constants.FormatText,
		Method:     MethodText,
		Confidence: 1,
	}, nil
}
