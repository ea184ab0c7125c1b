package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-lines/constants"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	text, pages, err := e.pdfTextLayer(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return ExtractionResult{
			Text:       text,
			Pages:      pages,
			SourceType: constants.FormatPDF,
			Method:     MethodPDFText,
			Confidence: 1,
		}, nil
	}

	var warns []string
	if err != nil {
		e.logger.Warn("ocr.pdf.text_layer_failed", "path", path, "error", err)
		warns = append(warns, "text layer: "+err.Error())
	}
	text, pages, conf, w, err := e.pdfToOCR(ctx, path)
	warns = append(warns, w...)
	if err != nil {
		return ExtractionResult{SourceType: constants.FormatPDF, Warnings: warns}, err
	}
	if conf > 0 && conf < LowConfidenceThreshold {
		warns = append(warns, fmt.Sprintf("low ocr confidence %.2f", conf))
	}
	return ExtractionResult{
		Text:       text,
		Pages:      pages,
		SourceType: constants.FormatPDF,
		Method:     MethodPDFOCR,
		Language:   e.cfg.Language,
		Warnings:   warns,
		Confidence: conf,
	}, nil
}

// pdfTextLayer reads embedded text row by row. Runs of text separated by more
// than ColumnGapFactor times the font size are joined with a tab.
func (e *Extractor) pdfTextLayer(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("ocr.pdf.close_failed", "path", path, "error", cerr)
		}
	}()

	n := r.NumPage()
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		n = e.cfg.MaxPages
	}
	var lines []string
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			if ln := joinPDFRow(row.Content, e.cfg.ColumnGapFactor); strings.TrimSpace(ln) != "" {
				lines = append(lines, ln)
			}
		}
	}
	return strings.Join(lines, "\n"), n, nil
}

func joinPDFRow(texts pdf.TextHorizontal, gapFactor float64) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			size := prev.FontSize
			if size <= 0 {
				size = 10
			}
			switch {
			case gap > gapFactor*size:
				b.WriteByte('\t')
			case gap > 0.2*size:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}

// pdfToOCR rasterizes pages with pdftoppm and runs tesseract on each one.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, float32, []string, error) {
	tmpDir, err := os.MkdirTemp("", "il-pp-*")
	if err != nil {
		return "", 0, 0, nil, err
	}
	defer e.removeAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, 0, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var (
		parts   []string
		warns   []string
		confSum float32
		scored  int
	)
	for _, img := range matches {
		res, err := e.extractImage(ctx, img)
		warns = append(warns, res.Warnings...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		parts = append(parts, res.Text)
		if res.Confidence > 0 {
			confSum += res.Confidence
			scored++
		}
	}
	if len(parts) == 0 {
		return "", len(matches), 0, warns, fmt.Errorf("ocr failed on all %d pages", len(matches))
	}
	var conf float32
	if scored > 0 {
		conf = confSum / float32(scored)
	}
	return strings.Join(parts, "\n"), len(matches), conf, warns, nil
}
