package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-lines/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	var warns []string
	src := path
	if e.cfg.Preprocess {
		tmpDir, err := os.MkdirTemp("", "il-img-*")
		if err != nil {
			return ExtractionResult{SourceType: constants.FormatImage}, err
		}
		defer e.removeAll(tmpDir)

		out := filepath.Join(tmpDir, "prepared.png")
		if err := Preprocess(path, out, e.cfg.MinWidth); err != nil {
			e.logger.Warn("ocr.preprocess.failed", "path", path, "error", err)
			warns = append(warns, "preprocess skipped: "+err.Error())
		} else {
			src = out
		}
	}

	layout, w, err := e.tesseractTSV(ctx, src)
	warns = append(warns, w...)
	if err != nil {
		return ExtractionResult{SourceType: constants.FormatImage, Warnings: warns}, err
	}
	if layout.Words == 0 {
		warns = append(warns, "tesseract recognized no words")
	}
	if layout.Confidence > 0 && layout.Confidence < LowConfidenceThreshold {
		warns = append(warns, fmt.Sprintf("low ocr confidence %.2f", layout.Confidence))
	}
	return ExtractionResult{
		Text:       layout.Text,
		Pages:      1,
		SourceType: constants.FormatImage,
		Method:     MethodImageOCR,
		Language:   e.cfg.Language,
		Warnings:   warns,
		Confidence: layout.Confidence,
	}, nil
}

// tesseractTSV runs `tesseract <img> stdout -l <lang> --psm N tsv` and rebuilds
// the page layout from word boxes.
func (e *Extractor) tesseractTSV(ctx context.Context, path string) (Layout, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language, "--psm", strconv.Itoa(e.cfg.PSM)}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return Layout{}, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("tesseract: %w", err)
	}
	return LayoutFromTSV(string(out), e.cfg.ColumnGapFactor), nil, nil
}

// Preprocess writes a grayscale, contrast-boosted, sharpened copy of src to dst,
// upscaling it to minWidth pixels when narrower.
func Preprocess(src, dst string, minWidth int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	if minWidth > 0 && img.Bounds().Dx() < minWidth {
		img = imaging.Resize(img, minWidth, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 30)
	gray = imaging.Sharpen(gray, 1.0)
	if err := imaging.Save(gray, dst); err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

func (e *Extractor) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("ocr.tmp.cleanup_failed", "dir", dir, "error", err)
	}
}
