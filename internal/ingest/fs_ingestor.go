package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-lines/internal/common"
)

// FSIngestor registers files from the local filesystem as extraction jobs.
type FSIngestor struct {
	submitter Submitter
	logger    *slog.Logger
	Force     bool // submit even when the content was already processed
}

var _ Ingestor = (*FSIngestor)(nil)

func NewFSIngestor(s Submitter, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{submitter: s, logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}
	if !AllowedExt(filepath.Ext(path)) {
		i.logger.Warn("ingest.path.unsupported", "path", path)
		return out, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported or missing extension: %q", filepath.Ext(path)), common.ErrInvalidInput)
	}

	job, dedup, err := i.submitter.Submit(ctx, path, i.Force)
	if err != nil {
		i.logger.Error("ingest.path.failed", "path", path, "error", err)
		return out, err
	}
	out = IngestionResult{
		SourcePath:   job.SourcePath,
		JobID:        job.ID,
		Deduplicated: dedup,
		HashHex:      job.ContentHash,
		Format:       job.Format,
	}
	i.logger.Debug("ingest.path.ok", "path", job.SourcePath, "job_id", job.ID, "dedup", dedup)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each supported file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError("INVALID_ROOT", "root path is required", common.ErrInvalidInput)
	}

	var (
		results []IngestionResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	i.logger.Info("ingest.dir.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, err
}
