package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/common"
	"github.com/joseph-ayodele/invoice-lines/internal/core/llm"
	"github.com/joseph-ayodele/invoice-lines/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
	"github.com/joseph-ayodele/invoice-lines/internal/repository"
	"github.com/joseph-ayodele/invoice-lines/internal/utils"
)

// TextExtractor turns a document on disk into text. *ocr.Extractor implements it.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// Outcome is what one processed document produced.
type Outcome struct {
	JobID       uuid.UUID
	Result      table.Result
	Items       []table.ParsedItem
	Refined     bool
	NeedsReview bool
}

// Processor coordinates text extraction, the table pipeline, persistence and
// optional refinement for one document at a time.
type Processor struct {
	logger    *slog.Logger
	ocr       TextExtractor
	extractor *table.Extractor
	refiner   llm.Refiner
	jobs      repository.ExtractJobRepository
	items     repository.LineItemRepository
	model     string
}

// NewProcessor wires the stages. refiner may be nil to skip refinement.
func NewProcessor(
	logger *slog.Logger,
	ocrExtractor TextExtractor,
	extractor *table.Extractor,
	refiner llm.Refiner,
	jobs repository.ExtractJobRepository,
	items repository.LineItemRepository,
	model string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:    logger,
		ocr:       ocrExtractor,
		extractor: extractor,
		refiner:   refiner,
		jobs:      jobs,
		items:     items,
		model:     model,
	}
}

// Submit registers path as a QUEUED job. Unless force is set, a file whose
// content was already processed returns the existing job with dedup=true.
func (p *Processor) Submit(ctx context.Context, path string, force bool) (job *entity.ExtractJob, dedup bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, common.WrapError(err, "abs path")
	}
	format := constants.FormatForExt(filepath.Ext(abs))
	if format == "" {
		return nil, false, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported extension %q", filepath.Ext(abs)), common.ErrInvalidInput)
	}
	hash, err := utils.HashFile(abs)
	if err != nil {
		return nil, false, common.NewAppError("READ_FAILED", "hash source file", errors.Join(common.ErrInvalidInput, err))
	}

	if !force {
		existing, err := p.jobs.GetByHash(ctx, hash)
		switch {
		case err == nil:
			p.logger.Info("processor.submit.dedup", "path", abs, "job_id", existing.ID)
			return existing, true, nil
		case !errors.Is(err, common.ErrNotFound):
			return nil, false, err
		}
	}

	job, err = p.jobs.Start(ctx, repository.NewJob{
		SourcePath:  abs,
		Filename:    filepath.Base(abs),
		ContentHash: hash,
		Format:      format,
		Status:      constants.JobStatusQueued,
	})
	if err != nil {
		return nil, false, err
	}
	return job, false, nil
}

// ProcessFile submits path and processes it unless its content was already seen.
func (p *Processor) ProcessFile(ctx context.Context, path string) (uuid.UUID, error) {
	job, dedup, err := p.Submit(ctx, path, false)
	if err != nil {
		p.logger.Error("processor.submit.failed", "path", path, "error", err)
		return uuid.Nil, err
	}
	if dedup {
		return job.ID, nil
	}
	if _, err := p.ProcessJob(ctx, job.ID); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

// ProcessJob runs a submitted job to PARSED, and to REFINED when a refiner is
// configured. Any stage failure marks the job FAILED.
func (p *Processor) ProcessJob(ctx context.Context, jobID uuid.UUID) (Outcome, error) {
	log := p.logger.With("job_id", jobID)
	ctx = common.WithJobID(ctx, jobID.String())

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return Outcome{JobID: jobID}, fmt.Errorf("load job: %w", err)
	}
	if err := p.jobs.MarkRunning(ctx, jobID); err != nil {
		return Outcome{JobID: jobID}, err
	}

	res, err := p.ocr.Extract(ctx, job.SourcePath)
	if err != nil {
		log.Error("processor.ocr.failed", "path", job.SourcePath, "error", err)
		p.fail(ctx, jobID, fmt.Errorf("ocr: %w", err))
		return Outcome{JobID: jobID}, err
	}
	log.Debug("processor.ocr.ok",
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
	)

	lowConfidence := res.Confidence > 0 && res.Confidence < ocr.LowConfidenceThreshold
	if lowConfidence {
		log.Warn("processor.ocr.low_confidence", "confidence", res.Confidence)
	}

	return p.run(ctx, log, jobID, source{
		text:          res.Text,
		name:          job.Filename,
		path:          job.SourcePath,
		method:        res.Method,
		confidence:    res.Confidence,
		lowConfidence: lowConfidence,
	})
}

// ProcessText runs the pipeline over text that needs no OCR and stores it as a job.
func (p *Processor) ProcessText(ctx context.Context, name, text string) (Outcome, error) {
	job, err := p.jobs.Start(ctx, repository.NewJob{
		SourcePath:  name,
		Filename:    filepath.Base(name),
		ContentHash: utils.HashBytes([]byte(text)),
		Format:      constants.FormatText,
		Status:      constants.JobStatusRunning,
	})
	if err != nil {
		return Outcome{}, err
	}
	log := p.logger.With("job_id", job.ID)
	return p.run(common.WithJobID(ctx, job.ID.String()), log, job.ID, source{
		text:   text,
		name:   job.Filename,
		method: ocr.MethodText,
	})
}

type source struct {
	text          string
	name          string
	path          string
	method        string
	confidence    float32
	lowConfidence bool
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, jobID uuid.UUID, src source) (Outcome, error) {
	out := Outcome{JobID: jobID}
	out.Result = p.extractor.Extract(src.text)
	out.Items = out.Result.ParsedItems
	out.NeedsReview = out.Result.NeedsReview() || src.lowConfidence
	for _, d := range out.Result.Diagnostics {
		log.Debug("processor.table.diagnostic", "detail", d.Error())
	}

	resultJSON, err := json.Marshal(out.Result)
	if err != nil {
		p.fail(ctx, jobID, err)
		return out, fmt.Errorf("marshal result: %w", err)
	}
	if _, err := p.items.ReplaceForJob(ctx, jobID, entity.LineItemSourceParsed, out.Items); err != nil {
		p.fail(ctx, jobID, err)
		return out, err
	}
	err = p.jobs.FinishParsed(ctx, jobID, repository.ParsedOutcome{
		OCRText:       src.text,
		OCRMethod:     src.method,
		OCRConfidence: float64(src.confidence),
		ResultJSON:    resultJSON,
		NeedsReview:   out.NeedsReview,
	})
	if err != nil {
		p.fail(ctx, jobID, err)
		return out, err
	}
	log.Info("processor.parse.ok",
		"items", len(out.Items),
		"cleaned_rows", len(out.Result.CleanedRows),
		"schema_invalid", out.Result.SchemaValidation.InvalidCount,
		"needs_review", out.NeedsReview,
	)

	if p.refiner == nil {
		return out, nil
	}
	if err := p.refine(ctx, log, &out, src); err != nil {
		// the parsed result stays stored; refinement is best effort
		log.Error("processor.refine.failed", "error", err)
		out.NeedsReview = true
		if err := p.jobs.MarkNeedsReview(ctx, jobID); err != nil {
			log.Error("processor.refine.flag_failed", "error", err)
		}
	}
	return out, nil
}

func (p *Processor) refine(ctx context.Context, log *slog.Logger, out *Outcome, src source) error {
	refined, raw, err := p.refiner.Refine(ctx, llm.RefineRequest{
		Result:        out.Result,
		OCRText:       src.text,
		SourceName:    src.name,
		FilePath:      src.path,
		OCRConfidence: src.confidence,
	})
	if err != nil {
		return err
	}
	items := refined.ParsedItems(p.extractor.VAT())
	if len(items) == 0 && len(out.Items) > 0 {
		log.Warn("processor.refine.empty", "parsed_items", len(out.Items))
		return nil
	}

	needsReview := out.NeedsReview
	if refined.Confidence > 0 {
		needsReview = refined.Confidence < ocr.LowConfidenceThreshold
	}
	if _, err := p.items.ReplaceForJob(ctx, out.JobID, entity.LineItemSourceRefined, items); err != nil {
		return err
	}
	if err := p.jobs.FinishRefined(ctx, out.JobID, raw, p.model, needsReview); err != nil {
		// the job still reads PARSED, so its stored items must be the parsed ones
		if _, rerr := p.items.ReplaceForJob(ctx, out.JobID, entity.LineItemSourceParsed, out.Items); rerr != nil {
			log.Error("processor.refine.restore_failed", "error", rerr)
		}
		return err
	}
	out.Items = items
	out.Refined = true
	out.NeedsReview = needsReview
	log.Info("processor.refine.ok", "items", len(items), "confidence", refined.Confidence, "needs_review", needsReview)
	return nil
}

func (p *Processor) fail(ctx context.Context, jobID uuid.UUID, cause error) {
	if err := p.jobs.FinishFailure(ctx, jobID, cause.Error()); err != nil {
		p.logger.Error("processor.fail.persist_failed", "job_id", jobID, "error", err)
	}
}
