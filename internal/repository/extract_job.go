package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
)

// NewJob describes a document about to be processed.
type NewJob struct {
	SourcePath  string
	Filename    string
	ContentHash string
	Format      string
	Status      constants.JobStatus
}

// ParsedOutcome is what the table stage stores on a job.
type ParsedOutcome struct {
	OCRText       string
	OCRMethod     string
	OCRConfidence float64
	ResultJSON    []byte
	NeedsReview   bool
}

type ExtractJobRepository interface {
	Start(ctx context.Context, job NewJob) (*entity.ExtractJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishParsed(ctx context.Context, jobID uuid.UUID, out ParsedOutcome) error
	FinishRefined(ctx context.Context, jobID uuid.UUID, refinedJSON []byte, model string, needsReview bool) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	MarkNeedsReview(ctx context.Context, jobID uuid.UUID) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	GetByHash(ctx context.Context, contentHash string) (*entity.ExtractJob, error)
	List(ctx context.Context, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

const jobColumns = `id, source_path, filename, content_hash, format, status, started_at, finished_at,
	error_message, ocr_method, ocr_confidence, needs_review, ocr_text, result_json, refined_json, model_name`

func (r *extractJobRepo) Start(ctx context.Context, in NewJob) (*entity.ExtractJob, error) {
	if in.Status == "" {
		in.Status = constants.JobStatusRunning
	}
	job := &entity.ExtractJob{
		ID:          uuid.New(),
		SourcePath:  in.SourcePath,
		Filename:    in.Filename,
		ContentHash: in.ContentHash,
		Format:      in.Format,
		Status:      string(in.Status),
		StartedAt:   time.Now().UTC(),
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`INSERT INTO extract_jobs
		(id, source_path, filename, content_hash, format, status, started_at, needs_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID.String(), job.SourcePath, job.Filename, job.ContentHash, job.Format, job.Status, job.StartedAt, false)
	if err != nil {
		r.log.Error("extract_job.start.failed", "source", in.SourcePath, "error", err)
		return nil, dbError("start extract job", err)
	}
	r.log.Info("extract_job.started", "job_id", job.ID, "source", in.SourcePath, "format", in.Format, "status", job.Status)
	return job, nil
}

func (r *extractJobRepo) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	return r.update(ctx, jobID, "mark job running",
		`UPDATE extract_jobs SET status = ? WHERE id = ?`,
		string(constants.JobStatusRunning), jobID.String())
}

func (r *extractJobRepo) FinishParsed(ctx context.Context, jobID uuid.UUID, out ParsedOutcome) error {
	err := r.update(ctx, jobID, "finish parsed job",
		`UPDATE extract_jobs SET status = ?, finished_at = ?, ocr_text = ?, ocr_method = ?, ocr_confidence = ?,
			result_json = ?, needs_review = ?, error_message = NULL WHERE id = ?`,
		string(constants.JobStatusParsed), time.Now().UTC(), out.OCRText, nullString(out.OCRMethod),
		out.OCRConfidence, string(out.ResultJSON), out.NeedsReview, jobID.String())
	if err != nil {
		return err
	}
	r.log.Info("extract_job.parsed", "job_id", jobID, "method", out.OCRMethod, "needs_review", out.NeedsReview)
	return nil
}

func (r *extractJobRepo) FinishRefined(ctx context.Context, jobID uuid.UUID, refinedJSON []byte, model string, needsReview bool) error {
	err := r.update(ctx, jobID, "finish refined job",
		`UPDATE extract_jobs SET status = ?, finished_at = ?, refined_json = ?, model_name = ?, needs_review = ? WHERE id = ?`,
		string(constants.JobStatusRefined), time.Now().UTC(), string(refinedJSON), nullString(model), needsReview, jobID.String())
	if err != nil {
		return err
	}
	r.log.Info("extract_job.refined", "job_id", jobID, "model", model)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	err := r.update(ctx, jobID, "finish failed job",
		`UPDATE extract_jobs SET status = ?, finished_at = ?, error_message = ?, needs_review = ? WHERE id = ?`,
		string(constants.JobStatusFailed), time.Now().UTC(), message, true, jobID.String())
	if err != nil {
		return err
	}
	r.log.Warn("extract_job.failed", "job_id", jobID, "error", message)
	return nil
}

func (r *extractJobRepo) MarkNeedsReview(ctx context.Context, jobID uuid.UUID) error {
	return r.update(ctx, jobID, "flag job for review",
		`UPDATE extract_jobs SET needs_review = ? WHERE id = ?`, true, jobID.String())
}

func (r *extractJobRepo) update(ctx context.Context, jobID uuid.UUID, op, query string, args ...any) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		r.log.Error("extract_job.update.failed", "op", op, "job_id", jobID, "error", err)
		return dbError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dbError(op, sql.ErrNoRows)
	}
	return nil
}

func (r *extractJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+jobColumns+` FROM extract_jobs WHERE id = ?`), jobID.String())
	job, err := scanJob(row)
	if err != nil {
		return nil, dbError("get extract job", err)
	}
	return job, nil
}

// GetByHash returns the newest job for contentHash that did not fail.
func (r *extractJobRepo) GetByHash(ctx context.Context, contentHash string) (*entity.ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+jobColumns+` FROM extract_jobs
		WHERE content_hash = ? AND status <> ? ORDER BY started_at DESC LIMIT 1`),
		contentHash, string(constants.JobStatusFailed))
	job, err := scanJob(row)
	if err != nil {
		return nil, dbError("get extract job by hash", err)
	}
	return job, nil
}

// List returns the newest jobs first. limit <= 0 means 100.
func (r *extractJobRepo) List(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(`SELECT `+jobColumns+` FROM extract_jobs
		ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		r.log.Error("extract_job.list.failed", "error", err)
		return nil, dbError("list extract jobs", err)
	}
	defer rows.Close()

	var out []*entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dbError("scan extract job", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list extract jobs", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractJob, error) {
	var (
		job                                                         entity.ExtractJob
		id                                                          string
		finishedAt                                                  sql.NullTime
		errMsg, method, ocrText, resultJSON, refinedJSON, modelName sql.NullString
		confidence                                                  sql.NullFloat64
	)
	err := s.Scan(&id, &job.SourcePath, &job.Filename, &job.ContentHash, &job.Format, &job.Status,
		&job.StartedAt, &finishedAt, &errMsg, &method, &confidence, &job.NeedsReview,
		&ocrText, &resultJSON, &refinedJSON, &modelName)
	if err != nil {
		return nil, err
	}
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if confidence.Valid {
		c := confidence.Float64
		job.OCRConfidence = &c
	}
	job.ErrorMessage = stringPtr(errMsg)
	job.OCRMethod = stringPtr(method)
	job.OCRText = stringPtr(ocrText)
	job.ModelName = stringPtr(modelName)
	if resultJSON.Valid && resultJSON.String != "" {
		job.ResultJSON = json.RawMessage(resultJSON.String)
	}
	if refinedJSON.Valid && refinedJSON.String != "" {
		job.RefinedJSON = json.RawMessage(refinedJSON.String)
	}
	return &job, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
