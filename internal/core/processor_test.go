package core

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/core/llm"
	"github.com/joseph-ayodele/invoice-lines/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
	"github.com/joseph-ayodele/invoice-lines/internal/repository"
)

const invoiceText = "거래명세서\n" +
	"품목 | 규격 | 수량 | 단 | 가 | 공급가액\n" +
	"사과 | 1kg | 2 | 5,000 | 10,000\n" +
	"우유 500ml | 3 | 2,500 | 7,500\n" +
	"합계 | 17,500\n" +
	"이하여백\n"

type stubOCR struct {
	res   ocr.ExtractionResult
	err   error
	calls int
}

func (s *stubOCR) Extract(_ context.Context, _ string) (ocr.ExtractionResult, error) {
	s.calls++
	return s.res, s.err
}

type stubRefiner struct {
	out llm.RefinedItems
	err error
	req llm.RefineRequest
}

func (s *stubRefiner) Refine(_ context.Context, req llm.RefineRequest) (llm.RefinedItems, []byte, error) {
	s.req = req
	if s.err != nil {
		return llm.RefinedItems{}, nil, s.err
	}
	raw, _ := json.Marshal(s.out)
	return s.out, raw, nil
}

// failingJobs fails the chosen finish step and delegates everything else.
type failingJobs struct {
	repository.ExtractJobRepository
	failParsed  bool
	failRefined bool
}

func (f *failingJobs) FinishParsed(ctx context.Context, id uuid.UUID, out repository.ParsedOutcome) error {
	if f.failParsed {
		return errors.New("disk full")
	}
	return f.ExtractJobRepository.FinishParsed(ctx, id, out)
}

func (f *failingJobs) FinishRefined(ctx context.Context, id uuid.UUID, raw []byte, model string, needsReview bool) error {
	if f.failRefined {
		return errors.New("disk full")
	}
	return f.ExtractJobRepository.FinishRefined(ctx, id, raw, model, needsReview)
}

type fixture struct {
	proc  *Processor
	ocr   *stubOCR
	jobs  repository.ExtractJobRepository
	items repository.LineItemRepository
}

func newFixture(t *testing.T, refiner llm.Refiner) fixture {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{Driver: repository.DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	extractor, err := table.NewExtractor(table.DefaultTemplate(), nil)
	require.NoError(t, err)

	f := fixture{
		ocr:   &stubOCR{res: ocr.ExtractionResult{Text: invoiceText, Method: ocr.MethodText, Pages: 1}},
		jobs:  repository.NewExtractJobRepository(db, nil),
		items: repository.NewLineItemRepository(db, nil),
	}
	f.proc = NewProcessor(nil, f.ocr, extractor, refiner, f.jobs, f.items, "test-model")
	return f
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessFileParsesAndPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	path := writeFile(t, "invoice.txt", invoiceText)

	jobID, err := f.proc.ProcessFile(ctx, path)
	require.NoError(t, err)

	job, err := f.jobs.GetByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusParsed), job.Status)
	assert.False(t, job.NeedsReview)
	assert.Equal(t, "invoice.txt", job.Filename)
	require.NoError(t, table.ValidateResultJSON(job.ResultJSON))

	items, err := f.items.ListByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "사과", items[0].Item)
	assert.Equal(t, int64(1000), items[0].VAT)
	assert.Equal(t, entity.LineItemSourceParsed, items[0].Source)

	again, err := f.proc.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, jobID, again)
	assert.Equal(t, 1, f.ocr.calls)
}

func TestProcessJobOCRFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.ocr.err = errors.New("tesseract: not found")

	job, dedup, err := f.proc.Submit(ctx, writeFile(t, "scan.png", "png"), false)
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.Equal(t, string(constants.JobStatusQueued), job.Status)

	_, err = f.proc.ProcessJob(ctx, job.ID)
	require.Error(t, err)

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "tesseract")

	// a failed job does not block a retry of the same content
	_, dedup, err = f.proc.Submit(ctx, got.SourcePath, false)
	require.NoError(t, err)
	assert.False(t, dedup)
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	f := newFixture(t, nil)
	_, _, err := f.proc.Submit(context.Background(), writeFile(t, "notes.docx", "x"), false)
	assert.Error(t, err)
}

func TestProcessTextFlagsReview(t *testing.T) {
	f := newFixture(t, nil)
	out, err := f.proc.ProcessText(context.Background(), "pasted", "no table here")
	require.NoError(t, err)
	assert.True(t, out.NeedsReview)
	assert.Empty(t, out.Items)

	job, err := f.jobs.GetByID(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.True(t, job.NeedsReview)
	assert.Equal(t, string(constants.JobStatusParsed), job.Status)
	assert.True(t, job.NeedsReview)
	assert.True(t, out.NeedsReview)
}

func TestProcessTextWithRefiner(t *testing.T) {
	ctx := context.Background()
	supply := int64(10000)
	qty := int64(2)
	refiner := &stubRefiner{out: llm.RefinedItems{
		Items:      []llm.RefinedItem{{Item: "사과 1kg", Quantity: &qty, UnitPrice: 5000, SupplyAmount: &supply}},
		Confidence: 0.95,
	}}
	f := newFixture(t, refiner)

	out, err := f.proc.ProcessText(ctx, "inv.txt", invoiceText)
	require.NoError(t, err)
	assert.True(t, out.Refined)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(1000), out.Items[0].VAT)
	assert.Len(t, refiner.req.Result.ParsedItems, 2)
	assert.Equal(t, "inv.txt", refiner.req.SourceName)

	job, err := f.jobs.GetByID(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRefined), job.Status)
	assert.NotEmpty(t, job.RefinedJSON)

	items, err := f.items.ListByJob(ctx, out.JobID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.LineItemSourceRefined, items[0].Source)
}

func TestRefinerFailureKeepsParsedResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubRefiner{err: errors.New("openai: non-2xx status 500")})

	out, err := f.proc.ProcessText(ctx, "inv.txt", invoiceText)
	require.NoError(t, err)
	assert.False(t, out.Refined)
	assert.Len(t, out.Items, 2)

	job, err := f.jobs.GetByID(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusParsed), job.Status)
	assert.True(t, job.NeedsReview)
	assert.True(t, out.NeedsReview)
}

func TestFinishParsedFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	jobs := &failingJobs{ExtractJobRepository: f.jobs, failParsed: true}
	f.proc.jobs = jobs
	path := writeFile(t, "invoice.txt", invoiceText)

	job, _, err := f.proc.Submit(ctx, path, false)
	require.NoError(t, err)
	_, err = f.proc.ProcessJob(ctx, job.ID)
	require.Error(t, err)

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)

	jobs.failParsed = false
	retry, dedup, err := f.proc.Submit(ctx, path, false)
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.NotEqual(t, job.ID, retry.ID)
}

func TestFinishRefinedFailureRestoresParsedItems(t *testing.T) {
	ctx := context.Background()
	supply := int64(10000)
	f := newFixture(t, &stubRefiner{out: llm.RefinedItems{
		Items:      []llm.RefinedItem{{Item: "사과 1kg", UnitPrice: 5000, SupplyAmount: &supply}},
		Confidence: 0.95,
	}})
	f.proc.jobs = &failingJobs{ExtractJobRepository: f.jobs, failRefined: true}

	out, err := f.proc.ProcessText(ctx, "inv.txt", invoiceText)
	require.NoError(t, err)
	assert.False(t, out.Refined)
	assert.True(t, out.NeedsReview)

	job, err := f.jobs.GetByID(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusParsed), job.Status)
	assert.True(t, job.NeedsReview)

	items, err := f.items.ListByJob(ctx, out.JobID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, entity.LineItemSourceParsed, it.Source)
	}
}
