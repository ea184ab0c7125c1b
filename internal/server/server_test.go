package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/core/async"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
	"github.com/joseph-ayodele/invoice-lines/internal/export"
	"github.com/joseph-ayodele/invoice-lines/internal/ingest"
	"github.com/joseph-ayodele/invoice-lines/internal/repository"
)

const invoiceText = "거래명세서\n" +
	"품목 | 규격 | 수량 | 단 | 가 | 공급가액\n" +
	"사과 | 1kg | 2 | 5,000 | 10,000\n" +
	"우유 500ml | 3 | 2,500 | 7,500\n" +
	"합계 | 17,500\n" +
	"이하여백\n"

func init() { gin.SetMode(gin.TestMode) }

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, j async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, j)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

type fakeSubmitter struct {
	jobs  repository.ExtractJobRepository
	paths []string
}

func (s *fakeSubmitter) Submit(ctx context.Context, path string, _ bool) (*entity.ExtractJob, bool, error) {
	s.paths = append(s.paths, path)
	job, err := s.jobs.Start(ctx, repository.NewJob{
		SourcePath: path, Filename: "upload", ContentHash: path, Format: constants.FormatText,
		Status: constants.JobStatusQueued,
	})
	return job, false, err
}

type fakeIngestor struct {
	results []ingest.IngestionResult
}

func (f *fakeIngestor) IngestPath(context.Context, string) (ingest.IngestionResult, error) {
	return ingest.IngestionResult{}, nil
}

func (f *fakeIngestor) IngestDirectory(context.Context, string, bool) ([]ingest.IngestionResult, ingest.DirStats, error) {
	return f.results, ingest.DirStats{Matched: uint32(len(f.results))}, nil
}

type badHealth struct{}

func (badHealth) HealthCheck(context.Context, time.Duration) error { return errors.New("down") }

type env struct {
	router *gin.Engine
	db     *repository.DB
	jobs   repository.ExtractJobRepository
	items  repository.LineItemRepository
	queue  *fakeQueue
	sub    *fakeSubmitter
	ing    *fakeIngestor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{Driver: repository.DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	extractor, err := table.NewExtractor(table.DefaultTemplate(), nil)
	require.NoError(t, err)

	e := &env{
		db:    db,
		jobs:  repository.NewExtractJobRepository(db, nil),
		items: repository.NewLineItemRepository(db, nil),
		queue: &fakeQueue{},
		ing:   &fakeIngestor{},
	}
	e.sub = &fakeSubmitter{jobs: e.jobs}
	e.router = NewRouter(Deps{
		Extractor:   extractor,
		Submitter:   e.sub,
		Ingestor:    e.ing,
		Queue:       e.queue,
		Jobs:        e.jobs,
		Items:       e.items,
		Export:      export.NewService(e.items, nil),
		Health:      db,
		UploadDir:   t.TempDir(),
		MaxUploadMB: 1,
	})
	return e
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	r := NewRouter(Deps{Health: badHealth{}})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestParseJSON(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(map[string]any{"text": invoiceText})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/parse", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, table.ValidateResultJSON(w.Body.Bytes()))
	assert.Equal(t, "false", w.Header().Get("X-Needs-Review"))

	var res table.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.ParsedItems, 2)
	assert.Equal(t, "사과", res.ParsedItems[0].Item)
	assert.Equal(t, 2, res.SchemaValidation.ValidCount)
}

func TestParsePlainTextAndNonStringJSON(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/parse", strings.NewReader(invoiceText))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cleanedRows"`)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/invoices/parse", strings.NewReader(`{"text": 42}`))
	req.Header.Set("Content-Type", "application/json")
	w = e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Needs-Review"))
	assert.JSONEq(t,
		`{"parsedItems":[],"cleanedRows":[],"schemaValidation":{"validCount":0,"invalidCount":0,"validRows":[],"invalidRows":[]}}`,
		w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/invoices/parse", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	w = e.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, "file", "invoice.txt", invoiceText)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)
	w := e.do(req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		JobID  uuid.UUID `json:"job_id"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(constants.JobStatusQueued), resp.Status)
	require.Len(t, e.queue.jobs, 1)
	assert.Equal(t, resp.JobID, e.queue.jobs[0].JobID)
	assert.Equal(t, "invoice.txt", e.queue.jobs[0].Source)
	require.Len(t, e.sub.paths, 1)
	assert.True(t, strings.HasSuffix(e.sub.paths[0], "-invoice.txt"))
}

func TestUploadRejections(t *testing.T) {
	e := newEnv(t)

	body, ct := multipartBody(t, "file", "invoice.docx", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)

	body, ct = multipartBody(t, "other", "invoice.txt", "x")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)

	e.queue.err = async.ErrQueueClosed
	body, ct = multipartBody(t, "file", "invoice.txt", "x")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(req).Code)
	assert.Empty(t, e.queue.jobs)
}

func TestJobsEndpoints(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	job, err := e.jobs.Start(ctx, repository.NewJob{SourcePath: "a.txt", Filename: "a.txt", ContentHash: "h", Format: constants.FormatText})
	require.NoError(t, err)
	supply := int64(10000)
	_, err = e.items.ReplaceForJob(ctx, job.ID, entity.LineItemSourceParsed, []table.ParsedItem{
		{Item: "사과", UnitPrice: 5000, SupplyAmount: &supply, VAT: 1000},
	})
	require.NoError(t, err)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Job   entity.ExtractJob `json:"job"`
		Items []entity.LineItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.Job.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "사과", got.Items[0].Item)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String()+"/export.xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/export.xlsx?job=bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestDirectoryQueuesNewFiles(t *testing.T) {
	e := newEnv(t)
	fresh := uuid.New()
	e.ing.results = []ingest.IngestionResult{
		{SourcePath: "/in/a.txt", JobID: fresh},
		{SourcePath: "/in/b.txt", JobID: uuid.New(), Deduplicated: true},
		{SourcePath: "/in/c.pdf", Err: "permission denied"},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/directory", strings.NewReader(`{"root":"/in"}`))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"queued":1`)
	require.Len(t, e.queue.jobs, 1)
	assert.Equal(t, fresh, e.queue.jobs[0].JobID)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/directory", strings.NewReader(`{"root":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)
}

func TestGRPCHealth(t *testing.T) {
	s, hs := NewGRPCServer(nil)
	defer s.Stop()
	SetServing(hs, true)
	assert.Contains(t, s.GetServiceInfo(), "grpc.health.v1.Health")
}
