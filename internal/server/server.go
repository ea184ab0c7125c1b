package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/internal/common"
	"github.com/joseph-ayodele/invoice-lines/internal/core/async"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
	"github.com/joseph-ayodele/invoice-lines/internal/export"
	"github.com/joseph-ayodele/invoice-lines/internal/ingest"
	"github.com/joseph-ayodele/invoice-lines/internal/repository"
)

// Submitter registers an uploaded document as a job. *core.Processor implements it.
type Submitter interface {
	Submit(ctx context.Context, path string, force bool) (*entity.ExtractJob, bool, error)
}

// HealthChecker reports storage reachability. *repository.DB implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps is everything the HTTP API needs.
type Deps struct {
	Extractor   *table.Extractor
	Submitter   Submitter
	Ingestor    ingest.Ingestor
	Queue       async.Queue
	Jobs        repository.ExtractJobRepository
	Items       repository.LineItemRepository
	Export      *export.Service
	Health      HealthChecker
	UploadDir   string
	MaxUploadMB int
	Logger      *slog.Logger
}

type handlers struct {
	Deps
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadMB <= 0 {
		d.MaxUploadMB = 20
	}
	if d.UploadDir == "" {
		d.UploadDir = "./uploads"
	}
	h := &handlers{Deps: d, logger: d.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestContext(d.Logger))
	r.MaxMultipartMemory = int64(d.MaxUploadMB) << 20

	r.GET("/health", h.health)

	api := r.Group("/api/v1")
	{
		invoices := api.Group("/invoices")
		{
			invoices.POST("/parse", h.parseInvoice)
			invoices.POST("/upload", h.uploadInvoice)
		}
		api.POST("/ingest/directory", h.ingestDirectory)

		jobs := api.Group("/jobs")
		{
			jobs.GET("", h.listJobs)
			jobs.GET("/:id", h.getJob)
			jobs.GET("/:id/export.xlsx", h.exportJob)
		}
		api.GET("/export.xlsx", h.exportAll)
	}
	return r
}

// requestContext tags each request with an id and logs it when done.
func requestContext(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-ID", rid)
		log := logger.With("request_id", rid)
		ctx := common.WithRequestID(c.Request.Context(), rid)
		c.Request = c.Request.WithContext(common.WithLogger(ctx, log))

		start := time.Now()
		c.Next()

		log.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	log := common.LoggerFromContext(c.Request.Context(), slog.Default())
	if status >= 500 {
		log.Error("http.error", "path", c.FullPath(), "error", err)
	} else {
		log.Warn("http.error", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    common.ErrorCode(err),
			"message": err.Error(),
		},
	})
}

func (h *handlers) health(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			respondError(c, common.NewAppError("UNAVAILABLE", "database unreachable", common.ErrUnavailable))
			return
		}
	}
	c.JSON(200, gin.H{"status": "ok", "service": "invoice-lines"})
}
