package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/constants"
	"github.com/joseph-ayodele/invoice-lines/internal/common"
	"github.com/joseph-ayodele/invoice-lines/internal/core/async"
	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/ingest"
)

type parseRequest struct {
	Text any `json:"text"`
}

// parseInvoice runs the table pipeline over posted text and answers with the
// result object. JSON bodies carry {"text": ...}; any other body is the text.
func (h *handlers) parseInvoice(c *gin.Context) {
	limit := int64(h.MaxUploadMB) << 20
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		respondError(c, common.NewAppError("READ_FAILED", "read body", errors.Join(common.ErrInvalidInput, err)))
		return
	}
	if int64(len(body)) > limit {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{"code": "TOO_LARGE", "message": "body too large"}})
		return
	}

	var raw any = body
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req parseRequest
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(c, common.NewAppError("INVALID_JSON", "body must be {\"text\": ...}", errors.Join(common.ErrInvalidInput, err)))
			return
		}
		raw = req.Text
	}

	res := h.Extractor.Extract(raw)
	out, err := json.Marshal(res)
	if err != nil {
		respondError(c, common.WrapError(err, "marshal result"))
		return
	}
	if err := table.ValidateResultJSON(out); err != nil {
		respondError(c, common.NewAppError("CONTRACT_VIOLATION", "result failed contract check", errors.Join(common.ErrInternal, err)))
		return
	}
	c.Header("X-Needs-Review", fmt.Sprint(res.NeedsReview()))
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

// uploadInvoice stores a multipart "file" and queues it for processing.
func (h *handlers) uploadInvoice(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, common.NewAppError("MISSING_FILE", "multipart field \"file\" is required", common.ErrInvalidInput))
		return
	}
	if fh.Size > int64(h.MaxUploadMB)<<20 {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{"code": "TOO_LARGE", "message": "file too large"}})
		return
	}
	name := filepath.Base(fh.Filename)
	if !ingest.AllowedExt(filepath.Ext(name)) {
		respondError(c, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported extension %q", filepath.Ext(name)), common.ErrInvalidInput))
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		respondError(c, common.WrapError(err, "create upload dir"))
		return
	}
	dst := filepath.Join(h.UploadDir, uuid.NewString()+"-"+name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		respondError(c, common.WrapError(err, "save upload"))
		return
	}

	ctx := c.Request.Context()
	job, dedup, err := h.Submitter.Submit(ctx, dst, c.Query("force") == "true")
	if err != nil {
		_ = os.Remove(dst)
		respondError(c, err)
		return
	}
	if dedup {
		_ = os.Remove(dst)
		c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "status": job.Status, "deduplicated": true})
		return
	}

	if err := h.Queue.Enqueue(ctx, async.Job{JobID: job.ID, Source: name}); err != nil {
		respondError(c, common.NewAppError("QUEUE_UNAVAILABLE", "queue rejected job", errors.Join(common.ErrUnavailable, err)))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": constants.JobStatusQueued, "deduplicated": false})
}

type ingestDirectoryRequest struct {
	Root       string `json:"root"`
	SkipHidden *bool  `json:"skip_hidden"`
}

// ingestDirectory registers every supported file under root and queues the new ones.
func (h *handlers) ingestDirectory(c *gin.Context) {
	var req ingestDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.NewAppError("INVALID_JSON", "body must be {\"root\": ...}", errors.Join(common.ErrInvalidInput, err)))
		return
	}
	if err := common.NewValidator().Field("root", req.Root, common.Required).Err(); err != nil {
		respondError(c, err)
		return
	}
	skipHidden := true
	if req.SkipHidden != nil {
		skipHidden = *req.SkipHidden
	}

	ctx := c.Request.Context()
	results, stats, err := h.Ingestor.IngestDirectory(ctx, req.Root, skipHidden)
	if err != nil {
		respondError(c, err)
		return
	}

	queued := 0
	for i, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		if err := h.Queue.Enqueue(ctx, async.Job{JobID: r.JobID, Source: r.SourcePath}); err != nil {
			results[i].Err = err.Error()
			continue
		}
		queued++
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "queued": queued, "results": results})
}
