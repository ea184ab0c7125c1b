package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handlers) listJobs(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			n = -1
		}
		if err := common.NewValidator().Field("limit", n, common.IntRange(1, 500)).Err(); err != nil {
			respondError(c, err)
			return
		}
		limit = n
	}
	jobs, err := h.Jobs.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	// list responses leave the large text columns out
	for _, j := range jobs {
		j.OCRText = nil
		j.ResultJSON = nil
		j.RefinedJSON = nil
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (h *handlers) getJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	job, err := h.Jobs.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	items, err := h.Items.ListByJob(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job, "items": items})
}

func (h *handlers) exportJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if _, err := h.Jobs.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	b, err := h.Export.ExportLineItemsXLSX(c.Request.Context(), []uuid.UUID{id})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (h *handlers) exportAll(c *gin.Context) {
	var ids []uuid.UUID
	for _, s := range c.QueryArray("job") {
		if err := common.NewValidator().Field("job", s, common.UUID).Err(); err != nil {
			respondError(c, err)
			return
		}
		ids = append(ids, uuid.MustParse(s))
	}
	b, err := h.Export.ExportLineItemsXLSX(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="line-items.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}

func jobID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if err := common.NewValidator().Field("id", raw, common.Required, common.UUID).Err(); err != nil {
		respondError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}
