package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/export"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/pipeline"
)

type RunHandler struct {
	store pipeline.RunStore
}

func NewRunHandler(store pipeline.RunStore) *RunHandler {
	return &RunHandler{store: store}
}

// GetRun returns a stored batch.
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err, "run not available")
		return
	}
	c.JSON(http.StatusOK, run)
}

// Export streams one CSV view of a stored batch.
func (h *RunHandler) Export(c *gin.Context) {
	view, err := export.ParseView(c.Param("view"))
	if err != nil {
		badRequest(c, "invalid export view", err)
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err, "run not available")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(run.JobID, view)))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, view, run.Results); err != nil {
		_ = c.Error(err)
	}
}
