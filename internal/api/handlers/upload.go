package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/ingest"
)

// readUpload parses the multipart "file" field. It writes the error
// response itself and reports false when the request cannot proceed.
func readUpload(c *gin.Context) (*ingest.Table, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided", err)
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open uploaded file"})
		return nil, false
	}
	defer f.Close()

	tbl, err := ingest.Read(f, header.Filename)
	if err != nil {
		badRequest(c, "file could not be read", err)
		return nil, false
	}
	return tbl, true
}

// mappingFromForm reads optional explicit column names.
func mappingFromForm(c *gin.Context) ingest.ColumnMapping {
	return ingest.ColumnMapping{
		Date:      c.PostForm("date_column"),
		Demand:    c.PostForm("demand_column"),
		SKU:       c.PostForm("sku_column"),
		Inventory: c.PostForm("inventory_column"),
		LeadTime:  c.PostForm("lead_time_column"),
	}
}

// Validate reports the data-quality summary of an uploaded file.
func Validate(c *gin.Context) {
	tbl, ok := readUpload(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ingest.Validate(tbl, mappingFromForm(c)))
}
