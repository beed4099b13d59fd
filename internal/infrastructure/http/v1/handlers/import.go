package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/domain/importer"
	"pharmaledger/internal/infrastructure/http/v1/dto"
)

// maxImportFileBytes bounds a CSV upload.
const maxImportFileBytes = 5 << 20

// ImportHandler serves bulk catalog imports.
type ImportHandler struct {
	*BaseHandler
	reconciler *importer.Reconciler
}

// NewImportHandler creates a new import handler.
func NewImportHandler(base *BaseHandler, reconciler *importer.Reconciler) *ImportHandler {
	return &ImportHandler{BaseHandler: base, reconciler: reconciler}
}

// ImportJSON handles POST /inventory/import
func (h *ImportHandler) ImportJSON(c *gin.Context) {
	var req dto.ImportRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.run(c, req.ToRows())
}

// ImportCSV handles POST /inventory/import/csv (multipart field "file")
func (h *ImportHandler) ImportCSV(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewFieldValidation("file", "no file provided"))
		return
	}
	if header.Size > maxImportFileBytes {
		h.Error(c, apperror.NewFieldValidation("file", "file too large").WithDetail("max_bytes", maxImportFileBytes))
		return
	}
	f, err := header.Open()
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	defer f.Close()

	rows, err := importer.DecodeCSV(f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.run(c, rows)
}

func (h *ImportHandler) run(c *gin.Context, rows []importer.Row) {
	if len(rows) == 0 {
		h.Error(c, apperror.NewValidation("no rows to import"))
		return
	}
	result, err := h.reconciler.Import(c.Request.Context(), h.TenantID(c), rows)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Template handles GET /inventory/import/template
func (h *ImportHandler) Template(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="inventory_import_template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", importer.Template())
}
