package handler

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/service"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/response"
)

type reportFileOpener interface {
	Open(filename string) (*os.File, error)
}

// ReportHandler exposes export job endpoints.
type ReportHandler struct {
	reports *service.ReportService
	files   reportFileOpener
}

// NewReportHandler constructs the handler. files opens generated report
// files for download.
func NewReportHandler(reports *service.ReportService, files reportFileOpener) *ReportHandler {
	return &ReportHandler{reports: reports, files: files}
}

// Create godoc
// @Summary Enqueue an export job
// @Description Admin queues a CSV or PDF export; generation runs in the background
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.reports.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// Get godoc
// @Summary Get export job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	view, err := h.reports.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List export jobs
// @Tags Reports
// @Produce json
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	views, err := h.reports.List(c.Request.Context(), claimsFromContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, views, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description Streams the generated file referenced by a signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	fileName, err := h.reports.OpenByToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.files.Open(fileName)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "report file no longer available"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := "text/csv"
	if strings.HasSuffix(fileName, ".pdf") {
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", fileName),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, headers)
}
