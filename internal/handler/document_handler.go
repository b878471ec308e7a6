package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/service"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/response"
)

// DocumentHandler exposes file upload and signed download endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload godoc
// @Summary Upload a document
// @Description Multipart upload of a supporting file (medical note, invoice, contract)
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Param kind formData string true "Document kind"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read uploaded file"))
		return
	}
	defer file.Close()

	upload := service.DocumentUpload{
		FileName:  header.Filename,
		MIMEType:  header.Header.Get("Content-Type"),
		SizeBytes: header.Size,
		Kind:      models.DocumentKind(c.PostForm("kind")),
		Body:      file,
	}

	result, err := h.documents.Upload(c.Request.Context(), upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// SignedURL godoc
// @Summary Issue a signed download link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/url [get]
func (h *DocumentHandler) SignedURL(c *gin.Context) {
	token, expiresAt, err := h.documents.SignedURL(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download a document
// @Description Streams the file referenced by a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	doc, file, err := h.documents.OpenByToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.FileName),
	}
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MIMEType, file, headers)
}

// List godoc
// @Summary List documents
// @Description Non-admins only see their own files
// @Tags Documents
// @Produce json
// @Param ownerId query string false "Filter by owner"
// @Param kind query string false "Filter by kind"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	query := dto.DocumentQuery{
		OwnerID: c.Query("ownerId"),
		Kind:    models.DocumentKind(c.Query("kind")),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	documents, err := h.documents.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, documents, nil)
}
