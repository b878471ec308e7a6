package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/response"
)

type cancellationSrv interface {
	Create(ctx context.Context, req dto.CreateCancellationRequest, actor *models.JWTClaims) (*dto.CancellationResult, error)
	Review(ctx context.Context, id string, req dto.ReviewCancellationRequest, actor *models.JWTClaims) (*models.CancellationRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.CancellationRequest, error)
	List(ctx context.Context, query dto.CancellationQuery, actor *models.JWTClaims) ([]models.CancellationRequest, error)
}

// CancellationHandler exposes cancellation and reschedule request endpoints.
type CancellationHandler struct {
	cancellations cancellationSrv
}

// NewCancellationHandler constructs the handler.
func NewCancellationHandler(cancellations cancellationSrv) *CancellationHandler {
	return &CancellationHandler{cancellations: cancellations}
}

// Create godoc
// @Summary Open a cancellation or reschedule request
// @Description Inside the grace window the request is applied immediately; outside it queues for admin review
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param payload body dto.CreateCancellationRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cancellations [post]
func (h *CancellationHandler) Create(c *gin.Context) {
	var req dto.CreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	result, err := h.cancellations.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Review godoc
// @Summary Review a pending request
// @Description Admin approves or rejects a queued cancellation/reschedule request
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewCancellationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cancellations/{id}/review [post]
func (h *CancellationHandler) Review(c *gin.Context) {
	var req dto.ReviewCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	request, err := h.cancellations.Review(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// Get godoc
// @Summary Get request detail
// @Tags Cancellations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cancellations/{id} [get]
func (h *CancellationHandler) Get(c *gin.Context) {
	request, err := h.cancellations.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List requests
// @Tags Cancellations
// @Produce json
// @Param status query string false "Comma separated review status filter"
// @Param type query string false "Request type (CANCELAMENTO or REAGENDAMENTO)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /cancellations [get]
func (h *CancellationHandler) List(c *gin.Context) {
	query := dto.CancellationQuery{
		Type: models.RequestType(c.Query("type")),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				query.Status = append(query.Status, models.ReviewStatus(s))
			}
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	requests, err := h.cancellations.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, nil)
}
