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

type withdrawalSrv interface {
	Create(ctx context.Context, req dto.CreateWithdrawalRequest, actor *models.JWTClaims) (*models.Withdrawal, error)
	Review(ctx context.Context, id string, req dto.ReviewWithdrawalRequest, actor *models.JWTClaims) (*models.Withdrawal, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Withdrawal, error)
	List(ctx context.Context, query dto.WithdrawalQuery, actor *models.JWTClaims) ([]models.Withdrawal, error)
}

// WithdrawalHandler exposes payout request endpoints.
type WithdrawalHandler struct {
	withdrawals withdrawalSrv
}

// NewWithdrawalHandler constructs the handler.
func NewWithdrawalHandler(withdrawals withdrawalSrv) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Create godoc
// @Summary Open a withdrawal request
// @Description Psychologist requests a payout of accumulated earnings
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Param payload body dto.CreateWithdrawalRequest true "Withdrawal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /withdrawals [post]
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid withdrawal payload"))
		return
	}

	withdrawal, err := h.withdrawals.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, withdrawal)
}

// Review godoc
// @Summary Review a withdrawal request
// @Description Admin marks the payout as paid or refused
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Param payload body dto.ReviewWithdrawalRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /withdrawals/{id}/review [post]
func (h *WithdrawalHandler) Review(c *gin.Context) {
	var req dto.ReviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	withdrawal, err := h.withdrawals.Review(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawal, nil)
}

// Get godoc
// @Summary Get withdrawal detail
// @Tags Withdrawals
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /withdrawals/{id} [get]
func (h *WithdrawalHandler) Get(c *gin.Context) {
	withdrawal, err := h.withdrawals.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawal, nil)
}

// List godoc
// @Summary List withdrawal requests
// @Tags Withdrawals
// @Produce json
// @Param psychologistId query string false "Filter by psychologist"
// @Param status query string false "Comma separated status filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /withdrawals [get]
func (h *WithdrawalHandler) List(c *gin.Context) {
	query := dto.WithdrawalQuery{
		PsychologistID: c.Query("psychologistId"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				query.Status = append(query.Status, models.WithdrawalStatus(s))
			}
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	withdrawals, err := h.withdrawals.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, withdrawals, nil)
}
