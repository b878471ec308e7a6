package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/response"
)

type agendaSrv interface {
	Create(ctx context.Context, req dto.CreateAgendaSlotRequest, actor *models.JWTClaims) (*models.AgendaSlot, error)
	List(ctx context.Context, query dto.AgendaQuery, actor *models.JWTClaims) ([]models.AgendaSlot, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// AgendaHandler exposes agenda slot endpoints.
type AgendaHandler struct {
	agendas agendaSrv
}

// NewAgendaHandler constructs the handler.
func NewAgendaHandler(agendas agendaSrv) *AgendaHandler {
	return &AgendaHandler{agendas: agendas}
}

// Create godoc
// @Summary Open an agenda slot
// @Description Psychologist publishes a bookable time slot
// @Tags Agenda
// @Accept json
// @Produce json
// @Param payload body dto.CreateAgendaSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /agenda [post]
func (h *AgendaHandler) Create(c *gin.Context) {
	var req dto.CreateAgendaSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	slot, err := h.agendas.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, slot)
}

// List godoc
// @Summary List agenda slots
// @Description Patients see only free slots; psychologists see their own agenda
// @Tags Agenda
// @Produce json
// @Param psychologistId query string false "Filter by psychologist"
// @Param dateFrom query string false "Start date (YYYY-MM-DD)"
// @Param dateTo query string false "End date (YYYY-MM-DD)"
// @Param onlyFree query bool false "Only unbooked slots"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /agenda [get]
func (h *AgendaHandler) List(c *gin.Context) {
	query := dto.AgendaQuery{
		PsychologistID: c.Query("psychologistId"),
		DateFrom:       c.Query("dateFrom"),
		DateTo:         c.Query("dateTo"),
		OnlyFree:       c.Query("onlyFree") == "true",
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	slots, err := h.agendas.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slots, nil)
}

// Delete godoc
// @Summary Remove an agenda slot
// @Description Only unbooked slots owned by the psychologist can be removed
// @Tags Agenda
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /agenda/{id} [delete]
func (h *AgendaHandler) Delete(c *gin.Context) {
	if err := h.agendas.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
