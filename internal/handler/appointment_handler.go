package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/service"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/response"
)

// AppointmentHandler exposes consultation lifecycle endpoints.
type AppointmentHandler struct {
	appointments *service.AppointmentService
}

// NewAppointmentHandler constructs the handler.
func NewAppointmentHandler(appointments *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

// Book godoc
// @Summary Book an appointment
// @Description Reserve an open agenda slot, debiting one credit
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.BookAppointmentRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Book(c *gin.Context) {
	var req dto.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	appt, err := h.appointments.Book(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, appt)
}

// List godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param patientId query string false "Filter by patient"
// @Param psychologistId query string false "Filter by psychologist"
// @Param status query string false "Comma separated status filter"
// @Param dateFrom query string false "Start date (YYYY-MM-DD)"
// @Param dateTo query string false "End date (YYYY-MM-DD)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	query := dto.AppointmentQuery{
		PatientID:      c.Query("patientId"),
		PsychologistID: c.Query("psychologistId"),
		DateFrom:       c.Query("dateFrom"),
		DateTo:         c.Query("dateTo"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				query.Status = append(query.Status, models.AppointmentStatus(s))
			}
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	views, pagination, err := h.appointments.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, views, pagination)
}

// Get godoc
// @Summary Get appointment detail
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	view, err := h.appointments.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// Start godoc
// @Summary Start a session
// @Description Psychologist marks the consultation as in progress
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/start [post]
func (h *AppointmentHandler) Start(c *gin.Context) {
	appt, err := h.appointments.Start(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appt, nil)
}

// Complete godoc
// @Summary Complete a session
// @Description Psychologist marks the consultation as done
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/complete [post]
func (h *AppointmentHandler) Complete(c *gin.Context) {
	appt, err := h.appointments.Complete(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appt, nil)
}

// NoShow godoc
// @Summary Register a no-show
// @Description Mark the appointment as missed by one party
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.NoShowRequest true "Absent party"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/no-show [post]
func (h *AppointmentHandler) NoShow(c *gin.Context) {
	var req dto.NoShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid no-show payload"))
		return
	}

	appt, err := h.appointments.MarkNoShow(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appt, nil)
}

// AdminCancel godoc
// @Summary Cancel an appointment (back office)
// @Description Cancel on behalf of the platform, restoring the patient credit
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.AdminCancelRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/admin-cancel [post]
func (h *AppointmentHandler) AdminCancel(c *gin.Context) {
	var req dto.AdminCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
		return
	}

	appt, err := h.appointments.AdminCancel(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appt, nil)
}

// Decredential godoc
// @Summary Decredential a psychologist
// @Description Cancel every open appointment of a psychologist and block the account
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.DecredentialRequest true "Decredential payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /appointments/decredential [post]
func (h *AppointmentHandler) Decredential(c *gin.Context) {
	var req dto.DecredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decredential payload"))
		return
	}

	cancelled, err := h.appointments.Decredential(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"cancelled": cancelled}, nil)
}
