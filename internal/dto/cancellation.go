package dto

import (
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
)

// CreateCancellationRequest is the payload opening a cancellation or
// reschedule request. Motivo is mandatory only when the request falls
// outside the grace window; the service enforces that at creation time.
type CreateCancellationRequest struct {
	AppointmentID string             `json:"appointmentId" validate:"required"`
	Type          models.RequestType `json:"type" validate:"required"`
	Motivo        string             `json:"motivo"`
	ForcaMaior    bool               `json:"forcaMaior"`
	DocumentID    string             `json:"documentId"`
	NewDate       string             `json:"newDate"`
	NewHorario    string             `json:"newHorario"`
}

// ReviewCancellationRequest captures the admin decision and optional note.
type ReviewCancellationRequest struct {
	Status models.ReviewStatus `json:"status" validate:"required"`
	Note   string              `json:"note"`
}

// CancellationQuery mirrors supported listing filters.
type CancellationQuery struct {
	Status []models.ReviewStatus
	Type   models.RequestType
	Limit  int
	Offset int
}

// CancellationResult is returned on creation; Resolved is true when the
// request was inside the grace window and applied immediately.
type CancellationResult struct {
	Request     *models.CancellationRequest `json:"request"`
	Resolved    bool                        `json:"resolved"`
	Appointment *models.Appointment         `json:"appointment,omitempty"`
}
