package dto

import "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"

// BookAppointmentRequest reserves an open agenda slot for the
// authenticated patient. Booking debits one credit.
type BookAppointmentRequest struct {
	AgendaSlotID string `json:"agendaSlotId" validate:"required"`
}

// AdminCancelRequest cancels one appointment on behalf of the platform.
type AdminCancelRequest struct {
	Motivo string `json:"motivo" validate:"required"`
}

// DecredentialRequest cancels every future appointment of a psychologist.
type DecredentialRequest struct {
	PsychologistID string `json:"psychologistId" validate:"required"`
	Motivo         string `json:"motivo" validate:"required"`
}

// NoShowRequest marks an appointment as missed by one of the parties.
type NoShowRequest struct {
	Absent models.UserRole `json:"absent" validate:"required,oneof=PACIENTE PSICOLOGO"`
}

// AppointmentQuery mirrors supported listing filters.
type AppointmentQuery struct {
	PatientID      string
	PsychologistID string
	Status         []models.AppointmentStatus
	DateFrom       string
	DateTo         string
	Limit          int
	Offset         int
}

// AppointmentView decorates an appointment with its display status.
type AppointmentView struct {
	*models.Appointment
	StatusLabel string `json:"statusLabel"`
	StatusBadge string `json:"statusBadge"`
}
