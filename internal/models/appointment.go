package models

import "time"

// AppointmentStatus is the raw status tag persisted for a Consulta. The
// vocabulary is closed on the write side; reads tolerate legacy values and
// normalize them for display (see internal/status).
type AppointmentStatus string

const (
	StatusAgendada    AppointmentStatus = "Agendada"
	StatusEmAndamento AppointmentStatus = "EmAndamento"
	StatusRealizada   AppointmentStatus = "Realizada"

	StatusCanceladaPacienteNoPrazo    AppointmentStatus = "CanceladaPacienteNoPrazo"
	StatusCanceladaPsicologoNoPrazo   AppointmentStatus = "CanceladaPsicologoNoPrazo"
	StatusCanceladaPacienteForaPrazo  AppointmentStatus = "CanceladaPacienteForaPrazo"
	StatusCanceladaPsicologoForaPrazo AppointmentStatus = "CanceladaPsicologoForaPrazo"
	StatusCanceladaForcaMaior         AppointmentStatus = "CanceladaForcaMaior"

	StatusCanceladaNaoCumprimentoContratualPaciente  AppointmentStatus = "CanceladaNaoCumprimentoContratualPaciente"
	StatusCanceladaNaoCumprimentoContratualPsicologo AppointmentStatus = "CanceladaNaoCumprimentoContratualPsicologo"

	StatusReagendadaPacienteNoPrazo    AppointmentStatus = "ReagendadaPacienteNoPrazo"
	StatusReagendadaPsicologoNoPrazo   AppointmentStatus = "ReagendadaPsicologoNoPrazo"
	StatusReagendadaPacienteForaPrazo  AppointmentStatus = "ReagendadaPacienteForaPrazo"
	StatusReagendadaPsicologoForaPrazo AppointmentStatus = "ReagendadaPsicologoForaPrazo"

	StatusPacienteNaoCompareceu  AppointmentStatus = "PacienteNaoCompareceu"
	StatusPsicologoNaoCompareceu AppointmentStatus = "PsicologoNaoCompareceu"

	StatusPsicologoDescredenciado AppointmentStatus = "PsicologoDescredenciado"
	StatusCanceladoAdministrador  AppointmentStatus = "CanceladoAdministrador"
)

// Terminal reports whether the status ends the appointment lifecycle. Rows
// are never deleted; a terminal status is the soft equivalent. Rescheduled
// appointments stay open: they carry the new date and still happen.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusAgendada, StatusEmAndamento,
		StatusReagendadaPacienteNoPrazo, StatusReagendadaPsicologoNoPrazo,
		StatusReagendadaPacienteForaPrazo, StatusReagendadaPsicologoForaPrazo:
		return false
	}
	return true
}

// OpenStatuses lists the states an appointment can still move from.
func OpenStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		StatusAgendada, StatusEmAndamento,
		StatusReagendadaPacienteNoPrazo, StatusReagendadaPsicologoNoPrazo,
		StatusReagendadaPacienteForaPrazo, StatusReagendadaPsicologoForaPrazo,
	}
}

// Appointment represents a scheduled consultation between a patient and a
// psychologist. Date carries the calendar day; Horario the zero-padded
// 24-hour "HH:mm" start time, both interpreted in the platform timezone.
type Appointment struct {
	ID             string            `db:"id" json:"id"`
	PatientID      string            `db:"patient_id" json:"patient_id"`
	PsychologistID string            `db:"psychologist_id" json:"psychologist_id"`
	AgendaSlotID   *string           `db:"agenda_slot_id" json:"agenda_slot_id,omitempty"`
	Date           string            `db:"date" json:"date"`
	Horario        string            `db:"horario" json:"horario"`
	Status         AppointmentStatus `db:"status" json:"status"`
	RoomURL        *string           `db:"room_url" json:"room_url,omitempty"`
	StartedAt      *time.Time        `db:"started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentFilter constrains appointment listing queries.
type AppointmentFilter struct {
	PatientID      string
	PsychologistID string
	Status         []AppointmentStatus
	DateFrom       string
	DateTo         string
	Page           int
	PageSize       int
}
