package models

import "time"

// RequestType distinguishes cancellation from reschedule requests.
type RequestType string

const (
	RequestTypeCancelamento  RequestType = "CANCELAMENTO"
	RequestTypeReagendamento RequestType = "REAGENDAMENTO"
)

// ReviewStatus captures the admin review workflow states. EM_ANALISE is the
// only state that accepts a decision; DEFERIDO and INDEFERIDO are terminal.
type ReviewStatus string

const (
	ReviewEmAnalise  ReviewStatus = "EM_ANALISE"
	ReviewDeferido   ReviewStatus = "DEFERIDO"
	ReviewIndeferido ReviewStatus = "INDEFERIDO"
)

// Resolved reports whether the request reached a terminal review state.
func (s ReviewStatus) Resolved() bool {
	return s == ReviewDeferido || s == ReviewIndeferido
}

// CancellationRequest records a patient- or psychologist-initiated request to
// cancel or reschedule an appointment. WithinDeadline is computed once at
// creation against the grace policy and never recomputed afterwards.
type CancellationRequest struct {
	ID             string       `db:"id" json:"id"`
	Protocol       string       `db:"protocol" json:"protocol"`
	AppointmentID  string       `db:"appointment_id" json:"appointment_id"`
	RequestedBy    string       `db:"requested_by" json:"requested_by"`
	RequesterRole  UserRole     `db:"requester_role" json:"requester_role"`
	Type           RequestType  `db:"type" json:"type"`
	Motivo         string       `db:"motivo" json:"motivo"`
	ForcaMaior     bool         `db:"forca_maior" json:"forca_maior"`
	DocumentID     *string      `db:"document_id" json:"document_id,omitempty"`
	WithinDeadline bool         `db:"within_deadline" json:"within_deadline"`
	NewDate        *string      `db:"new_date" json:"new_date,omitempty"`
	NewHorario     *string      `db:"new_horario" json:"new_horario,omitempty"`
	Status         ReviewStatus `db:"status" json:"status"`
	ReviewedBy     *string      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote     *string      `db:"review_note" json:"review_note,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// CancellationFilter constrains review-queue listing queries.
type CancellationFilter struct {
	Status        []ReviewStatus
	Type          RequestType
	RequestedBy   string
	AppointmentID string
	Limit         int
	Offset        int
}
