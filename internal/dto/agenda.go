package dto

// CreateAgendaSlotRequest opens a bookable slot on the psychologist's
// agenda. Date is "2006-01-02" and Horario is "15:04".
type CreateAgendaSlotRequest struct {
	Date    string `json:"date" validate:"required"`
	Horario string `json:"horario" validate:"required"`
}

// AgendaQuery mirrors supported listing filters.
type AgendaQuery struct {
	PsychologistID string
	DateFrom       string
	DateTo         string
	OnlyFree       bool
	Limit          int
	Offset         int
}
