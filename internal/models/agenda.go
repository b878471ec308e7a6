package models

import "time"

// AgendaSlot is a bookable time slot published by a psychologist. A slot
// holds at most one appointment; Booked flips when a Consulta claims it.
type AgendaSlot struct {
	ID             string    `db:"id" json:"id"`
	PsychologistID string    `db:"psychologist_id" json:"psychologist_id"`
	Date           string    `db:"date" json:"date"`
	Horario        string    `db:"horario" json:"horario"`
	DurationMin    int       `db:"duration_min" json:"duration_min"`
	Booked         bool      `db:"booked" json:"booked"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AgendaFilter constrains slot listing queries.
type AgendaFilter struct {
	PsychologistID string
	DateFrom       string
	DateTo         string
	OnlyFree       bool
}
