package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
)

const agendaColumns = `id, psychologist_id, date, horario, duration_min, booked, created_at, updated_at`

// AgendaRepository persists psychologist agenda slots.
type AgendaRepository struct {
	db *sqlx.DB
}

// NewAgendaRepository constructs the repository.
func NewAgendaRepository(db *sqlx.DB) *AgendaRepository {
	return &AgendaRepository{db: db}
}

// Create inserts a new open slot. The unique index on
// (psychologist_id, date, horario) rejects duplicates.
func (r *AgendaRepository) Create(ctx context.Context, slot *models.AgendaSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.DurationMin <= 0 {
		slot.DurationMin = 50
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	const query = `INSERT INTO agenda_slots (id, psychologist_id, date, horario, duration_min, booked, created_at, updated_at)
VALUES (:id, :psychologist_id, :date, :horario, :duration_min, :booked, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create agenda slot: %w", err)
	}
	return nil
}

// GetByID fetches a slot by identifier.
func (r *AgendaRepository) GetByID(ctx context.Context, id string) (*models.AgendaSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM agenda_slots WHERE id = $1`, agendaColumns)
	var slot models.AgendaSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get agenda slot: %w", err)
	}
	return &slot, nil
}

// List returns slots matching the filter ordered by date and time.
func (r *AgendaRepository) List(ctx context.Context, filter models.AgendaFilter) ([]models.AgendaSlot, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM agenda_slots`, agendaColumns))

	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 3)
	if filter.PsychologistID != "" {
		args = append(args, filter.PsychologistID)
		conditions = append(conditions, fmt.Sprintf("psychologist_id = $%d", len(args)))
	}
	if filter.DateFrom != "" {
		args = append(args, filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.DateTo != "" {
		args = append(args, filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.OnlyFree {
		conditions = append(conditions, "booked = FALSE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY date ASC, horario ASC")

	var slots []models.AgendaSlot
	if err := r.db.SelectContext(ctx, &slots, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list agenda slots: %w", err)
	}
	return slots, nil
}

// MarkBooked claims a free slot. The booked guard makes this a
// compare-and-set; sql.ErrNoRows means another booking got there first.
func (r *AgendaRepository) MarkBooked(ctx context.Context, id string) error {
	const query = `UPDATE agenda_slots SET booked = TRUE, updated_at = $2 WHERE id = $1 AND booked = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark agenda slot booked: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check booking rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Release frees a slot after its appointment was cancelled.
func (r *AgendaRepository) Release(ctx context.Context, id string) error {
	const query = `UPDATE agenda_slots SET booked = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("release agenda slot: %w", err)
	}
	return nil
}

// Delete removes an unbooked slot from the agenda. Booked slots stay put
// until their appointment resolves.
func (r *AgendaRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM agenda_slots WHERE id = $1 AND booked = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete agenda slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
