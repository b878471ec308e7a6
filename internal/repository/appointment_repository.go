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

const appointmentColumns = `id, patient_id, psychologist_id, agenda_slot_id, date, horario, status, room_url, started_at, finished_at, created_at, updated_at`

// AppointmentRepository persists Consulta rows.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts a new appointment row.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusAgendada
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	const query = `INSERT INTO appointments (id, patient_id, psychologist_id, agenda_slot_id, date, horario, status, room_url, started_at, finished_at, created_at, updated_at)
VALUES (:id, :patient_id, :psychologist_id, :agenda_slot_id, :date, :horario, :status, :room_url, :started_at, :finished_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// GetByID fetches an appointment by identifier.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &appt, nil
}

// List returns appointments matching the filter with total count, nearest
// date first.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	baseQuery := `FROM appointments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.PsychologistID != "" {
		args = append(args, filter.PsychologistID)
		conditions = append(conditions, fmt.Sprintf("psychologist_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DateFrom != "" {
		args = append(args, filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.DateTo != "" {
		args = append(args, filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, horario ASC LIMIT %d OFFSET %d", appointmentColumns, baseQuery, pageSize, offset)

	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return appts, total, nil
}

// TransitionParams groups the mutable columns updated on a status change.
type TransitionParams struct {
	ID         string
	From       []models.AppointmentStatus
	To         models.AppointmentStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Transition moves an appointment between lifecycle states. The From guard
// makes the update a compare-and-set; sql.ErrNoRows signals the row was not
// in any of the expected states.
func (r *AppointmentRepository) Transition(ctx context.Context, params TransitionParams) error {
	set := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{params.To, time.Now().UTC()}
	if params.StartedAt != nil {
		args = append(args, *params.StartedAt)
		set = append(set, fmt.Sprintf("started_at = $%d", len(args)))
	}
	if params.FinishedAt != nil {
		args = append(args, *params.FinishedAt)
		set = append(set, fmt.Sprintf("finished_at = $%d", len(args)))
	}

	args = append(args, params.ID)
	query := fmt.Sprintf("UPDATE appointments SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	if len(params.From) > 0 {
		placeholders := make([]string, len(params.From))
		for i, status := range params.From {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reschedule moves an appointment to a new date and time while recording
// the reschedule status, guarded against terminal states.
func (r *AppointmentRepository) Reschedule(ctx context.Context, id, newDate, newHorario string, status models.AppointmentStatus) error {
	const query = `UPDATE appointments SET date = $2, horario = $3, status = $4, updated_at = $5 WHERE id = $1 AND status IN ('Agendada', 'EmAndamento', 'ReagendadaPacienteNoPrazo', 'ReagendadaPsicologoNoPrazo', 'ReagendadaPacienteForaPrazo', 'ReagendadaPsicologoForaPrazo')`
	result, err := r.db.ExecContext(ctx, query, id, newDate, newHorario, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reschedule appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reschedule rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUpcomingByPsychologist fetches still-open appointments of one
// psychologist from a given date forward. Used by the decredential sweep.
func (r *AppointmentRepository) ListUpcomingByPsychologist(ctx context.Context, psychologistID, fromDate string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE psychologist_id = $1 AND date >= $2 AND status IN ('Agendada', 'EmAndamento', 'ReagendadaPacienteNoPrazo', 'ReagendadaPsicologoNoPrazo', 'ReagendadaPacienteForaPrazo', 'ReagendadaPsicologoForaPrazo') ORDER BY date ASC, horario ASC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, psychologistID, fromDate); err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appts, nil
}

// CountByStatus aggregates rows per raw status tag for dashboard widgets.
func (r *AppointmentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	const query = `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count appointments by status: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var status string
		var total int64
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		result[status] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return result, nil
}

// CountOnDate returns appointments scheduled for a given calendar day.
func (r *AppointmentRepository) CountOnDate(ctx context.Context, date string) (int64, error) {
	const query = `SELECT COUNT(*) FROM appointments WHERE date = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, date); err != nil {
		return 0, fmt.Errorf("count appointments on date: %w", err)
	}
	return total, nil
}

// CountUpcoming returns open appointments from a given date forward.
func (r *AppointmentRepository) CountUpcoming(ctx context.Context, fromDate string) (int64, error) {
	const query = `SELECT COUNT(*) FROM appointments WHERE date >= $1 AND status = 'Agendada'`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, fromDate); err != nil {
		return 0, fmt.Errorf("count upcoming appointments: %w", err)
	}
	return total, nil
}

// ListBetween fetches appointments in a date range for report exports.
func (r *AppointmentRepository) ListBetween(ctx context.Context, dateFrom, dateTo string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE date >= $1 AND date <= $2 ORDER BY date ASC, horario ASC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("list appointments between dates: %w", err)
	}
	return appts, nil
}
