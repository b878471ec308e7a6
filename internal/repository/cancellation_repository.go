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

const cancellationColumns = `id, protocol, appointment_id, requested_by, requester_role, type, motivo, forca_maior, document_id, within_deadline, new_date, new_horario, status, reviewed_by, reviewed_at, review_note, created_at, updated_at`

// CancellationRepository persists cancellation and reschedule requests.
type CancellationRepository struct {
	db *sqlx.DB
}

// NewCancellationRepository constructs the repository.
func NewCancellationRepository(db *sqlx.DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

// Create inserts a new request row.
func (r *CancellationRepository) Create(ctx context.Context, req *models.CancellationRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.ReviewEmAnalise
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO cancellation_requests (id, protocol, appointment_id, requested_by, requester_role, type, motivo, forca_maior, document_id, within_deadline, new_date, new_horario, status, reviewed_by, reviewed_at, review_note, created_at, updated_at)
VALUES (:id, :protocol, :appointment_id, :requested_by, :requester_role, :type, :motivo, :forca_maior, :document_id, :within_deadline, :new_date, :new_horario, :status, :reviewed_by, :reviewed_at, :review_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create cancellation request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *CancellationRepository) GetByID(ctx context.Context, id string) (*models.CancellationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM cancellation_requests WHERE id = $1`, cancellationColumns)
	var req models.CancellationRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get cancellation request: %w", err)
	}
	return &req, nil
}

// GetByProtocol fetches a request by its human-facing protocol number.
func (r *CancellationRepository) GetByProtocol(ctx context.Context, protocol string) (*models.CancellationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM cancellation_requests WHERE protocol = $1`, cancellationColumns)
	var req models.CancellationRequest
	if err := r.db.GetContext(ctx, &req, query, protocol); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get cancellation request by protocol: %w", err)
	}
	return &req, nil
}

// HasOpenForAppointment reports whether the appointment already has a
// request awaiting review.
func (r *CancellationRepository) HasOpenForAppointment(ctx context.Context, appointmentID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM cancellation_requests WHERE appointment_id = $1 AND status = 'EM_ANALISE'`
	var total int
	if err := r.db.GetContext(ctx, &total, query, appointmentID); err != nil {
		return false, fmt.Errorf("check open cancellation request: %w", err)
	}
	return total > 0, nil
}

// List returns requests matching the filter, newest first.
func (r *CancellationRepository) List(ctx context.Context, filter models.CancellationFilter) ([]models.CancellationRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM cancellation_requests`, cancellationColumns))

	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.AppointmentID != "" {
		args = append(args, filter.AppointmentID)
		conditions = append(conditions, fmt.Sprintf("appointment_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.CancellationRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list cancellation requests: %w", err)
	}
	return requests, nil
}

// ReviewParams groups the columns touched by an admin decision.
type ReviewParams struct {
	ID         string
	Status     models.ReviewStatus
	ReviewedBy string
	ReviewedAt time.Time
	Note       *string
}

// Review records the admin decision. The status guard keeps the decision a
// compare-and-set; sql.ErrNoRows means the request was already resolved.
func (r *CancellationRepository) Review(ctx context.Context, params ReviewParams) error {
	const query = `UPDATE cancellation_requests SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, review_note = :review_note, updated_at = :updated_at
WHERE id = :id AND status = 'EM_ANALISE'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"reviewed_by": params.ReviewedBy,
		"reviewed_at": params.ReviewedAt,
		"review_note": params.Note,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("review cancellation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountPending returns how many requests await review.
func (r *CancellationRepository) CountPending(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM cancellation_requests WHERE status = 'EM_ANALISE'`
	var total int64
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count pending cancellation requests: %w", err)
	}
	return total, nil
}

// ListBetween fetches requests created in a date range for report exports.
func (r *CancellationRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.CancellationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM cancellation_requests WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`, cancellationColumns)
	var requests []models.CancellationRequest
	if err := r.db.SelectContext(ctx, &requests, query, from, to); err != nil {
		return nil, fmt.Errorf("list cancellation requests between dates: %w", err)
	}
	return requests, nil
}
