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

const withdrawalColumns = `id, protocol, psychologist_id, amount_cents, pix_key, nota_fiscal_id, status, reviewed_by, reviewed_at, review_note, created_at, updated_at`

// WithdrawalRepository persists psychologist payout requests.
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository constructs the repository.
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts a new payout request.
func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = models.WithdrawalEmAnalise
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	const query = `INSERT INTO withdrawals (id, protocol, psychologist_id, amount_cents, pix_key, nota_fiscal_id, status, reviewed_by, reviewed_at, review_note, created_at, updated_at)
VALUES (:id, :protocol, :psychologist_id, :amount_cents, :pix_key, :nota_fiscal_id, :status, :reviewed_by, :reviewed_at, :review_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, w); err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a payout request by identifier.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*models.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE id = $1`, withdrawalColumns)
	var w models.Withdrawal
	if err := r.db.GetContext(ctx, &w, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return &w, nil
}

// List returns payout requests matching the filter, newest first.
func (r *WithdrawalRepository) List(ctx context.Context, filter models.WithdrawalFilter) ([]models.Withdrawal, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM withdrawals`, withdrawalColumns))

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
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

	var withdrawals []models.Withdrawal
	if err := r.db.SelectContext(ctx, &withdrawals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// ReviewWithdrawalParams groups the columns touched by an admin decision.
type ReviewWithdrawalParams struct {
	ID           string
	Status       models.WithdrawalStatus
	ReviewedBy   string
	ReviewedAt   time.Time
	Note         *string
	NotaFiscalID *string
}

// Review records the admin decision. Guarded on EM_ANALISE so a second
// decision on the same request reports sql.ErrNoRows.
func (r *WithdrawalRepository) Review(ctx context.Context, params ReviewWithdrawalParams) error {
	set := []string{
		"status = :status",
		"reviewed_by = :reviewed_by",
		"reviewed_at = :reviewed_at",
		"review_note = :review_note",
		"updated_at = :updated_at",
	}
	if params.NotaFiscalID != nil {
		set = append(set, "nota_fiscal_id = :nota_fiscal_id")
	}
	query := fmt.Sprintf("UPDATE withdrawals SET %s WHERE id = :id AND status = 'EM_ANALISE'", strings.Join(set, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"status":         params.Status,
		"reviewed_by":    params.ReviewedBy,
		"reviewed_at":    params.ReviewedAt,
		"review_note":    params.Note,
		"nota_fiscal_id": params.NotaFiscalID,
		"updated_at":     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("review withdrawal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check withdrawal review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountPending returns how many payout requests await review.
func (r *WithdrawalRepository) CountPending(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM withdrawals WHERE status = 'EM_ANALISE'`
	var total int64
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count pending withdrawals: %w", err)
	}
	return total, nil
}

// SumOpenByPsychologist totals the amount locked in unresolved requests.
func (r *WithdrawalRepository) SumOpenByPsychologist(ctx context.Context, psychologistID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount_cents), 0) FROM withdrawals WHERE psychologist_id = $1 AND status = 'EM_ANALISE'`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, psychologistID); err != nil {
		return 0, fmt.Errorf("sum open withdrawals: %w", err)
	}
	return total, nil
}

// ListBetween fetches requests created in a date range for report exports.
func (r *WithdrawalRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`, withdrawalColumns)
	var withdrawals []models.Withdrawal
	if err := r.db.SelectContext(ctx, &withdrawals, query, from, to); err != nil {
		return nil, fmt.Errorf("list withdrawals between dates: %w", err)
	}
	return withdrawals, nil
}
