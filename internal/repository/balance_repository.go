package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
)

// BalanceRepository maintains the session-credit ledger. Every change to
// the balance head is paired with an append-only ledger entry inside one
// transaction.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs the repository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get returns the balance head for a patient.
func (r *BalanceRepository) Get(ctx context.Context, patientID string) (*models.PatientBalance, error) {
	const query = `SELECT patient_id, credits, plan_restores, updated_at FROM patient_balances WHERE patient_id = $1`
	var balance models.PatientBalance
	if err := r.db.GetContext(ctx, &balance, query, patientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get patient balance: %w", err)
	}
	return &balance, nil
}

// ApplyDelta moves the balance by delta and records the ledger entry in one
// transaction. Debits are guarded so credits never go negative;
// sql.ErrNoRows signals insufficient credit.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, patientID string, delta int, reason string, refID *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin balance update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `UPDATE patient_balances SET credits = credits + $2, updated_at = $3 WHERE patient_id = $1`
	if delta < 0 {
		query += fmt.Sprintf(" AND credits >= %d", -delta)
	}
	result, err := tx.ExecContext(ctx, query, patientID, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update patient balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check balance rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	entry := models.BalanceEntry{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Delta:     delta,
		Reason:    reason,
		RefID:     refID,
		CreatedAt: time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO balance_entries (id, patient_id, delta, reason, ref_id, created_at)
VALUES (:id, :patient_id, :delta, :reason, :ref_id, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, entry); err != nil {
		return fmt.Errorf("insert balance entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit balance update: %w", err)
	}
	return nil
}

// Entries returns the ledger movements for a patient, newest first.
func (r *BalanceRepository) Entries(ctx context.Context, patientID string, limit int) ([]models.BalanceEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, patient_id, delta, reason, ref_id, created_at FROM balance_entries WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2`
	var entries []models.BalanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, patientID, limit); err != nil {
		return nil, fmt.Errorf("list balance entries: %w", err)
	}
	return entries, nil
}

// HasRestoreForRef reports whether a restore was already recorded for the
// given reference. Keeps approval retries from crediting twice.
func (r *BalanceRepository) HasRestoreForRef(ctx context.Context, refID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM balance_entries WHERE ref_id = $1 AND delta > 0`
	var total int
	if err := r.db.GetContext(ctx, &total, query, refID); err != nil {
		return false, fmt.Errorf("check restore entry: %w", err)
	}
	return total > 0, nil
}
