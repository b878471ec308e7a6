package models

import "time"

// PatientBalance is the session-credit ledger head for a patient. Credits
// are consumed on booking and restored by workflow rules; PlanRestores
// marks plans whose rules allow restoration on approved cancellations.
type PatientBalance struct {
	PatientID    string    `db:"patient_id" json:"patient_id"`
	Credits      int       `db:"credits" json:"credits"`
	PlanRestores bool      `db:"plan_restores" json:"plan_restores"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BalanceEntry is an append-only ledger movement.
type BalanceEntry struct {
	ID        string    `db:"id" json:"id"`
	PatientID string    `db:"patient_id" json:"patient_id"`
	Delta     int       `db:"delta" json:"delta"`
	Reason    string    `db:"reason" json:"reason"`
	RefID     *string   `db:"ref_id" json:"ref_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	BalanceReasonBooking       = "BOOKING"
	BalanceReasonRestore       = "RESTORE"
	BalanceReasonAdminCancel   = "ADMIN_CANCEL"
	BalanceReasonDecredentials = "PSYCHOLOGIST_DECREDENTIALED"
)
