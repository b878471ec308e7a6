package models

import "time"

// WithdrawalStatus tracks the payout review workflow.
type WithdrawalStatus string

const (
	WithdrawalEmAnalise WithdrawalStatus = "EM_ANALISE"
	WithdrawalPago      WithdrawalStatus = "PAGO"
	WithdrawalRecusado  WithdrawalStatus = "RECUSADO"
)

// Resolved reports whether the withdrawal reached a terminal state.
func (s WithdrawalStatus) Resolved() bool {
	return s == WithdrawalPago || s == WithdrawalRecusado
}

// Withdrawal is a psychologist payout request. AmountCents is validated
// against accrued earnings at creation; NotaFiscalID references the invoice
// document attached when the payout is approved.
type Withdrawal struct {
	ID             string           `db:"id" json:"id"`
	Protocol       string           `db:"protocol" json:"protocol"`
	PsychologistID string           `db:"psychologist_id" json:"psychologist_id"`
	AmountCents    int64            `db:"amount_cents" json:"amount_cents"`
	PixKey         string           `db:"pix_key" json:"pix_key"`
	NotaFiscalID   *string          `db:"nota_fiscal_id" json:"nota_fiscal_id,omitempty"`
	Status         WithdrawalStatus `db:"status" json:"status"`
	ReviewedBy     *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote     *string          `db:"review_note" json:"review_note,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// WithdrawalFilter constrains payout listing queries.
type WithdrawalFilter struct {
	PsychologistID string
	Status         []WithdrawalStatus
	Limit          int
	Offset         int
}
