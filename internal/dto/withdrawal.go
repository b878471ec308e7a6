package dto

import "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"

// CreateWithdrawalRequest opens a payout request for the authenticated
// psychologist. Amounts are integer cents.
type CreateWithdrawalRequest struct {
	AmountCents  int64  `json:"amountCents" validate:"required,gt=0"`
	PixKey       string `json:"pixKey" validate:"required"`
	NotaFiscalID string `json:"notaFiscalId"`
}

// ReviewWithdrawalRequest captures the admin decision on a payout.
type ReviewWithdrawalRequest struct {
	Status models.WithdrawalStatus `json:"status" validate:"required"`
	Note   string                  `json:"note"`
}

// WithdrawalQuery mirrors supported listing filters.
type WithdrawalQuery struct {
	PsychologistID string
	Status         []models.WithdrawalStatus
	Limit          int
	Offset         int
}
