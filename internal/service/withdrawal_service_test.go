package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/repository"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type mockWithdrawalRepo struct {
	withdrawals map[string]*models.Withdrawal
	reviews     []repository.ReviewWithdrawalParams
}

func newMockWithdrawalRepo(withdrawals ...*models.Withdrawal) *mockWithdrawalRepo {
	repo := &mockWithdrawalRepo{withdrawals: make(map[string]*models.Withdrawal)}
	for _, w := range withdrawals {
		repo.withdrawals[w.ID] = w
	}
	return repo
}

func (m *mockWithdrawalRepo) Create(_ context.Context, w *models.Withdrawal) error {
	if w.ID == "" {
		w.ID = "wd-new"
	}
	m.withdrawals[w.ID] = w
	return nil
}

func (m *mockWithdrawalRepo) GetByID(_ context.Context, id string) (*models.Withdrawal, error) {
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *w
	return &clone, nil
}

func (m *mockWithdrawalRepo) List(_ context.Context, filter models.WithdrawalFilter) ([]models.Withdrawal, error) {
	out := make([]models.Withdrawal, 0, len(m.withdrawals))
	for _, w := range m.withdrawals {
		if filter.PsychologistID != "" && w.PsychologistID != filter.PsychologistID {
			continue
		}
		out = append(out, *w)
	}
	return out, nil
}

func (m *mockWithdrawalRepo) Review(_ context.Context, params repository.ReviewWithdrawalParams) error {
	w, ok := m.withdrawals[params.ID]
	if !ok || w.Status != models.WithdrawalEmAnalise {
		return sql.ErrNoRows
	}
	w.Status = params.Status
	w.ReviewedBy = &params.ReviewedBy
	w.ReviewedAt = &params.ReviewedAt
	w.ReviewNote = params.Note
	m.reviews = append(m.reviews, params)
	return nil
}

func (m *mockWithdrawalRepo) SumOpenByPsychologist(_ context.Context, psychologistID string) (int64, error) {
	var sum int64
	for _, w := range m.withdrawals {
		if w.PsychologistID == psychologistID && w.Status == models.WithdrawalEmAnalise {
			sum += w.AmountCents
		}
	}
	return sum, nil
}

func newTestWithdrawalService(repo *mockWithdrawalRepo) (*WithdrawalService, *recordPublisher, *mockNotifier) {
	publisher := &recordPublisher{}
	notifier := &mockNotifier{}
	svc := NewWithdrawalService(repo, &mockAuditRepo{}, notifier, publisher, 5000, nil, zap.NewNop())
	return svc, publisher, notifier
}

func TestWithdrawalServiceCreateAssignsProtocol(t *testing.T) {
	repo := newMockWithdrawalRepo()
	svc, _, _ := newTestWithdrawalService(repo)

	w, err := svc.Create(context.Background(), dto.CreateWithdrawalRequest{AmountCents: 12000, PixKey: "psy@example.com"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(w.Protocol, "WD-"))
	assert.Equal(t, models.WithdrawalEmAnalise, w.Status)
	assert.Equal(t, "psy-1", w.PsychologistID)
}

func TestWithdrawalServiceCreateRejectsBelowMinimum(t *testing.T) {
	svc, _, _ := newTestWithdrawalService(newMockWithdrawalRepo())

	_, err := svc.Create(context.Background(), dto.CreateWithdrawalRequest{AmountCents: 4999, PixKey: "psy@example.com"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestWithdrawalServiceCreateRequiresPsychologist(t *testing.T) {
	svc, _, _ := newTestWithdrawalService(newMockWithdrawalRepo())

	_, err := svc.Create(context.Background(), dto.CreateWithdrawalRequest{AmountCents: 12000, PixKey: "pat@example.com"}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestWithdrawalServiceReviewPaysOut(t *testing.T) {
	repo := newMockWithdrawalRepo(&models.Withdrawal{ID: "wd-1", Protocol: "WD-20260801-ABC123", PsychologistID: "psy-1", AmountCents: 12000, Status: models.WithdrawalEmAnalise})
	svc, publisher, notifier := newTestWithdrawalService(repo)

	w, err := svc.Review(context.Background(), "wd-1", dto.ReviewWithdrawalRequest{Status: models.WithdrawalPago, Note: "nota fiscal conferida"}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalPago, w.Status)
	require.NotNil(t, w.ReviewedBy)
	assert.Equal(t, "adm-1", *w.ReviewedBy)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.TemplateWithdrawalReviewed, notifier.sent[0].Template)
	assert.NotEmpty(t, publisher.eventsFor(TopicUser("psy-1")))
}

func TestWithdrawalServiceReviewTwiceConflicts(t *testing.T) {
	repo := newMockWithdrawalRepo(&models.Withdrawal{ID: "wd-1", PsychologistID: "psy-1", AmountCents: 12000, Status: models.WithdrawalEmAnalise})
	svc, _, _ := newTestWithdrawalService(repo)
	admin := &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}

	_, err := svc.Review(context.Background(), "wd-1", dto.ReviewWithdrawalRequest{Status: models.WithdrawalRecusado}, admin)
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "wd-1", dto.ReviewWithdrawalRequest{Status: models.WithdrawalPago}, admin)
	require.ErrorIs(t, err, appErrors.ErrAlreadyReviewed)
}

func TestWithdrawalServiceReviewRejectsInvalidStatus(t *testing.T) {
	repo := newMockWithdrawalRepo(&models.Withdrawal{ID: "wd-1", PsychologistID: "psy-1", Status: models.WithdrawalEmAnalise})
	svc, _, _ := newTestWithdrawalService(repo)

	_, err := svc.Review(context.Background(), "wd-1", dto.ReviewWithdrawalRequest{Status: models.WithdrawalEmAnalise}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestWithdrawalServiceListScopedToOwner(t *testing.T) {
	repo := newMockWithdrawalRepo(
		&models.Withdrawal{ID: "wd-1", PsychologistID: "psy-1", Status: models.WithdrawalEmAnalise},
		&models.Withdrawal{ID: "wd-2", PsychologistID: "psy-2", Status: models.WithdrawalEmAnalise},
	)
	svc, _, _ := newTestWithdrawalService(repo)

	mine, err := svc.List(context.Background(), dto.WithdrawalQuery{PsychologistID: "psy-2"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "wd-1", mine[0].ID)

	all, err := svc.List(context.Background(), dto.WithdrawalQuery{}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWithdrawalServiceGetScopedToOwner(t *testing.T) {
	repo := newMockWithdrawalRepo(&models.Withdrawal{ID: "wd-1", PsychologistID: "psy-1", Status: models.WithdrawalEmAnalise})
	svc, _, _ := newTestWithdrawalService(repo)

	_, err := svc.Get(context.Background(), "wd-1", &models.JWTClaims{UserID: "psy-2", Role: models.RolePsicologo})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	w, err := svc.Get(context.Background(), "wd-1", &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)
	assert.Equal(t, "wd-1", w.ID)
}
