package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

func newTestAgendaService(t *testing.T, repo agendaStore) *AgendaService {
	t.Helper()
	return NewAgendaService(repo, testGracePolicy(t), nil, zap.NewNop())
}

func TestAgendaServiceCreateFutureSlot(t *testing.T) {
	repo := newMockAgendaRepo()
	svc := newTestAgendaService(t, repo)

	slot, err := svc.Create(context.Background(), dto.CreateAgendaSlotRequest{Date: futureDate(5), Horario: "14:00"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)
	assert.Equal(t, "psy-1", slot.PsychologistID)
	assert.False(t, slot.Booked)
	assert.Contains(t, repo.slots, slot.ID)
}

func TestAgendaServiceCreateRejectsPastSlot(t *testing.T) {
	svc := newTestAgendaService(t, newMockAgendaRepo())

	_, err := svc.Create(context.Background(), dto.CreateAgendaSlotRequest{Date: futureDate(-1), Horario: "14:00"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAgendaServiceCreateRejectsUnpaddedHorario(t *testing.T) {
	svc := newTestAgendaService(t, newMockAgendaRepo())

	for _, horario := range []string{"9:00", "14:5", "25:00", "14h00"} {
		_, err := svc.Create(context.Background(), dto.CreateAgendaSlotRequest{Date: futureDate(5), Horario: horario}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
		require.Error(t, err, horario)
	}
}

func TestAgendaServiceCreateRequiresPsychologist(t *testing.T) {
	svc := newTestAgendaService(t, newMockAgendaRepo())

	_, err := svc.Create(context.Background(), dto.CreateAgendaSlotRequest{Date: futureDate(5), Horario: "14:00"}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAgendaServiceListForcesFreeSlotsForPatients(t *testing.T) {
	repo := newMockAgendaRepo(&models.AgendaSlot{ID: "slot-1", PsychologistID: "psy-1"})
	captured := models.AgendaFilter{}
	svc := newTestAgendaService(t, &filterCapturingAgendaRepo{mockAgendaRepo: repo, captured: &captured})

	_, err := svc.List(context.Background(), dto.AgendaQuery{OnlyFree: false}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.NoError(t, err)
	assert.True(t, captured.OnlyFree)

	_, err = svc.List(context.Background(), dto.AgendaQuery{PsychologistID: "psy-9"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)
	assert.Equal(t, "psy-1", captured.PsychologistID)
}

type filterCapturingAgendaRepo struct {
	*mockAgendaRepo
	captured *models.AgendaFilter
}

func (f *filterCapturingAgendaRepo) List(ctx context.Context, filter models.AgendaFilter) ([]models.AgendaSlot, error) {
	*f.captured = filter
	return f.mockAgendaRepo.List(ctx, filter)
}

func TestAgendaServiceDeleteOwnUnbookedSlot(t *testing.T) {
	repo := newMockAgendaRepo(
		&models.AgendaSlot{ID: "slot-1", PsychologistID: "psy-1"},
		&models.AgendaSlot{ID: "slot-2", PsychologistID: "psy-1", Booked: true},
	)
	svc := newTestAgendaService(t, repo)
	actor := &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo}

	require.NoError(t, svc.Delete(context.Background(), "slot-1", actor))
	assert.NotContains(t, repo.slots, "slot-1")

	err := svc.Delete(context.Background(), "slot-2", actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAgendaServiceDeleteForeignSlotForbidden(t *testing.T) {
	repo := newMockAgendaRepo(&models.AgendaSlot{ID: "slot-1", PsychologistID: "psy-1"})
	svc := newTestAgendaService(t, repo)

	err := svc.Delete(context.Background(), "slot-1", &models.JWTClaims{UserID: "psy-2", Role: models.RolePsicologo})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
