package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func appointmentRows(id string, status models.AppointmentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "patient_id", "psychologist_id", "agenda_slot_id", "date", "horario", "status", "room_url", "started_at", "finished_at", "created_at", "updated_at"}).
		AddRow(id, "pat-1", "psy-1", nil, "2025-06-10", "10:00", string(status), nil, nil, nil, time.Now(), time.Now())
}

func TestAppointmentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appt := &models.Appointment{
		PatientID:      "pat-1",
		PsychologistID: "psy-1",
		Date:           "2025-06-10",
		Horario:        "10:00",
	}
	require.NoError(t, repo.Create(context.Background(), appt))
	require.NotEmpty(t, appt.ID)
	require.Equal(t, models.StatusAgendada, appt.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, psychologist_id")).
		WithArgs(appt.ID).
		WillReturnRows(appointmentRows(appt.ID, models.StatusAgendada))

	found, err := repo.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Equal(t, appt.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryTransitionGuard(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Transition(context.Background(), TransitionParams{
		ID:   "appt-1",
		From: []models.AppointmentStatus{models.StatusAgendada},
		To:   models.StatusCanceladaPacienteNoPrazo,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Transition(context.Background(), TransitionParams{
		ID:   "appt-1",
		From: []models.AppointmentStatus{models.StatusAgendada},
		To:   models.StatusCanceladaPacienteNoPrazo,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, psychologist_id")).
		WithArgs("pat-1", string(models.StatusAgendada)).
		WillReturnRows(appointmentRows("appt-1", models.StatusAgendada))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("pat-1", string(models.StatusAgendada)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	appts, total, err := repo.List(context.Background(), models.AppointmentFilter{
		PatientID: "pat-1",
		Status:    []models.AppointmentStatus{models.StatusAgendada},
	})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("Agendada", 12).
		AddRow("Realizada", 40)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*)")).WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12), counts["Agendada"])
	require.Equal(t, int64(40), counts["Realizada"])
	require.NoError(t, mock.ExpectationsWereMet())
}
