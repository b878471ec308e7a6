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

func newCancellationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func cancellationRows(id, protocol string, status models.ReviewStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "protocol", "appointment_id", "requested_by", "requester_role", "type", "motivo", "forca_maior", "document_id", "within_deadline", "new_date", "new_horario", "status", "reviewed_by", "reviewed_at", "review_note", "created_at", "updated_at"}).
		AddRow(id, protocol, "appt-1", "pat-1", "PACIENTE", "CANCELAMENTO", "imprevisto", false, nil, true, nil, nil, string(status), nil, nil, nil, time.Now(), time.Now())
}

func TestCancellationRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cancellation_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.CancellationRequest{
		Protocol:      "CR-20250609-ABC234",
		AppointmentID: "appt-1",
		RequestedBy:   "pat-1",
		RequesterRole: models.RolePaciente,
		Type:          models.RequestTypeCancelamento,
		Motivo:        "imprevisto",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.ReviewEmAnalise, req.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, protocol, appointment_id")).
		WithArgs(req.Protocol).
		WillReturnRows(cancellationRows(req.ID, req.Protocol, models.ReviewEmAnalise))

	found, err := repo.GetByProtocol(context.Background(), req.Protocol)
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationRepositoryReviewGuard(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	note := "deferido conforme plano"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cancellation_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Review(context.Background(), ReviewParams{
		ID:         "req-1",
		Status:     models.ReviewDeferido,
		ReviewedBy: "admin-1",
		ReviewedAt: time.Now(),
		Note:       &note,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cancellation_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Review(context.Background(), ReviewParams{
		ID:         "req-1",
		Status:     models.ReviewIndeferido,
		ReviewedBy: "admin-1",
		ReviewedAt: time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, protocol, appointment_id")).
		WithArgs("EM_ANALISE", "REAGENDAMENTO").
		WillReturnRows(cancellationRows("req-1", "CR-20250609-XYZ567", models.ReviewEmAnalise))

	list, err := repo.List(context.Background(), models.CancellationFilter{
		Status: []models.ReviewStatus{models.ReviewEmAnalise},
		Type:   models.RequestTypeReagendamento,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationRepositoryHasOpenForAppointment(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("appt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	open, err := repo.HasOpenForAppointment(context.Background(), "appt-1")
	require.NoError(t, err)
	require.True(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}
