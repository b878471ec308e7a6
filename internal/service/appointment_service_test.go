package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/policy"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/repository"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type mockAppointmentRepo struct {
	appointments  map[string]*models.Appointment
	upcoming      []models.Appointment
	created       []*models.Appointment
	transitions   []repository.TransitionParams
	reschedules   int
	transitionErr error
}

func newMockAppointmentRepo(appts ...*models.Appointment) *mockAppointmentRepo {
	repo := &mockAppointmentRepo{appointments: make(map[string]*models.Appointment)}
	for _, appt := range appts {
		repo.appointments[appt.ID] = appt
	}
	return repo
}

func (m *mockAppointmentRepo) Create(_ context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = "appt-new"
	}
	m.created = append(m.created, appt)
	m.appointments[appt.ID] = appt
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	appt, ok := m.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *appt
	return &clone, nil
}

func (m *mockAppointmentRepo) List(_ context.Context, _ models.AppointmentFilter) ([]models.Appointment, int, error) {
	out := make([]models.Appointment, 0, len(m.appointments))
	for _, appt := range m.appointments {
		out = append(out, *appt)
	}
	return out, len(out), nil
}

func (m *mockAppointmentRepo) Transition(_ context.Context, params repository.TransitionParams) error {
	if m.transitionErr != nil {
		return m.transitionErr
	}
	appt, ok := m.appointments[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	allowed := false
	for _, from := range params.From {
		if appt.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return sql.ErrNoRows
	}
	appt.Status = params.To
	m.transitions = append(m.transitions, params)
	return nil
}

func (m *mockAppointmentRepo) Reschedule(_ context.Context, id, newDate, newHorario string, st models.AppointmentStatus) error {
	appt, ok := m.appointments[id]
	if !ok || appt.Status.Terminal() {
		return sql.ErrNoRows
	}
	appt.Date = newDate
	appt.Horario = newHorario
	appt.Status = st
	m.reschedules++
	return nil
}

func (m *mockAppointmentRepo) ListUpcomingByPsychologist(_ context.Context, _, _ string) ([]models.Appointment, error) {
	return m.upcoming, nil
}

type mockAgendaRepo struct {
	slots         map[string]*models.AgendaSlot
	markBookedErr error
	released      []string
}

func newMockAgendaRepo(slots ...*models.AgendaSlot) *mockAgendaRepo {
	repo := &mockAgendaRepo{slots: make(map[string]*models.AgendaSlot)}
	for _, slot := range slots {
		repo.slots[slot.ID] = slot
	}
	return repo
}

func (m *mockAgendaRepo) Create(_ context.Context, slot *models.AgendaSlot) error {
	if slot.ID == "" {
		slot.ID = "slot-new"
	}
	m.slots[slot.ID] = slot
	return nil
}

func (m *mockAgendaRepo) GetByID(_ context.Context, id string) (*models.AgendaSlot, error) {
	slot, ok := m.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *slot
	return &clone, nil
}

func (m *mockAgendaRepo) List(_ context.Context, _ models.AgendaFilter) ([]models.AgendaSlot, error) {
	out := make([]models.AgendaSlot, 0, len(m.slots))
	for _, slot := range m.slots {
		out = append(out, *slot)
	}
	return out, nil
}

func (m *mockAgendaRepo) MarkBooked(_ context.Context, id string) error {
	if m.markBookedErr != nil {
		return m.markBookedErr
	}
	slot, ok := m.slots[id]
	if !ok || slot.Booked {
		return sql.ErrNoRows
	}
	slot.Booked = true
	return nil
}

func (m *mockAgendaRepo) Release(_ context.Context, id string) error {
	m.released = append(m.released, id)
	if slot, ok := m.slots[id]; ok {
		slot.Booked = false
	}
	return nil
}

func (m *mockAgendaRepo) Delete(_ context.Context, id string) error {
	slot, ok := m.slots[id]
	if !ok || slot.Booked {
		return sql.ErrNoRows
	}
	delete(m.slots, id)
	return nil
}

type mockBalanceRepo struct {
	balances map[string]*models.PatientBalance
	deltas   []int
	reasons  []string
	restored map[string]bool
	debitErr error
}

func newMockBalanceRepo() *mockBalanceRepo {
	return &mockBalanceRepo{balances: make(map[string]*models.PatientBalance), restored: make(map[string]bool)}
}

func (m *mockBalanceRepo) Get(_ context.Context, patientID string) (*models.PatientBalance, error) {
	balance, ok := m.balances[patientID]
	if !ok {
		return &models.PatientBalance{PatientID: patientID}, nil
	}
	clone := *balance
	return &clone, nil
}

func (m *mockBalanceRepo) ApplyDelta(_ context.Context, _ string, delta int, reason string, refID *string) error {
	if delta < 0 && m.debitErr != nil {
		return m.debitErr
	}
	m.deltas = append(m.deltas, delta)
	m.reasons = append(m.reasons, reason)
	if delta > 0 && refID != nil {
		m.restored[*refID] = true
	}
	return nil
}

func (m *mockBalanceRepo) HasRestoreForRef(_ context.Context, refID string) (bool, error) {
	return m.restored[refID], nil
}

type mockUserStateRepo struct {
	blocked    map[string]bool
	onboarding map[string]models.OnboardingStatus
}

func newMockUserStateRepo() *mockUserStateRepo {
	return &mockUserStateRepo{blocked: make(map[string]bool), onboarding: make(map[string]models.OnboardingStatus)}
}

func (m *mockUserStateRepo) SetBlocked(_ context.Context, id string, blocked bool) error {
	m.blocked[id] = blocked
	return nil
}

func (m *mockUserStateRepo) SetOnboardingStatus(_ context.Context, id string, st models.OnboardingStatus) error {
	m.onboarding[id] = st
	return nil
}

type mockAuditRepo struct {
	logs []*models.AuditLog
}

func (m *mockAuditRepo) Create(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockNotifier struct {
	sent []models.Notification
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, notification models.Notification) error {
	m.sent = append(m.sent, notification)
	return m.err
}

type publishedEvent struct {
	topic   string
	event   string
	payload interface{}
}

type recordPublisher struct {
	events []publishedEvent
}

func (p *recordPublisher) Publish(topic, event string, payload interface{}) {
	p.events = append(p.events, publishedEvent{topic: topic, event: event, payload: payload})
}

func (p *recordPublisher) eventsFor(topic string) []publishedEvent {
	out := make([]publishedEvent, 0)
	for _, ev := range p.events {
		if ev.topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

func testGracePolicy(t *testing.T) *policy.GracePolicy {
	t.Helper()
	grace, err := policy.NewGracePolicy("America/Sao_Paulo", 24)
	require.NoError(t, err)
	return grace
}

func newTestAppointmentService(t *testing.T, repo *mockAppointmentRepo, agenda *mockAgendaRepo, balances *mockBalanceRepo) (*AppointmentService, *recordPublisher, *mockNotifier) {
	t.Helper()
	publisher := &recordPublisher{}
	notifier := &mockNotifier{}
	svc := NewAppointmentService(repo, agenda, balances, newMockUserStateRepo(), &mockAuditRepo{}, notifier, publisher, testGracePolicy(t), 10*time.Minute, nil, zap.NewNop())
	return svc, publisher, notifier
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func TestAppointmentServiceBookDebitsCreditAndClaimsSlot(t *testing.T) {
	agenda := newMockAgendaRepo(&models.AgendaSlot{ID: "slot-1", PsychologistID: "psy-1", Date: futureDate(7), Horario: "14:00"})
	balances := newMockBalanceRepo()
	repo := newMockAppointmentRepo()
	svc, publisher, notifier := newTestAppointmentService(t, repo, agenda, balances)

	actor := &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente}
	appt, err := svc.Book(context.Background(), dto.BookAppointmentRequest{AgendaSlotID: "slot-1"}, actor)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAgendada, appt.Status)
	assert.Equal(t, "pat-1", appt.PatientID)
	assert.Equal(t, "psy-1", appt.PsychologistID)
	assert.True(t, agenda.slots["slot-1"].Booked)
	require.Len(t, balances.deltas, 1)
	assert.Equal(t, -1, balances.deltas[0])
	assert.Equal(t, models.BalanceReasonBooking, balances.reasons[0])
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.TemplateBookingConfirmed, notifier.sent[0].Template)
	assert.NotEmpty(t, publisher.eventsFor(TopicUser("pat-1")))
}

func TestAppointmentServiceBookRejectsNonPatients(t *testing.T) {
	svc, _, _ := newTestAppointmentService(t, newMockAppointmentRepo(), newMockAgendaRepo(), newMockBalanceRepo())

	_, err := svc.Book(context.Background(), dto.BookAppointmentRequest{AgendaSlotID: "slot-1"}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAppointmentServiceBookInsufficientCredit(t *testing.T) {
	agenda := newMockAgendaRepo(&models.AgendaSlot{ID: "slot-1", PsychologistID: "psy-1", Date: futureDate(7), Horario: "14:00"})
	balances := newMockBalanceRepo()
	balances.debitErr = sql.ErrNoRows
	svc, _, _ := newTestAppointmentService(t, newMockAppointmentRepo(), agenda, balances)

	_, err := svc.Book(context.Background(), dto.BookAppointmentRequest{AgendaSlotID: "slot-1"}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.ErrorIs(t, err, appErrors.ErrInsufficientCredit)
	assert.False(t, agenda.slots["slot-1"].Booked)
}

func TestAppointmentServiceBookRaceRefundsCredit(t *testing.T) {
	agenda := newMockAgendaRepo(&models.AgendaSlot{ID: "slot-1", PsychologistID: "psy-1", Date: futureDate(7), Horario: "14:00"})
	agenda.markBookedErr = sql.ErrNoRows
	balances := newMockBalanceRepo()
	svc, _, _ := newTestAppointmentService(t, newMockAppointmentRepo(), agenda, balances)

	_, err := svc.Book(context.Background(), dto.BookAppointmentRequest{AgendaSlotID: "slot-1"}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.ErrorIs(t, err, appErrors.ErrSlotTaken)
	require.Len(t, balances.deltas, 2)
	assert.Equal(t, -1, balances.deltas[0])
	assert.Equal(t, 1, balances.deltas[1])
}

func TestAppointmentServiceStartOnlyByOwningPsychologist(t *testing.T) {
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Date: futureDate(1), Horario: "10:00", Status: models.StatusAgendada})
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), newMockBalanceRepo())

	_, err := svc.Start(context.Background(), "appt-1", &models.JWTClaims{UserID: "psy-2", Role: models.RolePsicologo})
	require.Error(t, err)

	appt, err := svc.Start(context.Background(), "appt-1", &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmAndamento, appt.Status)
	require.NotNil(t, appt.StartedAt)
}

func TestAppointmentServiceStartRescheduledSession(t *testing.T) {
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Date: futureDate(1), Horario: "10:00", Status: models.StatusReagendadaPacienteNoPrazo})
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), newMockBalanceRepo())

	appt, err := svc.Start(context.Background(), "appt-1", &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmAndamento, appt.Status)
}

func TestAppointmentServiceCompleteRequiresRunningSession(t *testing.T) {
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Status: models.StatusAgendada})
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), newMockBalanceRepo())
	actor := &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo}

	_, err := svc.Complete(context.Background(), "appt-1", actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	repo.appointments["appt-1"].Status = models.StatusEmAndamento
	appt, err := svc.Complete(context.Background(), "appt-1", actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRealizada, appt.Status)
	require.NotNil(t, appt.FinishedAt)
}

func TestAppointmentServiceNoShowBeforeToleranceRejected(t *testing.T) {
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Date: futureDate(1), Horario: "10:00", Status: models.StatusAgendada})
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), newMockBalanceRepo())

	_, err := svc.MarkNoShow(context.Background(), "appt-1", dto.NoShowRequest{Absent: models.RolePaciente}, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAppointmentServiceNoShowByPsychologistRestoresCredit(t *testing.T) {
	slotID := "slot-1"
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", AgendaSlotID: &slotID, Date: futureDate(-1), Horario: "10:00", Status: models.StatusAgendada})
	balances := newMockBalanceRepo()
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), balances)

	appt, err := svc.MarkNoShow(context.Background(), "appt-1", dto.NoShowRequest{Absent: models.RolePsicologo}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPsicologoNaoCompareceu, appt.Status)
	require.Len(t, balances.deltas, 1)
	assert.Equal(t, 1, balances.deltas[0])
}

func TestAppointmentServiceAdminCancelRestoresCreditAndReleasesSlot(t *testing.T) {
	slotID := "slot-1"
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", AgendaSlotID: &slotID, Date: futureDate(3), Horario: "10:00", Status: models.StatusAgendada})
	agenda := newMockAgendaRepo(&models.AgendaSlot{ID: slotID, PsychologistID: "psy-1", Booked: true})
	balances := newMockBalanceRepo()
	svc, publisher, _ := newTestAppointmentService(t, repo, agenda, balances)

	appt, err := svc.AdminCancel(context.Background(), "appt-1", dto.AdminCancelRequest{Motivo: "plataforma"}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceladoAdministrador, appt.Status)
	assert.Equal(t, []string{slotID}, agenda.released)
	require.Len(t, balances.deltas, 1)
	assert.Equal(t, models.BalanceReasonAdminCancel, balances.reasons[0])
	assert.NotEmpty(t, publisher.eventsFor(TopicAdmin))
}

func TestAppointmentServiceAdminCancelIdempotentCredit(t *testing.T) {
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Status: models.StatusAgendada})
	balances := newMockBalanceRepo()
	balances.restored["appt-1"] = true
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), balances)

	_, err := svc.AdminCancel(context.Background(), "appt-1", dto.AdminCancelRequest{Motivo: "plataforma"}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, balances.deltas)
}

func TestAppointmentServiceDecredentialSweepsOpenSessions(t *testing.T) {
	repo := newMockAppointmentRepo(
		&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Date: futureDate(2), Horario: "09:00", Status: models.StatusAgendada},
		&models.Appointment{ID: "appt-2", PatientID: "pat-2", PsychologistID: "psy-1", Date: futureDate(3), Horario: "11:00", Status: models.StatusReagendadaPsicologoNoPrazo},
		&models.Appointment{ID: "appt-3", PatientID: "pat-3", PsychologistID: "psy-1", Date: futureDate(4), Horario: "15:00", Status: models.StatusRealizada},
	)
	repo.upcoming = []models.Appointment{*repo.appointments["appt-1"], *repo.appointments["appt-2"], *repo.appointments["appt-3"]}
	balances := newMockBalanceRepo()
	publisher := &recordPublisher{}
	users := newMockUserStateRepo()
	svc := NewAppointmentService(repo, newMockAgendaRepo(), balances, users, &mockAuditRepo{}, &mockNotifier{}, publisher, testGracePolicy(t), 10*time.Minute, nil, zap.NewNop())

	cancelled, err := svc.Decredential(context.Background(), dto.DecredentialRequest{PsychologistID: "psy-1", Motivo: "descredenciado"}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled)
	assert.True(t, users.blocked["psy-1"])
	assert.Equal(t, models.OnboardingRejected, users.onboarding["psy-1"])
	assert.Equal(t, models.StatusPsicologoDescredenciado, repo.appointments["appt-1"].Status)
	assert.Equal(t, models.StatusPsicologoDescredenciado, repo.appointments["appt-2"].Status)
	assert.Equal(t, models.StatusRealizada, repo.appointments["appt-3"].Status)
	assert.Len(t, balances.deltas, 2)

	var blocked, onboarding bool
	for _, ev := range publisher.eventsFor(TopicUser("psy-1")) {
		switch ev.event {
		case EventUserBlocked:
			blocked = true
		case EventUserOnboardingUpdate:
			onboarding = true
		}
	}
	assert.True(t, blocked)
	assert.True(t, onboarding)
}

func TestAppointmentServiceGetScopedToParticipants(t *testing.T) {
	repo := newMockAppointmentRepo(&models.Appointment{ID: "appt-1", PatientID: "pat-1", PsychologistID: "psy-1", Status: models.StatusAgendada})
	svc, _, _ := newTestAppointmentService(t, repo, newMockAgendaRepo(), newMockBalanceRepo())

	_, err := svc.Get(context.Background(), "appt-1", &models.JWTClaims{UserID: "pat-2", Role: models.RolePaciente})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	view, err := svc.Get(context.Background(), "appt-1", &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.NoError(t, err)
	assert.Equal(t, "Agendada", view.StatusLabel)
}

func TestAppointmentServiceGetNotFound(t *testing.T) {
	svc, _, _ := newTestAppointmentService(t, newMockAppointmentRepo(), newMockAgendaRepo(), newMockBalanceRepo())

	_, err := svc.Get(context.Background(), "missing", &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
