package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/policy"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/repository"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/status"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type appointmentStore interface {
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
	ListUpcomingByPsychologist(ctx context.Context, psychologistID, fromDate string) ([]models.Appointment, error)
}

type agendaBookingStore interface {
	GetByID(ctx context.Context, id string) (*models.AgendaSlot, error)
	MarkBooked(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

type balanceStore interface {
	ApplyDelta(ctx context.Context, patientID string, delta int, reason string, refID *string) error
	HasRestoreForRef(ctx context.Context, refID string) (bool, error)
}

type userStateStore interface {
	SetBlocked(ctx context.Context, id string, blocked bool) error
	SetOnboardingStatus(ctx context.Context, id string, status models.OnboardingStatus) error
}

// AppointmentService orchestrates the Consulta lifecycle.
type AppointmentService struct {
	repo      appointmentStore
	agenda    agendaBookingStore
	balances  balanceStore
	users     userStateStore
	audit     auditWriter
	notifier  Notifier
	events    EventPublisher
	grace     *policy.GracePolicy
	tolerance time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService constructs the service.
func NewAppointmentService(
	repo appointmentStore,
	agenda agendaBookingStore,
	balances balanceStore,
	users userStateStore,
	audit auditWriter,
	notifier Notifier,
	events EventPublisher,
	grace *policy.GracePolicy,
	tolerance time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if tolerance <= 0 {
		tolerance = 10 * time.Minute
	}
	return &AppointmentService{
		repo:      repo,
		agenda:    agenda,
		balances:  balances,
		users:     users,
		audit:     audit,
		notifier:  notifier,
		events:    events,
		grace:     grace,
		tolerance: tolerance,
		validator: validate,
		logger:    logger,
	}
}

// Book reserves a free agenda slot for the patient, debiting one session
// credit. On a booking race the credit is returned.
func (s *AppointmentService) Book(ctx context.Context, req dto.BookAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePaciente {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only patients can book appointments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	slot, err := s.agenda.GetByID(ctx, req.AgendaSlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agenda slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda slot")
	}
	if slot.Booked {
		return nil, appErrors.ErrSlotTaken
	}

	refID := slot.ID
	if err := s.balances.ApplyDelta(ctx, actor.UserID, -1, models.BalanceReasonBooking, &refID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInsufficientCredit
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to debit session credit")
	}

	if err := s.agenda.MarkBooked(ctx, slot.ID); err != nil {
		if refundErr := s.balances.ApplyDelta(ctx, actor.UserID, 1, models.BalanceReasonRestore, &refID); refundErr != nil {
			s.logger.Error("failed to refund credit after booking race", zap.String("patient_id", actor.UserID), zap.Error(refundErr))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSlotTaken
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book agenda slot")
	}

	appt := &models.Appointment{
		PatientID:      actor.UserID,
		PsychologistID: slot.PsychologistID,
		AgendaSlotID:   &slot.ID,
		Date:           slot.Date,
		Horario:        slot.Horario,
		Status:         models.StatusAgendada,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionBooking,
		Resource:   "appointment",
		ResourceID: &appt.ID,
		NewValues:  []byte(fmt.Sprintf(`{"date":%q,"horario":%q}`, appt.Date, appt.Horario)),
	})
	s.notify(ctx, models.Notification{
		RecipientID: appt.PatientID,
		Template:    models.TemplateBookingConfirmed,
		Subject:     "Consulta agendada",
		Body:        fmt.Sprintf("Sua consulta foi agendada para %s às %s.", appt.Date, appt.Horario),
	})
	s.publishStatusChange(appt)

	return appt, nil
}

// Start moves the appointment into session. Only the owning psychologist
// may start it.
func (s *AppointmentService) Start(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	appt, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RolePsicologo || appt.PsychologistID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned psychologist can start the session")
	}
	now := time.Now().UTC()
	err = s.repo.Transition(ctx, repository.TransitionParams{
		ID:        appt.ID,
		From:      startableStatuses(),
		To:        models.StatusEmAndamento,
		StartedAt: &now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment is not open for starting")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start appointment")
	}
	appt.Status = models.StatusEmAndamento
	appt.StartedAt = &now
	s.publishStatusChange(appt)
	return appt, nil
}

// Complete marks a running session as held.
func (s *AppointmentService) Complete(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	appt, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RolePsicologo || appt.PsychologistID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned psychologist can complete the session")
	}
	now := time.Now().UTC()
	err = s.repo.Transition(ctx, repository.TransitionParams{
		ID:         appt.ID,
		From:       []models.AppointmentStatus{models.StatusEmAndamento},
		To:         models.StatusRealizada,
		FinishedAt: &now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment is not in session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete appointment")
	}
	appt.Status = models.StatusRealizada
	appt.FinishedAt = &now
	s.publishStatusChange(appt)
	return appt, nil
}

// MarkNoShow records an absence after the tolerance window. When the
// psychologist failed to show, the patient's credit is restored.
func (s *AppointmentService) MarkNoShow(ctx context.Context, id string, req dto.NoShowRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	appt, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid no-show payload")
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RolePsicologo:
		if appt.PsychologistID != actor.UserID || req.Absent != models.RolePaciente {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "psychologists can only report patient absences on their own sessions")
		}
	case models.RolePaciente:
		if appt.PatientID != actor.UserID || req.Absent != models.RolePsicologo {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "patients can only report psychologist absences on their own sessions")
		}
	default:
		return nil, appErrors.ErrForbidden
	}

	start, err := s.grace.StartTime(appt.Date, appt.Horario)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "appointment has an invalid schedule")
	}
	if time.Now().Before(start.Add(s.tolerance)) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tolerance window has not elapsed yet")
	}

	target := models.StatusPacienteNaoCompareceu
	if req.Absent == models.RolePsicologo {
		target = models.StatusPsicologoNaoCompareceu
	}
	err = s.repo.Transition(ctx, repository.TransitionParams{
		ID:   appt.ID,
		From: startableStatuses(),
		To:   target,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment is not open")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record no-show")
	}
	appt.Status = target

	if req.Absent == models.RolePsicologo {
		s.restoreCredit(ctx, appt, models.BalanceReasonRestore)
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionStatusTransition,
		Resource:   "appointment",
		ResourceID: &appt.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, target)),
	})
	s.publishStatusChange(appt)
	return appt, nil
}

// AdminCancel cancels one appointment on behalf of the platform. The
// patient's credit is always restored and the slot reopens.
func (s *AppointmentService) AdminCancel(ctx context.Context, id string, req dto.AdminCancelRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	err = s.repo.Transition(ctx, repository.TransitionParams{
		ID:   appt.ID,
		From: models.OpenStatuses(),
		To:   models.StatusCanceladoAdministrador,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment already resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel appointment")
	}
	appt.Status = models.StatusCanceladoAdministrador

	s.restoreCredit(ctx, appt, models.BalanceReasonAdminCancel)
	s.releaseSlot(ctx, appt)

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionAdminCancel,
		Resource:   "appointment",
		ResourceID: &appt.ID,
		NewValues:  []byte(fmt.Sprintf(`{"motivo":%q}`, req.Motivo)),
	})
	s.publishStatusChange(appt)
	return appt, nil
}

// Decredential blocks a psychologist and cancels every future session,
// restoring each patient's credit.
func (s *AppointmentService) Decredential(ctx context.Context, req dto.DecredentialRequest, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return 0, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decredential payload")
	}

	if err := s.users.SetBlocked(ctx, req.PsychologistID, true); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block psychologist")
	}
	if err := s.users.SetOnboardingStatus(ctx, req.PsychologistID, models.OnboardingRejected); err != nil {
		s.logger.Warn("failed to update onboarding status", zap.String("psychologist_id", req.PsychologistID), zap.Error(err))
	}

	today := time.Now().In(s.grace.Location()).Format("2006-01-02")
	upcoming, err := s.repo.ListUpcomingByPsychologist(ctx, req.PsychologistID, today)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming appointments")
	}

	cancelled := 0
	for i := range upcoming {
		appt := &upcoming[i]
		err := s.repo.Transition(ctx, repository.TransitionParams{
			ID:   appt.ID,
			From: models.OpenStatuses(),
			To:   models.StatusPsicologoDescredenciado,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			s.logger.Error("failed to cancel appointment during decredential sweep", zap.String("appointment_id", appt.ID), zap.Error(err))
			continue
		}
		appt.Status = models.StatusPsicologoDescredenciado
		cancelled++

		s.restoreCredit(ctx, appt, models.BalanceReasonDecredentials)
		s.releaseSlot(ctx, appt)
		s.publishStatusChange(appt)
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDecredential,
		Resource:   "user",
		ResourceID: &req.PsychologistID,
		NewValues:  []byte(fmt.Sprintf(`{"motivo":%q,"cancelled":%d}`, req.Motivo, cancelled)),
	})
	s.events.Publish(TopicUser(req.PsychologistID), EventUserBlocked, map[string]interface{}{
		"userId":  req.PsychologistID,
		"blocked": true,
	})
	s.events.Publish(TopicUser(req.PsychologistID), EventUserOnboardingUpdate, map[string]interface{}{
		"userId": req.PsychologistID,
		"status": string(models.OnboardingRejected),
	})

	return cancelled, nil
}

// Get returns a single appointment respecting actor scope.
func (s *AppointmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.AppointmentView, error) {
	appt, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.decorate(appt), nil
}

// List returns appointments for the actor with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, query dto.AppointmentQuery, actor *models.JWTClaims) ([]dto.AppointmentView, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.AppointmentFilter{
		Status:   query.Status,
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
		Page:     query.Offset/normalizePageSize(query.Limit) + 1,
		PageSize: query.Limit,
	}
	switch actor.Role {
	case models.RoleAdmin:
		filter.PatientID = query.PatientID
		filter.PsychologistID = query.PsychologistID
	case models.RolePaciente:
		filter.PatientID = actor.UserID
	case models.RolePsicologo:
		filter.PsychologistID = actor.UserID
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}

	views := make([]dto.AppointmentView, 0, len(appts))
	for i := range appts {
		views = append(views, *s.decorate(&appts[i]))
	}
	pagination := &models.Pagination{
		Page:       filter.Page,
		PageSize:   normalizePageSize(query.Limit),
		TotalCount: total,
	}
	return views, pagination, nil
}

func (s *AppointmentService) loadScoped(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RolePaciente:
		if appt.PatientID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	case models.RolePsicologo:
		if appt.PsychologistID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	return appt, nil
}

func (s *AppointmentService) decorate(appt *models.Appointment) *dto.AppointmentView {
	display := status.Normalize(string(appt.Status))
	return &dto.AppointmentView{
		Appointment: appt,
		StatusLabel: display.Label,
		StatusBadge: string(display.Badge),
	}
}

func (s *AppointmentService) restoreCredit(ctx context.Context, appt *models.Appointment, reason string) {
	if s.balances == nil {
		return
	}
	refID := appt.ID
	restored, err := s.balances.HasRestoreForRef(ctx, refID)
	if err != nil {
		s.logger.Warn("failed to check restore ledger", zap.String("appointment_id", appt.ID), zap.Error(err))
		return
	}
	if restored {
		return
	}
	if err := s.balances.ApplyDelta(ctx, appt.PatientID, 1, reason, &refID); err != nil {
		s.logger.Error("failed to restore session credit", zap.String("appointment_id", appt.ID), zap.Error(err))
	}
}

func (s *AppointmentService) releaseSlot(ctx context.Context, appt *models.Appointment) {
	if s.agenda == nil || appt.AgendaSlotID == nil {
		return
	}
	if err := s.agenda.Release(ctx, *appt.AgendaSlotID); err != nil {
		s.logger.Warn("failed to release agenda slot", zap.String("slot_id", *appt.AgendaSlotID), zap.Error(err))
	}
}

func (s *AppointmentService) publishStatusChange(appt *models.Appointment) {
	display := status.Normalize(string(appt.Status))
	payload := map[string]interface{}{
		"appointmentId": appt.ID,
		"status":        string(appt.Status),
		"statusLabel":   display.Label,
		"statusBadge":   string(display.Badge),
	}
	s.events.Publish(TopicUser(appt.PatientID), EventConsultationChanged, payload)
	s.events.Publish(TopicUser(appt.PsychologistID), EventConsultationChanged, payload)
	s.events.Publish(TopicAdmin, EventConsultationChanged, payload)
}

func (s *AppointmentService) notify(ctx context.Context, notification models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.logger.Warn("failed to dispatch notification", zap.String("template", notification.Template), zap.Error(err))
	}
}

func (s *AppointmentService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "appointment-service"
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func normalizePageSize(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// startableStatuses are the open states excluding a running session.
func startableStatuses() []models.AppointmentStatus {
	out := make([]models.AppointmentStatus, 0, 5)
	for _, st := range models.OpenStatuses() {
		if st != models.StatusEmAndamento {
			out = append(out, st)
		}
	}
	return out
}
