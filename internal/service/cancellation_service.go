package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

type cancellationStore interface {
	Create(ctx context.Context, req *models.CancellationRequest) error
	GetByID(ctx context.Context, id string) (*models.CancellationRequest, error)
	List(ctx context.Context, filter models.CancellationFilter) ([]models.CancellationRequest, error)
	Review(ctx context.Context, params repository.ReviewParams) error
	HasOpenForAppointment(ctx context.Context, appointmentID string) (bool, error)
}

type cancellationAppointmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
	Reschedule(ctx context.Context, id, newDate, newHorario string, status models.AppointmentStatus) error
}

type planReader interface {
	Get(ctx context.Context, patientID string) (*models.PatientBalance, error)
	ApplyDelta(ctx context.Context, patientID string, delta int, reason string, refID *string) error
	HasRestoreForRef(ctx context.Context, refID string) (bool, error)
}

// CancellationService runs the cancellation and reschedule workflow: the
// grace check at intake, the protocol assignment, the immediate transition
// for in-window requests and the admin review queue for the rest.
type CancellationService struct {
	repo         cancellationStore
	appointments cancellationAppointmentStore
	agenda       agendaBookingStore
	balances     planReader
	audit        auditWriter
	notifier     Notifier
	events       EventPublisher
	grace        *policy.GracePolicy
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewCancellationService constructs the service.
func NewCancellationService(
	repo cancellationStore,
	appointments cancellationAppointmentStore,
	agenda agendaBookingStore,
	balances planReader,
	audit auditWriter,
	notifier Notifier,
	events EventPublisher,
	grace *policy.GracePolicy,
	validate *validator.Validate,
	logger *zap.Logger,
) *CancellationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &CancellationService{
		repo:         repo,
		appointments: appointments,
		agenda:       agenda,
		balances:     balances,
		audit:        audit,
		notifier:     notifier,
		events:       events,
		grace:        grace,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a cancellation or reschedule request. Requests inside the
// grace window resolve immediately; out-of-window requests must carry a
// justification and land in the admin review queue.
func (s *CancellationService) Create(ctx context.Context, req dto.CreateCancellationRequest, actor *models.JWTClaims) (*dto.CancellationResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePaciente && actor.Role != models.RolePsicologo {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only patients and psychologists can open requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if req.Type != models.RequestTypeCancelamento && req.Type != models.RequestTypeReagendamento {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be CANCELAMENTO or REAGENDAMENTO")
	}
	if req.Type == models.RequestTypeReagendamento && (req.NewDate == "" || req.NewHorario == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "newDate and newHorario are required for reschedules")
	}

	appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	switch actor.Role {
	case models.RolePaciente:
		if appt.PatientID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	case models.RolePsicologo:
		if appt.PsychologistID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	}
	if appt.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment already resolved")
	}

	open, err := s.repo.HasOpenForAppointment(ctx, appt.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open requests")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment already has a request under review")
	}

	now := s.now()
	within := s.grace.WithinGracePeriod(appt.Date, appt.Horario, now)
	if !within && strings.TrimSpace(req.Motivo) == "" && !req.ForcaMaior {
		return nil, appErrors.ErrReasonRequired
	}

	protocol, err := newProtocol("CR", now.In(s.grace.Location()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign protocol")
	}

	request := &models.CancellationRequest{
		Protocol:       protocol,
		AppointmentID:  appt.ID,
		RequestedBy:    actor.UserID,
		RequesterRole:  actor.Role,
		Type:           req.Type,
		Motivo:         strings.TrimSpace(req.Motivo),
		ForcaMaior:     req.ForcaMaior,
		DocumentID:     optionalString(req.DocumentID),
		WithinDeadline: within,
		NewDate:        optionalString(req.NewDate),
		NewHorario:     optionalString(req.NewHorario),
		Status:         models.ReviewEmAnalise,
	}

	result := &dto.CancellationResult{Request: request}
	if within {
		// In-window requests resolve on the spot: the appointment moves
		// and the request is recorded already deferred.
		target := resolvedStatus(req.Type, actor.Role, true, req.ForcaMaior)
		if err := s.applyToAppointment(ctx, appt, request, target); err != nil {
			return nil, err
		}
		decidedAt := now
		request.Status = models.ReviewDeferido
		request.ReviewedAt = &decidedAt
		result.Resolved = true
		result.Appointment = appt
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCancellationCreate,
		Resource:   "cancellation_request",
		ResourceID: &request.ID,
		NewValues:  []byte(fmt.Sprintf(`{"protocol":%q,"type":%q,"withinDeadline":%t}`, protocol, req.Type, within)),
	})
	s.notify(ctx, models.Notification{
		RecipientID: actor.UserID,
		Template:    models.TemplateCancellationCreated,
		Subject:     "Solicitação registrada",
		Body:        fmt.Sprintf("Sua solicitação foi registrada sob o protocolo %s.", protocol),
	})
	if !within {
		s.events.Publish(TopicAdmin, EventCancellationReviewed, map[string]interface{}{
			"requestId": request.ID,
			"protocol":  protocol,
			"status":    string(models.ReviewEmAnalise),
		})
	}

	return result, nil
}

// Review applies the admin decision on an out-of-window request. Approving
// moves the appointment, releases the slot and restores the credit when the
// patient's plan allows it. A second decision returns a conflict.
func (s *CancellationService) Review(ctx context.Context, id string, req dto.ReviewCancellationRequest, actor *models.JWTClaims) (*models.CancellationRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.ReviewDeferido && req.Status != models.ReviewIndeferido {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be DEFERIDO or INDEFERIDO")
	}

	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.Status.Resolved() {
		return nil, appErrors.ErrAlreadyReviewed
	}

	appt, err := s.appointments.GetByID(ctx, request.AppointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	if req.Status == models.ReviewDeferido {
		target := resolvedStatus(request.Type, request.RequesterRole, request.WithinDeadline, request.ForcaMaior)
		if err := s.applyToAppointment(ctx, appt, request, target); err != nil {
			return nil, err
		}
	}

	now := s.now()
	err = s.repo.Review(ctx, repository.ReviewParams{
		ID:         request.ID,
		Status:     req.Status,
		ReviewedBy: actor.UserID,
		ReviewedAt: now,
		Note:       optionalString(req.Note),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyReviewed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	request.Status = req.Status
	request.ReviewedBy = &actor.UserID
	request.ReviewedAt = &now
	request.ReviewNote = optionalString(req.Note)

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCancellationReview,
		Resource:   "cancellation_request",
		ResourceID: &request.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, req.Status)),
	})

	template := models.TemplateCancellationApproved
	subject := "Solicitação deferida"
	if req.Status == models.ReviewIndeferido {
		template = models.TemplateCancellationRejected
		subject = "Solicitação indeferida"
	}
	// Both sides of the appointment hear the outcome, not just the requester.
	body := fmt.Sprintf("O protocolo %s foi %s.", request.Protocol, strings.ToLower(string(req.Status)))
	for _, recipient := range []string{appt.PatientID, appt.PsychologistID} {
		s.notify(ctx, models.Notification{
			RecipientID: recipient,
			Template:    template,
			Subject:     subject,
			Body:        body,
		})
	}

	payload := map[string]interface{}{
		"requestId": request.ID,
		"protocol":  request.Protocol,
		"status":    string(req.Status),
	}
	s.events.Publish(TopicUser(request.RequestedBy), EventCancellationReviewed, payload)
	s.events.Publish(TopicAdmin, EventCancellationReviewed, payload)

	return request, nil
}

// Get returns one request respecting actor scope.
func (s *CancellationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.CancellationRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if actor.Role != models.RoleAdmin && request.RequestedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns requests for the actor. Admins see the full queue.
func (s *CancellationService) List(ctx context.Context, query dto.CancellationQuery, actor *models.JWTClaims) ([]models.CancellationRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.CancellationFilter{
		Status: query.Status,
		Type:   query.Type,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if actor.Role != models.RoleAdmin {
		filter.RequestedBy = actor.UserID
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// applyToAppointment moves the appointment to its resolved status,
// releasing the slot and restoring the credit when the plan allows it.
func (s *CancellationService) applyToAppointment(ctx context.Context, appt *models.Appointment, request *models.CancellationRequest, target models.AppointmentStatus) error {
	var err error
	if request.Type == models.RequestTypeReagendamento && request.NewDate != nil && request.NewHorario != nil {
		err = s.appointments.Reschedule(ctx, appt.ID, *request.NewDate, *request.NewHorario, target)
		if err == nil {
			appt.Date = *request.NewDate
			appt.Horario = *request.NewHorario
		}
	} else {
		err = s.appointments.Transition(ctx, repository.TransitionParams{
			ID:   appt.ID,
			From: models.OpenStatuses(),
			To:   target,
		})
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "appointment already resolved")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	appt.Status = target

	if request.Type == models.RequestTypeCancelamento {
		s.releaseSlot(ctx, appt)
		s.restoreIfPlanAllows(ctx, appt, request)
	}
	s.publishStatusChange(appt)
	return nil
}

// restoreIfPlanAllows credits the patient back one session when the
// request was in-window, force majeure, or the plan restores on approval.
// The ledger ref check keeps retries from crediting twice.
func (s *CancellationService) restoreIfPlanAllows(ctx context.Context, appt *models.Appointment, request *models.CancellationRequest) {
	if s.balances == nil {
		return
	}
	eligible := request.WithinDeadline || request.ForcaMaior
	if !eligible {
		balance, err := s.balances.Get(ctx, appt.PatientID)
		if err != nil {
			s.logger.Warn("failed to load patient balance", zap.String("patient_id", appt.PatientID), zap.Error(err))
			return
		}
		eligible = balance.PlanRestores
	}
	if !eligible {
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
	if err := s.balances.ApplyDelta(ctx, appt.PatientID, 1, models.BalanceReasonRestore, &refID); err != nil {
		s.logger.Error("failed to restore session credit", zap.String("appointment_id", appt.ID), zap.Error(err))
	}
}

func (s *CancellationService) releaseSlot(ctx context.Context, appt *models.Appointment) {
	if s.agenda == nil || appt.AgendaSlotID == nil {
		return
	}
	if err := s.agenda.Release(ctx, *appt.AgendaSlotID); err != nil {
		s.logger.Warn("failed to release agenda slot", zap.String("slot_id", *appt.AgendaSlotID), zap.Error(err))
	}
}

func (s *CancellationService) publishStatusChange(appt *models.Appointment) {
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

func (s *CancellationService) notify(ctx context.Context, notification models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.logger.Warn("failed to dispatch notification", zap.String("template", notification.Template), zap.Error(err))
	}
}

func (s *CancellationService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "cancellation-service"
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// resolvedStatus maps request type, requester role and window outcome to
// the appointment status vocabulary.
func resolvedStatus(reqType models.RequestType, role models.UserRole, within, forcaMaior bool) models.AppointmentStatus {
	if forcaMaior && reqType == models.RequestTypeCancelamento {
		return models.StatusCanceladaForcaMaior
	}
	switch {
	case reqType == models.RequestTypeCancelamento && role == models.RolePaciente && within:
		return models.StatusCanceladaPacienteNoPrazo
	case reqType == models.RequestTypeCancelamento && role == models.RolePaciente:
		return models.StatusCanceladaPacienteForaPrazo
	case reqType == models.RequestTypeCancelamento && within:
		return models.StatusCanceladaPsicologoNoPrazo
	case reqType == models.RequestTypeCancelamento:
		return models.StatusCanceladaPsicologoForaPrazo
	case role == models.RolePaciente && within:
		return models.StatusReagendadaPacienteNoPrazo
	case role == models.RolePaciente:
		return models.StatusReagendadaPacienteForaPrazo
	case within:
		return models.StatusReagendadaPsicologoNoPrazo
	default:
		return models.StatusReagendadaPsicologoForaPrazo
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
