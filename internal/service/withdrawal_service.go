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
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/repository"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type withdrawalStore interface {
	Create(ctx context.Context, w *models.Withdrawal) error
	GetByID(ctx context.Context, id string) (*models.Withdrawal, error)
	List(ctx context.Context, filter models.WithdrawalFilter) ([]models.Withdrawal, error)
	Review(ctx context.Context, params repository.ReviewWithdrawalParams) error
	SumOpenByPsychologist(ctx context.Context, psychologistID string) (int64, error)
}

// WithdrawalService runs the psychologist payout workflow.
type WithdrawalService struct {
	repo           withdrawalStore
	audit          auditWriter
	notifier       Notifier
	events         EventPublisher
	minAmountCents int64
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewWithdrawalService constructs the service.
func NewWithdrawalService(repo withdrawalStore, audit auditWriter, notifier Notifier, events EventPublisher, minAmountCents int64, validate *validator.Validate, logger *zap.Logger) *WithdrawalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if minAmountCents <= 0 {
		minAmountCents = 5000
	}
	return &WithdrawalService{
		repo:           repo,
		audit:          audit,
		notifier:       notifier,
		events:         events,
		minAmountCents: minAmountCents,
		validator:      validate,
		logger:         logger,
	}
}

// Create opens a payout request for the acting psychologist.
func (s *WithdrawalService) Create(ctx context.Context, req dto.CreateWithdrawalRequest, actor *models.JWTClaims) (*models.Withdrawal, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePsicologo {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only psychologists can request withdrawals")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}
	if req.AmountCents < s.minAmountCents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("amount must be at least %d cents", s.minAmountCents))
	}

	protocol, err := newProtocol("WD", time.Now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign protocol")
	}

	w := &models.Withdrawal{
		Protocol:       protocol,
		PsychologistID: actor.UserID,
		AmountCents:    req.AmountCents,
		PixKey:         req.PixKey,
		NotaFiscalID:   optionalString(req.NotaFiscalID),
		Status:         models.WithdrawalEmAnalise,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create withdrawal")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionWithdrawalCreate,
		Resource:   "withdrawal",
		ResourceID: &w.ID,
		NewValues:  []byte(fmt.Sprintf(`{"protocol":%q,"amountCents":%d}`, protocol, req.AmountCents)),
	})
	return w, nil
}

// Review applies the admin decision. A second decision on the same request
// reports a conflict.
func (s *WithdrawalService) Review(ctx context.Context, id string, req dto.ReviewWithdrawalRequest, actor *models.JWTClaims) (*models.Withdrawal, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.WithdrawalPago && req.Status != models.WithdrawalRecusado {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PAGO or RECUSADO")
	}

	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load withdrawal")
	}
	if w.Status.Resolved() {
		return nil, appErrors.ErrAlreadyReviewed
	}

	now := time.Now().UTC()
	err = s.repo.Review(ctx, repository.ReviewWithdrawalParams{
		ID:         w.ID,
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
	w.Status = req.Status
	w.ReviewedBy = &actor.UserID
	w.ReviewedAt = &now
	w.ReviewNote = optionalString(req.Note)

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionWithdrawalReview,
		Resource:   "withdrawal",
		ResourceID: &w.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, req.Status)),
	})
	if s.notifier != nil {
		subject := "Saque aprovado"
		if req.Status == models.WithdrawalRecusado {
			subject = "Saque recusado"
		}
		if err := s.notifier.Notify(ctx, models.Notification{
			RecipientID: w.PsychologistID,
			Template:    models.TemplateWithdrawalReviewed,
			Subject:     subject,
			Body:        fmt.Sprintf("O saque %s foi revisado: %s.", w.Protocol, req.Status),
		}); err != nil {
			s.logger.Warn("failed to dispatch withdrawal notification", zap.Error(err))
		}
	}
	s.events.Publish(TopicUser(w.PsychologistID), EventUserStatusUpdate, map[string]interface{}{
		"withdrawalId": w.ID,
		"protocol":     w.Protocol,
		"status":       string(req.Status),
	})

	return w, nil
}

// Get returns one request respecting actor scope.
func (s *WithdrawalService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Withdrawal, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load withdrawal")
	}
	if actor.Role != models.RoleAdmin && w.PsychologistID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return w, nil
}

// List returns payout requests for the actor. Admins see every request.
func (s *WithdrawalService) List(ctx context.Context, query dto.WithdrawalQuery, actor *models.JWTClaims) ([]models.Withdrawal, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.WithdrawalFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if actor.Role == models.RoleAdmin {
		filter.PsychologistID = query.PsychologistID
	} else {
		filter.PsychologistID = actor.UserID
	}
	withdrawals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list withdrawals")
	}
	return withdrawals, nil
}

func (s *WithdrawalService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "withdrawal-service"
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
