package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/policy"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type agendaStore interface {
	Create(ctx context.Context, slot *models.AgendaSlot) error
	GetByID(ctx context.Context, id string) (*models.AgendaSlot, error)
	List(ctx context.Context, filter models.AgendaFilter) ([]models.AgendaSlot, error)
	Delete(ctx context.Context, id string) error
}

var horarioPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// AgendaService manages the psychologist's bookable slots.
type AgendaService struct {
	repo      agendaStore
	grace     *policy.GracePolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAgendaService constructs the service.
func NewAgendaService(repo agendaStore, grace *policy.GracePolicy, validate *validator.Validate, logger *zap.Logger) *AgendaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AgendaService{repo: repo, grace: grace, validator: validate, logger: logger}
}

// Create opens a new slot on the actor's agenda. Slots must lie in the
// future and carry a zero-padded 24-hour horario.
func (s *AgendaService) Create(ctx context.Context, req dto.CreateAgendaSlotRequest, actor *models.JWTClaims) (*models.AgendaSlot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePsicologo {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only psychologists manage agenda slots")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if !horarioPattern.MatchString(req.Horario) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "horario must be zero-padded HH:mm")
	}
	start, err := s.grace.StartTime(req.Date, req.Horario)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if !start.After(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot must be in the future")
	}

	slot := &models.AgendaSlot{
		PsychologistID: actor.UserID,
		Date:           req.Date,
		Horario:        req.Horario,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "slot already exists for this time")
	}
	return slot, nil
}

// List returns slots matching the query. Patients only see free slots.
func (s *AgendaService) List(ctx context.Context, query dto.AgendaQuery, actor *models.JWTClaims) ([]models.AgendaSlot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.AgendaFilter{
		PsychologistID: query.PsychologistID,
		DateFrom:       query.DateFrom,
		DateTo:         query.DateTo,
		OnlyFree:       query.OnlyFree,
	}
	if actor.Role == models.RolePaciente {
		filter.OnlyFree = true
	}
	if actor.Role == models.RolePsicologo {
		filter.PsychologistID = actor.UserID
	}
	slots, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list agenda slots")
	}
	return slots, nil
}

// Delete removes one of the actor's own unbooked slots.
func (s *AgendaService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda slot")
	}
	if actor.Role != models.RoleAdmin && slot.PsychologistID != actor.UserID {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "booked slots cannot be removed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete agenda slot")
	}
	return nil
}
