package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/policy"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type appointmentCounter interface {
	CountOnDate(ctx context.Context, date string) (int64, error)
	CountUpcoming(ctx context.Context, fromDate string) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type cancellationCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

type withdrawalCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

type userCounter interface {
	CountActiveByRole(ctx context.Context, role models.UserRole) (int64, error)
}

// DashboardService aggregates the counters on the admin home screen.
// Results are cached in Redis and invalidated by the write paths.
type DashboardService struct {
	appointments  appointmentCounter
	cancellations cancellationCounter
	withdrawals   withdrawalCounter
	users         userCounter
	cache         *CacheService
	grace         *policy.GracePolicy
	cacheTTL      time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewDashboardService constructs the service.
func NewDashboardService(
	appointments appointmentCounter,
	cancellations cancellationCounter,
	withdrawals withdrawalCounter,
	users userCounter,
	cache *CacheService,
	grace *policy.GracePolicy,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		appointments:  appointments,
		cancellations: cancellations,
		withdrawals:   withdrawals,
		users:         users,
		cache:         cache,
		grace:         grace,
		cacheTTL:      cacheTTL,
		now:           time.Now,
		logger:        logger,
	}
}

// Summary returns the aggregated counters, from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "dashboard is restricted to administrators")
	}

	var cached dto.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the cached summary. Called by write paths that change
// any counter so the next read rebuilds from the database.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*dto.DashboardSummary, error) {
	now := s.now().In(s.grace.Location())
	today := now.Format("2006-01-02")

	summary := &dto.DashboardSummary{
		GeneratedAt: now.Format(time.RFC3339),
	}

	var err error
	if summary.AppointmentsToday, err = s.appointments.CountOnDate(ctx, today); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's appointments")
	}
	if summary.AppointmentsUpcoming, err = s.appointments.CountUpcoming(ctx, today); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count upcoming appointments")
	}
	if summary.StatusBreakdown, err = s.appointments.CountByStatus(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate appointment statuses")
	}
	if summary.PendingCancellations, err = s.cancellations.CountPending(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending cancellation requests")
	}
	if summary.PendingWithdrawals, err = s.withdrawals.CountPending(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending withdrawals")
	}
	if summary.ActivePatients, err = s.users.CountActiveByRole(ctx, models.RolePaciente); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active patients")
	}
	if summary.ActivePsychologists, err = s.users.CountActiveByRole(ctx, models.RolePsicologo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active psychologists")
	}
	return summary, nil
}
