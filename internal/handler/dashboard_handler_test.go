package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/middleware"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *dto.DashboardSummary
	err     error
}

func (f *fakeDashboardSrv) Summary(context.Context, *models.JWTClaims) (*dto.DashboardSummary, error) {
	return f.summary, f.err
}

func TestDashboardHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		summary: &dto.DashboardSummary{
			AppointmentsToday:    4,
			PendingCancellations: 2,
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)

	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data dto.DashboardSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(4), envelope.Data.AppointmentsToday)
	assert.Equal(t, int64(2), envelope.Data.PendingCancellations)
}

func TestDashboardHandlerSummaryForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrForbidden})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "patient-1", Role: models.RolePaciente})
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
