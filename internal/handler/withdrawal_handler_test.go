package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/middleware"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type fakeWithdrawalSrv struct {
	createResult *models.Withdrawal
	createErr    error
	lastCreate   dto.CreateWithdrawalRequest
	reviewResult *models.Withdrawal
	reviewErr    error
	listResult   []models.Withdrawal
	lastQuery    dto.WithdrawalQuery
}

func (f *fakeWithdrawalSrv) Create(_ context.Context, req dto.CreateWithdrawalRequest, _ *models.JWTClaims) (*models.Withdrawal, error) {
	f.lastCreate = req
	return f.createResult, f.createErr
}

func (f *fakeWithdrawalSrv) Review(_ context.Context, _ string, _ dto.ReviewWithdrawalRequest, _ *models.JWTClaims) (*models.Withdrawal, error) {
	return f.reviewResult, f.reviewErr
}

func (f *fakeWithdrawalSrv) Get(_ context.Context, _ string, _ *models.JWTClaims) (*models.Withdrawal, error) {
	return f.reviewResult, f.reviewErr
}

func (f *fakeWithdrawalSrv) List(_ context.Context, query dto.WithdrawalQuery, _ *models.JWTClaims) ([]models.Withdrawal, error) {
	f.lastQuery = query
	return f.listResult, nil
}

func TestWithdrawalHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeWithdrawalSrv{
		createResult: &models.Withdrawal{ID: "wd-1", Protocol: "WD-20260901-ABC123"},
	}
	handler := NewWithdrawalHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "psy-1", Role: models.RolePsicologo})
	body := `{"amountCents":15000,"pixKey":"psy@example.com"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/withdrawals", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(15000), srv.lastCreate.AmountCents)
	assert.Equal(t, "psy@example.com", srv.lastCreate.PixKey)
}

func TestWithdrawalHandlerReviewForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWithdrawalHandler(&fakeWithdrawalSrv{reviewErr: appErrors.ErrForbidden})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "wd-1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/withdrawals/wd-1/review", strings.NewReader(`{"status":"PAGO"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Review(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithdrawalHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeWithdrawalSrv{}
	handler := NewWithdrawalHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Request = httptest.NewRequest(http.MethodGet, "/withdrawals?status=EM_ANALISE&psychologistId=psy-1&limit=5", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "psy-1", srv.lastQuery.PsychologistID)
	assert.Equal(t, []models.WithdrawalStatus{models.WithdrawalEmAnalise}, srv.lastQuery.Status)
	assert.Equal(t, 5, srv.lastQuery.Limit)
}
