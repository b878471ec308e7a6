package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/middleware"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
)

type fakeCancellationSrv struct {
	createResult *dto.CancellationResult
	createErr    error
	lastCreate   dto.CreateCancellationRequest
	reviewResult *models.CancellationRequest
	reviewErr    error
	lastReviewID string
	listResult   []models.CancellationRequest
	lastQuery    dto.CancellationQuery
}

func (f *fakeCancellationSrv) Create(_ context.Context, req dto.CreateCancellationRequest, _ *models.JWTClaims) (*dto.CancellationResult, error) {
	f.lastCreate = req
	return f.createResult, f.createErr
}

func (f *fakeCancellationSrv) Review(_ context.Context, id string, _ dto.ReviewCancellationRequest, _ *models.JWTClaims) (*models.CancellationRequest, error) {
	f.lastReviewID = id
	return f.reviewResult, f.reviewErr
}

func (f *fakeCancellationSrv) Get(_ context.Context, id string, _ *models.JWTClaims) (*models.CancellationRequest, error) {
	if f.reviewResult != nil && f.reviewResult.ID == id {
		return f.reviewResult, nil
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeCancellationSrv) List(_ context.Context, query dto.CancellationQuery, _ *models.JWTClaims) ([]models.CancellationRequest, error) {
	f.lastQuery = query
	return f.listResult, nil
}

func patientContext(rec *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "patient-1", Role: models.RolePaciente})
	return c
}

func TestCancellationHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeCancellationSrv{
		createResult: &dto.CancellationResult{
			Request:  &models.CancellationRequest{ID: "req-1", Protocol: "CR-20260901-ABC123"},
			Resolved: true,
		},
	}
	handler := NewCancellationHandler(srv)

	rec := httptest.NewRecorder()
	c := patientContext(rec)
	body := `{"appointmentId":"appt-1","type":"CANCELAMENTO"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/cancellations", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "appt-1", srv.lastCreate.AppointmentID)

	var envelope struct {
		Data dto.CancellationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Resolved)
	assert.Equal(t, "CR-20260901-ABC123", envelope.Data.Request.Protocol)
}

func TestCancellationHandlerCreateInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCancellationHandler(&fakeCancellationSrv{})

	rec := httptest.NewRecorder()
	c := patientContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/cancellations", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancellationHandlerCreateReasonRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCancellationHandler(&fakeCancellationSrv{createErr: appErrors.ErrReasonRequired})

	rec := httptest.NewRecorder()
	c := patientContext(rec)
	body := `{"appointmentId":"appt-1","type":"CANCELAMENTO"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/cancellations", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "REASON_REQUIRED", envelope.Error.Code)
}

func TestCancellationHandlerReview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeCancellationSrv{
		reviewResult: &models.CancellationRequest{ID: "req-1", Status: models.ReviewDeferido},
	}
	handler := NewCancellationHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	body := `{"status":"DEFERIDO"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/cancellations/req-1/review", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Review(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", srv.lastReviewID)
}

func TestCancellationHandlerReviewConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCancellationHandler(&fakeCancellationSrv{reviewErr: appErrors.ErrAlreadyReviewed})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/cancellations/req-1/review", strings.NewReader(`{"status":"DEFERIDO"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Review(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancellationHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeCancellationSrv{}
	handler := NewCancellationHandler(srv)

	rec := httptest.NewRecorder()
	c := patientContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/cancellations?status=EM_ANALISE,DEFERIDO&type=REAGENDAMENTO&limit=5&offset=10", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.ReviewStatus{models.ReviewEmAnalise, models.ReviewDeferido}, srv.lastQuery.Status)
	assert.Equal(t, models.RequestTypeReagendamento, srv.lastQuery.Type)
	assert.Equal(t, 5, srv.lastQuery.Limit)
	assert.Equal(t, 10, srv.lastQuery.Offset)
}
