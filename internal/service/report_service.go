package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/repository"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/export"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/jobs"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/storage"
)

const reportDateLayout = "2006-01-02"

type reportStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByCreator(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type appointmentExportSource interface {
	ListBetween(ctx context.Context, dateFrom, dateTo string) ([]models.Appointment, error)
}

type cancellationExportSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.CancellationRequest, error)
}

type withdrawalExportSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Withdrawal, error)
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

// ReportService produces admin exports asynchronously. Jobs persist in
// Postgres so a restart re-runs everything still queued; finished files are
// served through signed URLs and swept after their retention window.
type ReportService struct {
	repo          reportStore
	appointments  appointmentExportSource
	cancellations cancellationExportSource
	withdrawals   withdrawalExportSource
	storage       reportStorage
	signer        *storage.SignedURLSigner
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	queue         *jobs.Queue
	retention     time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewReportService constructs the service and its worker queue.
func NewReportService(
	repo reportStore,
	appointments appointmentExportSource,
	cancellations cancellationExportSource,
	withdrawals withdrawalExportSource,
	blobs reportStorage,
	signer *storage.SignedURLSigner,
	retention time.Duration,
	queueCfg jobs.QueueConfig,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s := &ReportService{
		repo:          repo,
		appointments:  appointments,
		cancellations: cancellations,
		withdrawals:   withdrawals,
		storage:       blobs,
		signer:        signer,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		retention:     retention,
		now:           time.Now,
		logger:        logger,
	}
	s.queue = jobs.NewQueue("reports", s.handle, queueCfg)
	return s
}

// Start launches the workers and re-enqueues jobs left queued by a
// previous process.
func (s *ReportService) Start(ctx context.Context) error {
	s.queue.Start(ctx)
	queued, err := s.repo.ListQueued(ctx, 100)
	if err != nil {
		return fmt.Errorf("list queued report jobs: %w", err)
	}
	for _, job := range queued {
		if err := s.enqueue(job.ID); err != nil {
			s.logger.Warn("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return nil
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Create validates the request, persists a queued job and hands it to the
// workers.
func (s *ReportService) Create(ctx context.Context, req dto.CreateReportRequest, actor *models.JWTClaims) (*models.ReportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reports are restricted to administrators")
	}
	switch req.Type {
	case models.ReportTypeAppointments, models.ReportTypeCancellations, models.ReportTypeWithdrawals:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report type %q", req.Type))
	}
	switch req.Format {
	case models.ReportFormatCSV, models.ReportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", req.Format))
	}

	params := req.Params
	params.Format = req.Format
	from, to, err := resolveRange(params, s.now())
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	params.DateFrom = from.Format(reportDateLayout)
	params.DateTo = to.Format(reportDateLayout)

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    params,
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.enqueue(job.ID); err != nil {
		s.logger.Warn("report job enqueue failed, will run on next start", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

// Get returns a job the actor may see, decorated with its download token.
func (s *ReportService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ReportJobView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if actor.Role != models.RoleAdmin && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another account")
	}
	return s.view(job), nil
}

// List returns the actor's recent jobs, newest first.
func (s *ReportService) List(ctx context.Context, actor *models.JWTClaims, limit int) ([]dto.ReportJobView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	jobsList, err := s.repo.ListByCreator(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	views := make([]dto.ReportJobView, 0, len(jobsList))
	for i := range jobsList {
		views = append(views, *s.view(&jobsList[i]))
	}
	return views, nil
}

// OpenByToken resolves a signed download token into the stored file name.
func (s *ReportService) OpenByToken(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	return relPath, nil
}

// CleanupExpired deletes report files past retention and clears their URLs.
func (s *ReportService) CleanupExpired(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		return fmt.Errorf("list expired report jobs: %w", err)
	}
	for i := range finished {
		job := &finished[i]
		if job.ResultURL != nil && *job.ResultURL != "" {
			if _, relPath, _, err := s.signer.Parse(*job.ResultURL, true); err == nil {
				if err := s.storage.Delete(relPath); err != nil {
					s.logger.Warn("failed to delete report file", zap.String("job_id", job.ID), zap.Error(err))
					continue
				}
			}
		}
		empty := ""
		if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{ResultURL: &empty}); err != nil {
			s.logger.Warn("failed to clear report url", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *ReportService) enqueue(jobID string) error {
	return s.queue.Enqueue(jobs.Job{ID: jobID, Type: "report", Payload: jobID})
}

func (s *ReportService) handle(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected report payload %T", queued.Payload)
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}
	if job.Status != models.ReportStatusQueued {
		return nil
	}

	processing := models.ReportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	token, err := s.generate(ctx, job)
	finishedAt := s.now().UTC()
	if err != nil {
		s.logger.Error("report generation failed", zap.String("job_id", job.ID), zap.Error(err))
		failed := models.ReportStatusFailed
		message := err.Error()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &failed,
			ErrorMessage: &message,
			FinishedAt:   &finishedAt,
		}); updateErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil
	}

	done := models.ReportStatusFinished
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &done,
		ResultURL:  &token,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}
	s.logger.Info("report generated", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

func (s *ReportService) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	dataset, title, err := s.dataset(ctx, job)
	if err != nil {
		return "", err
	}

	var payload []byte
	ext := "csv"
	switch job.Params.Format {
	case models.ReportFormatPDF:
		ext = "pdf"
		payload, err = s.pdf.Render(dataset, title)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	fileName := fmt.Sprintf("%s-%s.%s", job.Type, job.ID, ext)
	if _, err := s.storage.Save(fileName, payload); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	token, _, err := s.signer.Generate(job.ID, fileName)
	if err != nil {
		return "", fmt.Errorf("sign report url: %w", err)
	}
	return token, nil
}

func (s *ReportService) dataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	from, to, err := resolveRange(job.Params, s.now())
	if err != nil {
		return export.Dataset{}, "", err
	}

	switch job.Type {
	case models.ReportTypeAppointments:
		items, err := s.appointments.ListBetween(ctx, from.Format(reportDateLayout), to.Format(reportDateLayout))
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("load appointments: %w", err)
		}
		return appointmentDataset(items), "Relatório de Consultas", nil
	case models.ReportTypeCancellations:
		items, err := s.cancellations.ListBetween(ctx, from, to.AddDate(0, 0, 1))
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("load cancellation requests: %w", err)
		}
		return cancellationDataset(items), "Relatório de Cancelamentos", nil
	case models.ReportTypeWithdrawals:
		items, err := s.withdrawals.ListBetween(ctx, from, to.AddDate(0, 0, 1))
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("load withdrawals: %w", err)
		}
		return withdrawalDataset(items), "Relatório de Saques", nil
	}
	return export.Dataset{}, "", fmt.Errorf("unsupported report type %q", job.Type)
}

func (s *ReportService) view(job *models.ReportJob) *dto.ReportJobView {
	view := &dto.ReportJobView{ReportJob: job}
	if job.Status == models.ReportStatusFinished && job.ResultURL != nil {
		view.DownloadURL = *job.ResultURL
	}
	return view
}

// resolveRange defaults to the trailing 30 days when the request omits
// bounds, and rejects inverted ranges.
func resolveRange(params models.ReportJobParams, now time.Time) (time.Time, time.Time, error) {
	to := now
	if params.DateTo != "" {
		parsed, err := time.Parse(reportDateLayout, params.DateTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid dateTo %q", params.DateTo)
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -30)
	if params.DateFrom != "" {
		parsed, err := time.Parse(reportDateLayout, params.DateFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid dateFrom %q", params.DateFrom)
		}
		from = parsed
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("dateFrom must not be after dateTo")
	}
	return from, to, nil
}

func appointmentDataset(items []models.Appointment) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"ID":        item.ID,
			"Paciente":  item.PatientID,
			"Psicólogo": item.PsychologistID,
			"Data":      item.Date,
			"Horário":   item.Horario,
			"Status":    string(item.Status),
		})
	}
	return export.Dataset{
		Headers: []string{"ID", "Paciente", "Psicólogo", "Data", "Horário", "Status"},
		Rows:    rows,
	}
}

func cancellationDataset(items []models.CancellationRequest) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Protocolo":   item.Protocol,
			"Consulta":    item.AppointmentID,
			"Solicitante": item.RequestedBy,
			"Tipo":        string(item.Type),
			"No Prazo":    strconv.FormatBool(item.WithinDeadline),
			"Status":      string(item.Status),
			"Criado Em":   item.CreatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{
		Headers: []string{"Protocolo", "Consulta", "Solicitante", "Tipo", "No Prazo", "Status", "Criado Em"},
		Rows:    rows,
	}
}

func withdrawalDataset(items []models.Withdrawal) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Protocolo": item.Protocol,
			"Psicólogo": item.PsychologistID,
			"Valor":     fmt.Sprintf("%.2f", float64(item.AmountCents)/100),
			"Status":    string(item.Status),
			"Criado Em": item.CreatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{
		Headers: []string{"Protocolo", "Psicólogo", "Valor", "Status", "Criado Em"},
		Rows:    rows,
	}
}
