package dto

import "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"

// CreateReportRequest enqueues an export job.
type CreateReportRequest struct {
	Type   models.ReportType      `json:"type" validate:"required"`
	Format models.ReportFormat    `json:"format" validate:"required"`
	Params models.ReportJobParams `json:"params"`
}

// ReportJobView decorates a job with its download URL once finished.
type ReportJobView struct {
	*models.ReportJob
	DownloadURL string `json:"downloadUrl,omitempty"`
}
