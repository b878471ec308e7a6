package dto

import "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"

// DocumentUploadResult is returned after a successful upload.
type DocumentUploadResult struct {
	Document *models.Document `json:"document"`
	URL      string           `json:"url"`
}

// DocumentQuery mirrors supported listing filters.
type DocumentQuery struct {
	OwnerID string
	Kind    models.DocumentKind
	Limit   int
	Offset  int
}
