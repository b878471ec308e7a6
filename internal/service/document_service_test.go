package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/storage"
)

type mockDocumentRepo struct {
	documents map[string]*models.Document
}

func newMockDocumentRepo(documents ...*models.Document) *mockDocumentRepo {
	repo := &mockDocumentRepo{documents: make(map[string]*models.Document)}
	for _, doc := range documents {
		repo.documents[doc.ID] = doc
	}
	return repo
}

func (m *mockDocumentRepo) Create(_ context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = "doc-new"
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	m.documents[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	return &clone, nil
}

func (m *mockDocumentRepo) List(_ context.Context, ownerID string, kind models.DocumentKind, _, _ int) ([]models.Document, error) {
	out := make([]models.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		if ownerID != "" && doc.OwnerID != ownerID {
			continue
		}
		if kind != "" && doc.Kind != kind {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func newTestDocumentService(t *testing.T, repo *mockDocumentRepo) *DocumentService {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("doc-secret", 30*time.Minute)
	return NewDocumentService(repo, blobs, signer, &mockAuditRepo{}, 1024, []string{"application/pdf"}, zap.NewNop())
}

func pdfUpload(body []byte) DocumentUpload {
	return DocumentUpload{
		FileName:  "atestado médico.pdf",
		MIMEType:  "application/pdf",
		SizeBytes: int64(len(body)),
		Kind:      models.DocumentJustificativa,
		Body:      bytes.NewReader(body),
	}
}

func TestDocumentServiceUploadAndDownload(t *testing.T) {
	repo := newMockDocumentRepo()
	svc := newTestDocumentService(t, repo)
	actor := &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente}

	content := []byte("%PDF-1.4 evidencia")
	result, err := svc.Upload(context.Background(), pdfUpload(content), actor)
	require.NoError(t, err)

	assert.Equal(t, "pat-1", result.Document.OwnerID)
	assert.Equal(t, "atestado médico.pdf", result.Document.FileName)
	assert.NotEmpty(t, result.URL)
	assert.Contains(t, repo.documents, result.Document.ID)

	doc, file, err := svc.OpenByToken(context.Background(), result.URL)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, result.Document.ID, doc.ID)
	stored, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestDocumentServiceUploadRejectsDisallowedMIME(t *testing.T) {
	svc := newTestDocumentService(t, newMockDocumentRepo())

	upload := pdfUpload([]byte("MZ"))
	upload.FileName = "malware.exe"
	upload.MIMEType = "application/x-msdownload"

	_, err := svc.Upload(context.Background(), upload, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDocumentServiceUploadRejectsOversizedFile(t *testing.T) {
	svc := newTestDocumentService(t, newMockDocumentRepo())

	upload := pdfUpload(bytes.Repeat([]byte("a"), 2048))
	_, err := svc.Upload(context.Background(), upload, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDocumentServiceUploadRejectsUnknownKind(t *testing.T) {
	svc := newTestDocumentService(t, newMockDocumentRepo())

	upload := pdfUpload([]byte("%PDF"))
	upload.Kind = models.DocumentKind("OUTRO")
	_, err := svc.Upload(context.Background(), upload, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.Error(t, err)
}

func TestDocumentServiceOpenByTokenRejectsTampering(t *testing.T) {
	svc := newTestDocumentService(t, newMockDocumentRepo())

	_, _, err := svc.OpenByToken(context.Background(), "forged.token.value.here")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDocumentServiceSignedURLScopedToOwner(t *testing.T) {
	repo := newMockDocumentRepo(&models.Document{ID: "doc-1", OwnerID: "pat-1", Kind: models.DocumentJustificativa, StoredPath: "stored.pdf"})
	svc := newTestDocumentService(t, repo)

	_, _, err := svc.SignedURL(context.Background(), "doc-1", &models.JWTClaims{UserID: "pat-2", Role: models.RolePaciente})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	token, expiresAt, err := svc.SignedURL(context.Background(), "doc-1", &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestDocumentServiceListScopedToOwner(t *testing.T) {
	repo := newMockDocumentRepo(
		&models.Document{ID: "doc-1", OwnerID: "pat-1", Kind: models.DocumentJustificativa},
		&models.Document{ID: "doc-2", OwnerID: "psy-1", Kind: models.DocumentNotaFiscal},
	)
	svc := newTestDocumentService(t, repo)

	mine, err := svc.List(context.Background(), dto.DocumentQuery{OwnerID: "psy-1"}, &models.JWTClaims{UserID: "pat-1", Role: models.RolePaciente})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "doc-1", mine[0].ID)

	all, err := svc.List(context.Background(), dto.DocumentQuery{}, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
