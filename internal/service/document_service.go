package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	appErrors "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/errors"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, ownerID string, kind models.DocumentKind, limit, offset int) ([]models.Document, error)
}

type blobStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

// DocumentUpload carries the request-scoped metadata of an incoming file.
type DocumentUpload struct {
	FileName  string
	MIMEType  string
	SizeBytes int64
	Kind      models.DocumentKind
	Body      io.Reader
}

// DocumentService stores justification evidence and invoices. Files live on
// disk under a random name; metadata lives in Postgres; downloads always go
// through short-lived signed tokens.
type DocumentService struct {
	repo       documentStore
	storage    blobStorage
	signer     *storage.SignedURLSigner
	audit      auditWriter
	maxSize    int64
	allowed    map[string]struct{}
	validKinds map[models.DocumentKind]struct{}
	logger     *zap.Logger
}

// NewDocumentService constructs the service. allowedMIMEs empty means the
// platform defaults (PDF and common image types).
func NewDocumentService(
	repo documentStore,
	blobs blobStorage,
	signer *storage.SignedURLSigner,
	audit auditWriter,
	maxSize int64,
	allowedMIMEs []string,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &DocumentService{
		repo:    repo,
		storage: blobs,
		signer:  signer,
		audit:   audit,
		maxSize: maxSize,
		allowed: allowed,
		validKinds: map[models.DocumentKind]struct{}{
			models.DocumentJustificativa: {},
			models.DocumentNotaFiscal:    {},
			models.DocumentContrato:      {},
		},
		logger: logger,
	}
}

// Upload validates and persists the file, returning the metadata row and a
// signed download URL.
func (s *DocumentService) Upload(ctx context.Context, upload DocumentUpload, actor *models.JWTClaims) (*dto.DocumentUploadResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if upload.Body == nil || upload.FileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a file is required")
	}
	if _, ok := s.validKinds[upload.Kind]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported document kind %q", upload.Kind))
	}
	mimeType := strings.ToLower(strings.TrimSpace(upload.MIMEType))
	if _, ok := s.allowed[mimeType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not accepted", upload.MIMEType))
	}
	if upload.SizeBytes > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}

	// Stored name never derives from user input.
	storedName := uuid.NewString() + sanitizedExt(upload.FileName)
	limited := io.LimitReader(upload.Body, s.maxSize+1)
	storedPath, err := s.storage.SaveStream(storedName, limited)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		OwnerID:    actor.UserID,
		Kind:       upload.Kind,
		FileName:   filepath.Base(upload.FileName),
		MIMEType:   mimeType,
		SizeBytes:  upload.SizeBytes,
		StoredPath: storedPath,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register document")
	}

	url, _, err := s.signer.Generate(doc.ID, storedName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     "DOCUMENT_UPLOAD",
		Resource:   "documents",
		ResourceID: &doc.ID,
	})

	return &dto.DocumentUploadResult{Document: doc, URL: url}, nil
}

// SignedURL re-issues a download token for a document the actor may read.
func (s *DocumentService) SignedURL(ctx context.Context, id string, actor *models.JWTClaims) (string, time.Time, error) {
	doc, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, filepath.Base(doc.StoredPath))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// OpenByToken validates the signed token and opens the underlying file.
// Token validation does not require authentication; the signature is the
// capability.
func (s *DocumentService) OpenByToken(ctx context.Context, token string) (*models.Document, *os.File, error) {
	docID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return doc, file, nil
}

// List returns documents visible to the actor. Admins may list any owner;
// everyone else sees only their own uploads.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentQuery, actor *models.JWTClaims) ([]models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	ownerID := query.OwnerID
	if actor.Role != models.RoleAdmin {
		ownerID = actor.UserID
	}
	limit := normalizePageSize(query.Limit)
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	docs, err := s.repo.List(ctx, ownerID, query.Kind, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

func (s *DocumentService) loadScoped(ctx context.Context, id string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if actor.Role != models.RoleAdmin && doc.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document belongs to another account")
	}
	return doc, nil
}

func (s *DocumentService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func sanitizedExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
