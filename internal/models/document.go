package models

import "time"

// DocumentKind classifies uploaded files.
type DocumentKind string

const (
	DocumentJustificativa DocumentKind = "JUSTIFICATIVA"
	DocumentNotaFiscal    DocumentKind = "NOTA_FISCAL"
	DocumentContrato      DocumentKind = "CONTRATO"
)

// Document is the metadata row for a file held in object storage. The bytes
// themselves live under pkg/storage; downloads go through signed URLs.
type Document struct {
	ID         string       `db:"id" json:"id"`
	OwnerID    string       `db:"owner_id" json:"owner_id"`
	Kind       DocumentKind `db:"kind" json:"kind"`
	FileName   string       `db:"file_name" json:"file_name"`
	MIMEType   string       `db:"mime_type" json:"mime_type"`
	SizeBytes  int64        `db:"size_bytes" json:"size_bytes"`
	StoredPath string       `db:"stored_path" json:"-"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
