package storage

import (
	"context"
	"io"
)

// UploadResult описывает сохранённый объект.
type UploadResult struct {
	Key      string
	Location string // публичный URL, если задан PublicBaseURL
	ETag     string
}

// FileUploader is the object store behind the archiver. Keys are
// bucket-relative, e.g. "matches/42.pgn".
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}
