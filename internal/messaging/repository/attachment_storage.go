package repository

import (
	"context"
	"io"
	"time"
)

// AttachmentStorage object store for image / file / voice payloads; *database.MinIOClient satisfies it
type AttachmentStorage interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, objectName string) error
	PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}
