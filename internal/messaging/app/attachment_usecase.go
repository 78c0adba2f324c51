package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"

	"github.com/google/uuid"
)

// DefaultPresignExpiry lifetime of a download URL
const DefaultPresignExpiry = 15 * time.Minute

// Attachment uploaded object; Key is what an image / file / voice message carries as content
type Attachment struct {
	Key         string             `json:"key"`
	ContentType string             `json:"content_type"`
	Size        int64              `json:"size"`
	Type        domain.MessageType `json:"type"`
}

// AttachmentUseCase stores attachment payloads in object storage
type AttachmentUseCase struct {
	storage repository.AttachmentStorage
	expiry  time.Duration
}

// NewAttachmentUseCase create AttachmentUseCase
func NewAttachmentUseCase(storage repository.AttachmentStorage, expiry time.Duration) *AttachmentUseCase {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &AttachmentUseCase{storage: storage, expiry: expiry}
}

// Upload store r under a key scoped to the owner
func (uc *AttachmentUseCase) Upload(ctx context.Context, ownerID, fileName, contentType string, size int64, r io.Reader) (*Attachment, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidMessage)
	}
	msgType := attachmentType(contentType)
	key := fmt.Sprintf("%s/%s%s", ownerID, uuid.New().String(), strings.ToLower(path.Ext(fileName)))

	if err := uc.storage.PutObject(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("%w: upload attachment: %v", domain.ErrStoreWriteFailure, err)
	}
	return &Attachment{Key: key, ContentType: contentType, Size: size, Type: msgType}, nil
}

// DownloadURL presigned URL of a stored attachment
func (uc *AttachmentUseCase) DownloadURL(ctx context.Context, key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: bad attachment key", domain.ErrInvalidMessage)
	}
	return uc.storage.PresignGetURL(ctx, key, uc.expiry)
}

// Remove delete an attachment owned by ownerID
func (uc *AttachmentUseCase) Remove(ctx context.Context, ownerID, key string) error {
	if !strings.HasPrefix(key, ownerID+"/") {
		return domain.ErrNotFound
	}
	return uc.storage.RemoveObject(ctx, key)
}

func attachmentType(contentType string) domain.MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return domain.MessageTypeImage
	case strings.HasPrefix(contentType, "audio/"):
		return domain.MessageTypeVoice
	default:
		return domain.MessageTypeFile
	}
}
