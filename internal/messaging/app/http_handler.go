package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/pkg/logger"
	"realtime_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// maxAttachmentSize upload limit of one attachment
const maxAttachmentSize = 20 << 20

// ConnectCheck check service start
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("messaging service start!")
}

// DebugLogFlag toggle debug log flag
func DebugLogFlag(c *fiber.Ctx) error {
	status, err := strconv.ParseBool(c.Query("status"))
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Log.SetDebugMode(status)
	logger.Log.Info("debug", zap.Bool("status", status))
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}

// AttachmentHandler REST side of attachments; the key returned is then sent over the websocket
type AttachmentHandler struct {
	attachments *AttachmentUseCase
}

// NewAttachmentHandler create AttachmentHandler
func NewAttachmentHandler(uc *AttachmentUseCase) *AttachmentHandler {
	return &AttachmentHandler{attachments: uc}
}

// Upload multipart "file" field, stored under the caller's prefix
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	userID, ok := middlewares.UserID(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user"})
	}

	// 取得上傳的檔案
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Missing file"})
	}
	if fileHeader.Size > maxAttachmentSize {
		return c.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "File too large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Log.Errorf("open upload", err, zap.String("user_id", userID))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open file"})
	}
	defer file.Close()

	contentType := fileHeader.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}

	att, err := h.attachments.Upload(c.UserContext(), userID, fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		logger.Log.Errorf("upload attachment", err, zap.String("user_id", userID))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store file"})
	}
	return c.Status(http.StatusCreated).JSON(att)
}

// URL presigned download URL of ?key=
func (h *AttachmentHandler) URL(c *fiber.Ctx) error {
	url, err := h.attachments.DownloadURL(c.UserContext(), c.Query("key"))
	switch {
	case errors.Is(err, domain.ErrInvalidMessage):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		logger.Log.Errorf("presign attachment", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign url"})
	}
	return c.JSON(fiber.Map{"url": url})
}

// Delete remove an attachment of the caller
func (h *AttachmentHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middlewares.UserID(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user"})
	}
	err := h.attachments.Remove(c.UserContext(), userID, c.Query("key"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.SendStatus(http.StatusNotFound)
	case err != nil:
		logger.Log.Errorf("remove attachment", err, zap.String("user_id", userID))
		return c.SendStatus(http.StatusInternalServerError)
	}
	return c.SendStatus(http.StatusNoContent)
}
