package app

import (
	"context"
	"errors"
	"fmt"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg/config"
	"realtime_messaging_service/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMSender subset of *messaging.Client used for push
type FCMSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// NewFCMClient build a firebase messaging client from config
func NewFCMClient(ctx context.Context, cfg config.FirebaseConfig) (*messaging.Client, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := fbApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return client, nil
}

// FCMPusher push to every active device of the user
type FCMPusher struct {
	sender  FCMSender
	devices repository.DeviceRepository
}

// NewFCMPusher create FCMPusher
func NewFCMPusher(sender FCMSender, devices repository.DeviceRepository) *FCMPusher {
	return &FCMPusher{sender: sender, devices: devices}
}

// Push send to all active tokens; tokens FCM rejects as unregistered are deactivated
func (p *FCMPusher) Push(ctx context.Context, req domain.PushRequest) error {
	devices, err := p.devices.ActiveDevices(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(devices) == 0 {
		logger.Log.Debug("no active devices", zap.String("user_id", req.UserID))
		return nil
	}

	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}

	resp, err := p.sender.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: req.Data,
	})
	if err != nil {
		return fmt.Errorf("send fcm: %w", err)
	}

	var failed []error
	for i, r := range resp.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		if messaging.IsRegistrationTokenNotRegistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			if derr := p.devices.DeactivateDevice(ctx, tokens[i]); derr != nil {
				logger.Log.Warn("deactivate device", zap.String("token", tokens[i]), zap.Error(derr))
			}
			continue
		}
		failed = append(failed, r.Error)
	}

	logger.Log.Info("fcm push sent",
		zap.String("user_id", req.UserID),
		zap.Int("success", resp.SuccessCount),
		zap.Int("failure", resp.FailureCount),
	)
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

// LogPusher stands in for FCM when firebase is disabled
type LogPusher struct{}

// Push log the request
func (LogPusher) Push(_ context.Context, req domain.PushRequest) error {
	logger.Log.Info("push", zap.String("user_id", req.UserID), zap.String("title", req.Title))
	return nil
}
