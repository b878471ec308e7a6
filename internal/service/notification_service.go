package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/jobs"
)

// Notifier is the consumer-side contract for dispatching notifications.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// Sender delivers a single notification over a concrete channel.
type Sender interface {
	Send(ctx context.Context, notification models.Notification) error
}

// SenderFunc allows plain functions as senders.
type SenderFunc func(ctx context.Context, notification models.Notification) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, notification models.Notification) error {
	return f(ctx, notification)
}

// LogSender writes notifications to the structured log. Used in
// environments without a mail provider.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs the fallback sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, notification models.Notification) error {
	s.logger.Info("notification dispatched",
		zap.String("recipient_id", notification.RecipientID),
		zap.String("template", notification.Template),
		zap.String("subject", notification.Subject),
	)
	return nil
}

// NotificationService queues notifications for asynchronous delivery so
// request handlers never block on the mail channel.
type NotificationService struct {
	sender  Sender
	queue   *jobs.Queue
	timeout time.Duration
	logger  *zap.Logger
}

// NewNotificationService constructs the service and its worker queue.
// Start must be called before notifications are delivered asynchronously;
// an unstarted queue degrades to synchronous delivery.
func NewNotificationService(sender Sender, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s := &NotificationService{sender: sender, timeout: 10 * time.Second, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries to finish.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues the notification for delivery. When the queue is not
// running the notification is delivered inline.
func (s *NotificationService) Notify(ctx context.Context, notification models.Notification) error {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "notification:" + notification.Template,
		Payload: notification,
	}
	if err := s.queue.Enqueue(job); err != nil {
		return s.deliver(ctx, notification)
	}
	return nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.deliver(ctx, notification)
}

func (s *NotificationService) deliver(ctx context.Context, notification models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.sender.Send(ctx, notification); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("template", notification.Template),
			zap.Error(err),
		)
		return err
	}
	return nil
}
