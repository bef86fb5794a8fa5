package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/events"
	"github.com/spec-kit/mentor-queue/internal/notify"
)

// NotificationWorker owns the lifecycle of background notification delivery.
type NotificationWorker struct {
	notifier *notify.Service
	logger   *zap.Logger
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notifier *notify.Service, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationWorker {
	if notifier == nil {
		return nil
	}
	notifier.RegisterHandlers(dispatcher)
	logger.Info("notification worker started", zap.Strings("channels", notifier.Channels()))
	return &NotificationWorker{notifier: notifier, logger: logger}
}

// Shutdown drains in-flight deliveries.
func (w *NotificationWorker) Shutdown(ctx context.Context) {
	if w == nil {
		return
	}
	if err := w.notifier.Wait(ctx); err != nil {
		w.logger.Warn("notification deliveries still pending at shutdown", zap.Error(err))
	}
}
