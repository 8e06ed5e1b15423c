package service

import (
	"context"

	"go.uber.org/zap"
	"minimail/pkg/logger"
	"minimail/pkg/metrics"
)

// EventPublisher publishes domain events. *mq.Publisher and mq.NopPublisher satisfy it.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// PublishEvent publishes and only logs failures: the store mutation has
// already happened and is not rolled back.
func PublishEvent(ctx context.Context, pub EventPublisher, log *zap.Logger, eventType string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, eventType, payload); err != nil {
		metrics.IncrementPublishFailure(eventType)
		logger.WithTrace(ctx, log).Warn("Failed to publish event",
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}
