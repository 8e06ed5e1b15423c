package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	mqcontracts "minimail/contracts/mq"
	"minimail/pkg/mq"
)

const notificationHandlerName = "mail_sent_notification"

// Notification 站内通知
type Notification struct {
	Recipient string
	MailID    string
	Content   string
}

// Notifier delivers a notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string) error
}

type MailSentNotificationHandler struct {
	notifier Notifier
	deduper  Deduper
	logger   *zap.Logger
}

// NewMailSentNotificationHandler creates the handler. deduper may be nil.
func NewMailSentNotificationHandler(notifier Notifier, deduper Deduper, logger *zap.Logger) *MailSentNotificationHandler {
	return &MailSentNotificationHandler{
		notifier: notifier,
		deduper:  deduper,
		logger:   logger,
	}
}

// Handle -- 为收件人生成新邮件通知
func (h *MailSentNotificationHandler) Handle(ctx context.Context, evt mq.Event) error {
	var p mqcontracts.MailSentPayload
	if err := json.Unmarshal(evt.Data, &p); err != nil {
		h.logger.Error("Failed to unmarshal mail sent payload", zap.String("event_id", evt.ID), zap.Error(err))
		return err
	}

	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, notificationHandlerName, evt.ID) {
		h.logger.Info("Duplicate event skipped", zap.String("event_id", evt.ID), zap.String("mail_id", p.MailID))
		return nil
	}

	n := Notification{
		Recipient: p.To,
		MailID:    p.MailID,
		Content:   fmt.Sprintf("你收到了新邮件：%s（来自 %s）", p.Subject, p.From),
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Error("Failed to deliver notification",
			zap.String("mail_id", p.MailID),
			zap.String("recipient", p.To),
			zap.Error(err),
		)
		// 释放去重 key，重投递时才能再次通知
		if h.deduper != nil {
			if rerr := h.deduper.Release(ctx, notificationHandlerName, evt.ID); rerr != nil {
				h.logger.Warn("Failed to release dedup key", zap.String("event_id", evt.ID), zap.Error(rerr))
			}
		}
		return err
	}
	return nil
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notif Notification) error {
	n.logger.Info("Notification created",
		zap.String("recipient", notif.Recipient),
		zap.String("mail_id", notif.MailID),
		zap.String("content", notif.Content),
	)
	return nil
}
