package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	mqcontracts "minimail/contracts/mq"
	"minimail/pkg/metrics"
	"minimail/pkg/mq"
)

// ActivityLogHandler writes one audit line per domain event.
type ActivityLogHandler struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewActivityLogHandler(logger *zap.Logger) *ActivityLogHandler {
	return &ActivityLogHandler{logger: logger, now: time.Now}
}

// Register binds the handler to every event type it understands.
func (h *ActivityLogHandler) Register(r *mq.Router) {
	for _, t := range []string{
		mqcontracts.EventUserRegistered,
		mqcontracts.EventMailSent,
		mqcontracts.EventMailRead,
		mqcontracts.EventMailDeleted,
	} {
		r.Register(t, h.Handle)
	}
}

func (h *ActivityLogHandler) Handle(_ context.Context, evt mq.Event) error {
	fields, err := activityFields(evt)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}

	if !evt.OccurredAt.IsZero() {
		metrics.RecordMQConsumeLatency(evt.Type, h.now().Sub(evt.OccurredAt))
	}

	fields = append(fields,
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.Time("occurred_at", evt.OccurredAt),
	)
	h.logger.Info("Activity", fields...)
	return nil
}

func activityFields(evt mq.Event) ([]zap.Field, error) {
	switch evt.Type {
	case mqcontracts.EventUserRegistered:
		var p mqcontracts.UserRegisteredPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		return []zap.Field{zap.String("user_id", p.UserID), zap.String("email", p.Email)}, nil
	case mqcontracts.EventMailSent:
		var p mqcontracts.MailSentPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		return []zap.Field{zap.String("mail_id", p.MailID), zap.String("from", p.From), zap.String("to", p.To)}, nil
	case mqcontracts.EventMailRead:
		var p mqcontracts.MailReadPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		return []zap.Field{zap.String("mail_id", p.MailID), zap.String("reader", p.Reader)}, nil
	case mqcontracts.EventMailDeleted:
		var p mqcontracts.MailDeletedPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		return []zap.Field{zap.String("mail_id", p.MailID), zap.String("deleted_by", p.DeletedBy)}, nil
	default:
		return nil, fmt.Errorf("unsupported event type %q", evt.Type)
	}
}
