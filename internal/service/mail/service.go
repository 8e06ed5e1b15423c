package mail

import (
	"context"
	"errors"

	"go.uber.org/zap"
	mqcontracts "minimail/contracts/mq"
	"minimail/internal/model"
	"minimail/internal/repository"
	"minimail/internal/service"
	"minimail/pkg/logger"
	"minimail/pkg/metrics"
)

// ErrMailNotFound is returned for unknown ids and for mails the caller
// neither sent nor received.
var ErrMailNotFound = errors.New("mail not found")

type Service struct {
	mailRepo  *repository.MailRepository
	publisher service.EventPublisher
	logger    *zap.Logger
}

func NewService(mailRepo *repository.MailRepository, publisher service.EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		mailRepo:  mailRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// Send stores the mail and publishes `mail.sent`. The recipient address is
// normalized the same way account emails are.
func (s *Service) Send(ctx context.Context, from, to, subject, body string) (*model.Mail, error) {
	m := s.mailRepo.Send(ctx, from, model.NormalizeEmail(to), subject, body)

	metrics.MailSentCount.Inc()
	logger.WithTrace(ctx, s.logger).Info("Mail sent",
		zap.String("mail_id", m.ID),
		zap.String("from", m.From),
		zap.String("to", m.To),
	)

	// 发布事件，使用 routing key "mail.sent"
	service.PublishEvent(ctx, s.publisher, s.logger, mqcontracts.EventMailSent, mqcontracts.MailSentPayload{
		MailID:  m.ID,
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		SentAt:  m.Timestamp,
	})
	return m, nil
}

// Inbox lists the mails received by email, oldest first.
func (s *Service) Inbox(ctx context.Context, email string) []model.Mail {
	return s.mailRepo.ListInbox(ctx, email)
}

// Sentbox lists the mails sent by email, oldest first.
func (s *Service) Sentbox(ctx context.Context, email string) []model.Mail {
	return s.mailRepo.ListSentbox(ctx, email)
}

// Open returns a mail to one of its participants. When the recipient opens
// an unread mail it becomes read.
func (s *Service) Open(ctx context.Context, id, viewer string) (*model.Mail, error) {
	m, ok := s.mailRepo.GetByID(ctx, id)
	if !ok || !m.IsParticipant(viewer) {
		return nil, ErrMailNotFound
	}
	if m.To != viewer || m.IsRead {
		return m, nil
	}
	return s.markRead(ctx, id, viewer)
}

// MarkRead marks the mail read on behalf of its recipient.
func (s *Service) MarkRead(ctx context.Context, id, viewer string) (*model.Mail, error) {
	m, ok := s.mailRepo.GetByID(ctx, id)
	if !ok || m.To != viewer {
		return nil, ErrMailNotFound
	}
	return s.markRead(ctx, id, viewer)
}

func (s *Service) markRead(ctx context.Context, id, viewer string) (*model.Mail, error) {
	m, changed, ok := s.mailRepo.SetRead(ctx, id)
	if !ok {
		// 并发删除
		return nil, ErrMailNotFound
	}
	if changed {
		metrics.MailReadCount.Inc()
		service.PublishEvent(ctx, s.publisher, s.logger, mqcontracts.EventMailRead, mqcontracts.MailReadPayload{
			MailID: id,
			Reader: viewer,
		})
	}
	return m, nil
}

// Delete removes the mail for both participants.
func (s *Service) Delete(ctx context.Context, id, requester string) error {
	if !s.mailRepo.Delete(ctx, id, requester) {
		return ErrMailNotFound
	}

	metrics.MailDeletedCount.Inc()
	logger.WithTrace(ctx, s.logger).Info("Mail deleted",
		zap.String("mail_id", id),
		zap.String("deleted_by", requester),
	)
	service.PublishEvent(ctx, s.publisher, s.logger, mqcontracts.EventMailDeleted, mqcontracts.MailDeletedPayload{
		MailID:    id,
		DeletedBy: requester,
	})
	return nil
}

// Stats exposes the store size for readiness probes.
func (s *Service) Stats() repository.StoreStats {
	return s.mailRepo.Stats()
}
