package mq

import "time"

// Routing keys / event types published on the events exchange.
const (
	EventUserRegistered = "user.registered"
	EventMailSent       = "mail.sent"
	EventMailRead       = "mail.read"
	EventMailDeleted    = "mail.deleted"
)

// UserRegisteredPayload 用户注册事件的 payload
type UserRegisteredPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// MailSentPayload 邮件发送事件的 payload
type MailSentPayload struct {
	MailID  string    `json:"mail_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	SentAt  time.Time `json:"sent_at"`
}

// MailReadPayload is published the first time a recipient opens a mail.
type MailReadPayload struct {
	MailID string `json:"mail_id"`
	Reader string `json:"reader"`
}

// MailDeletedPayload 邮件删除事件的 payload
type MailDeletedPayload struct {
	MailID    string `json:"mail_id"`
	DeletedBy string `json:"deleted_by"`
}
