package model

import "time"

// Mail is a message exchanged between two addresses. JSON names follow the
// web client contract.
type Mail struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

// IsParticipant reports whether email sent or received the mail.
func (m *Mail) IsParticipant(email string) bool {
	return m.From == email || m.To == email
}

// Mailbox holds the ordered mail ids of one address, oldest first.
type Mailbox struct {
	Inbox   []string
	Sentbox []string
}
