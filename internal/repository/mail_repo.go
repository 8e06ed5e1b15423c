package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"minimail/internal/model"
)

// MailRepository 内存邮件存储：邮件表 + 每个地址的收件箱/发件箱索引
//
// Every id held by a mailbox resolves to a stored mail; Delete removes the
// record and all of its index entries under one lock.
type MailRepository struct {
	mu        sync.RWMutex
	mails     map[string]*model.Mail
	mailboxes map[string]*model.Mailbox

	now   func() time.Time
	newID func() string
}

// StoreStats is a point-in-time size of the store.
type StoreStats struct {
	Mails     int `json:"mails"`
	Mailboxes int `json:"mailboxes"`
}

func NewMailRepository() *MailRepository {
	return &MailRepository{
		mails:     make(map[string]*model.Mail),
		mailboxes: make(map[string]*model.Mailbox),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Send stores a new unread mail and indexes it in the recipient's inbox and
// the sender's sentbox. Callers validate the fields; the store does not
// check that either address belongs to an account.
func (r *MailRepository) Send(ctx context.Context, from, to, subject, body string) *model.Mail {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := &model.Mail{
		ID:        r.newID(),
		From:      from,
		To:        to,
		Subject:   subject,
		Body:      body,
		Timestamp: r.now(),
	}
	r.mails[m.ID] = m

	inbox := r.mailboxLocked(to)
	inbox.Inbox = append(inbox.Inbox, m.ID)
	sent := r.mailboxLocked(from)
	sent.Sentbox = append(sent.Sentbox, m.ID)

	cp := *m
	return &cp
}

// ListInbox returns the mails received by email, oldest first.
func (r *MailRepository) ListInbox(ctx context.Context, email string) []model.Mail {
	r.mu.RLock()
	defer r.mu.RUnlock()

	box, ok := r.mailboxes[email]
	if !ok {
		return []model.Mail{}
	}
	return r.resolveLocked(box.Inbox)
}

// ListSentbox returns the mails sent by email, oldest first.
func (r *MailRepository) ListSentbox(ctx context.Context, email string) []model.Mail {
	r.mu.RLock()
	defer r.mu.RUnlock()

	box, ok := r.mailboxes[email]
	if !ok {
		return []model.Mail{}
	}
	return r.resolveLocked(box.Sentbox)
}

// GetByID returns a copy of the mail. There is no ownership check here.
func (r *MailRepository) GetByID(ctx context.Context, id string) (*model.Mail, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mails[id]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// MarkRead sets the read flag. Marking a read mail again is a no-op.
func (r *MailRepository) MarkRead(ctx context.Context, id string) (*model.Mail, bool) {
	m, _, ok := r.SetRead(ctx, id)
	return m, ok
}

// SetRead is MarkRead that also reports whether this call flipped the flag,
// so exactly one caller observes the unread -> read transition.
func (r *MailRepository) SetRead(ctx context.Context, id string) (mail *model.Mail, changed bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mails[id]
	if !ok {
		return nil, false, false
	}
	changed = !m.IsRead
	m.IsRead = true
	cp := *m
	return &cp, changed, true
}

// Delete removes the mail when requester is its sender or recipient. The
// record is dropped together with the recipient's inbox entry and the
// sender's sentbox entry, so neither side keeps a dangling id.
func (r *MailRepository) Delete(ctx context.Context, id, requester string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mails[id]
	if !ok || !m.IsParticipant(requester) {
		return false
	}

	if box, ok := r.mailboxes[m.To]; ok {
		box.Inbox = removeID(box.Inbox, id)
	}
	if box, ok := r.mailboxes[m.From]; ok {
		box.Sentbox = removeID(box.Sentbox, id)
	}
	delete(r.mails, id)
	return true
}

// Stats reports how many mails and mailbox records are held.
func (r *MailRepository) Stats() StoreStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return StoreStats{Mails: len(r.mails), Mailboxes: len(r.mailboxes)}
}

// mailboxLocked returns the mailbox for email, creating it on first use.
func (r *MailRepository) mailboxLocked(email string) *model.Mailbox {
	box, ok := r.mailboxes[email]
	if !ok {
		box = &model.Mailbox{}
		r.mailboxes[email] = box
	}
	return box
}

func (r *MailRepository) resolveLocked(ids []string) []model.Mail {
	out := make([]model.Mail, 0, len(ids))
	for _, id := range ids {
		// 正常情况下不会缺失
		if m, ok := r.mails[id]; ok {
			out = append(out, *m)
		}
	}
	return out
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}
