package client

import (
	"context"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultPollInterval 收件箱轮询间隔
const DefaultPollInterval = 2 * time.Second

// InboxFetcher is the part of *Client the poller needs.
type InboxFetcher interface {
	Inbox(ctx context.Context) ([]Mail, error)
}

// Poller refreshes an inbox on a fixed interval and reports only changes.
type Poller struct {
	fetcher     InboxFetcher
	interval    time.Duration
	maxInterval time.Duration
	onChange    func([]Mail)
	onError     func(error)

	last    []snapshotEntry
	hasLast bool
}

type snapshotEntry struct {
	id     string
	isRead bool
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxBackoff caps the delay between attempts after repeated failures.
func WithMaxBackoff(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.maxInterval = d
		}
	}
}

func WithErrorHandler(fn func(error)) PollerOption {
	return func(p *Poller) { p.onError = fn }
}

// NewPoller creates a poller calling onChange with the full inbox whenever
// ids, order or read flags differ from the previous fetch.
func NewPoller(fetcher InboxFetcher, onChange func([]Mail), opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		interval:    DefaultPollInterval,
		maxInterval: time.Minute,
		onChange:    onChange,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxInterval < p.interval {
		p.maxInterval = p.interval
	}
	return p
}

// Run fetches immediately, then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	b.MaxInterval = p.maxInterval
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0 // 永不放弃
	b.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		next := p.interval
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.onError != nil {
				p.onError(err)
			}
			if d := b.NextBackOff(); d > next {
				next = d
			}
		} else {
			b.Reset()
		}
		timer.Reset(next)
	}
}

func (p *Poller) poll(ctx context.Context) error {
	mails, err := p.fetcher.Inbox(ctx)
	if err != nil {
		return err
	}

	snap := make([]snapshotEntry, len(mails))
	for i, m := range mails {
		snap[i] = snapshotEntry{id: m.ID, isRead: m.IsRead}
	}
	if p.hasLast && slices.Equal(p.last, snap) {
		return nil
	}
	p.last, p.hasLast = snap, true

	if p.onChange != nil {
		p.onChange(mails)
	}
	return nil
}
