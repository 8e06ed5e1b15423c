package mq

import (
	"context"
	"fmt"

	"minimail/pkg/circuitbreaker"
)

// EventPublisher is the publishing side of *Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// BreakerPublisher stops calling a failing broker for a while so requests do
// not each wait on it.
type BreakerPublisher struct {
	next    EventPublisher
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerPublisher(next EventPublisher, breaker *circuitbreaker.CircuitBreaker) *BreakerPublisher {
	return &BreakerPublisher{next: next, breaker: breaker}
}

func (p *BreakerPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	err := p.breaker.Execute(func() error {
		return p.next.Publish(ctx, eventType, payload)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
