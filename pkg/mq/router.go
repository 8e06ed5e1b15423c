package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

type TypedHandlerFunc func(ctx context.Context, evt Event) error

// Router dispatches event envelopes to handlers by event type.
type Router struct {
	routes map[string]TypedHandlerFunc
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		routes: make(map[string]TypedHandlerFunc),
		logger: logger,
	}
}

func (r *Router) Register(eventType string, h TypedHandlerFunc) {
	r.routes[eventType] = h
}

// Handle decodes the envelope and calls the registered handler. Events without
// a handler are acknowledged and skipped.
func (r *Router) Handle(ctx context.Context, body []byte) error {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		// 格式错误的消息重试也没用，直接丢弃
		r.logger.Warn("Dropping undecodable event", zap.Error(err))
		return nil
	}

	h, ok := r.routes[evt.Type]
	if !ok {
		r.logger.Debug("No handler for event", zap.String("type", evt.Type))
		return nil
	}

	if err := h(ctx, evt); err != nil {
		return fmt.Errorf("handle %s %s: %w", evt.Type, evt.ID, err)
	}
	return nil
}
