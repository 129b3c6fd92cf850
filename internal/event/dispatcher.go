package event

import (
	"context"

	"go.uber.org/zap"
)

// Hook runs synchronously for every dispatched event.
type Hook interface {
	Name() string
	Handle(ctx context.Context, evt Event) error
}

type HookFunc struct {
	HookName string
	Fn       func(ctx context.Context, evt Event) error
}

func (h HookFunc) Name() string { return h.HookName }

func (h HookFunc) Handle(ctx context.Context, evt Event) error { return h.Fn(ctx, evt) }

// Dispatcher calls hooks in registration order. A failing hook is logged and
// never stops the remaining hooks or the caller.
type Dispatcher struct {
	hooks []Hook
	log   *zap.Logger
}

func NewDispatcher(log *zap.Logger, hooks ...Hook) *Dispatcher {
	return &Dispatcher{
		hooks: hooks,
		log:   log.With(zap.String("component", "event_dispatcher")),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) {
	for _, h := range d.hooks {
		if err := h.Handle(ctx, evt); err != nil {
			d.log.Warn("Event hook failed",
				zap.String("hook", h.Name()),
				zap.String("event", string(evt.Type)),
				zap.String("external_id", evt.ExternalID),
				zap.Error(err),
			)
		}
	}
}
