package events

import (
	"log/slog"

	"arenapool/core/types"
)

// LogEmitter forwards every emitted event to a structured logger so external
// indexers can tail the daemon output.
type LogEmitter struct {
	Logger *slog.Logger
}

type payloadCarrier interface {
	Event() *types.Event
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if l.Logger == nil || evt == nil {
		return
	}
	args := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			for k, v := range payload.Attributes {
				args = append(args, slog.String(k, v))
			}
		}
	}
	l.Logger.Info("event emitted", args...)
}
