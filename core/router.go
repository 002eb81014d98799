package core

import (
	"context"

	"pkt.systems/bezel/internal/logx"
	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

// Router forwards toolkit input to whichever tab is active at the moment
// each event arrives. It resolves the active session fresh per event, so a
// tab switch between two events routes them to different sessions without
// any caller-side coordination.
type Router struct {
	registry *Registry
	engine   Engine
	logger   pslog.Logger
}

// NewRouter wires a router to the registry and engine it dispatches through.
func NewRouter(registry *Registry, engine Engine, logger pslog.Logger) *Router {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Router{registry: registry, engine: engine, logger: logger}
}

// Dispatch routes one input event to the active tab's engine session.
// Coordinates stay in logical pixels; the engine applies the scale factor on
// its side. With no tabs open the event is dropped.
func (rt *Router) Dispatch(ctx context.Context, event schema.InputEvent) error {
	session, handle, ok := rt.registry.ActiveSession()
	if !ok {
		return nil
	}
	var err error
	switch event.Kind {
	case schema.InputFocus:
		err = rt.engine.SetFocus(ctx, session, true)
	case schema.InputBlur:
		err = rt.engine.SetFocus(ctx, session, false)
	default:
		err = rt.engine.DispatchInput(ctx, session, event)
	}
	if err != nil {
		// Input against a session that is mid-teardown is expected noise.
		logx.WithSession(rt.logger.With("tab", uint64(handle)), session).
			Debug("input dispatch failed", "kind", string(event.Kind), "err", err)
	}
	return err
}
