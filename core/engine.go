package core

import (
	"context"

	"pkt.systems/bezel/schema"
)

// Engine is the narrow command surface of the embedded browser engine. The
// engine owns navigation, DOM, and script execution; this package only opens
// sessions against it and forwards viewport changes and input.
type Engine interface {
	// CreateSession opens a browser session against url with the given
	// viewport. The returned session id is the key for all later commands
	// and for asynchronous callbacks.
	CreateSession(ctx context.Context, url string, viewport schema.Viewport) (schema.SessionID, error)
	// CloseSession requests session teardown. Closing an unknown or already
	// torn down session is not an error.
	CloseSession(ctx context.Context, session schema.SessionID) error
	// Resize notifies the engine of a new viewport for the session.
	Resize(ctx context.Context, session schema.SessionID, viewport schema.Viewport) error
	// SetFocus reports window focus to the session.
	SetFocus(ctx context.Context, session schema.SessionID, focused bool) error
	// DispatchInput forwards a toolkit input event to the session.
	DispatchInput(ctx context.Context, session schema.SessionID, event schema.InputEvent) error
	// Navigate loads a new url in the session.
	Navigate(ctx context.Context, session schema.SessionID, url string) error
	// GoBack moves one step back in the session's history.
	GoBack(ctx context.Context, session schema.SessionID) error
	// GoForward moves one step forward in the session's history.
	GoForward(ctx context.Context, session schema.SessionID) error
	// Reload reloads the session's current page.
	Reload(ctx context.Context, session schema.SessionID) error
}

// EngineEvents receives asynchronous callbacks from the engine's own
// execution context. Implementations must treat callbacks for sessions that
// no longer exist as safe no-ops: a paint can always race a close.
type EngineEvents interface {
	// OnPaint delivers a frame for the session. Pixels are tightly packed
	// BGRA rows at the given size. An empty dirty list means no
	// partial-update information is available and the whole frame changed.
	OnPaint(session schema.SessionID, pixels []byte, size schema.Size, dirty []schema.Rect)
	// OnTitleChanged reports a new page title.
	OnTitleChanged(session schema.SessionID, title string)
	// OnURLChanged reports a navigation-committed url.
	OnURLChanged(session schema.SessionID, url string)
	// OnLoadingStateChanged reports load start/stop.
	OnLoadingStateChanged(session schema.SessionID, loading bool)
	// OnSessionTerminated reports that the engine tore the session down on
	// its own (crash, window.close, engine shutdown).
	OnSessionTerminated(session schema.SessionID, reason string)
}
