package logx

import (
	"context"

	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

type contextKey int

const tabKey contextKey = iota

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab handle if present.
func WithTab(ctx context.Context, handle schema.TabHandle) pslog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	log := pslog.Ctx(ctx)
	if handle != 0 {
		if current, ok := ctx.Value(tabKey).(schema.TabHandle); ok && current == handle {
			return log
		}
		log = log.With("tab", uint64(handle))
	}
	return log
}

// WithSession annotates the logger with an engine session id when available.
func WithSession(log pslog.Logger, session schema.SessionID) pslog.Logger {
	if session != "" {
		log = log.With("session", session)
	}
	return log
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, handle schema.TabHandle) context.Context {
	if ctx == nil || handle == 0 {
		return ctx
	}
	return context.WithValue(ctx, tabKey, handle)
}

// ContextWithTabLogger attaches the logger and tab marker to the context.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, handle schema.TabHandle) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTab(ctx, handle)
}
