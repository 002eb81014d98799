package controlapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

// shutdownTimeout bounds the drain of in-flight control requests and open
// SSE streams once the app is stopping.
const shutdownTimeout = 5 * time.Second

// ListenAndServe serves the control channel on addr until the context is
// cancelled, then shuts the server down gracefully. The context also
// becomes the base context of every request, so stream handlers unwind
// with the app.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	logger := pslog.Ctx(ctx)
	server := &http.Server{
		Addr:     addr,
		Handler:  handler,
		ErrorLog: pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
