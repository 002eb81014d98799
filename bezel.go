package bezel

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/bezel/controlapi"
	"pkt.systems/bezel/core"
	"pkt.systems/bezel/internal/appconfig"
	"pkt.systems/bezel/internal/compositor"
	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

// App composes the tab registry, input router, control server, and the
// native compositor window around a browser engine.
type App interface {
	// Start launches the background services (control server).
	Start(ctx context.Context) error
	// RunCompositor runs the window loop. Blocking; must be called from the
	// locked main goroutine. Returns when the window closes.
	RunCompositor(ctx context.Context) error
	// Wait blocks until a background service fails or the context ends.
	Wait() error
	// Stop shuts everything down.
	Stop(ctx context.Context) error
	// Service exposes the tab operations for embedding callers.
	Service() core.Service
}

// Deps captures the externally constructed dependencies of the app.
type Deps struct {
	// Engine is the browser engine sessions are opened against.
	Engine core.Engine
	// EventSink optionally receives registry events alongside the control
	// stream hub.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// EventReceiver is the engine-side hookup: engines deliver their callbacks
// to whatever the app designates, which is the registry.
type EventReceiver interface {
	SetEvents(core.EngineEvents)
}

// New constructs the app. If the engine implements EventReceiver its
// callbacks are wired to the registry automatically.
func New(cfg appconfig.Config, deps Deps) (App, error) {
	if deps.Engine == nil {
		return nil, errors.New("engine dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	var hub *controlapi.Hub
	sinks := make([]core.EventSink, 0, 2)
	if deps.EventSink != nil {
		sinks = append(sinks, deps.EventSink)
	}
	if cfg.Control.Enabled {
		hub = controlapi.NewHub(0)
		sinks = append(sinks, hub)
	}
	var sink core.EventSink
	switch len(sinks) {
	case 0:
		sink = nil
	case 1:
		sink = sinks[0]
	default:
		sink = eventFanout{sinks: sinks}
	}

	logical := schema.Size{Width: cfg.Window.Width, Height: cfg.Window.Height}
	registry, err := core.NewRegistry(cfg.RegistryConfig(), logical, core.RegistryDeps{
		Engine:    deps.Engine,
		EventSink: sink,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if receiver, ok := deps.Engine.(EventReceiver); ok {
		receiver.SetEvents(registry)
	}

	router := core.NewRouter(registry, deps.Engine, logger)

	var ctlSrv *controlapi.Server
	if cfg.Control.Enabled {
		ctlSrv = controlapi.NewServer(registry, hub)
	}

	return &app{
		cfg:        cfg,
		registry:   registry,
		router:     router,
		compositor: compositor.New(registry, router, cfg.Window, logger),
		ctlSrv:     ctlSrv,
		logger:     logger,
	}, nil
}

type app struct {
	cfg        appconfig.Config
	registry   *core.Registry
	router     *core.Router
	compositor *compositor.Compositor
	ctlSrv     *controlapi.Server
	logger     pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (a *app) Service() core.Service {
	return a.registry
}

func (a *app) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		pslog.Ctx(ctx).Warn("app start rejected", "reason", "already started")
		return errors.New("app already started")
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.errCh = make(chan error, 1)
	a.started = true
	a.mu.Unlock()

	log := pslog.Ctx(a.ctx)
	log.Info("app start",
		"control", a.cfg.Control.Enabled,
		"control_addr", a.cfg.Control.Addr,
		"window_w", a.cfg.Window.Width,
		"window_h", a.cfg.Window.Height,
	)
	if a.ctlSrv != nil {
		a.ctlSrv.SetBaseContext(a.ctx)
		go func() {
			if err := controlapi.ListenAndServe(a.ctx, a.cfg.Control.Addr, a.ctlSrv.Handler()); err != nil {
				log.Error("control server failed", "err", err)
				a.errCh <- err
			}
		}()
	}
	return nil
}

func (a *app) RunCompositor(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	appCtx := a.ctx
	a.mu.Unlock()
	if !started {
		return errors.New("app not started")
	}
	if ctx == nil {
		ctx = appCtx
	}
	err := a.compositor.Run(ctx)
	// Window closed; take the rest of the app down with it.
	_ = a.Stop(context.Background())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) Wait() error {
	a.mu.Lock()
	ctx := a.ctx
	errCh := a.errCh
	started := a.started
	a.mu.Unlock()
	if !started {
		return errors.New("app not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("app stopped", "err", err)
			_ = a.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (a *app) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	started := a.started
	appCtx := a.ctx
	a.mu.Unlock()
	if !started {
		return nil
	}
	log := a.logger
	log.Info("app stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("app stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("app stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-appCtx.Done():
		log.Info("app stopped")
		return nil
	}
}
