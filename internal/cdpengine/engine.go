package cdpengine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"pkt.systems/bezel/core"
	"pkt.systems/bezel/internal/appconfig"
	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

// Engine drives a Chromium instance over the DevTools protocol. Each tab
// registry session maps to one chromedp tab context; paints arrive through
// the page screencast and are handed to the registry as full-frame BGRA
// updates.
type Engine struct {
	cfg    appconfig.EngineConfig
	logger pslog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	events   core.EngineEvents
	sessions map[schema.SessionID]*session
	nextID   uint64
	closed   bool
}

type session struct {
	id       schema.SessionID
	ctx      context.Context
	cancel   context.CancelFunc
	viewport schema.Viewport
}

// New creates the engine and its exec allocator. The browser process itself
// starts lazily with the first session.
func New(cfg appconfig.EngineConfig, logger pslog.Logger) (*Engine, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("mute-audio", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	for _, arg := range cfg.ExtraArgs {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Engine{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sessions:    make(map[schema.SessionID]*session),
	}, nil
}

// SetEvents wires the callback receiver. Must be called before the first
// session is created; the registry cannot exist before the engine, so the
// hookup happens in a second step.
func (e *Engine) SetEvents(events core.EngineEvents) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = events
}

// Shutdown tears down every session and the browser process.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[schema.SessionID]*session)
	e.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}
	e.allocCancel()
	_ = ctx
	return nil
}

// CreateSession implements core.Engine. It opens a new browser tab, applies
// the viewport, navigates, and starts the frame screencast.
func (e *Engine) CreateSession(ctx context.Context, url string, viewport schema.Viewport) (schema.SessionID, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", errors.New("engine is shut down")
	}
	e.nextID++
	id := schema.SessionID(fmt.Sprintf("cdp-%d", e.nextID))
	events := e.events
	e.mu.Unlock()
	if events == nil {
		return "", errors.New("event receiver not wired")
	}

	tabCtx, tabCancel := chromedp.NewContext(e.allocCtx)
	s := &session{id: id, ctx: tabCtx, cancel: tabCancel, viewport: viewport}
	e.listen(s, events)

	startCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.StartupTimeout)*time.Second)
	defer cancel()
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		select {
		case <-startCtx.Done():
			return startCtx.Err()
		default:
		}
		if err := e.applyViewport(ctx, viewport); err != nil {
			return err
		}
		if _, _, _, _, err := page.Navigate(url).Do(ctx); err != nil {
			return err
		}
		return e.startScreencast(ctx, viewport)
	}))
	if err != nil {
		tabCancel()
		return "", fmt.Errorf("open session: %w", err)
	}

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()
	e.logger.Debug("cdp session opened", "session", id, "url", url)
	return id, nil
}

// CloseSession implements core.Engine. Closing an unknown session is a no-op.
func (e *Engine) CloseSession(ctx context.Context, id schema.SessionID) error {
	e.mu.Lock()
	s := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	s.cancel()
	_ = ctx
	e.logger.Debug("cdp session closed", "session", id)
	return nil
}

// Resize implements core.Engine.
func (e *Engine) Resize(ctx context.Context, id schema.SessionID, viewport schema.Viewport) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	s.viewport = viewport
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := e.applyViewport(ctx, viewport); err != nil {
			return err
		}
		// The screencast caps frames at the old size; restart it with the
		// new bounds so paints match the reallocated buffer.
		_ = page.StopScreencast().Do(ctx)
		return e.startScreencast(ctx, viewport)
	}))
}

// SetFocus implements core.Engine.
func (e *Engine) SetFocus(ctx context.Context, id schema.SessionID, focused bool) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if focused {
			if err := page.BringToFront().Do(ctx); err != nil {
				return err
			}
		}
		return emulation.SetFocusEmulationEnabled(focused).Do(ctx)
	}))
}

// Navigate implements core.Engine. The navigation is issued without waiting
// for the load to finish; progress arrives through the event callbacks.
func (e *Engine) Navigate(ctx context.Context, id schema.SessionID, url string) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, _, err := page.Navigate(url).Do(ctx)
		return err
	}))
}

// GoBack implements core.Engine.
func (e *Engine) GoBack(ctx context.Context, id schema.SessionID) error {
	return e.historyStep(id, -1)
}

// GoForward implements core.Engine.
func (e *Engine) GoForward(ctx context.Context, id schema.SessionID) error {
	return e.historyStep(id, 1)
}

// Reload implements core.Engine.
func (e *Engine) Reload(ctx context.Context, id schema.SessionID) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.Reload().Do(ctx)
	}))
}

func (e *Engine) historyStep(id schema.SessionID, delta int) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		next := int(cur) + delta
		if next < 0 || next >= len(entries) {
			return nil
		}
		return page.NavigateToHistoryEntry(entries[next].ID).Do(ctx)
	}))
}

func (e *Engine) session(id schema.SessionID) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[id]
	if s == nil {
		return nil, fmt.Errorf("unknown session %s", id)
	}
	return s, nil
}

func (e *Engine) applyViewport(ctx context.Context, viewport schema.Viewport) error {
	return emulation.SetDeviceMetricsOverride(
		int64(viewport.Logical.Width),
		int64(viewport.Logical.Height),
		float64(viewport.Scale),
		false,
	).Do(ctx)
}

func (e *Engine) startScreencast(ctx context.Context, viewport schema.Viewport) error {
	format := page.ScreencastFormatPng
	if e.cfg.FrameFormat == "jpeg" {
		format = page.ScreencastFormatJpeg
	}
	physical := viewport.Physical()
	return page.StartScreencast().
		WithFormat(format).
		WithQuality(int64(e.cfg.FrameQuality)).
		WithMaxWidth(int64(physical.Width)).
		WithMaxHeight(int64(physical.Height)).
		WithEveryNthFrame(1).
		Do(ctx)
}

// listen subscribes to the tab's CDP events and translates them into
// registry callbacks. Handlers must not block the event loop, so frame
// decoding and acks run on their own goroutines.
func (e *Engine) listen(s *session, events core.EngineEvents) {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *page.EventScreencastFrame:
			frame := ev
			go e.deliverFrame(s, events, frame)
		case *target.EventTargetInfoChanged:
			events.OnTitleChanged(s.id, ev.TargetInfo.Title)
			events.OnURLChanged(s.id, ev.TargetInfo.URL)
		case *page.EventFrameNavigated:
			// Main frame only; subframe navigations do not change the tab url.
			if ev.Frame.ParentID == "" {
				events.OnURLChanged(s.id, ev.Frame.URL)
			}
		case *page.EventFrameStartedLoading:
			events.OnLoadingStateChanged(s.id, true)
		case *page.EventLoadEventFired:
			events.OnLoadingStateChanged(s.id, false)
		case *inspector.EventTargetCrashed:
			e.dropSession(s)
			events.OnSessionTerminated(s.id, "renderer crashed")
		case *inspector.EventDetached:
			e.dropSession(s)
			events.OnSessionTerminated(s.id, string(ev.Reason))
		}
	})
}

func (e *Engine) deliverFrame(s *session, events core.EngineEvents, frame *page.EventScreencastFrame) {
	// frame.Data is the base64-encoded compressed image per the CDP spec.
	data, err := base64.StdEncoding.DecodeString(frame.Data)
	var (
		pixels []byte
		size   schema.Size
	)
	if err == nil {
		pixels, size, err = decodeBGRA(data)
	}
	if err != nil {
		e.logger.Warn("cdp frame decode failed", "session", s.id, "err", err)
	} else {
		// Screencast frames are always complete images, so the paint goes
		// through with no partial-update rectangles.
		events.OnPaint(s.id, pixels, size, nil)
	}
	ackErr := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.ScreencastFrameAck(frame.SessionID).Do(ctx)
	}))
	if ackErr != nil {
		e.logger.Trace("cdp frame ack failed", "session", s.id, "err", ackErr)
	}
}

func (e *Engine) dropSession(s *session) {
	e.mu.Lock()
	delete(e.sessions, s.id)
	e.mu.Unlock()
	s.cancel()
}
