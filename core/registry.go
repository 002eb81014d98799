package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/bezel/internal/logx"
	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

// Registry owns the ordered set of open tabs, their engine sessions, and
// their frame buffers.
//
// One mutex guards the tab collection, the active cursor, the session index,
// AND every tab's frame buffer contents. Engine callbacks and UI/control
// calls both go through that lock, so a paint can never write into a buffer
// the compositor is reading, and a close can never race a lookup into
// use-after-free territory. CopyActiveFrame hands the compositor its own
// copy of the pixels; the lock is never held across a GPU upload.
type Registry struct {
	cfg    schema.RegistryConfig
	engine Engine
	sink   EventSink
	logger pslog.Logger

	mu         sync.Mutex
	tabs       map[schema.TabHandle]*tab
	order      []schema.TabHandle
	sessions   map[schema.SessionID]schema.TabHandle
	active     schema.TabHandle
	nextHandle schema.TabHandle
	logical    schema.Size
}

// NewRegistry constructs a tab registry. The initial logical surface size
// applies to tabs created without an explicit size.
func NewRegistry(cfg schema.RegistryConfig, logical schema.Size, deps RegistryDeps) (*Registry, error) {
	normalized, err := schema.NormalizeRegistryConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Engine == nil {
		return nil, errors.New("engine dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if logical.IsEmpty() {
		logical = schema.Size{Width: 1024, Height: 768}
	}
	return &Registry{
		cfg:        normalized,
		engine:     deps.Engine,
		sink:       deps.EventSink,
		logger:     logger,
		tabs:       make(map[schema.TabHandle]*tab),
		sessions:   make(map[schema.SessionID]schema.TabHandle),
		nextHandle: 1,
		logical:    logical,
	}, nil
}

func (r *Registry) limits() frameLimits {
	return frameLimits{
		maxWidth:  r.cfg.MaxFrameWidth,
		maxHeight: r.cfg.MaxFrameHeight,
		maxBytes:  r.cfg.MaxFrameBytes,
	}
}

// CreateTab opens an engine session against the requested url, allocates the
// tab's frame buffer, and makes the new tab active. On engine refusal no tab
// is added.
func (r *Registry) CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	if ctx == nil {
		return schema.CreateTabResponse{}, errors.New("missing context")
	}
	if strings.TrimSpace(req.URL) == "" {
		return schema.CreateTabResponse{}, schema.ErrInvalidURL
	}
	log := logx.Ctx(ctx)
	log.Info("registry tab create start", "url", req.URL)

	r.mu.Lock()
	logical := req.LogicalSize
	if logical.IsEmpty() {
		logical = r.logical
	}
	window := r.logical
	viewport := schema.Viewport{Logical: logical, Scale: r.cfg.ScaleFactor}
	r.mu.Unlock()

	buffer, err := allocateFrameBuffer(viewport.Physical(), r.limits())
	if err != nil {
		log.Warn("registry tab create failed", "err", err)
		return schema.CreateTabResponse{}, err
	}
	session, err := r.engine.CreateSession(ctx, req.URL, viewport)
	if err != nil {
		log.Warn("registry tab create failed", "err", err)
		return schema.CreateTabResponse{}, fmt.Errorf("%w: %v", schema.ErrEngineSession, err)
	}

	r.mu.Lock()
	handle := r.nextHandle
	r.nextHandle++
	// A Resize landing while the session was opening cascades over the
	// tabs present at that moment; this tab was not among them. Catch the
	// buffer and the engine viewport up here, or the tab stays at the
	// stale size forever because Resize short-circuits on equal sizes.
	catchUp := false
	var allocErr error
	if r.logical != window {
		fresh := schema.Viewport{Logical: r.logical, Scale: r.cfg.ScaleFactor}
		if grown, err := allocateFrameBuffer(fresh.Physical(), r.limits()); err != nil {
			allocErr = err
		} else {
			logical = r.logical
			viewport = fresh
			buffer = grown
			catchUp = true
		}
	}
	t := &tab{
		Handle:  handle,
		Session: session,
		Title:   r.cfg.DefaultTitle,
		URL:     req.URL,
		Loading: true,
		Logical: logical,
		buffer:  buffer,
	}
	r.tabs[handle] = t
	r.order = append(r.order, handle)
	r.sessions[session] = handle
	r.active = handle
	snap := t.Snapshot(true)
	event := schema.TabEvent{Type: schema.TabEventCreated, Tab: snap, ActiveTab: handle}
	r.mu.Unlock()

	r.emitTabEvent(event)
	tabLog := logx.WithSession(log.With("tab", uint64(handle)), session)
	if allocErr != nil {
		tabLog.Warn("registry buffer realloc failed", "err", allocErr)
	}
	if catchUp {
		if err := r.engine.Resize(ctx, session, viewport); err != nil {
			tabLog.Warn("registry engine resize failed", "err", err)
		}
	}
	tabLog.Info("registry tab created",
		"physical_w", snap.PhysicalSize.Width, "physical_h", snap.PhysicalSize.Height)
	return schema.CreateTabResponse{Tab: snap}, nil
}

// CloseTab removes the tab from the collection and requests engine teardown.
// Removal happens first, under the lock: once a handle is gone it stays
// gone, so a paint callback racing the close lands on "session not found"
// instead of a freed buffer. Teardown errors are best-effort logged.
func (r *Registry) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	if ctx == nil {
		return schema.CloseTabResponse{}, errors.New("missing context")
	}
	log := logx.WithTab(ctx, req.Handle)

	r.mu.Lock()
	t := r.tabs[req.Handle]
	if t == nil {
		r.mu.Unlock()
		log.Warn("registry tab close failed", "err", schema.ErrTabNotFound)
		return schema.CloseTabResponse{}, schema.ErrTabNotFound
	}
	idx := indexOfHandle(r.order, req.Handle)
	delete(r.tabs, req.Handle)
	delete(r.sessions, t.Session)
	r.order = removeHandle(r.order, req.Handle)
	if r.active == req.Handle {
		r.active = 0
		if idx > 0 {
			r.active = r.order[idx-1]
		} else if len(r.order) > 0 {
			r.active = r.order[0]
		}
	}
	active := r.active
	snap := t.Snapshot(false)
	event := schema.TabEvent{Type: schema.TabEventClosed, Tab: snap, ActiveTab: active}
	session := t.Session
	r.mu.Unlock()

	r.emitTabEvent(event)
	if err := r.engine.CloseSession(ctx, session); err != nil {
		logx.WithSession(log, session).Warn("registry session close failed", "err", err)
	}
	log.Info("registry tab closed", "active", uint64(active))
	return schema.CloseTabResponse{Tab: snap}, nil
}

// ActivateTab moves the active cursor to the tab with the given handle.
func (r *Registry) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	log := logx.WithTab(ctx, req.Handle)

	r.mu.Lock()
	t := r.tabs[req.Handle]
	if t == nil {
		r.mu.Unlock()
		log.Warn("registry tab activate failed", "err", schema.ErrTabNotFound)
		return schema.ActivateTabResponse{}, schema.ErrTabNotFound
	}
	r.active = req.Handle
	snap := t.Snapshot(true)
	event := schema.TabEvent{Type: schema.TabEventActivated, Tab: snap, ActiveTab: req.Handle}
	r.mu.Unlock()

	r.emitTabEvent(event)
	log.Info("registry tab activated")
	return schema.ActivateTabResponse{Tab: snap}, nil
}

// ListTabs reports all tabs in order plus the active cursor.
func (r *Registry) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	_ = req
	log := logx.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	tabs := make([]schema.TabSnapshot, 0, len(r.order))
	activeIndex := -1
	for i, handle := range r.order {
		t := r.tabs[handle]
		if t == nil {
			continue
		}
		if handle == r.active {
			activeIndex = i
		}
		tabs = append(tabs, t.Snapshot(handle == r.active))
	}
	log.Trace("registry tabs listed", "count", len(tabs), "active", uint64(r.active))
	return schema.ListTabsResponse{Tabs: tabs, ActiveTab: r.active, ActiveIndex: activeIndex}, nil
}

// GetTab returns a snapshot of one tab. Safe to call from any thread.
func (r *Registry) GetTab(ctx context.Context, req schema.GetTabRequest) (schema.GetTabResponse, error) {
	log := logx.WithTab(ctx, req.Handle)

	r.mu.Lock()
	t := r.tabs[req.Handle]
	if t == nil {
		r.mu.Unlock()
		log.Trace("registry tab get failed", "err", schema.ErrTabNotFound)
		return schema.GetTabResponse{}, schema.ErrTabNotFound
	}
	snap := t.Snapshot(req.Handle == r.active)
	r.mu.Unlock()
	return schema.GetTabResponse{Tab: snap}, nil
}

// Resize reallocates every tab's frame buffer for the new logical surface
// size and notifies each engine session of its new viewport. Inactive tabs
// resize too, so switching to one never shows a stale-size paint.
func (r *Registry) Resize(ctx context.Context, req schema.ResizeRequest) (schema.ResizeResponse, error) {
	if ctx == nil {
		return schema.ResizeResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)
	viewport := schema.Viewport{Logical: req.LogicalSize, Scale: r.cfg.ScaleFactor}
	physical := viewport.Physical()
	if err := r.limits().check(physical); err != nil {
		log.Warn("registry resize rejected", "err", err)
		return schema.ResizeResponse{}, err
	}

	r.mu.Lock()
	if r.logical == req.LogicalSize {
		tabs := r.snapshotsLocked()
		r.mu.Unlock()
		return schema.ResizeResponse{Tabs: tabs}, nil
	}
	r.logical = req.LogicalSize
	sessions := make([]schema.SessionID, 0, len(r.order))
	events := make([]schema.TabEvent, 0, len(r.order))
	for _, handle := range r.order {
		t := r.tabs[handle]
		if t == nil {
			continue
		}
		buffer, err := allocateFrameBuffer(physical, r.limits())
		if err != nil {
			// Size was validated above; per-tab failure means allocation
			// pressure. Keep the old buffer rather than losing the tab.
			logx.WithTab(ctx, handle).Warn("registry buffer realloc failed", "err", err)
			continue
		}
		t.Logical = req.LogicalSize
		t.buffer = buffer
		t.frameSeq++
		sessions = append(sessions, t.Session)
		events = append(events, schema.TabEvent{
			Type:      schema.TabEventResized,
			Tab:       t.Snapshot(handle == r.active),
			ActiveTab: r.active,
		})
	}
	tabs := r.snapshotsLocked()
	r.mu.Unlock()

	for _, event := range events {
		r.emitTabEvent(event)
	}
	var firstErr error
	for _, session := range sessions {
		if err := r.engine.Resize(ctx, session, viewport); err != nil {
			logx.WithSession(log, session).Warn("registry engine resize failed", "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", schema.ErrEngineSession, err)
			}
		}
	}
	if firstErr != nil {
		return schema.ResizeResponse{Tabs: tabs}, firstErr
	}
	log.Info("registry resized", "logical_w", req.LogicalSize.Width, "logical_h", req.LogicalSize.Height, "tabs", len(tabs))
	return schema.ResizeResponse{Tabs: tabs}, nil
}

// Navigate loads a new url in the given tab's session.
func (r *Registry) Navigate(ctx context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error) {
	if strings.TrimSpace(req.URL) == "" {
		return schema.NavigateResponse{}, schema.ErrInvalidURL
	}
	log := logx.WithTab(ctx, req.Handle)
	session, snap, err := r.sessionFor(req.Handle)
	if err != nil {
		log.Warn("registry navigate failed", "err", err)
		return schema.NavigateResponse{}, err
	}
	if err := r.engine.Navigate(ctx, session, req.URL); err != nil {
		logx.WithSession(log, session).Warn("registry navigate failed", "err", err)
		return schema.NavigateResponse{}, fmt.Errorf("%w: %v", schema.ErrEngineSession, err)
	}
	log.Info("registry navigate issued", "url", req.URL)
	return schema.NavigateResponse{Tab: snap}, nil
}

// GoBack moves the tab one history step back.
func (r *Registry) GoBack(ctx context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error) {
	return r.historyMove(ctx, req, "back", r.engine.GoBack)
}

// GoForward moves the tab one history step forward.
func (r *Registry) GoForward(ctx context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error) {
	return r.historyMove(ctx, req, "forward", r.engine.GoForward)
}

// Reload reloads the tab's current page.
func (r *Registry) Reload(ctx context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error) {
	return r.historyMove(ctx, req, "reload", r.engine.Reload)
}

func (r *Registry) historyMove(ctx context.Context, req schema.HistoryMoveRequest, op string, move func(context.Context, schema.SessionID) error) (schema.HistoryMoveResponse, error) {
	log := logx.WithTab(ctx, req.Handle)
	session, snap, err := r.sessionFor(req.Handle)
	if err != nil {
		log.Warn("registry history move failed", "op", op, "err", err)
		return schema.HistoryMoveResponse{}, err
	}
	if err := move(ctx, session); err != nil {
		logx.WithSession(log, session).Warn("registry history move failed", "op", op, "err", err)
		return schema.HistoryMoveResponse{}, fmt.Errorf("%w: %v", schema.ErrEngineSession, err)
	}
	log.Debug("registry history move issued", "op", op)
	return schema.HistoryMoveResponse{Tab: snap}, nil
}

func (r *Registry) sessionFor(handle schema.TabHandle) (schema.SessionID, schema.TabSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tabs[handle]
	if t == nil {
		return "", schema.TabSnapshot{}, schema.ErrTabNotFound
	}
	return t.Session, t.Snapshot(handle == r.active), nil
}

// TabCount returns the number of open tabs.
func (r *Registry) TabCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// ActiveHandle returns the handle of the active tab, or zero when none.
func (r *Registry) ActiveHandle() schema.TabHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// HandleAt translates a positional index into a tab handle. Positions shift
// on close, so callers must re-translate fresh on every call and never cache
// the result across operations.
func (r *Registry) HandleAt(index int) (schema.TabHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.order) {
		return 0, schema.ErrTabNotFound
	}
	return r.order[index], nil
}

// IndexOf returns the current position of a handle in the tab order.
func (r *Registry) IndexOf(handle schema.TabHandle) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := indexOfHandle(r.order, handle); idx >= 0 {
		return idx, nil
	}
	return 0, schema.ErrTabNotFound
}

// ActiveSession returns the engine session of the tab that is active right
// now. Input dispatch resolves through here on every event.
func (r *Registry) ActiveSession() (schema.SessionID, schema.TabHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tabs[r.active]
	if t == nil {
		return "", 0, false
	}
	return t.Session, t.Handle, true
}

// CopyActiveFrame copies the active tab's pixels into dst, growing it as
// needed, and reports the frame geometry. The returned slice aliases dst,
// never registry-owned storage, so the caller may upload it to the GPU
// without holding any lock. Returns false when there is no frame to show.
func (r *Registry) CopyActiveFrame(dst []byte) ([]byte, schema.FrameInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tabs[r.active]
	if t == nil || !t.buffer.valid() {
		return dst, schema.FrameInfo{}, false
	}
	need := len(t.buffer.pixels)
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	copy(dst, t.buffer.pixels)
	info := schema.FrameInfo{
		Handle: t.Handle,
		Size:   t.buffer.size,
		Stride: t.buffer.stride,
		Seq:    t.frameSeq,
	}
	return dst, info, true
}

// LogicalSize returns the current shared surface size.
func (r *Registry) LogicalSize() schema.Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logical
}

// Engine callbacks. These arrive on the engine's execution context and take
// the same lock as UI/control calls.

// OnPaint implements EngineEvents. A paint for a session that has already
// been closed is a no-op; copy failures keep the previous frame.
func (r *Registry) OnPaint(session schema.SessionID, pixels []byte, size schema.Size, dirty []schema.Rect) {
	r.mu.Lock()
	handle, ok := r.sessions[session]
	t := r.tabs[handle]
	if !ok || t == nil {
		r.mu.Unlock()
		r.logger.Trace("registry paint for unknown session", "session", session)
		return
	}
	err := t.buffer.copyDirty(pixels, size, dirty)
	if err != nil {
		r.mu.Unlock()
		r.logger.Warn("registry paint skipped", "tab", uint64(handle), "err", err)
		return
	}
	t.frameSeq++
	event := schema.FrameEvent{Handle: handle, Seq: t.frameSeq, Size: t.buffer.size}
	r.mu.Unlock()
	r.emitFrameEvent(event)
}

// OnTitleChanged implements EngineEvents.
func (r *Registry) OnTitleChanged(session schema.SessionID, title string) {
	r.updateTab(session, "title", func(t *tab) { t.Title = title })
}

// OnURLChanged implements EngineEvents.
func (r *Registry) OnURLChanged(session schema.SessionID, url string) {
	r.updateTab(session, "url", func(t *tab) { t.URL = url })
}

// OnLoadingStateChanged implements EngineEvents.
func (r *Registry) OnLoadingStateChanged(session schema.SessionID, loading bool) {
	r.updateTab(session, "loading", func(t *tab) { t.Loading = loading })
}

// OnSessionTerminated implements EngineEvents. The engine already tore the
// session down, so the tab is removed without a CloseSession round trip.
func (r *Registry) OnSessionTerminated(session schema.SessionID, reason string) {
	r.mu.Lock()
	handle, ok := r.sessions[session]
	t := r.tabs[handle]
	if !ok || t == nil {
		r.mu.Unlock()
		r.logger.Trace("registry termination for unknown session", "session", session)
		return
	}
	idx := indexOfHandle(r.order, handle)
	delete(r.tabs, handle)
	delete(r.sessions, session)
	r.order = removeHandle(r.order, handle)
	if r.active == handle {
		r.active = 0
		if idx > 0 {
			r.active = r.order[idx-1]
		} else if len(r.order) > 0 {
			r.active = r.order[0]
		}
	}
	event := schema.TabEvent{Type: schema.TabEventClosed, Tab: t.Snapshot(false), ActiveTab: r.active}
	r.mu.Unlock()

	r.emitTabEvent(event)
	r.logger.Warn("registry session terminated", "tab", uint64(handle), "session", session, "reason", reason)
}

func (r *Registry) updateTab(session schema.SessionID, field string, apply func(*tab)) {
	r.mu.Lock()
	handle, ok := r.sessions[session]
	t := r.tabs[handle]
	if !ok || t == nil {
		r.mu.Unlock()
		r.logger.Trace("registry update for unknown session", "session", session, "field", field)
		return
	}
	apply(t)
	event := schema.TabEvent{
		Type:      schema.TabEventUpdated,
		Tab:       t.Snapshot(handle == r.active),
		ActiveTab: r.active,
	}
	r.mu.Unlock()
	r.emitTabEvent(event)
}

func (r *Registry) snapshotsLocked() []schema.TabSnapshot {
	tabs := make([]schema.TabSnapshot, 0, len(r.order))
	for _, handle := range r.order {
		t := r.tabs[handle]
		if t == nil {
			continue
		}
		tabs = append(tabs, t.Snapshot(handle == r.active))
	}
	return tabs
}

func (r *Registry) emitTabEvent(event schema.TabEvent) {
	if r.sink == nil {
		return
	}
	r.sink.OnTabEvent(event)
}

func (r *Registry) emitFrameEvent(event schema.FrameEvent) {
	if r.sink == nil {
		return
	}
	r.sink.OnFrameEvent(event)
}

func indexOfHandle(order []schema.TabHandle, handle schema.TabHandle) int {
	for i, current := range order {
		if current == handle {
			return i
		}
	}
	return -1
}

func removeHandle(order []schema.TabHandle, handle schema.TabHandle) []schema.TabHandle {
	for i, current := range order {
		if current == handle {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
