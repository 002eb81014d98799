package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pkt.systems/bezel/schema"
)

// fakeService implements core.Service with an in-memory tab strip.
type fakeService struct {
	tabs   []schema.TabSnapshot
	active schema.TabHandle
	next   schema.TabHandle
	calls  []string
}

func newFakeService() *fakeService {
	return &fakeService{next: 1}
}

func (f *fakeService) CreateTab(_ context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	if strings.TrimSpace(req.URL) == "" {
		return schema.CreateTabResponse{}, schema.ErrInvalidURL
	}
	tab := schema.TabSnapshot{Handle: f.next, URL: req.URL, Title: "New Tab", LogicalSize: req.LogicalSize}
	f.next++
	f.tabs = append(f.tabs, tab)
	f.active = tab.Handle
	f.calls = append(f.calls, "create")
	return schema.CreateTabResponse{Tab: tab}, nil
}

func (f *fakeService) CloseTab(_ context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	for i, tab := range f.tabs {
		if tab.Handle == req.Handle {
			f.tabs = append(f.tabs[:i], f.tabs[i+1:]...)
			f.calls = append(f.calls, "close")
			return schema.CloseTabResponse{Tab: tab}, nil
		}
	}
	return schema.CloseTabResponse{}, schema.ErrTabNotFound
}

func (f *fakeService) ActivateTab(_ context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	for _, tab := range f.tabs {
		if tab.Handle == req.Handle {
			f.active = req.Handle
			f.calls = append(f.calls, "activate")
			return schema.ActivateTabResponse{Tab: tab}, nil
		}
	}
	return schema.ActivateTabResponse{}, schema.ErrTabNotFound
}

func (f *fakeService) ListTabs(context.Context, schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	activeIndex := -1
	for i, tab := range f.tabs {
		if tab.Handle == f.active {
			activeIndex = i
		}
	}
	return schema.ListTabsResponse{Tabs: f.tabs, ActiveTab: f.active, ActiveIndex: activeIndex}, nil
}

func (f *fakeService) GetTab(_ context.Context, req schema.GetTabRequest) (schema.GetTabResponse, error) {
	for _, tab := range f.tabs {
		if tab.Handle == req.Handle {
			return schema.GetTabResponse{Tab: tab}, nil
		}
	}
	return schema.GetTabResponse{}, schema.ErrTabNotFound
}

func (f *fakeService) Resize(_ context.Context, req schema.ResizeRequest) (schema.ResizeResponse, error) {
	if req.LogicalSize.IsEmpty() {
		return schema.ResizeResponse{}, schema.ErrInvalidSize
	}
	for i := range f.tabs {
		f.tabs[i].LogicalSize = req.LogicalSize
	}
	f.calls = append(f.calls, "resize")
	return schema.ResizeResponse{Tabs: f.tabs}, nil
}

func (f *fakeService) Navigate(_ context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error) {
	for i, tab := range f.tabs {
		if tab.Handle == req.Handle {
			f.tabs[i].URL = req.URL
			f.calls = append(f.calls, "navigate")
			return schema.NavigateResponse{Tab: f.tabs[i]}, nil
		}
	}
	return schema.NavigateResponse{}, schema.ErrTabNotFound
}

func (f *fakeService) GoBack(_ context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error) {
	return f.historyMove(req, "back")
}

func (f *fakeService) GoForward(_ context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error) {
	return f.historyMove(req, "forward")
}

func (f *fakeService) Reload(_ context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error) {
	return f.historyMove(req, "reload")
}

func (f *fakeService) historyMove(req schema.HistoryMoveRequest, op string) (schema.HistoryMoveResponse, error) {
	for _, tab := range f.tabs {
		if tab.Handle == req.Handle {
			f.calls = append(f.calls, op)
			return schema.HistoryMoveResponse{Tab: tab}, nil
		}
	}
	return schema.HistoryMoveResponse{}, schema.ErrTabNotFound
}

func (f *fakeService) HandleAt(index int) (schema.TabHandle, error) {
	if index < 0 || index >= len(f.tabs) {
		return 0, schema.ErrTabNotFound
	}
	return f.tabs[index].Handle, nil
}

func (f *fakeService) IndexOf(handle schema.TabHandle) (int, error) {
	for i, tab := range f.tabs {
		if tab.Handle == handle {
			return i, nil
		}
	}
	return 0, schema.ErrTabNotFound
}

func newTestServer(t *testing.T) (*Server, *fakeService) {
	t.Helper()
	service := newFakeService()
	return NewServer(service, NewHub(16)), service
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndListTabs(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/tabs", `{"url":"https://example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	var created schema.CreateTabResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.Tab.URL != "https://example.com" {
		t.Fatalf("tab = %+v", created.Tab)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/tabs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list schema.ListTabsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Tabs) != 1 || list.ActiveIndex != 0 {
		t.Fatalf("list = %+v", list)
	}
}

func TestCreateTabRejectsEmptyURL(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/tabs", `{"url":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCloseTabByIndex(t *testing.T) {
	server, service := newTestServer(t)
	handler := server.Handler()
	doJSON(t, handler, http.MethodPost, "/api/tabs", `{"url":"https://a.example"}`)
	doJSON(t, handler, http.MethodPost, "/api/tabs", `{"url":"https://b.example"}`)

	rec := doJSON(t, handler, http.MethodPost, "/api/tabs/close", `{"index":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d body %s", rec.Code, rec.Body.String())
	}
	var closed schema.CloseTabResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &closed); err != nil {
		t.Fatalf("decode close: %v", err)
	}
	if closed.Tab.URL != "https://a.example" {
		t.Fatalf("closed wrong tab: %+v", closed.Tab)
	}
	if len(service.tabs) != 1 {
		t.Fatalf("tabs left = %d", len(service.tabs))
	}

	// Index translation happens fresh per request; position 0 is now the
	// surviving tab.
	rec = doJSON(t, handler, http.MethodPost, "/api/tabs/close", `{"index":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("second close status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/tabs/close", `{"index":0}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("close on empty strip status = %d, want 404", rec.Code)
	}
}

func TestCloseRequiresIndex(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/tabs/close", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestActivateResizeNavigateHistory(t *testing.T) {
	server, service := newTestServer(t)
	handler := server.Handler()
	doJSON(t, handler, http.MethodPost, "/api/tabs", `{"url":"https://a.example"}`)
	doJSON(t, handler, http.MethodPost, "/api/tabs", `{"url":"https://b.example"}`)

	if rec := doJSON(t, handler, http.MethodPost, "/api/tabs/activate", `{"index":0}`); rec.Code != http.StatusOK {
		t.Fatalf("activate status = %d", rec.Code)
	}
	if service.active != service.tabs[0].Handle {
		t.Fatalf("active = %d", service.active)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/resize", `{"width":800,"height":600}`); rec.Code != http.StatusOK {
		t.Fatalf("resize status = %d", rec.Code)
	}
	if service.tabs[1].LogicalSize != (schema.Size{Width: 800, Height: 600}) {
		t.Fatalf("resize did not cascade: %+v", service.tabs[1].LogicalSize)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/navigate", `{"index":1,"url":"https://c.example"}`); rec.Code != http.StatusOK {
		t.Fatalf("navigate status = %d", rec.Code)
	}
	if service.tabs[1].URL != "https://c.example" {
		t.Fatalf("navigate did not apply: %q", service.tabs[1].URL)
	}
	for _, path := range []string{"/api/back", "/api/forward", "/api/reload"} {
		if rec := doJSON(t, handler, http.MethodPost, path, `{"index":0}`); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()
	for _, path := range []string{"/api/tabs/close", "/api/tabs/activate", "/api/resize", "/api/navigate", "/api/back"} {
		if rec := doJSON(t, handler, http.MethodGet, path, ""); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s status = %d, want 405", path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestStreamSendsSnapshotAndReplay(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()
	doJSON(t, handler, http.MethodPost, "/api/tabs", `{"url":"https://a.example"}`)
	server.hub.OnTabEvent(schema.TabEvent{Type: schema.TabEventCreated, Tab: schema.TabSnapshot{Handle: 1}, ActiveTab: 1})
	server.hub.OnFrameEvent(schema.FrameEvent{Handle: 1, Seq: 7})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"snapshot"`) {
		t.Fatalf("stream body missing snapshot: %s", body)
	}

	// A reconnect with Last-Event-ID replays missed events.
	req = httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	body = rec.Body.String()
	if !strings.Contains(body, `"type":"frame"`) {
		t.Fatalf("replay missing frame event: %s", body)
	}
	if strings.Contains(body, `"type":"tab"`) {
		t.Fatalf("replay should skip events at or before last id: %s", body)
	}
}

func TestHubHistoryBounded(t *testing.T) {
	hub := NewHub(4)
	for i := 0; i < 10; i++ {
		hub.OnFrameEvent(schema.FrameEvent{Handle: 1, Seq: uint64(i)})
	}
	events := hub.Replay(0)
	if len(events) != 4 {
		t.Fatalf("history = %d events, want 4", len(events))
	}
	if events[0].Seq != 7 {
		t.Fatalf("oldest kept seq = %d, want 7", events[0].Seq)
	}
}

func TestHubSubscribeReceivesEvents(t *testing.T) {
	hub := NewHub(8)
	ch, unsub := hub.Subscribe()
	defer unsub()
	hub.OnTabEvent(schema.TabEvent{Type: schema.TabEventActivated, ActiveTab: 3})
	event := <-ch
	if event.Type != "tab" || event.TabEvent != "activated" || event.ActiveTab != 3 {
		t.Fatalf("event = %+v", event)
	}
}

func TestHubUnsubscribeLeavesChannelOpen(t *testing.T) {
	hub := NewHub(8)
	ch, unsub := hub.Subscribe()
	unsub()
	// A publish racing a disconnect may still hold the channel from a copy
	// of the subscriber set; the send must stay safe after unsubscribe.
	hub.OnTabEvent(schema.TabEvent{Type: schema.TabEventCreated, ActiveTab: 1})
	select {
	case _, open := <-ch:
		if !open {
			t.Fatal("unsubscribe closed the channel")
		}
		t.Fatal("event delivered after unsubscribe")
	default:
	}
}

func TestHubConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub(64)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		_, unsub := hub.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub()
		}()
		go func(seq int) {
			defer wg.Done()
			hub.OnFrameEvent(schema.FrameEvent{Handle: 1, Seq: uint64(seq)})
		}(i)
	}
	wg.Wait()
}
