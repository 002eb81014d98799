package controlapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/bezel/core"
	"pkt.systems/bezel/internal/logx"
	"pkt.systems/bezel/internal/version"
	"pkt.systems/bezel/schema"
)

// Server exposes the tab registry over a local HTTP control channel.
// Requests address tabs by their current position in the tab strip; the
// server translates a position into a handle fresh on every request, so
// concurrent closes shift positions but never resurrect stale handles.
type Server struct {
	service core.Service
	hub     *Hub
	baseCtx context.Context
}

// NewServer constructs the control server.
func NewServer(service core.Service, hub *Hub) *Server {
	return &Server{service: service, hub: hub, baseCtx: context.Background()}
}

// SetBaseContext sets the context handlers fall back to for logging.
func (s *Server) SetBaseContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tabs", s.handleTabs)
	mux.HandleFunc("/api/tabs/close", s.handleClose)
	mux.HandleFunc("/api/tabs/activate", s.handleActivate)
	mux.HandleFunc("/api/resize", s.handleResize)
	mux.HandleFunc("/api/navigate", s.handleNavigate)
	mux.HandleFunc("/api/back", s.historyHandler("back", s.service.GoBack))
	mux.HandleFunc("/api/forward", s.historyHandler("forward", s.service.GoForward))
	mux.HandleFunc("/api/reload", s.historyHandler("reload", s.service.Reload))
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/healthz", s.handleHealthz)
	return withRequestLogging(mux)
}

// tabRef addresses a tab by strip position. A negative index means "the
// active tab" for operations where that is a sensible default.
type tabRef struct {
	Index *int `json:"index"`
}

func (s *Server) resolveRef(ref tabRef) (schema.TabHandle, error) {
	if ref.Index == nil {
		return 0, fmt.Errorf("%w: index is required", schema.ErrInvalidRequest)
	}
	return s.service.HandleAt(*ref.Index)
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListTabs(r.Context(), schema.ListTabsRequest{})
		if err != nil {
			log.Warn("http tabs list failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http tabs list ok", "count", len(resp.Tabs))
	case http.MethodPost:
		var payload struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http tabs decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.CreateTab(r.Context(), schema.CreateTabRequest{
			URL:         payload.URL,
			LogicalSize: schema.Size{Width: payload.Width, Height: payload.Height},
		})
		if err != nil {
			log.Warn("http tabs create failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http tabs create ok", "tab", uint64(resp.Tab.Handle), "url", resp.Tab.URL)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload tabRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	handle, err := s.resolveRef(payload)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp, err := s.service.CloseTab(r.Context(), schema.CloseTabRequest{Handle: handle})
	if err != nil {
		log.Warn("http tab close failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http tab close ok", "tab", uint64(resp.Tab.Handle))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload tabRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	handle, err := s.resolveRef(payload)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp, err := s.service.ActivateTab(r.Context(), schema.ActivateTabRequest{Handle: handle})
	if err != nil {
		log.Warn("http activate failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http activate ok", "tab", uint64(resp.Tab.Handle))
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.Resize(r.Context(), schema.ResizeRequest{
		LogicalSize: schema.Size{Width: payload.Width, Height: payload.Height},
	})
	if err != nil {
		log.Warn("http resize failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http resize ok", "width", payload.Width, "height", payload.Height)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		Index *int   `json:"index"`
		URL   string `json:"url"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	handle, err := s.resolveRef(tabRef{Index: payload.Index})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp, err := s.service.Navigate(r.Context(), schema.NavigateRequest{Handle: handle, URL: payload.URL})
	if err != nil {
		log.Warn("http navigate failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http navigate ok", "tab", uint64(resp.Tab.Handle), "url", payload.URL)
}

func (s *Server) historyHandler(op string, move func(context.Context, schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		log := logx.Ctx(r.Context())
		var payload tabRef
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		handle, err := s.resolveRef(payload)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		resp, err := move(r.Context(), schema.HistoryMoveRequest{Handle: handle})
		if err != nil {
			log.Warn("http history move failed", "op", op, "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http history move ok", "op", op, "tab", uint64(resp.Tab.Handle))
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	snapshot := s.buildSnapshot(r.Context())
	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
		flusher.Flush()
	}

	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "tabs", len(snapshot.Tabs))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(ctx context.Context) SnapshotPayload {
	resp, err := s.service.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		return SnapshotPayload{}
	}
	return SnapshotPayload{
		Tabs:        resp.Tabs,
		ActiveTab:   resp.ActiveTab,
		ActiveIndex: resp.ActiveIndex,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": version.Current(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrTabNotFound), errors.Is(err, schema.ErrNoTabs):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrEngineSession):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
