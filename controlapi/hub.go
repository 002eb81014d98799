package controlapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64              `json:"seq"`
	Type      string              `json:"type"`
	TabEvent  string              `json:"tab_event,omitempty"`
	Tab       *schema.TabSnapshot `json:"tab,omitempty"`
	ActiveTab schema.TabHandle    `json:"active_tab,omitempty"`
	Frame     *schema.FrameEvent  `json:"frame,omitempty"`
	Snapshot  *SnapshotPayload    `json:"snapshot,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Tabs        []schema.TabSnapshot `json:"tabs"`
	ActiveTab   schema.TabHandle     `json:"active_tab"`
	ActiveIndex int                  `json:"active_index"`
}

// Hub broadcasts registry events to SSE subscribers and keeps a bounded
// history for Last-Event-ID replay.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
	}
}

// OnTabEvent implements core.EventSink.
func (h *Hub) OnTabEvent(event schema.TabEvent) {
	tab := event.Tab
	h.publish(StreamEvent{
		Type:      "tab",
		TabEvent:  string(event.Type),
		Tab:       &tab,
		ActiveTab: event.ActiveTab,
		Timestamp: time.Now(),
	})
}

// OnFrameEvent implements core.EventSink. Frame events announce new frame
// sequence numbers only; pixel data never crosses the control channel.
func (h *Hub) OnFrameEvent(event schema.FrameEvent) {
	frame := event
	h.publish(StreamEvent{
		Type:      "frame",
		Frame:     &frame,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a stream subscriber. The returned cancel func only
// removes the channel from the broadcast set; it is never closed, because
// publish sends outside the lock and may still hold a reference to it.
// Receivers exit through their own context, not through channel close.
func (h *Hub) Subscribe() (<-chan StreamEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	log := pslog.Ctx(context.Background())
	log.Debug("hub subscribe", "subs", len(h.subs))
	unsub := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		remaining := len(h.subs)
		h.mu.Unlock()
		log.Debug("hub unsubscribe", "subs", remaining)
	}
	return ch, unsub
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	subs := make([]chan StreamEvent, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		pslog.Ctx(context.Background()).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
