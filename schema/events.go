package schema

// TabEventType classifies registry lifecycle events.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created.
	TabEventCreated TabEventType = "created"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventActivated indicates the active tab changed.
	TabEventActivated TabEventType = "activated"
	// TabEventUpdated indicates tab metadata (title, url, loading) changed.
	TabEventUpdated TabEventType = "updated"
	// TabEventResized indicates the tab's rendering surface was reallocated.
	TabEventResized TabEventType = "resized"
)

// TabEvent notifies transports about registry state changes.
type TabEvent struct {
	Type      TabEventType `json:"type"`
	Tab       TabSnapshot  `json:"tab"`
	ActiveTab TabHandle    `json:"active_tab"`
}

// FrameEvent notifies that a tab has a newer frame than the last one
// composited. Carries no pixels; readers snapshot the frame store themselves.
type FrameEvent struct {
	Handle TabHandle `json:"handle"`
	Seq    uint64    `json:"seq"`
	Size   Size      `json:"size"`
}
