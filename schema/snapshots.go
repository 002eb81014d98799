package schema

// TabSnapshot is a read-only view of tab state for transports. It carries no
// references into registry-owned storage and is safe to hold across calls.
type TabSnapshot struct {
	Handle       TabHandle `json:"handle"`
	Session      SessionID `json:"session"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Loading      bool      `json:"loading"`
	Active       bool      `json:"active"`
	LogicalSize  Size      `json:"logical_size"`
	PhysicalSize Size      `json:"physical_size"`
}

// FrameInfo describes the frame copied out of the frame store for compositing.
type FrameInfo struct {
	Handle TabHandle `json:"handle"`
	Size   Size      `json:"size"`
	Stride int       `json:"stride"`
	Seq    uint64    `json:"seq"`
}
