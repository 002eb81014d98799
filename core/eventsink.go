package core

import "pkt.systems/bezel/schema"

// EventSink receives tab lifecycle and frame events from the registry.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
	OnFrameEvent(event schema.FrameEvent)
}
