package bezel

import (
	"pkt.systems/bezel/core"
	"pkt.systems/bezel/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}

func (f eventFanout) OnFrameEvent(event schema.FrameEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnFrameEvent(event)
	}
}
