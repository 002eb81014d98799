package core

import "pkt.systems/pslog"

// RegistryDeps captures dependencies for the tab registry.
type RegistryDeps struct {
	Engine    Engine
	EventSink EventSink
	Logger    pslog.Logger
}
