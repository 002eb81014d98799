package core

import "pkt.systems/bezel/schema"

// tab tracks the state of a single open tab. Owned exclusively by the
// registry; every field is guarded by the registry mutex.
type tab struct {
	Handle  schema.TabHandle
	Session schema.SessionID
	Title   string
	URL     string
	Loading bool
	Logical schema.Size
	buffer  *frameBuffer

	// frameSeq increments on every accepted paint and on buffer replacement,
	// so the compositor can detect stale uploads.
	frameSeq uint64
}

// Snapshot returns a transport-friendly view of the tab.
func (t *tab) Snapshot(active bool) schema.TabSnapshot {
	snap := schema.TabSnapshot{
		Handle:      t.Handle,
		Session:     t.Session,
		Title:       t.Title,
		URL:         t.URL,
		Loading:     t.Loading,
		Active:      active,
		LogicalSize: t.Logical,
	}
	if t.buffer.valid() {
		snap.PhysicalSize = t.buffer.size
	}
	return snap
}
