package core

import (
	"context"

	"pkt.systems/bezel/schema"
)

// Service is the transport-facing surface of the tab registry. Control
// transports (HTTP, tests) depend on this interface rather than on the
// concrete registry.
type Service interface {
	CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	GetTab(ctx context.Context, req schema.GetTabRequest) (schema.GetTabResponse, error)
	Resize(ctx context.Context, req schema.ResizeRequest) (schema.ResizeResponse, error)
	Navigate(ctx context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error)
	GoBack(ctx context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error)
	GoForward(ctx context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error)
	Reload(ctx context.Context, req schema.HistoryMoveRequest) (schema.HistoryMoveResponse, error)

	// HandleAt translates a positional index into a handle, fresh per call.
	HandleAt(index int) (schema.TabHandle, error)
	// IndexOf reports the current position of a handle.
	IndexOf(handle schema.TabHandle) (int, error)
}

var _ Service = (*Registry)(nil)
