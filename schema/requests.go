package schema

// Tab lifecycle.

// CreateTabRequest describes a request to open a tab.
type CreateTabRequest struct {
	URL         string `json:"url"`
	LogicalSize Size   `json:"logical_size,omitempty"`
}

// CreateTabResponse reports the created tab.
type CreateTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// CloseTabRequest describes a request to close a tab.
type CloseTabRequest struct {
	Handle TabHandle `json:"handle"`
}

// CloseTabResponse reports the closed tab snapshot.
type CloseTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// ActivateTabRequest describes a request to switch the active tab.
type ActivateTabRequest struct {
	Handle TabHandle `json:"handle"`
}

// ActivateTabResponse reports the activated tab snapshot.
type ActivateTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// ListTabsRequest describes a request to list open tabs.
type ListTabsRequest struct{}

// ListTabsResponse reports tabs in order plus the active cursor.
type ListTabsResponse struct {
	Tabs        []TabSnapshot `json:"tabs"`
	ActiveTab   TabHandle     `json:"active_tab"`
	ActiveIndex int           `json:"active_index"`
}

// GetTabRequest describes a request for one tab snapshot.
type GetTabRequest struct {
	Handle TabHandle `json:"handle"`
}

// GetTabResponse reports the tab snapshot.
type GetTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// Surface geometry.

// ResizeRequest describes a window-level resize. The new surface size applies
// to every open tab, not only the active one.
type ResizeRequest struct {
	LogicalSize Size `json:"logical_size"`
}

// ResizeResponse reports the tabs after the resize.
type ResizeResponse struct {
	Tabs []TabSnapshot `json:"tabs"`
}

// Navigation.

// NavigateRequest describes a navigation of one tab.
type NavigateRequest struct {
	Handle TabHandle `json:"handle"`
	URL    string    `json:"url"`
}

// NavigateResponse reports the tab after the navigation request was issued.
type NavigateResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// HistoryMoveRequest describes a back/forward/reload request for one tab.
type HistoryMoveRequest struct {
	Handle TabHandle `json:"handle"`
}

// HistoryMoveResponse reports the tab after the request was issued.
type HistoryMoveResponse struct {
	Tab TabSnapshot `json:"tab"`
}
