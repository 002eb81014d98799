package schema

// TabHandle identifies a tab for its whole lifetime. Handles are assigned
// monotonically at creation and never reused, so a stale handle can always be
// detected as "not found" instead of silently addressing another tab.
type TabHandle uint64

// SessionID identifies a browser engine session.
type SessionID string

// Size represents dimensions in pixels (logical or physical depending on context).
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsEmpty reports whether the size has no drawable area.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is a sub-rectangle of a frame buffer in physical pixel coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsEmpty reports whether the rect has no drawable area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// In reports whether the rect lies fully inside a buffer of the given size.
func (r Rect) In(size Size) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= size.Width && r.Y+r.Height <= size.Height
}

// MinScaleFactor is the smallest accepted display scale factor.
const MinScaleFactor = 0.1

// ScaleFactor converts between logical and physical pixel coordinates.
type ScaleFactor float64

// ScaleSize converts a logical size to physical pixels.
func (f ScaleFactor) ScaleSize(logical Size) Size {
	return Size{
		Width:  scaleDim(logical.Width, float64(f)),
		Height: scaleDim(logical.Height, float64(f)),
	}
}

// ScalePoint converts logical point coordinates to physical pixels.
func (f ScaleFactor) ScalePoint(x, y float64) (float64, float64) {
	return x * float64(f), y * float64(f)
}

func scaleDim(v int, f float64) int {
	scaled := int(float64(v)*f + 0.5)
	if v > 0 && scaled < 1 {
		return 1
	}
	return scaled
}

// Viewport describes the engine-visible rendering surface of one tab.
type Viewport struct {
	Logical Size
	Scale   ScaleFactor
}

// Physical returns the viewport size in physical pixels.
func (v Viewport) Physical() Size {
	return v.Scale.ScaleSize(v.Logical)
}
