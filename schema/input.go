package schema

// InputKind classifies a windowing-toolkit input event.
type InputKind string

const (
	// InputPointerMove is a pointer motion event.
	InputPointerMove InputKind = "pointer_move"
	// InputPointerDown is a pointer button press.
	InputPointerDown InputKind = "pointer_down"
	// InputPointerUp is a pointer button release.
	InputPointerUp InputKind = "pointer_up"
	// InputWheel is a scroll event.
	InputWheel InputKind = "wheel"
	// InputKeyDown is a key press.
	InputKeyDown InputKind = "key_down"
	// InputKeyUp is a key release.
	InputKeyUp InputKind = "key_up"
	// InputChar is a text character event.
	InputChar InputKind = "char"
	// InputFocus is a window focus gain.
	InputFocus InputKind = "focus"
	// InputBlur is a window focus loss.
	InputBlur InputKind = "blur"
)

// MouseButton identifies a pointer button.
type MouseButton string

const (
	// MouseButtonNone indicates no button involvement (moves, wheel).
	MouseButtonNone MouseButton = "none"
	// MouseButtonLeft is the primary button.
	MouseButtonLeft MouseButton = "left"
	// MouseButtonMiddle is the middle button.
	MouseButtonMiddle MouseButton = "middle"
	// MouseButtonRight is the secondary button.
	MouseButtonRight MouseButton = "right"
)

// Modifier flags for keyboard state, combinable with bitwise or.
type Modifier int

const (
	// ModShift marks a held shift key.
	ModShift Modifier = 1 << iota
	// ModCtrl marks a held control key.
	ModCtrl
	// ModAlt marks a held alt key.
	ModAlt
	// ModMeta marks a held meta/super key.
	ModMeta
)

// InputEvent is a toolkit input event in logical window coordinates. The
// router resolves the active tab at dispatch time, never earlier.
type InputEvent struct {
	Kind       InputKind
	X, Y       float64
	Button     MouseButton
	ClickCount int
	DeltaX     float64
	DeltaY     float64
	Key        string
	Code       string
	Rune       rune
	Modifiers  Modifier
}
