package compositor

import (
	"context"

	rl "github.com/gen2brain/raylib-go/raylib"
	"pkt.systems/bezel/schema"
)

// wheelStep converts raylib's wheel ticks into pixel deltas the engine
// understands.
const wheelStep = 53

var mouseButtons = []struct {
	raylib rl.MouseButton
	button schema.MouseButton
}{
	{rl.MouseButtonLeft, schema.MouseButtonLeft},
	{rl.MouseButtonMiddle, schema.MouseButtonMiddle},
	{rl.MouseButtonRight, schema.MouseButtonRight},
}

// namedKeys maps raylib keycodes to DOM key and code values. Printable text
// arrives separately through the char queue; these cover editing and
// navigation keys a page reacts to.
var namedKeys = map[int32]struct{ key, code string }{
	rl.KeyEnter:     {"Enter", "Enter"},
	rl.KeyBackspace: {"Backspace", "Backspace"},
	rl.KeyTab:       {"Tab", "Tab"},
	rl.KeyEscape:    {"Escape", "Escape"},
	rl.KeyDelete:    {"Delete", "Delete"},
	rl.KeyLeft:      {"ArrowLeft", "ArrowLeft"},
	rl.KeyRight:     {"ArrowRight", "ArrowRight"},
	rl.KeyUp:        {"ArrowUp", "ArrowUp"},
	rl.KeyDown:      {"ArrowDown", "ArrowDown"},
	rl.KeyHome:      {"Home", "Home"},
	rl.KeyEnd:       {"End", "End"},
	rl.KeyPageUp:    {"PageUp", "PageUp"},
	rl.KeyPageDown:  {"PageDown", "PageDown"},
}

func (c *Compositor) pollInput(ctx context.Context) {
	c.pollMouse(ctx)
	c.pollKeyboard(ctx)
}

func (c *Compositor) pollMouse(ctx context.Context) {
	mods := currentModifiers()
	pos := rl.GetMousePosition()
	x, y := float64(pos.X), float64(pos.Y)

	delta := rl.GetMouseDelta()
	if delta.X != 0 || delta.Y != 0 {
		_ = c.router.Dispatch(ctx, schema.InputEvent{
			Kind: schema.InputPointerMove, X: x, Y: y,
			Button: heldButton(), Modifiers: mods,
		})
	}
	for _, mb := range mouseButtons {
		if rl.IsMouseButtonPressed(mb.raylib) {
			_ = c.router.Dispatch(ctx, schema.InputEvent{
				Kind: schema.InputPointerDown, X: x, Y: y,
				Button: mb.button, ClickCount: 1, Modifiers: mods,
			})
		}
		if rl.IsMouseButtonReleased(mb.raylib) {
			_ = c.router.Dispatch(ctx, schema.InputEvent{
				Kind: schema.InputPointerUp, X: x, Y: y,
				Button: mb.button, ClickCount: 1, Modifiers: mods,
			})
		}
	}
	if wheel := rl.GetMouseWheelMoveV(); wheel.X != 0 || wheel.Y != 0 {
		_ = c.router.Dispatch(ctx, schema.InputEvent{
			Kind: schema.InputWheel, X: x, Y: y,
			DeltaX: float64(wheel.X) * wheelStep,
			DeltaY: float64(wheel.Y) * wheelStep,
			Modifiers: mods,
		})
	}
}

func (c *Compositor) pollKeyboard(ctx context.Context) {
	mods := currentModifiers()
	for r := rl.GetCharPressed(); r != 0; r = rl.GetCharPressed() {
		_ = c.router.Dispatch(ctx, schema.InputEvent{
			Kind: schema.InputChar, Rune: r, Modifiers: mods,
		})
	}
	for key := rl.GetKeyPressed(); key != 0; key = rl.GetKeyPressed() {
		named, ok := namedKeys[key]
		if !ok {
			continue
		}
		// Pages expect the full press cycle even for one keystroke.
		_ = c.router.Dispatch(ctx, schema.InputEvent{
			Kind: schema.InputKeyDown, Key: named.key, Code: named.code, Modifiers: mods,
		})
		_ = c.router.Dispatch(ctx, schema.InputEvent{
			Kind: schema.InputKeyUp, Key: named.key, Code: named.code, Modifiers: mods,
		})
	}
}

func currentModifiers() schema.Modifier {
	var mods schema.Modifier
	if rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift) {
		mods |= schema.ModShift
	}
	if rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyRightControl) {
		mods |= schema.ModCtrl
	}
	if rl.IsKeyDown(rl.KeyLeftAlt) || rl.IsKeyDown(rl.KeyRightAlt) {
		mods |= schema.ModAlt
	}
	if rl.IsKeyDown(rl.KeyLeftSuper) || rl.IsKeyDown(rl.KeyRightSuper) {
		mods |= schema.ModMeta
	}
	return mods
}

func heldButton() schema.MouseButton {
	for _, mb := range mouseButtons {
		if rl.IsMouseButtonDown(mb.raylib) {
			return mb.button
		}
	}
	return schema.MouseButtonNone
}
