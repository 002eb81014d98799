package cdpengine

import (
	"context"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"pkt.systems/bezel/schema"
)

// DispatchInput implements core.Engine. Coordinates are logical (CSS)
// pixels; the DevTools protocol expects the same, so no scaling happens
// here.
func (e *Engine) DispatchInput(ctx context.Context, id schema.SessionID, event schema.InputEvent) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	_ = ctx
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dispatch(ctx, event)
	}))
}

func dispatch(ctx context.Context, event schema.InputEvent) error {
	modifiers := cdpModifiers(event.Modifiers)
	switch event.Kind {
	case schema.InputPointerMove:
		return input.DispatchMouseEvent(input.MouseMoved, event.X, event.Y).
			WithButton(cdpButton(event.Button)).
			WithModifiers(modifiers).
			Do(ctx)
	case schema.InputPointerDown:
		return input.DispatchMouseEvent(input.MousePressed, event.X, event.Y).
			WithButton(cdpButton(event.Button)).
			WithClickCount(int64(event.ClickCount)).
			WithModifiers(modifiers).
			Do(ctx)
	case schema.InputPointerUp:
		return input.DispatchMouseEvent(input.MouseReleased, event.X, event.Y).
			WithButton(cdpButton(event.Button)).
			WithClickCount(int64(event.ClickCount)).
			WithModifiers(modifiers).
			Do(ctx)
	case schema.InputWheel:
		return input.DispatchMouseEvent(input.MouseWheel, event.X, event.Y).
			WithDeltaX(event.DeltaX).
			WithDeltaY(event.DeltaY).
			WithModifiers(modifiers).
			Do(ctx)
	case schema.InputKeyDown:
		return input.DispatchKeyEvent(input.KeyDown).
			WithKey(event.Key).
			WithCode(event.Code).
			WithModifiers(modifiers).
			Do(ctx)
	case schema.InputKeyUp:
		return input.DispatchKeyEvent(input.KeyUp).
			WithKey(event.Key).
			WithCode(event.Code).
			WithModifiers(modifiers).
			Do(ctx)
	case schema.InputChar:
		return input.DispatchKeyEvent(input.KeyChar).
			WithText(string(event.Rune)).
			WithModifiers(modifiers).
			Do(ctx)
	default:
		return nil
	}
}

func cdpButton(button schema.MouseButton) input.MouseButton {
	switch button {
	case schema.MouseButtonLeft:
		return input.Left
	case schema.MouseButtonMiddle:
		return input.Middle
	case schema.MouseButtonRight:
		return input.Right
	default:
		return input.None
	}
}

func cdpModifiers(mods schema.Modifier) input.Modifier {
	var out input.Modifier
	if mods&schema.ModAlt != 0 {
		out |= input.ModifierAlt
	}
	if mods&schema.ModCtrl != 0 {
		out |= input.ModifierCtrl
	}
	if mods&schema.ModMeta != 0 {
		out |= input.ModifierMeta
	}
	if mods&schema.ModShift != 0 {
		out |= input.ModifierShift
	}
	return out
}
