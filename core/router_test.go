package core

import (
	"context"
	"testing"

	"pkt.systems/bezel/schema"
)

func TestRouterDispatchesToActiveTab(t *testing.T) {
	reg, engine, _ := newTestRegistry(t)
	handles := createTabs(t, reg, 2)
	router := NewRouter(reg, engine, nil)

	event := schema.InputEvent{Kind: schema.InputPointerDown, X: 10, Y: 20, Button: schema.MouseButtonLeft, ClickCount: 1}
	if err := router.Dispatch(context.Background(), event); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if _, err := reg.ActivateTab(context.Background(), schema.ActivateTabRequest{Handle: handles[0]}); err != nil {
		t.Fatalf("ActivateTab: %v", err)
	}
	key := schema.InputEvent{Kind: schema.InputKeyDown, Key: "Enter", Code: "Enter"}
	if err := router.Dispatch(context.Background(), key); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.inputs) != 2 {
		t.Fatalf("engine inputs = %d, want 2", len(engine.inputs))
	}
	if engine.inputs[0].Kind != schema.InputPointerDown || engine.inputs[1].Kind != schema.InputKeyDown {
		t.Fatalf("input kinds = %v, %v", engine.inputs[0].Kind, engine.inputs[1].Kind)
	}
}

func TestRouterFocusEventsUseSetFocus(t *testing.T) {
	reg, engine, _ := newTestRegistry(t)
	createTabs(t, reg, 1)
	router := NewRouter(reg, engine, nil)

	if err := router.Dispatch(context.Background(), schema.InputEvent{Kind: schema.InputFocus}); err != nil {
		t.Fatalf("Dispatch focus: %v", err)
	}
	if err := router.Dispatch(context.Background(), schema.InputEvent{Kind: schema.InputBlur}); err != nil {
		t.Fatalf("Dispatch blur: %v", err)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.inputs) != 0 {
		t.Fatalf("focus events must not reach DispatchInput, got %d", len(engine.inputs))
	}
	if focused, ok := engine.focus["sess-1"]; !ok || focused {
		t.Fatalf("focus state = %v/%v, want final blur recorded", focused, ok)
	}
}

func TestRouterDropsInputWithNoTabs(t *testing.T) {
	reg, engine, _ := newTestRegistry(t)
	router := NewRouter(reg, engine, nil)

	if err := router.Dispatch(context.Background(), schema.InputEvent{Kind: schema.InputPointerMove, X: 1, Y: 1}); err != nil {
		t.Fatalf("Dispatch with no tabs should be a no-op, got %v", err)
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.inputs) != 0 {
		t.Fatalf("engine inputs = %d, want 0", len(engine.inputs))
	}
}
