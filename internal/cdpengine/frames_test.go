package cdpengine

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chromedp/cdproto/input"
	"pkt.systems/bezel/schema"
)

func TestDecodeBGRA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff})
	img.SetRGBA(1, 0, color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	pixels, size, err := decodeBGRA(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeBGRA: %v", err)
	}
	if size != (schema.Size{Width: 2, Height: 1}) {
		t.Fatalf("size = %+v", size)
	}
	want := []byte{0x30, 0x20, 0x10, 0xff, 0x00, 0x00, 0xff, 0xff}
	if !bytes.Equal(pixels, want) {
		t.Fatalf("pixels = %x, want %x", pixels, want)
	}
}

func TestDecodeBGRARejectsGarbage(t *testing.T) {
	if _, _, err := decodeBGRA([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestModifierAndButtonMapping(t *testing.T) {
	mods := cdpModifiers(schema.ModShift | schema.ModCtrl)
	if mods != input.ModifierShift|input.ModifierCtrl {
		t.Fatalf("modifiers = %v", mods)
	}
	if cdpButton(schema.MouseButtonLeft) != input.Left {
		t.Fatal("left button mapping")
	}
	if cdpButton(schema.MouseButtonNone) != input.None {
		t.Fatal("none button mapping")
	}
}
