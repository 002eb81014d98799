package core

import (
	"bytes"
	"errors"
	"testing"

	"pkt.systems/bezel/schema"
)

func testLimits() frameLimits {
	return frameLimits{
		maxWidth:  schema.DefaultMaxFrameWidth,
		maxHeight: schema.DefaultMaxFrameHeight,
		maxBytes:  schema.DefaultMaxFrameBytes,
	}
}

// fillFrame builds a tightly packed BGRA frame where every byte encodes its
// own offset, so copy errors show up as mismatched bytes.
func fillFrame(size schema.Size) []byte {
	src := make([]byte, frameStride(size.Width)*size.Height)
	for i := range src {
		src[i] = byte(i % 251)
	}
	return src
}

func TestAllocateFrameBufferZeroed(t *testing.T) {
	size := schema.Size{Width: 16, Height: 8}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if b.stride != size.Width*4 {
		t.Fatalf("stride = %d, want %d", b.stride, size.Width*4)
	}
	if len(b.pixels) != b.stride*size.Height {
		t.Fatalf("pixels = %d bytes, want %d", len(b.pixels), b.stride*size.Height)
	}
	for i, px := range b.pixels {
		if px != 0 {
			t.Fatalf("pixel %d = %d, want zero-initialized buffer", i, px)
		}
	}
}

func TestAllocateFrameBufferRejectsInvalidSizes(t *testing.T) {
	cases := []schema.Size{
		{Width: 0, Height: 100},
		{Width: 100, Height: 0},
		{Width: -1, Height: 100},
		{Width: schema.DefaultMaxFrameWidth + 1, Height: 100},
		{Width: 100, Height: schema.DefaultMaxFrameHeight + 1},
	}
	for _, size := range cases {
		if _, err := allocateFrameBuffer(size, testLimits()); !errors.Is(err, schema.ErrInvalidSize) {
			t.Fatalf("allocate %dx%d: err = %v, want ErrInvalidSize", size.Width, size.Height, err)
		}
	}
}

func TestAllocateFrameBufferRejectsOversizedTotal(t *testing.T) {
	limits := testLimits()
	limits.maxBytes = 1 << 20
	if _, err := allocateFrameBuffer(schema.Size{Width: 1024, Height: 1024}, limits); !errors.Is(err, schema.ErrInvalidSize) {
		t.Fatalf("err = %v, want ErrInvalidSize for byte cap", err)
	}
}

func TestCopyFullRoundTrip(t *testing.T) {
	size := schema.Size{Width: 32, Height: 16}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	src := fillFrame(size)
	if err := b.copyFull(src, size); err != nil {
		t.Fatalf("copyFull: %v", err)
	}
	if !bytes.Equal(b.pixels, src) {
		t.Fatal("buffer does not match source after full copy")
	}
}

func TestCopyFullRejectsNilAndMismatch(t *testing.T) {
	size := schema.Size{Width: 8, Height: 8}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := b.copyFull(nil, size); !errors.Is(err, schema.ErrNullSource) {
		t.Fatalf("nil source: err = %v, want ErrNullSource", err)
	}
	if err := b.copyFull(fillFrame(size), schema.Size{Width: 9, Height: 8}); !errors.Is(err, schema.ErrSizeMismatch) {
		t.Fatalf("size mismatch: err = %v, want ErrSizeMismatch", err)
	}
	if err := b.copyFull(make([]byte, 4), size); !errors.Is(err, schema.ErrSizeMismatch) {
		t.Fatalf("short source: err = %v, want ErrSizeMismatch", err)
	}
}

func TestCopyDirtyEmptyListCopiesWholeFrame(t *testing.T) {
	size := schema.Size{Width: 8, Height: 4}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	src := fillFrame(size)
	if err := b.copyDirty(src, size, nil); err != nil {
		t.Fatalf("copyDirty: %v", err)
	}
	if !bytes.Equal(b.pixels, src) {
		t.Fatal("empty dirty list should behave like a full copy")
	}
}

func TestCopyDirtyUpdatesOnlyRect(t *testing.T) {
	size := schema.Size{Width: 8, Height: 8}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	src := fillFrame(size)
	rect := schema.Rect{X: 2, Y: 3, Width: 4, Height: 2}
	if err := b.copyDirty(src, size, []schema.Rect{rect}); err != nil {
		t.Fatalf("copyDirty: %v", err)
	}
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			inRect := x >= rect.X && x < rect.X+rect.Width && y >= rect.Y && y < rect.Y+rect.Height
			for c := 0; c < 4; c++ {
				off := y*b.stride + x*4 + c
				want := byte(0)
				if inRect {
					want = src[off]
				}
				if b.pixels[off] != want {
					t.Fatalf("pixel (%d,%d) byte %d = %d, want %d", x, y, c, b.pixels[off], want)
				}
			}
		}
	}
}

func TestCopyDirtySkipsOutOfBoundsRects(t *testing.T) {
	size := schema.Size{Width: 8, Height: 8}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	src := fillFrame(size)
	// Partially and fully out-of-bounds rects are skipped whole, not clipped.
	rects := []schema.Rect{
		{X: 6, Y: 6, Width: 4, Height: 4},
		{X: -1, Y: 0, Width: 2, Height: 2},
		{X: 100, Y: 100, Width: 2, Height: 2},
		{X: 0, Y: 0, Width: 0, Height: 5},
	}
	if err := b.copyDirty(src, size, rects); err != nil {
		t.Fatalf("copyDirty: %v", err)
	}
	for i, px := range b.pixels {
		if px != 0 {
			t.Fatalf("pixel %d = %d, buffer should be untouched", i, px)
		}
	}
}

func TestCopyDirtyMixedRects(t *testing.T) {
	size := schema.Size{Width: 8, Height: 8}
	b, err := allocateFrameBuffer(size, testLimits())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	src := fillFrame(size)
	good := schema.Rect{X: 0, Y: 0, Width: 2, Height: 2}
	bad := schema.Rect{X: 7, Y: 7, Width: 3, Height: 3}
	if err := b.copyDirty(src, size, []schema.Rect{bad, good}); err != nil {
		t.Fatalf("copyDirty: %v", err)
	}
	// The in-bounds rect still lands even when a sibling rect was skipped.
	for y := 0; y < good.Height; y++ {
		off := y * b.stride
		if !bytes.Equal(b.pixels[off:off+good.Width*4], src[off:off+good.Width*4]) {
			t.Fatalf("row %d of in-bounds rect not copied", y)
		}
	}
	last := (size.Height-1)*b.stride + (size.Width-1)*4
	if b.pixels[last] != 0 {
		t.Fatal("skipped rect must not be clipped into the buffer")
	}
}
