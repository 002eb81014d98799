package core

import (
	"fmt"

	"pkt.systems/bezel/schema"
)

// bytesPerPixel is fixed by the engine's BGRA pixel format. A row stride of
// width*4 is therefore always 4-byte aligned and never padded.
const bytesPerPixel = 4

// frameLimits bounds frame buffer allocations.
type frameLimits struct {
	maxWidth  int
	maxHeight int
	maxBytes  int64
}

// frameBuffer owns the pixel storage for one tab's most recent paint.
// A frameBuffer with an empty size owns no storage and is the canonical
// invalid sentinel.
type frameBuffer struct {
	size   schema.Size
	stride int
	pixels []byte
}

// frameStride returns the bytes per row for the given width in pixels.
func frameStride(width int) int {
	return width * bytesPerPixel
}

func (l frameLimits) check(size schema.Size) error {
	if size.IsEmpty() {
		return fmt.Errorf("%w: %dx%d", schema.ErrInvalidSize, size.Width, size.Height)
	}
	if size.Width > l.maxWidth || size.Height > l.maxHeight {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d", schema.ErrInvalidSize, size.Width, size.Height, l.maxWidth, l.maxHeight)
	}
	if total := int64(frameStride(size.Width)) * int64(size.Height); total > l.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds cap %d", schema.ErrInvalidSize, total, l.maxBytes)
	}
	return nil
}

// allocateFrameBuffer returns a zero-initialized buffer for the given
// physical size, or schema.ErrInvalidSize when the size is out of bounds.
func allocateFrameBuffer(size schema.Size, limits frameLimits) (*frameBuffer, error) {
	if err := limits.check(size); err != nil {
		return nil, err
	}
	stride := frameStride(size.Width)
	return &frameBuffer{
		size:   size,
		stride: stride,
		pixels: make([]byte, stride*size.Height),
	}, nil
}

func (b *frameBuffer) valid() bool {
	return b != nil && len(b.pixels) > 0 && !b.size.IsEmpty()
}

// copyFull copies an entire source frame into the buffer, row by row. The
// source rows are tightly packed at width*4 bytes, the engine's convention.
func (b *frameBuffer) copyFull(src []byte, size schema.Size) error {
	if src == nil {
		return schema.ErrNullSource
	}
	if !b.valid() || b.size != size {
		return fmt.Errorf("%w: dst %dx%d, src %dx%d", schema.ErrSizeMismatch, b.size.Width, b.size.Height, size.Width, size.Height)
	}
	srcStride := frameStride(size.Width)
	if len(src) < srcStride*size.Height {
		return fmt.Errorf("%w: source holds %d bytes, need %d", schema.ErrSizeMismatch, len(src), srcStride*size.Height)
	}
	rowBytes := min(srcStride, b.stride)
	for y := 0; y < size.Height; y++ {
		copy(b.pixels[y*b.stride:y*b.stride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
	}
	return nil
}

// copyDirty copies only the given dirty rectangles from the source frame.
// An empty rect list means the engine had no partial-update information and
// the whole frame is copied. Rects that fall fully or partially outside the
// buffer bounds are skipped without failing the rest of the update.
func (b *frameBuffer) copyDirty(src []byte, size schema.Size, dirty []schema.Rect) error {
	if len(dirty) == 0 {
		return b.copyFull(src, size)
	}
	if src == nil {
		return schema.ErrNullSource
	}
	if !b.valid() || b.size != size {
		return fmt.Errorf("%w: dst %dx%d, src %dx%d", schema.ErrSizeMismatch, b.size.Width, b.size.Height, size.Width, size.Height)
	}
	srcStride := frameStride(size.Width)
	if len(src) < srcStride*size.Height {
		return fmt.Errorf("%w: source holds %d bytes, need %d", schema.ErrSizeMismatch, len(src), srcStride*size.Height)
	}
	for _, rect := range dirty {
		if rect.IsEmpty() || !rect.In(size) {
			continue
		}
		rowBytes := rect.Width * bytesPerPixel
		for y := 0; y < rect.Height; y++ {
			srcOff := (rect.Y+y)*srcStride + rect.X*bytesPerPixel
			dstOff := (rect.Y+y)*b.stride + rect.X*bytesPerPixel
			copy(b.pixels[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
		}
	}
	return nil
}
