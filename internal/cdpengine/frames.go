package cdpengine

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"pkt.systems/bezel/schema"
)

// decodeBGRA decodes a compressed screencast frame into tightly packed BGRA
// rows, the pixel layout the frame store expects.
func decodeBGRA(data []byte) ([]byte, schema.Size, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, schema.Size{}, fmt.Errorf("decode frame: %w", err)
	}
	bounds := img.Bounds()
	size := schema.Size{Width: bounds.Dx(), Height: bounds.Dy()}
	if size.IsEmpty() {
		return nil, schema.Size{}, fmt.Errorf("decode frame: empty image")
	}
	pixels := make([]byte, size.Width*size.Height*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels[i] = byte(b >> 8)
			pixels[i+1] = byte(g >> 8)
			pixels[i+2] = byte(r >> 8)
			pixels[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return pixels, size, nil
}
