package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Preprocess converts the input to grayscale and upscales it so the width
// is at least minWidth pixels. Small scans recognize noticeably better
// after upscaling; inputs already wide enough keep their dimensions. The
// returned input is always PNG-encoded.
func Preprocess(in Input, minWidth int) (Input, error) {
	src, _, err := image.Decode(bytes.NewReader(in.Image))
	if err != nil {
		return Input{}, fmt.Errorf("preprocess %s: decode: %w", in.ID, err)
	}
	bounds := src.Bounds()

	target := bounds
	if minWidth > 0 && bounds.Dx() < minWidth {
		scale := float64(minWidth) / float64(bounds.Dx())
		target = image.Rect(0, 0, minWidth, int(float64(bounds.Dy())*scale+0.5))
	}

	gray := image.NewGray(target)
	if target == bounds {
		draw.Draw(gray, target, src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(gray, target, src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return Input{}, fmt.Errorf("preprocess %s: encode: %w", in.ID, err)
	}
	out := in
	out.Image = buf.Bytes()
	out.Format = ImageFormatPNG
	// The region was expressed against the original pixel grid.
	if target != bounds {
		out.Region = nil
	}
	return out, nil
}
