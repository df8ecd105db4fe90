// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package render converts between the base64 PNG form projects are stored in
// and the flat RGB grids the scheduler diffs against the canvas.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/muralhq/mural/structs"
)

// Image is a decoded project image: a dense row-major grid of pixels.
type Image struct {
	Width  int
	Height int
	Pixels []structs.RGB
}

// At returns the pixel at (x, y). Callers must stay in bounds.
func (img *Image) At(x, y int) structs.RGB {
	return img.Pixels[y*img.Width+x]
}

// Set writes the pixel at (x, y). Callers must stay in bounds.
func (img *Image) Set(x, y int, c structs.RGB) {
	img.Pixels[y*img.Width+x] = c
}

// New returns a zeroed (all black) image of the given dimensions.
func New(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pixels: make([]structs.RGB, width*height),
	}
}

// DecodeImage decodes a base64-encoded PNG into an Image. Alpha is dropped,
// not composited. Malformed input of either layer yields ErrBadImage.
func DecodeImage(b64 string) (*Image, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", structs.ErrBadImage, err)
	}
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", structs.ErrBadImage, err)
	}

	bounds := src.Bounds()
	img := New(bounds.Dx(), bounds.Dy())
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			img.Pixels[i] = structs.RGB{R: c.R, G: c.G, B: c.B}
			i++
		}
	}
	return img, nil
}

// EncodeImage is the inverse of DecodeImage, used by tests and tooling.
func EncodeImage(img *Image) (string, error) {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
