// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package canvas talks to the remote pixel-placement service: full snapshot
// fetches, rate-limited single pixel reads, and the bookkeeping needed to
// predict when the next pixel read is allowed.
package canvas

import (
	"fmt"

	"github.com/muralhq/mural/structs"
)

// Canvas is a point-in-time copy of the remote canvas.
type Canvas struct {
	Width  int
	Height int
	Pixels []structs.RGB
}

// NewCanvas returns a zeroed canvas of the given dimensions.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		Width:  width,
		Height: height,
		Pixels: make([]structs.RGB, width*height),
	}
}

// InBounds reports whether (x, y) lies on the canvas.
func (c *Canvas) InBounds(x, y int) bool {
	return x >= 0 && x < c.Width && y >= 0 && y < c.Height
}

// At returns the pixel at (x, y). Callers check InBounds first.
func (c *Canvas) At(x, y int) structs.RGB {
	return c.Pixels[y*c.Width+x]
}

// Set writes the pixel at (x, y). Callers check InBounds first.
func (c *Canvas) Set(x, y int, rgb structs.RGB) {
	c.Pixels[y*c.Width+x] = rgb
}

// decodeBlob unpacks the raw 3-bytes-per-pixel body of a snapshot fetch.
func decodeBlob(width, height int, blob []byte) (*Canvas, error) {
	if want := width * height * 3; len(blob) != want {
		return nil, fmt.Errorf("canvas blob is %d bytes, expected %d for %dx%d", len(blob), want, width, height)
	}
	c := NewCanvas(width, height)
	for i := range c.Pixels {
		c.Pixels[i] = structs.RGB{R: blob[3*i], G: blob[3*i+1], B: blob[3*i+2]}
	}
	return c, nil
}
