// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"sort"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/muralhq/mural/canvas"
	"github.com/muralhq/mural/render"
	"github.com/muralhq/mural/structs"
)

// imageCacheSize bounds decoded project images kept across refresh cycles.
// Projects rarely change between ticks, so decoding every image every two
// seconds is wasted work.
const imageCacheSize = 128

// ImageCache memoizes decoded project images keyed by project name,
// invalidated when the stored base64 payload changes.
type ImageCache struct {
	cache *lru.Cache[string, *cachedImage]
}

type cachedImage struct {
	b64 string
	img *render.Image
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	// lru.New only fails on a non-positive size
	cache, _ := lru.New[string, *cachedImage](imageCacheSize)
	return &ImageCache{cache: cache}
}

// decode returns the decoded image for a project, reusing the cached grid
// when the payload is unchanged.
func (ic *ImageCache) decode(p *structs.ProjectDetails) (*render.Image, error) {
	if entry, ok := ic.cache.Get(p.Name); ok && entry.b64 == p.Image {
		return entry.img, nil
	}
	img, err := render.DecodeImage(p.Image)
	if err != nil {
		return nil, err
	}
	ic.cache.Add(p.Name, &cachedImage{b64: p.Image, img: img})
	return img, nil
}

// ComputeUnits diffs every project against the canvas and returns the tasks
// that still need painting. Projects are processed in ascending priority
// order (ties broken by name) and at most one task is emitted per
// coordinate, so where projects overlap the highest priority target wins.
// Pixels outside the canvas and pixels already showing their target are
// skipped. Projects whose image fails to decode are logged and skipped; one
// bad row must not stall the whole refresh.
func ComputeUnits(logger hclog.Logger, projects []*structs.ProjectDetails, c *canvas.Canvas, cache *ImageCache) []structs.Task {
	ordered := make([]*structs.ProjectDetails, len(projects))
	copy(ordered, projects)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].Name < ordered[j].Name
	})

	type coord struct{ x, y int }
	byCoord := make(map[coord]structs.Task)

	for _, p := range ordered {
		img, err := cache.decode(p)
		if err != nil {
			logger.Warn("skipping project with undecodable image", "project", p.Name, "error", err)
			continue
		}
		for j := 0; j < img.Height; j++ {
			for i := 0; i < img.Width; i++ {
				x, y := p.X+i, p.Y+j
				if !c.InBounds(x, y) {
					continue
				}
				target := img.At(i, j)
				if c.At(x, y) == target {
					// already painted; a later project may still claim the
					// coordinate with a different target
					delete(byCoord, coord{x, y})
					continue
				}
				byCoord[coord{x, y}] = structs.Task{X: x, Y: y, RGB: target, ProjectName: p.Name}
			}
		}
	}

	units := make([]structs.Task, 0, len(byCoord))
	for _, task := range byCoord {
		units = append(units, task)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Y != units[j].Y {
			return units[i].Y < units[j].Y
		}
		return units[i].X < units[j].X
	})
	return units
}
