// Package tiling splits an oversized image into overlapping tiles sized to
// the detector's input resolution.
//
// Tiles are never padded past the outer edges of the image; the required
// overlap is taken on the inside instead. The planner first works out how
// many tiles each axis needs so that no tile exceeds the network input size
// and adjacent tiles share at least the configured overlap, then spreads the
// tiles evenly across the axis. Spreading avoids a thin sliver tile at the
// far edge, which would give the detector almost no context to work with.
// Due to rounding, the realised overlap can differ by a pixel between
// neighbouring tile pairs.
package tiling

import (
	"math"

	"github.com/pkg/errors"

	"github.com/visionkit/tiledetect/images"
)

// DefaultOverlap is the fraction of the tile edge shared with each
// neighbouring tile.
const DefaultOverlap = 0.25

// Tile is one sub-rectangle of the source image, processed independently by
// the detector.
type Tile struct {
	// Index uniquely identifies the tile within its plan (row-major).
	Index int
	// Rect is the tile's placement in full-image pixel coordinates.
	Rect images.Rect
}

// Plan describes how an image has been split into tiles.
type Plan struct {
	Cols        int
	Rows        int
	TileWidth   int
	TileHeight  int
	ImageWidth  int
	ImageHeight int
	Tiles       []Tile
}

// IsSingle reports whether the plan consists of just one whole-image tile.
func (p Plan) IsSingle() bool { return p.Cols == 1 && p.Rows == 1 }

// Single returns a plan with one tile covering the entire image.
func Single(imageW, imageH int) (Plan, error) {
	if imageW <= 0 || imageH <= 0 {
		return Plan{}, errors.Errorf("invalid image dimensions: %dx%d", imageW, imageH)
	}
	return Plan{
		Cols:        1,
		Rows:        1,
		TileWidth:   imageW,
		TileHeight:  imageH,
		ImageWidth:  imageW,
		ImageHeight: imageH,
		Tiles:       []Tile{{Index: 0, Rect: images.MakeRect(0, 0, imageW, imageH)}},
	}, nil
}

// Make computes a tiling of an imageW x imageH image for a detector with a
// netW x netH input. Adjacent tiles overlap by at least the overlap fraction
// of the tile edge. An image that already fits the network input produces a
// single whole-image tile.
func Make(imageW, imageH, netW, netH int, overlap float64) (Plan, error) {
	if imageW <= 0 || imageH <= 0 {
		return Plan{}, errors.Errorf("invalid image dimensions: %dx%d", imageW, imageH)
	}
	if netW <= 0 || netH <= 0 {
		return Plan{}, errors.Errorf("invalid network dimensions: %dx%d", netW, netH)
	}
	if overlap < 0 || overlap >= 0.5 {
		return Plan{}, errors.Errorf("tile overlap %.2f out of range [0, 0.5)", overlap)
	}

	xs, tileW := planAxis(imageW, netW, overlap)
	ys, tileH := planAxis(imageH, netH, overlap)

	plan := Plan{
		Cols:        len(xs),
		Rows:        len(ys),
		TileWidth:   tileW,
		TileHeight:  tileH,
		ImageWidth:  imageW,
		ImageHeight: imageH,
		Tiles:       make([]Tile, 0, len(xs)*len(ys)),
	}

	for row, y := range ys {
		for col, x := range xs {
			r := images.MakeRect(x, y, tileW, tileH).Clip(imageW, imageH)
			plan.Tiles = append(plan.Tiles, Tile{
				Index: row*plan.Cols + col,
				Rect:  r,
			})
		}
	}
	return plan, nil
}

// planAxis splits one dimension into evenly spaced tile origins.
// The last tile always ends exactly on the image edge, so the union of tiles
// covers the axis with no gap.
func planAxis(src, nn int, overlap float64) ([]int, int) {
	if src <= nn {
		return []int{0}, src
	}

	// Worst-case stride that still honours the minimum overlap.
	step := nn - int(overlap*float64(nn))
	if step < 1 {
		step = 1
	}
	count := int(math.Ceil(float64(src-nn)/float64(step))) + 1

	// Spread the tiles evenly; the realised spacing is <= step, so the
	// realised overlap is >= the requested minimum.
	spacing := float64(src-nn) / float64(count-1)

	positions := make([]int, count)
	for i := range positions {
		positions[i] = int(math.Round(spacing * float64(i)))
	}
	return positions, nn
}
