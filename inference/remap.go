package inference

import (
	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
	"github.com/visionkit/tiledetect/tiling"
)

// remapTile translates tile-local detections into full-image coordinates.
//
// Detections whose rectangle ends up empty after clipping to the image are
// dropped and counted rather than reported as errors. Before translation,
// each detection is checked against the interior borders of its tile: one
// that comes within TileEdgeFactor of the tile size of a border shared with a
// neighbouring tile is flagged NearEdge, which is what later qualifies it for
// cross-tile merging. Borders that coincide with the image edge never set the
// flag, since there is no neighbour to merge with there.
func remapTile(dets []detection.Detection, tile tiling.Tile, imageW, imageH int, edgeFactor float32) ([]detection.Detection, int) {
	marginX := int(edgeFactor * float32(tile.Rect.Width()))
	marginY := int(edgeFactor * float32(tile.Rect.Height()))

	out := make([]detection.Detection, 0, len(dets))
	dropped := 0

	for _, d := range dets {
		local := d.Rect
		full := local.Offset(tile.Rect.X1, tile.Rect.Y1).Clip(imageW, imageH)
		if full.Empty() {
			dropped++
			continue
		}

		d.Rect = full
		d.Tile = tile.Index
		d.NearEdge = nearInteriorEdge(local, tile.Rect, imageW, imageH, marginX, marginY)
		out = append(out, d)
	}

	return out, dropped
}

// nearInteriorEdge reports whether a tile-local rectangle comes within the
// margin of a tile border that has a neighbouring tile on the other side.
func nearInteriorEdge(local, tile images.Rect, imageW, imageH, marginX, marginY int) bool {
	w := tile.Width()
	h := tile.Height()

	if tile.X1 > 0 && local.X1 <= marginX {
		return true
	}
	if tile.X2 < imageW && local.X2 >= w-marginX {
		return true
	}
	if tile.Y1 > 0 && local.Y1 <= marginY {
		return true
	}
	if tile.Y2 < imageH && local.Y2 >= h-marginY {
		return true
	}
	return false
}
