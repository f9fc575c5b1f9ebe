package postprocess

import (
	"github.com/chewxy/math32"

	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
)

// SnapConfig controls post-merge edge alignment. Tiling jitter can leave the
// edges of adjacent detections a few pixels apart even though they line up in
// the scene; snapping pulls such edges onto a common coordinate.
type SnapConfig struct {
	// Enabled toggles snapping.
	Enabled bool
	// HorizontalTolerance is the maximum distance in pixels between two
	// vertical edges (left/right) for them to be aligned.
	HorizontalTolerance int
	// VerticalTolerance is the maximum distance in pixels between two
	// horizontal edges (top/bottom) for them to be aligned.
	VerticalTolerance int
	// LimitShrink is the minimum allowed ratio of snapped area to original
	// area. A snap shrinking a box below this ratio is rejected and the
	// original edge kept. Zero disables the minimum.
	LimitShrink float32
	// LimitGrow is the maximum allowed ratio of snapped area to original
	// area. A snap growing a box beyond this ratio is rejected and the
	// original edge kept. Zero disables the maximum.
	LimitGrow float32
}

// DefaultSnapConfig returns the snapping settings used when none are given.
func DefaultSnapConfig() SnapConfig {
	return SnapConfig{
		Enabled:             false,
		HorizontalTolerance: 5,
		VerticalTolerance:   5,
		LimitShrink:         0.4,
		LimitGrow:           1.25,
	}
}

// edge identifies one side of a rectangle.
type edge int

const (
	edgeLeft edge = iota
	edgeRight
	edgeTop
	edgeBottom
)

// SnapEdges aligns nearby detection edges to their average position.
//
// Targets are computed from the pre-snap edge positions of the whole set, so
// the outcome does not depend on the order in which detections are visited.
// Each edge is then moved individually: a move that would shrink or grow the
// box beyond the configured relative limits is rejected and the original
// edge kept. Snapped edges are clamped to the image, so a detection touching
// the border is never pushed past it. A detection with no qualifying
// neighbours passes through unchanged.
func SnapEdges(dets []detection.Detection, imageW, imageH int, config SnapConfig) []detection.Detection {
	out := make([]detection.Detection, len(dets))
	copy(out, dets)

	if !config.Enabled || len(out) < 2 {
		return out
	}

	// Phase one: compute target positions from the original geometry.
	targets := make([][4]edgeTarget, len(out))
	for i := range out {
		targets[i][edgeLeft] = snapTarget(out, i, edgeLeft, config.HorizontalTolerance)
		targets[i][edgeRight] = snapTarget(out, i, edgeRight, config.HorizontalTolerance)
		targets[i][edgeTop] = snapTarget(out, i, edgeTop, config.VerticalTolerance)
		targets[i][edgeBottom] = snapTarget(out, i, edgeBottom, config.VerticalTolerance)
	}

	// Phase two: apply each edge, enforcing the area limits cumulatively
	// against the original rectangle.
	for i := range out {
		orig := out[i].Rect
		rect := orig
		for _, e := range []edge{edgeLeft, edgeRight, edgeTop, edgeBottom} {
			t := targets[i][e]
			if !t.ok {
				continue
			}
			cand := moveEdge(rect, e, clampEdge(t.pos, e, imageW, imageH))
			if cand.Empty() {
				continue
			}
			if withinLimits(cand, orig, config) {
				rect = cand
			}
		}
		out[i].Rect = rect
	}

	return out
}

// edgeTarget is a resolved snap position for one edge.
type edgeTarget struct {
	pos int
	ok  bool
}

// snapTarget finds the average position of edge e of detection i and the
// matching edges of its neighbours. Only edges of detections whose extent
// overlaps along the perpendicular axis are considered, so boxes on opposite
// sides of the image never snap to each other.
func snapTarget(dets []detection.Detection, i int, e edge, tolerance int) (t edgeTarget) {
	if tolerance <= 0 {
		return t
	}

	own := edgePos(dets[i].Rect, e)
	sum := own
	count := 1

	for j := range dets {
		if j == i {
			continue
		}
		if !perpendicularOverlap(dets[i].Rect, dets[j].Rect, e) {
			continue
		}
		pos := edgePos(dets[j].Rect, e)
		if abs(pos-own) <= tolerance {
			sum += pos
			count++
		}
	}

	if count < 2 {
		return t
	}
	t.pos = int(math32.Round(float32(sum) / float32(count)))
	t.ok = true
	return t
}

func edgePos(r images.Rect, e edge) int {
	switch e {
	case edgeLeft:
		return r.X1
	case edgeRight:
		return r.X2
	case edgeTop:
		return r.Y1
	default:
		return r.Y2
	}
}

func moveEdge(r images.Rect, e edge, pos int) images.Rect {
	switch e {
	case edgeLeft:
		r.X1 = pos
	case edgeRight:
		r.X2 = pos
	case edgeTop:
		r.Y1 = pos
	default:
		r.Y2 = pos
	}
	return r
}

func clampEdge(pos int, e edge, imageW, imageH int) int {
	limit := imageW
	if e == edgeTop || e == edgeBottom {
		limit = imageH
	}
	if pos < 0 {
		return 0
	}
	if pos > limit {
		return limit
	}
	return pos
}

// perpendicularOverlap reports whether two rectangles overlap along the axis
// perpendicular to edge e.
func perpendicularOverlap(a, b images.Rect, e edge) bool {
	if e == edgeLeft || e == edgeRight {
		return a.Y1 < b.Y2 && b.Y1 < a.Y2
	}
	return a.X1 < b.X2 && b.X1 < a.X2
}

func withinLimits(cand, orig images.Rect, config SnapConfig) bool {
	ratio := float32(cand.Area()) / float32(orig.Area())
	if config.LimitShrink > 0 && ratio < config.LimitShrink {
		return false
	}
	if config.LimitGrow > 0 && ratio > config.LimitGrow {
		return false
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
