package postprocess

import (
	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
)

// MergeConfig controls how detections of the same object found on different
// tiles are combined into one.
type MergeConfig struct {
	// Combine enables cross-tile merging. When false, detections from each
	// tile stand independently and duplicates at tile boundaries are kept.
	Combine bool
	// OnlySimilar restricts merging to pairs whose best class matches.
	OnlySimilar bool
	// RectFactor controls how closely the rectangles need to line up.
	// A pair qualifies when the area of the union rectangle is at most
	// RectFactor times the sum of the two areas. Values below 1.0 make
	// merging impossible.
	RectFactor float32
}

// DefaultMergeConfig returns the merge settings used when none are given.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		Combine:     true,
		OnlySimilar: true,
		RectFactor:  1.20,
	}
}

// MergeTilePredictions combines detections of the same object that were found
// on two or more tiles.
//
// Qualifying pairs are clustered transitively, so A~B and B~C collapse all
// three into one detection. The merged detection takes the union rectangle,
// the element-wise maximum of the probability vectors (preserving the most
// confident call rather than averaging it away), and a cleared tile marker.
// Pair qualification is evaluated against the input detections only, which
// makes the merge independent of input order and idempotent: a merged
// detection carries detection.TileNone and is never merged again.
//
// The result is ordered by detection.Sort.
func MergeTilePredictions(dets []detection.Detection, config MergeConfig) []detection.Detection {
	out := make([]detection.Detection, len(dets))
	copy(out, dets)

	if !config.Combine || len(out) < 2 {
		detection.Sort(out)
		return out
	}

	parent := make([]int, len(out))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if mergeable(&out[i], &out[j], config) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int, len(out))
	for i := range out {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	merged := make([]detection.Detection, 0, len(groups))
	for i := range out {
		members := groups[find(i)]
		if members[0] != i {
			continue // each group is emitted once, at its first member
		}
		if len(members) == 1 {
			merged = append(merged, out[i])
			continue
		}
		merged = append(merged, fold(out, members))
	}

	detection.Sort(merged)
	return merged
}

// mergeable reports whether two detections should collapse into one.
func mergeable(a, b *detection.Detection, config MergeConfig) bool {
	if a.Tile == detection.TileNone || b.Tile == detection.TileNone {
		return false // already the product of a merge
	}
	if a.Tile == b.Tile {
		return false
	}
	if !a.NearEdge || !b.NearEdge {
		return false
	}
	if config.OnlySimilar && a.BestClass != b.BestClass {
		return false
	}
	if images.CalculateIoU(a.Rect, b.Rect) <= 0 {
		return false
	}

	// A good match has a union rectangle whose area is close to the sum of
	// the two areas; a sloppy overlap blows the union up past the factor.
	combined := a.Rect.Union(b.Rect).Area()
	limit := config.RectFactor * float32(a.Rect.Area()+b.Rect.Area())
	return float32(combined) <= limit
}

// fold collapses a cluster of detections into a single one.
func fold(dets []detection.Detection, members []int) detection.Detection {
	out := detection.Detection{
		Tile:          detection.TileNone,
		Probabilities: make(map[int]float32),
	}
	for _, idx := range members {
		d := dets[idx]
		out.Rect = out.Rect.Union(d.Rect)
		for id, p := range d.Probabilities {
			if p > out.Probabilities[id] {
				out.Probabilities[id] = p
			}
		}
	}
	out.RefreshBest()
	return out
}
