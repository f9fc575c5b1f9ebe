package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
)

func tileDet(x, y, w, h, tile int, class int, prob float32) detection.Detection {
	d := det(x, y, w, h, class, prob)
	d.Tile = tile
	d.NearEdge = true
	return d
}

func TestMergeCombinesCrossTileDuplicates(t *testing.T) {
	dets := []detection.Detection{
		tileDet(100, 100, 100, 100, 0, 1, 0.8),
		tileDet(105, 100, 100, 100, 1, 1, 0.6),
	}
	out := MergeTilePredictions(dets, DefaultMergeConfig())
	require.Len(t, out, 1)

	// Union rectangle, highest probability, no single owning tile.
	assert.Equal(t, images.Rect{X1: 100, Y1: 100, X2: 205, Y2: 200}, out[0].Rect)
	assert.InDelta(t, 0.8, out[0].BestProbability, 1e-6)
	assert.Equal(t, detection.TileNone, out[0].Tile)
	assert.False(t, out[0].NearEdge)
}

func TestMergeTakesElementwiseMaxProbabilities(t *testing.T) {
	a := tileDet(0, 0, 100, 100, 0, 1, 0.8)
	a.Probabilities = map[int]float32{1: 0.8, 2: 0.3}
	b := tileDet(5, 0, 100, 100, 1, 1, 0.6)
	b.Probabilities = map[int]float32{1: 0.6, 2: 0.7}

	out := MergeTilePredictions([]detection.Detection{a, b}, DefaultMergeConfig())
	require.Len(t, out, 1)
	assert.InDelta(t, 0.8, out[0].Probabilities[1], 1e-6)
	assert.InDelta(t, 0.7, out[0].Probabilities[2], 1e-6)
}

func TestMergeDisabledKeepsAll(t *testing.T) {
	dets := []detection.Detection{
		tileDet(100, 100, 100, 100, 0, 1, 0.8),
		tileDet(105, 100, 100, 100, 1, 1, 0.6),
	}
	cfg := DefaultMergeConfig()
	cfg.Combine = false
	out := MergeTilePredictions(dets, cfg)
	assert.Len(t, out, 2)
}

func TestMergeOnlySimilarClasses(t *testing.T) {
	dets := []detection.Detection{
		tileDet(100, 100, 100, 100, 0, 1, 0.8),
		tileDet(105, 100, 100, 100, 1, 2, 0.6),
	}

	out := MergeTilePredictions(dets, DefaultMergeConfig())
	assert.Len(t, out, 2)

	cfg := DefaultMergeConfig()
	cfg.OnlySimilar = false
	out = MergeTilePredictions(dets, cfg)
	assert.Len(t, out, 1)
}

func TestMergeNeverWithinSameTile(t *testing.T) {
	dets := []detection.Detection{
		tileDet(100, 100, 100, 100, 0, 1, 0.8),
		tileDet(105, 100, 100, 100, 0, 1, 0.6),
	}
	out := MergeTilePredictions(dets, DefaultMergeConfig())
	assert.Len(t, out, 2)
}

func TestMergeRequiresNearEdge(t *testing.T) {
	a := tileDet(100, 100, 100, 100, 0, 1, 0.8)
	b := tileDet(105, 100, 100, 100, 1, 1, 0.6)
	b.NearEdge = false
	out := MergeTilePredictions([]detection.Detection{a, b}, DefaultMergeConfig())
	assert.Len(t, out, 2)
}

func TestMergeRejectsSloppyOverlap(t *testing.T) {
	// The boxes touch only at a corner; the union rectangle is far larger
	// than the two boxes combined.
	dets := []detection.Detection{
		tileDet(0, 0, 100, 100, 0, 1, 0.8),
		tileDet(95, 95, 100, 100, 1, 1, 0.6),
	}
	out := MergeTilePredictions(dets, DefaultMergeConfig())
	assert.Len(t, out, 2)
}

func TestMergeTransitiveChain(t *testing.T) {
	dets := []detection.Detection{
		tileDet(0, 0, 100, 100, 0, 1, 0.8),
		tileDet(40, 0, 100, 100, 1, 1, 0.7),
		tileDet(80, 0, 100, 100, 2, 1, 0.6),
	}
	out := MergeTilePredictions(dets, DefaultMergeConfig())
	require.Len(t, out, 1)
	assert.Equal(t, images.Rect{X1: 0, Y1: 0, X2: 180, Y2: 100}, out[0].Rect)
}

func TestMergeIsIdempotent(t *testing.T) {
	dets := []detection.Detection{
		tileDet(100, 100, 100, 100, 0, 1, 0.8),
		tileDet(105, 100, 100, 100, 1, 1, 0.6),
		tileDet(500, 500, 50, 50, 2, 2, 0.9),
	}
	once := MergeTilePredictions(dets, DefaultMergeConfig())
	twice := MergeTilePredictions(once, DefaultMergeConfig())
	assert.Equal(t, once, twice)
}

func TestMergeOrderIndependent(t *testing.T) {
	dets := []detection.Detection{
		tileDet(100, 100, 100, 100, 0, 1, 0.8),
		tileDet(105, 100, 100, 100, 1, 1, 0.6),
		tileDet(500, 500, 50, 50, 2, 2, 0.9),
		tileDet(40, 0, 100, 40, 3, 3, 0.5),
	}
	reversed := make([]detection.Detection, len(dets))
	for i, d := range dets {
		reversed[len(dets)-1-i] = d
	}

	a := MergeTilePredictions(dets, DefaultMergeConfig())
	b := MergeTilePredictions(reversed, DefaultMergeConfig())
	assert.Equal(t, a, b)
}
