package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
)

func det(x, y, w, h int, class int, prob float32) detection.Detection {
	return detection.Detection{
		Rect:            images.MakeRect(x, y, w, h),
		BestClass:       class,
		BestProbability: prob,
		Probabilities:   map[int]float32{class: prob},
	}
}

func TestApplyGreedyNMSSuppressesOverlap(t *testing.T) {
	dets := []detection.Detection{
		det(0, 0, 100, 100, 0, 0.6),
		det(5, 5, 100, 100, 0, 0.9),
	}
	out := ApplyGreedyNMS(dets, NMSConfig{IoUThreshold: 0.45})
	require.Len(t, out, 1)
	// The more confident box wins.
	assert.InDelta(t, 0.9, out[0].BestProbability, 1e-6)
}

func TestApplyGreedyNMSKeepsDistantBoxes(t *testing.T) {
	dets := []detection.Detection{
		det(0, 0, 50, 50, 0, 0.9),
		det(200, 200, 50, 50, 0, 0.8),
	}
	out := ApplyGreedyNMS(dets, NMSConfig{IoUThreshold: 0.45})
	assert.Len(t, out, 2)
}

func TestApplyGreedyNMSClassAware(t *testing.T) {
	dets := []detection.Detection{
		det(0, 0, 100, 100, 0, 0.9),
		det(2, 2, 100, 100, 1, 0.8),
	}

	// Different classes survive when suppression is class aware.
	out := ApplyGreedyNMS(dets, NMSConfig{IoUThreshold: 0.45, ClassAware: true})
	assert.Len(t, out, 2)

	// Class-blind suppression removes the weaker one.
	out = ApplyGreedyNMS(dets, NMSConfig{IoUThreshold: 0.45})
	assert.Len(t, out, 1)
}

func TestApplyGreedyNMSEmptyInput(t *testing.T) {
	assert.Empty(t, ApplyGreedyNMS(nil, NMSConfig{IoUThreshold: 0.45}))
}

func TestApplyGreedyNMSDoesNotMutateInput(t *testing.T) {
	dets := []detection.Detection{
		det(0, 0, 100, 100, 0, 0.6),
		det(5, 5, 100, 100, 0, 0.9),
	}
	ApplyGreedyNMS(dets, NMSConfig{IoUThreshold: 0.45})
	assert.InDelta(t, 0.6, dets[0].BestProbability, 1e-6)
	assert.InDelta(t, 0.9, dets[1].BestProbability, 1e-6)
}
