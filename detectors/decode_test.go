package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/tiledetect/images"
)

// buildOutput lays out a YOLO output tensor for the given cells. Each cell
// is (xc, yc, w, h, probabilities...).
func buildOutput(classes, cells int, cellData [][]float32) []float32 {
	out := make([]float32, (4+classes)*cells)
	for idx, cell := range cellData {
		for row, v := range cell {
			out[row*cells+idx] = v
		}
	}
	return out
}

func TestDecodeYOLO(t *testing.T) {
	identity := images.Letterbox{Scale: 1, Width: 100, Height: 100}
	output := buildOutput(2, 3, [][]float32{
		{50, 50, 20, 20, 0.9, 0.6}, // confident cell, both classes above threshold
		{10, 10, 8, 8, 0.3, 0.2},   // below threshold
		{90, 90, 30, 30, 0, 0},     // empty cell
	})

	dets := DecodeYOLO(output, 2, 3, identity, 0.5)
	require.Len(t, dets, 1)

	d := dets[0]
	assert.Equal(t, images.Rect{X1: 40, Y1: 40, X2: 60, Y2: 60}, d.Rect)
	assert.Equal(t, 0, d.BestClass)
	assert.InDelta(t, 0.9, d.BestProbability, 1e-6)
	// Every class at or above the threshold is recorded.
	assert.InDelta(t, 0.6, d.Probabilities[1], 1e-6)
}

func TestDecodeYOLOThresholdIsInclusive(t *testing.T) {
	identity := images.Letterbox{Scale: 1, Width: 100, Height: 100}
	output := buildOutput(1, 1, [][]float32{{50, 50, 20, 20, 0.5}})

	dets := DecodeYOLO(output, 1, 1, identity, 0.5)
	assert.Len(t, dets, 1)
}

func TestDecodeYOLOMapsThroughLetterbox(t *testing.T) {
	// A 200x100 source fitted into a 100x100 canvas: scale 0.5 with 25px
	// of padding above and below.
	lb := images.Letterbox{Scale: 0.5, PadTop: 25, Width: 200, Height: 100}
	output := buildOutput(1, 1, [][]float32{{50, 50, 20, 20, 0.8}})

	dets := DecodeYOLO(output, 1, 1, lb, 0.5)
	require.Len(t, dets, 1)
	assert.Equal(t, images.Rect{X1: 80, Y1: 30, X2: 120, Y2: 70}, dets[0].Rect)
}

func TestDecodeYOLODiscardsBoxesInPadding(t *testing.T) {
	lb := images.Letterbox{Scale: 0.5, PadTop: 25, Width: 200, Height: 100}
	// A box entirely inside the top padding maps to nothing in the source.
	output := buildOutput(1, 1, [][]float32{{50, 10, 20, 16, 0.8}})

	dets := DecodeYOLO(output, 1, 1, lb, 0.5)
	assert.Empty(t, dets)
}

func TestDecodeYOLOEmptyOutput(t *testing.T) {
	identity := images.Letterbox{Scale: 1, Width: 100, Height: 100}
	output := make([]float32, (4+80)*10)
	assert.Empty(t, DecodeYOLO(output, 80, 10, identity, 0.5))
}
