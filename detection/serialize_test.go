package detection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/tiledetect/images"
)

func testSet() *PredictionSet {
	return &PredictionSet{
		Detections: []Detection{
			{
				Rect:            images.MakeRect(100, 200, 50, 80),
				BestClass:       1,
				Name:            "car 80%",
				BestProbability: 0.8,
				Probabilities:   map[int]float32{1: 0.8, 2: 0.6},
				Tile:            3,
			},
		},
		ImageWidth:  1000,
		ImageHeight: 800,
		TileCols:    3,
		TileRows:    2,
		TileWidth:   416,
		TileHeight:  416,
		Dropped:     1,
		Duration:    125 * time.Millisecond,
		Timestamp:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuildReport(t *testing.T) {
	names := []string{"person", "car", "truck"}
	meta := ReportMeta{
		ModelFile:    "model.onnx",
		NamesFile:    "coco.names",
		Threshold:    0.5,
		NMSThreshold: 0.45,
		IncludePct:   true,
		TilesEnabled: true,
	}

	r := BuildReport(testSet(), names, meta)

	assert.Equal(t, 1, r.File.Count)
	assert.Equal(t, "125ms", r.File.Duration)
	assert.Equal(t, 1000, r.File.OriginalWidth)
	assert.Equal(t, 3, r.File.Tiles.Horizontal)
	assert.Equal(t, 2, r.File.Tiles.Vertical)
	assert.Equal(t, 1, r.File.Dropped)

	require.Len(t, r.File.Predictions, 1)
	p := r.File.Predictions[0]
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, RectReport{X: 100, Y: 200, Width: 50, Height: 80}, p.Rect)
	assert.Equal(t, 1, p.BestClass)
	assert.Equal(t, "car 80%", p.Name)
	assert.Equal(t, 3, p.Tile)

	// Probabilities are listed in ascending class id order.
	require.Len(t, p.AllProbabilities, 2)
	assert.Equal(t, 1, p.AllProbabilities[0].Class)
	assert.Equal(t, "car", p.AllProbabilities[0].Name)
	assert.Equal(t, 2, p.AllProbabilities[1].Class)

	// Midpoint and size are normalized to the image dimensions.
	assert.InDelta(t, 0.125, p.OriginalPoint.X, 1e-9)
	assert.InDelta(t, 0.3, p.OriginalPoint.Y, 1e-9)
	assert.InDelta(t, 0.05, p.OriginalSize.Width, 1e-9)
	assert.InDelta(t, 0.1, p.OriginalSize.Height, 1e-9)

	assert.Equal(t, "model.onnx", r.Network.Model)
	assert.True(t, r.Settings.EnableTiles)
	assert.Equal(t, r.Timestamp.Epoch, testSet().Timestamp.Unix())
}

func TestReportJSON(t *testing.T) {
	r := BuildReport(testSet(), nil, ReportMeta{})
	buf, err := r.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Contains(t, decoded, "file")
	assert.Contains(t, decoded, "network")
	assert.Contains(t, decoded, "settings")
	assert.Contains(t, decoded, "timestamp")

	// Missing names fall back to placeholder labels.
	file := decoded["file"].(map[string]any)
	preds := file["prediction"].([]any)
	probs := preds[0].(map[string]any)["all_probabilities"].([]any)
	assert.Equal(t, "#1", probs[0].(map[string]any)["name"])
}
