package detection

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ReportMeta carries session-level details included in a serialized report.
type ReportMeta struct {
	ModelFile    string
	NamesFile    string
	WeightsFile  string
	Threshold    float32
	NMSThreshold float32
	IncludePct   bool
	TilesEnabled bool
	Snapping     bool
}

// RectReport is a rectangle in full-image pixel coordinates.
type RectReport struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ProbabilityReport is one class/confidence pair of a detection.
type ProbabilityReport struct {
	Class       int     `json:"class"`
	Probability float32 `json:"probability"`
	Name        string  `json:"name"`
}

// PredictionReport is one serialized detection. The field order is stable:
// rectangle, class id, label, confidence, per-class probabilities.
type PredictionReport struct {
	Index            int                 `json:"prediction_index"`
	Rect             RectReport          `json:"rect"`
	BestClass        int                 `json:"best_class"`
	Name             string              `json:"name"`
	BestProbability  float32             `json:"best_probability"`
	AllProbabilities []ProbabilityReport `json:"all_probabilities"`
	OriginalPoint    PointReport         `json:"original_point"`
	OriginalSize     SizeReport          `json:"original_size"`
	Tile             int                 `json:"tile"`
}

// PointReport is a normalized midpoint (fractions of image size).
type PointReport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SizeReport is a normalized size (fractions of image size).
type SizeReport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FileReport describes one analysed image and its predictions.
type FileReport struct {
	Count          int                `json:"count"`
	Duration       string             `json:"duration"`
	OriginalWidth  int                `json:"original_width"`
	OriginalHeight int                `json:"original_height"`
	Tiles          TilesReport        `json:"tiles"`
	Dropped        int                `json:"dropped"`
	Predictions    []PredictionReport `json:"prediction"`
}

// TilesReport describes the tile grid used for the call.
type TilesReport struct {
	Horizontal int `json:"horizontal"`
	Vertical   int `json:"vertical"`
	Width      int `json:"width"`
	Height     int `json:"height"`
}

// NetworkReport names the model files backing the session.
type NetworkReport struct {
	Model   string `json:"model"`
	Names   string `json:"names"`
	Weights string `json:"weights"`
}

// SettingsReport records the configuration the call ran with.
type SettingsReport struct {
	Threshold         float32 `json:"threshold"`
	NMS               float32 `json:"nms"`
	IncludePercentage bool    `json:"include_percentage"`
	EnableTiles       bool    `json:"enable_tiles"`
	Snapping          bool    `json:"snapping"`
}

// TimestampReport records when the report was produced.
type TimestampReport struct {
	Epoch int64  `json:"epoch"`
	Text  string `json:"text"`
}

// Report is the full serialized form of a PredictionSet.
type Report struct {
	File      FileReport      `json:"file"`
	Network   NetworkReport   `json:"network"`
	Settings  SettingsReport  `json:"settings"`
	Timestamp TimestampReport `json:"timestamp"`
}

// BuildReport converts a PredictionSet into its serializable form.
func BuildReport(set *PredictionSet, names []string, meta ReportMeta) Report {
	preds := make([]PredictionReport, 0, set.Count())
	for i, d := range set.Detections {
		probs := make([]ProbabilityReport, 0, len(d.Probabilities))
		ids := make([]int, 0, len(d.Probabilities))
		for id := range d.Probabilities {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			probs = append(probs, ProbabilityReport{
				Class:       id,
				Probability: d.Probabilities[id],
				Name:        className(names, id),
			})
		}

		w := float64(set.ImageWidth)
		h := float64(set.ImageHeight)
		preds = append(preds, PredictionReport{
			Index: i,
			Rect: RectReport{
				X:      d.Rect.X1,
				Y:      d.Rect.Y1,
				Width:  d.Rect.Width(),
				Height: d.Rect.Height(),
			},
			BestClass:        d.BestClass,
			Name:             d.Name,
			BestProbability:  d.BestProbability,
			AllProbabilities: probs,
			OriginalPoint: PointReport{
				X: (float64(d.Rect.X1) + float64(d.Rect.Width())/2) / w,
				Y: (float64(d.Rect.Y1) + float64(d.Rect.Height())/2) / h,
			},
			OriginalSize: SizeReport{
				Width:  float64(d.Rect.Width()) / w,
				Height: float64(d.Rect.Height()) / h,
			},
			Tile: d.Tile,
		})
	}

	ts := set.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Report{
		File: FileReport{
			Count:          set.Count(),
			Duration:       set.Duration.String(),
			OriginalWidth:  set.ImageWidth,
			OriginalHeight: set.ImageHeight,
			Tiles: TilesReport{
				Horizontal: set.TileCols,
				Vertical:   set.TileRows,
				Width:      set.TileWidth,
				Height:     set.TileHeight,
			},
			Dropped:     set.Dropped,
			Predictions: preds,
		},
		Network: NetworkReport{
			Model:   meta.ModelFile,
			Names:   meta.NamesFile,
			Weights: meta.WeightsFile,
		},
		Settings: SettingsReport{
			Threshold:         meta.Threshold,
			NMS:               meta.NMSThreshold,
			IncludePercentage: meta.IncludePct,
			EnableTiles:       meta.TilesEnabled,
			Snapping:          meta.Snapping,
		},
		Timestamp: TimestampReport{
			Epoch: ts.Unix(),
			Text:  ts.Format("2006-01-02 15:04:05 -0700"),
		},
	}
}

// JSON serializes the report with indentation for readability.
func (r Report) JSON() ([]byte, error) {
	buf, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize prediction report")
	}
	return buf, nil
}
