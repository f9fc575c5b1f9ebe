// Package detection - detection results and the prediction set produced by
// one inference call.
package detection

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/chewxy/math32"

	"github.com/visionkit/tiledetect/images"
)

// TileNone marks a detection that was merged across tiles and is therefore
// not attributable to any single tile.
const TileNone = -1

// Detection is a single detected object in full-image pixel coordinates.
type Detection struct {
	// Rect locates the object in the original image.
	Rect images.Rect
	// BestClass is the class with the highest probability.
	BestClass int
	// Name is the display label, e.g. "car 80%, truck 60%".
	Name string
	// BestProbability is the confidence of BestClass.
	BestProbability float32
	// Probabilities maps class id to confidence for every class at or above
	// the detection threshold. Zero-probability classes are never stored.
	Probabilities map[int]float32
	// Tile is the index of the tile the object was found on, or TileNone
	// once detections from several tiles have been combined.
	Tile int
	// NearEdge marks detections close enough to a tile border to be
	// candidates for cross-tile merging.
	NearEdge bool `json:"-"`
}

// RefreshBest recomputes BestClass and BestProbability from Probabilities.
// Ties go to the lowest class id for determinism.
func (d *Detection) RefreshBest() {
	d.BestClass = 0
	d.BestProbability = 0

	ids := make([]int, 0, len(d.Probabilities))
	for id := range d.Probabilities {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if d.Probabilities[id] > d.BestProbability {
			d.BestClass = id
			d.BestProbability = d.Probabilities[id]
		}
	}
}

// ComposeName rebuilds the display label from the probability map.
// With includePercentage the label carries rounded percentages; with
// includeAll every non-best class is appended in class-id order.
func (d *Detection) ComposeName(names []string, includePercentage, includeAll bool) {
	d.Name = className(names, d.BestClass)
	if includePercentage {
		d.Name += fmt.Sprintf(" %d%%", int(math32.Round(100*d.BestProbability)))
	}

	if !includeAll || len(d.Probabilities) < 2 {
		return
	}

	ids := make([]int, 0, len(d.Probabilities))
	for id := range d.Probabilities {
		if id != d.BestClass {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString(d.Name)
	for _, id := range ids {
		b.WriteString(", ")
		b.WriteString(className(names, id))
		if includePercentage {
			fmt.Fprintf(&b, " %d%%", int(math32.Round(100*d.Probabilities[id])))
		}
	}
	d.Name = b.String()
}

// className returns the name for a class id, inventing a placeholder when no
// names file was supplied or the id is out of range.
func className(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("#%d", id)
}

// Sort orders detections by descending best-class confidence; ties are
// broken by ascending rectangle top-left (y, then x) so the order is
// deterministic.
func Sort(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].BestProbability != dets[j].BestProbability {
			return dets[i].BestProbability > dets[j].BestProbability
		}
		if dets[i].Rect.Y1 != dets[j].Rect.Y1 {
			return dets[i].Rect.Y1 < dets[j].Rect.Y1
		}
		return dets[i].Rect.X1 < dets[j].Rect.X1
	})
}

// PredictionSet is the full set of detections produced by one inference
// call. It is immutable once produced; the next call replaces it wholesale.
type PredictionSet struct {
	// Detections in the order defined by Sort.
	Detections []Detection
	// ImageWidth and ImageHeight are the dimensions of the source image.
	ImageWidth  int
	ImageHeight int
	// NetworkWidth and NetworkHeight are the detector input dimensions.
	NetworkWidth  int
	NetworkHeight int
	// Tile grid used for this call. A non-tiled call reports a 1x1 grid
	// with the tile sized to the whole image.
	TileCols   int
	TileRows   int
	TileWidth  int
	TileHeight int
	// Dropped counts detections discarded because their rectangle had zero
	// area after remapping to full-image coordinates.
	Dropped int
	// Duration is the wall-clock time of the inference call.
	Duration time.Duration
	// Timestamp records when the inference call completed.
	Timestamp time.Time
	// Source is the image the detections were produced from. Annotation
	// draws on a copy, never on this image.
	Source image.Image
}

// Count returns the number of detections in the set.
func (p *PredictionSet) Count() int {
	if p == nil {
		return 0
	}
	return len(p.Detections)
}

// String renders the set as readable lines of text, mostly for debugging
// and logs.
func (p *PredictionSet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "prediction results: %d", p.Count())
	for i, d := range p.Detections {
		fmt.Fprintf(&b, "\n-> %d/%d: %q #%d prob=%f x=%d y=%d w=%d h=%d tile=%d entries=%d",
			i+1, p.Count(), d.Name, d.BestClass, d.BestProbability,
			d.Rect.X1, d.Rect.Y1, d.Rect.Width(), d.Rect.Height(), d.Tile, len(d.Probabilities))
	}
	return b.String()
}
