package inference

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/visionkit/tiledetect/postprocess"
	"github.com/visionkit/tiledetect/tiling"
)

// Config holds every tunable of a session. A copy is taken at the start of
// each inference call, so changing settings mid-call never affects a call
// already in flight.
type Config struct {
	// Threshold is the minimum confidence for a detection to be kept.
	// Values above 1.0 are interpreted as percentages.
	Threshold float32
	// NMSThreshold is the IoU above which overlapping detections of the
	// same class are suppressed inside a single tile.
	NMSThreshold float32

	// EnableTiles activates the tiled pipeline for images larger than the
	// network input. Smaller images always run as a single tile.
	EnableTiles bool
	// TileOverlap is the fraction of the tile edge shared with each
	// neighbouring tile.
	TileOverlap float64
	// TileEdgeFactor is the fraction of the tile size within which a
	// detection counts as touching the tile border, making it a candidate
	// for cross-tile merging.
	TileEdgeFactor float32
	// CombineTilePredictions merges duplicate detections found on
	// neighbouring tiles.
	CombineTilePredictions bool
	// OnlySimilarClasses restricts cross-tile merging to detections whose
	// best class matches.
	OnlySimilarClasses bool
	// TileRectFactor bounds how sloppily two rectangles may overlap and
	// still merge; see postprocess.MergeConfig.
	TileRectFactor float32

	// Snapping aligns nearby detection edges after merging.
	Snapping bool
	// SnapHorizontalTolerance and SnapVerticalTolerance are the maximum
	// pixel distances between edges for them to be snapped together.
	SnapHorizontalTolerance int
	SnapVerticalTolerance   int
	// SnapLimitShrink and SnapLimitGrow bound the area change snapping may
	// cause, as ratios of the original rectangle area.
	SnapLimitShrink float32
	SnapLimitGrow   float32

	// NamesIncludePercentage appends the rounded confidence to each label.
	NamesIncludePercentage bool
	// IncludeAllNames lists every class above the threshold in the label,
	// not just the best one.
	IncludeAllNames bool

	// Workers caps the number of tiles processed concurrently.
	Workers int

	// AnnotationShadeAmount is the opacity of the fill drawn inside each
	// detection rectangle, 0 disables the fill.
	AnnotationShadeAmount float32
	// AnnotationLineWidth is the border thickness of detection rectangles.
	AnnotationLineWidth int
	// AnnotationIncludeDuration stamps the inference duration onto the
	// annotated image.
	AnnotationIncludeDuration bool
	// AnnotationIncludeTimestamp stamps the wall-clock time onto the
	// annotated image.
	AnnotationIncludeTimestamp bool
	// AnnotationAutoHideLabels skips labels that would not fit the image.
	AnnotationAutoHideLabels bool
	// AnnotationPixelate blurs the content of detection rectangles by
	// down- and up-sampling, for privacy masking.
	AnnotationPixelate bool
	// AnnotationPixelateSize is the cell size of the pixelation blocks.
	AnnotationPixelateSize int
	// AnnotationSuppressClasses lists class ids that are detected but not
	// drawn.
	AnnotationSuppressClasses map[int]bool
}

// Defaults returns the configuration a new session starts with.
func Defaults() Config {
	return Config{
		Threshold:    0.5,
		NMSThreshold: 0.45,

		EnableTiles:            false,
		TileOverlap:            tiling.DefaultOverlap,
		TileEdgeFactor:         0.25,
		CombineTilePredictions: true,
		OnlySimilarClasses:     true,
		TileRectFactor:         1.20,

		Snapping:                false,
		SnapHorizontalTolerance: 5,
		SnapVerticalTolerance:   5,
		SnapLimitShrink:         0.4,
		SnapLimitGrow:           1.25,

		NamesIncludePercentage: true,
		IncludeAllNames:        true,

		Workers: runtime.NumCPU(),

		AnnotationShadeAmount:      0.25,
		AnnotationLineWidth:        2,
		AnnotationIncludeDuration:  true,
		AnnotationIncludeTimestamp: false,
		AnnotationAutoHideLabels:   true,
		AnnotationPixelate:         false,
		AnnotationPixelateSize:     15,
	}
}

// normalize brings threshold-style values into [0,1]. Values above 1 are
// treated as percentages, so SetThreshold(35) means 35%.
func normalizeThreshold(v float32) float32 {
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// validate rejects settings the pipeline cannot run with.
func (c *Config) validate() error {
	if c.TileOverlap < 0 || c.TileOverlap >= 0.5 {
		return errors.Wrapf(ErrConfiguration, "tile overlap %.2f out of range [0, 0.5)", c.TileOverlap)
	}
	if c.TileEdgeFactor < 0 || c.TileEdgeFactor > 1 {
		return errors.Wrapf(ErrConfiguration, "tile edge factor %.2f out of range [0, 1]", c.TileEdgeFactor)
	}
	if c.TileRectFactor < 1 {
		return errors.Wrapf(ErrConfiguration, "tile rect factor %.2f must be at least 1.0", c.TileRectFactor)
	}
	if c.Workers < 1 {
		return errors.Wrapf(ErrConfiguration, "worker count %d must be at least 1", c.Workers)
	}
	if c.AnnotationLineWidth < 1 {
		return errors.Wrapf(ErrConfiguration, "annotation line width %d must be at least 1", c.AnnotationLineWidth)
	}
	if c.AnnotationPixelateSize < 2 {
		return errors.Wrapf(ErrConfiguration, "pixelate size %d must be at least 2", c.AnnotationPixelateSize)
	}
	return nil
}

// mergeConfig derives the cross-tile merge settings from the session config.
func (c *Config) mergeConfig() postprocess.MergeConfig {
	return postprocess.MergeConfig{
		Combine:     c.CombineTilePredictions,
		OnlySimilar: c.OnlySimilarClasses,
		RectFactor:  c.TileRectFactor,
	}
}

// snapConfig derives the edge-snapping settings from the session config.
func (c *Config) snapConfig() postprocess.SnapConfig {
	return postprocess.SnapConfig{
		Enabled:             c.Snapping,
		HorizontalTolerance: c.SnapHorizontalTolerance,
		VerticalTolerance:   c.SnapVerticalTolerance,
		LimitShrink:         c.SnapLimitShrink,
		LimitGrow:           c.SnapLimitGrow,
	}
}
