// Package inference ties the pipeline together: it plans tiles, fans them
// out to a detector backend, remaps and merges the results, and keeps the
// most recent prediction set for retrieval, serialization and annotation.
package inference

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
	"github.com/visionkit/tiledetect/postprocess"
	"github.com/visionkit/tiledetect/render"
	"github.com/visionkit/tiledetect/tiling"
)

// Session owns a detector backend and the configuration applied to every
// inference call. All methods are safe for concurrent use; each call works on
// a snapshot of the configuration, so setters never disturb a call already
// in flight.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	invoker Invoker
	files   ModelFiles
	names   []string
	log     *slog.Logger
	closed  bool
	last    *detection.PredictionSet
}

// NewSession wraps a detector backend in a session with default settings.
// The class names are taken from the backend; files is recorded for the
// serialized report and may be zero for backends not built from disk.
func NewSession(invoker Invoker, files ModelFiles) (*Session, error) {
	if invoker == nil {
		return nil, errors.Wrap(ErrConfiguration, "no detector backend given")
	}
	return &Session{
		cfg:     Defaults(),
		invoker: invoker,
		files:   files,
		names:   invoker.Classes(),
		log:     slog.Default(),
	}, nil
}

// Close releases the backend. Further calls on the session return ErrClosed.
// Closing twice is harmless.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.invoker.Close()
}

// snapshot returns a validated copy of the current configuration.
func (s *Session) snapshot() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Config{}, ErrClosed
	}
	cfg := s.cfg
	if cfg.AnnotationSuppressClasses != nil {
		suppress := make(map[int]bool, len(cfg.AnnotationSuppressClasses))
		for id, v := range cfg.AnnotationSuppressClasses {
			suppress[id] = v
		}
		cfg.AnnotationSuppressClasses = suppress
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// InferFile loads an image from disk and runs detection on it.
func (s *Session) InferFile(ctx context.Context, path string) (*detection.PredictionSet, error) {
	img, err := images.Load(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInference, "%v", err)
	}
	return s.Infer(ctx, img)
}

// InferPixels wraps a raw interleaved 8-bit pixel buffer and runs detection
// on it. Supported channel counts are 1, 3 and 4.
func (s *Session) InferPixels(ctx context.Context, pix []byte, width, height, channels int) (*detection.PredictionSet, error) {
	img, err := images.FromPixels(pix, width, height, channels)
	if err != nil {
		return nil, errors.Wrapf(ErrInference, "%v", err)
	}
	return s.Infer(ctx, img)
}

// Infer runs the full pipeline on img and stores the result as the session's
// current prediction set. An image in which nothing is detected produces an
// empty set, not an error.
func (s *Session) Infer(ctx context.Context, img image.Image) (*detection.PredictionSet, error) {
	cfg, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	imageW, imageH := bounds.Dx(), bounds.Dy()
	netW, netH := s.invoker.InputSize()

	var plan tiling.Plan
	if cfg.EnableTiles && (imageW > netW || imageH > netH) {
		plan, err = tiling.Make(imageW, imageH, netW, netH, cfg.TileOverlap)
	} else {
		plan, err = tiling.Single(imageW, imageH)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "%v", err)
	}

	start := time.Now()
	dets, dropped, err := s.runTiles(ctx, img, plan, cfg)
	if err != nil {
		return nil, err
	}

	if !plan.IsSingle() {
		dets = postprocess.MergeTilePredictions(dets, cfg.mergeConfig())
		dets = postprocess.SnapEdges(dets, imageW, imageH, cfg.snapConfig())
	}
	detection.Sort(dets)

	for i := range dets {
		dets[i].ComposeName(s.names, cfg.NamesIncludePercentage, cfg.IncludeAllNames)
	}

	set := &detection.PredictionSet{
		Detections:    dets,
		ImageWidth:    imageW,
		ImageHeight:   imageH,
		NetworkWidth:  netW,
		NetworkHeight: netH,
		TileCols:      plan.Cols,
		TileRows:      plan.Rows,
		TileWidth:     plan.TileWidth,
		TileHeight:    plan.TileHeight,
		Dropped:       dropped,
		Duration:      time.Since(start),
		Timestamp:     time.Now(),
		Source:        img,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.last = set
	log := s.log
	s.mu.Unlock()

	log.Debug("inference complete",
		"detections", set.Count(),
		"dropped", set.Dropped,
		"tiles", plan.Cols*plan.Rows,
		"duration", set.Duration)

	return set, nil
}

// runTiles fans the tiles of a plan out to the backend and collects the
// remapped detections. The first backend failure aborts the call.
func (s *Session) runTiles(ctx context.Context, img image.Image, plan tiling.Plan, cfg Config) ([]detection.Detection, int, error) {
	opts := InvokeOptions{
		Threshold:    normalizeThreshold(cfg.Threshold),
		NMSThreshold: normalizeThreshold(cfg.NMSThreshold),
	}

	workers := cfg.Workers
	if workers > len(plan.Tiles) {
		workers = len(plan.Tiles)
	}
	sem := make(chan struct{}, workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		all      []detection.Detection
		dropped  int
		firstErr error
	)

	for _, tile := range plan.Tiles {
		wg.Add(1)
		sem <- struct{}{}
		go func(tile tiling.Tile) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = errors.Wrapf(ErrInference, "%v", err)
				}
				mu.Unlock()
				return
			}

			crop := img
			if !plan.IsSingle() {
				crop = images.Crop(img, tile.Rect)
			}

			dets, err := s.invoker.Infer(ctx, crop, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(ErrInference, "tile %d: %v", tile.Index, err)
				}
				return
			}
			mapped, d := remapTile(dets, tile, plan.ImageWidth, plan.ImageHeight, cfg.TileEdgeFactor)
			all = append(all, mapped...)
			dropped += d
		}(tile)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, 0, firstErr
	}
	return all, dropped, nil
}

// Results returns the prediction set of the most recent successful inference
// call, or nil when none has completed yet.
func (s *Session) Results() *detection.PredictionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// ResultsJSON serializes the most recent prediction set, the model files and
// the settings it ran with into an indented JSON report.
func (s *Session) ResultsJSON() ([]byte, error) {
	s.mu.Lock()
	set := s.last
	cfg := s.cfg
	files := s.files
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if set == nil {
		return nil, errors.Wrap(ErrInference, "no results available yet")
	}

	report := detection.BuildReport(set, s.names, detection.ReportMeta{
		ModelFile:    files.Model,
		NamesFile:    files.Names,
		WeightsFile:  files.Weights,
		Threshold:    normalizeThreshold(cfg.Threshold),
		NMSThreshold: normalizeThreshold(cfg.NMSThreshold),
		IncludePct:   cfg.NamesIncludePercentage,
		TilesEnabled: cfg.EnableTiles,
		Snapping:     cfg.Snapping,
	})
	return report.JSON()
}

// Annotate draws the most recent prediction set onto a copy of its source
// image. The stored set and its source are never modified.
func (s *Session) Annotate() (image.Image, error) {
	s.mu.Lock()
	set := s.last
	cfg := s.cfg
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if set == nil {
		return nil, errors.Wrap(ErrInference, "no results available yet")
	}

	return render.Annotate(set, render.Options{
		ShadeAmount:      cfg.AnnotationShadeAmount,
		LineWidth:        cfg.AnnotationLineWidth,
		IncludeDuration:  cfg.AnnotationIncludeDuration,
		IncludeTimestamp: cfg.AnnotationIncludeTimestamp,
		AutoHideLabels:   cfg.AnnotationAutoHideLabels,
		Pixelate:         cfg.AnnotationPixelate,
		PixelateSize:     cfg.AnnotationPixelateSize,
		SuppressClasses:  cfg.AnnotationSuppressClasses,
	})
}

// AnnotateToFile renders the most recent prediction set onto a copy of its
// source image and writes it to disk. The format follows the file extension.
func (s *Session) AnnotateToFile(path string) error {
	img, err := s.Annotate()
	if err != nil {
		return err
	}
	return images.Save(img, path)
}

// Config returns a copy of the current configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig replaces the whole configuration at once and returns the
// previous one. An invalid configuration is rejected and nothing changes.
func (s *Session) SetConfig(cfg Config) (Config, error) {
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	return prev, nil
}

// SetLogger replaces the session logger and returns the previous one. A nil
// logger restores slog.Default().
func (s *Session) SetLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.log
	s.log = log
	return prev
}

// swap stores a new value in one configuration field under the session lock
// and returns the previous value.
func swap[T any](s *Session, field *T, v T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := *field
	*field = v
	return prev
}

// SetThreshold sets the detection confidence threshold and returns the
// previous value. Values above 1.0 are interpreted as percentages.
func (s *Session) SetThreshold(v float32) float32 {
	return swap(s, &s.cfg.Threshold, normalizeThreshold(v))
}

// SetNMSThreshold sets the per-tile suppression IoU threshold and returns
// the previous value. Values above 1.0 are interpreted as percentages.
func (s *Session) SetNMSThreshold(v float32) float32 {
	return swap(s, &s.cfg.NMSThreshold, normalizeThreshold(v))
}

// SetEnableTiles toggles the tiled pipeline and returns the previous value.
func (s *Session) SetEnableTiles(v bool) bool {
	return swap(s, &s.cfg.EnableTiles, v)
}

// SetTileOverlap sets the minimum overlap fraction between neighbouring
// tiles and returns the previous value.
func (s *Session) SetTileOverlap(v float64) float64 {
	return swap(s, &s.cfg.TileOverlap, v)
}

// SetTileEdgeFactor sets the fraction of the tile size within which a
// detection counts as touching the tile border, and returns the previous
// value.
func (s *Session) SetTileEdgeFactor(v float32) float32 {
	return swap(s, &s.cfg.TileEdgeFactor, v)
}

// SetCombineTilePredictions toggles cross-tile merging and returns the
// previous value.
func (s *Session) SetCombineTilePredictions(v bool) bool {
	return swap(s, &s.cfg.CombineTilePredictions, v)
}

// SetOnlySimilarClasses toggles the same-class restriction on cross-tile
// merging and returns the previous value.
func (s *Session) SetOnlySimilarClasses(v bool) bool {
	return swap(s, &s.cfg.OnlySimilarClasses, v)
}

// SetTileRectFactor sets the union-area bound for cross-tile merging and
// returns the previous value.
func (s *Session) SetTileRectFactor(v float32) float32 {
	return swap(s, &s.cfg.TileRectFactor, v)
}

// SetSnapping toggles post-merge edge snapping and returns the previous
// value.
func (s *Session) SetSnapping(v bool) bool {
	return swap(s, &s.cfg.Snapping, v)
}

// SetSnapHorizontalTolerance sets the pixel tolerance for snapping vertical
// edges and returns the previous value.
func (s *Session) SetSnapHorizontalTolerance(v int) int {
	return swap(s, &s.cfg.SnapHorizontalTolerance, v)
}

// SetSnapVerticalTolerance sets the pixel tolerance for snapping horizontal
// edges and returns the previous value.
func (s *Session) SetSnapVerticalTolerance(v int) int {
	return swap(s, &s.cfg.SnapVerticalTolerance, v)
}

// SetSnapLimitShrink sets the minimum allowed area ratio after snapping and
// returns the previous value.
func (s *Session) SetSnapLimitShrink(v float32) float32 {
	return swap(s, &s.cfg.SnapLimitShrink, v)
}

// SetSnapLimitGrow sets the maximum allowed area ratio after snapping and
// returns the previous value.
func (s *Session) SetSnapLimitGrow(v float32) float32 {
	return swap(s, &s.cfg.SnapLimitGrow, v)
}

// SetNamesIncludePercentage toggles confidence percentages in labels and
// returns the previous value.
func (s *Session) SetNamesIncludePercentage(v bool) bool {
	return swap(s, &s.cfg.NamesIncludePercentage, v)
}

// SetIncludeAllNames toggles listing every qualifying class in labels and
// returns the previous value.
func (s *Session) SetIncludeAllNames(v bool) bool {
	return swap(s, &s.cfg.IncludeAllNames, v)
}

// SetWorkers sets the number of tiles processed concurrently and returns the
// previous value.
func (s *Session) SetWorkers(v int) int {
	return swap(s, &s.cfg.Workers, v)
}

// SetAnnotationShadeAmount sets the opacity of the rectangle fill and
// returns the previous value.
func (s *Session) SetAnnotationShadeAmount(v float32) float32 {
	return swap(s, &s.cfg.AnnotationShadeAmount, v)
}

// SetAnnotationLineWidth sets the rectangle border thickness and returns the
// previous value.
func (s *Session) SetAnnotationLineWidth(v int) int {
	return swap(s, &s.cfg.AnnotationLineWidth, v)
}

// SetAnnotationIncludeDuration toggles the duration stamp on annotated
// images and returns the previous value.
func (s *Session) SetAnnotationIncludeDuration(v bool) bool {
	return swap(s, &s.cfg.AnnotationIncludeDuration, v)
}

// SetAnnotationIncludeTimestamp toggles the timestamp on annotated images
// and returns the previous value.
func (s *Session) SetAnnotationIncludeTimestamp(v bool) bool {
	return swap(s, &s.cfg.AnnotationIncludeTimestamp, v)
}

// SetAnnotationAutoHideLabels toggles skipping labels that do not fit the
// image and returns the previous value.
func (s *Session) SetAnnotationAutoHideLabels(v bool) bool {
	return swap(s, &s.cfg.AnnotationAutoHideLabels, v)
}

// SetAnnotationPixelate toggles pixelation of detection rectangles and
// returns the previous value.
func (s *Session) SetAnnotationPixelate(v bool) bool {
	return swap(s, &s.cfg.AnnotationPixelate, v)
}

// SetAnnotationPixelateSize sets the pixelation block size and returns the
// previous value.
func (s *Session) SetAnnotationPixelateSize(v int) int {
	return swap(s, &s.cfg.AnnotationPixelateSize, v)
}

// SetAnnotationSuppressClasses replaces the set of class ids that are
// detected but not drawn, and returns the previous set.
func (s *Session) SetAnnotationSuppressClasses(classes map[int]bool) map[int]bool {
	return swap(s, &s.cfg.AnnotationSuppressClasses, classes)
}
