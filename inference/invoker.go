package inference

import (
	"context"
	"image"

	"github.com/visionkit/tiledetect/detection"
)

// InvokeOptions carries the per-call parameters a backend needs.
type InvokeOptions struct {
	// Threshold is the minimum confidence for a detection to be reported,
	// already normalized to [0,1].
	Threshold float32
	// NMSThreshold is the IoU above which the backend suppresses
	// overlapping detections of the same class.
	NMSThreshold float32
}

// Invoker runs a detection network on a single image. The session treats the
// backend as a black box: it hands over one tile-sized image and receives
// detections in that image's pixel coordinates, already thresholded and
// de-duplicated.
//
// Implementations must be safe for concurrent Infer calls, as the session
// runs tiles in parallel.
type Invoker interface {
	// Infer detects objects in img. Returned rectangles are in img's own
	// coordinate space. The Tile and NearEdge fields are left for the
	// caller to fill in.
	Infer(ctx context.Context, img image.Image, opts InvokeOptions) ([]detection.Detection, error)

	// InputSize returns the network input resolution. The tile planner
	// sizes tiles to it.
	InputSize() (width, height int)

	// Classes returns the class labels in id order, or nil when no names
	// are available.
	Classes() []string

	// Close releases backend resources. The invoker is unusable afterwards.
	Close() error
}
