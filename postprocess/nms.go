// Package postprocess - duplicate suppression, cross-tile merging and edge
// snapping for detection results.
package postprocess

import (
	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which the lower-confidence box is
	// suppressed.
	IoUThreshold float32
	// ClassAware restricts suppression to boxes of the same best class.
	ClassAware bool
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
// Detections are ranked by descending confidence (ties broken by position,
// see detection.Sort) and each anchor suppresses every remaining box that
// overlaps it beyond the IoU threshold.
func ApplyGreedyNMS(dets []detection.Detection, config NMSConfig) []detection.Detection {
	n := len(dets)
	if n == 0 {
		return nil
	}

	ranked := make([]detection.Detection, n)
	copy(ranked, dets)
	detection.Sort(ranked)

	filtered := make([]detection.Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := ranked[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.BestClass != ranked[j].BestClass {
				continue
			}
			if images.CalculateIoU(anchor.Rect, ranked[j].Rect) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
