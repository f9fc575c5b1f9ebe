// Package images - image geometry and pixel utilities shared by the pipeline.
package images

// Rect is a lightweight bounding box in pixel coordinates.
// X2,Y2 are exclusive (like image.Rectangle).
type Rect struct {
	X1, Y1, X2, Y2 int
}

// MakeRect returns a Rect from a top-left corner plus width and height.
func MakeRect(x, y, w, h int) Rect {
	return Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns the number of pixels covered by the rectangle.
// Degenerate rectangles have zero area.
func (r Rect) Area() int {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Area() == 0 }

// Offset returns the rectangle translated by dx, dy.
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Intersect returns the overlapping region of two rectangles.
// The result is empty when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
	if out.X2 <= out.X1 || out.Y2 <= out.Y1 {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
		X2: max(r.X2, o.X2),
		Y2: max(r.Y2, o.Y2),
	}
}

// Clip constrains the rectangle to the image bounds [0,0,width,height].
func (r Rect) Clip(width, height int) Rect {
	out := Rect{
		X1: max(0, r.X1),
		Y1: max(0, r.Y1),
		X2: min(width, r.X2),
		Y2: min(height, r.Y2),
	}
	if out.X2 <= out.X1 || out.Y2 <= out.Y1 {
		return Rect{}
	}
	return out
}

// CalculateIoU computes the Intersection over Union of two rectangles.
//
// IoU is the standard overlap metric used by NMS and cross-tile merging:
// 1.0 means the rectangles are identical, 0.0 means they do not overlap.
// Uses the inclusion-exclusion principle for the union area so the overlap
// is not double counted.
func CalculateIoU(r, o Rect) float32 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	return float32(inter) / float32(union)
}
