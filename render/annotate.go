package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/visionkit/tiledetect/detection"
	"github.com/visionkit/tiledetect/images"
)

// Options controls what Annotate draws.
type Options struct {
	// ShadeAmount is the opacity of the fill inside each rectangle, in
	// [0,1]. Zero draws no fill.
	ShadeAmount float32
	// LineWidth is the border thickness of detection rectangles.
	LineWidth int
	// IncludeDuration stamps the inference duration in the top-left corner.
	IncludeDuration bool
	// IncludeTimestamp stamps the capture time in the bottom-left corner.
	IncludeTimestamp bool
	// AutoHideLabels skips labels that cannot be made to fit the image.
	AutoHideLabels bool
	// Pixelate obscures the content of each rectangle before drawing it.
	Pixelate bool
	// PixelateSize is the block size of the pixelation.
	PixelateSize int
	// SuppressClasses lists class ids whose detections are not drawn.
	SuppressClasses map[int]bool
}

var labelFace = basicfont.Face7x13

// Annotate renders a prediction set onto a copy of its source image. The
// set and its source image are never modified.
func Annotate(set *detection.PredictionSet, opts Options) (image.Image, error) {
	if set == nil || set.Source == nil {
		return nil, errors.New("no source image to annotate")
	}

	canvas := imaging.Clone(set.Source)
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	for _, d := range set.Detections {
		if opts.SuppressClasses[d.BestClass] {
			continue
		}
		r := d.Rect.Clip(w, h)
		if r.Empty() {
			continue
		}

		col := ClassColor(d.BestClass)

		if opts.Pixelate && opts.PixelateSize >= 2 {
			pixelate(canvas, r, opts.PixelateSize)
		}
		if opts.ShadeAmount > 0 {
			blendFill(canvas, r, col, opts.ShadeAmount)
		}
		strokeRect(canvas, r, col, opts.LineWidth)
		drawLabel(canvas, r, d.Name, col, opts.AutoHideLabels)
	}

	if opts.IncludeDuration {
		stamp(canvas, 2, 2, set.Duration.String())
	}
	if opts.IncludeTimestamp && !set.Timestamp.IsZero() {
		text := set.Timestamp.Format("2006-01-02 15:04:05")
		stamp(canvas, 2, h-labelFace.Height-2, text)
	}

	return canvas, nil
}

// pixelate replaces a region with a blocky version of itself by sampling it
// down to one pixel per cell and scaling back up with nearest-neighbour.
func pixelate(canvas *image.NRGBA, r images.Rect, cell int) {
	w := r.Width()
	h := r.Height()
	cols := w / cell
	rows := h / cell
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	region := imaging.Crop(canvas, image.Rect(r.X1, r.Y1, r.X2, r.Y2))
	small := transform.Resize(region, cols, rows, transform.Linear)
	blocky := transform.Resize(small, w, h, transform.NearestNeighbor)
	draw.Draw(canvas, image.Rect(r.X1, r.Y1, r.X2, r.Y2), blocky, image.Point{}, draw.Src)
}

// blendFill tints the region with the colour at the given opacity.
func blendFill(canvas *image.NRGBA, r images.Rect, col color.RGBA, amount float32) {
	if amount > 1 {
		amount = 1
	}
	for y := r.Y1; y < r.Y2; y++ {
		row := canvas.PixOffset(r.X1, y)
		for x := r.X1; x < r.X2; x++ {
			p := row + (x-r.X1)*4
			canvas.Pix[p+0] = blend(canvas.Pix[p+0], col.R, amount)
			canvas.Pix[p+1] = blend(canvas.Pix[p+1], col.G, amount)
			canvas.Pix[p+2] = blend(canvas.Pix[p+2], col.B, amount)
		}
	}
}

func blend(under, over uint8, amount float32) uint8 {
	return uint8(float32(under)*(1-amount) + float32(over)*amount)
}

// strokeRect draws the rectangle border as four solid bars, growing inwards
// so the outline never spills outside the detection.
func strokeRect(canvas *image.NRGBA, r images.Rect, col color.RGBA, width int) {
	if width < 1 {
		width = 1
	}
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	bars := []images.Rect{
		{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y1 + width},
		{X1: r.X1, Y1: r.Y2 - width, X2: r.X2, Y2: r.Y2},
		{X1: r.X1, Y1: r.Y1, X2: r.X1 + width, Y2: r.Y2},
		{X1: r.X2 - width, Y1: r.Y1, X2: r.X2, Y2: r.Y2},
	}
	for _, bar := range bars {
		bar = bar.Clip(w, h)
		for y := bar.Y1; y < bar.Y2; y++ {
			for x := bar.X1; x < bar.X2; x++ {
				canvas.SetNRGBA(x, y, color.NRGBA{R: col.R, G: col.G, B: col.B, A: 255})
			}
		}
	}
}

// drawLabel writes the detection name on a solid background bar, placed just
// above the rectangle or inside its top edge when there is no room above.
func drawLabel(canvas *image.NRGBA, r images.Rect, text string, col color.RGBA, autoHide bool) {
	if text == "" {
		return
	}
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	textW := font.MeasureString(labelFace, text).Ceil()
	boxW := textW + 4
	boxH := labelFace.Height + 2

	x := r.X1
	y := r.Y1 - boxH
	if y < 0 {
		y = r.Y1
	}
	if x+boxW > w {
		x = w - boxW
	}
	if x < 0 {
		if autoHide {
			return
		}
		x = 0
	}
	if y+boxH > h {
		if autoHide {
			return
		}
		y = h - boxH
	}

	box := images.Rect{X1: x, Y1: y, X2: x + boxW, Y2: y + boxH}.Clip(w, h)
	for py := box.Y1; py < box.Y2; py++ {
		for px := box.X1; px < box.X2; px++ {
			canvas.SetNRGBA(px, py, color.NRGBA{R: col.R, G: col.G, B: col.B, A: 255})
		}
	}

	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelTextColor(col)),
		Face: labelFace,
		Dot:  fixed.P(x+2, y+labelFace.Ascent),
	}
	drawer.DrawString(text)
}

// stamp writes white-on-black status text, used for the duration and
// timestamp corners.
func stamp(canvas *image.NRGBA, x, y int, text string) {
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	textW := font.MeasureString(labelFace, text).Ceil()
	box := images.Rect{X1: x - 2, Y1: y - 1, X2: x + textW + 2, Y2: y + labelFace.Height + 1}.Clip(w, h)
	for py := box.Y1; py < box.Y2; py++ {
		for px := box.X1; px < box.X2; px++ {
			canvas.SetNRGBA(px, py, color.NRGBA{A: 255})
		}
	}

	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: labelFace,
		Dot:  fixed.P(x, y+labelFace.Ascent),
	}
	drawer.DrawString(text)
}
