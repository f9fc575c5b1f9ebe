package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

// LetterboxColor is the padding colour used when fitting an image into the
// network input while preserving aspect ratio. Matches the grey padding
// commonly used by YOLO-family preprocessing.
var LetterboxColor = color.RGBA{114, 114, 114, 255}

// Letterbox describes how an image was fitted into a fixed-size canvas.
// It carries everything needed to map detector output back into the
// coordinates of the original image.
type Letterbox struct {
	// Scale applied to both axes (aspect ratio is preserved).
	Scale float64
	// PadLeft and PadTop are the offsets of the scaled image on the canvas.
	PadLeft int
	PadTop  int
	// Width and Height of the original image before scaling.
	Width  int
	Height int
}

// LetterboxFit scales img to fit into a targetW x targetH canvas while
// preserving aspect ratio, padding the remainder with LetterboxColor.
func LetterboxFit(img image.Image, targetW, targetH int) (image.Image, Letterbox) {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()

	scale := min(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))
	newW := int(float64(srcW) * scale)
	newH := int(float64(srcH) * scale)

	scaled := resize.Resize(uint(newW), uint(newH), img, resize.Bilinear)

	padLeft := (targetW - newW) / 2
	padTop := (targetH - newH) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padLeft, padTop, padLeft+newW, padTop+newH),
		scaled, image.Point{}, draw.Over)

	return canvas, Letterbox{
		Scale:   scale,
		PadLeft: padLeft,
		PadTop:  padTop,
		Width:   srcW,
		Height:  srcH,
	}
}

// ToSource maps a rectangle in canvas coordinates back into the coordinates
// of the original image, undoing padding and scaling.
func (l Letterbox) ToSource(r Rect) Rect {
	if l.Scale <= 0 {
		return r
	}
	return Rect{
		X1: int(float64(r.X1-l.PadLeft) / l.Scale),
		Y1: int(float64(r.Y1-l.PadTop) / l.Scale),
		X2: int(float64(r.X2-l.PadLeft) / l.Scale),
		Y2: int(float64(r.Y2-l.PadTop) / l.Scale),
	}.Clip(l.Width, l.Height)
}
