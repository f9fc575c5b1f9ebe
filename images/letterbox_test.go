package images

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterboxFitWide(t *testing.T) {
	src := Uniform(200, 100, color.RGBA{255, 0, 0, 255})
	fitted, lb := LetterboxFit(src, 100, 100)

	assert.Equal(t, 100, fitted.Bounds().Dx())
	assert.Equal(t, 100, fitted.Bounds().Dy())
	assert.InDelta(t, 0.5, lb.Scale, 1e-9)
	assert.Equal(t, 0, lb.PadLeft)
	assert.Equal(t, 25, lb.PadTop)

	// Padding above the image keeps the letterbox colour.
	r, g, b, _ := fitted.At(50, 5).RGBA()
	assert.Equal(t, uint32(LetterboxColor.R), r>>8)
	assert.Equal(t, uint32(LetterboxColor.G), g>>8)
	assert.Equal(t, uint32(LetterboxColor.B), b>>8)

	// The centre carries the source content.
	r, _, _, _ = fitted.At(50, 50).RGBA()
	assert.Equal(t, uint32(255), r>>8)
}

func TestLetterboxToSource(t *testing.T) {
	src := Uniform(200, 100, color.White)
	_, lb := LetterboxFit(src, 100, 100)

	// The full content area maps back to the full source image.
	content := Rect{X1: 0, Y1: 25, X2: 100, Y2: 75}
	assert.Equal(t, Rect{0, 0, 200, 100}, lb.ToSource(content))

	// A rectangle in the padding clips away entirely.
	assert.True(t, lb.ToSource(Rect{X1: 0, Y1: 0, X2: 100, Y2: 20}).Empty())
}

func TestLetterboxFitAlreadySquare(t *testing.T) {
	src := Uniform(64, 64, color.White)
	_, lb := LetterboxFit(src, 64, 64)
	assert.InDelta(t, 1.0, lb.Scale, 1e-9)
	assert.Equal(t, 0, lb.PadLeft)
	assert.Equal(t, 0, lb.PadTop)

	r := Rect{X1: 10, Y1: 12, X2: 30, Y2: 40}
	assert.Equal(t, r, lb.ToSource(r))
}
