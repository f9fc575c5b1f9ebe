// Package render draws prediction sets onto images: rectangle outlines,
// shaded fills, class labels, privacy pixelation and the duration and
// timestamp stamps.
package render

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ClassColor returns a stable, saturated colour for a class id. Hues step
// around the wheel by the golden angle, so neighbouring ids get clearly
// distinct colours without any stored palette.
func ClassColor(id int) color.RGBA {
	if id < 0 {
		id = -id
	}
	hue := math.Mod(float64(id)*137.508, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// labelTextColor picks black or white text for a given background so the
// label stays readable on any class colour.
func labelTextColor(bg color.RGBA) color.RGBA {
	c := colorful.Color{R: float64(bg.R) / 255, G: float64(bg.G) / 255, B: float64(bg.B) / 255}
	_, _, l := c.HSLuv()
	if l > 60 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}
