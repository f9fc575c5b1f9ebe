package images

import (
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Load reads and decodes an image file. PNG, JPEG and GIF are supported.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %q", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", path)
	}
	return img, nil
}

// Save encodes an image to disk. The format is chosen from the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save image %q", path)
	}
	return nil
}

// Crop returns a copy of the region of img described by r.
func Crop(img image.Image, r Rect) image.Image {
	return imaging.Crop(img, image.Rect(r.X1, r.Y1, r.X2, r.Y2))
}

// FromPixels wraps a raw interleaved 8-bit pixel buffer as an image.Image.
// Supported channel counts are 1 (grayscale), 3 (RGB) and 4 (RGBA).
func FromPixels(pix []byte, width, height, channels int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image dimensions: %dx%d", width, height)
	}
	if len(pix) != width*height*channels {
		return nil, errors.Errorf("pixel buffer size %d does not match %dx%dx%d",
			len(pix), width, height, channels)
	}

	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, pix)
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			img.Pix[i*4+0] = pix[i*3+0]
			img.Pix[i*4+1] = pix[i*3+1]
			img.Pix[i*4+2] = pix[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case 4:
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, pix)
		return img, nil
	default:
		return nil, errors.Errorf("unsupported channel count: %d", channels)
	}
}

// Uniform creates a solid-colour RGBA image, mostly useful in tests.
func Uniform(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	r, g, b, a := c.RGBA()
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = uint8(r >> 8)
		img.Pix[i*4+1] = uint8(g >> 8)
		img.Pix[i*4+2] = uint8(b >> 8)
		img.Pix[i*4+3] = uint8(a >> 8)
	}
	return img
}
