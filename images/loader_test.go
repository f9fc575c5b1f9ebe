package images

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	src := Uniform(20, 10, color.RGBA{10, 200, 30, 255})

	require.NoError(t, Save(src, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Bounds().Dx())
	assert.Equal(t, 10, loaded.Bounds().Dy())

	r, g, b, _ := loaded.At(5, 5).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(200), g>>8)
	assert.Equal(t, uint32(30), b>>8)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestCrop(t *testing.T) {
	src := Uniform(100, 100, color.White)
	cropped := Crop(src, MakeRect(10, 20, 30, 40))
	assert.Equal(t, 30, cropped.Bounds().Dx())
	assert.Equal(t, 40, cropped.Bounds().Dy())
}

func TestFromPixels(t *testing.T) {
	t.Run("grayscale", func(t *testing.T) {
		img, err := FromPixels([]byte{0, 128, 255, 64}, 2, 2, 1)
		require.NoError(t, err)
		r, _, _, _ := img.At(1, 0).RGBA()
		assert.Equal(t, uint32(128), r>>8)
	})

	t.Run("rgb", func(t *testing.T) {
		pix := []byte{255, 0, 0, 0, 255, 0}
		img, err := FromPixels(pix, 2, 1, 3)
		require.NoError(t, err)
		_, g, _, a := img.At(1, 0).RGBA()
		assert.Equal(t, uint32(255), g>>8)
		assert.Equal(t, uint32(255), a>>8)
	})

	t.Run("rgba", func(t *testing.T) {
		pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		img, err := FromPixels(pix, 2, 1, 4)
		require.NoError(t, err)
		assert.Equal(t, 2, img.Bounds().Dx())
	})

	t.Run("wrong buffer size", func(t *testing.T) {
		_, err := FromPixels([]byte{1, 2, 3}, 2, 2, 3)
		assert.Error(t, err)
	})

	t.Run("unsupported channels", func(t *testing.T) {
		_, err := FromPixels([]byte{1, 2}, 1, 1, 2)
		assert.Error(t, err)
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		_, err := FromPixels(nil, 0, 10, 3)
		assert.Error(t, err)
	})
}
