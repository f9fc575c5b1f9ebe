package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestResolveModelFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "yolo.onnx", 100)
	names := writeFile(t, dir, "coco.names", 10)

	files, err := ResolveModelFiles(names, model)
	require.NoError(t, err)
	assert.Equal(t, model, files.Model)
	assert.Equal(t, names, files.Names)
	assert.Empty(t, files.Weights)
}

func TestResolveModelFilesDarknetTriple(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "net.cfg", 100)
	weights := writeFile(t, dir, "net.weights", 100)
	names := writeFile(t, dir, "net.txt", 10)

	// Order must not matter.
	files, err := ResolveModelFiles(weights, names, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, files.Model)
	assert.Equal(t, weights, files.Weights)
	assert.Equal(t, names, files.Names)
}

func TestResolveModelFilesSizeFallback(t *testing.T) {
	dir := t.TempDir()
	// Unknown extensions: the largest file must be taken as the weights
	// and the next one as the model.
	big := writeFile(t, dir, "net.bin", 5000)
	small := writeFile(t, dir, "net.def", 100)

	files, err := ResolveModelFiles(big, small)
	require.NoError(t, err)
	assert.Equal(t, big, files.Weights)
	assert.Equal(t, small, files.Model)
}

func TestResolveModelFilesErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("no files", func(t *testing.T) {
		_, err := ResolveModelFiles()
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("duplicate role", func(t *testing.T) {
		a := writeFile(t, dir, "a.onnx", 10)
		b := writeFile(t, dir, "b.onnx", 10)
		_, err := ResolveModelFiles(a, b)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("missing model file", func(t *testing.T) {
		_, err := ResolveModelFiles(filepath.Join(dir, "nope.onnx"))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("empty model file", func(t *testing.T) {
		empty := writeFile(t, dir, "empty.onnx", 0)
		_, err := ResolveModelFiles(empty)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "empty")
	})
}

func TestLoadNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.names")
	require.NoError(t, os.WriteFile(path, []byte("person\ncar\n\n  truck  \n"), 0o644))

	names, err := LoadNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "car", "truck"}, names)
}

func TestLoadNamesMissing(t *testing.T) {
	_, err := LoadNames(filepath.Join(t.TempDir(), "nope.names"))
	assert.True(t, errors.Is(err, ErrConfiguration))
}
