package raster

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/streetcover/internal/model"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	require.NoError(t, png.Encode(f, img))
}

func TestLoad_PNG(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(2, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	path := filepath.Join(t.TempDir(), "A_0_0.png")
	writePNG(t, path, img)

	b, err := Load(path)
	require.NoError(t, err)

	rows, cols := b.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)

	assert.Equal(t, 10.0, b.Red.At(0, 0))
	assert.Equal(t, 20.0, b.Green.At(0, 0))
	assert.Equal(t, 30.0, b.Blue.At(0, 0))
	assert.Equal(t, 200.0, b.Red.At(1, 2))
	assert.Equal(t, 100.0, b.Green.At(1, 2))
	assert.Equal(t, 50.0, b.Blue.At(1, 2))
}

func TestLoad_JPEG(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 0, G: 0, B: 255, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "A_0_90.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
	require.NoError(t, f.Close())

	b, err := Load(path)
	require.NoError(t, err)
	rows, cols := b.Dims()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 8, cols)
	// Lossy, but a flat blue block stays strongly blue.
	assert.Greater(t, b.Blue.At(4, 4), 200.0)
	assert.Less(t, b.Red.At(4, 4), 40.0)
}

func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "A_0_0.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, model.ErrorKindDecode, model.KindOf(err))
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.Equal(t, model.ErrorKindDecode, model.KindOf(err))
}

func TestLoad_Grayscale(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "A_0_0.png")
	writePNG(t, path, image.NewGray(image.Rect(0, 0, 4, 4)))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, model.ErrorKindDecode, model.KindOf(err))
}

func TestFromImage_NonPremultiplied(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 128})

	b, err := FromImage(img)
	require.NoError(t, err)
	assert.Equal(t, 255.0, b.Green.At(0, 0))
}

func TestFromImage_OffsetBounds(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	img.Set(6, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	b, err := FromImage(img)
	require.NoError(t, err)
	rows, cols := b.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 3.0, b.Blue.At(0, 1))
}

func TestFromImage_ZeroArea(t *testing.T) {
	t.Parallel()

	b, err := FromImage(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	rows, cols := b.Dims()
	assert.Zero(t, rows)
	assert.Zero(t, cols)
}
