// Package raster decodes images into per-channel numeric planes.
package raster

import (
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/rotisserie/eris"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/streetcover/internal/model"
)

// Bands holds the red, green and blue channels of an image as equal-shaped
// planes (rows = image height, columns = image width). Samples are 8-bit
// intensities in [0, 255] stored as float64.
type Bands struct {
	Red   *mat.Dense
	Green *mat.Dense
	Blue  *mat.Dense
}

// Dims returns the number of rows and columns shared by all three planes.
// A zero-area image reports 0, 0.
func (b *Bands) Dims() (rows, cols int) {
	if b == nil || b.Red == nil {
		return 0, 0
	}
	return b.Red.Dims()
}

// Load reads and decodes the image at path. Any failure is a decode error.
func Load(path string) (*Bands, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.DecodeError(path, eris.Wrap(err, "raster: open"))
	}
	defer f.Close() //nolint:errcheck

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, model.DecodeError(path, eris.Wrap(err, "raster: decode"))
	}

	b, err := FromImage(img)
	if err != nil {
		return nil, model.DecodeError(path, err)
	}
	return b, nil
}

// FromImage splits img into its colour planes. Single-channel colour models
// have fewer than three channels and are rejected.
func FromImage(img image.Image) (*Bands, error) {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return nil, eris.New("raster: image has fewer than three channels")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return &Bands{}, nil
	}

	red := make([]float64, w*h)
	green := make([]float64, w*h)
	blue := make([]float64, w*h)

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			red[row+x] = float64(c.R)
			green[row+x] = float64(c.G)
			blue[row+x] = float64(c.B)
		}
	}

	return &Bands{
		Red:   mat.NewDense(h, w, red),
		Green: mat.NewDense(h, w, green),
		Blue:  mat.NewDense(h, w, blue),
	}, nil
}
