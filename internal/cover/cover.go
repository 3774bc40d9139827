// Package cover classifies image samples into vegetation and sky and reports
// coverage percentages.
//
// Rules follow the green view index method of Li et al. (2015):
//   - vegetation: (G-R)*(G-B) > 0 and G > R
//   - sky: B >= 140 and B >= R-5
//
// Horizon captures (pitch "0") are measured on the top half of the frame only.
package cover

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/streetcover/internal/model"
	"github.com/sells-group/streetcover/internal/raster"
)

// Classification constants.
const (
	skyMinBlue      = 140.0 // B >= 140
	skyRedTolerance = 5.0   // B >= R - 5

	// HorizonPitch is the pitch value that restricts measurement to the top
	// half of the frame.
	HorizonPitch = "0"
)

// Mask decides whether a single (r, g, b) sample belongs to a cover type.
type Mask func(r, g, b float64) bool

// IsVegetation reports whether a sample is green vegetation. The G > R term
// excludes samples where both differences are negative but their product is
// still positive.
func IsVegetation(r, g, b float64) bool {
	return (g-r)*(g-b) > 0 && g > r
}

// IsSky reports whether a sample is open sky.
func IsSky(r, _, b float64) bool {
	return b >= skyMinBlue && b >= r-skyRedTolerance
}

// Coverage is the pair of percentages computed for one image.
type Coverage struct {
	Vegetation float64
	Sky        float64
}

// Rows returns how many leading rows are measured for an image of the given
// height at the given pitch.
func Rows(height int, pitch string) int {
	if pitch == HorizonPitch {
		return height / 2
	}
	return height
}

// Percent returns 100 * (matching samples) / (window samples) for mask over
// the window selected by pitch. Degenerate input fails with a computation
// error.
func Percent(b *raster.Bands, pitch string, mask Mask) (float64, error) {
	pct, err := percent(b, pitch, mask)
	if err != nil {
		return 0, model.ComputationError("", err)
	}
	return pct, nil
}

func percent(b *raster.Bands, pitch string, mask Mask) (float64, error) {
	if b == nil || b.Red == nil || b.Green == nil || b.Blue == nil {
		return 0, eris.New("cover: empty image")
	}

	height, width := b.Red.Dims()
	if gh, gw := b.Green.Dims(); gh != height || gw != width {
		return 0, eris.Errorf("cover: green plane is %dx%d, red is %dx%d", gh, gw, height, width)
	}
	if bh, bw := b.Blue.Dims(); bh != height || bw != width {
		return 0, eris.Errorf("cover: blue plane is %dx%d, red is %dx%d", bh, bw, height, width)
	}

	rows := Rows(height, pitch)
	if rows == 0 || width == 0 {
		return 0, eris.Errorf("cover: empty window (%d rows x %d cols) for pitch %q", rows, width, pitch)
	}

	count := countMatches(b.Red, b.Green, b.Blue, rows, width, mask)
	pct := 100 * float64(count) / float64(rows*width)
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, eris.Errorf("cover: non-finite coverage %v", pct)
	}
	return pct, nil
}

func countMatches(red, green, blue *mat.Dense, rows, cols int, mask Mask) int {
	rr, gr, br := red.RawMatrix(), green.RawMatrix(), blue.RawMatrix()

	count := 0
	for i := 0; i < rows; i++ {
		ro, gro, bo := i*rr.Stride, i*gr.Stride, i*br.Stride
		for j := 0; j < cols; j++ {
			if mask(rr.Data[ro+j], gr.Data[gro+j], br.Data[bo+j]) {
				count++
			}
		}
	}
	return count
}

// VegetationPercent is the share of vegetation samples in the pitch window.
func VegetationPercent(b *raster.Bands, pitch string) (float64, error) {
	return Percent(b, pitch, IsVegetation)
}

// SkyPercent is the share of sky samples in the pitch window.
func SkyPercent(b *raster.Bands, pitch string) (float64, error) {
	return Percent(b, pitch, IsSky)
}

// Classify computes both percentages for one image.
func Classify(b *raster.Bands, pitch string) (Coverage, error) {
	veg, err := VegetationPercent(b, pitch)
	if err != nil {
		return Coverage{}, err
	}
	sky, err := SkyPercent(b, pitch)
	if err != nil {
		return Coverage{}, err
	}
	return Coverage{Vegetation: veg, Sky: sky}, nil
}
