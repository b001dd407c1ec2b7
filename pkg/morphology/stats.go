package morphology

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"binmorph/internal/models"
	"binmorph/pkg/raster"
)

// fallbackLevel is returned by OtsuLevel when the image has a single
// intensity and no split exists.
const fallbackLevel = 128

// Histogram counts the pixels of each intensity.
func Histogram(img *raster.Image) []float64 {
	hist := make([]float64, 256)
	for _, p := range img.Pix() {
		hist[p]++
	}
	return hist
}

// OtsuLevel picks the threshold level that maximises the between-class
// variance of the intensity histogram. Passing the result to Threshold
// sends the darker class to 0.
func OtsuLevel(img *raster.Image) (int, error) {
	if img == nil {
		return 0, fmt.Errorf("%w: nil image", raster.ErrInvalidArgument)
	}
	hist := Histogram(img)
	levels := make([]float64, 256)
	floats.Span(levels, 0, 255)
	total := floats.Sum(hist)

	best, bestVar := fallbackLevel, -1.0
	for t := 1; t < 256; t++ {
		w0 := floats.Sum(hist[:t])
		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		mu0 := stat.Mean(levels[:t], hist[:t])
		mu1 := stat.Mean(levels[t:], hist[t:])
		between := w0 * w1 * (mu0 - mu1) * (mu0 - mu1)
		if between > bestVar {
			best, bestVar = t, between
		}
	}
	return best, nil
}

// Stats compares two images of the same size.
func Stats(before, after *raster.Image) (models.ImageMetrics, error) {
	if before == nil || !before.SameSize(after) {
		return models.ImageMetrics{}, fmt.Errorf("%w: images must be non-nil and the same size", raster.ErrInvalidArgument)
	}
	a, b := toFloats(before), toFloats(after)

	m := models.ImageMetrics{
		ForegroundBefore: foregroundRatio(a),
		ForegroundAfter:  foregroundRatio(b),
	}
	for i := range a {
		if a[i] != b[i] {
			m.Changed++
		}
	}
	if m.Changed == 0 {
		m.Correlation = 1
	} else {
		m.Correlation = stat.Correlation(a, b, nil)
	}
	return m, nil
}

func toFloats(img *raster.Image) []float64 {
	pix := img.Pix()
	out := make([]float64, len(pix))
	for i, p := range pix {
		out[i] = float64(p)
	}
	return out
}

func foregroundRatio(pix []float64) float64 {
	ind := make([]float64, len(pix))
	for i, p := range pix {
		if p == raster.Black {
			ind[i] = 1
		}
	}
	return stat.Mean(ind, nil)
}
