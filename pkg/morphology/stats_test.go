package morphology

import (
	"errors"
	"math"
	"testing"

	"binmorph/pkg/raster"
)

// TestOtsuLevelBimodal verifies that a two-tone image is split between its
// tones
func TestOtsuLevelBimodal(t *testing.T) {
	img := newImage(t, 10, 10, 200)
	fillRect(img, 0, 0, 10, 4, 40)

	level, err := OtsuLevel(img)
	if err != nil {
		t.Fatalf("OtsuLevel failed: %v", err)
	}
	if level <= 40 || level > 200 {
		t.Fatalf("Expected level in (40,200], got %d", level)
	}

	if err := Threshold(img, level); err != nil {
		t.Fatalf("Threshold failed: %v", err)
	}
	if n := img.Count(raster.Black); n != 40 {
		t.Errorf("Expected 40 foreground pixels, got %d", n)
	}
}

// TestOtsuLevelConstant verifies the fallback for a single-tone image
func TestOtsuLevelConstant(t *testing.T) {
	img := newImage(t, 4, 4, 90)
	level, err := OtsuLevel(img)
	if err != nil {
		t.Fatalf("OtsuLevel failed: %v", err)
	}
	if level != fallbackLevel {
		t.Errorf("Expected fallback level %d, got %d", fallbackLevel, level)
	}

	if _, err := OtsuLevel(nil); !errors.Is(err, raster.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil image, got %v", err)
	}
}

// TestHistogram verifies per-intensity counts
func TestHistogram(t *testing.T) {
	img := singlePixel(t)
	hist := Histogram(img)
	if hist[0] != 1 || hist[255] != 24 {
		t.Errorf("Unexpected histogram counts: black=%v white=%v", hist[0], hist[255])
	}
}

// TestStats verifies the metrics reported for a dilation
func TestStats(t *testing.T) {
	in := singlePixel(t)
	out := newImage(t, 5, 5, raster.White)
	if err := Dilate(in, out, cross3(t), 0); err != nil {
		t.Fatalf("Dilate failed: %v", err)
	}

	m, err := Stats(in, out)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if math.Abs(m.ForegroundBefore-1.0/25) > 1e-9 {
		t.Errorf("Expected foreground before 0.04, got %f", m.ForegroundBefore)
	}
	if math.Abs(m.ForegroundAfter-5.0/25) > 1e-9 {
		t.Errorf("Expected foreground after 0.2, got %f", m.ForegroundAfter)
	}
	if m.Changed != 4 {
		t.Errorf("Expected 4 changed pixels, got %d", m.Changed)
	}
	if m.Correlation <= 0 || m.Correlation >= 1 {
		t.Errorf("Expected correlation in (0,1), got %f", m.Correlation)
	}

	same, err := Stats(in, in.Clone())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if same.Changed != 0 || same.Correlation != 1 {
		t.Errorf("Expected identical images to report no change, got %+v", same)
	}

	// Eroding the lone pixel leaves a constant image: correlation is undefined
	cleared := newImage(t, 5, 5, raster.White)
	if err := Erode(in, cleared, cross3(t), 0); err != nil {
		t.Fatalf("Erode failed: %v", err)
	}
	gone, err := Stats(in, cleared)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if gone.Changed != 1 || !math.IsNaN(gone.Correlation) || gone.CorrelationString() != "n/a" {
		t.Errorf("Expected one change and undefined correlation, got %+v", gone)
	}

	if _, err := Stats(in, newImage(t, 3, 3, raster.White)); !errors.Is(err, raster.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for size mismatch, got %v", err)
	}
}
