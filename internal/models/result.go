package models

import (
	"fmt"
	"math"
	"time"
)

// ImageMetrics summarises how an operation changed a binary image
type ImageMetrics struct {
	// ForegroundBefore and ForegroundAfter are the fractions of pixels equal
	// to 0 before and after the operation
	ForegroundBefore float64
	ForegroundAfter  float64

	// Changed is the number of pixels whose value differs
	Changed int

	// Correlation is the Pearson correlation of the two pixel sets. It is 1
	// when nothing changed and NaN when the images differ and one is constant
	Correlation float64
}

// CorrelationString formats Correlation for display, or "n/a" when it is
// undefined
func (m ImageMetrics) CorrelationString() string {
	if math.IsNaN(m.Correlation) || math.IsInf(m.Correlation, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", m.Correlation)
}

// StageResult records one executed step for a single input
type StageResult struct {
	Operation Operation
	Metrics   ImageMetrics
	Duration  time.Duration

	// Path is where the intermediary image was written, empty if not saved
	Path string
}

// FileResult is the outcome of processing one input file
type FileResult struct {
	Input  string
	Output string

	// Level is the threshold level actually applied
	Level int

	Height, Width int
	Stages        []StageResult
	Err           error
}
