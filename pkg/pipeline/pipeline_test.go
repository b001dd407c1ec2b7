package pipeline

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"binmorph/internal/models"
	"binmorph/pkg/config"
	"binmorph/pkg/imageio"
	"binmorph/pkg/morphology"
	"binmorph/pkg/raster"
)

// quietLogger returns a logger that discards output
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// createTestImage writes a gray image with a dark square, a dark speck and
// a light hole inside the square
func createTestImage(t *testing.T, path string) *raster.Image {
	t.Helper()
	img, err := raster.NewImage(12, 12, 220)
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	for y := 2; y < 9; y++ {
		for x := 2; x < 9; x++ {
			img.Set(y, x, 30)
		}
	}
	img.Set(5, 5, 200)
	img.Set(0, 11, 10)

	if err := imageio.Save(path, img); err != nil {
		t.Fatalf("Failed to save test image: %v", err)
	}
	return img
}

// testConfig returns a two-worker configuration with a 3x3 square element
func testConfig(ops ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Processing.NumWorkers = 2
	cfg.Processing.Operations = ops
	cfg.Element.Shape = "square"
	return cfg
}

// TestProcess runs the whole chain on files in a temporary directory
func TestProcess(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "a.pgm"),
		filepath.Join(dir, "b.png"),
	}
	for _, in := range inputs {
		createTestImage(t, in)
	}

	cfg := testConfig("threshold", "open", "close")
	cfg.Output.SaveIntermediaryResults = true
	cfg.Output.IntermediaryDir = filepath.Join(dir, "stages")

	processor, err := NewProcessor(&Params{
		Inputs:    inputs,
		OutputDir: filepath.Join(dir, "out"),
		Config:    cfg,
	}, quietLogger())
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	results, err := processor.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Input != inputs[i] {
			t.Errorf("Result %d is for %s, expected %s", i, res.Input, inputs[i])
		}
		if res.Level != 128 {
			t.Errorf("Expected level 128, got %d", res.Level)
		}
		if len(res.Stages) != 3 {
			t.Fatalf("Expected 3 stages, got %d", len(res.Stages))
		}
		for _, stage := range res.Stages {
			if _, err := os.Stat(stage.Path); err != nil {
				t.Errorf("Intermediary result for %v missing: %v", stage.Operation, err)
			}
		}

		out, err := imageio.Read(res.Output)
		if err != nil {
			t.Fatalf("Failed to read output: %v", err)
		}

		// Opening drops the speck, closing fills the hole: only the square
		// remains
		if n := out.Count(raster.Black); n != 49 {
			t.Errorf("Expected 49 foreground pixels in %s, got %d", res.Output, n)
		}
		if out.At(0, 11) != raster.White || out.At(5, 5) != raster.Black {
			t.Errorf("Speck or hole survived in %s", res.Output)
		}
	}

	if filepath.Ext(results[1].Output) != ".pgm" {
		t.Errorf("Expected output in the configured format, got %s", results[1].Output)
	}
}

// TestProcessPartialFailure verifies that one bad file does not stop others
func TestProcessPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pgm")
	bad := filepath.Join(dir, "bad.pgm")
	createTestImage(t, good)
	if err := os.WriteFile(bad, []byte("not a pgm"), 0644); err != nil {
		t.Fatalf("Failed to write bad file: %v", err)
	}

	processor, err := NewProcessor(&Params{
		Inputs:    []string{bad, good},
		OutputDir: filepath.Join(dir, "out"),
		Config:    testConfig("threshold", "dilate"),
	}, quietLogger())
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	results, err := processor.Process()
	if !errors.Is(err, raster.ErrLoadFailure) {
		t.Errorf("Expected joined ErrLoadFailure, got %v", err)
	}
	if results[0].Err == nil {
		t.Error("Expected the bad file to fail")
	}
	if results[1].Err != nil {
		t.Errorf("Expected the good file to succeed, got %v", results[1].Err)
	}
	if _, err := os.Stat(results[1].Output); err != nil {
		t.Errorf("Output for good file missing: %v", err)
	}
}

// TestProcessSharedStem verifies that inputs differing only by extension
// get separate outputs and intermediary directories
func TestProcessSharedStem(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "scan.pgm"),
		filepath.Join(dir, "scan.png"),
		filepath.Join(dir, "other.pgm"),
	}
	for _, in := range inputs {
		createTestImage(t, in)
	}

	cfg := testConfig("threshold")
	cfg.Output.SaveIntermediaryResults = true
	cfg.Output.IntermediaryDir = filepath.Join(dir, "stages")
	processor, err := NewProcessor(&Params{
		Inputs:    inputs,
		OutputDir: filepath.Join(dir, "out"),
		Config:    cfg,
	}, quietLogger())
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	results, err := processor.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := []string{"scan_pgm.pgm", "scan_png.pgm", "other.pgm"}
	seen := make(map[string]bool)
	for i, res := range results {
		if filepath.Base(res.Output) != want[i] {
			t.Errorf("Expected output %s for %s, got %s", want[i], res.Input, res.Output)
		}
		if seen[res.Output] {
			t.Errorf("Output %s written twice", res.Output)
		}
		seen[res.Output] = true
		if _, err := os.Stat(res.Output); err != nil {
			t.Errorf("Output %s missing: %v", res.Output, err)
		}
		if len(res.Stages) != 1 || filepath.Base(filepath.Dir(res.Stages[0].Path)) != strings.TrimSuffix(want[i], ".pgm") {
			t.Errorf("Unexpected intermediary path for %s: %+v", res.Input, res.Stages)
		}
	}
}

// TestProcessDuplicateNames verifies that equal file names from different
// directories are rejected before anything is written
func TestProcessDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "left", "scan.pgm"),
		filepath.Join(dir, "right", "scan.pgm"),
	}
	for _, in := range inputs {
		createTestImage(t, in)
	}

	outDir := filepath.Join(dir, "out")
	processor, err := NewProcessor(&Params{
		Inputs:    inputs,
		OutputDir: outDir,
		Config:    testConfig("threshold"),
	}, quietLogger())
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	if _, err := processor.Process(); !errors.Is(err, raster.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for colliding names, got %v", err)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("Expected no output directory, got %v", err)
	}
}

// TestProcessImage verifies the in-memory chain matches direct calls
func TestProcessImage(t *testing.T) {
	src := createTestImage(t, filepath.Join(t.TempDir(), "src.pgm"))
	orig := src.Clone()

	cfg := testConfig("threshold", "dilate")
	cfg.Processing.FillColor = 99
	processor, err := NewProcessor(&Params{Config: cfg}, quietLogger())
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	got, stages, level, err := processor.ProcessImage(src)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if !src.Equal(orig) {
		t.Error("ProcessImage modified its input")
	}
	if level != 128 || len(stages) != 2 {
		t.Errorf("Unexpected level %d or stage count %d", level, len(stages))
	}
	if stages[1].Operation != models.Dilate || stages[1].Metrics.Changed == 0 {
		t.Errorf("Unexpected dilation stage %+v", stages[1])
	}

	want := orig.Clone()
	if err := morphology.Threshold(want, 128); err != nil {
		t.Fatalf("Threshold failed: %v", err)
	}
	direct, _ := raster.NewImage(12, 12, raster.White)
	if err := morphology.Dilate(want, direct, processor.Element(), 99); err != nil {
		t.Fatalf("Dilate failed: %v", err)
	}
	if !got.Equal(direct) {
		t.Error("Processor output differs from direct calls")
	}
}

// TestAutoThreshold verifies Otsu level selection in the chain
func TestAutoThreshold(t *testing.T) {
	src := createTestImage(t, filepath.Join(t.TempDir(), "src.pgm"))

	cfg := testConfig("threshold")
	cfg.Processing.AutoThreshold = true
	cfg.Processing.Threshold = 0
	processor, err := NewProcessor(&Params{Config: cfg}, quietLogger())
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	got, _, level, err := processor.ProcessImage(src)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if level <= 30 || level > 200 {
		t.Errorf("Expected level between the dark and light tones, got %d", level)
	}
	// Square minus hole plus speck
	if n := got.Count(raster.Black); n != 49 {
		t.Errorf("Expected 49 foreground pixels, got %d", n)
	}
}

// TestNewProcessorInvalid verifies configuration errors surface early
func TestNewProcessorInvalid(t *testing.T) {
	if _, err := NewProcessor(nil, nil); !errors.Is(err, raster.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil params, got %v", err)
	}

	cfg := testConfig("threshold", "blur")
	if _, err := NewProcessor(&Params{Config: cfg}, nil); !errors.Is(err, raster.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown operation, got %v", err)
	}
}

// TestCollectInputs verifies directory scanning and numeric ordering
func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"img10.pgm", "img2.pgm", "img1.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pgm"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	files, err := CollectInputs(dir)
	if err != nil {
		t.Fatalf("CollectInputs failed: %v", err)
	}
	want := []string{"img1.png", "img2.pgm", "img10.pgm"}
	if len(files) != len(want) {
		t.Fatalf("Expected %d files, got %v", len(want), files)
	}
	for i, name := range want {
		if filepath.Base(files[i]) != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, filepath.Base(files[i]))
		}
	}

	single, err := CollectInputs(files[0])
	if err != nil || len(single) != 1 {
		t.Errorf("Expected a single file, got %v (%v)", single, err)
	}

	empty := t.TempDir()
	if _, err := CollectInputs(empty); err == nil {
		t.Error("Expected error for a directory without images")
	}
	if _, err := CollectInputs(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for a missing path")
	}
}
