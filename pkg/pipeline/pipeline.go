// Package pipeline runs a configured chain of binary morphology operations
// over one or more raster files.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"binmorph/internal/models"
	"binmorph/pkg/config"
	"binmorph/pkg/imageio"
	"binmorph/pkg/morphology"
	"binmorph/pkg/raster"
)

// Params holds the inputs and outputs of a run.
type Params struct {
	// Inputs are the raster files to process. They are processed in
	// parallel and written to OutputDir under their own base name.
	Inputs []string

	// OutputDir receives one processed file per input.
	OutputDir string

	// Config supplies the operation chain, element and output format.
	Config *config.Config
}

// Processor applies the operation chain of a configuration to images.
//
// The processing of a single image consists of:
// 1. Loading the raster and converting it to gray
// 2. Running each configured step in order; threshold works in place,
// morphological steps write into a fresh white image
// 3. Saving the result and, optionally, every intermediary stage
type Processor struct {
	// params stores the run configuration
	params *Params

	// ops and element are parsed once from the configuration
	ops     []models.Operation
	element *raster.StructuringElement

	logger *logrus.Logger
}

// NewProcessor validates the configuration and prepares the operation chain.
func NewProcessor(params *Params, logger *logrus.Logger) (*Processor, error) {
	if params == nil || params.Config == nil {
		return nil, fmt.Errorf("%w: missing parameters", raster.ErrInvalidArgument)
	}
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ops, err := params.Config.ParsedOperations()
	if err != nil {
		return nil, err
	}
	element, err := params.Config.StructuringElement()
	if err != nil {
		return nil, err
	}

	return &Processor{
		params:  params,
		ops:     ops,
		element: element,
		logger:  logger,
	}, nil
}

// Element returns the structuring element used for morphological steps.
func (p *Processor) Element() *raster.StructuringElement {
	return p.element
}

// Process runs the chain over every input. Per-file failures are recorded
// in the corresponding result and joined into the returned error; the
// other files are still processed.
func (p *Processor) Process() ([]models.FileResult, error) {
	inputs := p.params.Inputs
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input images")
	}
	names, err := outputNames(inputs)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.params.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %v", err)
	}

	p.logger.WithFields(logrus.Fields{
		"inputs":     len(inputs),
		"operations": p.params.Config.Processing.Operations,
		"workers":    p.params.Config.Processing.NumWorkers,
	}).Info("Starting processing")

	results := make([]models.FileResult, len(inputs))
	jobs := make(chan int)
	type processingResult struct {
		index  int
		result models.FileResult
	}
	resultChan := make(chan processingResult)

	workers := p.params.Config.Processing.NumWorkers
	if workers > len(inputs) {
		workers = len(inputs)
	}
	for w := 0; w < workers; w++ {
		go func() {
			for idx := range jobs {
				resultChan <- processingResult{index: idx, result: p.processFile(inputs[idx], names[idx])}
			}
		}()
	}
	go func() {
		for i := range inputs {
			jobs <- i
		}
		close(jobs)
	}()

	// Collect results
	var errs []error
	for completed := 1; completed <= len(inputs); completed++ {
		res := <-resultChan
		results[res.index] = res.result
		entry := p.logger.WithFields(logrus.Fields{
			"input":    res.result.Input,
			"progress": fmt.Sprintf("%d/%d", completed, len(inputs)),
		})
		if res.result.Err != nil {
			errs = append(errs, res.result.Err)
			entry.WithError(res.result.Err).Error("Processing failed")
			continue
		}
		entry.WithField("output", res.result.Output).Info("Processed image")
	}

	return results, errors.Join(errs...)
}

// processFile loads, processes and saves one input under the given output
// name.
func (p *Processor) processFile(input, name string) models.FileResult {
	result := models.FileResult{Input: input}
	cfg := p.params.Config

	img, err := imageio.Read(input, raster.WithMaxDim(cfg.Processing.MaxDim))
	if err != nil {
		result.Err = err
		return result
	}
	result.Height, result.Width = img.Height(), img.Width()

	out, stages, level, err := p.run(img, name)
	result.Stages = stages
	result.Level = level
	if err != nil {
		result.Err = fmt.Errorf("%s: %w", input, err)
		return result
	}

	result.Output = filepath.Join(p.params.OutputDir, name+"."+cfg.Output.Format)
	if err := imageio.Save(result.Output, out, p.saveOptions()...); err != nil {
		result.Err = fmt.Errorf("%s: %w", input, err)
	}
	return result
}

// ProcessImage runs the chain over an in-memory image and returns the
// result along with per-stage metrics and the threshold level used (-1 if
// the chain has no threshold step). img is not modified.
func (p *Processor) ProcessImage(img *raster.Image) (*raster.Image, []models.StageResult, int, error) {
	return p.run(img, "")
}

func (p *Processor) run(img *raster.Image, name string) (*raster.Image, []models.StageResult, int, error) {
	cfg := p.params.Config
	current := img.Clone()
	level := -1
	stages := make([]models.StageResult, 0, len(p.ops))

	for i, op := range p.ops {
		start := time.Now()
		var next *raster.Image

		if op == models.Threshold {
			if level < 0 {
				l, err := p.thresholdLevel(current)
				if err != nil {
					return nil, stages, level, err
				}
				level = l
			}
			next = current.Clone()
			if err := morphology.Threshold(next, level); err != nil {
				return nil, stages, level, fmt.Errorf("step %d (%v): %w", i+1, op, err)
			}
		} else {
			out, err := raster.NewImage(current.Height(), current.Width(), raster.White,
				raster.WithMaxDim(current.MaxDim()))
			if err != nil {
				return nil, stages, level, err
			}
			if err := morphology.Apply(op, current, out, p.element, cfg.Processing.FillColor); err != nil {
				return nil, stages, level, fmt.Errorf("step %d (%v): %w", i+1, op, err)
			}
			next = out
		}

		metrics, err := morphology.Stats(current, next)
		if err != nil {
			return nil, stages, level, err
		}
		stage := models.StageResult{
			Operation: op,
			Metrics:   metrics,
			Duration:  time.Since(start),
		}

		if cfg.Output.SaveIntermediaryResults && name != "" {
			path, err := p.saveIntermediaryResult(name, i, op, next)
			if err != nil {
				p.logger.WithError(err).Warnf("Failed to save stage %d of %s", i+1, name)
			}
			stage.Path = path
		}

		p.logger.WithFields(logrus.Fields{
			"image":      name,
			"step":       i + 1,
			"operation":  op.String(),
			"changed":    metrics.Changed,
			"foreground": fmt.Sprintf("%.3f", metrics.ForegroundAfter),
		}).Debug("Applied operation")

		stages = append(stages, stage)
		current = next
	}

	return current, stages, level, nil
}

func (p *Processor) thresholdLevel(img *raster.Image) (int, error) {
	if !p.params.Config.Processing.AutoThreshold {
		return p.params.Config.Processing.Threshold, nil
	}
	return morphology.OtsuLevel(img)
}

func (p *Processor) saveOptions() []imageio.SaveOption {
	if p.params.Config.Output.ASCII {
		return []imageio.SaveOption{imageio.WithASCII()}
	}
	return nil
}

// saveIntermediaryResult writes the image produced by one step to
// <IntermediaryDir>/<name>/<NN>_<operation>.<format>.
func (p *Processor) saveIntermediaryResult(name string, index int, op models.Operation, img *raster.Image) (string, error) {
	cfg := p.params.Config
	stageDir := filepath.Join(cfg.Output.IntermediaryDir, name)
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create intermediary directory: %v", err)
	}

	filename := filepath.Join(stageDir, fmt.Sprintf("%02d_%s.%s", index+1, op, cfg.Output.Format))
	if err := imageio.Save(filename, img, p.saveOptions()...); err != nil {
		return "", err
	}
	return filename, nil
}

// outputNames derives the output base name of each input from its file
// name without extension. Inputs sharing a stem keep their extension in the
// name (scan.png becomes scan_png). Inputs that still collide, such as
// equal file names from different directories, are rejected.
func outputNames(inputs []string) ([]string, error) {
	stems := make([]string, len(inputs))
	counts := make(map[string]int)
	for i, input := range inputs {
		base := filepath.Base(input)
		stems[i] = strings.TrimSuffix(base, filepath.Ext(base))
		counts[stems[i]]++
	}

	names := make([]string, len(inputs))
	owner := make(map[string]string)
	for i, input := range inputs {
		name := stems[i]
		if counts[name] > 1 {
			if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), "."); ext != "" {
				name += "_" + ext
			}
		}
		if prev, ok := owner[name]; ok {
			return nil, fmt.Errorf("%w: %s and %s map to the same output name %q",
				raster.ErrInvalidArgument, prev, input, name)
		}
		owner[name] = input
		names[i] = name
	}
	return names, nil
}

// CollectInputs expands path into a list of raster files. A directory is
// scanned (not recursively) for supported extensions and sorted by the
// number embedded in each file name, then by name.
func CollectInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !imageio.IsSupported(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported images found in %s", path)
	}

	sort.Slice(files, func(i, j int) bool {
		numI, numJ := extractNumber(files[i]), extractNumber(files[j])
		if numI != numJ {
			return numI < numJ
		}
		return files[i] < files[j]
	})
	return files, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
