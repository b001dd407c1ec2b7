package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"binmorph/pkg/config"
	"binmorph/pkg/imageio"
	"binmorph/pkg/pipeline"
	"binmorph/pkg/raster"
	"binmorph/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "binmorph.yaml", "Path to the YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	input := flag.String("input", "", "Raster file or directory of raster files to process")
	outputDir := flag.String("output", "output", "Directory for processed images")
	ops := flag.String("ops", "", "Comma-separated operations overriding the config (threshold,dilate,erode,open,close)")
	threshold := flag.Int("threshold", -1, "Threshold level overriding the config (0-255)")
	auto := flag.Bool("auto", false, "Choose the threshold level per image with Otsu's method")
	workers := flag.Int("workers", 0, "Number of images processed concurrently (default from config)")
	preview := flag.Bool("preview", false, "Print each result as text")
	region := flag.String("region", "", "Restrict previews to a region given as y,x,height,width")
	previewScale := flag.Int("preview-scale", 0, "Also save an upscaled PNG preview of each result with this factor")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command line flags take precedence over the config file
	if *ops != "" {
		cfg.Processing.Operations = strings.Split(*ops, ",")
	}
	if *threshold >= 0 {
		cfg.Processing.Threshold = *threshold
	}
	if *auto {
		cfg.Processing.AutoThreshold = true
	}
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if *preview {
		cfg.Output.Preview = true
	}

	logger := initLogger(*debug || cfg.Output.Verbose)

	var crop []int
	if *region != "" {
		crop, err = parseRegion(*region)
		if err != nil {
			logger.Fatalf("Invalid region: %v", err)
		}
	}

	inputs, err := pipeline.CollectInputs(*input)
	if err != nil {
		logger.Fatalf("Failed to collect inputs: %v", err)
	}

	processor, err := pipeline.NewProcessor(&pipeline.Params{
		Inputs:    inputs,
		OutputDir: *outputDir,
		Config:    cfg,
	}, logger)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"element": strings.ReplaceAll(processor.Element().String(), "\n", "|"),
		"fill":    cfg.Processing.FillColor,
	}).Debug("Structuring element")

	startTime := time.Now()
	results, err := processor.Process()
	processingTime := time.Since(startTime)

	for _, res := range results {
		if res.Err != nil {
			continue
		}
		fmt.Printf("%s -> %s (%dx%d", res.Input, res.Output, res.Width, res.Height)
		if res.Level >= 0 {
			fmt.Printf(", level %d", res.Level)
		}
		fmt.Println(")")
		for _, stage := range res.Stages {
			fmt.Printf("  %-9s foreground %.3f -> %.3f, %d pixels changed, correlation %s\n", stage.Operation,
				stage.Metrics.ForegroundBefore, stage.Metrics.ForegroundAfter, stage.Metrics.Changed,
				stage.Metrics.CorrelationString())
		}

		if !cfg.Output.Preview && *previewScale < 1 {
			continue
		}
		out, ok := imageio.Load(res.Output, raster.WithMaxDim(cfg.Processing.MaxDim))
		if !ok {
			logger.WithField("output", res.Output).Warn("Could not reload output for preview")
			continue
		}
		viewer := visualization.NewViewer(out)
		if crop != nil {
			part, err := viewer.ExtractRegion(crop[0], crop[1], crop[2], crop[3])
			if err != nil {
				logger.WithError(err).WithField("output", res.Output).Warn("Could not crop preview")
				continue
			}
			viewer = visualization.NewViewer(part)
		}
		if cfg.Output.Preview {
			if _, err := viewer.WriteTo(os.Stdout); err != nil {
				logger.WithError(err).Warn("Failed to print preview")
			}
		}
		if *previewScale > 0 {
			name := strings.TrimSuffix(filepath.Base(res.Output), filepath.Ext(res.Output)) + "_preview.png"
			if err := viewer.SavePreview(filepath.Join(*outputDir, name), *previewScale); err != nil {
				logger.WithError(err).Warn("Failed to save preview")
			}
		}
	}

	fmt.Printf("\nProcessed %d image(s) in %.2f seconds\n", len(results), processingTime.Seconds())
	if err != nil {
		logger.Fatalf("Processing finished with errors: %v", err)
	}
}

// parseRegion parses "y,x,height,width" into its four integers
func parseRegion(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected y,x,height,width, got %q", s)
	}
	region := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("region value %q is not an integer", p)
		}
		region[i] = v
	}
	if region[0] < 0 || region[1] < 0 || region[2] < 1 || region[3] < 1 {
		return nil, fmt.Errorf("region %q needs a non-negative origin and a positive size", s)
	}
	return region, nil
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
