package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"voxelislands/internal/models"
	"voxelislands/pkg/config"
	"voxelislands/pkg/islands"
	"voxelislands/pkg/logging"
	"voxelislands/pkg/pipeline"
	"voxelislands/pkg/report"
	"voxelislands/pkg/stl"
	"voxelislands/pkg/visualization"
	"voxelislands/pkg/volumeio"
	"voxelislands/pkg/voxel"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitConfig    = 2
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(exitOK)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", classify(err), err)
	}
	os.Exit(exitCode(err))
}

// classify names the kind of failure for the final error line.
func classify(err error) string {
	var cfgErr *voxel.ConfigurationError
	var rangeErr *voxel.OutOfRangeError
	var invErr *islands.InvariantViolation
	switch {
	case errors.As(err, &cfgErr):
		return "configuration error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &invErr), errors.As(err, &rangeErr):
		return "internal error"
	default:
		return "error"
	}
}

func exitCode(err error) int {
	var cfgErr *voxel.ConfigurationError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitFailure
	}
}

// run parses args, loads the configuration and runs island removal, printing
// the report to stdout.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("removeislands", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file (YAML or TOML)")
	inputPath := fs.String("input", "", "Directory of slice images or a mask file")
	inputFormat := fs.String("input-format", config.InputAuto, "Input format: auto, slices or mask")
	outputPath := fs.String("output", "", "Output directory for slices, or output mask file")
	outputFormat := fs.String("format", string(models.FormatPNG), "Output format: png, tiff, webp, jpeg or mask")
	threshold := fs.Int("threshold", islands.DefaultThreshold, "Minimum island size in voxels")
	workers := fs.Int("workers", 0, "Number of worker goroutines (default: all available cores)")
	dryRun := fs.Bool("dry-run", false, "Report islands without writing the filtered volume")
	previewDir := fs.String("preview-dir", "", "Directory for x, y and z preview slices of the filtered volume")
	meshPath := fs.String("stl", "", "Write the surface of the filtered volume to this STL file")
	sliceGap := fs.Float64("gap", 1.0, "Slice gap relative to the pixel size, used to scale the STL mesh")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	logFile := fs.String("log-file", "", "Write logs to a rotating file instead of stderr")
	writeConfig := fs.String("write-config", "", "Write the effective configuration to this file and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given on the command line override the configuration file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Path = *inputPath
		case "input-format":
			cfg.Input.Format = *inputFormat
		case "output":
			cfg.Output.Path = *outputPath
		case "format":
			cfg.Output.Format = *outputFormat
		case "threshold":
			cfg.Processing.Threshold = *threshold
		case "workers":
			cfg.Processing.Workers = *workers
		case "dry-run":
			cfg.Processing.DryRun = *dryRun
		case "preview-dir":
			cfg.Output.PreviewDir = *previewDir
		case "stl":
			cfg.Output.Mesh = *meshPath
		case "gap":
			cfg.Output.SliceGap = *sliceGap
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-file":
			cfg.Logging.File = *logFile
		}
	})

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Configuration written to %s\n", *writeConfig)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Input.Path == "" {
		fs.Usage()
		return voxel.Configf("input.path", "not set")
	}
	if cfg.Output.Path == "" && !cfg.Processing.DryRun {
		return voxel.Configf("output.path", "not set")
	}

	logger, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		MaxSize: cfg.Logging.MaxSize,
		MaxAge:  cfg.Logging.MaxAge,
	})
	if err != nil {
		return voxel.Configf("logging.level", "%v", err)
	}

	fmt.Fprintln(stdout, "================================")
	fmt.Fprintln(stdout, "VOXEL ISLAND REMOVAL")
	fmt.Fprintln(stdout, "6-connected components below the size threshold are cleared")
	fmt.Fprintln(stdout, "================================")

	src, err := volumeio.Open(ctx, cfg.Input.Path, cfg.Input.Format, cfg.Processing.Workers)
	if err != nil {
		return err
	}

	var sink pipeline.Sink
	if !cfg.Processing.DryRun {
		s, err := volumeio.NewSink(cfg.Output.Path, cfg.Output.Format, src, cfg.Processing.Workers)
		if err != nil {
			return err
		}
		sink = s
	}

	params := pipeline.Params{
		Threshold:     cfg.Processing.Threshold,
		Workers:       cfg.Processing.Workers,
		DryRun:        cfg.Processing.DryRun,
		PreserveInput: cfg.Processing.PreserveInput,
	}
	remover := pipeline.NewRemover(params, logger)
	remover.SetProgressCallback(func(completed, total int, message string) {
		logger.WithFields(logrus.Fields{"completed": completed, "total": total}).Debug(message)
	})

	fmt.Fprintf(stdout, "Removing islands smaller than %d voxels from %s...\n", params.Threshold, cfg.Input.Path)
	startTime := time.Now()
	if err := remover.Process(ctx, src, sink, report.NewText(stdout)); err != nil {
		return err
	}
	processingTime := time.Since(startTime)

	summary := remover.GetSummary()
	fmt.Fprintf(stdout, "\nCompleted in %.2f seconds (run %s)\n", processingTime.Seconds(), summary.RunID)
	fmt.Fprintf(stdout, "Volume: %dx%dx%d, %d foreground voxels\n",
		summary.Width, summary.Height, summary.Depth, summary.Foreground)
	if cfg.Processing.DryRun {
		fmt.Fprintln(stdout, "Dry run: nothing was written")
	} else {
		fmt.Fprintf(stdout, "Filtered volume saved to: %s\n", cfg.Output.Path)
	}

	if cfg.Output.Mesh != "" {
		surface := stl.NewSurface(remover.GetGrid())
		surface.SetScale(1.0, 1.0, float32(cfg.Output.SliceGap))
		triangles := surface.GenerateTriangles()
		if err := stl.SaveToSTL(cfg.Output.Mesh, triangles); err != nil {
			return fmt.Errorf("failed to save STL: %w", err)
		}
		fmt.Fprintf(stdout, "Surface mesh (%d triangles) saved to: %s\n", len(triangles), cfg.Output.Mesh)
	}

	if cfg.Output.PreviewDir != "" {
		format := models.FormatPNG
		if f, ok := models.ParseFormat(cfg.Output.Format); ok && f.Writable() {
			format = f
		}
		viewer := visualization.NewViewer(remover.GetGrid())
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(cfg.Output.PreviewDir, axis)
			fmt.Fprintf(stdout, "Saving %s-axis previews to: %s\n", axis, axisDir)
			if err := viewer.SaveSliceSequence(axis, axisDir, format); err != nil {
				logger.WithError(err).Warnf("failed to save %s-axis previews", axis)
			}
		}
	}
	return nil
}
