// Package pipeline runs island removal end to end: it loads a volume from a
// Source, labels its 6-connected components, reports their size histogram,
// clears the components below the threshold and writes the result to a Sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"voxelislands/pkg/islands"
	"voxelislands/pkg/logging"
	"voxelislands/pkg/voxel"
)

// Source supplies the input volume.
type Source interface {
	Dimensions() (width, height, depth int)
	Foreground(x, y, z int) (bool, error)
}

// Sink receives the filtered volume.
type Sink interface {
	Write(ctx context.Context, grid *voxel.Grid) error
}

// Reporter is told about each stage result as it becomes available.
type Reporter interface {
	ComponentsFound(n int)
	Histogram(h islands.Histogram, stats islands.Stats)
	Filtered(res islands.Result)
}

// Params holds the removal parameters.
type Params struct {
	// Threshold is the minimum size, in voxels, of a retained island.
	Threshold int

	// Workers bounds the goroutines used to clear islands.
	Workers int

	// DryRun filters a copy of the volume and skips the write-back.
	DryRun bool

	// PreserveInput filters a copy so the loaded volume stays available
	// through GetInput.
	PreserveInput bool
}

// Validate checks the parameters without touching any volume.
func (p Params) Validate() error {
	return islands.Filter{Threshold: p.Threshold, Workers: p.Workers}.Validate()
}

// Durations records the wall time of each stage.
type Durations struct {
	Load      time.Duration
	Label     time.Duration
	Filter    time.Duration
	WriteBack time.Duration
	Total     time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID string

	Width  int
	Height int
	Depth  int

	// Foreground is the number of foreground voxels before filtering.
	Foreground int

	Components    int
	Retained      int
	Removed       int
	ClearedVoxels int

	Histogram islands.Histogram
	Stats     islands.Stats
	Durations Durations
}

// Remover runs the island removal pipeline. A Remover is used for one run.
//
// The run consists of these steps:
// 1. Validating the parameters
// 2. Populating a grid from the source
// 3. Enumerating the connected components
// 4. Reporting the size histogram
// 5. Clearing components below the threshold
// 6. Writing the filtered grid to the sink
type Remover struct {
	params Params
	log    *logrus.Entry

	// input is the populated grid, filtered is the grid after filtering.
	// They are the same grid unless DryRun or PreserveInput is set.
	input    *voxel.Grid
	filtered *voxel.Grid

	labeler *islands.Labeler
	summary Summary
}

// NewRemover creates a Remover. A nil logger discards log output.
func NewRemover(params Params, logger *logrus.Logger) *Remover {
	if logger == nil {
		logger = logging.Discard()
	}
	runID := logging.NewRunID()
	return &Remover{
		params:  params,
		log:     logger.WithField("run", runID),
		labeler: islands.NewLabeler(),
		summary: Summary{RunID: runID},
	}
}

// SetProgressCallback forwards labeling progress to callback.
func (r *Remover) SetProgressCallback(callback islands.ProgressCallback) {
	r.labeler.SetProgressCallback(callback)
}

// Process runs the complete pipeline. reporter may be nil; sink may be nil
// only when DryRun is set.
//
// Parameters are validated before the source is read, so a bad threshold
// never touches the volume. A cancelled context stops the run between
// stages or inside labeling; once clearing has started it completes.
func (r *Remover) Process(ctx context.Context, src Source, sink Sink, reporter Reporter) error {
	total := logging.NewTimeLog(r.log)

	// Validate before touching the source
	if err := r.params.Validate(); err != nil {
		return err
	}
	if sink == nil && !r.params.DryRun {
		return voxel.Configf("output", "no sink configured")
	}

	// Step 1: Populate the grid
	tlog := logging.NewTimeLog(r.log)
	r.log.Info("Step 1: Loading volume...")
	grid, err := Populate(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to load volume: %w", err)
	}
	r.input = grid
	w, h, d := grid.Dims()
	r.summary.Width, r.summary.Height, r.summary.Depth = w, h, d
	r.summary.Foreground = grid.Count()
	r.summary.Durations.Load = tlog.Elapsed()
	tlog.Infof("loaded %dx%dx%d volume, %s foreground voxels, %s in memory",
		w, h, d, humanize.Comma(int64(r.summary.Foreground)), humanize.Bytes(grid.SizeBytes()))

	// Step 2: Enumerate components
	tlog = logging.NewTimeLog(r.log)
	r.log.Info("Step 2: Labeling connected components...")
	components, err := r.labeler.EnumerateAll(ctx, grid)
	r.summary.Durations.Label = tlog.Elapsed()
	if err != nil {
		return fmt.Errorf("failed to label components: %w", err)
	}
	r.summary.Components = len(components)
	tlog.Infof("found %s islands", humanize.Comma(int64(len(components))))
	if reporter != nil {
		reporter.ComponentsFound(len(components))
	}

	// Size histogram
	tlog = logging.NewTimeLog(r.log)
	r.summary.Histogram = islands.BuildHistogram(components)
	r.summary.Stats = islands.SizeStats(components)
	tlog.WithFields(logrus.Fields{
		"bins":   len(r.summary.Histogram),
		"min":    r.summary.Stats.Min,
		"max":    r.summary.Stats.Max,
		"median": r.summary.Stats.Median,
	}).Debugf("size histogram built")
	if reporter != nil {
		reporter.Histogram(r.summary.Histogram, r.summary.Stats)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 3: Filter
	target := grid
	if r.params.DryRun || r.params.PreserveInput {
		target = grid.Clone()
	}
	tlog = logging.NewTimeLog(r.log)
	r.log.Infof("Step 3: Removing islands smaller than %s voxels...", humanize.Comma(int64(r.params.Threshold)))
	f := islands.Filter{Threshold: r.params.Threshold, Workers: r.params.Workers}
	res, err := f.Apply(ctx, target, components)
	r.summary.Durations.Filter = tlog.Elapsed()
	if err != nil {
		return fmt.Errorf("failed to remove islands: %w", err)
	}
	r.filtered = target
	r.summary.Retained = res.Retained
	r.summary.Removed = res.Removed
	r.summary.ClearedVoxels = res.ClearedVoxels
	tlog.Infof("removed %s islands (%s voxels)",
		humanize.Comma(int64(res.Removed)), humanize.Comma(int64(res.ClearedVoxels)))
	if reporter != nil {
		reporter.Filtered(res)
	}

	// Step 4: Write back
	if r.params.DryRun {
		r.log.Info("Dry run, skipping write-back")
	} else {
		tlog = logging.NewTimeLog(r.log)
		r.log.Info("Step 4: Writing filtered volume...")
		err := sink.Write(ctx, target)
		r.summary.Durations.WriteBack = tlog.Elapsed()
		if err != nil {
			return fmt.Errorf("failed to write volume: %w", err)
		}
		tlog.Infof("volume written")
	}

	r.summary.Durations.Total = total.Elapsed()
	total.Infof("island removal completed")
	return nil
}

// Populate builds a grid from src. The context is checked once per slice.
func Populate(ctx context.Context, src Source) (*voxel.Grid, error) {
	w, h, d := src.Dimensions()
	grid, err := voxel.NewGrid(w, h, d)
	if err != nil {
		return nil, err
	}
	for z := 0; z < d; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				fg, err := src.Foreground(x, y, z)
				if err != nil {
					return nil, err
				}
				if fg {
					grid.Put(voxel.Coord{X: x, Y: y, Z: z}, true)
				}
			}
		}
	}
	return grid, nil
}

// GetSummary returns the figures of the last run.
func (r *Remover) GetSummary() Summary {
	return r.summary
}

// GetGrid returns the filtered grid, or nil before filtering completed.
func (r *Remover) GetGrid() *voxel.Grid {
	return r.filtered
}

// GetInput returns the grid as loaded from the source. It is left unfiltered
// when DryRun or PreserveInput is set.
func (r *Remover) GetInput() *voxel.Grid {
	return r.input
}
