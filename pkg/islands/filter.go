package islands

import (
	"context"

	"golang.org/x/sync/errgroup"

	"voxelislands/pkg/voxel"
)

// DefaultThreshold is the minimum island size kept when none is configured.
const DefaultThreshold = 10000

// Filter clears components smaller than Threshold.
type Filter struct {
	// Threshold is the minimum size, in voxels, of a retained component.
	Threshold int

	// Workers bounds the goroutines clearing components. Zero or one clears
	// sequentially.
	Workers int
}

// Result counts the outcome of a filter pass.
type Result struct {
	Retained      int
	Removed       int
	ClearedVoxels int

	// RemovedIndices holds the positions, in the input order, of the
	// removed components.
	RemovedIndices []int
}

// Validate checks the filter parameters.
func (f Filter) Validate() error {
	if f.Threshold <= 0 {
		return voxel.Configf("threshold", "must be positive, got %d", f.Threshold)
	}
	if f.Workers < 0 {
		return voxel.Configf("workers", "must not be negative, got %d", f.Workers)
	}
	return nil
}

// Apply sets every voxel of each component with size < Threshold to
// background in grid. Components of at least Threshold voxels are untouched.
//
// All checks run before the grid is modified, so an error leaves it intact.
// Once clearing starts it runs to completion.
func (f Filter) Apply(ctx context.Context, grid *voxel.Grid, components []Component) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	for i, c := range components {
		for _, v := range c.Voxels {
			if !grid.Contains(v) {
				w, h, d := grid.Dims()
				return Result{}, &voxel.OutOfRangeError{Coord: v, Width: w, Height: h, Depth: d}
			}
		}
		if c.Size() < f.Threshold {
			res.Removed++
			res.ClearedVoxels += c.Size()
			res.RemovedIndices = append(res.RemovedIndices, i)
		} else {
			res.Retained++
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	erase := func(c Component) {
		for _, v := range c.Voxels {
			grid.Put(v, false)
		}
	}

	if f.Workers <= 1 {
		for _, i := range res.RemovedIndices {
			erase(components[i])
		}
		return res, nil
	}

	// Components are disjoint, so each goroutine owns the voxels it clears.
	var g errgroup.Group
	g.SetLimit(f.Workers)
	for _, i := range res.RemovedIndices {
		c := components[i]
		g.Go(func() error {
			erase(c)
			return nil
		})
	}
	return res, g.Wait()
}

// Apply clears components smaller than threshold from grid sequentially.
func Apply(grid *voxel.Grid, components []Component, threshold int) (Result, error) {
	return Filter{Threshold: threshold}.Apply(context.Background(), grid, components)
}
