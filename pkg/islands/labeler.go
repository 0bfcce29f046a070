// Package islands labels the 6-connected foreground components of a binary
// voxel grid, summarizes their sizes and removes the ones that are too small.
package islands

import (
	"context"
	"fmt"

	"voxelislands/pkg/voxel"
)

// DefaultCheckEvery is the number of frontier pops between context checks.
const DefaultCheckEvery = 4096

// Component is a maximal set of face-connected foreground voxels, listed in
// the order the traversal reached them.
type Component struct {
	Voxels []voxel.Coord
}

// Size returns the number of voxels in the component.
func (c Component) Size() int {
	return len(c.Voxels)
}

// ProgressCallback receives the number of foreground voxels labeled so far,
// the total foreground count and a short message.
type ProgressCallback func(completed, total int, message string)

// Labeler discovers connected components. The zero value is usable.
type Labeler struct {
	// CheckEvery is how many voxels are expanded between cancellation
	// checks. Zero means DefaultCheckEvery.
	CheckEvery int

	progress ProgressCallback
}

// NewLabeler returns a Labeler with default settings.
func NewLabeler() *Labeler {
	return &Labeler{CheckEvery: DefaultCheckEvery}
}

// SetProgressCallback sets a function called after each discovered component.
// It is never called from inside a traversal.
func (l *Labeler) SetProgressCallback(callback ProgressCallback) {
	l.progress = callback
}

func (l *Labeler) checkEvery() int {
	if l.CheckEvery <= 0 {
		return DefaultCheckEvery
	}
	return l.CheckEvery
}

// Discover returns the component containing seed using a breadth-first
// expansion over face-adjacent voxels. The seed must be foreground and not
// yet visited. Every voxel added to the component is marked in visited.
//
// If ctx is cancelled mid-traversal the partial component is dropped and the
// context error returned; voxels reached so far remain marked in visited.
func (l *Labeler) Discover(ctx context.Context, grid, visited *voxel.Grid, seed voxel.Coord) (Component, error) {
	if !grid.SameDims(visited) {
		return Component{}, &InvariantViolation{Reason: "visited mask dimensions differ from grid", Coord: seed}
	}
	fg, err := grid.Get(seed.X, seed.Y, seed.Z)
	if err != nil {
		return Component{}, err
	}
	if !fg {
		return Component{}, &InvariantViolation{Reason: "seed is background", Coord: seed}
	}
	if visited.At(seed) {
		return Component{}, &InvariantViolation{Reason: "seed already assigned to a component", Coord: seed}
	}

	checkEvery := l.checkEvery()
	visited.Put(seed, true)

	// The queue doubles as the component: everything pushed is a member and
	// the head only moves forward.
	queue := []voxel.Coord{seed}
	neighbors := make([]voxel.Coord, 0, 6)
	for head := 0; head < len(queue); head++ {
		if head%checkEvery == checkEvery-1 {
			if err := ctx.Err(); err != nil {
				return Component{}, err
			}
		}
		cur := queue[head]
		if !grid.At(cur) || !visited.At(cur) {
			return Component{}, &InvariantViolation{Reason: "queued voxel is not a visited foreground voxel", Coord: cur}
		}
		neighbors = grid.Neighbors(cur, neighbors[:0])
		for _, n := range neighbors {
			if !grid.At(n) || visited.At(n) {
				continue
			}
			visited.Put(n, true)
			queue = append(queue, n)
		}
	}
	return Component{Voxels: queue}, nil
}

// EnumerateAll scans grid in raster order (x fastest, then y, then z) and
// returns every component in the order its first voxel was met.
//
// On cancellation the components completed so far are returned along with
// the context error.
func (l *Labeler) EnumerateAll(ctx context.Context, grid *voxel.Grid) ([]Component, error) {
	width, height, depth := grid.Dims()
	visited, err := voxel.NewGrid(width, height, depth)
	if err != nil {
		return nil, err
	}

	total := grid.Count()
	labeled := 0
	var components []Component
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := voxel.Coord{X: x, Y: y, Z: z}
				if !grid.At(c) || visited.At(c) {
					continue
				}
				if err := ctx.Err(); err != nil {
					return components, err
				}
				comp, err := l.Discover(ctx, grid, visited, c)
				if err != nil {
					return components, err
				}
				components = append(components, comp)
				labeled += comp.Size()
				if l.progress != nil {
					l.progress(labeled, total, fmt.Sprintf("island %d: %d voxels", len(components), comp.Size()))
				}
			}
		}
	}

	if labeled != total {
		return components, &InvariantViolation{
			Reason: fmt.Sprintf("components cover %d voxels but grid has %d foreground voxels", labeled, total),
		}
	}
	return components, nil
}

// Discover runs a default Labeler without cancellation.
func Discover(grid, visited *voxel.Grid, seed voxel.Coord) (Component, error) {
	return NewLabeler().Discover(context.Background(), grid, visited, seed)
}

// EnumerateAll runs a default Labeler over grid.
func EnumerateAll(ctx context.Context, grid *voxel.Grid) ([]Component, error) {
	return NewLabeler().EnumerateAll(ctx, grid)
}
