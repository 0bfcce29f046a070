// Package voxel provides dense binary 3D voxel storage.
//
// A Grid stores its voxels in a single flat buffer laid out slice by slice,
// so that the voxel (x, y, z) lives at z*width*height + y*width + x.
package voxel

import (
	"fmt"
	"math"
)

// Coord is a voxel coordinate.
type Coord struct {
	X, Y, Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// faceOffsets lists the six face-adjacent neighbour offsets in a fixed order.
var faceOffsets = [6]Coord{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// Grid is a fixed-size 3D field of foreground (true) and background (false)
// voxels. Its dimensions never change after construction.
type Grid struct {
	width  int
	height int
	depth  int

	// data holds width*height*depth voxels in z, y, x order
	data []bool
}

// NewGrid returns an all-background grid of the given dimensions. Any
// dimension may be zero, in which case the grid holds no voxels.
func NewGrid(width, height, depth int) (*Grid, error) {
	if width < 0 || height < 0 || depth < 0 {
		return nil, Configf("dimensions", "must be non-negative, got %dx%dx%d", width, height, depth)
	}
	if (height != 0 && width > math.MaxInt/height) || (depth != 0 && width*height > math.MaxInt/depth) {
		return nil, Configf("dimensions", "%dx%dx%d voxels overflow int", width, height, depth)
	}
	return &Grid{
		width:  width,
		height: height,
		depth:  depth,
		data:   make([]bool, width*height*depth),
	}, nil
}

// MustGrid is like NewGrid but panics on invalid dimensions.
func MustGrid(width, height, depth int) *Grid {
	g, err := NewGrid(width, height, depth)
	if err != nil {
		panic(err)
	}
	return g
}

// Dims returns the width, height and depth of the grid.
func (g *Grid) Dims() (width, height, depth int) {
	return g.width, g.height, g.depth
}

// Len returns the number of voxels in the grid.
func (g *Grid) Len() int {
	return len(g.data)
}

// SizeBytes returns the memory held by the voxel buffer.
func (g *Grid) SizeBytes() uint64 {
	return uint64(len(g.data))
}

// Contains reports whether c lies inside the grid.
func (g *Grid) Contains(c Coord) bool {
	return c.X >= 0 && c.X < g.width &&
		c.Y >= 0 && c.Y < g.height &&
		c.Z >= 0 && c.Z < g.depth
}

// Index returns the buffer offset of c. The caller must ensure c is in range.
func (g *Grid) Index(c Coord) int {
	return c.Z*g.width*g.height + c.Y*g.width + c.X
}

// CoordOf is the inverse of Index.
func (g *Grid) CoordOf(i int) Coord {
	plane := g.width * g.height
	z := i / plane
	rem := i - z*plane
	return Coord{X: rem % g.width, Y: rem / g.width, Z: z}
}

func (g *Grid) rangeError(c Coord) *OutOfRangeError {
	return &OutOfRangeError{Coord: c, Width: g.width, Height: g.height, Depth: g.depth}
}

// Get returns the value of voxel (x, y, z).
func (g *Grid) Get(x, y, z int) (bool, error) {
	c := Coord{x, y, z}
	if !g.Contains(c) {
		return false, g.rangeError(c)
	}
	return g.data[g.Index(c)], nil
}

// Set stores v at voxel (x, y, z).
func (g *Grid) Set(x, y, z int, v bool) error {
	c := Coord{x, y, z}
	if !g.Contains(c) {
		return g.rangeError(c)
	}
	g.data[g.Index(c)] = v
	return nil
}

// At returns the value at c and panics with an *OutOfRangeError when c is
// outside the grid. It is meant for loops that already know their bounds.
func (g *Grid) At(c Coord) bool {
	if !g.Contains(c) {
		panic(g.rangeError(c))
	}
	return g.data[g.Index(c)]
}

// Put stores v at c and panics with an *OutOfRangeError when c is outside
// the grid.
func (g *Grid) Put(c Coord, v bool) {
	if !g.Contains(c) {
		panic(g.rangeError(c))
	}
	g.data[g.Index(c)] = v
}

// Neighbors appends to buf the in-bounds voxels sharing a face with c and
// returns the extended slice. Edge and corner diagonals are never included.
func (g *Grid) Neighbors(c Coord, buf []Coord) []Coord {
	for _, d := range faceOffsets {
		n := Coord{c.X + d.X, c.Y + d.Y, c.Z + d.Z}
		if g.Contains(n) {
			buf = append(buf, n)
		}
	}
	return buf
}

// Count returns the number of foreground voxels.
func (g *Grid) Count() int {
	n := 0
	for _, v := range g.data {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	data := make([]bool, len(g.data))
	copy(data, g.data)
	return &Grid{width: g.width, height: g.height, depth: g.depth, data: data}
}

// SameDims reports whether g and o have identical dimensions.
func (g *Grid) SameDims(o *Grid) bool {
	return g.width == o.width && g.height == o.height && g.depth == o.depth
}

// Equal reports whether g and o have the same dimensions and voxel values.
func (g *Grid) Equal(o *Grid) bool {
	if !g.SameDims(o) {
		return false
	}
	for i, v := range g.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// ForEach calls fn for every voxel in raster order: x fastest, then y, then z.
func (g *Grid) ForEach(fn func(c Coord, v bool)) {
	i := 0
	for z := 0; z < g.depth; z++ {
		for y := 0; y < g.height; y++ {
			for x := 0; x < g.width; x++ {
				fn(Coord{x, y, z}, g.data[i])
				i++
			}
		}
	}
}
