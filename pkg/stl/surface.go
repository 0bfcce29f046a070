// Package stl exports the surface of a binary voxel volume as a binary STL
// mesh. Every foreground voxel face that borders background or the volume
// boundary becomes two triangles, so the mesh follows the voxel staircase
// exactly and each island yields a closed surface.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"voxelislands/pkg/voxel"
)

// Triangle is one facet of the mesh
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// face describes one side of a unit cube: the outward normal and its four
// corners, counter-clockwise seen from outside.
type face struct {
	offset  voxel.Coord
	normal  [3]float32
	corners [4][3]float32
}

var faces = [6]face{
	{voxel.Coord{X: -1}, [3]float32{-1, 0, 0}, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{voxel.Coord{X: 1}, [3]float32{1, 0, 0}, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{voxel.Coord{Y: -1}, [3]float32{0, -1, 0}, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{voxel.Coord{Y: 1}, [3]float32{0, 1, 0}, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{voxel.Coord{Z: -1}, [3]float32{0, 0, -1}, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
	{voxel.Coord{Z: 1}, [3]float32{0, 0, 1}, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
}

// Surface extracts the boundary faces of a voxel grid
type Surface struct {
	grid *voxel.Grid

	// Scale factors for x, y, z coordinates
	xScale, yScale, zScale float32
}

// NewSurface creates a surface extractor over grid with unit scale
func NewSurface(grid *voxel.Grid) *Surface {
	return &Surface{
		grid:   grid,
		xScale: 1.0,
		yScale: 1.0,
		zScale: 1.0,
	}
}

// SetScale sets the physical size of a voxel along each axis, e.g. the pixel
// spacing and the gap between slices
func (s *Surface) SetScale(x, y, z float32) {
	s.xScale = x
	s.yScale = y
	s.zScale = z
}

// GenerateTriangles returns two triangles for every exposed voxel face, in
// raster order of the voxels
func (s *Surface) GenerateTriangles() []Triangle {
	var triangles []Triangle
	s.grid.ForEach(func(c voxel.Coord, v bool) {
		if !v {
			return
		}
		for _, f := range faces {
			n := voxel.Coord{X: c.X + f.offset.X, Y: c.Y + f.offset.Y, Z: c.Z + f.offset.Z}
			if s.grid.Contains(n) && s.grid.At(n) {
				continue
			}
			var p [4][3]float32
			for i, corner := range f.corners {
				p[i] = [3]float32{
					(float32(c.X) + corner[0]) * s.xScale,
					(float32(c.Y) + corner[1]) * s.yScale,
					(float32(c.Z) + corner[2]) * s.zScale,
				}
			}
			triangles = append(triangles,
				Triangle{Normal: f.normal, Vertex1: p[0], Vertex2: p[1], Vertex3: p[2]},
				Triangle{Normal: f.normal, Vertex1: p[0], Vertex2: p[2], Vertex3: p[3]},
			)
		}
	})
	return triangles
}

// SaveToSTL writes triangles to filename in binary STL format
func SaveToSTL(filename string, triangles []Triangle) error {
	if uint64(len(triangles)) > math.MaxUint32 {
		return fmt.Errorf("too many triangles for STL: %d", len(triangles))
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)

	// 80 byte header, then the triangle count
	var header [80]byte
	copy(header[:], "voxelislands surface")
	if _, err := w.Write(header[:]); err != nil {
		file.Close()
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		file.Close()
		return err
	}

	// Each record: normal, three vertices, uint16 attribute byte count
	for _, t := range triangles {
		rec := struct {
			Normal, V1, V2, V3 [3]float32
			Attr               uint16
		}{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3, 0}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			file.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
