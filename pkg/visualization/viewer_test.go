package visualization

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"voxelislands/internal/models"
	"voxelislands/pkg/voxel"
)

// createTestGrid builds a grid where voxel (x, y, z) is foreground when x+y+z is even
func createTestGrid(width, height, depth int) *voxel.Grid {
	g := voxel.MustGrid(width, height, depth)
	g.ForEach(func(c voxel.Coord, _ bool) {
		g.Put(c, (c.X+c.Y+c.Z)%2 == 0)
	})
	return g
}

// TestNewViewer verifies that a new viewer is created with the grid dimensions
func TestNewViewer(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer := NewViewer(createTestGrid(width, height, depth))

	if viewer.width != width {
		t.Errorf("Expected width %d, got %d", width, viewer.width)
	}

	if viewer.height != height {
		t.Errorf("Expected height %d, got %d", height, viewer.height)
	}

	if viewer.depth != depth {
		t.Errorf("Expected depth %d, got %d", depth, viewer.depth)
	}
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 6, 4, 3
	grid := createTestGrid(width, height, depth)
	viewer := NewViewer(grid)

	// Test extracting Z slices
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				expected := BackgroundColor
				if grid.At(voxel.Coord{X: x, Y: y, Z: z}) {
					expected = ForegroundColor
				}
				if got := img.GrayAt(x, y); got != expected {
					t.Errorf("Z slice %d at (%d,%d): expected %d, got %d", z, x, y, expected.Y, got.Y)
				}
			}
		}
	}

	// Test extracting X slice
	imgX, err := viewer.ExtractSlice("x", 1)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}

	boundsX := imgX.Bounds()
	if boundsX.Dx() != depth || boundsX.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d",
			depth, height, boundsX.Dx(), boundsX.Dy())
	}
	// (1, 0, 0) is background, (1, 0, 1) is foreground
	if imgX.GrayAt(0, 0) != BackgroundColor || imgX.GrayAt(1, 0) != ForegroundColor {
		t.Errorf("Unexpected X slice values: %v %v", imgX.GrayAt(0, 0), imgX.GrayAt(1, 0))
	}

	// Test extracting Y slice
	imgY, err := viewer.ExtractSlice("y", 2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}

	boundsY := imgY.Bounds()
	if boundsY.Dx() != width || boundsY.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d",
			width, depth, boundsY.Dx(), boundsY.Dy())
	}

	// Test invalid axis
	_, err = viewer.ExtractSlice("invalid", 0)
	if err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	// Test out of bounds position
	_, err = viewer.ExtractSlice("z", depth)
	if err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}

	_, err = viewer.ExtractSlice("y", -1)
	if err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestExtractRegion verifies that 3D regions are correctly extracted
func TestExtractRegion(t *testing.T) {
	width, height, depth := 10, 10, 5
	grid := createTestGrid(width, height, depth)
	viewer := NewViewer(grid)

	startX, startY, startZ := 2, 3, 1
	sizeX, sizeY, sizeZ := 4, 3, 2

	region, err := viewer.ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}

	if region.Len() != sizeX*sizeY*sizeZ {
		t.Errorf("Expected region size %d, got %d", sizeX*sizeY*sizeZ, region.Len())
	}

	region.ForEach(func(c voxel.Coord, v bool) {
		src := voxel.Coord{X: startX + c.X, Y: startY + c.Y, Z: startZ + c.Z}
		if v != grid.At(src) {
			t.Errorf("Region value mismatch at %v: expected %v, got %v", c, grid.At(src), v)
		}
	})

	// Test invalid parameters
	_, err = viewer.ExtractRegion(-1, 0, 0, 1, 1, 1)
	if err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}

	_, err = viewer.ExtractRegion(0, 0, 0, 0, 1, 1)
	if err == nil {
		t.Error("Expected error for zero size, got nil")
	}

	_, err = viewer.ExtractRegion(width-1, 0, 0, 2, 1, 1)
	if err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSlice verifies that slices can be saved to disk in each writable format
func TestSaveSlice(t *testing.T) {
	tempDir := t.TempDir()
	viewer := NewViewer(createTestGrid(10, 10, 5))

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	for _, name := range []string{"slice.png", "slice.tif", "slice.webp", "slice.jpg"} {
		filename := filepath.Join(tempDir, name)
		if err := viewer.SaveSlice(img, filename); err != nil {
			t.Fatalf("Failed to save slice %s: %v", name, err)
		}
		if info, err := os.Stat(filename); err != nil || info.Size() == 0 {
			t.Errorf("Saved file missing or empty: %s", filename)
		}
	}

	if err := viewer.SaveSlice(img, filepath.Join(tempDir, "slice.gif")); err == nil {
		t.Error("Expected error for unsupported output format, got nil")
	}

	// Lossless formats must decode back to the same pixels
	decoders := map[string]func(f *os.File) (image.Image, error){
		"slice.png": func(f *os.File) (image.Image, error) { return png.Decode(f) },
		"slice.tif": func(f *os.File) (image.Image, error) { return tiff.Decode(f) },
	}
	for name, decode := range decoders {
		f, err := os.Open(filepath.Join(tempDir, name))
		if err != nil {
			t.Fatalf("Failed to open %s: %v", name, err)
		}
		decoded, err := decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("Failed to decode %s: %v", name, err)
		}
		for y := 0; y < 10; y++ {
			for x := 0; x < 10; x++ {
				r, _, _, _ := decoded.At(x, y).RGBA()
				want := uint32(img.GrayAt(x, y).Y) * 0x101
				if r != want {
					t.Errorf("%s at (%d,%d): expected %d, got %d", name, x, y, want, r)
				}
			}
		}
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	tempDir := t.TempDir()

	width, height, depth := 5, 4, 3
	viewer := NewViewer(createTestGrid(width, height, depth))

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir, models.FormatPNG); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("x", outputDir, models.FormatTIFF); err != nil {
		t.Fatalf("Failed to save x slice sequence: %v", err)
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	if len(entries) != depth+width {
		t.Errorf("Expected %d files, got %d", depth+width, len(entries))
	}

	// Test invalid axis
	if err := viewer.SaveSliceSequence("invalid", outputDir, models.FormatPNG); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
