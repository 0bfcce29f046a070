package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/tiff"

	"voxelislands/internal/models"
	"voxelislands/pkg/voxel"
)

// Foreground and background intensities of rendered slices
var (
	ForegroundColor = color.Gray{Y: 255}
	BackgroundColor = color.Gray{Y: 0}
)

// Viewer renders axis-aligned slices of a binary voxel grid
type Viewer struct {
	// grid holds the volume being viewed
	grid *voxel.Grid

	// dimensions of the volume
	width  int
	height int
	depth  int
}

// NewViewer creates a new viewer over grid
func NewViewer(grid *voxel.Grid) *Viewer {
	w, h, d := grid.Dims()
	return &Viewer{
		grid:   grid,
		width:  w,
		height: h,
		depth:  d,
	}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis.
// Foreground voxels are white and background voxels black.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}

		img = image.NewGray(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray(z, y, v.shade(voxel.Coord{X: position, Y: y, Z: z}))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}

		img = image.NewGray(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray(x, z, v.shade(voxel.Coord{X: x, Y: position, Z: z}))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}

		img = image.NewGray(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray(x, y, v.shade(voxel.Coord{X: x, Y: y, Z: position}))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (v *Viewer) shade(c voxel.Coord) color.Gray {
	if v.grid.At(c) {
		return ForegroundColor
	}
	return BackgroundColor
}

// ExtractRegion copies a 3D subregion of the volume into a new grid
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*voxel.Grid, error) {
	// Validate parameters
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region, err := voxel.NewGrid(sizeX, sizeY, sizeZ)
	if err != nil {
		return nil, err
	}
	region.ForEach(func(c voxel.Coord, _ bool) {
		src := voxel.Coord{X: startX + c.X, Y: startY + c.Y, Z: startZ + c.Z}
		region.Put(c, v.grid.At(src))
	})

	return region, nil
}

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, format models.SliceFormat) error {
	switch format {
	case models.FormatPNG:
		return png.Encode(w, img)
	case models.FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case models.FormatWebP:
		return nativewebp.Encode(w, img, nil)
	case models.FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("cannot encode %s images", format)
	}
}

// SaveSlice saves an image, choosing the encoder from the filename extension
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	format, ok := models.FormatFromPath(filename)
	if !ok || !format.Writable() {
		return fmt.Errorf("unsupported output format for %s", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := Encode(file, img, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string, format models.SliceFormat) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d%s", axis, pos, format.Ext()))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
