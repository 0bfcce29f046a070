// Package volumeio reads binary volumes from slice image stacks and mask
// files, and writes filtered volumes back.
package volumeio

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"voxelislands/internal/models"
	"voxelislands/pkg/visualization"
	"voxelislands/pkg/voxel"
)

// Source supplies a binary volume one voxel at a time.
type Source interface {
	Dimensions() (width, height, depth int)
	Foreground(x, y, z int) (bool, error)
}

// SliceStack is a volume held as one decoded image per z slice. A pixel is
// foreground when any of its colour channels is nonzero; alpha is ignored.
type SliceStack struct {
	slices []models.Slice
	width  int
	height int
}

// NewSliceStack builds a stack from in-memory images, all of the same size.
func NewSliceStack(images []image.Image) (*SliceStack, error) {
	slices := make([]models.Slice, len(images))
	for i, img := range images {
		slices[i] = models.Slice{Image: img, Index: i, Filename: fmt.Sprintf("slice_%03d.png", i)}
	}
	return newSliceStack(slices)
}

func newSliceStack(slices []models.Slice) (*SliceStack, error) {
	s := &SliceStack{slices: slices}
	if len(slices) == 0 {
		return s, nil
	}
	s.width, s.height = slices[0].Width(), slices[0].Height()
	for _, sl := range slices[1:] {
		if sl.Width() != s.width || sl.Height() != s.height {
			return nil, voxel.Configf("slices", "%s is %dx%d, expected %dx%d like %s",
				sl.Filename, sl.Width(), sl.Height(), s.width, s.height, slices[0].Filename)
		}
	}
	return s, nil
}

// OpenSliceDir loads every decodable image in dir as one z slice, ordered by
// the number embedded in the filename. Decoding runs on up to workers
// goroutines.
func OpenSliceDir(ctx context.Context, dir string, workers int) (*SliceStack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("volumeio: read slice directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := models.FormatFromPath(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, voxel.Configf("input.path", "no slice images found in %s", dir)
	}

	// Order by slice number, falling back to the name for equal numbers.
	sort.Slice(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	slices := make([]models.Slice, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := loadImage(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("volumeio: load slice %s: %w", name, err)
			}
			slices[i] = models.Slice{Image: img, Index: i, Filename: name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newSliceStack(slices)
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

// decoders maps slice formats to their decoders. Decoding goes by file
// extension rather than image.Decode: the tga package registers an empty
// magic string, which would claim every file.
var decoders = map[models.SliceFormat]func(io.Reader) (image.Image, error){
	models.FormatPNG:  png.Decode,
	models.FormatJPEG: jpeg.Decode,
	models.FormatGIF:  gif.Decode,
	models.FormatTIFF: tiff.Decode,
	models.FormatBMP:  bmp.Decode,
	models.FormatWebP: webp.Decode,
	models.FormatTGA:  tga.Decode,
}

func loadImage(path string) (image.Image, error) {
	format, ok := models.FormatFromPath(path)
	decode := decoders[format]
	if !ok || decode == nil {
		return nil, fmt.Errorf("unsupported slice format: %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Dimensions returns the slice width, height and the number of slices.
func (s *SliceStack) Dimensions() (width, height, depth int) {
	return s.width, s.height, len(s.slices)
}

// Slices returns the loaded slices in z order.
func (s *SliceStack) Slices() []models.Slice {
	return s.slices
}

// Foreground reports whether pixel (x, y) of slice z is nonzero.
func (s *SliceStack) Foreground(x, y, z int) (bool, error) {
	if x < 0 || x >= s.width || y < 0 || y >= s.height || z < 0 || z >= len(s.slices) {
		return false, &voxel.OutOfRangeError{
			Coord: voxel.Coord{X: x, Y: y, Z: z}, Width: s.width, Height: s.height, Depth: len(s.slices),
		}
	}
	return nonzero(s.slices[z].Image, x, y), nil
}

func nonzero(img image.Image, x, y int) bool {
	b := img.Bounds()
	px, py := b.Min.X+x, b.Min.Y+y
	switch im := img.(type) {
	case *image.Gray:
		return im.GrayAt(px, py).Y != 0
	case *image.Gray16:
		return im.Gray16At(px, py).Y != 0
	}
	r, g, bl, _ := img.At(px, py).RGBA()
	return r|g|bl != 0
}

// SliceWriter writes a grid back as one image per z slice.
type SliceWriter struct {
	// Dir is the output directory, created if missing
	Dir string

	// Format is the image encoding of the written slices
	Format models.SliceFormat

	// Template, when set, supplies the original slices: retained voxels keep
	// their original pixel values and only cleared voxels are zeroed.
	// Without a template binary slices are written.
	Template *SliceStack

	// Workers bounds the goroutines encoding slices
	Workers int
}

// Write encodes every z slice of grid into Dir.
func (w *SliceWriter) Write(ctx context.Context, grid *voxel.Grid) error {
	if !w.Format.Writable() {
		return voxel.Configf("output.format", "cannot write %q slices", w.Format)
	}
	width, height, depth := grid.Dims()
	if w.Template != nil {
		tw, th, td := w.Template.Dimensions()
		if tw != width || th != height || td != depth {
			return voxel.Configf("output", "template stack is %dx%dx%d but grid is %dx%dx%d",
				tw, th, td, width, height, depth)
		}
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("volumeio: create output directory: %w", err)
	}

	viewer := visualization.NewViewer(grid)
	g, gctx := errgroup.WithContext(ctx)
	if w.Workers > 0 {
		g.SetLimit(w.Workers)
	}
	for z := 0; z < depth; z++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var img image.Image
			name := fmt.Sprintf("slice_z_%03d%s", z, w.Format.Ext())
			if w.Template != nil {
				src := w.Template.slices[z]
				img = maskSlice(src.Image, grid, z)
				name = strings.TrimSuffix(src.Filename, filepath.Ext(src.Filename)) + w.Format.Ext()
			} else {
				gray, err := viewer.ExtractSlice("z", z)
				if err != nil {
					return err
				}
				img = gray
			}
			if err := viewer.SaveSlice(img, filepath.Join(w.Dir, name)); err != nil {
				return fmt.Errorf("volumeio: write slice %d: %w", z, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// maskSlice copies src and zeroes the pixels that were foreground in src but
// are background in slice z of grid.
func maskSlice(src image.Image, grid *voxel.Grid, z int) image.Image {
	b := src.Bounds()
	var dst draw.Image
	switch src.(type) {
	case *image.Gray:
		dst = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	case *image.Gray16:
		dst = image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	default:
		dst = image.NewRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if nonzero(src, x, y) && !grid.At(voxel.Coord{X: x, Y: y, Z: z}) {
				dst.Set(x, y, color.Black)
			}
		}
	}
	return dst
}
