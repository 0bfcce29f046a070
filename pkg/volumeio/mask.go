package volumeio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"voxelislands/pkg/voxel"
)

// Mask files start with a fixed header followed by a zstd stream of the
// voxels packed eight per byte, least significant bit first, in x, y, z
// raster order.
//
//	offset  size  field
//	0       4     magic "VXMK"
//	4       4     version (uint32 LE)
//	8       4     width   (uint32 LE)
//	12      4     height  (uint32 LE)
//	16      4     depth   (uint32 LE)
const (
	maskMagic   = "VXMK"
	maskVersion = 1

	// MaskExt is the conventional extension of mask files.
	MaskExt = ".vxmk"

	// maxMaskVoxels bounds the grid a mask header may declare.
	maxMaskVoxels = 1 << 34
)

// ErrNotMask is returned when a stream does not start with a mask header.
var ErrNotMask = errors.New("volumeio: not a mask file")

type maskHeader struct {
	Magic   [4]byte
	Version uint32
	Width   uint32
	Height  uint32
	Depth   uint32
}

// WriteMask encodes grid to w.
func WriteMask(w io.Writer, grid *voxel.Grid) error {
	width, height, depth := grid.Dims()
	hdr := maskHeader{Version: maskVersion, Width: uint32(width), Height: uint32(height), Depth: uint32(depth)}
	copy(hdr.Magic[:], maskMagic)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("volumeio: write mask header: %w", err)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("volumeio: create zstd encoder: %w", err)
	}
	if _, err := enc.Write(packBits(grid)); err != nil {
		enc.Close()
		return fmt.Errorf("volumeio: write mask voxels: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("volumeio: flush mask voxels: %w", err)
	}
	return nil
}

// ReadMask decodes a grid written by WriteMask.
func ReadMask(r io.Reader) (*voxel.Grid, error) {
	var hdr maskHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotMask
		}
		return nil, fmt.Errorf("volumeio: read mask header: %w", err)
	}
	if string(hdr.Magic[:]) != maskMagic {
		return nil, ErrNotMask
	}
	if hdr.Version != maskVersion {
		return nil, fmt.Errorf("volumeio: unsupported mask version %d", hdr.Version)
	}
	n := uint64(hdr.Width) * uint64(hdr.Height) * uint64(hdr.Depth)
	if n > maxMaskVoxels {
		return nil, voxel.Configf("input", "mask declares %d voxels, more than the supported %d", n, uint64(maxMaskVoxels))
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("volumeio: create zstd decoder: %w", err)
	}
	defer dec.Close()

	// The payload is read before the grid is allocated, so memory follows
	// what the stream actually holds rather than what the header claims.
	need := int64((n + 7) / 8)
	packed, err := io.ReadAll(io.LimitReader(dec, need+1))
	if err != nil {
		return nil, fmt.Errorf("volumeio: read mask voxels: %w", err)
	}
	if int64(len(packed)) != need {
		return nil, voxel.Configf("input", "mask stream holds %d bytes, header declares %d", len(packed), need)
	}

	grid, err := voxel.NewGrid(int(hdr.Width), int(hdr.Height), int(hdr.Depth))
	if err != nil {
		return nil, err
	}
	unpackBits(grid, packed)
	return grid, nil
}

func packBits(grid *voxel.Grid) []byte {
	packed := make([]byte, (grid.Len()+7)/8)
	i := 0
	grid.ForEach(func(_ voxel.Coord, v bool) {
		if v {
			packed[i/8] |= 1 << (i % 8)
		}
		i++
	})
	return packed
}

func unpackBits(grid *voxel.Grid, packed []byte) {
	i := 0
	grid.ForEach(func(c voxel.Coord, _ bool) {
		if packed[i/8]&(1<<(i%8)) != 0 {
			grid.Put(c, true)
		}
		i++
	})
}

// SaveMask writes grid to a mask file at path.
func SaveMask(path string, grid *voxel.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("volumeio: create mask file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteMask(bw, grid); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("volumeio: write mask file: %w", err)
	}
	return f.Close()
}

// LoadMask reads a mask file from path.
func LoadMask(path string) (*voxel.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("volumeio: open mask file: %w", err)
	}
	defer f.Close()
	return ReadMask(bufio.NewReader(f))
}

// MaskSource serves voxels from a grid loaded from a mask file.
type MaskSource struct {
	grid *voxel.Grid
}

// OpenMask loads the mask file at path as a Source.
func OpenMask(path string) (*MaskSource, error) {
	grid, err := LoadMask(path)
	if err != nil {
		return nil, err
	}
	return &MaskSource{grid: grid}, nil
}

// NewMaskSource serves the voxels of grid.
func NewMaskSource(grid *voxel.Grid) *MaskSource {
	return &MaskSource{grid: grid}
}

// Dimensions returns the grid dimensions.
func (m *MaskSource) Dimensions() (width, height, depth int) {
	return m.grid.Dims()
}

// Foreground returns the voxel at (x, y, z).
func (m *MaskSource) Foreground(x, y, z int) (bool, error) {
	return m.grid.Get(x, y, z)
}

// MaskWriter writes the filtered grid to a mask file.
type MaskWriter struct {
	Path string
}

// Write saves grid to w.Path.
func (w *MaskWriter) Write(ctx context.Context, grid *voxel.Grid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return SaveMask(w.Path, grid)
}
