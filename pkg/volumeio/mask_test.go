package volumeio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelislands/pkg/voxel"
)

func randomGrid(seed int64, width, height, depth int) *voxel.Grid {
	rng := rand.New(rand.NewSource(seed))
	g := voxel.MustGrid(width, height, depth)
	g.ForEach(func(c voxel.Coord, _ bool) {
		g.Put(c, rng.Intn(3) == 0)
	})
	return g
}

func TestMaskRoundTrip(t *testing.T) {
	for _, dims := range [][3]int{{1, 1, 1}, {7, 5, 3}, {16, 16, 16}, {0, 4, 4}} {
		g := randomGrid(int64(dims[0]), dims[0], dims[1], dims[2])

		var buf bytes.Buffer
		require.NoError(t, WriteMask(&buf, g))

		loaded, err := ReadMask(&buf)
		require.NoError(t, err, "dims %v", dims)
		assert.True(t, g.Equal(loaded), "dims %v", dims)
	}
}

func TestMaskFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume"+MaskExt)
	g := randomGrid(5, 33, 17, 9)

	w := &MaskWriter{Path: path}
	require.NoError(t, w.Write(context.Background(), g))

	src, err := OpenMask(path)
	require.NoError(t, err)
	width, height, depth := src.Dimensions()
	assert.Equal(t, []int{33, 17, 9}, []int{width, height, depth})

	g.ForEach(func(c voxel.Coord, v bool) {
		fg, err := src.Foreground(c.X, c.Y, c.Z)
		require.NoError(t, err)
		assert.Equal(t, v, fg, "voxel %v", c)
	})
}

func TestReadMaskErrors(t *testing.T) {
	_, err := ReadMask(bytes.NewReader([]byte("PNG")))
	assert.ErrorIs(t, err, ErrNotMask)

	_, err = ReadMask(bytes.NewReader([]byte("NOPE0000000000000000")))
	assert.ErrorIs(t, err, ErrNotMask)

	var buf bytes.Buffer
	hdr := maskHeader{Version: 9, Width: 1, Height: 1, Depth: 1}
	copy(hdr.Magic[:], maskMagic)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	_, err = ReadMask(&buf)
	assert.Error(t, err)

	buf.Reset()
	hdr = maskHeader{Version: maskVersion, Width: 1 << 20, Height: 1 << 20, Depth: 1 << 20}
	copy(hdr.Magic[:], maskMagic)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	_, err = ReadMask(&buf)
	var cfgErr *voxel.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "oversized mask: got %v", err)

	// Header promises more voxels than the stream holds.
	var full bytes.Buffer
	require.NoError(t, WriteMask(&full, voxel.MustGrid(4, 4, 4)))
	truncated := full.Bytes()[:20]
	_, err = ReadMask(bytes.NewReader(truncated))
	assert.Error(t, err)

	// A large declared volume over a short payload fails before allocating.
	buf.Reset()
	hdr = maskHeader{Version: maskVersion, Width: 1 << 11, Height: 1 << 11, Depth: 1 << 11}
	copy(hdr.Magic[:], maskMagic)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(make([]byte, 16))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	_, err = ReadMask(&buf)
	require.True(t, errors.As(err, &cfgErr), "short payload: got %v", err)
	assert.Equal(t, "input", cfgErr.Field)

	// Extra payload is rejected too.
	buf.Reset()
	hdr = maskHeader{Version: maskVersion, Width: 2, Height: 2, Depth: 2}
	copy(hdr.Magic[:], maskMagic)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	enc, err = zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte{0xff, 0xff})
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	_, err = ReadMask(&buf)
	assert.True(t, errors.As(err, &cfgErr), "long payload: got %v", err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	slices := filepath.Join(dir, "slices")
	require.NoError(t, os.Mkdir(slices, 0755))
	writePNG(t, filepath.Join(slices, "s0.png"), createTestImage(2, 2, func(x, y int) uint8 { return uint8(x) }))

	src, err := Open(ctx, slices, FormatAuto, 1)
	require.NoError(t, err)
	assert.IsType(t, &SliceStack{}, src)

	maskPath := filepath.Join(dir, "m.bin")
	require.NoError(t, SaveMask(maskPath, voxel.MustGrid(2, 2, 2)))
	src, err = Open(ctx, maskPath, FormatAuto, 1)
	require.NoError(t, err)
	assert.IsType(t, &MaskSource{}, src)

	src, err = Open(ctx, maskPath, FormatMask, 1)
	require.NoError(t, err)
	assert.IsType(t, &MaskSource{}, src)

	var cfgErr *voxel.ConfigurationError
	other := filepath.Join(dir, "other.dat")
	require.NoError(t, os.WriteFile(other, []byte("hello world"), 0644))
	_, err = Open(ctx, other, FormatAuto, 1)
	assert.True(t, errors.As(err, &cfgErr), "unknown file: got %v", err)

	_, err = Open(ctx, slices, "nrrd", 1)
	assert.True(t, errors.As(err, &cfgErr), "unknown format: got %v", err)

	_, err = Open(ctx, "", FormatAuto, 1)
	assert.True(t, errors.As(err, &cfgErr), "empty path: got %v", err)

	_, err = Open(ctx, filepath.Join(dir, "missing"), FormatAuto, 1)
	assert.Error(t, err)
}

func TestNewSink(t *testing.T) {
	stack, err := NewSliceStack([]image.Image{createTestImage(1, 1, func(x, y int) uint8 { return 1 })})
	require.NoError(t, err)

	sink, err := NewSink("out.vxmk", "mask", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, &MaskWriter{Path: "out.vxmk"}, sink)

	sink, err = NewSink("out", "webp", stack, 3)
	require.NoError(t, err)
	sw, ok := sink.(*SliceWriter)
	require.True(t, ok)
	assert.Same(t, stack, sw.Template)
	assert.Equal(t, 3, sw.Workers)

	sink, err = NewSink("out", "png", NewMaskSource(voxel.MustGrid(1, 1, 1)), 1)
	require.NoError(t, err)
	assert.Nil(t, sink.(*SliceWriter).Template)

	var cfgErr *voxel.ConfigurationError
	_, err = NewSink("out", "gif", nil, 1)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = NewSink("", "png", nil, 1)
	assert.True(t, errors.As(err, &cfgErr))
}
