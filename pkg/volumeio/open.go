package volumeio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"voxelislands/internal/models"
	"voxelislands/pkg/voxel"
)

// Sink persists a filtered grid.
type Sink interface {
	Write(ctx context.Context, grid *voxel.Grid) error
}

// Input formats accepted by Open
const (
	FormatAuto   = "auto"
	FormatSlices = "slices"
	FormatMask   = "mask"
)

// Open returns a Source for path. With FormatAuto a directory is read as a
// slice stack and a file as a mask.
func Open(ctx context.Context, path, format string, workers int) (Source, error) {
	if path == "" {
		return nil, voxel.Configf("input.path", "not set")
	}
	switch format {
	case FormatSlices:
		return OpenSliceDir(ctx, path, workers)
	case FormatMask:
		return OpenMask(path)
	case FormatAuto, "":
	default:
		return nil, voxel.Configf("input.format", "unknown format %q", format)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("volumeio: %w", err)
	}
	if info.IsDir() {
		return OpenSliceDir(ctx, path, workers)
	}
	if ok, err := isMaskFile(path); err != nil {
		return nil, err
	} else if !ok {
		return nil, voxel.Configf("input.path", "%s is neither a slice directory nor a mask file", path)
	}
	return OpenMask(path)
}

func isMaskFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("volumeio: %w", err)
	}
	defer f.Close()
	magic, err := bufio.NewReader(f).Peek(len(maskMagic))
	if err != nil {
		return false, nil
	}
	return string(magic) == maskMagic, nil
}

// NewSink returns the writer for path in the given output format. template
// may be nil; it is only used for slice output.
func NewSink(path, format string, template Source, workers int) (Sink, error) {
	if path == "" {
		return nil, voxel.Configf("output.path", "not set")
	}
	if strings.EqualFold(format, FormatMask) {
		return &MaskWriter{Path: path}, nil
	}
	f, ok := models.ParseFormat(format)
	if !ok || !f.Writable() {
		return nil, voxel.Configf("output.format", "cannot write %q slices", format)
	}
	w := &SliceWriter{Dir: path, Format: f, Workers: workers}
	if stack, ok := template.(*SliceStack); ok && stack != nil {
		w.Template = stack
	}
	return w, nil
}
