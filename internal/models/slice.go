package models

import (
	"image"
	"path/filepath"
	"strings"
)

// Slice represents a single z slice of a volume with metadata
type Slice struct {
	// Image is the decoded slice image data
	Image image.Image

	// Index is the position of this slice in the stack
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// Width returns the width of the slice image in pixels
func (s Slice) Width() int {
	return s.Image.Bounds().Dx()
}

// Height returns the height of the slice image in pixels
func (s Slice) Height() int {
	return s.Image.Bounds().Dy()
}

// SliceFormat is an image encoding used for slice files
type SliceFormat string

const (
	FormatPNG  SliceFormat = "png"
	FormatTIFF SliceFormat = "tiff"
	FormatWebP SliceFormat = "webp"
	FormatJPEG SliceFormat = "jpeg"
	FormatGIF  SliceFormat = "gif"
	FormatBMP  SliceFormat = "bmp"
	FormatTGA  SliceFormat = "tga"
)

// extensions maps lowercase file extensions to slice formats
var extensions = map[string]SliceFormat{
	".png":  FormatPNG,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWebP,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tga":  FormatTGA,
}

// FormatFromPath returns the slice format implied by the extension of path
func FormatFromPath(path string) (SliceFormat, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// ParseFormat normalizes a user supplied format name
func ParseFormat(name string) (SliceFormat, bool) {
	return FormatFromPath("." + strings.TrimPrefix(name, "."))
}

// Ext returns the file extension written for the format
func (f SliceFormat) Ext() string {
	switch f {
	case FormatTIFF:
		return ".tif"
	case FormatJPEG:
		return ".jpg"
	default:
		return "." + string(f)
	}
}

// Writable reports whether slices can be encoded in this format
func (f SliceFormat) Writable() bool {
	switch f {
	case FormatPNG, FormatTIFF, FormatWebP, FormatJPEG:
		return true
	}
	return false
}
