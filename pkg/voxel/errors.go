package voxel

import "fmt"

// OutOfRangeError reports an access outside the bounds of a Grid. It always
// indicates a defect in the caller.
type OutOfRangeError struct {
	Coord                Coord
	Width, Height, Depth int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("voxel: coordinate %v out of range for %dx%dx%d grid",
		e.Coord, e.Width, e.Height, e.Depth)
}

// ConfigurationError reports an invalid run parameter or a volume whose
// shape is inconsistent with what its source declared. Runs that hit it are
// aborted before anything is written back.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Configf builds a ConfigurationError for field with a formatted reason.
func Configf(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
