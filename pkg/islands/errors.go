package islands

import (
	"fmt"

	"voxelislands/pkg/voxel"
)

// InvariantViolation reports that the visited-mask or disjointness
// invariants of a labeling pass were broken. It signals a logic bug, never
// bad input, and aborts the run.
type InvariantViolation struct {
	Reason string
	Coord  voxel.Coord
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("islands: invariant violated at %v: %s", e.Coord, e.Reason)
}
