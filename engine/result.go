package engine

// Result reports the outcome of a per-buffer operation. Production callers
// may ignore it; every non-OK value means the unit of work was skipped or
// degraded, never that the engine is in a broken state.
type Result int

const (
	OK Result = iota
	// NotReady means the target file or sink is not open, or the indices
	// do not resolve to a bound channel.
	NotReady
	// CapacityExceeded means the buffer outgrew the conversion scratch; the
	// scratch was grown and the data was still written.
	CapacityExceeded
	// Dropped means the input could not be decoded and was discarded.
	Dropped
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case NotReady:
		return "NotReady"
	case CapacityExceeded:
		return "CapacityExceeded"
	case Dropped:
		return "Dropped"
	default:
		return "Unknown"
	}
}

// Written reports whether the data reached the output.
func (r Result) Written() bool {
	return r == OK || r == CapacityExceeded
}
