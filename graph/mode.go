package graph

// Mode is the access mode a dependency record declares against a variable.
//
// The numeric values are fixed as version 1 of the wire encoding (see
// package persist); a future dependency kind must be added as a new value,
// never by renumbering these.
type Mode uint8

const (
	In Mode = iota + 1
	Out
	InOut
)

func (m Mode) String() string {
	switch m {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return "unknown"
	}
}

// IsWriter reports whether m must be treated as a writer for hazard
// tracking purposes (everything but a pure read).
func (m Mode) IsWriter() bool {
	return m == Out || m == InOut
}
