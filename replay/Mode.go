package replay

import "fmt"

// Mode determines how transitions are drawn from a replay buffer
type Mode string

// Available sampling modes. Proportional (sum-tree) prioritization is
// recognized by the configuration layer but downgraded to Rank before
// a buffer is ever constructed.
const (
	None         Mode = "none" // Uniform sampling, weights of 1
	Rank         Mode = "rank" // Rank-based prioritized sampling
	Proportional Mode = "proportional"
)

// ParseMode parses a string into a sampling Mode. An unrecognized
// string is a fatal configuration error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case None, Rank, Proportional:
		return Mode(s), nil
	default:
		return "", &BufferError{
			Op:  fmt.Sprintf("parsemode: %q", s),
			Err: errInvalidPriorityMode,
		}
	}
}
