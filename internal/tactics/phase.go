package tactics

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownPhase is a configuration error: a phase name or value
	// outside the four known phases.
	ErrUnknownPhase = errors.New("unknown phase")
	// ErrInvalidConfig reports any other unusable setting.
	ErrInvalidConfig = errors.New("invalid agent config")
)

// Phase is the tactical mode of one aircraft.
type Phase int

const (
	Approach Phase = iota
	Patrol
	Evade
	Engage
)

func (p Phase) String() string {
	switch p {
	case Approach:
		return "approach"
	case Patrol:
		return "patrol"
	case Evade:
		return "evade"
	case Engage:
		return "engage"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p >= Approach && p <= Engage
}

// ParsePhase maps a configuration string to a Phase.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approach":
		return Approach, nil
	case "patrol":
		return Patrol, nil
	case "evade":
		return Evade, nil
	case "engage":
		return Engage, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
}
