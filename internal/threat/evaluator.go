// Package threat evaluates the geometry between an inbound threat and an
// own aircraft from their recent position tracks.
package threat

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hddf2/pilot/internal/geometry"
)

var (
	// ErrInsufficientSamples means the threat track is shorter than the
	// confidence window. The caller should not evaluate this tick.
	ErrInsufficientSamples = errors.New("insufficient track samples")
	// ErrDegenerateTrack means the threat has no usable direction.
	ErrDegenerateTrack = errors.New("degenerate threat track")
)

// Trend describes how the separation changed across the window.
type Trend int

const (
	Steady Trend = iota
	Closing
	Diverging
)

func (t Trend) String() string {
	switch t {
	case Closing:
		return "closing"
	case Diverging:
		return "diverging"
	default:
		return "steady"
	}
}

// trendMargin is the separation change, in metres, below which the
// trend is steady.
const trendMargin = 1.0

// Config tunes the evaluator.
type Config struct {
	MinSamples int             `json:"minSamples" mapstructure:"minSamples"`
	Window     int             `json:"window" mapstructure:"window"`
	Standoff   float64         `json:"standoff" mapstructure:"standoff"`
	Method     geometry.Method `json:"-" mapstructure:"-"`
}

// DefaultConfig returns the reference window and stand-off.
func DefaultConfig() Config {
	return Config{
		MinSamples: 10,
		Window:     10,
		Standoff:   1000,
		Method:     geometry.Regression,
	}
}

// Assessment is the result of one evaluation.
type Assessment struct {
	// Facing is true when own heading has a component toward the threat.
	Facing bool
	// EvadePoint lies Standoff metres behind the threat along its track.
	EvadePoint mgl64.Vec3
	// AheadOfThreatNose is true when the threat's direction points away
	// from own aircraft.
	AheadOfThreatNose bool
	// Alignment is the dot product of the two directions of travel. It
	// is zero when own aircraft is stationary.
	Alignment float64
	Trend     Trend
	Distance  float64
	// OwnStationary marks a degenerate own track; Facing was then taken
	// from the threat's point of view.
	OwnStationary bool
}

// Evaluator computes assessments. The zero value is not usable; use New.
type Evaluator struct {
	cfg Config
}

// New returns an evaluator, filling unset fields from DefaultConfig.
func New(cfg Config) Evaluator {
	def := DefaultConfig()
	if cfg.MinSamples < 2 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.Window < 2 {
		cfg.Window = def.Window
	}
	if cfg.Standoff <= 0 {
		cfg.Standoff = def.Standoff
	}
	return Evaluator{cfg: cfg}
}

// MinSamples is the shortest threat track that will be evaluated.
func (e Evaluator) MinSamples() int {
	return e.cfg.MinSamples
}

// Evaluate assesses the threat against own aircraft. Both tracks are in
// time order, oldest first; only the newest Window samples are used.
func (e Evaluator) Evaluate(threatTrack, ownTrack []mgl64.Vec3) (Assessment, error) {
	if len(threatTrack) < e.cfg.MinSamples {
		return Assessment{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(threatTrack), e.cfg.MinSamples)
	}
	if len(ownTrack) == 0 {
		return Assessment{}, fmt.Errorf("%w: empty own track", ErrInsufficientSamples)
	}

	threatWin := tail(threatTrack, e.cfg.Window)
	ownWin := tail(ownTrack, e.cfg.Window)

	threatDir, err := geometry.EstimateDirection(threatWin, e.cfg.Method)
	if err != nil {
		return Assessment{}, ErrDegenerateTrack
	}

	threatLast := threatWin[len(threatWin)-1]
	ownLast := ownWin[len(ownWin)-1]

	a := Assessment{
		EvadePoint:        threatLast.Sub(threatDir.Mul(e.cfg.Standoff)),
		AheadOfThreatNose: threatDir.Dot(threatLast.Sub(ownLast)) < 0,
		Distance:          geometry.Distance(threatLast, ownLast),
		Trend:             trend(threatWin, ownWin),
	}

	ownDir, err := geometry.EstimateDirection(ownWin, e.cfg.Method)
	if err != nil {
		a.OwnStationary = true
		a.Facing = threatDir.Dot(ownLast.Sub(threatLast)) > 0
		return a, nil
	}

	a.Alignment = threatDir.Dot(ownDir)
	if rel, err := geometry.Unit(threatLast.Sub(ownLast)); err == nil {
		a.Facing = ownDir.Dot(rel) > 0
	}
	return a, nil
}

func trend(threatWin, ownWin []mgl64.Vec3) Trend {
	k := min(len(threatWin), len(ownWin))
	if k < 2 {
		return Steady
	}
	first := geometry.Distance(threatWin[len(threatWin)-k], ownWin[len(ownWin)-k])
	last := geometry.Distance(threatWin[len(threatWin)-1], ownWin[len(ownWin)-1])
	switch {
	case last < first-trendMargin:
		return Closing
	case last > first+trendMargin:
		return Diverging
	default:
		return Steady
	}
}

func tail(s []mgl64.Vec3, n int) []mgl64.Vec3 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
