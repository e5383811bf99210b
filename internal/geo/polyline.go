package geo

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// TrackLineString builds an XYZ line string from a position history.
func TrackLineString(track []mgl64.Vec3) (geom.LineString, error) {
	if len(track) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(track))
	}

	flat := make([]float64, 0, len(track)*3)
	for _, p := range track {
		flat = append(flat, p.X(), p.Y(), -p.Z())
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}

// TrackFromLineString returns the positions of ls in the local frame.
func TrackFromLineString(ls geom.LineString) []mgl64.Vec3 {
	seq := ls.Coordinates()
	out := make([]mgl64.Vec3, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = mgl64.Vec3{c.X, c.Y, -c.Z}
	}
	return out
}
