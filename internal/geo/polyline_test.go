package geo

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTrackLineString(t *testing.T) {
	track := []mgl64.Vec3{{0, 0, -1000}, {250, 10, -1010}, {500, 20, -1020}}

	ls, err := TrackLineString(track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := ls.Coordinates().Length(); n != 3 {
		t.Fatalf("expected 3 points, got %d", n)
	}

	back := TrackFromLineString(ls)
	for i := range track {
		if back[i] != track[i] {
			t.Errorf("point %d: expected %v, got %v", i, track[i], back[i])
		}
	}
}

func TestTrackLineString_TooShort(t *testing.T) {
	if _, err := TrackLineString([]mgl64.Vec3{{1, 2, 3}}); err == nil {
		t.Error("expected error for a single point")
	}
	if _, err := TrackLineString(nil); err == nil {
		t.Error("expected error for an empty track")
	}
}
