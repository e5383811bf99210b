package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Local positions are NED metres relative to an Origin: x north, y east,
// z down. Conversion goes through web mercator (EPSG:3857), scaled back to
// ground metres at the origin latitude.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Origin anchors the local frame on the globe.
type Origin struct {
	Lon float64 `json:"lon" mapstructure:"lon"`
	Lat float64 `json:"lat" mapstructure:"lat"`
}

// ParseLonLat parses a string in the format "lon,lat" or "lon,lat,alt".
func ParseLonLat(coords string) (lon, lat, alt float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, ErrInvalidCoordinates
		}
	}
	lon, lat = vals[0], vals[1]
	if len(vals) == 3 {
		alt = vals[2]
	}
	if math.Abs(lat) > 85 || math.Abs(lon) > 180 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	return lon, lat, alt, nil
}

func mercator(lon, lat float64) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(lon, lat, 0)
	return x, y
}

// Local converts a geographic position and altitude above the origin into
// the local NED frame.
func (o Origin) Local(lon, lat, alt float64) (mgl64.Vec3, error) {
	if math.Abs(lat) > 85 || math.Abs(o.Lat) > 85 {
		return mgl64.Vec3{}, ErrInvalidCoordinates
	}
	x0, y0 := mercator(o.Lon, o.Lat)
	x, y := mercator(lon, lat)
	scale := math.Cos(mgl64.DegToRad(o.Lat))
	return mgl64.Vec3{(y - y0) * scale, (x - x0) * scale, -alt}, nil
}

// Point returns pos as an XYZ point with altitude, not depth, in Z.
func Point(pos mgl64.Vec3) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: pos.X(), Y: pos.Y()},
			Z:    -pos.Z(),
			Type: geom.DimXYZ,
		},
	)
}

// PositionFromPoint reverses Point. Empty points return false.
func PositionFromPoint(p geom.Point) (mgl64.Vec3, bool) {
	c, ok := p.Coordinates()
	if !ok {
		return mgl64.Vec3{}, false
	}
	return mgl64.Vec3{c.X, c.Y, -c.Z}, true
}
