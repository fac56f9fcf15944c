package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OCAP2/drivescene/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

// Waypoints are stored as space-separated "x,y" pairs, e.g. "0,0 100,0".

// ErrInvalidCoordinates is returned when a waypoint cannot be parsed
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses a single "x,y" pair.
func PositionFromString(coords string) (core.Position2D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	return core.Position2D{X: x, Y: y}, nil
}

// FormatWaypoints encodes points in the waypoint format.
func FormatWaypoints(points []core.Position2D) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// ParseWaypoints decodes a waypoint string into positions.
func ParseWaypoints(input string) ([]core.Position2D, error) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return nil, fmt.Errorf("waypoints must have at least 2 points, got %d", len(fields))
	}

	points := make([]core.Position2D, len(fields))
	for i, f := range fields {
		p, err := PositionFromString(f)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		points[i] = p
	}
	return points, nil
}

// ParsePolyline decodes a waypoint string into a geom.LineString.
func ParsePolyline(input string) (geom.LineString, error) {
	points, err := ParseWaypoints(input)
	if err != nil {
		return geom.LineString{}, err
	}
	return LineString(points), nil
}

// LineString builds a 2D line string through the given points.
func LineString(points []core.Position2D) geom.LineString {
	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY))
}

// OutlineVertices returns the four corners of the vehicle's footprint,
// front-left first, going clockwise in a y-up frame.
func OutlineVertices(v core.Vehicle) []core.Position2D {
	hl, hw := v.HalfLength(), v.HalfWidth()
	local := []r2.Vec{
		{X: hl, Y: hw},
		{X: hl, Y: -hw},
		{X: -hl, Y: -hw},
		{X: -hl, Y: hw},
	}

	rot := r2.NewRotation(v.Heading, r2.Vec{})
	center := v.Position.Vec()
	out := make([]core.Position2D, len(local))
	for i, c := range local {
		out[i] = core.PositionFromVec(r2.Add(center, rot.Rotate(c)))
	}
	return out
}

// VehicleOutline returns the vehicle footprint as a closed ring, for the
// rendering collaborator.
func VehicleOutline(v core.Vehicle) geom.LineString {
	vertices := OutlineVertices(v)
	return LineString(append(vertices, vertices[0]))
}
