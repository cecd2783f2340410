package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ErrDegeneratePolygon is returned when a ring has fewer than three distinct vertices
var ErrDegeneratePolygon = errors.New("polygon requires at least 3 coordinates")

// PointWKT renders a point as WKT in lng/lat axis order
func PointWKT(p Point) string {
	return wkt.MarshalString(toOrb(p))
}

// LineStringWKT renders a path as a WKT LINESTRING
func LineStringWKT(points []Point) (string, error) {
	if len(points) < 2 {
		return "", errors.New("linestring requires at least 2 coordinates")
	}
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = toOrb(p)
	}
	return wkt.MarshalString(ls), nil
}

// PolygonWKT renders a ring as a WKT POLYGON, closing it when the last vertex
// differs from the first
func PolygonWKT(ring []Point) (string, error) {
	open := OpenRing(ring)
	if len(open) < 3 {
		return "", ErrDegeneratePolygon
	}
	r := make(orb.Ring, 0, len(open)+1)
	for _, p := range open {
		r = append(r, toOrb(p))
	}
	r = append(r, r[0])
	return wkt.MarshalString(orb.Polygon{r}), nil
}

// ParseWKT reads a POINT or POLYGON produced by PostGIS ST_AsText. Only the
// outer ring of a polygon is returned; the closing vertex is dropped.
func ParseWKT(s string) (point *Point, ring []Point, err error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse WKT: %w", err)
	}

	switch v := g.(type) {
	case orb.Point:
		p := fromOrb(v)
		return &p, nil, nil
	case orb.Polygon:
		if len(v) == 0 {
			return nil, nil, ErrDegeneratePolygon
		}
		outer := make([]Point, len(v[0]))
		for i, c := range v[0] {
			outer[i] = fromOrb(c)
		}
		return nil, OpenRing(outer), nil
	default:
		return nil, nil, fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}
}

// OpenRing returns the ring without a duplicated closing vertex
func OpenRing(ring []Point) []Point {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		return ring[:len(ring)-1]
	}
	return ring
}

func toOrb(p Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

func fromOrb(p orb.Point) Point {
	return Point{Latitude: p.Lat(), Longitude: p.Lon()}
}
