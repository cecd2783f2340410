package geo

import "math"

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Path is an ordered sequence of points describing a travelled route
type Path []Point

// Bounds is an axis-aligned latitude/longitude box
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BoundsOf returns the smallest box containing every point. ok is false for an empty slice.
func BoundsOf(points []Point) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		South: points[0].Latitude,
		North: points[0].Latitude,
		West:  points[0].Longitude,
		East:  points[0].Longitude,
	}
	for _, p := range points[1:] {
		b.South = math.Min(b.South, p.Latitude)
		b.North = math.Max(b.North, p.Latitude)
		b.West = math.Min(b.West, p.Longitude)
		b.East = math.Max(b.East, p.Longitude)
	}
	return b, true
}

// Contains reports whether p lies inside or on the edge of the box
func (b Bounds) Contains(p Point) bool {
	return p.Latitude >= b.South && p.Latitude <= b.North &&
		p.Longitude >= b.West && p.Longitude <= b.East
}

// Intersects reports whether two boxes share any area or edge
func (b Bounds) Intersects(o Bounds) bool {
	return b.South <= o.North && o.South <= b.North &&
		b.West <= o.East && o.West <= b.East
}

// Expand grows the box by km in every direction. Longitude growth uses the
// widest latitude of the box so the result never under-covers.
func (b Bounds) Expand(km float64) Bounds {
	if km <= 0 {
		return b
	}
	dLat := km / kmPerDegree
	widest := math.Max(math.Abs(b.South), math.Abs(b.North))
	cos := math.Cos(widest * math.Pi / 180)
	dLng := 180.0
	if cos > 1e-6 {
		dLng = math.Min(180, km/(kmPerDegree*cos))
	}
	return Bounds{
		South: math.Max(-90, b.South-dLat),
		North: math.Min(90, b.North+dLat),
		West:  math.Max(-180, b.West-dLng),
		East:  math.Min(180, b.East+dLng),
	}
}

// Valid reports whether the box is well-formed
func (b Bounds) Valid() bool {
	return isValidCoordinate(Point{Latitude: b.South, Longitude: b.West}) &&
		isValidCoordinate(Point{Latitude: b.North, Longitude: b.East}) &&
		b.South <= b.North && b.West <= b.East
}
