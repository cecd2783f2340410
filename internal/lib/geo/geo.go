package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusKm is the mean Earth radius used by Distance
const EarthRadiusKm = 6371.0

// kmPerDegree is the length of one degree of latitude
const kmPerDegree = EarthRadiusKm * math.Pi / 180

// ErrInvalidCoordinates is returned for non-finite or out of range coordinates
var ErrInvalidCoordinates = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// Distance calculates great-circle distance in kilometers using the Haversine formula.
// The atan2 form stays stable for near-zero separations.
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := lat2 - lat1
	dlon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Midpoint returns the coordinate mean of a and b. Route vertices are close
// together so the planar mean is used rather than a great-circle midpoint.
func Midpoint(a, b Point) Point {
	return Point{
		Latitude:  (a.Latitude + b.Latitude) / 2,
		Longitude: (a.Longitude + b.Longitude) / 2,
	}
}

// PointInPolygon tests containment with even-odd ray casting. The ring is
// closed implicitly; rings with fewer than three vertices contain nothing.
func PointInPolygon(p Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	x, y := p.Longitude, p.Latitude
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i].Longitude, ring[i].Latitude
		xj, yj := ring[j].Longitude, ring[j].Latitude
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Validate checks that the point has finite, in-range coordinates
func Validate(p Point) error {
	if !isValidCoordinate(p) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, p.Latitude, p.Longitude)
	}
	return nil
}

// DecodePolyline decodes a Google encoded polyline string to a point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}
	return points, nil
}

// EncodePolyline encodes points as a Google polyline string
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	if math.IsNaN(point.Latitude) || math.IsNaN(point.Longitude) ||
		math.IsInf(point.Latitude, 0) || math.IsInf(point.Longitude, 0) {
		return false
	}
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
