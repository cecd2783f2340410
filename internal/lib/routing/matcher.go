package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// ErrInvalidPath is returned for paths that cannot be matched against
var ErrInvalidPath = errors.New("invalid path")

// ValidatePath rejects paths with fewer than two points or bad coordinates
func ValidatePath(path []geo.Point) error {
	if len(path) < 2 {
		return fmt.Errorf("%w: route must have at least 2 points, got %d", ErrInvalidPath, len(path))
	}
	for i, p := range path {
		if err := geo.Validate(p); err != nil {
			return fmt.Errorf("%w: point %d: %v", ErrInvalidPath, i, err)
		}
	}
	return nil
}

// MatchHazards returns every hazard eligible at time at that lies within
// corridorKm of the path, in input order, with the highest matched severity.
//
// Point hazards are compared against path vertices only, so the corridor must
// be wide relative to the vertex spacing. Polygon hazards are tested at each
// vertex and at each consecutive-pair midpoint; a polygon thinner than half a
// step can slip between samples.
func MatchHazards(path []geo.Point, hazards []hazard.Hazard, corridorKm float64, at time.Time) MatchResult {
	result := MatchResult{Matched: []hazard.Hazard{}}
	if len(path) == 0 {
		return result
	}

	var samples []geo.Point
	var sampleBounds geo.Bounds

	for _, h := range hazards {
		if !h.Eligible(at) {
			continue
		}

		matched := false
		switch loc := h.Location.(type) {
		case hazard.PointLocation:
			matched = pointNearPath(loc.Point, path, corridorKm, corridorKm+h.RadiusKm)
		case hazard.PolygonLocation:
			if samples == nil {
				samples = samplePath(path)
				sampleBounds, _ = geo.BoundsOf(samples)
			}
			matched = polygonTouchesPath(loc.Ring, samples, sampleBounds)
		}

		if matched {
			result.Matched = append(result.Matched, h)
			sev := h.EffectiveSeverity()
			if result.MaxSeverity == nil || sev > *result.MaxSeverity {
				result.MaxSeverity = &sev
			}
		}
	}

	return result
}

// MatchNearPoint returns hazards eligible at time at within radiusKm of
// center. Point hazards add their own radius; polygons match when they
// contain center.
func MatchNearPoint(center geo.Point, hazards []hazard.Hazard, radiusKm float64, at time.Time) []hazard.Hazard {
	matched := []hazard.Hazard{}
	for _, h := range hazards {
		if !h.Eligible(at) {
			continue
		}
		switch loc := h.Location.(type) {
		case hazard.PointLocation:
			if geo.Distance(center, loc.Point) <= radiusKm+h.RadiusKm {
				matched = append(matched, h)
			}
		case hazard.PolygonLocation:
			if geo.PointInPolygon(center, loc.Ring) {
				matched = append(matched, h)
			}
		}
	}
	return matched
}

// ClosestKm returns the distance from center to the nearest point hazard.
// ok is false when hazards holds no point hazards.
func ClosestKm(center geo.Point, hazards []hazard.Hazard) (km float64, ok bool) {
	for _, h := range hazards {
		p, isPoint := h.Point()
		if !isPoint {
			continue
		}
		d := geo.Distance(center, p)
		if !ok || d < km {
			km, ok = d, true
		}
	}
	return km, ok
}

// MaxSeverity returns the highest effective severity in hazards, nil for none
func MaxSeverity(hazards []hazard.Hazard) *risk.Severity {
	var highest *risk.Severity
	for _, h := range hazards {
		sev := h.EffectiveSeverity()
		if highest == nil || sev > *highest {
			highest = &sev
		}
	}
	return highest
}

// pointNearPath scans path vertices for one within limitKm of p. The scan
// stops as soon as a vertex falls inside the bare corridor since no closer
// vertex can change the outcome.
func pointNearPath(p geo.Point, path []geo.Point, corridorKm, limitKm float64) bool {
	nearest := -1.0
	for _, v := range path {
		d := geo.Distance(p, v)
		if nearest < 0 || d < nearest {
			nearest = d
		}
		if nearest <= corridorKm {
			break
		}
	}
	return nearest >= 0 && nearest <= limitKm
}

// polygonTouchesPath reports whether any sample lies inside ring
func polygonTouchesPath(ring []geo.Point, samples []geo.Point, sampleBounds geo.Bounds) bool {
	ringBounds, ok := geo.BoundsOf(ring)
	if !ok || !ringBounds.Intersects(sampleBounds) {
		return false
	}
	for _, s := range samples {
		if !ringBounds.Contains(s) {
			continue
		}
		if geo.PointInPolygon(s, ring) {
			return true
		}
	}
	return false
}

// samplePath returns the vertices of path interleaved with the midpoint of
// each consecutive pair
func samplePath(path []geo.Point) []geo.Point {
	samples := make([]geo.Point, 0, 2*len(path)-1)
	for i, p := range path {
		if i > 0 {
			samples = append(samples, geo.Midpoint(path[i-1], p))
		}
		samples = append(samples, p)
	}
	return samples
}
