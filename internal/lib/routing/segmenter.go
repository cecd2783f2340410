package routing

import (
	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// SegmentRoute splits path into maximal contiguous runs of constant risk.
// The first point is classified directly; every later step is classified at
// the midpoint of the pair. A new segment starts at the last point of the
// previous one so consecutive segments share their join point. Runs shorter
// than two points are dropped.
//
// Callers pass hazards already filtered for eligibility; SegmentRoute does
// not look at windows or the active flag.
func SegmentRoute(path []geo.Point, hazards []hazard.Hazard, corridorKm float64) []Segment {
	segments := []Segment{}
	if len(path) == 0 {
		return segments
	}

	c := newClassifier(hazards, corridorKm)
	currentRisk := c.classify(path[0])
	current := []geo.Point{path[0]}

	for i := 1; i < len(path); i++ {
		segRisk := c.classify(geo.Midpoint(path[i-1], path[i]))
		if segRisk == currentRisk {
			current = append(current, path[i])
			continue
		}

		if len(current) >= 2 {
			segments = append(segments, Segment{Points: current, Risk: currentRisk})
		}
		currentRisk = segRisk
		current = []geo.Point{path[i-1], path[i]}
	}

	if len(current) >= 2 {
		segments = append(segments, Segment{Points: current, Risk: currentRisk})
	}
	return segments
}

// ClassifyPoint returns the risk bucket of a single point against hazards
func ClassifyPoint(p geo.Point, hazards []hazard.Hazard, corridorKm float64) risk.Bucket {
	return newClassifier(hazards, corridorKm).classify(p)
}

type nearbyPoint struct {
	point    geo.Point
	limitKm  float64
	severity risk.Severity
}

type containingArea struct {
	ring   []geo.Point
	bounds geo.Bounds
	bucket risk.Bucket
}

// classifier holds hazards split by geometry so each classification avoids
// re-inspecting the location variant
type classifier struct {
	polygons []containingArea
	points   []nearbyPoint
}

func newClassifier(hazards []hazard.Hazard, corridorKm float64) *classifier {
	c := &classifier{}
	for _, h := range hazards {
		switch loc := h.Location.(type) {
		case hazard.PolygonLocation:
			b, ok := geo.BoundsOf(loc.Ring)
			if !ok {
				continue
			}
			c.polygons = append(c.polygons, containingArea{ring: loc.Ring, bounds: b, bucket: h.Bucket()})
		case hazard.PointLocation:
			c.points = append(c.points, nearbyPoint{
				point:    loc.Point,
				limitKm:  corridorKm + h.RadiusKm,
				severity: h.EffectiveSeverity(),
			})
		}
	}
	return c
}

// classify applies polygon containment first (first containing polygon wins,
// in input order), then the highest severity among nearby point hazards.
func (c *classifier) classify(p geo.Point) risk.Bucket {
	for _, poly := range c.polygons {
		if poly.bounds.Contains(p) && geo.PointInPolygon(p, poly.ring) {
			return poly.bucket
		}
	}

	found := false
	var highest risk.Severity
	for _, ph := range c.points {
		if geo.Distance(p, ph.point) <= ph.limitKm {
			if !found || ph.severity > highest {
				highest = ph.severity
				found = true
			}
		}
	}
	if found {
		return risk.FromSeverity(highest)
	}
	return risk.Safe
}
