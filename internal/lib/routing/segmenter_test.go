package routing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// equatorPath runs east along the equator, one degree per step
func equatorPath(n int) []geo.Point {
	path := make([]geo.Point, n)
	for i := range path {
		path[i] = geo.Point{Latitude: 0, Longitude: float64(i)}
	}
	return path
}

func TestSegmentRoute_PolygonSplitsRoute(t *testing.T) {
	path := equatorPath(5)
	area := areaHazard("area", risk.LevelExtreme, box(-0.5, 2.2, 0.5, 2.8)...)

	segments := SegmentRoute(path, []hazard.Hazard{area}, 1.0)

	require.Len(t, segments, 3)
	assert.Equal(t, risk.Safe, segments[0].Risk)
	assert.Equal(t, path[0:3], segments[0].Points)
	assert.Equal(t, risk.High, segments[1].Risk)
	assert.Equal(t, path[2:4], segments[1].Points)
	assert.Equal(t, risk.Safe, segments[2].Risk)
	assert.Equal(t, path[3:5], segments[2].Points)
}

func TestSegmentRoute_AllSafe(t *testing.T) {
	path := equatorPath(4)

	segments := SegmentRoute(path, nil, 1.0)

	require.Len(t, segments, 1)
	assert.Equal(t, risk.Safe, segments[0].Risk)
	assert.Equal(t, path, segments[0].Points)
}

func TestSegmentRoute_SinglePointRunIsDropped(t *testing.T) {
	// first point is safe but the first midpoint is inside a medium area
	path := equatorPath(3)
	area := areaHazard("area", risk.LevelMedium, box(-0.5, 0.25, 0.5, 0.75)...)

	segments := SegmentRoute(path, []hazard.Hazard{area}, 1.0)

	require.Len(t, segments, 2)
	assert.Equal(t, risk.Medium, segments[0].Risk)
	assert.Equal(t, path[0:2], segments[0].Points, "the new run starts at the previous point")
	assert.Equal(t, risk.Safe, segments[1].Risk)
}

func TestSegmentRoute_TwoPointPath(t *testing.T) {
	segments := SegmentRoute(jhbPath, []hazard.Hazard{pointHazard("inc", -26.204, 28.043, 4)}, 1.0)

	require.Len(t, segments, 1)
	assert.Equal(t, risk.High, segments[0].Risk)
	assert.Equal(t, jhbPath, segments[0].Points)
}

func TestSegmentRoute_PolygonBeatsPointHazard(t *testing.T) {
	path := equatorPath(3)
	area := areaHazard("area", risk.LevelLow, box(-0.5, 0.25, 0.5, 1.75)...)
	severe := pointHazard("severe", 0, 0.5, 5)

	segments := SegmentRoute(path, []hazard.Hazard{severe, area}, 1.0)

	require.NotEmpty(t, segments)
	for _, seg := range segments {
		assert.Equal(t, risk.Medium, seg.Risk)
	}
}

func TestClassifyPoint(t *testing.T) {
	first := areaHazard("first", risk.LevelMedium, box(-1, -1, 1, 1)...)
	second := areaHazard("second", risk.LevelExtreme, box(-2, -2, 2, 2)...)
	origin := geo.Point{Latitude: 0, Longitude: 0}

	assert.Equal(t, risk.Medium, ClassifyPoint(origin, []hazard.Hazard{first, second}, 1), "first containing polygon wins")
	assert.Equal(t, risk.High, ClassifyPoint(origin, []hazard.Hazard{second, first}, 1))

	minor := pointHazard("minor", 0, 0.005, 2)
	major := pointHazard("major", 0, -0.005, 4)
	assert.Equal(t, risk.High, ClassifyPoint(origin, []hazard.Hazard{minor, major}, 1), "highest nearby severity wins")
	assert.Equal(t, risk.Medium, ClassifyPoint(origin, []hazard.Hazard{minor}, 1))
	assert.Equal(t, risk.Safe, ClassifyPoint(origin, []hazard.Hazard{pointHazard("far", 5, 5, 5)}, 1))

	unknown := pointHazard("unknown", 0, 0, risk.SeverityUnknown)
	assert.Equal(t, risk.Safe, ClassifyPoint(origin, []hazard.Hazard{unknown}, 1))
}

func TestSegmentRoute_CoversPath(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(30)
		path := make([]geo.Point, n)
		for i := range path {
			path[i] = geo.Point{
				Latitude:  -26.3 + rng.Float64()*0.2,
				Longitude: 28.0 + rng.Float64()*0.2,
			}
		}

		var hazards []hazard.Hazard
		for i := 0; i < rng.Intn(6); i++ {
			lat := -26.3 + rng.Float64()*0.2
			lng := 28.0 + rng.Float64()*0.2
			if rng.Intn(2) == 0 {
				hazards = append(hazards, pointHazard("p", lat, lng, risk.Severity(1+rng.Intn(5))))
			} else {
				levels := []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh, risk.LevelExtreme}
				hazards = append(hazards, areaHazard("a", levels[rng.Intn(4)], box(lat, lng, lat+0.05, lng+0.05)...))
			}
		}

		segments := SegmentRoute(path, hazards, 0.5)
		require.NotEmpty(t, segments)
		if n == 2 {
			assert.Len(t, segments, 1)
		}

		rebuilt := append([]geo.Point{}, segments[0].Points...)
		for k := 1; k < len(segments); k++ {
			require.GreaterOrEqual(t, len(segments[k].Points), 2)
			assert.Equal(t, segments[k-1].Points[len(segments[k-1].Points)-1], segments[k].Points[0], "segments are contiguous")
			assert.NotEqual(t, segments[k-1].Risk, segments[k].Risk, "adjacent segments differ in risk")
			rebuilt = append(rebuilt, segments[k].Points[1:]...)
		}
		assert.Equal(t, path, rebuilt, "trial %d", trial)
	}
}
