package routing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

var queryTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// Johannesburg CBD, roughly 400m west to east
var jhbPath = []geo.Point{
	{Latitude: -26.204, Longitude: 28.041},
	{Latitude: -26.204, Longitude: 28.045},
}

func pointHazard(id string, lat, lng float64, severity risk.Severity) hazard.Hazard {
	return hazard.Hazard{
		ID:       id,
		Kind:     hazard.KindIncident,
		Title:    id,
		Location: hazard.PointLocation{Point: geo.Point{Latitude: lat, Longitude: lng}},
		Severity: severity,
		Active:   true,
	}
}

func areaHazard(id string, level risk.Level, ring ...geo.Point) hazard.Hazard {
	return hazard.Hazard{
		ID:       id,
		Kind:     hazard.KindArea,
		Title:    id,
		Location: hazard.PolygonLocation{Ring: ring},
		Level:    level,
		Active:   true,
	}
}

func box(south, west, north, east float64) []geo.Point {
	return []geo.Point{
		{Latitude: south, Longitude: west},
		{Latitude: south, Longitude: east},
		{Latitude: north, Longitude: east},
		{Latitude: north, Longitude: west},
	}
}

func TestMatchHazards_IncidentOnRoute(t *testing.T) {
	incident := pointHazard("inc-1", -26.204, 28.043, 4)

	result := MatchHazards(jhbPath, []hazard.Hazard{incident}, DefaultCorridorKm, queryTime)

	require.Equal(t, 1, result.Count())
	assert.Equal(t, "inc-1", result.Matched[0].ID)
	require.NotNil(t, result.MaxSeverity)
	assert.Equal(t, risk.Severity(4), *result.MaxSeverity)

	score := ScoreRoute(result.Matched, result.MaxSeverity)
	assert.InDelta(t, 4*math.Log(2), score.Score, 1e-9)
	assert.InDelta(t, 2.77, score.Score, 0.01)
}

func TestMatchHazards_IncidentOutsideCorridor(t *testing.T) {
	// ~50km north of the path
	far := pointHazard("far", -25.754, 28.043, 5)

	result := MatchHazards(jhbPath, []hazard.Hazard{far}, DefaultCorridorKm, queryTime)

	assert.Equal(t, 0, result.Count())
	assert.NotNil(t, result.Matched)
	assert.Nil(t, result.MaxSeverity)

	score := ScoreRoute(result.Matched, result.MaxSeverity)
	assert.Equal(t, 0.0, score.Score)
	assert.Equal(t, LabelSafe, score.Label)
}

func TestMatchHazards_RadiusExtendsCorridor(t *testing.T) {
	// ~1.5km south of the path
	h := pointHazard("wide", -26.2175, 28.043, 3)

	assert.Equal(t, 0, MatchHazards(jhbPath, []hazard.Hazard{h}, 1.0, queryTime).Count())

	h.RadiusKm = 0.6
	assert.Equal(t, 1, MatchHazards(jhbPath, []hazard.Hazard{h}, 1.0, queryTime).Count())
}

func TestPointNearPath_EarlyExitWithRadius(t *testing.T) {
	hazardAt := geo.Point{Latitude: 0, Longitude: 0}
	// 0.01 degrees of latitude is ~1.11km
	outsideCorridor := geo.Point{Latitude: 0.0115, Longitude: 0} // ~1.28km
	farAway := geo.Point{Latitude: 0.02, Longitude: 0.01}        // ~2.49km
	insideCorridor := geo.Point{Latitude: 0.005, Longitude: 0}   // ~0.56km
	outsideRadius := geo.Point{Latitude: 0.0145, Longitude: 0}   // ~1.61km
	trailing := geo.Point{Latitude: 0.05, Longitude: 0}

	tests := []struct {
		name     string
		path     []geo.Point
		radiusKm float64
		expected bool
	}{
		{"radius vertex before corridor vertex", []geo.Point{outsideCorridor, farAway, insideCorridor, trailing}, 0.5, true},
		{"corridor vertex after a miss", []geo.Point{outsideRadius, farAway, insideCorridor, trailing}, 0, true},
		{"only the radius reaches the path", []geo.Point{farAway, outsideCorridor, trailing}, 0.5, true},
		{"radius too small", []geo.Point{farAway, outsideCorridor, trailing}, 0.2, false},
		{"nothing within reach", []geo.Point{outsideRadius, farAway, trailing}, 0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pointNearPath(hazardAt, tt.path, 1.0, 1.0+tt.radiusKm))

			h := pointHazard("h", hazardAt.Latitude, hazardAt.Longitude, 3)
			h.RadiusKm = tt.radiusKm
			assert.Equal(t, tt.expected, MatchHazards(tt.path, []hazard.Hazard{h}, 1.0, queryTime).Count() == 1)
		})
	}
}

func TestMatchHazards_Eligibility(t *testing.T) {
	inactive := pointHazard("inactive", -26.204, 28.043, 5)
	inactive.Active = false

	from := queryTime.Add(time.Hour)
	future := pointHazard("future", -26.204, 28.043, 5)
	future.Window = &hazard.Window{ValidFrom: &from}

	to := queryTime
	expired := pointHazard("expired", -26.204, 28.043, 5)
	expired.Window = &hazard.Window{ValidTo: &to}

	current := pointHazard("current", -26.204, 28.043, 2)
	start := queryTime.Add(-time.Hour)
	current.Window = &hazard.Window{ValidFrom: &start, ValidTo: &from}

	result := MatchHazards(jhbPath, []hazard.Hazard{inactive, future, expired, current}, 1.0, queryTime)

	require.Equal(t, 1, result.Count())
	assert.Equal(t, "current", result.Matched[0].ID)
	assert.Equal(t, risk.Severity(2), *result.MaxSeverity)
}

func TestMatchHazards_PolygonSampledAtMidpoint(t *testing.T) {
	path := []geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 2}}
	// straddles the midpoint but neither vertex
	area := areaHazard("mid", risk.LevelHigh, box(-0.1, 0.9, 0.1, 1.1)...)
	missed := areaHazard("missed", risk.LevelExtreme, box(-0.1, 0.2, 0.1, 0.4)...)

	result := MatchHazards(path, []hazard.Hazard{missed, area}, 0.1, queryTime)

	require.Equal(t, 1, result.Count())
	assert.Equal(t, "mid", result.Matched[0].ID)
	assert.Equal(t, risk.Severity(4), *result.MaxSeverity, "high level maps to severity 4")
}

func TestMatchHazards_DegeneratePolygonNeverMatches(t *testing.T) {
	path := []geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 2}}
	line := areaHazard("line", risk.LevelExtreme, geo.Point{Latitude: 0, Longitude: 0}, geo.Point{Latitude: 0, Longitude: 2})

	result := MatchHazards(path, []hazard.Hazard{line}, 1.0, queryTime)
	assert.Equal(t, 0, result.Count())
}

func TestMatchHazards_PreservesInputOrder(t *testing.T) {
	hazards := []hazard.Hazard{
		pointHazard("c", -26.204, 28.044, 1),
		pointHazard("a", -26.204, 28.041, 5),
		pointHazard("far", 10, 10, 5),
		pointHazard("b", -26.205, 28.042, 3),
	}

	result := MatchHazards(jhbPath, hazards, 1.0, queryTime)

	ids := []string{}
	for _, h := range result.Matched {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, risk.Severity(5), *result.MaxSeverity)
}

func TestMatchHazards_EmptyInputs(t *testing.T) {
	result := MatchHazards(jhbPath, nil, 1.0, queryTime)
	assert.Empty(t, result.Matched)
	assert.Nil(t, result.MaxSeverity)

	result = MatchHazards(nil, []hazard.Hazard{pointHazard("x", 0, 0, 3)}, 1.0, queryTime)
	assert.Empty(t, result.Matched)
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath(jhbPath))
	assert.ErrorIs(t, ValidatePath(jhbPath[:1]), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath(nil), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath([]geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 95, Longitude: 0}}), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath([]geo.Point{{Latitude: math.NaN(), Longitude: 0}, {Latitude: 0, Longitude: 0}}), ErrInvalidPath)
}

func TestMatchNearPoint(t *testing.T) {
	center := geo.Point{Latitude: -26.2041, Longitude: 28.0473}
	near := pointHazard("near", -26.2050, 28.0480, 3)
	edge := pointHazard("edge", -26.2300, 28.0473, 2) // ~2.9km away
	edge.RadiusKm = 1
	far := pointHazard("far", -26.5, 28.0473, 5)
	area := areaHazard("cbd", risk.LevelMedium, box(-26.21, 28.04, -26.20, 28.05)...)

	matched := MatchNearPoint(center, []hazard.Hazard{near, edge, far, area}, 2, queryTime)

	ids := []string{}
	for _, h := range matched {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"near", "edge", "cbd"}, ids)

	km, ok := ClosestKm(center, matched)
	require.True(t, ok)
	assert.Less(t, km, 0.2)

	_, ok = ClosestKm(center, []hazard.Hazard{area})
	assert.False(t, ok)
}

func TestMaxSeverity(t *testing.T) {
	assert.Nil(t, MaxSeverity(nil))
	sev := MaxSeverity([]hazard.Hazard{pointHazard("a", 0, 0, 2), areaHazard("b", risk.LevelExtreme)})
	require.NotNil(t, sev)
	assert.Equal(t, risk.Severity(5), *sev)
}
