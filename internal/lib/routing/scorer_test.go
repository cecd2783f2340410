package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

func matchedN(n int) []hazard.Hazard {
	out := make([]hazard.Hazard, n)
	for i := range out {
		out[i] = pointHazard("h", 0, 0, 1)
	}
	return out
}

func sev(s risk.Severity) *risk.Severity { return &s }

func TestScoreRoute(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		severity  *risk.Severity
		wantScore float64
		wantLabel string
	}{
		{"no match", 0, nil, 0, LabelSafe},
		{"severity without matches", 0, sev(5), 0, LabelSafe},
		{"single minor", 1, sev(2), 2 * math.Log(2), LabelLow},
		{"single moderate", 1, sev(3), 3 * math.Log(2), LabelModerate},
		{"minor cluster", 20, sev(2), 2 * math.Log(21), LabelModerate},
		{"single severe", 1, sev(4), 4 * math.Log(2), LabelHigh},
		{"large cluster", 100, sev(2), 2 * math.Log(101), LabelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreRoute(matchedN(tt.count), tt.severity)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantLabel, got.Label)
		})
	}
}

func TestScoreRoute_Monotonic(t *testing.T) {
	for s := risk.SeverityMin; s <= risk.SeverityMax; s++ {
		prev := -1.0
		for count := 1; count <= 50; count++ {
			score := ScoreRoute(matchedN(count), sev(s)).Score
			assert.GreaterOrEqual(t, score, prev, "severity %d count %d", s, count)
			prev = score
		}
	}

	for count := 1; count <= 10; count++ {
		prev := -1.0
		for s := risk.SeverityMin; s <= risk.SeverityMax; s++ {
			score := ScoreRoute(matchedN(count), sev(s)).Score
			assert.GreaterOrEqual(t, score, prev, "count %d severity %d", count, s)
			prev = score
		}
	}
}

func TestScoreRoute_SevereOutranksMinorCluster(t *testing.T) {
	severe := ScoreRoute(matchedN(1), sev(5)).Score
	minors := ScoreRoute(matchedN(5), sev(1)).Score
	assert.Greater(t, severe, minors)
}

func TestEvaluateWeighted(t *testing.T) {
	highArea := areaHazard("area", risk.LevelHigh)
	mediumAlert := pointHazard("alert", 0, 0, 0)
	mediumAlert.Kind = hazard.KindAlert
	mediumAlert.Level = risk.LevelMedium

	got := EvaluateWeighted([]hazard.Hazard{highArea}, []hazard.Hazard{mediumAlert})
	assert.Equal(t, 7.5, got.Score)
	assert.Equal(t, LabelUnsafe, got.Label)

	empty := EvaluateWeighted(nil, nil)
	assert.Equal(t, 0.0, empty.Score)
	assert.Equal(t, LabelSafe, empty.Label)

	extreme := areaHazard("x", risk.LevelExtreme)
	got = EvaluateWeighted([]hazard.Hazard{extreme, extreme}, nil)
	assert.Equal(t, 20.0, got.Score)
	assert.Equal(t, LabelDangerous, got.Label)
}

func TestWeightedLabel(t *testing.T) {
	assert.Equal(t, LabelSafe, WeightedLabel(0))
	assert.Equal(t, LabelCaution, WeightedLabel(0.5))
	assert.Equal(t, LabelCaution, WeightedLabel(6))
	assert.Equal(t, LabelUnsafe, WeightedLabel(6.5))
	assert.Equal(t, LabelUnsafe, WeightedLabel(15))
	assert.Equal(t, LabelDangerous, WeightedLabel(15.5))
}
