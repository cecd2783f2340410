package routing

import (
	"math"

	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// ScoreRoute combines a corridor match into maxSeverity * ln(1 + count).
// The logarithm keeps a handful of minor incidents below one severe one
// while still lifting clusters above isolated near-misses.
func ScoreRoute(matched []hazard.Hazard, maxSeverity *risk.Severity) RouteScore {
	if maxSeverity == nil || len(matched) == 0 {
		return RouteScore{Score: 0, Label: LabelSafe}
	}

	score := float64(*maxSeverity) * math.Log(1+float64(len(matched)))
	return RouteScore{Score: score, Label: routeLabel(score, *maxSeverity)}
}

// routeLabel tiers a route summary for display
func routeLabel(score float64, maxSeverity risk.Severity) string {
	switch {
	case score <= 0:
		return LabelSafe
	case maxSeverity >= 4 || score > 8:
		return LabelHigh
	case maxSeverity >= 3 || score > 4:
		return LabelModerate
	default:
		return LabelLow
	}
}

// alertWeightFactor scales alert contributions relative to curated areas
const alertWeightFactor = 0.5

// EvaluateWeighted sums level weights over matched areas and, at half weight,
// matched alerts. It is independent of ScoreRoute and serves bulk
// area/alert evaluation.
func EvaluateWeighted(areas, alerts []hazard.Hazard) WeightedScore {
	sum := 0.0
	for _, a := range areas {
		sum += a.Level.Weight()
	}
	for _, a := range alerts {
		sum += a.Level.Weight() * alertWeightFactor
	}
	return WeightedScore{Score: sum, Label: WeightedLabel(sum)}
}

// WeightedLabel maps a weighted sum onto safe/caution/unsafe/dangerous
func WeightedLabel(sum float64) string {
	switch {
	case sum <= 0:
		return LabelSafe
	case sum <= 6:
		return LabelCaution
	case sum <= 15:
		return LabelUnsafe
	default:
		return LabelDangerous
	}
}
