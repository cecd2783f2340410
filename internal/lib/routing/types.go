package routing

import (
	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// DefaultCorridorKm is the "near the route" distance used when callers omit one
const DefaultCorridorKm = 1.0

// MatchResult is the subset of hazards found near a path
type MatchResult struct {
	Matched     []hazard.Hazard `json:"matched"`
	MaxSeverity *risk.Severity  `json:"maxSeverity"` // nil when nothing matched
}

// Count returns the number of matched hazards
func (m MatchResult) Count() int {
	return len(m.Matched)
}

// RouteScore is the single-route risk summary
type RouteScore struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// WeightedScore is the bulk area/alert evaluation result
type WeightedScore struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// Segment is a maximal contiguous run of the path sharing one risk bucket
type Segment struct {
	Points []geo.Point `json:"points"`
	Risk   risk.Bucket `json:"risk"`
}

// Route summary labels
const (
	LabelSafe     = "safe"
	LabelLow      = "low"
	LabelModerate = "moderate"
	LabelHigh     = "high"
)

// Weighted evaluation labels
const (
	LabelCaution   = "caution"
	LabelUnsafe    = "unsafe"
	LabelDangerous = "dangerous"
)
