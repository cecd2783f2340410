// Package risk maps hazard severities and curated risk levels onto the three
// coarse buckets used for route scoring and rendering.
package risk

import "strings"

// Bucket is the coarse risk classification of a point or route segment
type Bucket string

const (
	Safe   Bucket = "safe"
	Medium Bucket = "medium"
	High   Bucket = "high"
)

// Severity is the ordinal 1 (lowest) to 5 (highest) hazard intensity. Zero means unknown.
type Severity int

const (
	SeverityUnknown Severity = 0
	SeverityMin     Severity = 1
	SeverityMax     Severity = 5
)

// Valid reports whether s is within 1..5
func (s Severity) Valid() bool {
	return s >= SeverityMin && s <= SeverityMax
}

// Level is the qualitative risk rating attached to curated unsafe areas and alerts
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelExtreme Level = "extreme"
)

// ParseLevel normalises a level string; ok is false for anything unrecognised
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelExtreme:
		return l, true
	}
	return "", false
}

// Severity places the level on the ordinal severity scale. Medium covers the
// 2-3 band and takes its upper end.
func (l Level) Severity() Severity {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 3
	case LevelHigh:
		return 4
	case LevelExtreme:
		return 5
	default:
		return SeverityUnknown
	}
}

// Weight is the contribution of the level to a weighted area/alert sum
func (l Level) Weight() float64 {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 3
	case LevelHigh:
		return 6
	case LevelExtreme:
		return 10
	default:
		return 0
	}
}

// FromSeverity buckets a severity. Unknown severities fall through to Safe so
// a missing value never blocks route display.
func FromSeverity(s Severity) Bucket {
	switch {
	case s <= 1:
		return Safe
	case s <= 3:
		return Medium
	default:
		return High
	}
}

// FromLevel buckets a curated risk level. Low deliberately lands in Medium,
// matching how unsafe-area overlays have always been drawn.
func FromLevel(l Level) Bucket {
	switch l {
	case LevelExtreme, LevelHigh:
		return High
	case LevelMedium, LevelLow:
		return Medium
	default:
		return Safe
	}
}

// Rank orders buckets for tie-breaking: Safe < Medium < High
func Rank(b Bucket) int {
	switch b {
	case High:
		return 2
	case Medium:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of two buckets
func Max(a, b Bucket) Bucket {
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// Color returns the map stroke colour for a bucket as #rrggbb
func Color(b Bucket) string {
	switch b {
	case High:
		return "#d93025"
	case Medium:
		return "#f9ab00"
	default:
		return "#1a9449"
	}
}
