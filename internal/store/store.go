// Package store provides the hazard record stores consumed by the safety
// service. Both implementations answer the same simple filtered queries; the
// matching itself happens in the routing package.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// ErrDuplicateID is returned by Create when a hazard with the same ID exists
var ErrDuplicateID = errors.New("hazard already exists")

// HazardStore is the read and write contract for hazard records
type HazardStore interface {
	// Query returns hazards matching every set field of f, newest report first
	Query(ctx context.Context, f Filter) ([]hazard.Hazard, error)
	// Create persists a validated hazard and returns it as stored
	Create(ctx context.Context, h hazard.Hazard) (hazard.Hazard, error)
}

// Filter narrows a hazard query. Zero values leave a dimension unfiltered.
type Filter struct {
	// Bounds keeps hazards whose geometry touches the box. Point radii are
	// not considered; callers widen the box instead.
	Bounds      *geo.Bounds
	Kinds       []hazard.Kind
	Since       time.Time // ReportedAt at or after
	MinSeverity risk.Severity
	MaxSeverity risk.Severity
	CountryCode string
	City        string
	// ActiveAt keeps active hazards whose window contains the instant
	ActiveAt time.Time
	Limit    int
}

// Matches applies the filter to a single hazard in memory
func (f Filter) Matches(h hazard.Hazard) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, h.Kind) {
		return false
	}
	if !f.Since.IsZero() && h.ReportedAt.Before(f.Since) {
		return false
	}
	sev := h.EffectiveSeverity()
	if f.MinSeverity != risk.SeverityUnknown && sev < f.MinSeverity {
		return false
	}
	if f.MaxSeverity != risk.SeverityUnknown && sev > f.MaxSeverity {
		return false
	}
	if f.CountryCode != "" && !strings.EqualFold(h.CountryCode, f.CountryCode) {
		return false
	}
	if f.City != "" && !strings.EqualFold(h.City, f.City) {
		return false
	}
	if !f.ActiveAt.IsZero() && !h.Eligible(f.ActiveAt) {
		return false
	}
	if f.Bounds != nil && !touchesBounds(h, *f.Bounds) {
		return false
	}
	return true
}

func touchesBounds(h hazard.Hazard, b geo.Bounds) bool {
	switch loc := h.Location.(type) {
	case hazard.PointLocation:
		return b.Contains(loc.Point)
	case hazard.PolygonLocation:
		rb, ok := geo.BoundsOf(loc.Ring)
		return ok && rb.Intersects(b)
	}
	return false
}
