// Package hazard defines the read-only hazard records consumed by route matching.
package hazard

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// ErrInvalidHazard wraps every validation failure from Validate
var ErrInvalidHazard = errors.New("invalid hazard")

// Contains reports whether t falls inside [ValidFrom, ValidTo)
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	if w.ValidFrom != nil && t.Before(*w.ValidFrom) {
		return false
	}
	if w.ValidTo != nil && !t.Before(*w.ValidTo) {
		return false
	}
	return true
}

// Eligible reports whether the hazard may be matched at time at
func (h Hazard) Eligible(at time.Time) bool {
	return h.Active && h.Window.Contains(at)
}

// EffectiveSeverity returns the numeric severity, deriving it from the risk
// level when no explicit severity was recorded
func (h Hazard) EffectiveSeverity() risk.Severity {
	if h.Severity.Valid() {
		return h.Severity
	}
	return h.Level.Severity()
}

// Bucket classifies the hazard. Curated levels win over numeric severity.
func (h Hazard) Bucket() risk.Bucket {
	if _, ok := risk.ParseLevel(string(h.Level)); ok {
		return risk.FromLevel(h.Level)
	}
	return risk.FromSeverity(h.Severity)
}

// Point returns the hazard coordinate for point hazards
func (h Hazard) Point() (geo.Point, bool) {
	if loc, ok := h.Location.(PointLocation); ok {
		return loc.Point, true
	}
	return geo.Point{}, false
}

// Ring returns the polygon ring for area hazards
func (h Hazard) Ring() ([]geo.Point, bool) {
	if loc, ok := h.Location.(PolygonLocation); ok {
		return loc.Ring, true
	}
	return nil, false
}

// Bounds returns the bounding box of the hazard geometry, grown by its radius
func (h Hazard) Bounds() (geo.Bounds, bool) {
	switch loc := h.Location.(type) {
	case PointLocation:
		b, _ := geo.BoundsOf([]geo.Point{loc.Point})
		return b.Expand(h.RadiusKm), true
	case PolygonLocation:
		return geo.BoundsOf(loc.Ring)
	}
	return geo.Bounds{}, false
}

// Validate checks a hazard before it is handed to a store
func (h Hazard) Validate() error {
	if !h.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidHazard, h.Kind)
	}
	if h.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidHazard)
	}

	switch loc := h.Location.(type) {
	case PointLocation:
		if err := geo.Validate(loc.Point); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidHazard, err)
		}
	case PolygonLocation:
		if len(geo.OpenRing(loc.Ring)) < 3 {
			return fmt.Errorf("%w: %v", ErrInvalidHazard, geo.ErrDegeneratePolygon)
		}
		for _, p := range loc.Ring {
			if err := geo.Validate(p); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidHazard, err)
			}
		}
	default:
		return fmt.Errorf("%w: location is required", ErrInvalidHazard)
	}

	if h.Severity != risk.SeverityUnknown && !h.Severity.Valid() {
		return fmt.Errorf("%w: severity must be between 1 and 5", ErrInvalidHazard)
	}
	if h.Level != "" {
		if _, ok := risk.ParseLevel(string(h.Level)); !ok {
			return fmt.Errorf("%w: unknown risk level %q", ErrInvalidHazard, h.Level)
		}
	}
	if h.RadiusKm < 0 {
		return fmt.Errorf("%w: radius must not be negative", ErrInvalidHazard)
	}
	if h.Window != nil && h.Window.ValidFrom != nil && h.Window.ValidTo != nil &&
		!h.Window.ValidFrom.Before(*h.Window.ValidTo) {
		return fmt.Errorf("%w: validFrom must be before validTo", ErrInvalidHazard)
	}
	return nil
}

// ApplyDefaultExpiry closes an open-ended window using the kind's default
// lifetime. Curated areas never expire on their own.
func (h *Hazard) ApplyDefaultExpiry(now time.Time) {
	var ttl time.Duration
	switch h.Kind {
	case KindIncident:
		ttl = IncidentTTL
	case KindAlert:
		ttl = AlertTTL
	default:
		return
	}
	if h.Window != nil && h.Window.ValidTo != nil {
		return
	}

	start := h.ReportedAt
	if start.IsZero() {
		start = now
	}
	end := start.Add(ttl)
	if h.Window == nil {
		h.Window = &Window{}
	}
	h.Window.ValidTo = &end
}
