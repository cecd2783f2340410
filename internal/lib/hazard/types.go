package hazard

import (
	"time"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// Kind identifies where a hazard record came from
type Kind string

const (
	KindIncident Kind = "incident" // ingested news/official/community incident report
	KindAlert    Kind = "alert"    // community alert around an intersection
	KindArea     Kind = "area"     // curated unsafe-area polygon
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindIncident, KindAlert, KindArea:
		return true
	}
	return false
}

// Default lifetimes applied when a record arrives without an explicit end
const (
	IncidentTTL = 7 * 24 * time.Hour
	AlertTTL    = 30 * 24 * time.Hour
)

// Location is either a PointLocation or a PolygonLocation
type Location interface {
	isLocation()
}

// PointLocation places a hazard at a single coordinate
type PointLocation struct {
	Point geo.Point
}

// PolygonLocation covers an area with a ring that may be open or closed
type PolygonLocation struct {
	Ring []geo.Point
}

func (PointLocation) isLocation()   {}
func (PolygonLocation) isLocation() {}

// Window is a validity interval [ValidFrom, ValidTo); either end may be open
type Window struct {
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
}

// Hazard generalises incidents, community alerts and unsafe areas for route matching
type Hazard struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary,omitempty"`
	Category    string        `json:"category,omitempty"`
	Location    Location      `json:"location"`
	RadiusKm    float64       `json:"radiusKm,omitempty"` // added to proximity tests for point hazards
	Severity    risk.Severity `json:"severity,omitempty"`
	Level       risk.Level    `json:"riskLevel,omitempty"`
	Window      *Window       `json:"window,omitempty"`
	Active      bool          `json:"isActive"`
	City        string        `json:"city,omitempty"`
	Province    string        `json:"province,omitempty"`
	CountryCode string        `json:"countryCode,omitempty"`
	Source      string        `json:"source,omitempty"`
	ReportedAt  time.Time     `json:"reportedAt"`
	CreatedAt   time.Time     `json:"createdAt"`
}
