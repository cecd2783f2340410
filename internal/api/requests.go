package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
	"github.com/dpup/routesafe/server/internal/services"
)

// routeInput accepts a path in one of three forms. Exactly one must be set.
type routeInput struct {
	Points   []geo.Point  `json:"points,omitempty"`
	Path     [][2]float64 `json:"path,omitempty"` // [lng, lat] pairs
	Polyline string       `json:"polyline,omitempty"`
}

func (in routeInput) resolve(maxPoints int) ([]geo.Point, error) {
	set := 0
	for _, present := range []bool{len(in.Points) > 0, len(in.Path) > 0, in.Polyline != ""} {
		if present {
			set++
		}
	}
	if set > 1 {
		return nil, badRequest("only one of points, path or polyline may be given")
	}

	var points []geo.Point
	switch {
	case len(in.Points) > 0:
		points = in.Points
	case len(in.Path) > 0:
		points = make([]geo.Point, len(in.Path))
		for i, pair := range in.Path {
			points[i] = geo.Point{Latitude: pair[1], Longitude: pair[0]}
		}
	case in.Polyline != "":
		decoded, err := geo.DecodePolyline(in.Polyline)
		if err != nil {
			return nil, badRequest(err.Error())
		}
		points = decoded
	default:
		return nil, badRequest("a route is required as points, path or polyline")
	}

	if maxPoints > 0 && len(points) > maxPoints {
		return nil, badRequest(fmt.Sprintf("route has %d points, the limit is %d", len(points), maxPoints))
	}
	return points, nil
}

type nearRouteRequest struct {
	routeInput
	CorridorKm  float64 `json:"corridorKm" validate:"gte=0,lte=50"`
	SinceHours  int     `json:"sinceHours" validate:"gte=0,lte=8760"`
	MinSeverity int     `json:"minSeverity" validate:"omitempty,min=1,max=5"`
	MaxSeverity int     `json:"maxSeverity" validate:"omitempty,min=1,max=5"`
}

type evaluateRequest struct {
	routeInput
	CountryCode string `json:"countryCode" validate:"omitempty,len=2,alpha"`
	City        string `json:"city" validate:"max=128"`
}

type segmentsRequest struct {
	routeInput
	CorridorKm float64 `json:"corridorKm" validate:"gte=0,lte=50"`
}

type nearbyParams struct {
	Lat         *float64 `validate:"required,gte=-90,lte=90"`
	Lng         *float64 `validate:"required,gte=-180,lte=180"`
	RadiusKm    float64  `validate:"gte=0,lte=50"`
	SinceHours  int      `validate:"gte=0,lte=8760"`
	MinSeverity int      `validate:"omitempty,min=1,max=5"`
	MaxSeverity int      `validate:"omitempty,min=1,max=5"`
}

type bboxParams struct {
	North      *float64 `validate:"required,gte=-90,lte=90"`
	South      *float64 `validate:"required,gte=-90,lte=90"`
	East       *float64 `validate:"required,gte=-180,lte=180"`
	West       *float64 `validate:"required,gte=-180,lte=180"`
	Kinds      []string `validate:"dive,oneof=incident alert area"`
	ActiveOnly bool
}

type locationInput struct {
	Type  string      `json:"type" validate:"required,oneof=point polygon"`
	Point *geo.Point  `json:"point,omitempty" validate:"required_if=Type point"`
	Ring  []geo.Point `json:"ring,omitempty" validate:"required_if=Type polygon"`
}

type createHazardRequest struct {
	ID          string        `json:"id" validate:"omitempty,uuid"`
	Kind        string        `json:"kind" validate:"required,oneof=incident alert area"`
	Title       string        `json:"title" validate:"required,max=200"`
	Summary     string        `json:"summary" validate:"max=4000"`
	Category    string        `json:"category" validate:"max=64"`
	Location    locationInput `json:"location"`
	RadiusKm    float64       `json:"radiusKm" validate:"gte=0,lte=50"`
	Severity    int           `json:"severity" validate:"omitempty,min=1,max=5"`
	RiskLevel   string        `json:"riskLevel" validate:"omitempty,oneof=low medium high extreme"`
	ValidFrom   *time.Time    `json:"validFrom"`
	ValidTo     *time.Time    `json:"validTo"`
	IsActive    *bool         `json:"isActive"`
	City        string        `json:"city" validate:"max=128"`
	Province    string        `json:"province" validate:"max=128"`
	CountryCode string        `json:"countryCode" validate:"omitempty,len=2,alpha"`
	Source      string        `json:"source" validate:"max=64"`
	ReportedAt  *time.Time    `json:"reportedAt"`
}

func (req createHazardRequest) toHazard() hazard.Hazard {
	h := hazard.Hazard{
		ID:          req.ID,
		Kind:        hazard.Kind(req.Kind),
		Title:       strings.TrimSpace(req.Title),
		Summary:     req.Summary,
		Category:    req.Category,
		RadiusKm:    req.RadiusKm,
		Severity:    risk.Severity(req.Severity),
		Level:       risk.Level(req.RiskLevel),
		Active:      req.IsActive == nil || *req.IsActive,
		City:        req.City,
		Province:    req.Province,
		CountryCode: strings.ToUpper(req.CountryCode),
		Source:      req.Source,
	}
	if req.Location.Type == "point" && req.Location.Point != nil {
		h.Location = hazard.PointLocation{Point: *req.Location.Point}
	} else if req.Location.Type == "polygon" {
		h.Location = hazard.PolygonLocation{Ring: req.Location.Ring}
	}
	if req.ValidFrom != nil || req.ValidTo != nil {
		h.Window = &hazard.Window{ValidFrom: req.ValidFrom, ValidTo: req.ValidTo}
	}
	if req.ReportedAt != nil {
		h.ReportedAt = req.ReportedAt.UTC()
	}
	return h
}

func severityRange(lo, hi int) services.SeverityRange {
	return services.SeverityRange{Min: risk.Severity(lo), Max: risk.Severity(hi)}
}

// queryFloat parses an optional float query parameter
func queryFloat(values map[string][]string, name string) (*float64, error) {
	raw := firstValue(values, name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest(name + " must be a valid number")
	}
	return &v, nil
}

// queryInt parses an optional integer query parameter, zero when absent
func queryInt(values map[string][]string, name string) (int, error) {
	raw := firstValue(values, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return v, nil
}

func firstValue(values map[string][]string, name string) string {
	if v := values[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
