package hazard

import (
	"encoding/json"
	"fmt"

	"github.com/dpup/routesafe/server/internal/lib/geo"
)

const (
	locationPoint   = "point"
	locationPolygon = "polygon"
)

// wireLocation is the JSON form of Location, discriminated by Type
type wireLocation struct {
	Type  string      `json:"type"`
	Point *geo.Point  `json:"point,omitempty"`
	Ring  []geo.Point `json:"ring,omitempty"`
}

func toWire(loc Location) *wireLocation {
	switch v := loc.(type) {
	case PointLocation:
		p := v.Point
		return &wireLocation{Type: locationPoint, Point: &p}
	case PolygonLocation:
		return &wireLocation{Type: locationPolygon, Ring: v.Ring}
	}
	return nil
}

func (w *wireLocation) location() (Location, error) {
	switch w.Type {
	case locationPoint:
		if w.Point == nil {
			return nil, fmt.Errorf("point location requires point")
		}
		return PointLocation{Point: *w.Point}, nil
	case locationPolygon:
		return PolygonLocation{Ring: w.Ring}, nil
	default:
		return nil, fmt.Errorf("unknown location type %q", w.Type)
	}
}

type hazardAlias Hazard

// MarshalJSON writes Location with an explicit type discriminator
func (h Hazard) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		hazardAlias
		Location *wireLocation `json:"location"`
	}{
		hazardAlias: hazardAlias(h),
		Location:    toWire(h.Location),
	})
}

// UnmarshalJSON reads the discriminated Location form written by MarshalJSON
func (h *Hazard) UnmarshalJSON(data []byte) error {
	aux := struct {
		*hazardAlias
		Location *wireLocation `json:"location"`
	}{
		hazardAlias: (*hazardAlias)(h),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	h.Location = nil
	if aux.Location != nil {
		loc, err := aux.Location.location()
		if err != nil {
			return err
		}
		h.Location = loc
	}
	return nil
}
