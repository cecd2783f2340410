package api

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
	"github.com/dpup/routesafe/server/internal/lib/routing"
)

const kmlContentType = "application/vnd.google-earth.kml+xml"

var buckets = []risk.Bucket{risk.Safe, risk.Medium, risk.High}

// kmlDocument collects placemarks for a map overlay export
type kmlDocument struct {
	children []kml.Element
}

func newKMLDocument() *kmlDocument {
	doc := &kmlDocument{}
	for _, b := range buckets {
		c := bucketColor(b)
		fill := c
		fill.A = 0x55
		doc.children = append(doc.children, kml.SharedStyle(styleID(b),
			kml.LineStyle(kml.Color(c), kml.Width(4)),
			kml.PolyStyle(kml.Color(fill)),
			kml.IconStyle(kml.Color(c)),
		))
	}
	return doc
}

func (d *kmlDocument) addSegments(segments []routing.Segment) {
	for i, seg := range segments {
		d.children = append(d.children, kml.Placemark(
			kml.Name(fmt.Sprintf("Segment %d (%s)", i+1, seg.Risk)),
			kml.StyleURL("#"+styleID(seg.Risk)),
			kml.LineString(kml.Coordinates(coordinates(seg.Points)...)),
		))
	}
}

func (d *kmlDocument) addHazards(hazards []hazard.Hazard) {
	for _, h := range hazards {
		var geometry kml.Element
		switch loc := h.Location.(type) {
		case hazard.PointLocation:
			geometry = kml.Point(kml.Coordinates(coordinates([]geo.Point{loc.Point})...))
		case hazard.PolygonLocation:
			ring := loc.Ring
			if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
				ring = append(ring[:len(ring):len(ring)], ring[0])
			}
			geometry = kml.Polygon(kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(coordinates(ring)...))))
		default:
			continue
		}
		d.children = append(d.children, kml.Placemark(
			kml.Name(h.Title),
			kml.Description(h.Summary),
			kml.StyleURL("#"+styleID(h.Bucket())),
			geometry,
		))
	}
}

// writeKML renders the document into a buffer first so a failure can still
// produce a JSON error response
func writeKML(w http.ResponseWriter, r *http.Request, build func(doc *kmlDocument)) {
	doc := newKMLDocument()
	build(doc)

	var buf bytes.Buffer
	if err := kml.KML(kml.Document(doc.children...)).WriteIndent(&buf, "", "  "); err != nil {
		writeError(w, r, fmt.Errorf("failed to render KML: %w", err))
		return
	}
	w.Header().Set("Content-Type", kmlContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func styleID(b risk.Bucket) string {
	return "risk-" + string(b)
}

func coordinates(points []geo.Point) []kml.Coordinate {
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	return coords
}

// bucketColor parses the #rrggbb bucket colour into an opaque RGBA value
func bucketColor(b risk.Bucket) color.RGBA {
	hex := risk.Color(b)
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
