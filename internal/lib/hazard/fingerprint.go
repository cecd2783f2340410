package hazard

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dpup/routesafe/server/internal/lib/geo"
)

// fingerprintNamespace scopes content-derived hazard IDs
var fingerprintNamespace = uuid.MustParse("6f1c7e0a-3b7d-4c59-9a43-52f0d2a8e611")

var (
	spaceRegex    = regexp.MustCompile(`\s+`)
	trailingPunct = regexp.MustCompile(`[.!?:;,]+$`)
)

// NormalizeText lowercases, collapses whitespace and strips trailing
// punctuation so trivially different reports hash alike
func NormalizeText(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = spaceRegex.ReplaceAllString(normalized, " ")
	return trailingPunct.ReplaceAllString(normalized, "")
}

// locationKey rounds the anchor coordinate to ~11m so re-geocoded copies of
// the same report agree
func locationKey(loc Location) string {
	var p geo.Point
	switch v := loc.(type) {
	case PointLocation:
		p = v.Point
	case PolygonLocation:
		if len(v.Ring) == 0 {
			return ""
		}
		p = v.Ring[0]
	default:
		return ""
	}
	return fmt.Sprintf("%.4f,%.4f", p.Latitude, p.Longitude)
}

// Fingerprint is a stable content hash of the fields that identify a report:
// kind, source, reported time, normalized title and location
func (h Hazard) Fingerprint() string {
	return strings.Join([]string{
		string(h.Kind),
		strings.ToLower(strings.TrimSpace(h.Source)),
		h.ReportedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		NormalizeText(h.Title),
		locationKey(h.Location),
	}, "|")
}

// FingerprintID derives a UUID from the fingerprint so resubmitting the same
// report collides on the store's primary key
func (h Hazard) FingerprintID() string {
	return uuid.NewSHA1(fingerprintNamespace, []byte(h.Fingerprint())).String()
}
