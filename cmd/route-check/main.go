// route-check runs the corridor matcher, scorer and segmenter against JSON
// files without a server or database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
	"github.com/dpup/routesafe/server/internal/lib/routing"
	"github.com/dpup/routesafe/server/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "near-route":
		handleNearRoute()
	case "segments":
		handleSegments()
	case "evaluate":
		handleEvaluate()
	case "nearby":
		handleNearby()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

type routeFlags struct {
	fs          *flag.FlagSet
	pathFile    *string
	polyline    *string
	hazardsFile *string
	corridorKm  *float64
	at          *string
}

func newRouteFlags(name string) *routeFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &routeFlags{
		fs:          fs,
		pathFile:    fs.String("path-json", "", "Path to JSON file containing an array of {lat, lng} points"),
		polyline:    fs.String("polyline", "", "Encoded polyline to use instead of --path-json"),
		hazardsFile: fs.String("hazards-json", "", "Path to JSON file containing an array of hazards"),
		corridorKm:  fs.Float64("corridor-km", routing.DefaultCorridorKm, "Corridor half-width in kilometres"),
		at:          fs.String("at", "", "Evaluation time (RFC3339), defaults to now"),
	}
}

func (f *routeFlags) parse() ([]geo.Point, []hazard.Hazard, time.Time) {
	_ = f.fs.Parse(os.Args[2:])

	if (*f.pathFile == "" && *f.polyline == "") || *f.hazardsFile == "" {
		fmt.Println("Example usage:")
		fmt.Printf("  route-check %s --path-json path.json --hazards-json hazards.json\n", f.fs.Name())
		fmt.Printf("  route-check %s --polyline '_p~iF~ps|U_ulLnnqC' --hazards-json hazards.json --corridor-km 0.5\n", f.fs.Name())
		fmt.Println("")
		printSampleFiles()
		os.Exit(1)
	}

	at := time.Now().UTC()
	if *f.at != "" {
		parsed, err := time.Parse(time.RFC3339, *f.at)
		if err != nil {
			log.Fatalf("Error parsing --at: %v", err)
		}
		at = parsed
	}

	var path []geo.Point
	if *f.polyline != "" {
		decoded, err := geo.DecodePolyline(*f.polyline)
		if err != nil {
			log.Fatalf("Error decoding polyline: %v", err)
		}
		path = decoded
	} else {
		data, err := os.ReadFile(*f.pathFile)
		if err != nil {
			log.Fatalf("Error reading path file %s: %v", *f.pathFile, err)
		}
		if err := json.Unmarshal(data, &path); err != nil {
			log.Fatalf("Error parsing path JSON: %v", err)
		}
	}
	if err := routing.ValidatePath(path); err != nil {
		log.Fatalf("Invalid path: %v", err)
	}

	hazards, err := store.LoadSeedFile(*f.hazardsFile, at)
	if err != nil {
		log.Fatalf("Error loading hazards: %v", err)
	}
	return path, hazards, at
}

func handleNearRoute() {
	flags := newRouteFlags("near-route")
	path, hazards, at := flags.parse()

	match := routing.MatchHazards(path, hazards, *flags.corridorKm, at)
	score := routing.ScoreRoute(match.Matched, match.MaxSeverity)

	fmt.Printf("Matched %d of %d hazard(s) within %.2f km of a %d-point route\n\n",
		match.Count(), len(hazards), *flags.corridorKm, len(path))
	for i, h := range match.Matched {
		fmt.Printf("  %d. [%s] %s (severity %d, %s)\n", i+1, h.Kind, h.Title, h.EffectiveSeverity(), h.Bucket())
	}

	fmt.Printf("\nSCORE:\n")
	if match.MaxSeverity != nil {
		fmt.Printf("  Highest severity: %d\n", *match.MaxSeverity)
	} else {
		fmt.Printf("  Highest severity: none\n")
	}
	fmt.Printf("  Risk score: %.3f\n", score.Score)
	fmt.Printf("  Label: %s\n", score.Label)
}

func handleSegments() {
	flags := newRouteFlags("segments")
	path, hazards, at := flags.parse()

	match := routing.MatchHazards(path, hazards, *flags.corridorKm, at)
	segments := routing.SegmentRoute(path, match.Matched, *flags.corridorKm)

	fmt.Printf("Route split into %d segment(s):\n\n", len(segments))
	for i, seg := range segments {
		length := 0.0
		for j := 1; j < len(seg.Points); j++ {
			length += geo.Distance(seg.Points[j-1], seg.Points[j])
		}
		fmt.Printf("  %d. %-6s %3d points  %.2f km  %s\n", i+1, seg.Risk, len(seg.Points), length, risk.Color(seg.Risk))
	}
}

func handleEvaluate() {
	flags := newRouteFlags("evaluate")
	path, hazards, at := flags.parse()

	var areas, alerts []hazard.Hazard
	for _, h := range hazards {
		switch h.Kind {
		case hazard.KindArea:
			areas = append(areas, h)
		case hazard.KindAlert:
			alerts = append(alerts, h)
		}
	}
	matchedAreas := routing.MatchHazards(path, areas, *flags.corridorKm, at).Matched
	matchedAlerts := routing.MatchHazards(path, alerts, *flags.corridorKm, at).Matched
	weighted := routing.EvaluateWeighted(matchedAreas, matchedAlerts)

	fmt.Printf("Areas crossed: %d\n", len(matchedAreas))
	for _, h := range matchedAreas {
		fmt.Printf("  - %s (%s, weight %.1f)\n", h.Title, h.Level, h.Level.Weight())
	}
	fmt.Printf("Alerts nearby: %d\n", len(matchedAlerts))
	for _, h := range matchedAlerts {
		fmt.Printf("  - %s (%s, weight %.1f)\n", h.Title, h.Level, h.Level.Weight()/2)
	}
	fmt.Printf("\nWeighted score: %.1f (%s)\n", weighted.Score, weighted.Label)
}

func handleNearby() {
	fs := flag.NewFlagSet("nearby", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of the centre point")
	lng := fs.Float64("lng", 0, "Longitude of the centre point")
	radiusKm := fs.Float64("radius-km", 2, "Search radius in kilometres")
	hazardsFile := fs.String("hazards-json", "", "Path to JSON file containing an array of hazards")

	_ = fs.Parse(os.Args[2:])

	if *hazardsFile == "" || (*lat == 0 && *lng == 0) {
		fmt.Println("Example usage:")
		fmt.Println("  route-check nearby --lat -26.2041 --lng 28.0473 --radius-km 2 --hazards-json hazards.json")
		os.Exit(1)
	}

	center := geo.Point{Latitude: *lat, Longitude: *lng}
	if err := geo.Validate(center); err != nil {
		log.Fatalf("Invalid centre: %v", err)
	}
	now := time.Now().UTC()
	hazards, err := store.LoadSeedFile(*hazardsFile, now)
	if err != nil {
		log.Fatalf("Error loading hazards: %v", err)
	}

	matched := routing.MatchNearPoint(center, hazards, *radiusKm, now)
	fmt.Printf("%d hazard(s) within %.2f km of (%.6f, %.6f)\n", len(matched), *radiusKm, center.Latitude, center.Longitude)
	if km, ok := routing.ClosestKm(center, matched); ok {
		fmt.Printf("Closest: %.3f km\n", km)
	}
	for i, h := range matched {
		fmt.Printf("  %d. [%s] %s\n", i+1, h.Kind, h.Title)
	}
}

func printUsage() {
	fmt.Println("route-check - offline route safety checks")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  near-route   Match hazards along a route and print the risk score")
	fmt.Println("  segments     Split a route into safe/medium/high segments")
	fmt.Println("  evaluate     Weighted unsafe-area and alert evaluation")
	fmt.Println("  nearby       Hazards within a radius of a point")
	fmt.Println("  help         Show this message")
}

func printSampleFiles() {
	fmt.Println("Sample path.json:")
	fmt.Println(`[
  {"lat": -26.2041, "lng": 28.0370},
  {"lat": -26.2041, "lng": 28.0500}
]`)
	fmt.Println("")
	fmt.Println("Sample hazards.json (id is optional and derived from content; isActive defaults to true):")
	fmt.Println(`[
  {
    "id": "area-1",
    "kind": "area",
    "title": "Hillbrow",
    "riskLevel": "high",
    "isActive": true,
    "location": {"type": "polygon", "ring": [
      {"lat": -26.21, "lng": 28.040}, {"lat": -26.21, "lng": 28.046},
      {"lat": -26.20, "lng": 28.046}, {"lat": -26.20, "lng": 28.040}
    ]}
  },
  {
    "id": "incident-1",
    "kind": "incident",
    "title": "Vehicle hijacking",
    "severity": 4,
    "isActive": true,
    "location": {"type": "point", "point": {"lat": -26.2045, "lng": 28.043}}
  }
]`)
}
