package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dpup/routesafe/server/internal/config"
	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
	"github.com/dpup/routesafe/server/internal/lib/routing"
	"github.com/dpup/routesafe/server/internal/store"
)

// ErrInvalidRequest wraps request-level validation failures that are not
// about the path or a hazard record
var ErrInvalidRequest = errors.New("invalid request")

// IsInvalidInput reports whether err should be surfaced as a client error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, routing.ErrInvalidPath) ||
		errors.Is(err, hazard.ErrInvalidHazard) ||
		errors.Is(err, geo.ErrInvalidCoordinates)
}

// SafetyService answers route and point safety questions against a hazard store
type SafetyService struct {
	store   store.HazardStore
	config  *config.SafetyConfig
	metrics *Metrics
	now     func() time.Time
}

// NewSafetyService creates a service over hs. metrics may be nil.
func NewSafetyService(hs store.HazardStore, cfg *config.SafetyConfig, metrics *Metrics) *SafetyService {
	return &SafetyService{
		store:   hs,
		config:  cfg,
		metrics: metrics,
		now:     time.Now,
	}
}

// SeverityRange bounds hazard severity; zero leaves an end open
type SeverityRange struct {
	Min risk.Severity
	Max risk.Severity
}

func (r SeverityRange) validate() error {
	if r.Min != risk.SeverityUnknown && !r.Min.Valid() {
		return fmt.Errorf("%w: minSeverity must be between 1 and 5", ErrInvalidRequest)
	}
	if r.Max != risk.SeverityUnknown && !r.Max.Valid() {
		return fmt.Errorf("%w: maxSeverity must be between 1 and 5", ErrInvalidRequest)
	}
	if r.Min != risk.SeverityUnknown && r.Max != risk.SeverityUnknown && r.Min > r.Max {
		return fmt.Errorf("%w: minSeverity exceeds maxSeverity", ErrInvalidRequest)
	}
	return nil
}

// NearRouteQuery asks for recent incidents along a path
type NearRouteQuery struct {
	Path       []geo.Point
	CorridorKm float64 // zero uses the configured default
	SinceHours int     // zero uses the configured default
	Severity   SeverityRange
}

// NearRouteResult is the scored set of incidents along a path
type NearRouteResult struct {
	CorridorKm      float64         `json:"corridorKm"`
	SinceHours      int             `json:"sinceHours"`
	Total           int             `json:"total"`
	HighestSeverity *risk.Severity  `json:"highestSeverity"`
	RiskScore       float64         `json:"riskScore"`
	Label           string          `json:"label"`
	Incidents       []hazard.Hazard `json:"incidents"`
}

// NearRoute finds incidents reported within SinceHours that lie within the
// corridor of the path and scores the route
func (s *SafetyService) NearRoute(ctx context.Context, q NearRouteQuery) (result *NearRouteResult, err error) {
	defer s.metrics.observe("near_route", time.Now(), &err)

	if err := routing.ValidatePath(q.Path); err != nil {
		return nil, err
	}
	if err := q.Severity.validate(); err != nil {
		return nil, err
	}
	corridorKm, sinceHours, err := s.resolveWindow(q.CorridorKm, q.SinceHours)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bounds := s.routeBounds(q.Path, corridorKm)
	candidates, err := s.fetch(ctx, store.Filter{
		Bounds:      &bounds,
		Kinds:       []hazard.Kind{hazard.KindIncident},
		Since:       now.Add(-time.Duration(sinceHours) * time.Hour),
		MinSeverity: q.Severity.Min,
		MaxSeverity: q.Severity.Max,
	})
	if err != nil {
		return nil, err
	}

	match := routing.MatchHazards(q.Path, candidates, corridorKm, now)
	score := routing.ScoreRoute(match.Matched, match.MaxSeverity)
	s.metrics.matched("near_route", match.Count())
	s.metrics.label("max_severity", score.Label)

	return &NearRouteResult{
		CorridorKm:      corridorKm,
		SinceHours:      sinceHours,
		Total:           match.Count(),
		HighestSeverity: match.MaxSeverity,
		RiskScore:       score.Score,
		Label:           score.Label,
		Incidents:       match.Matched,
	}, nil
}

// NearbyQuery asks for recent incidents around a point
type NearbyQuery struct {
	Center     geo.Point
	RadiusKm   float64 // zero uses the configured default
	SinceHours int
	Severity   SeverityRange
}

// NearbyResult lists incidents around a point with the nearest distance
type NearbyResult struct {
	Center          geo.Point       `json:"center"`
	RadiusKm        float64         `json:"radiusKm"`
	SinceHours      int             `json:"sinceHours"`
	Total           int             `json:"total"`
	HighestSeverity *risk.Severity  `json:"highestSeverity"`
	ClosestKm       *float64        `json:"closestKm"`
	Incidents       []hazard.Hazard `json:"incidents"`
}

// Nearby finds incidents reported within SinceHours within RadiusKm of Center
func (s *SafetyService) Nearby(ctx context.Context, q NearbyQuery) (result *NearbyResult, err error) {
	defer s.metrics.observe("nearby", time.Now(), &err)

	if err := geo.Validate(q.Center); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := q.Severity.validate(); err != nil {
		return nil, err
	}
	radiusKm := q.RadiusKm
	if radiusKm == 0 {
		radiusKm = s.config.NearbyRadiusKm
	}
	radiusKm, sinceHours, err := s.resolveWindow(radiusKm, q.SinceHours)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bounds := s.routeBounds([]geo.Point{q.Center}, radiusKm)
	candidates, err := s.fetch(ctx, store.Filter{
		Bounds:      &bounds,
		Kinds:       []hazard.Kind{hazard.KindIncident},
		Since:       now.Add(-time.Duration(sinceHours) * time.Hour),
		MinSeverity: q.Severity.Min,
		MaxSeverity: q.Severity.Max,
	})
	if err != nil {
		return nil, err
	}

	matched := routing.MatchNearPoint(q.Center, candidates, radiusKm, now)
	s.metrics.matched("nearby", len(matched))

	result = &NearbyResult{
		Center:          q.Center,
		RadiusKm:        radiusKm,
		SinceHours:      sinceHours,
		Total:           len(matched),
		HighestSeverity: routing.MaxSeverity(matched),
		Incidents:       matched,
	}
	if km, ok := routing.ClosestKm(q.Center, matched); ok {
		result.ClosestKm = &km
	}
	return result, nil
}

// EvaluateQuery asks for the weighted area/alert evaluation of a path
type EvaluateQuery struct {
	Path        []geo.Point
	CountryCode string
	City        string
}

// EvaluateResult is the weighted evaluation with the areas and alerts behind it
type EvaluateResult struct {
	Score  float64         `json:"score"`
	Label  string          `json:"label"`
	Areas  []hazard.Hazard `json:"areas"`
	Alerts []hazard.Hazard `json:"alerts"`
}

// Evaluate scores a path against curated unsafe areas and community alerts.
// Alerts reach the path through the configured corridor plus their own radius.
func (s *SafetyService) Evaluate(ctx context.Context, q EvaluateQuery) (result *EvaluateResult, err error) {
	defer s.metrics.observe("evaluate", time.Now(), &err)

	if err := routing.ValidatePath(q.Path); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	corridorKm := s.config.CorridorKm
	bounds := s.routeBounds(q.Path, corridorKm)
	base := store.Filter{
		Bounds:      &bounds,
		CountryCode: q.CountryCode,
		City:        q.City,
		ActiveAt:    now,
	}

	var areas, alerts []hazard.Hazard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f := base
		f.Kinds = []hazard.Kind{hazard.KindArea}
		var err error
		areas, err = s.fetch(gctx, f)
		return err
	})
	g.Go(func() error {
		f := base
		f.Kinds = []hazard.Kind{hazard.KindAlert}
		var err error
		alerts, err = s.fetch(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	areaMatch := routing.MatchHazards(q.Path, areas, corridorKm, now)
	alertMatch := routing.MatchHazards(q.Path, alerts, corridorKm, now)
	weighted := routing.EvaluateWeighted(areaMatch.Matched, alertMatch.Matched)
	s.metrics.matched("evaluate", areaMatch.Count()+alertMatch.Count())
	s.metrics.label("weighted", weighted.Label)

	return &EvaluateResult{
		Score:  weighted.Score,
		Label:  weighted.Label,
		Areas:  areaMatch.Matched,
		Alerts: alertMatch.Matched,
	}, nil
}

// SegmentsQuery asks for the coloured segmentation of a path
type SegmentsQuery struct {
	Path       []geo.Point
	CorridorKm float64
}

// SegmentsResult is the segmented path with every hazard touching it
type SegmentsResult struct {
	CorridorKm float64           `json:"corridorKm"`
	Segments   []routing.Segment `json:"segments"`
	Hazards    []hazard.Hazard   `json:"hazards"`
}

// Segments splits the path by risk using active areas, alerts and incidents
// reported within the configured lookback
func (s *SafetyService) Segments(ctx context.Context, q SegmentsQuery) (result *SegmentsResult, err error) {
	defer s.metrics.observe("segments", time.Now(), &err)

	if err := routing.ValidatePath(q.Path); err != nil {
		return nil, err
	}
	corridorKm, sinceHours, err := s.resolveWindow(q.CorridorKm, 0)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bounds := s.routeBounds(q.Path, corridorKm)

	var areas, points []hazard.Hazard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		areas, err = s.fetch(gctx, store.Filter{
			Bounds:   &bounds,
			Kinds:    []hazard.Kind{hazard.KindArea},
			ActiveAt: now,
		})
		return err
	})
	g.Go(func() error {
		var err error
		points, err = s.fetch(gctx, store.Filter{
			Bounds:   &bounds,
			Kinds:    []hazard.Kind{hazard.KindIncident, hazard.KindAlert},
			Since:    now.Add(-time.Duration(sinceHours) * time.Hour),
			ActiveAt: now,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// polygons lead so area classification wins over nearby points
	hazards := append(areas, points...)
	segments := routing.SegmentRoute(q.Path, hazards, corridorKm)
	match := routing.MatchHazards(q.Path, hazards, corridorKm, now)
	s.metrics.matched("segments", match.Count())

	return &SegmentsResult{
		CorridorKm: corridorKm,
		Segments:   segments,
		Hazards:    match.Matched,
	}, nil
}

// HazardQuery lists hazards inside a bounding box
type HazardQuery struct {
	Bounds     geo.Bounds
	Kinds      []hazard.Kind
	ActiveOnly bool
}

// ListHazards returns hazards touching the box, newest first
func (s *SafetyService) ListHazards(ctx context.Context, q HazardQuery) (hazards []hazard.Hazard, err error) {
	defer s.metrics.observe("list_hazards", time.Now(), &err)

	if !q.Bounds.Valid() {
		return nil, fmt.Errorf("%w: bounding box is malformed", ErrInvalidRequest)
	}
	for _, k := range q.Kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, k)
		}
	}

	f := store.Filter{Bounds: &q.Bounds, Kinds: q.Kinds}
	if q.ActiveOnly {
		f.ActiveAt = s.now().UTC()
	}
	return s.fetch(ctx, f)
}

// CreateHazard validates h, assigns a content-derived ID and default expiry,
// and stores it. Resubmitting the same report fails with store.ErrDuplicateID.
func (s *SafetyService) CreateHazard(ctx context.Context, h hazard.Hazard) (created hazard.Hazard, err error) {
	defer s.metrics.observe("create_hazard", time.Now(), &err)

	now := s.now().UTC()
	if h.ID != "" {
		if _, err := uuid.Parse(h.ID); err != nil {
			return hazard.Hazard{}, fmt.Errorf("%w: id must be a UUID", hazard.ErrInvalidHazard)
		}
	}
	if h.ReportedAt.IsZero() {
		h.ReportedAt = now
	}
	if err := h.Validate(); err != nil {
		return hazard.Hazard{}, err
	}
	if h.ID == "" {
		h.ID = h.FingerprintID()
	}
	h.ApplyDefaultExpiry(now)

	created, err = s.store.Create(ctx, h)
	if err != nil {
		return hazard.Hazard{}, fmt.Errorf("failed to create hazard: %w", err)
	}
	log.Printf("Created %s hazard %s (%s)", created.Kind, created.ID, created.Title)
	return created, nil
}

// resolveWindow applies defaults and limits to a distance and lookback
func (s *SafetyService) resolveWindow(km float64, sinceHours int) (float64, int, error) {
	if km == 0 {
		km = s.config.CorridorKm
	}
	if sinceHours == 0 {
		sinceHours = s.config.SinceHours
	}
	if km < 0 || km > 50 {
		return 0, 0, fmt.Errorf("%w: distance must be between 0 and 50 km", ErrInvalidRequest)
	}
	if sinceHours < 0 || sinceHours > 24*365 {
		return 0, 0, fmt.Errorf("%w: sinceHours must be between 1 and 8760", ErrInvalidRequest)
	}
	return km, sinceHours, nil
}

// routeBounds covers the path, the corridor and the widest hazard radius
func (s *SafetyService) routeBounds(path []geo.Point, km float64) geo.Bounds {
	b, _ := geo.BoundsOf(path)
	return b.Expand(km + s.config.MaxHazardRadiusKm)
}

func (s *SafetyService) fetch(ctx context.Context, f store.Filter) ([]hazard.Hazard, error) {
	f.Limit = s.config.MaxHazards
	hazards, err := s.store.Query(ctx, f)
	if err != nil {
		log.Printf("Hazard query failed: %v", err)
		return nil, fmt.Errorf("failed to query hazards: %w", err)
	}
	return hazards, nil
}
