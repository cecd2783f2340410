// Package api exposes the safety service over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/services"
)

// SafetyService is the service contract consumed by the handlers
type SafetyService interface {
	NearRoute(ctx context.Context, q services.NearRouteQuery) (*services.NearRouteResult, error)
	Nearby(ctx context.Context, q services.NearbyQuery) (*services.NearbyResult, error)
	Evaluate(ctx context.Context, q services.EvaluateQuery) (*services.EvaluateResult, error)
	Segments(ctx context.Context, q services.SegmentsQuery) (*services.SegmentsResult, error)
	ListHazards(ctx context.Context, q services.HazardQuery) ([]hazard.Hazard, error)
	CreateHazard(ctx context.Context, h hazard.Hazard) (hazard.Hazard, error)
}

// Handler maps HTTP requests onto SafetyService calls
type Handler struct {
	service       SafetyService
	validate      *validator.Validate
	maxPathPoints int
}

// NewHandler creates a handler. maxPathPoints of zero leaves routes unbounded.
func NewHandler(svc SafetyService, maxPathPoints int) *Handler {
	return &Handler{
		service:       svc,
		validate:      validator.New(),
		maxPathPoints: maxPathPoints,
	}
}

// NewRouter mounts the API under /api/v1 along with /healthz and, when
// metrics is non-nil, /metrics
func NewRouter(h *Handler, metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.Route("/api/v1", h.RegisterRoutes)
	return r
}

// RegisterRoutes mounts the safety endpoints onto r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/incidents/near-route", h.HandleNearRoute)
	r.Get("/incidents/nearby", h.HandleNearby)
	r.Post("/routes/evaluate", h.HandleEvaluate)
	r.Post("/routes/segments", h.HandleSegments)
	r.Get("/hazards", h.HandleListHazards)
	r.Post("/hazards", h.HandleCreateHazard)
}

// HandleNearRoute handles POST /api/v1/incidents/near-route
func (h *Handler) HandleNearRoute(w http.ResponseWriter, r *http.Request) {
	var req nearRouteRequest
	path, err := h.decodeRoute(w, r, &req, &req.routeInput)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.NearRoute(r.Context(), services.NearRouteQuery{
		Path:       path,
		CorridorKm: req.CorridorKm,
		SinceHours: req.SinceHours,
		Severity:   severityRange(req.MinSeverity, req.MaxSeverity),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleNearby handles GET /api/v1/incidents/nearby
func (h *Handler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	params, err := parseNearby(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(params); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Nearby(r.Context(), services.NearbyQuery{
		Center:     geo.Point{Latitude: *params.Lat, Longitude: *params.Lng},
		RadiusKm:   params.RadiusKm,
		SinceHours: params.SinceHours,
		Severity:   severityRange(params.MinSeverity, params.MaxSeverity),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleEvaluate handles POST /api/v1/routes/evaluate
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	path, err := h.decodeRoute(w, r, &req, &req.routeInput)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Evaluate(r.Context(), services.EvaluateQuery{
		Path:        path,
		CountryCode: strings.ToUpper(req.CountryCode),
		City:        strings.TrimSpace(req.City),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSegments handles POST /api/v1/routes/segments. ?format=kml returns a
// KML document instead of JSON.
func (h *Handler) HandleSegments(w http.ResponseWriter, r *http.Request) {
	var req segmentsRequest
	path, err := h.decodeRoute(w, r, &req, &req.routeInput)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Segments(r.Context(), services.SegmentsQuery{
		Path:       path,
		CorridorKm: req.CorridorKm,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if wantsKML(r) {
		writeKML(w, r, func(doc *kmlDocument) {
			doc.addSegments(result.Segments)
			doc.addHazards(result.Hazards)
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleListHazards handles GET /api/v1/hazards
func (h *Handler) HandleListHazards(w http.ResponseWriter, r *http.Request) {
	params, err := parseBBox(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(params); err != nil {
		writeError(w, r, err)
		return
	}

	kinds := make([]hazard.Kind, len(params.Kinds))
	for i, k := range params.Kinds {
		kinds[i] = hazard.Kind(k)
	}
	hazards, err := h.service.ListHazards(r.Context(), services.HazardQuery{
		Bounds: geo.Bounds{
			South: *params.South,
			West:  *params.West,
			North: *params.North,
			East:  *params.East,
		},
		Kinds:      kinds,
		ActiveOnly: params.ActiveOnly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if wantsKML(r) {
		writeKML(w, r, func(doc *kmlDocument) { doc.addHazards(hazards) })
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(hazards),
		"hazards": hazards,
	})
}

// HandleCreateHazard handles POST /api/v1/hazards
func (h *Handler) HandleCreateHazard(w http.ResponseWriter, r *http.Request) {
	var req createHazardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.service.CreateHazard(r.Context(), req.toHazard())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// decodeRoute decodes body into req, validates it and resolves the route
func (h *Handler) decodeRoute(w http.ResponseWriter, r *http.Request, req interface{}, in *routeInput) ([]geo.Point, error) {
	if err := decodeJSON(w, r, req); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, err
	}
	return in.resolve(h.maxPathPoints)
}

func parseNearby(r *http.Request) (nearbyParams, error) {
	q := r.URL.Query()
	var p nearbyParams
	var err error

	if p.Lat, err = queryFloat(q, "lat"); err != nil {
		return p, err
	}
	if p.Lng, err = queryFloat(q, "lng"); err != nil {
		return p, err
	}
	radius, err := queryFloat(q, "radiusKm")
	if err != nil {
		return p, err
	}
	if radius != nil {
		p.RadiusKm = *radius
	}
	if p.SinceHours, err = queryInt(q, "sinceHours"); err != nil {
		return p, err
	}
	if p.MinSeverity, err = queryInt(q, "minSeverity"); err != nil {
		return p, err
	}
	if p.MaxSeverity, err = queryInt(q, "maxSeverity"); err != nil {
		return p, err
	}
	return p, nil
}

func parseBBox(r *http.Request) (bboxParams, error) {
	q := r.URL.Query()
	var p bboxParams
	var err error

	if p.North, err = queryFloat(q, "north"); err != nil {
		return p, err
	}
	if p.South, err = queryFloat(q, "south"); err != nil {
		return p, err
	}
	if p.East, err = queryFloat(q, "east"); err != nil {
		return p, err
	}
	if p.West, err = queryFloat(q, "west"); err != nil {
		return p, err
	}
	for _, raw := range q["kind"] {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				p.Kinds = append(p.Kinds, k)
			}
		}
	}
	p.ActiveOnly = q.Get("active") == "true"
	return p, nil
}

func wantsKML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "kml"
}
