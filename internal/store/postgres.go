package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/lib/risk"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the Postgres SQLSTATE for a duplicate key
const uniqueViolation = "23505"

// PostgresStore reads and writes hazards in a PostGIS table
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a store backed by the given pool or transaction
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// hazardColumns must stay in sync with scanHazard
const hazardColumns = `h.id::text, h.kind, h.title, h.summary, h.category,
	ST_AsText(h.geom), h.radius_km, h.severity, h.risk_level,
	h.valid_from, h.valid_to, h.is_active,
	h.city, h.province, h.country_code, h.source,
	h.reported_at, h.created_at`

// effectiveSeverity mirrors Hazard.EffectiveSeverity so severity filters
// apply to curated levels as well
const effectiveSeverity = `(CASE WHEN h.severity BETWEEN 1 AND 5 THEN h.severity
	ELSE CASE h.risk_level WHEN 'low' THEN 1 WHEN 'medium' THEN 3
	WHEN 'high' THEN 4 WHEN 'extreme' THEN 5 ELSE 0 END END)`

// Query builds a parameterised SELECT from the set filter fields
func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]hazard.Hazard, error) {
	query, args := buildQuery(f)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hazards: %w", err)
	}
	defer rows.Close()

	results := []hazard.Hazard{}
	for rows.Next() {
		h, scanErr := scanHazard(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan hazard row: %w", scanErr)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hazard rows: %w", err)
	}
	return results, nil
}

func buildQuery(f Filter) (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	next := func(v any) string {
		args = append(args, v)
		placeholder := fmt.Sprintf("$%d", argIdx)
		argIdx++
		return placeholder
	}

	if f.Bounds != nil {
		b := *f.Bounds
		conditions = append(conditions, fmt.Sprintf("h.geom && ST_MakeEnvelope(%s, %s, %s, %s, 4326)",
			next(b.West), next(b.South), next(b.East), next(b.North)))
	}

	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		conditions = append(conditions, fmt.Sprintf("h.kind = ANY(%s)", next(kinds)))
	}

	if !f.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("h.reported_at >= %s", next(f.Since)))
	}
	if f.MinSeverity != risk.SeverityUnknown {
		conditions = append(conditions, fmt.Sprintf("%s >= %s", effectiveSeverity, next(int(f.MinSeverity))))
	}
	if f.MaxSeverity != risk.SeverityUnknown {
		conditions = append(conditions, fmt.Sprintf("%s <= %s", effectiveSeverity, next(int(f.MaxSeverity))))
	}
	if f.CountryCode != "" {
		conditions = append(conditions, fmt.Sprintf("lower(h.country_code) = lower(%s)", next(f.CountryCode)))
	}
	if f.City != "" {
		conditions = append(conditions, fmt.Sprintf("lower(h.city) = lower(%s)", next(f.City)))
	}
	if !f.ActiveAt.IsZero() {
		at := next(f.ActiveAt)
		conditions = append(conditions, fmt.Sprintf(
			"h.is_active AND (h.valid_from IS NULL OR h.valid_from <= %s) AND (h.valid_to IS NULL OR h.valid_to > %s)",
			at, at))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(hazardColumns)
	sb.WriteString("\n FROM hazards h")
	if len(conditions) > 0 {
		sb.WriteString("\n WHERE ")
		sb.WriteString(strings.Join(conditions, "\n   AND "))
	}
	sb.WriteString("\n ORDER BY h.reported_at DESC, h.id")
	if f.Limit > 0 {
		sb.WriteString("\n LIMIT ")
		sb.WriteString(next(f.Limit))
	}
	return sb.String(), args
}

// Create inserts h and returns it with the database-assigned CreatedAt
func (s *PostgresStore) Create(ctx context.Context, h hazard.Hazard) (hazard.Hazard, error) {
	geomWKT, err := locationWKT(h.Location)
	if err != nil {
		return hazard.Hazard{}, fmt.Errorf("%w: %v", hazard.ErrInvalidHazard, err)
	}

	var validFrom, validTo *time.Time
	if h.Window != nil {
		validFrom, validTo = h.Window.ValidFrom, h.Window.ValidTo
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO hazards (
			id, kind, title, summary, category, geom, radius_km, severity, risk_level,
			valid_from, valid_to, is_active, city, province, country_code, source, reported_at
		) VALUES (
			$1, $2, $3, $4, $5, ST_GeomFromText($6, 4326), $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16, $17
		)
		RETURNING created_at`,
		h.ID, string(h.Kind), h.Title, h.Summary, h.Category, geomWKT, h.RadiusKm, int(h.Severity), string(h.Level),
		validFrom, validTo, h.Active, h.City, h.Province, h.CountryCode, h.Source, h.ReportedAt,
	).Scan(&h.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return hazard.Hazard{}, fmt.Errorf("%w: %s", ErrDuplicateID, h.ID)
		}
		return hazard.Hazard{}, fmt.Errorf("failed to insert hazard: %w", err)
	}
	return h, nil
}

func locationWKT(loc hazard.Location) (string, error) {
	switch l := loc.(type) {
	case hazard.PointLocation:
		return geo.PointWKT(l.Point), nil
	case hazard.PolygonLocation:
		return geo.PolygonWKT(l.Ring)
	}
	return "", errors.New("location is required")
}

// scanHazard reads one row selected with hazardColumns
func scanHazard(row pgx.Row) (hazard.Hazard, error) {
	var h hazard.Hazard
	var (
		kind      string
		geomWKT   string
		severity  int
		level     string
		validFrom *time.Time
		validTo   *time.Time
	)

	err := row.Scan(
		&h.ID,
		&kind,
		&h.Title,
		&h.Summary,
		&h.Category,
		&geomWKT,
		&h.RadiusKm,
		&severity,
		&level,
		&validFrom,
		&validTo,
		&h.Active,
		&h.City,
		&h.Province,
		&h.CountryCode,
		&h.Source,
		&h.ReportedAt,
		&h.CreatedAt,
	)
	if err != nil {
		return hazard.Hazard{}, err
	}

	h.Kind = hazard.Kind(kind)
	h.Severity = risk.Severity(severity)
	h.Level = risk.Level(level)
	if validFrom != nil || validTo != nil {
		h.Window = &hazard.Window{ValidFrom: validFrom, ValidTo: validTo}
	}

	point, ring, err := geo.ParseWKT(geomWKT)
	if err != nil {
		return hazard.Hazard{}, fmt.Errorf("hazard %s: %w", h.ID, err)
	}
	if point != nil {
		h.Location = hazard.PointLocation{Point: *point}
	} else {
		h.Location = hazard.PolygonLocation{Ring: ring}
	}
	return h, nil
}
