// Package items reads record enrichment data from the publishing store:
// string attribute values, non-point geometries, category hierarchies and
// project summaries. The schema belongs to the publishing pipeline; this
// package only selects from it.
package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/trowelworks/strata/internal/domain"
	"github.com/trowelworks/strata/internal/domain/item"
)

// pool is the consumer interface over pgxpool.Pool.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repo implements usecase/search.Items over Postgres.
type Repo struct {
	pool pool
}

// New creates an item repository over the given connection pool.
func New(p pool) *Repo {
	return &Repo{pool: p}
}

// Ping reports store reachability.
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// StringAttributes resolves string-typed attribute values for the given
// (record, predicate) pairs in one round trip. Pairs without a stored value
// are absent from the result.
func (r *Repo) StringAttributes(ctx context.Context, keys []item.AttrKey) (map[item.AttrKey][]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	records := make([]uuid.UUID, 0, len(keys))
	predicates := make([]uuid.UUID, 0, len(keys))
	wanted := make(map[item.AttrKey]bool, len(keys))
	for _, k := range keys {
		records = append(records, k.Record)
		predicates = append(predicates, k.Predicate)
		wanted[k] = true
	}

	// The two ANY lists over-select the cross product; the wanted set
	// filters it back down client-side.
	rows, err := r.pool.Query(ctx, `
		SELECT record_uuid, predicate_uuid, value
		FROM string_attributes
		WHERE record_uuid = ANY($1) AND predicate_uuid = ANY($2)
		ORDER BY record_uuid, predicate_uuid, sort_order`,
		records, predicates)
	if err != nil {
		return nil, fmt.Errorf("query string attributes: %w", err)
	}
	defer rows.Close()

	values := make(map[item.AttrKey][]string)
	for rows.Next() {
		var k item.AttrKey
		var v string
		if err := rows.Scan(&k.Record, &k.Predicate, &v); err != nil {
			return nil, fmt.Errorf("scan string attribute: %w", err)
		}
		if wanted[k] {
			values[k] = append(values[k], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read string attributes: %w", err)
	}
	return values, nil
}

// Geometries resolves stored GeoJSON geometries for the given source uuids.
// Records whose index document carries only a centroid name their geometry
// source here; uuids without a geometry are absent from the result.
func (r *Repo) Geometries(ctx context.Context, sources []uuid.UUID) (map[uuid.UUID]geom.T, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT uuid, geojson
		FROM geometries
		WHERE uuid = ANY($1)`,
		sources)
	if err != nil {
		return nil, fmt.Errorf("query geometries: %w", err)
	}
	defer rows.Close()

	geometries := make(map[uuid.UUID]geom.T, len(sources))
	for rows.Next() {
		var id uuid.UUID
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan geometry: %w", err)
		}
		var g geom.T
		if err := geojson.Unmarshal(raw, &g); err != nil {
			// A malformed stored geometry degrades that record to its
			// centroid; it must not fail the page.
			continue
		}
		geometries[id] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read geometries: %w", err)
	}
	return geometries, nil
}

// CategoriesForProjects returns the item-class hierarchies of the given
// projects, deepest paths first so callers can keep the most specific match.
func (r *Repo) CategoriesForProjects(ctx context.Context, projects []uuid.UUID) ([]item.Category, error) {
	if len(projects) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT project_uuid, path, slug, label, uri, COALESCE(icon, '')
		FROM categories
		WHERE project_uuid = ANY($1)
		ORDER BY length(path) DESC, path`,
		projects)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []item.Category
	for rows.Next() {
		var c item.Category
		if err := rows.Scan(&c.Project, &c.Path, &c.Slug, &c.Label, &c.URI, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return cats, nil
}

// ProjectBySlug returns one project's summary block.
func (r *Repo) ProjectBySlug(ctx context.Context, slug string) (*item.Project, error) {
	var p item.Project
	err := r.pool.QueryRow(ctx, `
		SELECT uuid, slug, label, uri, COALESCE(description, ''), COALESCE(banner_uri, '')
		FROM projects
		WHERE slug = $1`,
		slug).Scan(&p.UUID, &p.Slug, &p.Label, &p.URI, &p.Description, &p.BannerURI)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %q: %w", slug, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("query project %q: %w", slug, err)
	}
	return &p, nil
}
