package search

import (
	"context"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"

	"github.com/trowelworks/strata/internal/domain/item"
	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/result"
)

// Engine executes composed queries against the search index.
type Engine interface {
	Query(ctx context.Context, cq *query.ComposedQuery) (*result.Page, error)
	Facet(ctx context.Context, cq *query.ComposedQuery, field string, limit int) ([]result.FacetCount, error)
	RangeFacet(ctx context.Context, cq *query.ComposedQuery, rf query.RangeFacet) ([]result.FacetCount, error)
	Stats(ctx context.Context, cq *query.ComposedQuery, field string) (result.Stats, error)
}

// Items resolves record data the index does not carry: string-typed
// attribute values, non-point geometries, category hierarchies and project
// summaries.
type Items interface {
	StringAttributes(ctx context.Context, keys []item.AttrKey) (map[item.AttrKey][]string, error)
	Geometries(ctx context.Context, sources []uuid.UUID) (map[uuid.UUID]geom.T, error)
	CategoriesForProjects(ctx context.Context, projects []uuid.UUID) ([]item.Category, error)
	ProjectBySlug(ctx context.Context, slug string) (*item.Project, error)
	Ping(ctx context.Context) error
}
