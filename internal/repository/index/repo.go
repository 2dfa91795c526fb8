// Package index executes composed queries against the search engine and
// converts raw engine replies into domain pages and facet counts.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trowelworks/strata/internal/db"
	"github.com/trowelworks/strata/internal/domain"
	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/result"
	"github.com/trowelworks/strata/internal/domain/schema"
	"github.com/trowelworks/strata/internal/metrics"
)

// store is the consumer interface for engine operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	CursorSearch(ctx context.Context, q *db.CursorQuery) (*db.SearchResult, error)
	Facet(ctx context.Context, q *db.FacetQuery) (*db.FacetResult, error)
	RangeFacet(ctx context.Context, q *db.RangeFacetQuery) (*db.FacetResult, error)
	Stats(ctx context.Context, q *db.StatsQuery) (*db.FieldStats, error)
}

// Repo implements usecase/search.Engine.
type Repo struct {
	store store
	index string
}

// New creates an index repository over the named engine index.
func New(s store, indexName string) *Repo {
	return &Repo{store: s, index: indexName}
}

// engineErr tags an engine failure as unavailable, keeping the driver
// sentinels intact so the transport can map them individually.
func engineErr(op string, err error) error {
	if errors.Is(err, db.ErrCursorExpired) || errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrEngineUnavailable, err)
}

// observe times one engine round trip.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.EngineQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// Query runs the composed query's record listing: offset-paged via search,
// cursor-paged via the engine cursor.
func (r *Repo) Query(ctx context.Context, cq *query.ComposedQuery) (*result.Page, error) {
	switch p := cq.Paging.(type) {
	case query.Cursor:
		defer observe(db.OpCursor)()
		sr, err := r.store.CursorSearch(ctx, &db.CursorQuery{
			Index:        r.index,
			TextField:    schema.FieldText,
			Terms:        cq.Terms,
			Filters:      cq.Filters,
			Cursor:       p.Token,
			Rows:         p.RowCount,
			ReturnFields: cq.ReturnFields,
		})
		if err != nil {
			return nil, engineErr("cursor query", err)
		}
		return toPage(sr), nil
	case query.Offset:
		defer observe(db.OpSearch)()
		highlight := ""
		if cq.Highlight {
			highlight = schema.FieldText
		}
		sr, err := r.store.Search(ctx, &db.SearchQuery{
			Index:          r.index,
			TextField:      schema.FieldText,
			Terms:          cq.Terms,
			Filters:        cq.Filters,
			Offset:         p.Start,
			Limit:          p.RowCount,
			Sort:           cq.Sort,
			ReturnFields:   cq.ReturnFields,
			HighlightField: highlight,
		})
		if err != nil {
			return nil, engineErr("offset query", err)
		}
		return toPage(sr), nil
	default:
		return nil, fmt.Errorf("composed query carries no paging")
	}
}

// Facet returns raw value counts for one facet field under the composed
// query's filter state.
func (r *Repo) Facet(ctx context.Context, cq *query.ComposedQuery, field string, limit int) ([]result.FacetCount, error) {
	defer observe(db.OpAggregate)()
	fr, err := r.store.Facet(ctx, &db.FacetQuery{
		Index:     r.index,
		TextField: schema.FieldText,
		Terms:     cq.Terms,
		Filters:   cq.Filters,
		Field:     field,
		Limit:     limit,
	})
	if err != nil {
		return nil, engineErr("facet "+field, err)
	}
	return toCounts(fr), nil
}

// RangeFacet returns bucketed counts for one numeric field.
func (r *Repo) RangeFacet(ctx context.Context, cq *query.ComposedQuery, rf query.RangeFacet) ([]result.FacetCount, error) {
	defer observe(db.OpAggregate)()
	fr, err := r.store.RangeFacet(ctx, &db.RangeFacetQuery{
		Index:     r.index,
		TextField: schema.FieldText,
		Terms:     cq.Terms,
		Filters:   cq.Filters,
		Field:     rf.Field,
		Start:     rf.Start,
		Gap:       rf.Gap,
		Buckets:   rf.Buckets,
	})
	if err != nil {
		return nil, engineErr("range facet "+rf.Field, err)
	}
	return toCounts(fr), nil
}

// Stats returns min/max/mean/count for one numeric field.
func (r *Repo) Stats(ctx context.Context, cq *query.ComposedQuery, field string) (result.Stats, error) {
	defer observe(db.OpAggregate)()
	fs, err := r.store.Stats(ctx, &db.StatsQuery{
		Index:     r.index,
		TextField: schema.FieldText,
		Terms:     cq.Terms,
		Filters:   cq.Filters,
		Field:     field,
	})
	if err != nil {
		return result.Stats{}, engineErr("stats "+field, err)
	}
	return result.Stats{Min: fs.Min, Max: fs.Max, Mean: fs.Mean, Count: fs.Count}, nil
}

func toPage(sr *db.SearchResult) *result.Page {
	if sr == nil {
		return &result.Page{}
	}
	page := &result.Page{Total: sr.Total, Cursor: sr.Cursor}
	for _, e := range sr.Entries {
		page.Documents = append(page.Documents, result.Document{
			Fields:  e.Fields,
			Snippet: e.Snippet,
		})
	}
	return page
}

func toCounts(fr *db.FacetResult) []result.FacetCount {
	if fr == nil {
		return nil
	}
	counts := make([]result.FacetCount, 0, len(fr.Values))
	for _, v := range fr.Values {
		counts = append(counts, result.FacetCount{Value: v.Value, Count: v.Count})
	}
	return counts
}
