// Package search is the request pipeline: compose the engine query, run the
// stats prequery and the main query, aggregate facets, assemble records and
// wrap everything in the response envelope.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trowelworks/strata/internal/cache"
	"github.com/trowelworks/strata/internal/domain"
	"github.com/trowelworks/strata/internal/domain/hierarchy"
	"github.com/trowelworks/strata/internal/domain/link"
	"github.com/trowelworks/strata/internal/domain/params"
	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/result"
	"github.com/trowelworks/strata/internal/domain/schema"
	"github.com/trowelworks/strata/internal/domain/tile"
	"github.com/trowelworks/strata/internal/logger"
	"github.com/trowelworks/strata/internal/metrics"
)

// activeFilterKeys are the parameters surfaced in the active-filter block,
// each with a remove link.
var activeFilterKeys = []string{
	params.KeyFullText, params.KeyItemType, params.KeyPath, params.KeyCategory,
	params.KeyProperty, params.KeyProject, params.KeyIdentifier, params.KeyObject,
	params.KeyPerson, params.KeyBBox, params.KeyGeoTile, params.KeyChronoTile,
	params.KeyChronoStart, params.KeyChronoStop,
}

// Config tunes the search pipeline.
type Config struct {
	Composer     ComposerConfig
	GeoDepth     tile.DepthConfig
	ChronoDepth  tile.DepthConfig
	StatsBuckets int
}

// Service runs faceted search requests end to end.
type Service struct {
	engine    Engine
	items     Items
	cache     cache.Cache
	links     *link.Codec
	composer  *Composer
	assembler *Assembler
	agg       *Aggregator
	cfg       Config
}

// New creates a search service.
func New(engine Engine, items Items, rc cache.Cache, links *link.Codec, chrono *tile.ChronoCodec, cfg Config) *Service {
	return &Service{
		engine:    engine,
		items:     items,
		cache:     rc,
		links:     links,
		composer:  NewComposer(cfg.Composer),
		assembler: NewAssembler(items),
		agg:       NewAggregator(links, chrono, cfg.GeoDepth, cfg.ChronoDepth),
		cfg:       cfg,
	}
}

// SearchJSON serves a request through the response cache: the serialized
// response is memoized under the canonical URL. Cache writes are
// fire-and-forget.
func (s *Service) SearchJSON(ctx context.Context, ps *params.Set) ([]byte, error) {
	key := s.links.Canonical(ps)
	if b, ok := s.cache.Get(ctx, key); ok {
		metrics.ResponseCacheTotal.WithLabelValues("hit").Inc()
		return b, nil
	}
	metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()

	resp, err := s.Search(ctx, ps)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	s.cache.Set(ctx, key, b)
	return b, nil
}

// Search runs the full pipeline for one request. Engine failures degrade to
// a best-effort partial result unless the client asked for the raw engine
// response, in which case the error propagates.
func (s *Service) Search(ctx context.Context, ps *params.Set) (*result.Response, error) {
	log := logger.FromContext(ctx)
	rt := ps.ResponseTypes()

	cq, unresolved := s.composer.Compose(ps)
	for _, p := range unresolved {
		metrics.FiltersUnresolvedTotal.WithLabelValues(p).Inc()
	}

	resp := &result.Response{
		ID:         s.links.Canonical(ps),
		Unresolved: len(unresolved),
	}

	// Bucket boundaries depend on live stats, so the prequery runs before
	// the main query. A failed stats field just loses its range facet.
	for _, sf := range cq.StatsFields {
		st, err := s.engine.Stats(ctx, cq, sf.Field)
		if err != nil {
			metrics.EngineErrorsTotal.WithLabelValues("stats").Inc()
			log.Warn("stats prequery failed", zap.String("field", sf.Field), zap.Error(err))
			continue
		}
		if rf, ok := planBuckets(sf.Field, st, s.cfg.StatsBuckets, sf.IsDate); ok {
			cq.RangeFacets = append(cq.RangeFacets, rf)
		}
	}

	page, err := s.engine.Query(ctx, cq)
	if err != nil {
		metrics.EngineErrorsTotal.WithLabelValues("query").Inc()
		if rt.Has(params.ResponseRaw) {
			return nil, fmt.Errorf("engine query: %w", err)
		}
		log.Error("engine query failed, serving partial result", zap.Error(err))
		page = &result.Page{}
	}

	if rt.Has(params.ResponseRaw) {
		if raw, err := json.Marshal(page); err == nil {
			resp.RawEngineJSON = raw
		}
	}

	resp.Paging = s.buildPaging(ps, cq, page)
	resp.Sorts = s.buildSorts(ps, cq)
	resp.Filters = s.buildFilters(ps)
	resp.Project = s.projectSummary(ctx, ps)

	if rt.NeedsFacets() {
		s.buildFacets(ctx, ps, cq, rt, resp)
	}
	if rt.NeedsRecords() {
		s.buildRecords(ctx, ps, rt, page, resp)
	}

	return resp, nil
}

func (s *Service) buildPaging(ps *params.Set, cq *query.ComposedQuery, page *result.Page) *result.PagingBlock {
	pb := &result.PagingBlock{TotalFound: page.Total}
	switch p := cq.Paging.(type) {
	case query.Cursor:
		pb.Rows = p.RowCount
		pb.NextCursor = page.Cursor
	case query.Offset:
		pb.Start, pb.Rows = p.Start, p.RowCount
		if p.RowCount <= 0 || page.Total <= 0 {
			break
		}
		pb.First = s.links.WithOffset(ps, 0)
		pb.Last = s.links.WithOffset(ps, (page.Total-1)/p.RowCount*p.RowCount)
		if p.Start > 0 {
			prev := p.Start - p.RowCount
			if prev < 0 {
				prev = 0
			}
			pb.Previous = s.links.WithOffset(ps, prev)
		}
		if next := p.Start + p.RowCount; next < page.Total {
			pb.Next = s.links.WithOffset(ps, next)
		}
	}
	return pb
}

func (s *Service) buildSorts(ps *params.Set, cq *query.ComposedQuery) []result.SortOption {
	var active query.SortClause
	if len(cq.Sort) > 0 {
		active = cq.Sort[0]
	}
	opts := make([]result.SortOption, 0, len(sortFields))
	for _, sf := range sortFields {
		// Label sorts ascending; everything else is a relevance-style
		// descending sort.
		desc := sf.Field != schema.FieldLabel
		dir := "asc"
		if desc {
			dir = "desc"
		}
		opts = append(opts, result.SortOption{
			Field:  sf.Field,
			Label:  sf.Label,
			Desc:   desc,
			Active: active.Field == sf.Field && active.Desc == desc,
			URL:    s.links.WithSet(ps, params.KeySort, sf.Field+SortDelim+dir),
		})
	}
	return opts
}

func (s *Service) buildFilters(ps *params.Set) []result.ActiveFilter {
	var filters []result.ActiveFilter
	for _, key := range activeFilterKeys {
		for _, v := range ps.All(key) {
			if v == "" {
				continue
			}
			filters = append(filters, result.ActiveFilter{
				Param:     key,
				Value:     v,
				RemoveURL: s.links.WithoutValue(ps, key, v),
			})
		}
	}
	return filters
}

// projectSummary enriches the response when exactly one project filter is
// active. A missing project is not an error.
func (s *Service) projectSummary(ctx context.Context, ps *params.Set) *result.ProjectSummary {
	vals := ps.All(params.KeyProject)
	if len(vals) != 1 {
		return nil
	}
	slug := hierarchy.Slug(vals[0])
	if slug == "" {
		return nil
	}
	p, err := s.items.ProjectBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx).Warn("project summary lookup failed", zap.Error(err))
		}
		return nil
	}
	return &result.ProjectSummary{
		Descriptor:  result.Descriptor{Label: p.Label, Slug: p.Slug, URI: p.URI},
		Description: p.Description,
		BannerURI:   p.BannerURI,
	}
}

// buildFacets fetches and aggregates every facet field the composed query
// carries. A failed facet is skipped, not fatal.
func (s *Service) buildFacets(ctx context.Context, ps *params.Set, cq *query.ComposedQuery, rt params.ResponseTypes, resp *result.Response) {
	log := logger.FromContext(ctx)

	counts := make([][]result.FacetCount, len(cq.FacetFields))
	for i, ff := range cq.FacetFields {
		fc, err := s.engine.Facet(ctx, cq, ff.Field, ff.Limit)
		if err != nil {
			metrics.EngineErrorsTotal.WithLabelValues("facet").Inc()
			log.Warn("facet query failed", zap.String("field", ff.Field), zap.Error(err))
			continue
		}
		counts[i] = fc
	}

	projects := projectUUIDs(cq, counts)
	if len(projects) == 0 {
		// An active project filter replaces the project facet, so the uuid
		// comes from the repository instead.
		if vals := ps.All(params.KeyProject); len(vals) == 1 {
			if p, err := s.items.ProjectBySlug(ctx, hierarchy.Slug(vals[0])); err == nil {
				projects = append(projects, p.UUID)
			}
		}
	}
	var catCounts []result.FacetCount

	for i, ff := range cq.FacetFields {
		if counts[i] == nil {
			continue
		}
		switch {
		case ff.Param == params.KeyGeoTile:
			if rt.Has(params.ResponseGeoFacets) {
				resp.GeoFacet = s.agg.Geo(ps, counts[i])
			}
		case ff.Param == params.KeyChronoTile:
			if rt.Has(params.ResponseChronoFacet) {
				resp.ChronoFacet = s.agg.Chrono(ps, counts[i])
			}
		case ff.Param == params.KeyProperty:
			if rt.Has(params.ResponsePropFacets) {
				if f := s.agg.Entity(ps, ff, counts[i]); f != nil {
					resp.Facets = append(resp.Facets, *f)
				}
			}
		default:
			if !rt.Has(params.ResponseFacets) {
				continue
			}
			if ff.Param == params.KeyCategory {
				catCounts = counts[i]
			}
			if f := s.agg.Entity(ps, ff, counts[i]); f != nil {
				resp.Facets = append(resp.Facets, *f)
			}
		}
	}

	// Item-class summary: the category facet cross-referenced with the
	// authoritative category lists of the projects in play.
	if rt.Has(params.ResponseFacets) && len(catCounts) > 0 && len(projects) > 0 {
		cats, err := s.items.CategoriesForProjects(ctx, projects)
		if err != nil {
			log.Warn("category lookup failed", zap.Error(err))
		} else if f := s.agg.ItemClasses(ps, catCounts, cats); f != nil {
			resp.Facets = append(resp.Facets, *f)
		}
	}

	if rt.Has(params.ResponseFacets) {
		for _, rf := range cq.RangeFacets {
			fc, err := s.engine.RangeFacet(ctx, cq, rf)
			if err != nil {
				metrics.EngineErrorsTotal.WithLabelValues("range_facet").Inc()
				log.Warn("range facet failed", zap.String("field", rf.Field), zap.Error(err))
				continue
			}
			if f := s.agg.Range(ps, rf, fc); f != nil {
				resp.RangeFacets = append(resp.RangeFacets, *f)
			}
		}
	}
}

func (s *Service) buildRecords(ctx context.Context, ps *params.Set, rt params.ResponseTypes, page *result.Page, resp *result.Response) {
	if rt.Has(params.ResponseRecords) {
		flatten := ps.Bool(params.KeyFlatten)
		nested := ps.Bool(params.KeyNested)
		if nested {
			// Flatten and nested are mutually exclusive; nested wins.
			flatten = false
		}
		opts := assembleOptions{
			withAttributes: true,
			withStrings:    ps.Has(params.KeyAttributes) || flatten || nested,
			flatten:        flatten,
			withGeometry:   true,
		}
		if raw, ok := ps.Get(params.KeyAttributes); ok {
			opts.attrFilter = make(map[string]bool)
			for _, slug := range strings.Split(raw, ",") {
				if slug = strings.TrimSpace(slug); slug != "" {
					opts.attrFilter[hierarchy.Slug(slug)] = true
				}
			}
		}
		resp.Records = s.assembler.Assemble(ctx, page.Documents, opts)
	}
	if rt.Has(params.ResponseUUIDList) {
		for _, doc := range page.Documents {
			if v := doc.Field(schema.FieldUUID); v != "" {
				resp.UUIDs = append(resp.UUIDs, v)
			}
		}
	}
	if rt.Has(params.ResponseURIList) {
		for _, doc := range page.Documents {
			if v := doc.Field(schema.FieldURI); v != "" {
				resp.URIs = append(resp.URIs, v)
			}
		}
	}
}

// projectUUIDs extracts the project uuids visible in the project facet; the
// value tokens carry the uuid in their identifier position.
func projectUUIDs(cq *query.ComposedQuery, counts [][]result.FacetCount) []uuid.UUID {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for i, ff := range cq.FacetFields {
		if ff.Field != schema.FieldProject || counts[i] == nil {
			continue
		}
		for _, fc := range counts[i] {
			tok := hierarchy.ParseValue(fc.Value)
			id, err := uuid.Parse(tok.URI)
			if err != nil || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
