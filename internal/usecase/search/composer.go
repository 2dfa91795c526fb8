package search

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/trowelworks/strata/internal/domain/hierarchy"
	"github.com/trowelworks/strata/internal/domain/params"
	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/schema"
)

// SortDelim separates field and direction in a client sort expression
// ("interest--desc").
const SortDelim = "--"

// sortFields lists the sortable index fields offered to clients.
var sortFields = []struct {
	Field string
	Label string
}{
	{schema.FieldInterest, "Interest"},
	{schema.FieldLabel, "Label"},
	{schema.FieldUpdated, "Updated"},
	{schema.FieldPublished, "Published"},
	{schema.FieldChronoStart, "Earliest date"},
}

// ComposerConfig tunes query composition.
type ComposerConfig struct {
	DefaultRows int
	MaxRows     int
	FacetLimit  int
	DefaultSort string
	// ExtraFacets maps a category slug to property paths that are surfaced
	// as top-level facets whenever that category is filtered.
	ExtraFacets map[string][]string
}

// Composer translates a client parameter set into an engine query.
type Composer struct {
	cfg ComposerConfig
}

// NewComposer creates a query composer.
func NewComposer(cfg ComposerConfig) *Composer {
	return &Composer{cfg: cfg}
}

// Compose builds the engine query for a request. Later steps may override
// facet-field decisions of earlier ones, so evaluation order matters.
// Unrecognized or unresolvable parameter values never fail the request; they
// are dropped and their parameter names returned for diagnostics.
func (c *Composer) Compose(ps *params.Set) (*query.ComposedQuery, []string) {
	cq := &query.ComposedQuery{}
	var unresolved []string

	c.seedFacetFields(ps, cq)
	c.composeFullText(ps, cq)
	c.composePaging(ps, cq)
	unresolved = append(unresolved, c.directFilters(ps, cq)...)
	narrowGeo, narrowChrono, u := c.spatialChronoFilters(ps, cq)
	unresolved = append(unresolved, u...)
	unresolved = append(unresolved, c.hierarchyFilters(ps, cq)...)
	c.tileFacetFields(cq, narrowGeo, narrowChrono)
	c.extraFacetRules(ps, cq)
	c.composeSort(ps, cq)

	rt := ps.ResponseTypes()
	if !rt.NeedsFacets() {
		cq.FacetFields = nil
		cq.StatsFields = nil
		cq.RangeFacets = nil
	}
	if rt.NeedsRecords() && !rt.Has(params.ResponseRecords) {
		// Bare uuid/uri listings don't need the full document.
		cq.ReturnFields = []string{schema.FieldUUID, schema.FieldURI}
	}

	return cq, unresolved
}

// seedFacetFields sets the default facet surface. The projects facet is only
// worth computing when the request already implies project-spanning
// filtering.
func (c *Composer) seedFacetFields(ps *params.Set, cq *query.ComposedQuery) {
	cq.FacetFields = []query.FacetField{
		{Field: schema.FieldItemType, Limit: c.cfg.FacetLimit, Param: params.KeyItemType},
		{Field: schema.FieldCategory, Limit: c.cfg.FacetLimit, Param: params.KeyCategory},
		{Field: schema.FieldContext, Limit: c.cfg.FacetLimit, Param: params.KeyPath},
		{Field: schema.FieldMedia, Limit: c.cfg.FacetLimit},
		{Field: schema.FieldKeyword, Limit: c.cfg.FacetLimit},
	}
	if ps.Has(params.KeyPath) || ps.Has(params.KeyCategory) ||
		ps.Has(params.KeyProperty) || ps.Has(params.KeyProject) {
		cq.FacetFields = append(cq.FacetFields, query.FacetField{
			Field: schema.FieldProject, Limit: c.cfg.FacetLimit, Param: params.KeyProject,
		})
	}
	cq.StatsFields = []query.StatsField{
		{Field: schema.FieldChronoStart},
		{Field: schema.FieldUpdated, IsDate: true},
	}
}

func (c *Composer) composeFullText(ps *params.Set, cq *query.ComposedQuery) {
	raw, ok := ps.Get(params.KeyFullText)
	if !ok {
		return
	}
	cq.Terms = splitTerms(raw)
	cq.Highlight = len(cq.Terms) > 0
}

// composePaging resolves the paging variant. A cursor is honored only when
// no explicit numeric offset was requested; the two never mix.
func (c *Composer) composePaging(ps *params.Set, cq *query.ComposedQuery) {
	rows := ps.Int(params.KeyRows, c.cfg.DefaultRows, c.cfg.MaxRows)
	if cur, ok := ps.Get(params.KeyCursor); ok && !ps.Has(params.KeyStart) {
		if cur == "*" {
			cur = ""
		}
		cq.Paging = query.Cursor{Token: cur, RowCount: rows}
		return
	}
	cq.Paging = query.Offset{Start: ps.Int(params.KeyStart, 0, 0), RowCount: rows}
}

func (c *Composer) directFilters(ps *params.Set, cq *query.ComposedQuery) []string {
	direct := []struct{ key, field string }{
		{params.KeyIdentifier, schema.FieldIdentifier},
		{params.KeyObject, schema.FieldObject},
		{params.KeyPerson, schema.FieldPerson},
		{params.KeyItemType, schema.FieldItemType},
	}
	var unresolved []string
	for _, d := range direct {
		for _, raw := range ps.All(d.key) {
			cl, ok := tokenFilter(d.field, raw)
			if !ok {
				unresolved = append(unresolved, d.key)
				continue
			}
			cq.Filters = append(cq.Filters, cl)
		}
	}
	return unresolved
}

func (c *Composer) spatialChronoFilters(ps *params.Set, cq *query.ComposedQuery) (narrowGeo, narrowChrono bool, unresolved []string) {
	if raw, ok := ps.Get(params.KeyBBox); ok {
		if b, ok := parseBBox(raw); ok {
			if cl, err := query.NewBBox(schema.FieldGeo, b); err == nil {
				cq.Filters = append(cq.Filters, cl)
				narrowGeo = true
			}
		} else {
			unresolved = append(unresolved, params.KeyBBox)
		}
	}
	if raw, ok := ps.Get(params.KeyGeoTile); ok {
		if validTile(raw) {
			cl, _ := query.NewPrefix(schema.FieldGeoTile, raw)
			cq.Filters = append(cq.Filters, cl)
			narrowGeo = true
		} else {
			unresolved = append(unresolved, params.KeyGeoTile)
		}
	}
	if raw, ok := ps.Get(params.KeyChronoTile); ok {
		if validTile(raw) {
			cl, _ := query.NewPrefix(schema.FieldChronoTile, raw)
			cq.Filters = append(cq.Filters, cl)
			narrowChrono = true
		} else {
			unresolved = append(unresolved, params.KeyChronoTile)
		}
	}
	// A span filter keeps any record whose range overlaps [start, stop]:
	// start bounds the record's latest year from below, stop bounds its
	// earliest year from above.
	if v, ok := ps.Float(params.KeyChronoStart); ok {
		start := v
		if cl, err := query.NewRange(schema.FieldChronoStop, &start, nil); err == nil {
			cq.Filters = append(cq.Filters, cl)
			narrowChrono = true
		}
	} else if ps.Has(params.KeyChronoStart) {
		unresolved = append(unresolved, params.KeyChronoStart)
	}
	if v, ok := ps.Float(params.KeyChronoStop); ok {
		stop := v
		if cl, err := query.NewRange(schema.FieldChronoStart, nil, &stop); err == nil {
			cq.Filters = append(cq.Filters, cl)
			narrowChrono = true
		}
	} else if ps.Has(params.KeyChronoStop) {
		unresolved = append(unresolved, params.KeyChronoStop)
	}
	return narrowGeo, narrowChrono, unresolved
}

// hierarchyFilters expands each hierarchical parameter into filter
// alternatives and swaps the seeded root-level facet for the children facet
// of the selected path. The facet keeps the literal raw client value so
// drill-down links reproduce it.
func (c *Composer) hierarchyFilters(ps *params.Set, cq *query.ComposedQuery) []string {
	hier := []struct{ key, field string }{
		{params.KeyPath, schema.FieldContext},
		{params.KeyCategory, schema.FieldCategory},
		{params.KeyProperty, schema.FieldProperty},
		{params.KeyProject, schema.FieldProject},
	}
	var unresolved []string
	for _, h := range hier {
		for _, raw := range ps.All(h.key) {
			variants := hierarchy.ExpandClientPath(raw)
			if len(variants) == 0 {
				unresolved = append(unresolved, h.key)
				continue
			}
			alts := make([]query.Clause, 0, len(variants))
			for _, v := range variants {
				field := schema.HierField(h.field, v[:len(v)-1])
				slug := hierarchy.Slug(v[len(v)-1])
				if slug == "" {
					continue
				}
				if cl, err := query.NewPrefix(field, slug+hierarchy.TokenJoin); err == nil {
					alts = append(alts, cl)
				}
			}
			if len(alts) == 0 {
				unresolved = append(unresolved, h.key)
				continue
			}
			cl, err := query.NewOr(alts...)
			if err != nil {
				unresolved = append(unresolved, h.key)
				continue
			}
			cq.Filters = append(cq.Filters, cl)

			removeFacetField(cq, h.field)
			cq.FacetFields = append(cq.FacetFields, query.FacetField{
				Field:      schema.HierField(h.field, variants[0]),
				Limit:      c.cfg.FacetLimit,
				Param:      h.key,
				RawValue:   raw,
				PathPrefix: variants[0],
			})
		}
	}
	return unresolved
}

// tileFacetFields appends the geo/chronology tile facets. An already
// narrowed dimension gets the full-resolution field; otherwise the coarse
// stored variant keeps global facet computation cheap.
func (c *Composer) tileFacetFields(cq *query.ComposedQuery, narrowGeo, narrowChrono bool) {
	geoField := schema.FieldGeoTileLow
	if narrowGeo {
		geoField = schema.FieldGeoTile
	}
	chronoField := schema.FieldChronoLow
	if narrowChrono {
		chronoField = schema.FieldChronoTile
	}
	cq.FacetFields = append(cq.FacetFields,
		query.FacetField{Field: geoField, Limit: c.cfg.FacetLimit, Param: params.KeyGeoTile},
		query.FacetField{Field: chronoField, Limit: c.cfg.FacetLimit, Param: params.KeyChronoTile},
	)
}

// extraFacetRules surfaces registered deep property facets for filtered
// categories.
func (c *Composer) extraFacetRules(ps *params.Set, cq *query.ComposedQuery) {
	if len(c.cfg.ExtraFacets) == 0 {
		return
	}
	for _, raw := range ps.All(params.KeyCategory) {
		variants := hierarchy.ExpandClientPath(raw)
		if len(variants) == 0 {
			continue
		}
		leaf := variants[0][len(variants[0])-1]
		for _, propPath := range c.cfg.ExtraFacets[hierarchy.Slug(leaf)] {
			propVariants := hierarchy.ExpandClientPath(propPath)
			if len(propVariants) == 0 {
				continue
			}
			cq.FacetFields = append(cq.FacetFields, query.FacetField{
				Field:      schema.HierField(schema.FieldProperty, propVariants[0]),
				Limit:      c.cfg.FacetLimit,
				Param:      params.KeyProperty,
				RawValue:   propPath,
				PathPrefix: propVariants[0],
			})
		}
	}
}

func (c *Composer) composeSort(ps *params.Set, cq *query.ComposedQuery) {
	raw, ok := ps.Get(params.KeySort)
	if !ok {
		raw = c.cfg.DefaultSort
	}
	if sc, ok := parseSort(raw); ok {
		cq.Sort = []query.SortClause{sc}
	} else if sc, ok := parseSort(c.cfg.DefaultSort); ok {
		cq.Sort = []query.SortClause{sc}
	}
}

// parseSort parses "field--desc" / "field--asc" against the sortable field
// whitelist.
func parseSort(raw string) (query.SortClause, bool) {
	field, dir, _ := strings.Cut(raw, SortDelim)
	for _, sf := range sortFields {
		if sf.Field == field {
			return query.SortClause{Field: field, Desc: dir == "desc"}, true
		}
	}
	return query.SortClause{}, false
}

// tokenFilter builds a prefix filter matching a token-encoded field value by
// its slug.
func tokenFilter(field, raw string) (query.Clause, bool) {
	slug := hierarchy.Slug(raw)
	if slug == "" {
		return query.Clause{}, false
	}
	cl, err := query.NewPrefix(field, slug+hierarchy.TokenJoin)
	if err != nil {
		return query.Clause{}, false
	}
	return cl, true
}

// parseBBox parses "west,south,east,north" degrees.
func parseBBox(raw string) (query.BBox, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return query.BBox{}, false
	}
	var vals [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return query.BBox{}, false
		}
		vals[i] = f
	}
	b := query.BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if b.West > b.East || b.South > b.North {
		return query.BBox{}, false
	}
	return b, true
}

// validTile accepts quadtree keys: one base-4 digit per level.
func validTile(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '3' {
			return false
		}
	}
	return true
}

// splitTerms splits a full-text input into term groups: unquoted words
// become separate AND-combined groups, double-quoted phrases stay one group.
func splitTerms(raw string) []string {
	var terms []string
	var b strings.Builder
	inQuote := false
	flush := func() {
		if b.Len() > 0 {
			terms = append(terms, b.String())
			b.Reset()
		}
	}
	for _, r := range raw {
		switch {
		case r == '"':
			flush()
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return terms
}

func removeFacetField(cq *query.ComposedQuery, field string) {
	kept := cq.FacetFields[:0]
	for _, ff := range cq.FacetFields {
		if ff.Field != field {
			kept = append(kept, ff)
		}
	}
	cq.FacetFields = kept
}
