package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/trowelworks/strata/internal/domain/hierarchy"
	"github.com/trowelworks/strata/internal/domain/item"
	"github.com/trowelworks/strata/internal/domain/link"
	"github.com/trowelworks/strata/internal/domain/params"
	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/result"
	"github.com/trowelworks/strata/internal/domain/schema"
	"github.com/trowelworks/strata/internal/domain/tile"
)

// Aggregator turns raw facet counts into clickable facet blocks.
type Aggregator struct {
	links     *link.Codec
	chrono    *tile.ChronoCodec
	geoCfg    tile.DepthConfig
	chronoCfg tile.DepthConfig
}

// NewAggregator creates a facet aggregator.
func NewAggregator(links *link.Codec, chrono *tile.ChronoCodec, geoCfg, chronoCfg tile.DepthConfig) *Aggregator {
	return &Aggregator{links: links, chrono: chrono, geoCfg: geoCfg, chronoCfg: chronoCfg}
}

// Entity builds a standard facet block: each raw value decoded into an
// entity descriptor with a drill-down link. An option whose link would
// reproduce the current query is a no-op filter and is dropped.
func (a *Aggregator) Entity(ps *params.Set, ff query.FacetField, counts []result.FacetCount) *result.Facet {
	current := a.links.Canonical(ps)
	facet := &result.Facet{Field: ff.Field, Label: facetLabel(ff.Field)}
	for _, fc := range counts {
		tok := hierarchy.ParseValue(fc.Value)
		opt := result.Option{Value: tok.Slug, Label: tok.Label, Count: fc.Count}
		if ff.Param != "" {
			drill := tok.Label
			if ff.RawValue != "" {
				drill = hierarchy.AppendSegment(ff.RawValue, tok.Label)
			}
			var u string
			if ff.Param == params.KeyProperty {
				u = a.links.WithAdded(ps, ff.Param, drill)
			} else {
				u = a.links.WithSet(ps, ff.Param, drill)
			}
			if u == current {
				continue
			}
			opt.URL = u
		}
		facet.Options = append(facet.Options, opt)
	}
	return facet
}

// Geo builds the geospatial tile facet: noise tiles dropped, counts
// re-summed at the adaptive depth, each aggregated tile rendered as a
// GeoJSON polygon (or centroid point when the client asked for points).
func (a *Aggregator) Geo(ps *params.Set, counts []result.FacetCount) *result.Facet {
	obs := make([]tile.Observation, 0, len(counts))
	for _, fc := range counts {
		if !validTile(fc.Value) || tile.IsNoiseGeo(fc.Value) {
			continue
		}
		obs = append(obs, tile.Observation{Key: fc.Value, Count: fc.Count})
	}
	if len(obs) == 0 {
		return nil
	}

	depth := ps.Int(params.KeyGeoDeep, 0, a.geoCfg.MaxDepth)
	if depth == 0 {
		depth = tile.GeoDepth(obs, a.geoCfg)
	}
	asPoint := ps.Bool(params.KeyGeoPoint)

	current := a.links.Canonical(ps)
	facet := &result.Facet{Field: schema.FieldGeoTile, Label: "Map"}
	for _, o := range tile.Aggregate(obs, depth) {
		var g geom.T
		var err error
		if asPoint {
			g, err = tile.ToPoint(o.Key)
		} else {
			g, err = tile.ToPolygon(o.Key)
		}
		if err != nil {
			continue
		}
		raw, err := geojson.Marshal(g)
		if err != nil {
			continue
		}
		opt := result.Option{Value: o.Key, Count: o.Count, Geometry: raw}
		if u := a.links.WithSet(ps, params.KeyGeoTile, o.Key); u != current {
			opt.URL = u
		}
		facet.Options = append(facet.Options, opt)
	}
	return facet
}

// Chrono builds the chronology tile facet: invalid tiles dropped, depth
// dampened for wide spans, each aggregated tile carrying its year range.
func (a *Aggregator) Chrono(ps *params.Set, counts []result.FacetCount) *result.Facet {
	obs := make([]tile.Observation, 0, len(counts))
	for _, fc := range counts {
		if _, err := a.chrono.ToSpan(fc.Value); err != nil {
			continue
		}
		obs = append(obs, tile.Observation{Key: fc.Value, Count: fc.Count})
	}
	if len(obs) == 0 {
		return nil
	}

	depth := ps.Int(params.KeyChronoDeep, 0, a.chronoCfg.MaxDepth)
	if depth == 0 {
		depth = tile.ChronoDepth(obs, a.chrono, a.chronoCfg)
	}

	current := a.links.Canonical(ps)
	facet := &result.Facet{Field: schema.FieldChronoTile, Label: "Timeline"}
	for _, o := range tile.Aggregate(obs, depth) {
		span, err := a.chrono.ToSpan(o.Key)
		if err != nil {
			continue
		}
		opt := result.Option{
			Value: o.Key,
			Label: fmt.Sprintf("%s to %s", formatYear(span.Earliest), formatYear(span.Latest)),
			Count: o.Count,
			Span:  &span,
		}
		if u := a.links.WithSet(ps, params.KeyChronoTile, o.Key); u != current {
			opt.URL = u
		}
		facet.Options = append(facet.Options, opt)
	}
	return facet
}

// ItemClasses cross-references category facet counts against a project's
// authoritative category list, offering only the most specific matching
// category of each branch, never its ancestors.
func (a *Aggregator) ItemClasses(ps *params.Set, counts []result.FacetCount, cats []item.Category) *result.Facet {
	present := make(map[string]int, len(counts))
	for _, fc := range counts {
		tok := hierarchy.ParseValue(fc.Value)
		present[tok.Slug] += fc.Count
	}

	current := a.links.Canonical(ps)
	facet := &result.Facet{Field: schema.FieldCategory, Label: "Item classes"}
	seen := make(map[string]bool)
	for _, c := range cats {
		count, ok := present[c.Slug]
		if !ok || seen[c.Slug] {
			continue
		}
		if hasDeeperMatch(c, cats, present) {
			continue
		}
		seen[c.Slug] = true
		opt := result.Option{Value: c.Slug, Label: c.Label, Count: count}
		clientPath := strings.ReplaceAll(c.Path, hierarchy.PathDelim, hierarchy.SlashDelim)
		if u := a.links.WithSet(ps, params.KeyCategory, clientPath); u != current {
			opt.URL = u
		}
		facet.Options = append(facet.Options, opt)
	}
	if len(facet.Options) == 0 {
		return nil
	}
	return facet
}

// Range builds a bucketed numeric facet. Chronology buckets get span-filter
// drill links; other fields are informational.
func (a *Aggregator) Range(ps *params.Set, rf query.RangeFacet, counts []result.FacetCount) *result.Facet {
	facet := &result.Facet{Field: rf.Field, Label: facetLabel(rf.Field)}
	for _, fc := range counts {
		idx, err := strconv.Atoi(fc.Value)
		if err != nil || idx < 0 {
			continue
		}
		lo := rf.Start + float64(idx)*rf.Gap
		hi := lo + rf.Gap
		opt := result.Option{
			Value: formatFloat(lo),
			Label: fmt.Sprintf("%s to %s", formatFloat(lo), formatFloat(hi)),
			Count: fc.Count,
		}
		if rf.Field == schema.FieldChronoStart {
			derived := ps.Clone()
			derived.Set(params.KeyChronoStart, formatFloat(lo))
			opt.URL = a.links.WithSet(derived, params.KeyChronoStop, formatFloat(hi))
		}
		facet.Options = append(facet.Options, opt)
	}
	if len(facet.Options) == 0 {
		return nil
	}
	return facet
}

// hasDeeperMatch reports whether another category extending c's path also
// appears in the facet counts.
func hasDeeperMatch(c item.Category, cats []item.Category, present map[string]int) bool {
	prefix := c.Path + hierarchy.PathDelim
	for _, d := range cats {
		if d.Project == c.Project && strings.HasPrefix(d.Path, prefix) && present[d.Slug] > 0 {
			return true
		}
	}
	return false
}

func facetLabel(field string) string {
	switch field {
	case schema.FieldItemType:
		return "Item type"
	case schema.FieldCategory:
		return "Category"
	case schema.FieldContext:
		return "Context"
	case schema.FieldProject:
		return "Projects"
	case schema.FieldMedia:
		return "Related media"
	case schema.FieldKeyword:
		return "Keywords"
	case schema.FieldChronoStart:
		return "Earliest year"
	}
	if i := strings.LastIndex(field, hierarchy.TokenJoin); i >= 0 {
		return strings.ReplaceAll(field[i+len(hierarchy.TokenJoin):], "-", " ")
	}
	return field
}

func formatYear(y float64) string {
	if y < 0 {
		return formatFloat(-y) + " BCE"
	}
	return formatFloat(y) + " CE"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
