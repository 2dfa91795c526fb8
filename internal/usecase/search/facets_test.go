package search

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/trowelworks/strata/internal/domain/item"
	"github.com/trowelworks/strata/internal/domain/link"
	"github.com/trowelworks/strata/internal/domain/params"
	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/result"
	"github.com/trowelworks/strata/internal/domain/schema"
	"github.com/trowelworks/strata/internal/domain/tile"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	chrono, err := tile.NewChronoCodec(-10000, 2100)
	if err != nil {
		t.Fatalf("NewChronoCodec: %v", err)
	}
	return NewAggregator(
		link.NewCodec("/query", params.KeyCursor),
		chrono,
		tile.DepthConfig{MinDepth: 4, MaxDepth: 20, TargetGroups: 20},
		tile.DepthConfig{MinDepth: 2, MaxDepth: 16, TargetGroups: 20, DampenThresholdYears: 2500},
	)
}

func TestEntityFacetNoOpSuppressed(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	ps.Set(params.KeyItemType, "Pottery")

	ff := query.FacetField{Field: schema.FieldItemType, Param: params.KeyItemType}
	counts := []result.FacetCount{
		{Value: "pottery___id___http://x/pottery___Pottery", Count: 10},
		{Value: "lithics___id___http://x/lithics___Lithics", Count: 4},
	}

	facet := agg.Entity(ps, ff, counts)
	if len(facet.Options) != 1 {
		t.Fatalf("got %d options, want the no-op Pottery option suppressed: %+v", len(facet.Options), facet.Options)
	}
	opt := facet.Options[0]
	if opt.Label != "Lithics" || opt.Count != 4 {
		t.Errorf("option = %+v", opt)
	}
	if !strings.Contains(opt.URL, "type=Lithics") {
		t.Errorf("URL = %q", opt.URL)
	}
}

func TestEntityFacetDrillKeepsRawValue(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	ps.Set(params.KeyPath, "Turkey/Domuztepe/I||II")

	ff := query.FacetField{
		Field:    "context___turkey___domuztepe___i",
		Param:    params.KeyPath,
		RawValue: "Turkey/Domuztepe/I||II",
	}
	counts := []result.FacetCount{{Value: "op-1___id___http://x/op1___Operation 1", Count: 3}}

	facet := agg.Entity(ps, ff, counts)
	if len(facet.Options) != 1 {
		t.Fatalf("options = %+v", facet.Options)
	}
	// The drill link extends the literal raw path, OR group intact.
	if !strings.Contains(facet.Options[0].URL, "Turkey%2FDomuztepe%2FI%7C%7CII%2FOperation+1") {
		t.Errorf("URL = %q", facet.Options[0].URL)
	}
}

func TestEntityFacetDrillMatchesPathDelimiter(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	ps.Set(params.KeyPath, "Turkey---Domuztepe")

	ff := query.FacetField{
		Field:    "context___turkey___domuztepe",
		Param:    params.KeyPath,
		RawValue: "Turkey---Domuztepe",
	}
	counts := []result.FacetCount{{Value: "trench-ii___id___http://x/t2___Trench II", Count: 3}}

	facet := agg.Entity(ps, ff, counts)
	if len(facet.Options) != 1 {
		t.Fatalf("options = %+v", facet.Options)
	}
	// A "---"-delimited raw path drills with "---": mixing in "/" would
	// re-parse "Domuztepe/Trench II" as one segment.
	if !strings.Contains(facet.Options[0].URL, "Turkey---Domuztepe---Trench+II") {
		t.Errorf("URL = %q", facet.Options[0].URL)
	}
}

func TestGeoFacetNoiseAndAggregation(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	ps.Set(params.KeyGeoDeep, "2")

	k1 := tile.LonLatToTile(41.0, 29.0, 10)
	k2 := tile.LonLatToTile(41.01, 29.01, 10)
	noise := tile.LonLatToTile(0, 0, 10)

	facet := agg.Geo(ps, []result.FacetCount{
		{Value: k1, Count: 5},
		{Value: k2, Count: 7},
		{Value: noise, Count: 99},
		{Value: "garbage", Count: 1},
	})
	if facet == nil {
		t.Fatal("expected a geo facet")
	}
	if len(facet.Options) != 1 {
		t.Fatalf("got %d options, want nearby tiles merged at depth 2: %+v", len(facet.Options), facet.Options)
	}
	opt := facet.Options[0]
	if opt.Value != k1[:2] {
		t.Errorf("Value = %q, want truncated prefix %q", opt.Value, k1[:2])
	}
	if opt.Count != 12 {
		t.Errorf("Count = %d, want re-summed 12", opt.Count)
	}
	if len(opt.Geometry) == 0 || !strings.Contains(string(opt.Geometry), "Polygon") {
		t.Errorf("Geometry = %s", opt.Geometry)
	}
}

func TestGeoFacetPoints(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	ps.Set(params.KeyGeoPoint, "1")
	ps.Set(params.KeyGeoDeep, "4")

	facet := agg.Geo(ps, []result.FacetCount{
		{Value: tile.LonLatToTile(41.0, 29.0, 10), Count: 2},
	})
	if facet == nil || len(facet.Options) != 1 {
		t.Fatalf("facet = %+v", facet)
	}
	if !strings.Contains(string(facet.Options[0].Geometry), "Point") {
		t.Errorf("Geometry = %s, want centroid point", facet.Options[0].Geometry)
	}
}

func TestChronoFacetSpans(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	ps.Set(params.KeyChronoDeep, "3")

	chrono := agg.chrono
	k1, err := chrono.SpanToTile(-3000, -2500, 8)
	if err != nil {
		t.Fatalf("SpanToTile: %v", err)
	}
	facet := agg.Chrono(ps, []result.FacetCount{
		{Value: k1, Count: 6},
		{Value: "9z", Count: 1}, // undecodable, dropped
	})
	if facet == nil || len(facet.Options) != 1 {
		t.Fatalf("facet = %+v", facet)
	}
	opt := facet.Options[0]
	if opt.Span == nil {
		t.Fatal("chronology option must carry its span")
	}
	if !opt.Span.Contains(tile.Span{Earliest: -3000, Latest: -2500}) {
		t.Errorf("aggregated span %+v must contain the source span", opt.Span)
	}
	if !strings.Contains(opt.Label, "BCE") {
		t.Errorf("Label = %q", opt.Label)
	}
}

func TestItemClassesMostSpecificOnly(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()
	project := uuid.New()

	cats := []item.Category{
		{Project: project, Path: "find---pottery---amphora", Slug: "amphora", Label: "Amphora"},
		{Project: project, Path: "find---pottery", Slug: "pottery", Label: "Pottery"},
		{Project: project, Path: "find", Slug: "find", Label: "Find"},
		{Project: project, Path: "find---bone", Slug: "bone", Label: "Worked bone"},
	}
	counts := []result.FacetCount{
		{Value: "find___id___http://x/find___Find", Count: 30},
		{Value: "pottery___id___http://x/pottery___Pottery", Count: 20},
		{Value: "amphora___id___http://x/amphora___Amphora", Count: 8},
	}

	facet := agg.ItemClasses(ps, counts, cats)
	if facet == nil {
		t.Fatal("expected an item-class facet")
	}
	if len(facet.Options) != 1 {
		t.Fatalf("got %d options, want only the most specific category: %+v", len(facet.Options), facet.Options)
	}
	opt := facet.Options[0]
	if opt.Value != "amphora" || opt.Count != 8 {
		t.Errorf("option = %+v", opt)
	}
	if !strings.Contains(opt.URL, "cat=find%2Fpottery%2Famphora") {
		t.Errorf("URL = %q", opt.URL)
	}
}

func TestRangeFacetChronoLinks(t *testing.T) {
	agg := newTestAggregator(t)
	ps := params.New()

	rf := query.RangeFacet{Field: schema.FieldChronoStart, Start: -2000, Gap: 500, Buckets: 4}
	facet := agg.Range(ps, rf, []result.FacetCount{
		{Value: "0", Count: 3},
		{Value: "2", Count: 9},
		{Value: "x", Count: 1}, // unparseable bucket index, dropped
	})
	if facet == nil || len(facet.Options) != 2 {
		t.Fatalf("facet = %+v", facet)
	}
	first := facet.Options[0]
	if first.Value != "-2000" || first.Label != "-2000 to -1500" {
		t.Errorf("option = %+v", first)
	}
	if !strings.Contains(first.URL, "chronostart=-2000") || !strings.Contains(first.URL, "chronostop=-1500") {
		t.Errorf("URL = %q", first.URL)
	}
}
