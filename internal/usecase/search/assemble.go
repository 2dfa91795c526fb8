package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/trowelworks/strata/internal/domain/hierarchy"
	"github.com/trowelworks/strata/internal/domain/item"
	"github.com/trowelworks/strata/internal/domain/result"
	"github.com/trowelworks/strata/internal/domain/schema"
	"github.com/trowelworks/strata/internal/domain/tile"
	"github.com/trowelworks/strata/internal/logger"
)

// assembleOptions selects how much of each record to materialize.
type assembleOptions struct {
	// withAttributes walks the attribute fields into attribute trees.
	withAttributes bool
	// withStrings resolves string-typed attribute values from the item
	// repository. Off for plain listings to spare the repository.
	withStrings bool
	// flatten renders each attribute's values as one delimited string.
	flatten bool
	// attrFilter limits root-level attributes to the named predicate slugs.
	// Empty means all.
	attrFilter map[string]bool
	// withGeometry resolves non-point geometries through the geometry
	// source indirection.
	withGeometry bool
}

// stringType marks index attribute values whose text lives in the item
// repository, not the index. The token's URI position carries the predicate
// uuid for the lookup.
const stringType = "string"

// Assembler turns raw index documents into client records, enriching them
// with batched item-repository lookups. Enrichment failures degrade the
// affected records, never the request.
type Assembler struct {
	items Items
}

// NewAssembler creates a result assembler.
func NewAssembler(items Items) *Assembler {
	return &Assembler{items: items}
}

// Assemble converts one page of documents. All repository lookups the page
// needs are gathered first and issued as single batched queries.
func (as *Assembler) Assemble(ctx context.Context, docs []result.Document, opts assembleOptions) []result.Record {
	stringVals := as.resolveStrings(ctx, docs, opts)
	geoms := as.resolveGeometries(ctx, docs, opts)

	records := make([]result.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, as.assembleOne(doc, opts, stringVals, geoms))
	}
	return records
}

func (as *Assembler) assembleOne(doc result.Document, opts assembleOptions, stringVals map[item.AttrKey][]string, geoms map[uuid.UUID]geom.T) result.Record {
	rec := result.Record{
		URI:     doc.Field(schema.FieldURI),
		Label:   doc.Field(schema.FieldLabel),
		Icon:    doc.Field(schema.FieldIcon),
		Snippet: doc.Snippet,
	}
	rec.UUID, _ = uuid.Parse(doc.Field(schema.FieldUUID))
	if tok := doc.Field(schema.FieldItemType); tok != "" {
		rec.ItemType = hierarchy.ParseValue(tok).Label
	}
	if tok := doc.Field(schema.FieldCategory); tok != "" {
		rec.Category = toDescriptor(hierarchy.ParseValue(tok))
	}
	rec.Context = parseChain(doc.Field(schema.FieldContextPath))
	rec.Projects = parseChain(doc.Field(schema.FieldProjectPath))
	rec.Children, _ = strconv.Atoi(doc.Field(schema.FieldChildren))

	if span, ok := parseSpan(doc); ok {
		rec.Span = &span
	}
	rec.Geometry = as.recordGeometry(doc, opts, geoms)

	if opts.withAttributes {
		rec.Attributes = buildAttributes(doc.Fields, nil, rec.UUID, stringVals, 0)
		if len(opts.attrFilter) > 0 {
			kept := rec.Attributes[:0]
			for _, a := range rec.Attributes {
				if opts.attrFilter[a.Predicate.Slug] {
					kept = append(kept, a)
				}
			}
			rec.Attributes = kept
		}
		if opts.flatten {
			for i, a := range rec.Attributes {
				rec.Attributes[i].Values = []result.AttributeNode{result.Leaf(a.Flatten("; "))}
			}
		}
	}
	return rec
}

// resolveStrings gathers every string-typed attribute reference on the page
// and fetches the values in one query. A lookup failure means no string
// enrichment for this page.
func (as *Assembler) resolveStrings(ctx context.Context, docs []result.Document, opts assembleOptions) map[item.AttrKey][]string {
	if !opts.withAttributes || !opts.withStrings {
		return nil
	}
	var keys []item.AttrKey
	for _, doc := range docs {
		rec, err := uuid.Parse(doc.Field(schema.FieldUUID))
		if err != nil {
			continue
		}
		for name, value := range doc.Fields {
			if !strings.HasPrefix(name, schema.FieldAttrPrefix) {
				continue
			}
			for _, raw := range strings.Split(value, hierarchy.PathDelim) {
				tok := hierarchy.ParseValue(raw)
				if tok.DataType != stringType {
					continue
				}
				pred, err := uuid.Parse(tok.URI)
				if err != nil {
					continue
				}
				keys = append(keys, item.AttrKey{Record: rec, Predicate: pred})
			}
		}
	}
	if len(keys) == 0 {
		return nil
	}
	vals, err := as.items.StringAttributes(ctx, keys)
	if err != nil {
		logger.FromContext(ctx).Warn("string attribute lookup failed", zap.Error(err))
		return nil
	}
	return vals
}

// resolveGeometries batches the geometry-source lookups for documents whose
// geometry is not the indexed point.
func (as *Assembler) resolveGeometries(ctx context.Context, docs []result.Document, opts assembleOptions) map[uuid.UUID]geom.T {
	if !opts.withGeometry {
		return nil
	}
	var sources []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, doc := range docs {
		src, err := uuid.Parse(doc.Field(schema.FieldGeoSource))
		if err != nil || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil
	}
	geoms, err := as.items.Geometries(ctx, sources)
	if err != nil {
		logger.FromContext(ctx).Warn("geometry lookup failed", zap.Error(err))
		return nil
	}
	return geoms
}

// recordGeometry prefers the resolved source geometry and falls back to the
// indexed centroid point.
func (as *Assembler) recordGeometry(doc result.Document, opts assembleOptions, geoms map[uuid.UUID]geom.T) []byte {
	if opts.withGeometry {
		if src, err := uuid.Parse(doc.Field(schema.FieldGeoSource)); err == nil {
			if g, ok := geoms[src]; ok {
				if raw, err := geojson.Marshal(g); err == nil {
					return raw
				}
			}
		}
	}
	lat, lon, ok := parseLatLon(doc.Field(schema.FieldGeo))
	if !ok {
		return nil
	}
	raw, err := geojson.Marshal(geom.NewPointFlat(geom.XY, []float64{lon, lat}))
	if err != nil {
		return nil
	}
	return raw
}

// buildAttributes walks the dynamic attribute fields under the given
// predicate-slug prefix. A value is an entity when deeper fields exist for
// it; recursion is bounded by the depth guard.
func buildAttributes(fields map[string]string, prefix []string, rec uuid.UUID, stringVals map[item.AttrKey][]string, depth int) []result.Attribute {
	if depth >= result.MaxAttributeDepth {
		return nil
	}

	var attrs []result.Attribute
	for name, value := range fields {
		if !strings.HasPrefix(name, schema.FieldAttrPrefix) {
			continue
		}
		parts := strings.Split(name[len(schema.FieldAttrPrefix):], hierarchy.TokenJoin)
		if len(parts) != len(prefix)+1 || !sliceEqual(parts[:len(prefix)], prefix) {
			continue
		}
		predSlug := parts[len(parts)-1]
		attr := result.Attribute{
			Predicate: result.Descriptor{Label: strings.ReplaceAll(predSlug, "-", " "), Slug: predSlug},
		}
		predPath := make([]string, 0, len(prefix)+1)
		predPath = append(predPath, prefix...)
		predPath = append(predPath, predSlug)
		for _, raw := range strings.Split(value, hierarchy.PathDelim) {
			if raw == "" {
				continue
			}
			tok := hierarchy.ParseValue(raw)
			attr.Values = append(attr.Values, buildNode(fields, predPath, rec, tok, stringVals, depth))
		}
		if len(attr.Values) > 0 {
			attrs = append(attrs, attr)
		}
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Predicate.Slug < attrs[j].Predicate.Slug })
	return attrs
}

func buildNode(fields map[string]string, path []string, rec uuid.UUID, tok hierarchy.ValueToken, stringVals map[item.AttrKey][]string, depth int) result.AttributeNode {
	if tok.DataType == stringType {
		if pred, err := uuid.Parse(tok.URI); err == nil {
			if vals, ok := stringVals[item.AttrKey{Record: rec, Predicate: pred}]; ok && len(vals) > 0 {
				return result.Leaf(strings.Join(vals, "; "))
			}
		}
		// No stored text resolved; the label carries the indexed preview.
		return result.Leaf(tok.Label)
	}

	childPath := make([]string, 0, len(path)+1)
	childPath = append(childPath, path...)
	childPath = append(childPath, tok.Slug)
	children := buildAttributes(fields, childPath, rec, stringVals, depth+1)
	if len(children) > 0 {
		return result.Entity(toDescriptor(tok), children)
	}
	return result.Leaf(tok.Label)
}

func toDescriptor(tok hierarchy.ValueToken) result.Descriptor {
	return result.Descriptor{Label: tok.Label, Slug: tok.Slug, URI: tok.URI, DataType: tok.DataType}
}

// parseChain decodes a "---"-joined token chain into descriptors.
func parseChain(raw string) []result.Descriptor {
	if raw == "" {
		return nil
	}
	var chain []result.Descriptor
	for _, seg := range strings.Split(raw, hierarchy.PathDelim) {
		if seg == "" {
			continue
		}
		chain = append(chain, toDescriptor(hierarchy.ParseValue(seg)))
	}
	return chain
}

func parseSpan(doc result.Document) (tile.Span, bool) {
	lo, err1 := strconv.ParseFloat(doc.Field(schema.FieldChronoStart), 64)
	hi, err2 := strconv.ParseFloat(doc.Field(schema.FieldChronoStop), 64)
	if err1 != nil || err2 != nil || hi < lo {
		return tile.Span{}, false
	}
	return tile.Span{Earliest: lo, Latest: hi}, true
}

func parseLatLon(raw string) (lat, lon float64, ok bool) {
	a, b, found := strings.Cut(raw, ",")
	if !found {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
