// Package query is the structured representation of an index-engine query:
// filters, facet fields with their client-parameter associations, stats
// fields, sort clauses and paging. It is engine-agnostic; the db layer
// translates it into engine syntax.
package query

import "fmt"

// Paging is the tagged paging variant: numeric offset or opaque cursor.
// An engine query can carry exactly one of the two.
type Paging interface {
	Rows() int
	isPaging()
}

// Offset pages by numeric start position.
type Offset struct {
	Start    int
	RowCount int
}

// Rows returns the page size.
func (o Offset) Rows() int { return o.RowCount }

func (Offset) isPaging() {}

// Cursor pages by opaque engine cursor token. An empty token opens a new
// cursor.
type Cursor struct {
	Token    string
	RowCount int
}

// Rows returns the page size.
func (c Cursor) Rows() int { return c.RowCount }

func (Cursor) isPaging() {}

// Clause is a single filter clause against one index field, or a
// disjunction of such clauses.
type Clause struct {
	field  string
	prefix string
	rng    *Range
	bbox   *BBox
	or     []Clause
}

// Range is a numeric interval, nil bounds open.
type Range struct {
	Min *float64
	Max *float64
}

// BBox is a geospatial bounding box in degrees.
type BBox struct {
	West, South, East, North float64
}

// NewPrefix creates a prefix-match clause (tile containment).
func NewPrefix(field, prefix string) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("filter field is required")
	}
	if prefix == "" {
		return Clause{}, fmt.Errorf("prefix is required for field %q", field)
	}
	return Clause{field: field, prefix: prefix}, nil
}

// NewRange creates a numeric range clause. At least one bound is required.
func NewRange(field string, min, max *float64) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("filter field is required")
	}
	if min == nil && max == nil {
		return Clause{}, fmt.Errorf("range on field %q needs at least one bound", field)
	}
	if min != nil && max != nil && *min > *max {
		return Clause{}, fmt.Errorf("inverted range on field %q", field)
	}
	return Clause{field: field, rng: &Range{Min: min, Max: max}}, nil
}

// NewBBox creates a bounding-box clause over the engine's lat/lon fields.
func NewBBox(field string, b BBox) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("filter field is required")
	}
	if b.West > b.East || b.South > b.North {
		return Clause{}, fmt.Errorf("inverted bounding box")
	}
	return Clause{field: field, bbox: &b}, nil
}

// NewOr combines clauses into a disjunction: a record matches when any
// alternative matches. Hierarchy OR expansion produces alternatives that may
// target different fields. A single alternative collapses to itself.
func NewOr(alts ...Clause) (Clause, error) {
	if len(alts) == 0 {
		return Clause{}, fmt.Errorf("disjunction needs at least one alternative")
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return Clause{or: alts}, nil
}

// Field returns the index field the clause applies to.
func (c Clause) Field() string { return c.field }

// Prefix returns the prefix-match value.
func (c Clause) Prefix() string { return c.prefix }

// Range returns the numeric range, nil for non-range clauses.
func (c Clause) Range() *Range { return c.rng }

// BBox returns the bounding box, nil for non-bbox clauses.
func (c Clause) BBox() *BBox { return c.bbox }

// IsPrefix reports whether this is a prefix clause.
func (c Clause) IsPrefix() bool { return c.prefix != "" }

// Or returns the disjunction alternatives, nil for simple clauses.
func (c Clause) Or() []Clause { return c.or }

// FacetField identifies one index facet field together with the client
// parameter and raw value that produced it. The association is what makes
// drill-down links reproducible: option URLs are built against the literal
// raw client value, never the expanded variants.
type FacetField struct {
	Field      string
	Limit      int
	Param      string
	RawValue   string
	PathPrefix []string
}

// StatsField names a numeric or date field needing a stats prequery.
type StatsField struct {
	Field  string
	IsDate bool
}

// RangeFacet asks the engine for bucketed counts over a numeric field.
// Boundaries come from a stats prequery.
type RangeFacet struct {
	Field   string
	Start   float64
	Gap     float64
	Buckets int
}

// SortClause orders results by one field.
type SortClause struct {
	Field string
	Desc  bool
}

// ComposedQuery is the full translation of a client request into an engine
// query. Exactly one Paging variant is carried.
type ComposedQuery struct {
	Terms        []string
	Highlight    bool
	Filters      []Clause
	FacetFields  []FacetField
	RangeFacets  []RangeFacet
	StatsFields  []StatsField
	Sort         []SortClause
	Paging       Paging
	ReturnFields []string
}
