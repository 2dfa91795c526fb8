package db

import "github.com/trowelworks/strata/internal/domain/query"

// SearchQuery is the input for a paginated document search.
type SearchQuery struct {
	Index string
	// TextField scopes the full-text terms; Terms are pre-split groups
	// where a group containing whitespace is an exact phrase.
	TextField string
	Terms     []string
	Filters   []query.Clause
	Offset    int
	Limit     int
	Sort      []query.SortClause
	// ReturnFields limits the returned document fields; empty returns all.
	ReturnFields []string
	// HighlightField, when set, asks the engine for a highlighted snippet
	// of that field.
	HighlightField string
}

// CursorQuery is the input for cursor-paged listing. An empty Cursor opens
// a new cursor; a non-empty one continues it.
type CursorQuery struct {
	Index        string
	TextField    string
	Terms        []string
	Filters      []query.Clause
	Cursor       string
	Rows         int
	ReturnFields []string
}

// FacetQuery asks for distinct value counts of one field.
type FacetQuery struct {
	Index     string
	TextField string
	Terms     []string
	Filters   []query.Clause
	Field     string
	Limit     int
}

// RangeFacetQuery asks for bucketed counts over a numeric field.
type RangeFacetQuery struct {
	Index     string
	TextField string
	Terms     []string
	Filters   []query.Clause
	Field     string
	Start     float64
	Gap       float64
	Buckets   int
}

// StatsQuery asks for min/max/mean/count of a numeric field.
type StatsQuery struct {
	Index     string
	TextField string
	Terms     []string
	Filters   []query.Clause
	Field     string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
	// Cursor is the continuation token of a cursor search; empty when the
	// cursor is exhausted or the query was offset-paged.
	Cursor string
}

// SearchEntry is a single document hit.
type SearchEntry struct {
	Key     string
	Fields  map[string]string
	Snippet string
}

// FacetValue is one raw (value, count) pair.
type FacetValue struct {
	Value string
	Count int
}

// FacetResult is the output of a facet or range-facet query.
type FacetResult struct {
	Field  string
	Values []FacetValue
}

// FieldStats is the output of a stats query.
type FieldStats struct {
	Min   float64
	Max   float64
	Mean  float64
	Count int
}
