package result

import (
	"encoding/json"

	"github.com/trowelworks/strata/internal/domain/tile"
)

// Option is one clickable facet value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
	URL   string `json:"url,omitempty"`
	// Geometry carries GeoJSON for geo tile options (polygon or point per
	// client preference).
	Geometry json.RawMessage `json:"geometry,omitempty"`
	// Span is set for chronology tile options.
	Span *tile.Span `json:"span,omitempty"`
}

// Facet is a standard facet block: a field with its value options.
type Facet struct {
	Field   string   `json:"field"`
	Label   string   `json:"label,omitempty"`
	Options []Option `json:"options"`
}

// PagingBlock carries the paging state of a response. The links are empty
// for cursor-paged responses; NextCursor is empty for offset-paged ones.
type PagingBlock struct {
	Start      int    `json:"start"`
	Rows       int    `json:"rows"`
	TotalFound int    `json:"total_found"`
	First      string `json:"first,omitempty"`
	Previous   string `json:"previous,omitempty"`
	Next       string `json:"next,omitempty"`
	Last       string `json:"last,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// SortOption is an available or active sort order with its apply link.
type SortOption struct {
	Field  string `json:"field"`
	Label  string `json:"label"`
	Desc   bool   `json:"desc"`
	Active bool   `json:"active"`
	URL    string `json:"url,omitempty"`
}

// ActiveFilter is a currently applied filter with its removal link.
type ActiveFilter struct {
	Param     string `json:"param"`
	Value     string `json:"value"`
	Label     string `json:"label,omitempty"`
	RemoveURL string `json:"remove_url"`
}

// ProjectSummary is the enrichment block shown when a single project filter
// is active.
type ProjectSummary struct {
	Descriptor  Descriptor `json:"descriptor"`
	Description string     `json:"description,omitempty"`
	BannerURI   string     `json:"banner_uri,omitempty"`
}

// Response is the full client result: paging, sorts, filters, facets and
// the record listing (or bare uuid/uri lists per requested response type).
type Response struct {
	ID            string          `json:"id"`
	Paging        *PagingBlock    `json:"paging,omitempty"`
	Sorts         []SortOption    `json:"sorts,omitempty"`
	Filters       []ActiveFilter  `json:"filters,omitempty"`
	Facets        []Facet         `json:"facets,omitempty"`
	GeoFacet      *Facet          `json:"geo_facet,omitempty"`
	ChronoFacet   *Facet          `json:"chrono_facet,omitempty"`
	RangeFacets   []Facet         `json:"range_facets,omitempty"`
	Project       *ProjectSummary `json:"project,omitempty"`
	Records       []Record        `json:"records,omitempty"`
	UUIDs         []string        `json:"uuids,omitempty"`
	URIs          []string        `json:"uris,omitempty"`
	Unresolved    int             `json:"unresolved_filters,omitempty"`
	RawEngineJSON json.RawMessage `json:"raw,omitempty"`
}
