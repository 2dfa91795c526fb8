// Package params normalizes a client's raw query parameters into a typed,
// multi-valued parameter set.
package params

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Recognized client parameter names.
const (
	KeyFullText    = "q"
	KeyItemType    = "type"
	KeyPath        = "path"
	KeyCategory    = "cat"
	KeyProperty    = "prop"
	KeyProject     = "proj"
	KeyIdentifier  = "id"
	KeyObject      = "obj"
	KeyPerson      = "person"
	KeyBBox        = "bbox"
	KeyGeoTile     = "geotile"
	KeyGeoDeep     = "geodeep"
	KeyGeoPoint    = "geopoint"
	KeyChronoTile  = "chronotile"
	KeyChronoDeep  = "chronodeep"
	KeyChronoStart = "chronostart"
	KeyChronoStop  = "chronostop"
	KeySort        = "sort"
	KeyStart       = "start"
	KeyRows        = "rows"
	KeyCursor      = "cursor"
	KeyResponse    = "response"
	KeyAttributes  = "attributes"
	KeyFlatten     = "flatten-attributes"
	KeyNested      = "nest-attributes"
)

// Response-type tokens selecting which result sections are computed.
const (
	ResponseMetadata    = "metadata"
	ResponseRecords     = "records"
	ResponseFacets      = "facet"
	ResponseGeoFacets   = "geo-facet"
	ResponseChronoFacet = "chrono-facet"
	ResponsePropFacets  = "prop-facet"
	ResponseUUIDList    = "uuid"
	ResponseURIList     = "uri"
	ResponseRaw         = "raw"
)

// Set is an ordered, multi-valued parameter map. Values are kept exactly as
// received: duplicates are meaningful for OR-group expansion and are never
// deduplicated here.
type Set struct {
	values map[string][]string
}

// New creates an empty parameter set.
func New() *Set {
	return &Set{values: make(map[string][]string)}
}

// FromValues normalizes url.Values into a Set. Empty values are kept so that
// bare flags ("?flatten-attributes") register as present.
func FromValues(v url.Values) *Set {
	s := New()
	for key, vals := range v {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		for _, val := range vals {
			s.values[key] = append(s.values[key], strings.TrimSpace(val))
		}
	}
	return s
}

// Add appends a value for key.
func (s *Set) Add(key, value string) {
	s.values[key] = append(s.values[key], value)
}

// Set replaces all values for key.
func (s *Set) Set(key, value string) {
	s.values[key] = []string{value}
}

// Del removes all values for key.
func (s *Set) Del(key string) {
	delete(s.values, key)
}

// Has reports whether key is present with at least one value.
func (s *Set) Has(key string) bool {
	return len(s.values[key]) > 0
}

// Get returns the first value for key.
func (s *Set) Get(key string) (string, bool) {
	vals := s.values[key]
	if len(vals) == 0 || vals[0] == "" {
		return "", false
	}
	return vals[0], true
}

// All returns every value for key, in receipt order.
func (s *Set) All(key string) []string {
	return s.values[key]
}

// Int parses the first value for key as an integer, falling back to def on
// absence or parse failure, clamping to [0, max] when max > 0.
func (s *Set) Int(key string, def, max int) int {
	raw, ok := s.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < 0 {
		n = 0
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// Float parses the first value for key as a float64.
func (s *Set) Float(key string) (float64, bool) {
	raw, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool reports whether key is present and not explicitly disabled.
func (s *Set) Bool(key string) bool {
	vals, ok := s.values[key]
	if !ok {
		return false
	}
	if len(vals) == 0 || vals[0] == "" {
		return true
	}
	switch strings.ToLower(vals[0]) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

// Keys returns all present parameter names, sorted.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := New()
	for k, vals := range s.values {
		c.values[k] = append([]string(nil), vals...)
	}
	return c
}

// Values converts the set back to url.Values.
func (s *Set) Values() url.Values {
	v := make(url.Values, len(s.values))
	for k, vals := range s.values {
		v[k] = append([]string(nil), vals...)
	}
	return v
}

// ResponseTypes returns the requested response-type token set. An absent or
// empty response parameter selects the full default surface.
func (s *Set) ResponseTypes() ResponseTypes {
	raw, ok := s.Get(KeyResponse)
	if !ok {
		return defaultResponseTypes()
	}
	rt := ResponseTypes{tokens: make(map[string]bool)}
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			rt.tokens[tok] = true
		}
	}
	if len(rt.tokens) == 0 {
		return defaultResponseTypes()
	}
	return rt
}

// ResponseTypes is the set of result sections the client asked for.
type ResponseTypes struct {
	tokens map[string]bool
}

func defaultResponseTypes() ResponseTypes {
	return ResponseTypes{tokens: map[string]bool{
		ResponseMetadata:    true,
		ResponseRecords:     true,
		ResponseFacets:      true,
		ResponseGeoFacets:   true,
		ResponseChronoFacet: true,
		ResponsePropFacets:  true,
	}}
}

// Has reports whether a token was requested.
func (rt ResponseTypes) Has(token string) bool {
	return rt.tokens[token]
}

// NeedsFacets reports whether any facet section was requested.
func (rt ResponseTypes) NeedsFacets() bool {
	return rt.tokens[ResponseFacets] || rt.tokens[ResponseGeoFacets] ||
		rt.tokens[ResponseChronoFacet] || rt.tokens[ResponsePropFacets]
}

// NeedsRecords reports whether any record section was requested.
func (rt ResponseTypes) NeedsRecords() bool {
	return rt.tokens[ResponseRecords] || rt.tokens[ResponseUUIDList] || rt.tokens[ResponseURIList]
}
