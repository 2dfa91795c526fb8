package result

// Document is one raw index hit before assembly: the returned field map
// plus an optional highlighted snippet.
type Document struct {
	Fields  map[string]string
	Snippet string
}

// Field returns a document field value, empty when absent.
func (d Document) Field(name string) string { return d.Fields[name] }

// Page is a raw index response page.
type Page struct {
	Total     int
	Cursor    string
	Documents []Document
}

// FacetCount is one raw facet (value, count) pair.
type FacetCount struct {
	Value string
	Count int
}

// Stats summarizes a numeric field over the current result set.
type Stats struct {
	Min   float64
	Max   float64
	Mean  float64
	Count int
}
