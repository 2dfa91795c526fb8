// Package item holds the lookup types served by the item repository:
// attribute values, per-project categories and project summaries. These
// enrich index documents during result assembly; the repository that
// provides them consumes an external schema it does not own.
package item

import "github.com/google/uuid"

// AttrKey addresses one string attribute value: the record that carries it
// and the predicate it answers.
type AttrKey struct {
	Record    uuid.UUID
	Predicate uuid.UUID
}

// Category is one node of a project's item-class hierarchy. Path is the
// full slug path from the root ("find---pottery---amphora"); a category is
// more specific than another when its path extends the other's.
type Category struct {
	Project uuid.UUID
	Path    string
	Slug    string
	Label   string
	URI     string
	Icon    string
}

// Project is the summary block of one publishing project.
type Project struct {
	UUID        uuid.UUID
	Slug        string
	Label       string
	URI         string
	Description string
	BannerURI   string
}
