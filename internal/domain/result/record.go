// Package result holds the transient view models assembled from index
// documents: records with attribute trees, facet blocks and the response
// envelope. Nothing here is persisted.
package result

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/trowelworks/strata/internal/domain/tile"
)

// MaxAttributeDepth bounds attribute-tree recursion. Index documents are
// built from a graph; the guard keeps a pathological cycle from recursing
// forever.
const MaxAttributeDepth = 10

// Descriptor identifies an entity: display label, stable slug, canonical
// URI and data type.
type Descriptor struct {
	Label    string `json:"label"`
	Slug     string `json:"slug,omitempty"`
	URI      string `json:"uri,omitempty"`
	DataType string `json:"type,omitempty"`
}

// AttributeNode is the tagged attribute-value variant: either a leaf value
// or an entity that is itself a subject of deeper attributes.
type AttributeNode struct {
	leaf   string
	entity *EntityNode
}

// EntityNode is an attribute value with its own nested attributes.
type EntityNode struct {
	Descriptor Descriptor  `json:"descriptor"`
	Children   []Attribute `json:"children,omitempty"`
}

// Leaf creates a leaf attribute value.
func Leaf(value string) AttributeNode {
	return AttributeNode{leaf: value}
}

// Entity creates an entity attribute value.
func Entity(d Descriptor, children []Attribute) AttributeNode {
	return AttributeNode{entity: &EntityNode{Descriptor: d, Children: children}}
}

// IsLeaf reports whether the node is a leaf value.
func (n AttributeNode) IsLeaf() bool { return n.entity == nil }

// LeafValue returns the leaf value; for entities, the descriptor label.
func (n AttributeNode) LeafValue() string {
	if n.entity != nil {
		return n.entity.Descriptor.Label
	}
	return n.leaf
}

// EntityValue returns the entity node, nil for leaves.
func (n AttributeNode) EntityValue() *EntityNode { return n.entity }

// MarshalJSON renders leaves as bare strings and entities as objects.
func (n AttributeNode) MarshalJSON() ([]byte, error) {
	if n.entity != nil {
		return json.Marshal(n.entity)
	}
	return json.Marshal(n.leaf)
}

// Attribute pairs a predicate descriptor with its values.
type Attribute struct {
	Predicate Descriptor      `json:"predicate"`
	Values    []AttributeNode `json:"values"`
}

// Flatten renders the attribute's values as one delimited string.
func (a Attribute) Flatten(delim string) string {
	parts := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		if s := v.LeafValue(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, delim)
}

// Record is the client view of one index document. Geometry is GeoJSON.
type Record struct {
	UUID       uuid.UUID       `json:"uuid"`
	URI        string          `json:"uri,omitempty"`
	Label      string          `json:"label"`
	ItemType   string          `json:"item_type,omitempty"`
	Category   Descriptor      `json:"category,omitempty"`
	Icon       string          `json:"icon,omitempty"`
	Context    []Descriptor    `json:"context,omitempty"`
	Projects   []Descriptor    `json:"projects,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	Span       *tile.Span      `json:"span,omitempty"`
	Attributes []Attribute     `json:"attributes,omitempty"`
	Snippet    string          `json:"snippet,omitempty"`
	Children   int             `json:"children,omitempty"`
}
