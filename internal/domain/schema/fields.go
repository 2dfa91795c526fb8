// Package schema names the index fields the engine documents carry and maps
// hierarchy prefixes onto dynamic facet field names.
package schema

import "github.com/trowelworks/strata/internal/domain/hierarchy"

// Fixed document fields.
const (
	FieldUUID        = "uuid"
	FieldURI         = "uri"
	FieldLabel       = "label"
	FieldItemType    = "item_type"
	FieldText        = "text"
	FieldInterest    = "interest"
	FieldUpdated     = "updated"
	FieldPublished   = "published"
	FieldIcon        = "icon"
	FieldCategory    = "cat"
	FieldContext     = "context"
	FieldProperty    = "prop"
	FieldProject     = "project"
	FieldPerson      = "person"
	FieldObject      = "obj"
	FieldIdentifier  = "ident"
	FieldMedia       = "media"
	FieldKeyword     = "keyword"
	FieldGeo         = "geo" // lat/lon live in geo_lat / geo_lon
	FieldGeoTile     = "geotile"
	FieldGeoTileLow  = "geotile_low"
	FieldChronoTile  = "chronotile"
	FieldChronoLow   = "chronotile_low"
	FieldChronoStart = "chrono_start"
	FieldChronoStop  = "chrono_stop"
	FieldAttrPrefix  = "attr___"
	FieldGeoSource   = "geo_source"
	FieldContextPath = "context_path"
	FieldProjectPath = "project_path"
	FieldChildren    = "children"
)

// HierField builds the dynamic field name holding the children of a resolved
// hierarchy prefix: the base field for the root level, base___<token> below.
func HierField(base string, prefix []string) string {
	token := hierarchy.FieldToken(prefix)
	if token == "" {
		return base
	}
	return base + hierarchy.TokenJoin + token
}
