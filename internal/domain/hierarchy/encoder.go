// Package hierarchy encodes slash- or dash-delimited entity hierarchy paths
// into index field and value tokens, including OR expansion within a single
// hierarchy level.
package hierarchy

import (
	"strings"
)

// Delimiters used in client paths and index tokens.
const (
	PathDelim  = "---"
	OrDelim    = "||"
	SlashDelim = "/"
	TokenJoin  = "___"
)

// Expand splits path on hierDelim and expands OR alternatives. Each segment
// may contain orDelim-separated alternatives; the first such segment is
// expanded into one variant per alternative, holding the preceding prefix and
// the following suffix fixed. Segments in the suffix are left unexpanded.
// Empty segments are dropped. A path with no delimiter yields a single
// one-element variant; an effectively empty path yields no variants.
func Expand(path, hierDelim, orDelim string) [][]string {
	segments := splitClean(path, hierDelim)
	if len(segments) == 0 {
		return nil
	}

	for i, seg := range segments {
		alts := splitClean(seg, orDelim)
		if len(alts) < 2 {
			continue
		}
		variants := make([][]string, 0, len(alts))
		for _, alt := range alts {
			variant := make([]string, 0, len(segments))
			variant = append(variant, segments[:i]...)
			variant = append(variant, alt)
			variant = append(variant, segments[i+1:]...)
			variants = append(variants, variant)
		}
		return variants
	}

	return [][]string{segments}
}

// ExpandClientPath expands a client path parameter, accepting both the "---"
// hierarchy delimiter and plain "/" separators.
func ExpandClientPath(path string) [][]string {
	if strings.Contains(path, PathDelim) {
		return Expand(path, PathDelim, OrDelim)
	}
	return Expand(path, SlashDelim, OrDelim)
}

// JoinPath reassembles a segment list into a client path.
func JoinPath(segments []string) string {
	return strings.Join(segments, SlashDelim)
}

// AppendSegment extends a client path by one hierarchy level. The result must
// re-parse into the original segments plus the new one, so the join uses the
// "---" delimiter whenever the path already carries it.
func AppendSegment(path, segment string) string {
	if strings.Contains(path, PathDelim) {
		return path + PathDelim + segment
	}
	return path + SlashDelim + segment
}

func splitClean(s, delim string) []string {
	parts := strings.Split(s, delim)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Slug normalizes a path segment into an index-safe token: lower-cased,
// runs of non-alphanumerics collapsed to single hyphens.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FieldToken builds the facet field suffix for a resolved hierarchy prefix:
// each segment slugged and joined with "___". An empty segment list returns
// the empty string, meaning the root field.
func FieldToken(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	slugs := make([]string, 0, len(segments))
	for _, seg := range segments {
		if slug := Slug(seg); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	return strings.Join(slugs, TokenJoin)
}

// ValueToken is a decoded index facet value: the indexed form carries the
// entity slug, its data type, a stable identifier and a display label joined
// with "___".
type ValueToken struct {
	Slug     string
	DataType string
	URI      string
	Label    string
}

// EncodeValue serializes a ValueToken into its indexed form.
func EncodeValue(v ValueToken) string {
	return strings.Join([]string{v.Slug, v.DataType, v.URI, v.Label}, TokenJoin)
}

// ParseValue decodes an indexed facet value. Malformed values degrade
// gracefully: a bare value becomes both slug and label with the "id" type.
func ParseValue(raw string) ValueToken {
	parts := strings.SplitN(raw, TokenJoin, 4)
	switch len(parts) {
	case 4:
		return ValueToken{Slug: parts[0], DataType: parts[1], URI: parts[2], Label: parts[3]}
	case 3:
		return ValueToken{Slug: parts[0], DataType: parts[1], URI: parts[2], Label: parts[0]}
	case 2:
		return ValueToken{Slug: parts[0], DataType: parts[1], Label: parts[0]}
	default:
		return ValueToken{Slug: raw, DataType: "id", Label: raw}
	}
}
