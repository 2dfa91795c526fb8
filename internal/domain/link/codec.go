// Package link builds canonical, reproducible URLs for queries, facet
// options and paging. The canonical form doubles as the response id and the
// response-cache key, so serialization must be deterministic.
package link

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/trowelworks/strata/internal/domain/params"
)

// Codec serializes parameter sets into canonical URLs.
type Codec struct {
	baseURL string
	strip   map[string]bool
}

// NewCodec creates a link codec. stripKeys are parameters removed from every
// canonical serialization (transient state such as cursors).
func NewCodec(baseURL string, stripKeys ...string) *Codec {
	strip := make(map[string]bool, len(stripKeys))
	for _, k := range stripKeys {
		strip[k] = true
	}
	return &Codec{baseURL: strings.TrimRight(baseURL, "/"), strip: strip}
}

// Canonical serializes ps into its canonical URL: stripped keys removed,
// keys sorted, values within a key sorted, query-escaped. Re-serializing an
// already-canonical parameter map yields the identical string. Bare flags
// ("?flatten-attributes") serialize as "key=": present-with-empty-value is a
// distinct request state and must survive into the cache key.
func (c *Codec) Canonical(ps *params.Set) string {
	var b strings.Builder
	b.WriteString(c.baseURL)

	keys := ps.Keys()
	first := true
	for _, key := range keys {
		if c.strip[key] {
			continue
		}
		vals := append([]string(nil), ps.All(key)...)
		sort.Strings(vals)
		for _, val := range vals {
			if first {
				b.WriteByte('?')
				first = false
			} else {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

// WithSet derives the canonical URL of ps with key replaced by value.
// Paging state is reset: a narrowed query starts at its first page.
func (c *Codec) WithSet(ps *params.Set, key, value string) string {
	d := c.derive(ps)
	d.Set(key, value)
	return c.Canonical(d)
}

// WithAdded derives the canonical URL of ps with value appended to key.
func (c *Codec) WithAdded(ps *params.Set, key, value string) string {
	d := c.derive(ps)
	d.Add(key, value)
	return c.Canonical(d)
}

// WithoutValue derives the canonical URL of ps with one value removed from
// key. Removing the last value removes the key.
func (c *Codec) WithoutValue(ps *params.Set, key, value string) string {
	d := c.derive(ps)
	kept := make([]string, 0, len(d.All(key)))
	for _, v := range d.All(key) {
		if v != value {
			kept = append(kept, v)
		}
	}
	d.Del(key)
	for _, v := range kept {
		d.Add(key, v)
	}
	return c.Canonical(d)
}

// WithoutKey derives the canonical URL of ps with key removed entirely.
func (c *Codec) WithoutKey(ps *params.Set, key string) string {
	d := c.derive(ps)
	d.Del(key)
	return c.Canonical(d)
}

// WithOffset derives the canonical URL of ps pointing at a numeric offset.
func (c *Codec) WithOffset(ps *params.Set, start int) string {
	d := ps.Clone()
	d.Del(params.KeyCursor)
	if start <= 0 {
		d.Del(params.KeyStart)
	} else {
		d.Set(params.KeyStart, strconv.Itoa(start))
	}
	return c.Canonical(d)
}

func (c *Codec) derive(ps *params.Set) *params.Set {
	d := ps.Clone()
	d.Del(params.KeyStart)
	d.Del(params.KeyCursor)
	return d
}
