package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/trowelworks/strata/internal/db"
	"github.com/trowelworks/strata/internal/domain/query"
)

// Search runs a paginated document search via FT.SEARCH.
func (s *Store) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	queryStr := buildQuery(q.TextField, q.Terms, q.Filters)
	args := []string{q.Index, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	if q.HighlightField != "" {
		args = append(args,
			"SUMMARIZE", "FIELDS", "1", q.HighlightField, "FRAGS", "1", "LEN", "30",
			"HIGHLIGHT", "TAGS", "<em>", "</em>",
		)
	}
	if len(q.Sort) > 0 {
		dir := "ASC"
		if q.Sort[0].Desc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.Sort[0].Field, dir)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(db.OpSearch, err)
	}

	res, err := parseSearchResult(raw)
	if err != nil {
		return nil, err
	}
	if q.HighlightField != "" {
		for i := range res.Entries {
			res.Entries[i].Snippet = res.Entries[i].Fields[q.HighlightField]
		}
	}
	return res, nil
}

// CursorSearch runs (or continues) a cursor-paged listing via FT.AGGREGATE
// WITHCURSOR / FT.CURSOR READ.
func (s *Store) CursorSearch(ctx context.Context, q *db.CursorQuery) (*db.SearchResult, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	var raw []rueidis.RedisMessage
	var err error
	if q.Cursor == "" {
		queryStr := buildQuery(q.TextField, q.Terms, q.Filters)
		args := []string{q.Index, queryStr}
		if len(q.ReturnFields) > 0 {
			args = append(args, "LOAD", strconv.Itoa(len(q.ReturnFields)))
			for _, f := range q.ReturnFields {
				args = append(args, "@"+f)
			}
		}
		args = append(args, "WITHCURSOR", "COUNT", strconv.Itoa(q.Rows), "DIALECT", "2")
		cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
		raw, err = s.do(ctx, cmd).ToArray()
	} else {
		cmd := s.b().Arbitrary("FT.CURSOR").Args("READ", q.Index, q.Cursor, "COUNT", strconv.Itoa(q.Rows)).Build()
		raw, err = s.do(ctx, cmd).ToArray()
	}
	if err != nil {
		if isCursorGone(err) {
			return nil, db.ErrCursorExpired
		}
		return nil, classify(db.OpCursor, err)
	}

	// Reply shape: [aggregate-result, cursor-id]
	if len(raw) < 2 {
		return &db.SearchResult{}, nil
	}
	rows, err := raw[0].ToArray()
	if err != nil {
		return nil, fmt.Errorf("parse cursor result: %w", err)
	}
	res, err := parseAggregateRows(rows)
	if err != nil {
		return nil, err
	}
	cursorID, err := raw[1].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse cursor id: %w", err)
	}

	out := &db.SearchResult{Total: res.total}
	for _, row := range res.rows {
		out.Entries = append(out.Entries, db.SearchEntry{Fields: row})
	}
	if cursorID != 0 {
		out.Cursor = strconv.FormatInt(cursorID, 10)
	}
	return out, nil
}

// Facet returns distinct value counts for one field via FT.AGGREGATE
// GROUPBY/REDUCE.
func (s *Store) Facet(ctx context.Context, q *db.FacetQuery) (*db.FacetResult, error) {
	if q.Index == "" || q.Field == "" {
		return nil, fmt.Errorf("index and field are required")
	}

	queryStr := buildQuery(q.TextField, q.Terms, q.Filters)
	args := []string{
		q.Index, queryStr,
		"GROUPBY", "1", "@" + q.Field,
		"REDUCE", "COUNT", "0", "AS", "count",
		"SORTBY", "4", "@count", "DESC", "@" + q.Field, "ASC",
	}
	if q.Limit > 0 {
		args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit))
	}
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(db.OpAggregate, err)
	}

	res, err := parseAggregateRows(raw)
	if err != nil {
		return nil, err
	}

	out := &db.FacetResult{Field: q.Field}
	for _, row := range res.rows {
		count, _ := strconv.Atoi(row["count"])
		out.Values = append(out.Values, db.FacetValue{Value: row[q.Field], Count: count})
	}
	return out, nil
}

// RangeFacet returns bucketed counts over a numeric field via an APPLY
// bucket expression.
func (s *Store) RangeFacet(ctx context.Context, q *db.RangeFacetQuery) (*db.FacetResult, error) {
	if q.Index == "" || q.Field == "" {
		return nil, fmt.Errorf("index and field are required")
	}
	if q.Gap <= 0 {
		return nil, fmt.Errorf("bucket gap must be positive")
	}

	queryStr := buildQuery(q.TextField, q.Terms, q.Filters)
	expr := fmt.Sprintf("floor((@%s - %g) / %g)", q.Field, q.Start, q.Gap)
	args := []string{
		q.Index, queryStr,
		"APPLY", expr, "AS", "bucket",
		"GROUPBY", "1", "@bucket",
		"REDUCE", "COUNT", "0", "AS", "count",
		"SORTBY", "2", "@bucket", "ASC",
	}
	if q.Buckets > 0 {
		args = append(args, "LIMIT", "0", strconv.Itoa(q.Buckets))
	}
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(db.OpAggregate, err)
	}

	res, err := parseAggregateRows(raw)
	if err != nil {
		return nil, err
	}

	out := &db.FacetResult{Field: q.Field}
	for _, row := range res.rows {
		count, _ := strconv.Atoi(row["count"])
		out.Values = append(out.Values, db.FacetValue{Value: row["bucket"], Count: count})
	}
	return out, nil
}

// Stats returns min/max/mean/count of a numeric field via a single
// GROUPBY 0 aggregation.
func (s *Store) Stats(ctx context.Context, q *db.StatsQuery) (*db.FieldStats, error) {
	if q.Index == "" || q.Field == "" {
		return nil, fmt.Errorf("index and field are required")
	}

	queryStr := buildQuery(q.TextField, q.Terms, q.Filters)
	args := []string{
		q.Index, queryStr,
		"GROUPBY", "0",
		"REDUCE", "MIN", "1", "@" + q.Field, "AS", "min",
		"REDUCE", "MAX", "1", "@" + q.Field, "AS", "max",
		"REDUCE", "AVG", "1", "@" + q.Field, "AS", "mean",
		"REDUCE", "COUNT", "0", "AS", "count",
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(db.OpAggregate, err)
	}

	res, err := parseAggregateRows(raw)
	if err != nil {
		return nil, err
	}
	if len(res.rows) == 0 {
		return &db.FieldStats{}, nil
	}

	row := res.rows[0]
	stats := &db.FieldStats{}
	stats.Min, _ = strconv.ParseFloat(row["min"], 64)
	stats.Max, _ = strconv.ParseFloat(row["max"], 64)
	stats.Mean, _ = strconv.ParseFloat(row["mean"], 64)
	stats.Count, _ = strconv.Atoi(row["count"])
	return stats, nil
}

// --- Result parsing ---

func parseSearchResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{Total: 0}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

type aggregateResult struct {
	total int
	rows  []map[string]string
}

func parseAggregateRows(raw []rueidis.RedisMessage) (aggregateResult, error) {
	if len(raw) == 0 {
		return aggregateResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return aggregateResult{}, fmt.Errorf("parse total: %w", err)
	}

	res := aggregateResult{total: int(total)}
	// 1-stride: [total, row1, row2, ...], each row a name/value pair array.
	for i := 1; i < len(raw); i++ {
		pairs, err := raw[i].ToArray()
		if err != nil {
			continue
		}
		res.rows = append(res.rows, parseFieldPairs(pairs))
	}
	return res, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// classify maps engine error replies onto the package sentinels; everything
// else is wrapped with the failing operation.
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such index") || strings.Contains(msg, "unknown index") {
		return db.ErrIndexNotFound
	}
	return &db.Error{Op: op, Err: err}
}

func isCursorGone(err error) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	return strings.Contains(msg, "cursor not found") || strings.Contains(msg, "cursor expired")
}

// --- Query building ---

// buildQuery translates filter clauses and full-text term groups into an
// FT query string. No clauses and no terms means match-all.
func buildQuery(textField string, terms []string, filters []query.Clause) string {
	var parts []string

	for _, c := range filters {
		if clause := buildClause(c); clause != "" {
			parts = append(parts, clause)
		}
	}
	if text := buildTextClause(textField, terms); text != "" {
		parts = append(parts, text)
	}

	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func buildClause(c query.Clause) string {
	switch {
	case len(c.Or()) > 0:
		alts := make([]string, 0, len(c.Or()))
		for _, alt := range c.Or() {
			if s := buildClause(alt); s != "" {
				alts = append(alts, s)
			}
		}
		if len(alts) == 0 {
			return ""
		}
		return "(" + strings.Join(alts, " | ") + ")"
	case c.IsPrefix():
		return fmt.Sprintf("@%s:{%s*}", c.Field(), tagEscaper.Replace(c.Prefix()))
	case c.Range() != nil:
		return buildNumericClause(c.Field(), *c.Range())
	case c.BBox() != nil:
		b := c.BBox()
		return fmt.Sprintf("@%s_lon:[%g %g] @%s_lat:[%g %g]",
			c.Field(), b.West, b.East, c.Field(), b.South, b.North)
	}
	return ""
}

func buildNumericClause(field string, r query.Range) string {
	minBound := "-inf"
	maxBound := "+inf"
	if r.Min != nil {
		minBound = fmt.Sprintf("%g", *r.Min)
	}
	if r.Max != nil {
		maxBound = fmt.Sprintf("%g", *r.Max)
	}
	return fmt.Sprintf("@%s:[%s %s]", field, minBound, maxBound)
}

func buildTextClause(field string, terms []string) string {
	if field == "" || len(terms) == 0 {
		return ""
	}
	groups := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.ContainsAny(term, " \t") {
			groups = append(groups, `"`+phraseEscaper.Replace(term)+`"`)
		} else {
			groups = append(groups, queryEscaper.Replace(term))
		}
	}
	if len(groups) == 0 {
		return ""
	}
	return fmt.Sprintf("@%s:(%s)", field, strings.Join(groups, " "))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"*", "\\*",
	"/", "\\/",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

// phraseEscaper keeps spaces so quoted phrases stay phrases.
var phraseEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
)
