package index

import (
	"context"
	"errors"
	"testing"

	"github.com/trowelworks/strata/internal/db"
	"github.com/trowelworks/strata/internal/domain"
	"github.com/trowelworks/strata/internal/domain/query"
)

type mockStore struct {
	searchQ   *db.SearchQuery
	searchRes *db.SearchResult
	searchErr error

	cursorQ   *db.CursorQuery
	cursorRes *db.SearchResult

	facetQ   *db.FacetQuery
	facetRes *db.FacetResult

	rangeQ   *db.RangeFacetQuery
	rangeRes *db.FacetResult

	statsQ   *db.StatsQuery
	statsRes *db.FieldStats
	statsErr error
}

func (m *mockStore) Search(_ context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	m.searchQ = q
	return m.searchRes, m.searchErr
}

func (m *mockStore) CursorSearch(_ context.Context, q *db.CursorQuery) (*db.SearchResult, error) {
	m.cursorQ = q
	return m.cursorRes, nil
}

func (m *mockStore) Facet(_ context.Context, q *db.FacetQuery) (*db.FacetResult, error) {
	m.facetQ = q
	return m.facetRes, nil
}

func (m *mockStore) RangeFacet(_ context.Context, q *db.RangeFacetQuery) (*db.FacetResult, error) {
	m.rangeQ = q
	return m.rangeRes, nil
}

func (m *mockStore) Stats(_ context.Context, q *db.StatsQuery) (*db.FieldStats, error) {
	m.statsQ = q
	return m.statsRes, m.statsErr
}

func TestQueryOffsetPaging(t *testing.T) {
	ms := &mockStore{searchRes: &db.SearchResult{
		Total: 42,
		Entries: []db.SearchEntry{
			{Key: "rec:1", Fields: map[string]string{"uuid": "a"}, Snippet: "a <em>find</em>"},
			{Key: "rec:2", Fields: map[string]string{"uuid": "b"}},
		},
	}}
	repo := New(ms, "records")

	cq := &query.ComposedQuery{
		Terms:     []string{"amphora"},
		Highlight: true,
		Paging:    query.Offset{Start: 20, RowCount: 10},
		Sort:      []query.SortClause{{Field: "interest", Desc: true}},
	}

	page, err := repo.Query(context.Background(), cq)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if page.Total != 42 {
		t.Errorf("Total = %d, want 42", page.Total)
	}
	if len(page.Documents) != 2 {
		t.Fatalf("got %d documents, want 2", len(page.Documents))
	}
	if page.Documents[0].Snippet != "a <em>find</em>" {
		t.Errorf("Snippet = %q", page.Documents[0].Snippet)
	}
	if ms.searchQ == nil {
		t.Fatal("offset paging must use Search")
	}
	if ms.searchQ.Offset != 20 || ms.searchQ.Limit != 10 {
		t.Errorf("paging = (%d, %d), want (20, 10)", ms.searchQ.Offset, ms.searchQ.Limit)
	}
	if ms.searchQ.HighlightField == "" {
		t.Error("highlight requested but HighlightField is empty")
	}
	if ms.cursorQ != nil {
		t.Error("offset paging must not open a cursor")
	}
}

func TestQueryCursorPaging(t *testing.T) {
	ms := &mockStore{cursorRes: &db.SearchResult{Total: 3, Cursor: "9913"}}
	repo := New(ms, "records")

	cq := &query.ComposedQuery{Paging: query.Cursor{Token: "1181", RowCount: 500}}
	page, err := repo.Query(context.Background(), cq)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if page.Cursor != "9913" {
		t.Errorf("Cursor = %q, want continuation token passed through", page.Cursor)
	}
	if ms.cursorQ == nil {
		t.Fatal("cursor paging must use CursorSearch")
	}
	if ms.cursorQ.Cursor != "1181" || ms.cursorQ.Rows != 500 {
		t.Errorf("cursor query = (%q, %d)", ms.cursorQ.Cursor, ms.cursorQ.Rows)
	}
	if ms.searchQ != nil {
		t.Error("cursor paging must not run an offset search")
	}
}

func TestQueryNoPaging(t *testing.T) {
	repo := New(&mockStore{}, "records")
	if _, err := repo.Query(context.Background(), &query.ComposedQuery{}); err == nil {
		t.Fatal("expected error for query without paging")
	}
}

func TestQueryPropagatesEngineError(t *testing.T) {
	sentinel := errors.New("engine down")
	repo := New(&mockStore{searchErr: sentinel}, "records")

	_, err := repo.Query(context.Background(), &query.ComposedQuery{Paging: query.Offset{RowCount: 20}})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want wrapped engine error", err)
	}
	if !errors.Is(err, domain.ErrEngineUnavailable) {
		t.Errorf("error = %v, want tagged unavailable", err)
	}
}

func TestQueryKeepsDriverSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"missing index", db.ErrIndexNotFound, db.ErrIndexNotFound},
		{"expired cursor", db.ErrCursorExpired, db.ErrCursorExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := New(&mockStore{searchErr: tt.err}, "records")
			_, err := repo.Query(context.Background(), &query.ComposedQuery{Paging: query.Offset{RowCount: 20}})
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v passed through", err, tt.sentinel)
			}
			if errors.Is(err, domain.ErrEngineUnavailable) {
				t.Errorf("error = %v, sentinel must not be retagged", err)
			}
		})
	}
}

func TestFacet(t *testing.T) {
	ms := &mockStore{facetRes: &db.FacetResult{
		Field: "item_type",
		Values: []db.FacetValue{
			{Value: "object___id___http://x/object___Object", Count: 7},
			{Value: "site___id___http://x/site___Site", Count: 3},
		},
	}}
	repo := New(ms, "records")

	counts, err := repo.Facet(context.Background(), &query.ComposedQuery{}, "item_type", 200)
	if err != nil {
		t.Fatalf("Facet() error: %v", err)
	}
	if len(counts) != 2 || counts[0].Count != 7 {
		t.Errorf("counts = %+v", counts)
	}
	if ms.facetQ.Field != "item_type" || ms.facetQ.Limit != 200 {
		t.Errorf("facet query = %+v", ms.facetQ)
	}
}

func TestRangeFacet(t *testing.T) {
	ms := &mockStore{rangeRes: &db.FacetResult{Values: []db.FacetValue{{Value: "0", Count: 5}}}}
	repo := New(ms, "records")

	rf := query.RangeFacet{Field: "chrono_start", Start: -2000, Gap: 250, Buckets: 16}
	counts, err := repo.RangeFacet(context.Background(), &query.ComposedQuery{}, rf)
	if err != nil {
		t.Fatalf("RangeFacet() error: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("got %d buckets, want 1", len(counts))
	}
	if ms.rangeQ.Start != -2000 || ms.rangeQ.Gap != 250 || ms.rangeQ.Buckets != 16 {
		t.Errorf("range query = %+v", ms.rangeQ)
	}
}

func TestStats(t *testing.T) {
	ms := &mockStore{statsRes: &db.FieldStats{Min: -5000, Max: 1900, Mean: -120.5, Count: 310}}
	repo := New(ms, "records")

	st, err := repo.Stats(context.Background(), &query.ComposedQuery{}, "chrono_start")
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Min != -5000 || st.Max != 1900 || st.Count != 310 {
		t.Errorf("stats = %+v", st)
	}
}
