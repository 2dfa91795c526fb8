package redis

import (
	"errors"
	"strings"
	"testing"

	"github.com/trowelworks/strata/internal/db"
	"github.com/trowelworks/strata/internal/domain/query"
)

func TestClassify(t *testing.T) {
	if err := classify(db.OpSearch, errors.New("no such index strata")); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("missing index not classified: %v", err)
	}
	if err := classify(db.OpSearch, errors.New("Unknown Index name")); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("missing index not classified: %v", err)
	}
	plain := classify(db.OpAggregate, errors.New("timeout"))
	if errors.Is(plain, db.ErrIndexNotFound) {
		t.Errorf("unrelated error misclassified: %v", plain)
	}
	var de *db.Error
	if !errors.As(plain, &de) || de.Op != db.OpAggregate {
		t.Errorf("unrelated error lost its operation tag: %v", plain)
	}
}

func mustPrefix(t *testing.T, field, prefix string) query.Clause {
	t.Helper()
	c, err := query.NewPrefix(field, prefix)
	if err != nil {
		t.Fatalf("NewPrefix: %v", err)
	}
	return c
}

func TestBuildQuery_MatchAll(t *testing.T) {
	if got := buildQuery("", nil, nil); got != "*" {
		t.Errorf("empty query = %q, want *", got)
	}
}

func TestBuildQuery_TagEscaping(t *testing.T) {
	c := mustPrefix(t, "context", "operation-1 west")
	got := buildQuery("", nil, []query.Clause{c})
	if got != `@context:{operation\-1\ west*}` {
		t.Errorf("buildQuery = %q", got)
	}
}

func TestBuildQuery_PrefixClause(t *testing.T) {
	c := mustPrefix(t, "geotile", "3102")
	got := buildQuery("", nil, []query.Clause{c})
	if got != "@geotile:{3102*}" {
		t.Errorf("buildQuery = %q", got)
	}
}

func TestBuildQuery_RangeClause(t *testing.T) {
	lo, hi := -5500.0, -5000.0
	c, err := query.NewRange("chrono_start", &lo, &hi)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	got := buildQuery("", nil, []query.Clause{c})
	if got != "@chrono_start:[-5500 -5000]" {
		t.Errorf("buildQuery = %q", got)
	}

	open, err := query.NewRange("chrono_start", &lo, nil)
	if err != nil {
		t.Fatalf("NewRange open: %v", err)
	}
	if got := buildQuery("", nil, []query.Clause{open}); got != "@chrono_start:[-5500 +inf]" {
		t.Errorf("open range = %q", got)
	}
}

func TestBuildQuery_BBoxClause(t *testing.T) {
	c, err := query.NewBBox("geo", query.BBox{West: 26.0, South: 36.0, East: 45.0, North: 42.0})
	if err != nil {
		t.Fatalf("NewBBox: %v", err)
	}
	got := buildQuery("", nil, []query.Clause{c})
	want := "@geo_lon:[26 45] @geo_lat:[36 42]"
	if got != want {
		t.Errorf("buildQuery = %q, want %q", got, want)
	}
}

func TestBuildTextClause_PhrasesAndTerms(t *testing.T) {
	got := buildTextClause("text", []string{"obsidian blade", "flint"})
	if !strings.HasPrefix(got, "@text:(") {
		t.Fatalf("text clause not field-scoped: %q", got)
	}
	if !strings.Contains(got, `"obsidian blade"`) {
		t.Errorf("phrase not quoted: %q", got)
	}
	if !strings.Contains(got, "flint") {
		t.Errorf("term missing: %q", got)
	}
}

func TestBuildQuery_CombinesFiltersAndText(t *testing.T) {
	c := mustPrefix(t, "item_type", "subjects___")
	got := buildQuery("text", []string{"pottery"}, []query.Clause{c})
	want := "@item_type:{subjects___*} @text:(pottery)"
	if got != want {
		t.Errorf("buildQuery = %q, want %q", got, want)
	}
}
