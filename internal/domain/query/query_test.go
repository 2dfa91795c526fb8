package query

import "testing"

func f(v float64) *float64 { return &v }

func TestClauseConstructors(t *testing.T) {
	if _, err := NewPrefix("", "3102"); err == nil {
		t.Error("prefix without field must fail")
	}
	if _, err := NewPrefix("geotile", ""); err == nil {
		t.Error("prefix without value must fail")
	}
	if _, err := NewRange("chrono_start", nil, nil); err == nil {
		t.Error("range without bounds must fail")
	}
	if _, err := NewRange("chrono_start", f(100), f(-100)); err == nil {
		t.Error("inverted range must fail")
	}
	if _, err := NewBBox("geo", BBox{West: 10, East: 5, South: 0, North: 1}); err == nil {
		t.Error("inverted bounding box must fail")
	}

	c, err := NewRange("chrono_stop", f(-3000), nil)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	if c.Field() != "chrono_stop" || c.Range() == nil || c.Range().Max != nil {
		t.Errorf("clause = %+v", c)
	}
}

func TestNewOr(t *testing.T) {
	if _, err := NewOr(); err == nil {
		t.Error("empty disjunction must fail")
	}

	a, _ := NewPrefix("context___turkey", "i___")
	b, _ := NewPrefix("context___turkey___domuztepe", "ii___")

	single, err := NewOr(a)
	if err != nil {
		t.Fatalf("NewOr: %v", err)
	}
	if len(single.Or()) != 0 || single.Prefix() != "i___" {
		t.Errorf("single alternative must collapse, got %+v", single)
	}

	or, err := NewOr(a, b)
	if err != nil {
		t.Fatalf("NewOr: %v", err)
	}
	alts := or.Or()
	if len(alts) != 2 || alts[0].Field() != "context___turkey" || alts[1].Field() != "context___turkey___domuztepe" {
		t.Errorf("alternatives = %+v", alts)
	}
}

func TestPagingVariants(t *testing.T) {
	var p Paging = Offset{Start: 40, RowCount: 20}
	if p.Rows() != 20 {
		t.Errorf("Rows = %d", p.Rows())
	}
	p = Cursor{Token: "abc", RowCount: 50}
	if p.Rows() != 50 {
		t.Errorf("Rows = %d", p.Rows())
	}
}
