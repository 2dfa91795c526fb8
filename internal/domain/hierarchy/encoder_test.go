package hierarchy

import (
	"reflect"
	"testing"
)

func TestExpand_NoOrIsIdentity(t *testing.T) {
	got := Expand("Turkey---Domuztepe---I", PathDelim, OrDelim)
	want := [][]string{{"Turkey", "Domuztepe", "I"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestExpand_SingleSegment(t *testing.T) {
	got := Expand("Turkey", PathDelim, OrDelim)
	if len(got) != 1 || len(got[0]) != 1 || got[0][0] != "Turkey" {
		t.Errorf("single-segment path should expand to itself, got %v", got)
	}
}

func TestExpand_OrWithinSegment(t *testing.T) {
	got := Expand("a||b---c", PathDelim, OrDelim)
	want := [][]string{{"a", "c"}, {"b", "c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestExpand_OrAtLastSegment(t *testing.T) {
	got := ExpandClientPath("Turkey/Domuztepe/I||II")
	want := [][]string{
		{"Turkey", "Domuztepe", "I"},
		{"Turkey", "Domuztepe", "II"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandClientPath = %v, want %v", got, want)
	}
}

func TestExpand_SuffixLeftUnexpanded(t *testing.T) {
	// Only the first OR segment is expanded; later OR segments stay literal
	// within each variant.
	got := Expand("a||b---c||d", PathDelim, OrDelim)
	want := [][]string{{"a", "c||d"}, {"b", "c||d"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestExpand_DropsEmptySegments(t *testing.T) {
	got := Expand("Turkey------Domuztepe", PathDelim, OrDelim)
	want := [][]string{{"Turkey", "Domuztepe"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
	if out := Expand("------", PathDelim, OrDelim); out != nil {
		t.Errorf("all-empty path should yield nil, got %v", out)
	}
}

func TestExpand_RoundTripSingleAlternative(t *testing.T) {
	paths := []string{"Turkey", "Turkey/Domuztepe", "Turkey/Domuztepe/Operation 1"}
	for _, p := range paths {
		variants := ExpandClientPath(p)
		if len(variants) != 1 {
			t.Fatalf("path %q: expected one variant, got %d", p, len(variants))
		}
		if JoinPath(variants[0]) != p {
			t.Errorf("round trip changed path: %q -> %q", p, JoinPath(variants[0]))
		}
	}
}

func TestAppendSegment_KeepsDelimiterFamily(t *testing.T) {
	tests := []struct {
		path, segment string
		want          [][]string
	}{
		{"Turkey/Domuztepe", "Trench II", [][]string{{"Turkey", "Domuztepe", "Trench II"}}},
		{"Turkey---Domuztepe", "Trench II", [][]string{{"Turkey", "Domuztepe", "Trench II"}}},
		{"Turkey", "Domuztepe", [][]string{{"Turkey", "Domuztepe"}}},
	}
	for _, tt := range tests {
		got := ExpandClientPath(AppendSegment(tt.path, tt.segment))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("AppendSegment(%q, %q) re-parsed to %v, want %v", tt.path, tt.segment, got, tt.want)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Domuztepe", "domuztepe"},
		{"Operation 1", "operation-1"},
		{"  Çatalhöyük  ", "atalhyk"},
		{"a--b", "a-b"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFieldToken(t *testing.T) {
	if got := FieldToken([]string{"Turkey", "Domuztepe"}); got != "turkey___domuztepe" {
		t.Errorf("FieldToken = %q", got)
	}
	if got := FieldToken(nil); got != "" {
		t.Errorf("root FieldToken should be empty, got %q", got)
	}
}

func TestParseValue(t *testing.T) {
	full := ParseValue("domuztepe___id___https://example.org/subjects/abc___Domuztepe")
	want := ValueToken{
		Slug:     "domuztepe",
		DataType: "id",
		URI:      "https://example.org/subjects/abc",
		Label:    "Domuztepe",
	}
	if full != want {
		t.Errorf("ParseValue = %+v, want %+v", full, want)
	}

	bare := ParseValue("domuztepe")
	if bare.Slug != "domuztepe" || bare.Label != "domuztepe" || bare.DataType != "id" {
		t.Errorf("bare value should degrade gracefully, got %+v", bare)
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	v := ValueToken{Slug: "s", DataType: "xsd:double", URI: "u", Label: "L"}
	if got := ParseValue(EncodeValue(v)); got != v {
		t.Errorf("round trip = %+v, want %+v", got, v)
	}
}
