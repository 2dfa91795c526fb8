package tile

import (
	"math"
	"strings"
	"testing"
)

func TestLonLatToTile_DepthIsKeyLength(t *testing.T) {
	for _, depth := range []int{1, 5, 12, MaxGeoDepth} {
		key := LonLatToTile(37.18, 36.8, depth)
		if len(key) != depth {
			t.Errorf("depth %d: key %q has length %d", depth, key, len(key))
		}
	}
}

func TestLonLatToTile_ChildRefinesParent(t *testing.T) {
	shallow := LonLatToTile(37.18, 36.8, 8)
	deep := LonLatToTile(37.18, 36.8, 16)
	if !strings.HasPrefix(deep, shallow) {
		t.Errorf("deeper key %q should extend shallower key %q", deep, shallow)
	}
}

func TestBounds_ContainsEncodedPoint(t *testing.T) {
	lat, lon := 37.18, 36.8
	key := LonLatToTile(lat, lon, 14)
	b, err := Bounds(key)
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if lon < b.West || lon > b.East || lat < b.South || lat > b.North {
		t.Errorf("point (%g, %g) outside decoded bounds %+v", lat, lon, b)
	}
}

func TestBounds_ChildWithinParent(t *testing.T) {
	parent := "31023"
	for _, child := range []string{"0", "1", "2", "3"} {
		pb, err := Bounds(parent)
		if err != nil {
			t.Fatalf("Bounds(parent): %v", err)
		}
		cb, err := Bounds(parent + child)
		if err != nil {
			t.Fatalf("Bounds(child): %v", err)
		}
		if cb.West < pb.West-1e-9 || cb.East > pb.East+1e-9 ||
			cb.South < pb.South-1e-9 || cb.North > pb.North+1e-9 {
			t.Errorf("child %s%s bounds %+v escape parent bounds %+v", parent, child, cb, pb)
		}
	}
}

func TestToPolygon_ClosedRing(t *testing.T) {
	poly, err := ToPolygon("3102")
	if err != nil {
		t.Fatalf("ToPolygon: %v", err)
	}
	ring := poly.Coords()[0]
	if len(ring) != 5 {
		t.Fatalf("expected 5 ring coordinates, got %d", len(ring))
	}
	if ring[0][0] != ring[4][0] || ring[0][1] != ring[4][1] {
		t.Error("ring is not closed")
	}
}

func TestToPoint_CentroidInsideBounds(t *testing.T) {
	pt, err := ToPoint("3102")
	if err != nil {
		t.Fatalf("ToPoint: %v", err)
	}
	b, _ := Bounds("3102")
	lon, lat := pt.Coords()[0], pt.Coords()[1]
	if lon < b.West || lon > b.East || lat < b.South || lat > b.North {
		t.Errorf("centroid (%g, %g) outside bounds %+v", lon, lat, b)
	}
}

func TestBounds_RejectsMalformedKeys(t *testing.T) {
	for _, bad := range []string{"", "0124", "abc", strings.Repeat("1", MaxGeoDepth+1)} {
		if _, err := Bounds(bad); err == nil {
			t.Errorf("Bounds(%q) should fail", bad)
		}
	}
}

func TestZoomForDistance_LargerSpansShallower(t *testing.T) {
	wide := ZoomForDistance(5_000_000)
	narrow := ZoomForDistance(5_000)
	if wide >= narrow {
		t.Errorf("5000km zoom (%d) should be shallower than 5km zoom (%d)", wide, narrow)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Istanbul to Ankara, roughly 350 km.
	d := Haversine(41.0082, 28.9784, 39.9334, 32.8597)
	if math.Abs(d-350_000) > 20_000 {
		t.Errorf("Haversine = %.0f m, want ~350km", d)
	}
}

func TestIsNoiseGeo(t *testing.T) {
	degenerate := LonLatToTile(0, 0, 12)
	if !IsNoiseGeo(degenerate) {
		t.Errorf("tile of (0,0) %q must be flagged as noise", degenerate)
	}
	real := LonLatToTile(37.18, 36.8, 12)
	if IsNoiseGeo(real) {
		t.Errorf("tile %q wrongly flagged as noise", real)
	}
}
