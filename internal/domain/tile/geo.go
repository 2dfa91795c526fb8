// Package tile implements the two aggregation tile codecs: a quadtree
// geospatial codec (lat/lon <-> quadkey) and a chronological codec over
// (earliest, latest) year spans. Tile keys are base-4 digit strings where a
// prefix is an ancestor region.
package tile

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/trowelworks/strata/internal/domain"
)

const (
	// MaxGeoDepth bounds quadkey length.
	MaxGeoDepth = 23
	// EarthRadiusMeters is the mean Earth radius used for Haversine distance.
	EarthRadiusMeters = 6_371_000.0
	// earthCircumference in meters at the equator.
	earthCircumference = 40_075_017.0
	// Web Mercator latitude clamp.
	maxLatitude = 85.05112878
)

// LonLatToTile encodes a coordinate into a quadkey of the given depth.
// Out-of-range coordinates are clamped to the Web Mercator extent.
func LonLatToTile(lat, lon float64, depth int) string {
	if depth <= 0 {
		return ""
	}
	if depth > MaxGeoDepth {
		depth = MaxGeoDepth
	}
	lat = math.Max(-maxLatitude, math.Min(maxLatitude, lat))
	lon = math.Max(-180, math.Min(180, lon))

	x := (lon + 180) / 360
	sinLat := math.Sin(lat * math.Pi / 180)
	y := 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)

	n := float64(int64(1) << uint(depth))
	tileX := int64(math.Min(n-1, math.Max(0, math.Floor(x*n))))
	tileY := int64(math.Min(n-1, math.Max(0, math.Floor(y*n))))

	var b strings.Builder
	b.Grow(depth)
	for i := depth; i > 0; i-- {
		digit := byte('0')
		mask := int64(1) << uint(i-1)
		if tileX&mask != 0 {
			digit++
		}
		if tileY&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

// GeoBounds is the lat/lon extent of a geospatial tile.
type GeoBounds struct {
	West, South, East, North float64
}

// Bounds decodes a quadkey into its lat/lon extent.
func Bounds(tile string) (GeoBounds, error) {
	tileX, tileY, depth, err := parseQuadkey(tile)
	if err != nil {
		return GeoBounds{}, err
	}
	n := float64(int64(1) << uint(depth))
	return GeoBounds{
		West:  float64(tileX)/n*360 - 180,
		East:  float64(tileX+1)/n*360 - 180,
		North: mercatorToLat(float64(tileY) / n),
		South: mercatorToLat(float64(tileY+1) / n),
	}, nil
}

// ToPolygon decodes a quadkey into its bounding ring as an XY polygon with
// [lon, lat] coordinate order.
func ToPolygon(tile string) (*geom.Polygon, error) {
	b, err := Bounds(tile)
	if err != nil {
		return nil, err
	}
	ring := []geom.Coord{
		{b.West, b.South},
		{b.West, b.North},
		{b.East, b.North},
		{b.East, b.South},
		{b.West, b.South},
	}
	return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
}

// ToPoint decodes a quadkey into its centroid as an XY point.
func ToPoint(tile string) (*geom.Point, error) {
	lon, lat, err := Center(tile)
	if err != nil {
		return nil, err
	}
	return geom.NewPoint(geom.XY).SetCoords(geom.Coord{lon, lat})
}

// Center decodes a quadkey into its centroid longitude and latitude.
func Center(tile string) (lon, lat float64, err error) {
	b, err := Bounds(tile)
	if err != nil {
		return 0, 0, err
	}
	return (b.West + b.East) / 2, (b.South + b.North) / 2, nil
}

// ZoomForDistance estimates the tile depth whose tile width roughly matches
// the given great-circle distance. Larger distances give shallower depths.
func ZoomForDistance(meters float64) int {
	if meters <= 0 {
		return MaxGeoDepth
	}
	depth := int(math.Floor(math.Log2(earthCircumference / meters)))
	if depth < 1 {
		return 1
	}
	if depth > MaxGeoDepth {
		return MaxGeoDepth
	}
	return depth
}

// Haversine returns the great-circle distance in meters between two points
// given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// IsNoiseGeo reports whether a tile key sits on the reserved degenerate
// prefix: the quadkey of (0,0), where records without usable coordinates
// historically land. Such tiles are excluded from aggregation.
func IsNoiseGeo(tile string) bool {
	if tile == "" {
		return true
	}
	return tile == noiseGeoPrefix[:min(len(tile), len(noiseGeoPrefix))]
}

var noiseGeoPrefix = LonLatToTile(0, 0, MaxGeoDepth)

func parseQuadkey(tile string) (tileX, tileY int64, depth int, err error) {
	depth = len(tile)
	if depth == 0 || depth > MaxGeoDepth {
		return 0, 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidTile, tile)
	}
	for i := 0; i < depth; i++ {
		mask := int64(1) << uint(depth-i-1)
		switch tile[i] {
		case '0':
		case '1':
			tileX |= mask
		case '2':
			tileY |= mask
		case '3':
			tileX |= mask
			tileY |= mask
		default:
			return 0, 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidTile, tile)
		}
	}
	return tileX, tileY, depth, nil
}

func mercatorToLat(y float64) float64 {
	return 90 - 360*math.Atan(math.Exp((y-0.5)*2*math.Pi))/math.Pi
}
