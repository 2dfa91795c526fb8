package tile

import (
	"math"
	"sort"
)

// Observation is one (tile, count) pair from a raw facet response.
type Observation struct {
	Key   string
	Count int
}

// DepthConfig bounds the adaptive aggregation depth. The tuning values are
// product configuration, not algorithmic constants.
type DepthConfig struct {
	MinDepth     int
	MaxDepth     int
	TargetGroups int
	// DampenThresholdYears reduces chronology depth for spans wider than
	// this many years. Zero disables dampening.
	DampenThresholdYears float64
}

// DeepestWithinTarget returns the deepest depth d <= maxDepth at which
// truncating all keys to length d still yields at most target distinct
// prefixes. Distinct-prefix count is non-decreasing in depth, so the result
// shrinks (or holds) as more distinct tiles are observed.
func DeepestWithinTarget(keys []string, target, maxDepth int) int {
	if len(keys) == 0 || target <= 0 {
		return maxDepth
	}
	best := 1
	seen := make(map[string]bool, len(keys))
	for d := 1; d <= maxDepth; d++ {
		clear(seen)
		for _, k := range keys {
			seen[truncate(k, d)] = true
		}
		if len(seen) > target {
			break
		}
		best = d
	}
	return best
}

// GeoDepth computes the aggregation depth for geospatial observations: the
// minimum of the distinct-count signal and the great-circle span signal,
// clamped to the configured bounds. The dual signal keeps single-point data
// from over-zooming and wide data from collapsing into one bucket.
func GeoDepth(obs []Observation, cfg DepthConfig) int {
	keys := make([]string, 0, len(obs))
	minLat, minLon := math.MaxFloat64, math.MaxFloat64
	maxLat, maxLon := -math.MaxFloat64, -math.MaxFloat64
	for _, o := range obs {
		keys = append(keys, o.Key)
		lon, lat, err := Center(o.Key)
		if err != nil {
			continue
		}
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
	}

	countSignal := DeepestWithinTarget(keys, cfg.TargetGroups, cfg.MaxDepth)
	spanSignal := cfg.MaxDepth
	if minLat <= maxLat {
		if dist := Haversine(minLat, minLon, maxLat, maxLon); dist > 0 {
			spanSignal = ZoomForDistance(dist)
		}
	}

	return clampDepth(min(countSignal, spanSignal), cfg)
}

// ChronoDepth computes the aggregation depth for chronology observations:
// the minimum of the distinct-count signal and the year-range-width signal,
// with proportional dampening for ranges wider than the configured
// threshold, clamped to the configured bounds.
func ChronoDepth(obs []Observation, codec *ChronoCodec, cfg DepthConfig) int {
	keys := make([]string, 0, len(obs))
	earliest, latest := math.MaxFloat64, -math.MaxFloat64
	for _, o := range obs {
		keys = append(keys, o.Key)
		span, err := codec.ToSpan(o.Key)
		if err != nil {
			continue
		}
		earliest = math.Min(earliest, span.Earliest)
		latest = math.Max(latest, span.Latest)
	}

	countSignal := DeepestWithinTarget(keys, cfg.TargetGroups, cfg.MaxDepth)
	spanSignal := cfg.MaxDepth
	width := latest - earliest
	if width > 0 {
		spanSignal = codec.DepthForWidth(width)
	}

	depth := min(countSignal, spanSignal)
	if cfg.DampenThresholdYears > 0 && width > cfg.DampenThresholdYears {
		depth -= int(width / cfg.DampenThresholdYears)
	}
	return clampDepth(depth, cfg)
}

// Aggregate truncates observations to the given depth and re-sums counts by
// truncated prefix. Output is sorted by tile key for deterministic facets.
func Aggregate(obs []Observation, depth int) []Observation {
	sums := make(map[string]int, len(obs))
	for _, o := range obs {
		sums[truncate(o.Key, depth)] += o.Count
	}
	out := make([]Observation, 0, len(sums))
	for k, c := range sums {
		out = append(out, Observation{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func truncate(key string, depth int) string {
	if depth > 0 && len(key) > depth {
		return key[:depth]
	}
	return key
}

func clampDepth(d int, cfg DepthConfig) int {
	if cfg.MinDepth > 0 && d < cfg.MinDepth {
		return cfg.MinDepth
	}
	if cfg.MaxDepth > 0 && d > cfg.MaxDepth {
		return cfg.MaxDepth
	}
	return d
}
