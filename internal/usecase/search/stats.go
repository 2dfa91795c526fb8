package search

import (
	"math"
	"time"

	"github.com/trowelworks/strata/internal/domain/query"
	"github.com/trowelworks/strata/internal/domain/result"
)

// minBuckets is the floor applied when a result set is too small to fill
// the configured bucket target.
const minBuckets = 4

// widthEpsilon keeps a degenerate (min == max) field from producing a zero
// bucket width.
const widthEpsilon = 1e-9

// secondsPerDay is the calendar unit for date-field bucket widths.
const secondsPerDay = 86400

// planBuckets derives range-facet boundaries from a field's stats. Numeric
// widths are clamped to |mean|/3 when they exceed the mean's magnitude, a
// sign of heavy skew toward one tail; the magnitude is used so that
// BCE-dominated year fields with negative means clamp too. Date widths are
// whole calendar days. The second return is false when the field has no
// data to bucket.
func planBuckets(field string, st result.Stats, target int, isDate bool) (query.RangeFacet, bool) {
	if st.Count == 0 || st.Max < st.Min {
		return query.RangeFacet{}, false
	}
	if target <= 0 {
		target = minBuckets
	}
	if st.Count < target {
		target = st.Count
		if target < minBuckets {
			target = minBuckets
		}
	}

	width := (st.Max - st.Min) / float64(target)
	if isDate {
		width = calendarWidth(st.Min, st.Max, target)
	} else if m := math.Abs(st.Mean); m > 0 && width > m {
		width = m / 3
	}
	if width <= 0 {
		width = widthEpsilon
	}

	buckets := int(math.Ceil((st.Max - st.Min) / width))
	if buckets < 1 {
		buckets = 1
	}

	return query.RangeFacet{
		Field:   field,
		Start:   st.Min,
		Gap:     width,
		Buckets: buckets,
	}, true
}

// calendarWidth computes a date bucket width in whole days from epoch-second
// bounds, at least one day.
func calendarWidth(min, max float64, target int) float64 {
	lo := time.Unix(int64(min), 0).UTC()
	hi := time.Unix(int64(max), 0).UTC()
	days := int(hi.Sub(lo).Hours() / 24)
	perBucket := days / target
	if perBucket < 1 {
		perBucket = 1
	}
	return float64(perBucket * secondsPerDay)
}
