package tile

import (
	"fmt"
	"math"
	"strings"

	"github.com/trowelworks/strata/internal/domain"
)

// MaxChronoDepth bounds chronology tile key length.
const MaxChronoDepth = 30

// Span is a chronological range in signed calendar years: BCE negative,
// CE positive. Fractional years are allowed.
type Span struct {
	Earliest float64 `json:"earliest"`
	Latest   float64 `json:"latest"`
}

// Width returns the span width in years.
func (s Span) Width() float64 { return s.Latest - s.Earliest }

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return other.Earliest >= s.Earliest && other.Latest <= s.Latest
}

// ChronoCodec encodes bounded calendar spans into nested tile paths. The
// codec quadtree-subdivides the two-dimensional (earliest, latest) space:
// each digit halves both axes, so a deeper tile is a narrower span and a
// key prefix is always an enclosing ancestor span.
type ChronoCodec struct {
	root Span
}

// NewChronoCodec creates a codec over the given root span.
func NewChronoCodec(rootEarliest, rootLatest float64) (*ChronoCodec, error) {
	if rootEarliest >= rootLatest {
		return nil, fmt.Errorf("%w: root [%g, %g]", domain.ErrInvalidSpan, rootEarliest, rootLatest)
	}
	return &ChronoCodec{root: Span{Earliest: rootEarliest, Latest: rootLatest}}, nil
}

// Root returns the codec's root span.
func (c *ChronoCodec) Root() Span { return c.root }

// SpanToTile encodes a span into a tile key of the given depth. The span is
// clamped to the root extent; an inverted span is an error.
func (c *ChronoCodec) SpanToTile(earliest, latest float64, depth int) (string, error) {
	if earliest > latest {
		return "", fmt.Errorf("%w: [%g, %g]", domain.ErrInvalidSpan, earliest, latest)
	}
	if depth <= 0 {
		return "", nil
	}
	if depth > MaxChronoDepth {
		depth = MaxChronoDepth
	}
	earliest = math.Max(c.root.Earliest, math.Min(c.root.Latest, earliest))
	latest = math.Max(c.root.Earliest, math.Min(c.root.Latest, latest))

	eLo, eHi := c.root.Earliest, c.root.Latest
	lLo, lHi := c.root.Earliest, c.root.Latest

	var b strings.Builder
	b.Grow(depth)
	for i := 0; i < depth; i++ {
		digit := byte('0')
		if eMid := (eLo + eHi) / 2; earliest >= eMid {
			digit++
			eLo = eMid
		} else {
			eHi = eMid
		}
		if lMid := (lLo + lHi) / 2; latest >= lMid {
			digit += 2
			lLo = lMid
		} else {
			lHi = lMid
		}
		b.WriteByte(digit)
	}
	return b.String(), nil
}

// ToSpan decodes a tile key into the chronological range it covers: the
// lower bound of its earliest axis to the upper bound of its latest axis.
func (c *ChronoCodec) ToSpan(tile string) (Span, error) {
	if tile == "" || len(tile) > MaxChronoDepth {
		return Span{}, fmt.Errorf("%w: %q", domain.ErrInvalidTile, tile)
	}
	eLo, eHi := c.root.Earliest, c.root.Latest
	lLo, lHi := c.root.Earliest, c.root.Latest

	for i := 0; i < len(tile); i++ {
		d := tile[i]
		if d < '0' || d > '3' {
			return Span{}, fmt.Errorf("%w: %q", domain.ErrInvalidTile, tile)
		}
		if eMid := (eLo + eHi) / 2; d == '1' || d == '3' {
			eLo = eMid
		} else {
			eHi = eMid
		}
		if lMid := (lLo + lHi) / 2; d == '2' || d == '3' {
			lLo = lMid
		} else {
			lHi = lMid
		}
	}
	return Span{Earliest: eLo, Latest: lHi}, nil
}

// DepthForWidth estimates the tile depth whose axis resolution matches a
// span width in years. Wider spans give shallower depths.
func (c *ChronoCodec) DepthForWidth(years float64) int {
	if years <= 0 {
		return MaxChronoDepth
	}
	rootWidth := c.root.Width()
	if years >= rootWidth {
		return 1
	}
	depth := int(math.Floor(math.Log2(rootWidth / years)))
	if depth < 1 {
		return 1
	}
	if depth > MaxChronoDepth {
		return MaxChronoDepth
	}
	return depth
}
