package ir

// Bound is a tagged Known(int64)|Unknown scalar. Every arithmetic
// operator on it propagates Unknown instead of falling back to a
// sentinel integer.
type Bound struct {
	Value int64
	Known bool
}

func KnownBound(v int64) Bound { return Bound{Value: v, Known: true} }
func UnknownBound() Bound      { return Bound{} }

func (b Bound) Add(o Bound) Bound {
	if !b.Known || !o.Known {
		return UnknownBound()
	}
	return KnownBound(b.Value + o.Value)
}

func (b Bound) Sub(o Bound) Bound {
	if !b.Known || !o.Known {
		return UnknownBound()
	}
	return KnownBound(b.Value - o.Value)
}

func (b Bound) Mul(o Bound) Bound {
	if !b.Known || !o.Known {
		return UnknownBound()
	}
	return KnownBound(b.Value * o.Value)
}

func (b Bound) Min(o Bound) Bound {
	if !b.Known || !o.Known {
		return UnknownBound()
	}
	if b.Value < o.Value {
		return b
	}
	return o
}

func (b Bound) Max(o Bound) Bound {
	if !b.Known || !o.Known {
		return UnknownBound()
	}
	if b.Value > o.Value {
		return b
	}
	return o
}

// Interval is {min, max} over a symbolic integer range. Unknown when
// either endpoint could not be resolved.
type Interval struct {
	Min, Max Bound
}

func UnknownInterval() Interval { return Interval{UnknownBound(), UnknownBound()} }

func KnownInterval(min, max int64) Interval {
	return Interval{KnownBound(min), KnownBound(max)}
}

func (iv Interval) IsUnknown() bool { return !iv.Min.Known || !iv.Max.Known }

// Extent returns max - min + 1, or Unknown.
func (iv Interval) Extent() Bound {
	if iv.IsUnknown() {
		return UnknownBound()
	}
	return KnownBound(iv.Max.Value - iv.Min.Value + 1)
}

// Widen returns the coordinate-wise union (min of mins, max of maxes).
func (iv Interval) Widen(o Interval) Interval {
	return Interval{iv.Min.Min(o.Min), iv.Max.Max(o.Max)}
}

// Shift translates the interval by delta (used by redundant_regions to
// probe a neighboring tile).
func (iv Interval) Shift(delta Bound) Interval {
	return Interval{iv.Min.Add(delta), iv.Max.Add(delta)}
}

// Intersect returns the overlap of iv and o, which may be empty (max <
// min) or Unknown if either operand is unknown.
func (iv Interval) Intersect(o Interval) Interval {
	if iv.IsUnknown() || o.IsUnknown() {
		return UnknownInterval()
	}
	lo := iv.Min.Max(o.Min)
	hi := iv.Max.Min(o.Max)
	return Interval{lo, hi}
}

// Box is an ordered sequence of intervals, one per storage dimension.
type Box []Interval

// MergeBoxes performs the bounds engine's coordinate-wise widening of
// dst by src in place. If dst is empty it is initialized from src.
func MergeBoxes(dst *Box, src Box) {
	if len(*dst) == 0 {
		*dst = append(Box{}, src...)
		return
	}
	if len(*dst) != len(src) {
		// Rank mismatch should not happen for a well-formed pipeline;
		// treat the whole box as unknown rather than panic on bad input.
		for i := range *dst {
			(*dst)[i] = UnknownInterval()
		}
		return
	}
	for i := range *dst {
		(*dst)[i] = (*dst)[i].Widen(src[i])
	}
}

// Size returns the product of extents, or Unknown if any dimension is
// unknown. A box with no dimensions has size 1.
func (b Box) Size() Bound {
	size := KnownBound(1)
	for _, iv := range b {
		size = size.Mul(iv.Extent())
	}
	return size
}

// DimBounds maps a dimension-variable name to its interval, covering
// exactly a stage's declared loop dimensions.
type DimBounds map[string]Interval

func (d DimBounds) Clone() DimBounds {
	out := make(DimBounds, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
