package roster

import "math"

// Gap is the exact difference between two team averages, kept as a fraction
// so that mathematically equal gaps always compare equal. The zero value is a
// gap of 0.
type Gap struct {
	num int64
	den int64
}

// ZeroGap is the gap of an empty or single-team partition.
var ZeroGap = Gap{num: 0, den: 1}

// GapBetween returns hiSum/hiSize - loSum/loSize. Sizes must be positive.
func GapBetween(hiSum, hiSize, loSum, loSize int64) Gap {
	return Gap{num: hiSum*loSize - loSum*hiSize, den: hiSize * loSize}
}

// CompareAverages compares aSum/aSize with bSum/bSize without division and
// returns -1, 0 or +1. Sizes must be positive.
func CompareAverages(aSum, aSize, bSum, bSize int64) int {
	l, r := aSum*bSize, bSum*aSize
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func (g Gap) denom() int64 {
	if g.den == 0 {
		return 1
	}
	return g.den
}

// Cmp returns -1, 0 or +1 as g is smaller than, equal to or larger than o.
func (g Gap) Cmp(o Gap) int {
	return CompareAverages(g.num, g.denom(), o.num, o.denom())
}

// Less reports whether g is strictly smaller than o.
func (g Gap) Less(o Gap) bool { return g.Cmp(o) < 0 }

// IsZero reports whether the gap is exactly zero.
func (g Gap) IsZero() bool { return g.num == 0 }

// Float64 returns the gap as a float.
func (g Gap) Float64() float64 {
	return float64(g.num) / float64(g.denom())
}

// Rounded returns the gap rounded to two decimals, the precision used when
// gaps are reported.
func (g Gap) Rounded() float64 {
	return math.Round(g.Float64()*100) / 100
}
