package probability

import "math"

// Pricing sets the cost of the n-th luck purchase (0-based): the base doubles
// for the first Doublings purchases, then grows linearly by Step. Costs that
// do not fit in an int64 saturate at math.MaxInt64.
type Pricing struct {
	Base      int64
	Doublings int
	Step      int64
}

func (p Pricing) Cost(n int) int64 {
	if n < 0 {
		n = 0
	}
	k := n
	if k > p.Doublings {
		k = p.Doublings
	}
	if !DoublingFits(p.Base, k) {
		return math.MaxInt64
	}
	cost := p.Base << uint(k)
	if extra := int64(n - p.Doublings); extra > 0 && p.Step > 0 {
		if extra > (math.MaxInt64-cost)/p.Step {
			return math.MaxInt64
		}
		cost += p.Step * extra
	}
	return cost
}

// DoublingFits reports whether base doubled k times stays within int64.
func DoublingFits(base int64, k int) bool {
	if base <= 0 || k <= 0 {
		return true
	}
	if k >= 63 {
		return false
	}
	return base <= math.MaxInt64>>uint(k)
}
