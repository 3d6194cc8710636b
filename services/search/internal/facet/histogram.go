package facet

import (
	"math"

	"github.com/Salle79/Litium/services/search/internal/domain"
)

// PricePoint is one raw price bucket: a computed price and its document count.
type PricePoint struct {
	Price float64
	Count int64
}

// HistogramPolicy turns raw price points into display buckets. Every bucket
// boundary must lie within [min, max] and the bucket counts must not exceed
// the total count of positive points.
type HistogramPolicy interface {
	Buckets(points []PricePoint, min, max int) []domain.PriceBucket
}

// DefaultHistogramBuckets is the bucket count of the default policy.
const DefaultHistogramBuckets = 5

// EqualWidth splits [min, max] into at most Count buckets of equal integer
// width. Buckets are half-open except the last, which includes max.
type EqualWidth struct {
	Count int
}

// NewEqualWidth creates the policy, falling back to DefaultHistogramBuckets
// for non-positive counts.
func NewEqualWidth(count int) EqualWidth {
	if count < 1 {
		count = DefaultHistogramBuckets
	}
	return EqualWidth{Count: count}
}

func (h EqualWidth) Buckets(points []PricePoint, min, max int) []domain.PriceBucket {
	positive := false
	for _, p := range points {
		if p.Price > 0 {
			positive = true
			break
		}
	}
	if !positive || max < min {
		return []domain.PriceBucket{}
	}

	n := h.Count
	if n < 1 {
		n = DefaultHistogramBuckets
	}
	span := max - min
	width := 1
	if span > 0 {
		width = (span + n - 1) / n
		n = (span + width - 1) / width
	} else {
		n = 1
	}

	buckets := make([]domain.PriceBucket, n)
	for i := range buckets {
		from := min + i*width
		to := from + width
		if to > max || i == n-1 {
			to = max
		}
		buckets[i] = domain.PriceBucket{From: from, To: to}
	}

	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		v := int(math.Floor(p.Price))
		if v < min {
			v = min
		}
		if v > max {
			v = max
		}
		i := (v - min) / width
		if i >= n {
			i = n - 1
		}
		// Counts are narrowed without overflow checks.
		buckets[i].Count += int32(p.Count)
	}
	return buckets
}

// priceBounds returns the floored min and max of the positive prices, or 0, 0.
func priceBounds(points []PricePoint) (int, int) {
	var (
		lo, hi float64
		found  bool
	)
	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		if !found || p.Price < lo {
			lo = p.Price
		}
		if !found || p.Price > hi {
			hi = p.Price
		}
		found = true
	}
	if !found {
		return 0, 0
	}
	return int(math.Abs(lo)), int(math.Floor(hi))
}
