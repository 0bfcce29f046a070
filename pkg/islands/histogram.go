package islands

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Histogram maps a component size to the number of components of that size.
type Histogram map[int]int

// Bin is one histogram entry.
type Bin struct {
	Size  int
	Count int
}

// BuildHistogram counts components by size.
func BuildHistogram(components []Component) Histogram {
	h := make(Histogram)
	for _, c := range components {
		h[c.Size()]++
	}
	return h
}

// Sizes returns the distinct component sizes in ascending order.
func (h Histogram) Sizes() []int {
	sizes := make([]int, 0, len(h))
	for size := range h {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	return sizes
}

// Bins returns the entries in ascending size order.
func (h Histogram) Bins() []Bin {
	sizes := h.Sizes()
	bins := make([]Bin, len(sizes))
	for i, size := range sizes {
		bins[i] = Bin{Size: size, Count: h[size]}
	}
	return bins
}

// Total returns the number of components counted.
func (h Histogram) Total() int {
	n := 0
	for _, count := range h {
		n += count
	}
	return n
}

// KeptAt returns the number of components a filter with the given threshold
// would keep.
func (h Histogram) KeptAt(threshold int) int {
	n := 0
	for size, count := range h {
		if size >= threshold {
			n += count
		}
	}
	return n
}

// Suggest returns the smallest threshold that keeps at most keepFraction of
// the components, walking down from the largest size. The largest size bin
// is always kept. It is informational: filtering uses its own threshold.
func (h Histogram) Suggest(keepFraction float64) int {
	sizes := h.Sizes()
	if len(sizes) == 0 {
		return 1
	}
	keep := int(float64(h.Total()) * keepFraction)
	threshold := sizes[len(sizes)-1]
	kept := h[threshold]
	for i := len(sizes) - 2; i >= 0; i-- {
		if kept+h[sizes[i]] > keep {
			break
		}
		kept += h[sizes[i]]
		threshold = sizes[i]
	}
	return threshold
}

// Stats summarizes the component size distribution.
type Stats struct {
	Count  int
	Voxels int
	Min    int
	Max    int
	Mean   float64
	Median float64
	StdDev float64
}

// SizeStats computes Stats over the component sizes. An empty input yields
// the zero Stats.
func SizeStats(components []Component) Stats {
	if len(components) == 0 {
		return Stats{}
	}
	sizes := make([]float64, len(components))
	s := Stats{Count: len(components), Min: math.MaxInt}
	for i, c := range components {
		n := c.Size()
		sizes[i] = float64(n)
		s.Voxels += n
		if n < s.Min {
			s.Min = n
		}
		if n > s.Max {
			s.Max = n
		}
	}
	sort.Float64s(sizes)
	s.Mean = stat.Mean(sizes, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, sizes, nil)
	if len(sizes) > 1 {
		s.StdDev = stat.StdDev(sizes, nil)
	}
	return s
}
