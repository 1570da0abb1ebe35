// Package rank computes average ranks and tie statistics for the rank-based
// post-hoc procedures.
package rank

import (
	"math"
	"sort"
)

// Average returns the average (fractional) ranks of xs, 1-based, in input order.
// Tied values share the mean of the ranks they occupy, so the ranks always sum
// to n(n+1)/2.
func Average(xs []float64) []float64 {
	n := len(xs)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && xs[idx[j]] == xs[idx[i]] {
			j++
		}
		// positions i..j-1 hold ranks i+1..j
		avg := float64(i+j+1) / 2
		for p := i; p < j; p++ {
			ranks[idx[p]] = avg
		}
		i = j
	}
	return ranks
}

// TieSizes returns the size of every tie group (groups of size > 1) in xs
func TieSizes(xs []float64) []int {
	counts := make(map[float64]int, len(xs))
	for _, x := range xs {
		counts[x]++
	}
	var sizes []int
	for _, c := range counts {
		if c > 1 {
			sizes = append(sizes, c)
		}
	}
	sort.Ints(sizes)
	return sizes
}

// TieSum returns T = Σ(t³ − t) over all tie groups of xs
func TieSum(xs []float64) float64 {
	var total float64
	for _, t := range TieSizes(xs) {
		ft := float64(t)
		total += ft*ft*ft - ft
	}
	return total
}

// TieCorrection returns 1 − T/(n³ − n), the Kruskal-Wallis tie factor.
// A fully tied vector yields 0.
func TieCorrection(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 1
	}
	return 1 - TieSum(xs)/(n*n*n-n)
}

// WithinBlocks ranks every row of values independently. NaN cells are left as
// NaN and take no part in the ranking of their row.
func WithinBlocks(values [][]float64) [][]float64 {
	out := make([][]float64, len(values))
	for r, row := range values {
		present := make([]float64, 0, len(row))
		for _, v := range row {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		ranked := Average(present)
		out[r] = make([]float64, len(row))
		p := 0
		for c, v := range row {
			if math.IsNaN(v) {
				out[r][c] = math.NaN()
				continue
			}
			out[r][c] = ranked[p]
			p++
		}
	}
	return out
}
