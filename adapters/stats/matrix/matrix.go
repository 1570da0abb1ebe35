// Package matrix assembles pairwise results into labelled symmetric matrices
// and derives significance views from them.
package matrix

import (
	"math"
	"strconv"

	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

// PairCount returns k(k-1)/2
func PairCount(k int) int {
	return k * (k - 1) / 2
}

// Pairs enumerates (i, j) with i < j in row-major order. Every procedure emits
// its raw p-values in this order.
func Pairs(k int) [][2]int {
	out := make([][2]int, 0, PairCount(k))
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// Build fills a symmetric matrix from values ordered as Pairs(len(labels)).
// NaN and out-of-range values are clamped so that no NaN reaches the output:
// NaN becomes 1, anything above 1 becomes 1, anything below 0 becomes 0.
func Build(labels []string, values []float64) (posthoc.Matrix, error) {
	k := len(labels)
	if len(values) != PairCount(k) {
		return posthoc.Matrix{}, apperrors.ShapeMismatch("expected %d pairwise values for %d labels, got %d", PairCount(k), k, len(values))
	}
	m := posthoc.NewMatrix(labels)
	for idx, pr := range Pairs(k) {
		m.SetPair(pr[0], pr[1], clamp(values[idx]))
	}
	return m, nil
}

// BuildDecisions fills a symmetric 0/1 matrix; true marks a significant pair
func BuildDecisions(labels []string, significant []bool) (posthoc.Matrix, error) {
	k := len(labels)
	if len(significant) != PairCount(k) {
		return posthoc.Matrix{}, apperrors.ShapeMismatch("expected %d pairwise decisions for %d labels, got %d", PairCount(k), k, len(significant))
	}
	m := posthoc.NewMatrix(labels)
	for idx, pr := range Pairs(k) {
		if significant[idx] {
			m.SetPair(pr[0], pr[1], 1)
		}
	}
	return m, nil
}

func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 1
	case p > 1:
		return 1
	case p < 0:
		return 0
	}
	return p
}

// Validate checks that m is square and labelled consistently
func Validate(m posthoc.Matrix) error {
	k := len(m.Values)
	if k == 0 {
		return apperrors.InvalidInput("empty matrix")
	}
	if len(m.Labels) != 0 && len(m.Labels) != k {
		return apperrors.ShapeMismatch("matrix has %d rows but %d labels", k, len(m.Labels))
	}
	for i, row := range m.Values {
		if len(row) != k {
			return apperrors.ShapeMismatch("row %d has %d columns, expected %d", i, len(row), k)
		}
	}
	return nil
}

// SignArray converts a p-value matrix into -1 on the diagonal, 1 where
// p < alpha and 0 elsewhere.
func SignArray(m posthoc.Matrix, alpha float64) (posthoc.Matrix, error) {
	if err := Validate(m); err != nil {
		return posthoc.Matrix{}, err
	}
	if alpha <= 0 || alpha >= 1 {
		return posthoc.Matrix{}, apperrors.InvalidInput("alpha must be in (0, 1), got %v", alpha)
	}
	out := posthoc.NewMatrix(labelsOf(m))
	for i, row := range m.Values {
		for j, p := range row {
			if i == j {
				continue
			}
			if p >= 0 && p < alpha {
				out.Values[i][j] = 1
			}
		}
	}
	return out, nil
}

// TableOptions selects which triangles SignTable renders
type TableOptions struct {
	Lower bool
	Upper bool
}

// DefaultTableOptions shows both triangles
func DefaultTableOptions() TableOptions {
	return TableOptions{Lower: true, Upper: true}
}

// Significance symbols
const (
	SymbolDiagonal = "-"
	SymbolNS       = "NS"
)

// Symbol maps a p-value onto the star notation
func Symbol(p float64) string {
	switch {
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	}
	return SymbolNS
}

// SignTable renders m with significance symbols. Hidden triangles are empty
// strings.
func SignTable(m posthoc.Matrix, opts TableOptions) ([][]string, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	if !opts.Lower && !opts.Upper {
		return nil, apperrors.InvalidInput("at least one of the lower or upper triangles must be shown")
	}
	k := len(m.Values)
	out := make([][]string, k)
	for i := range out {
		out[i] = make([]string, k)
		for j := range out[i] {
			switch {
			case i == j:
				out[i][j] = SymbolDiagonal
			case i > j && !opts.Lower, i < j && !opts.Upper:
				out[i][j] = ""
			default:
				out[i][j] = Symbol(m.Values[i][j])
			}
		}
	}
	return out, nil
}

func labelsOf(m posthoc.Matrix) []string {
	if len(m.Labels) == len(m.Values) {
		return m.Labels
	}
	labels := make([]string, len(m.Values))
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return labels
}
