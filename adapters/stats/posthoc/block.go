package posthoc

import (
	"math"

	"goposthoc/adapters/stats/distribution"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/adapters/stats/rank"
	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

// prepareBlocks validates a block design and applies the Sort option.
// allowMissing permits NaN cells (incomplete designs).
func prepareBlocks(b posthoc.BlockDesign, opts posthoc.Options, allowMissing bool) (posthoc.BlockDesign, error) {
	if err := checkAdjust(opts); err != nil {
		return b, err
	}
	blocks, k := b.Dims()
	if k < 2 {
		return b, apperrors.InsufficientData("at least 2 treatments are required, got %d", k)
	}
	if blocks < 2 {
		return b, apperrors.InsufficientData("at least 2 blocks are required, got %d", blocks)
	}
	if len(b.Blocks) != 0 && len(b.Blocks) != blocks {
		return b, apperrors.ShapeMismatch("%d block labels for %d rows", len(b.Blocks), blocks)
	}
	seen := make(map[string]bool, k)
	for _, t := range b.Treatments {
		if seen[t] {
			return b, apperrors.InvalidInput("duplicate treatment label %q", t)
		}
		seen[t] = true
	}
	for r, row := range b.Values {
		if len(row) != k {
			return b, apperrors.ShapeMismatch("block %d has %d values, expected %d", r, len(row), k)
		}
		for _, v := range row {
			if math.IsInf(v, 0) {
				return b, apperrors.InvalidInput("block %d contains an infinite value", r)
			}
		}
	}
	if !allowMissing && b.HasMissing() {
		return b, apperrors.ShapeMismatch("design has a missing value; only incomplete-design procedures accept missing cells")
	}
	if opts.Sort {
		b = b.Sorted()
	}
	return b, nil
}

// friedmanState holds within-block rank summaries for complete designs
type friedmanState struct {
	b, k      float64
	ranks     [][]float64
	rankSums  []float64
	rankMeans []float64
}

func newFriedmanState(d posthoc.BlockDesign) friedmanState {
	blocks, k := d.Dims()
	st := friedmanState{
		b:         float64(blocks),
		k:         float64(k),
		ranks:     rank.WithinBlocks(d.Values),
		rankSums:  make([]float64, k),
		rankMeans: make([]float64, k),
	}
	for _, row := range st.ranks {
		for j, r := range row {
			st.rankSums[j] += r
		}
	}
	for j, s := range st.rankSums {
		st.rankMeans[j] = s / st.b
	}
	return st
}

// standardizedMeanRankDiffs returns |R̄i − R̄j| / √(k(k+1)/(6b)) for every pair
func (st friedmanState) standardizedMeanRankDiffs() []float64 {
	se := math.Sqrt(st.k * (st.k + 1) / (6 * st.b))
	out := make([]float64, 0, matrix.PairCount(int(st.k)))
	for _, pr := range matrix.Pairs(int(st.k)) {
		out = append(out, math.Abs(st.rankMeans[pr[0]]-st.rankMeans[pr[1]])/se)
	}
	return out
}

// NemenyiFriedman compares mean within-block ranks with the studentized range
// distribution (infinite df).
func NemenyiFriedman(d posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error) {
	d, err := prepareBlocks(d, opts, false)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	st := newFriedmanState(d)

	raw := st.standardizedMeanRankDiffs()
	for i, q := range raw {
		raw[i] = distribution.StudentizedRangeSF(q*math.Sqrt2, st.k, math.Inf(1))
	}
	return finish(d.Treatments, raw, posthoc.AdjustNone, opts.Alpha)
}

// MillerFriedman compares mean within-block ranks against chi-square with k-1 df
func MillerFriedman(d posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error) {
	d, err := prepareBlocks(d, opts, false)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	st := newFriedmanState(d)

	raw := st.standardizedMeanRankDiffs()
	for i, q := range raw {
		raw[i] = distribution.ChiSquareSF(q*q, st.k-1)
	}
	return finish(d.Treatments, raw, posthoc.AdjustNone, opts.Alpha)
}

// SiegelFriedman compares mean within-block ranks with two-sided normal tails
func SiegelFriedman(d posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error) {
	d, err := prepareBlocks(d, opts, false)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	st := newFriedmanState(d)

	raw := st.standardizedMeanRankDiffs()
	for i, z := range raw {
		raw[i] = distribution.NormalTwoSided(z)
	}
	return finish(d.Treatments, raw, opts.PAdjust, opts.Alpha)
}

// ConoverFriedman performs Conover's test on within-block rank sums with
// Student's t and (b-1)(k-1) df. PAdjust "single-step" replaces the t
// reference with the studentized range instead of adjusting.
func ConoverFriedman(d posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error) {
	singleStep := opts.PAdjust == posthoc.AdjustSingleStep
	if singleStep {
		opts.PAdjust = posthoc.AdjustNone
	}
	d, err := prepareBlocks(d, opts, false)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	st := newFriedmanState(d)

	a1 := 0.0
	for _, row := range st.ranks {
		a1 += sumSquares(row)
	}
	df := (st.b - 1) * (st.k - 1)
	denom := math.Sqrt(2 * (st.b*a1 - sumSquares(st.rankSums)) / df)

	raw := make([]float64, 0, matrix.PairCount(int(st.k)))
	for _, pr := range matrix.Pairs(int(st.k)) {
		diff := math.Abs(st.rankSums[pr[0]] - st.rankSums[pr[1]])
		switch {
		case !(denom > 0):
			raw = append(raw, 1)
		case singleStep:
			raw = append(raw, distribution.StudentizedRangeSF(diff/denom*math.Sqrt2, st.k, math.Inf(1)))
		default:
			raw = append(raw, distribution.TTwoSided(diff/denom, df))
		}
	}
	return finish(d.Treatments, raw, opts.PAdjust, opts.Alpha)
}

// Quade performs Quade's test. Blocks are weighted by the rank of their range.
// Dist "t" (default) uses Student's t with (b-1)(k-1) df; "normal" uses the
// normal approximation on weighted rank sums.
func Quade(d posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error) {
	d, err := prepareBlocks(d, opts, false)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	dist := opts.Dist
	if dist == "" {
		dist = posthoc.DistT
	}
	if dist != posthoc.DistT && dist != posthoc.DistNormal {
		return posthoc.Matrix{}, apperrors.InvalidInput("quade dist must be %q or %q, got %q", posthoc.DistT, posthoc.DistNormal, dist)
	}

	st := newFriedmanState(d)
	blocks, k := d.Dims()
	ranges := make([]float64, blocks)
	for i, row := range d.Values {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		ranges[i] = hi - lo
	}
	weights := rank.Average(ranges)

	raw := make([]float64, 0, matrix.PairCount(k))
	if dist == posthoc.DistNormal {
		w := make([]float64, k)
		for i, row := range st.ranks {
			for j, r := range row {
				w[j] += weights[i] * r
			}
		}
		ff := 1 / (st.b * (st.b + 1) / 2)
		denom := math.Sqrt(st.k * (st.k + 1) * (2*st.b + 1) * (st.k - 1) / (18 * st.b * (st.b + 1)))
		for _, pr := range matrix.Pairs(k) {
			raw = append(raw, zTwoSidedGuarded(math.Abs(w[pr[0]]*ff-w[pr[1]]*ff), denom))
		}
		return finish(d.Treatments, raw, opts.PAdjust, opts.Alpha)
	}

	a := 0.0
	s := make([]float64, k)
	for i, row := range st.ranks {
		for j, r := range row {
			v := (r - (st.k+1)/2) * weights[i]
			a += v * v
			s[j] += v
		}
	}
	bTerm := sumSquares(s) / st.b
	df := (st.b - 1) * (st.k - 1)
	denom := math.Sqrt(2 * st.b * (a - bTerm) / df)
	for _, pr := range matrix.Pairs(k) {
		raw = append(raw, tTwoSidedGuarded(math.Abs(s[pr[0]]-s[pr[1]]), denom, df))
	}
	return finish(d.Treatments, raw, opts.PAdjust, opts.Alpha)
}

// Durbin performs Durbin's test for balanced incomplete block designs. Missing
// cells are NaN; every block must score the same number of treatments and
// every treatment must be scored the same number of times. A complete design
// is the special case with no missing cells.
func Durbin(d posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error) {
	d, err := prepareBlocks(d, opts, true)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	blocks, t := d.Dims()

	perBlock := -1
	perTreatment := make([]int, t)
	for bi, row := range d.Values {
		count := 0
		for j, v := range row {
			if !math.IsNaN(v) {
				count++
				perTreatment[j]++
			}
		}
		if perBlock == -1 {
			perBlock = count
		} else if count != perBlock {
			return posthoc.Matrix{}, apperrors.ShapeMismatch("block %d scores %d treatments, expected %d", bi, count, perBlock)
		}
	}
	if perBlock < 2 {
		return posthoc.Matrix{}, apperrors.InsufficientData("each block must score at least 2 treatments, got %d", perBlock)
	}
	for j, c := range perTreatment {
		if c != perTreatment[0] {
			return posthoc.Matrix{}, apperrors.ShapeMismatch("treatment %q appears %d times, expected %d", d.Treatments[j], c, perTreatment[0])
		}
	}

	ranks := rank.WithinBlocks(d.Values)
	rankSums := make([]float64, t)
	a := 0.0
	for _, row := range ranks {
		for j, r := range row {
			if math.IsNaN(r) {
				continue
			}
			rankSums[j] += r
			a += r * r
		}
	}

	bf, tf := float64(blocks), float64(t)
	k := float64(perBlock)
	r := float64(perTreatment[0])
	c := bf * k * (k + 1) * (k + 1) / 4
	dTerm := sumSquares(rankSums) - r*c
	t1 := (tf - 1) / (a - c) * dTerm
	df := bf*k - bf - tf + 1
	if !(df > 0) {
		return posthoc.Matrix{}, apperrors.InsufficientData("design leaves %v residual degrees of freedom", df)
	}
	denom := math.Sqrt((a - c) * 2 * r / df * (1 - t1/(bf*(k-1))))

	raw := make([]float64, 0, matrix.PairCount(t))
	for _, pr := range matrix.Pairs(t) {
		raw = append(raw, tTwoSidedGuarded(math.Abs(rankSums[pr[0]]-rankSums[pr[1]]), denom, df))
	}
	return finish(d.Treatments, raw, opts.PAdjust, opts.Alpha)
}
