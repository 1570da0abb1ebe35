package posthoc

import (
	"math"

	"goposthoc/adapters/stats/distribution"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/adapters/stats/rank"
	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

// kruskalState holds the pooled-rank summaries shared by the Kruskal-Wallis
// family of post-hoc tests.
type kruskalState struct {
	n, k      int
	ranks     []float64
	means     []float64
	sizes     []float64
	tieSum    float64
	tieFactor float64
}

func newKruskalState(g posthoc.Groups) kruskalState {
	pooled := g.Pooled()
	ranks := rank.Average(pooled)
	st := kruskalState{
		n:      len(pooled),
		k:      g.K(),
		ranks:  ranks,
		means:  make([]float64, g.K()),
		sizes:  make([]float64, g.K()),
		tieSum: rank.TieSum(pooled),
	}
	st.tieFactor = math.Min(1, rank.TieCorrection(pooled))
	for i, r := range splitRanks(ranks, g) {
		st.means[i] = mean(r)
		st.sizes[i] = float64(len(r))
	}
	return st
}

// h returns the tie-corrected Kruskal-Wallis statistic
func (st kruskalState) h() float64 {
	n := float64(st.n)
	total := 0.0
	for i, m := range st.means {
		rs := m * st.sizes[i]
		total += rs * rs / st.sizes[i]
	}
	h := 12/(n*(n+1))*total - 3*(n+1)
	return h / st.tieFactor
}

func requireResidualDF(g posthoc.Groups) error {
	if g.N() <= g.K() {
		return apperrors.InsufficientData("%d observations in %d groups leave no residual degrees of freedom", g.N(), g.K())
	}
	return nil
}

// Conover performs Conover's test on pooled ranks, using the tie-corrected
// Kruskal-Wallis statistic in the variance term and Student's t with n-k df.
func Conover(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 1)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	if err := requireResidualDF(g); err != nil {
		return posthoc.Matrix{}, err
	}

	st := newKruskalState(g)
	n, k := float64(st.n), float64(st.k)

	var s2 float64
	if st.tieFactor == 1 {
		s2 = n * (n + 1) / 12
	} else {
		s2 = (sumSquares(st.ranks) - n*(n+1)*(n+1)/4) / (n - 1)
	}
	hCor := st.h()
	df := n - k

	raw := make([]float64, 0, matrix.PairCount(st.k))
	for _, pr := range matrix.Pairs(st.k) {
		i, j := pr[0], pr[1]
		diff := math.Abs(st.means[i] - st.means[j])
		b := 1/st.sizes[i] + 1/st.sizes[j]
		denom := math.Sqrt(s2 * b * (n - 1 - hCor) / df)
		raw = append(raw, tTwoSidedGuarded(diff, denom, df))
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

// Dunn performs Dunn's z-test on pooled mean ranks with tie correction
func Dunn(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 1)
	if err != nil {
		return posthoc.Matrix{}, err
	}

	st := newKruskalState(g)
	n := float64(st.n)
	tieTerm := 0.0
	if st.n > 1 {
		tieTerm = st.tieSum / (12 * (n - 1))
	}

	raw := make([]float64, 0, matrix.PairCount(st.k))
	for _, pr := range matrix.Pairs(st.k) {
		i, j := pr[0], pr[1]
		diff := math.Abs(st.means[i] - st.means[j])
		b := 1/st.sizes[i] + 1/st.sizes[j]
		denom := math.Sqrt((n*(n+1)/12 - tieTerm) * b)
		raw = append(raw, zTwoSidedGuarded(diff, denom))
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

// Nemenyi performs the Nemenyi test on pooled mean ranks. Dist selects the
// reference distribution: the studentized range with infinite df (default),
// or the tie-corrected chi-square with k-1 df.
func Nemenyi(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 1)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	dist := opts.Dist
	if dist == "" {
		dist = posthoc.DistTukey
	}
	if dist != posthoc.DistTukey && dist != posthoc.DistChi {
		return posthoc.Matrix{}, apperrors.InvalidInput("nemenyi dist must be %q or %q, got %q", posthoc.DistTukey, posthoc.DistChi, dist)
	}

	st := newKruskalState(g)
	n, k := float64(st.n), float64(st.k)
	a := n * (n + 1) / 12

	raw := make([]float64, 0, matrix.PairCount(st.k))
	for _, pr := range matrix.Pairs(st.k) {
		i, j := pr[0], pr[1]
		diff := math.Abs(st.means[i] - st.means[j])
		b := 1/st.sizes[i] + 1/st.sizes[j]
		if st.tieFactor <= 0 {
			raw = append(raw, 1)
			continue
		}
		if dist == posthoc.DistChi {
			chi := diff * diff / (a * b) / st.tieFactor
			raw = append(raw, distribution.ChiSquareSF(chi, k-1))
			continue
		}
		q := diff / math.Sqrt(a*b) * math.Sqrt2
		raw = append(raw, distribution.StudentizedRangeSF(q, k, math.Inf(1)))
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

// VanWaerden performs the van der Waerden normal-scores test
func VanWaerden(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 1)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	if err := requireResidualDF(g); err != nil {
		return posthoc.Matrix{}, err
	}

	pooled := g.Pooled()
	n, k := float64(len(pooled)), float64(g.K())
	ranks := rank.Average(pooled)
	scores := make([]float64, len(ranks))
	for i, r := range ranks {
		scores[i] = distribution.NormalQuantile(r / (n + 1))
	}

	s2 := sumSquares(scores) / (n - 1)
	groupScores := splitRanks(scores, g)
	means := make([]float64, len(groupScores))
	sts := 0.0
	for i, zs := range groupScores {
		a := sum(zs)
		sts += a * a / float64(len(zs))
		means[i] = mean(zs)
	}
	sts /= s2
	df := n - k

	raw := make([]float64, 0, matrix.PairCount(g.K()))
	for _, pr := range matrix.Pairs(g.K()) {
		i, j := pr[0], pr[1]
		diff := math.Abs(means[i] - means[j])
		b := 1/float64(len(groupScores[i])) + 1/float64(len(groupScores[j]))
		denom := math.Sqrt(s2 * (n - 1 - sts) / df * b)
		raw = append(raw, tTwoSidedGuarded(diff, denom, df))
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

// tTwoSidedGuarded returns the two-sided t p-value of diff/denom, or 1 when
// the denominator is degenerate.
func tTwoSidedGuarded(diff, denom, df float64) float64 {
	if !(denom > 0) || math.IsInf(denom, 0) {
		return 1
	}
	return distribution.TTwoSided(diff/denom, df)
}

func zTwoSidedGuarded(diff, denom float64) float64 {
	if !(denom > 0) || math.IsInf(denom, 0) {
		return 1
	}
	return distribution.NormalTwoSided(diff / denom)
}
