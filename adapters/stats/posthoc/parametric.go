package posthoc

import (
	"math"

	"goposthoc/adapters/stats/distribution"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

// Scheffe performs Scheffe's all-pairs test on group means using the pooled
// within-group variance and the F distribution with (k-1, n-k) df.
func Scheffe(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 2)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	if err := requireResidualDF(g); err != nil {
		return posthoc.Matrix{}, err
	}

	n, k := float64(g.N()), float64(g.K())
	s := pooledVariance(g)
	means := groupMeans(g)
	flat := constantGroups(g)

	raw := make([]float64, 0, matrix.PairCount(g.K()))
	for _, pr := range matrix.Pairs(g.K()) {
		i, j := pr[0], pr[1]
		if flat[i] || flat[j] {
			raw = append(raw, 1)
			continue
		}
		d := means[i] - means[j]
		denom := s * (1/float64(len(g.Samples[i])) + 1/float64(len(g.Samples[j]))) * (k - 1)
		if !(denom > 0) {
			raw = append(raw, 1)
			continue
		}
		raw = append(raw, distribution.FSF(d*d/denom, k-1, n-k))
	}
	return finish(g.Labels, raw, posthoc.AdjustNone, opts.Alpha)
}

// Tukey performs the Tukey-Kramer test: studentized range with n-k df on the
// pooled within-group variance.
func Tukey(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 2)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	if err := requireResidualDF(g); err != nil {
		return posthoc.Matrix{}, err
	}
	raw := tukeyKramer(g)
	return finish(g.Labels, raw, posthoc.AdjustNone, opts.Alpha)
}

func tukeyKramer(g posthoc.Groups) []float64 {
	n, k := float64(g.N()), float64(g.K())
	s := pooledVariance(g)
	means := groupMeans(g)
	flat := constantGroups(g)

	raw := make([]float64, 0, matrix.PairCount(g.K()))
	for _, pr := range matrix.Pairs(g.K()) {
		i, j := pr[0], pr[1]
		if flat[i] || flat[j] {
			raw = append(raw, 1)
			continue
		}
		se := math.Sqrt(s * 0.5 * (1/float64(len(g.Samples[i])) + 1/float64(len(g.Samples[j]))))
		if !(se > 0) {
			raw = append(raw, 1)
			continue
		}
		q := math.Abs(means[i]-means[j]) / se
		raw = append(raw, distribution.StudentizedRangeSF(q, k, n-k))
	}
	return raw
}

// TukeyHSD returns a decision matrix: 1 where the Tukey HSD p-value is below
// Alpha, 0 otherwise.
func TukeyHSD(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 2)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	if err := requireResidualDF(g); err != nil {
		return posthoc.Matrix{}, err
	}
	alpha := opts.Alpha
	if alpha <= 0 || alpha >= 1 {
		return posthoc.Matrix{}, apperrors.InvalidInput("alpha must be in (0, 1), got %v", alpha)
	}

	raw := tukeyKramer(g)
	decisions := make([]bool, len(raw))
	for i, p := range raw {
		decisions[i] = guard(p) < alpha
	}
	return matrix.BuildDecisions(g.Labels, decisions)
}

// Tamhane performs Tamhane's T2 test: pairwise t-tests with Sidak-style
// correction 1-(1-p)^m. Welch selects Welch-Satterthwaite df; otherwise
// n_i+n_j-2 is used.
func Tamhane(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 2)
	if err != nil {
		return posthoc.Matrix{}, err
	}

	vars := groupVariances(g)
	flat := constantGroups(g)
	pairs := matrix.Pairs(g.K())
	m := float64(len(pairs))

	raw := make([]float64, 0, len(pairs))
	for _, pr := range pairs {
		i, j := pr[0], pr[1]
		if flat[i] || flat[j] {
			raw = append(raw, 1)
			continue
		}
		ni, nj := float64(len(g.Samples[i])), float64(len(g.Samples[j]))
		t := (mean(g.Samples[i]) - mean(g.Samples[j])) / math.Sqrt(vars[i]/ni+vars[j]/nj)
		df := ni + nj - 2
		if opts.Welch {
			df = welchDF(vars[i], vars[j], ni, nj)
		}
		p := distribution.TTwoSided(t, df)
		raw = append(raw, -math.Expm1(m*math.Log1p(-p)))
	}
	return finish(g.Labels, raw, posthoc.AdjustNone, opts.Alpha)
}

// constantGroups flags zero-variance groups. Every parametric procedure
// reports p = 1 for a comparison involving one, whatever the other group's
// spread.
func constantGroups(g posthoc.Groups) []bool {
	out := make([]bool, g.K())
	for i, v := range groupVariances(g) {
		out[i] = v == 0
	}
	return out
}

func groupMeans(g posthoc.Groups) []float64 {
	out := make([]float64, g.K())
	for i, s := range g.Samples {
		out[i] = mean(s)
	}
	return out
}
