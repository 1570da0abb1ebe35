package posthoc

import (
	"math"

	mstats "github.com/aclements/go-moremath/stats"

	"goposthoc/adapters/stats/distribution"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/adapters/stats/rank"
	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

// MannWhitney runs a Mann-Whitney U test for every pair of groups,
// re-ranking each pair on its own. With UseContinuity the p-value comes from
// go-moremath, which is exact for small untied samples and otherwise uses the
// tie- and continuity-corrected normal approximation. Without it the plain
// normal approximation is used.
func MannWhitney(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 1)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	alt := opts.Alternative
	if alt == "" {
		alt = posthoc.AltTwoSided
	}
	loc, ok := locationHypotheses[alt]
	if !ok {
		return posthoc.Matrix{}, apperrors.InvalidInput("unknown alternative %q", alt)
	}

	raw := make([]float64, 0, matrix.PairCount(g.K()))
	for _, pr := range matrix.Pairs(g.K()) {
		x, y := g.Samples[pr[0]], g.Samples[pr[1]]
		if opts.UseContinuity {
			raw = append(raw, uTest(x, y, loc))
		} else {
			raw = append(raw, uNormal(x, y, alt))
		}
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

// "less" means x tends to lie below y
var locationHypotheses = map[string]mstats.LocationHypothesis{
	posthoc.AltTwoSided: mstats.LocationDiffers,
	posthoc.AltLess:     mstats.LocationLess,
	posthoc.AltGreater:  mstats.LocationGreater,
}

func uTest(x, y []float64, loc mstats.LocationHypothesis) float64 {
	res, err := mstats.MannWhitneyUTest(x, y, loc)
	if err != nil {
		// ErrSamplesEqual: every observation ties
		return 1
	}
	return res.P
}

// uNormal is the tie-corrected normal approximation without continuity
// correction
func uNormal(x, y []float64, alt string) float64 {
	n1, n2 := float64(len(x)), float64(len(y))
	pooled := append(append(make([]float64, 0, len(x)+len(y)), x...), y...)
	ranks := rank.Average(pooled)
	r1 := sum(ranks[:len(x)])

	u1 := n1*n2 + n1*(n1+1)/2 - r1
	u2 := n1*n2 - u1
	n := n1 + n2
	sd := math.Sqrt(n1*n2*(n+1)/12 - n1*n2*rank.TieSum(pooled)/(12*n*(n-1)))
	if !(sd > 0) {
		return 1
	}

	// u1 counts pairs where x ranks below y, so "greater" tests u2
	switch alt {
	case posthoc.AltGreater:
		return distribution.NormalSF((u2 - n1*n2/2) / sd)
	case posthoc.AltLess:
		return distribution.NormalSF((u1 - n1*n2/2) / sd)
	default:
		return math.Min(1, 2*distribution.NormalSF((math.Max(u1, u2)-n1*n2/2)/sd))
	}
}

// Wilcoxon runs the Wilcoxon signed-rank test (normal approximation) for every
// pair of groups, pairing observations by position.
func Wilcoxon(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 1)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	for i, s := range g.Samples {
		if len(s) != len(g.Samples[0]) {
			return posthoc.Matrix{}, apperrors.ShapeMismatch("paired samples must have equal sizes: %q has %d, %q has %d",
				g.Labels[0], len(g.Samples[0]), g.Labels[i], len(s))
		}
	}
	zm := opts.ZeroMethod
	if zm == "" {
		zm = posthoc.ZeroWilcox
	}
	if zm != posthoc.ZeroWilcox && zm != posthoc.ZeroPratt && zm != posthoc.ZeroZsplit {
		return posthoc.Matrix{}, apperrors.InvalidInput("unknown zero method %q", zm)
	}

	raw := make([]float64, 0, matrix.PairCount(g.K()))
	for _, pr := range matrix.Pairs(g.K()) {
		raw = append(raw, signedRank(g.Samples[pr[0]], g.Samples[pr[1]], zm, opts.Correction))
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

func signedRank(x, y []float64, zeroMethod string, correction bool) float64 {
	d := make([]float64, 0, len(x))
	nZero := 0
	for i := range x {
		diff := x[i] - y[i]
		if diff == 0 {
			nZero++
			if zeroMethod == posthoc.ZeroWilcox {
				continue
			}
		}
		d = append(d, diff)
	}
	if len(d) == 0 || nZero == len(d) {
		return 1
	}

	abs := make([]float64, len(d))
	for i, v := range d {
		abs[i] = math.Abs(v)
	}
	ranks := rank.Average(abs)

	var rPlus, rMinus, rZero float64
	for i, v := range d {
		switch {
		case v > 0:
			rPlus += ranks[i]
		case v < 0:
			rMinus += ranks[i]
		default:
			rZero += ranks[i]
		}
	}
	if zeroMethod == posthoc.ZeroZsplit {
		rPlus += rZero / 2
		rMinus += rZero / 2
	}
	t := math.Min(rPlus, rMinus)

	count := float64(len(d))
	mn := count * (count + 1) * 0.25
	se := count * (count + 1) * (2*count + 1)

	tieRanks := ranks
	if zeroMethod == posthoc.ZeroPratt {
		nz := float64(nZero)
		mn -= nz * (nz + 1) * 0.25
		se -= nz * (nz + 1) * (2*nz + 1)
		tieRanks = make([]float64, 0, len(ranks))
		for i, v := range d {
			if v != 0 {
				tieRanks = append(tieRanks, ranks[i])
			}
		}
	}
	for _, size := range rank.TieSizes(tieRanks) {
		ts := float64(size)
		se -= 0.5 * ts * (ts*ts - 1)
	}
	se = math.Sqrt(se / 24)
	if !(se > 0) {
		return 1
	}

	cc := 0.0
	if correction {
		cc = 0.5 * sign(t-mn)
	}
	z := (t - mn - cc) / se
	return distribution.NormalTwoSided(z)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// TTest runs a two-sample t-test for every pair of groups. EqualVar selects
// Student's pooled-variance test; otherwise Welch's test is used.
func TTest(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error) {
	g, err := prepareGroups(g, opts, 2)
	if err != nil {
		return posthoc.Matrix{}, err
	}

	vars := groupVariances(g)
	flat := constantGroups(g)
	raw := make([]float64, 0, matrix.PairCount(g.K()))
	for _, pr := range matrix.Pairs(g.K()) {
		i, j := pr[0], pr[1]
		if flat[i] || flat[j] {
			raw = append(raw, 1)
			continue
		}
		t, df := twoSampleT(g.Samples[i], g.Samples[j], vars[i], vars[j], opts.EqualVar)
		raw = append(raw, distribution.TTwoSided(t, df))
	}
	return finish(g.Labels, raw, opts.PAdjust, opts.Alpha)
}

func groupVariances(g posthoc.Groups) []float64 {
	out := make([]float64, g.K())
	for i, s := range g.Samples {
		out[i] = sampleVariance(s)
	}
	return out
}

// twoSampleT returns the t statistic and its degrees of freedom
func twoSampleT(x, y []float64, vx, vy float64, equalVar bool) (float64, float64) {
	nx, ny := float64(len(x)), float64(len(y))
	diff := mean(x) - mean(y)
	if equalVar {
		df := nx + ny - 2
		sp := ((nx-1)*vx + (ny-1)*vy) / df
		return diff / math.Sqrt(sp*(1/nx+1/ny)), df
	}
	return diff / math.Sqrt(vx/nx+vy/ny), welchDF(vx, vy, nx, ny)
}

func welchDF(vx, vy, nx, ny float64) float64 {
	a, b := vx/nx, vy/ny
	return (a + b) * (a + b) / (a*a/(nx-1) + b*b/(ny-1))
}
