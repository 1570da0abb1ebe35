// Package outliers provides sample-level outlier filters that are typically
// applied to groups before a post-hoc comparison.
package outliers

import (
	"math"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"

	"goposthoc/adapters/stats/distribution"
	apperrors "goposthoc/internal/errors"
)

// Result splits a sample into retained values and detected outliers. Both
// slices keep the original order of x.
type Result struct {
	Kept           []float64 `json:"kept"`
	Outliers       []float64 `json:"outliers"`
	OutlierIndices []int     `json:"outlier_indices"`
}

func split(x []float64, drop map[int]bool) Result {
	res := Result{Kept: []float64{}, Outliers: []float64{}, OutlierIndices: []int{}}
	for i, v := range x {
		if drop[i] {
			res.Outliers = append(res.Outliers, v)
			res.OutlierIndices = append(res.OutlierIndices, i)
			continue
		}
		res.Kept = append(res.Kept, v)
	}
	return res
}

func checkSample(x []float64, min int) error {
	if len(x) < min {
		return apperrors.InsufficientData("need at least %d observations, got %d", min, len(x))
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.InvalidInput("sample contains a non-finite value")
		}
	}
	return nil
}

// DefaultIQRCoef is Tukey's fence multiplier
const DefaultIQRCoef = 1.5

// IQR flags values outside [Q1 − coef·IQR, Q3 + coef·IQR]. Quartiles use
// linear interpolation between order statistics.
func IQR(x []float64, coef float64) (Result, error) {
	if err := checkSample(x, 1); err != nil {
		return Result{}, err
	}
	if coef <= 0 {
		coef = DefaultIQRCoef
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	q1 := linearQuantile(sorted, 0.25)
	q3 := linearQuantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-coef*iqr, q3+coef*iqr

	drop := map[int]bool{}
	for i, v := range x {
		if v < lo || v > hi {
			drop[i] = true
		}
	}
	return split(x, drop), nil
}

// linearQuantile interpolates at position q·(n−1) of a sorted sample
func linearQuantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Grubbs runs a single two-sided Grubbs test and removes the most extreme
// value when it is significant at alpha.
func Grubbs(x []float64, alpha float64) (Result, error) {
	if err := checkSample(x, 3); err != nil {
		return Result{}, err
	}
	if err := checkAlpha(alpha); err != nil {
		return Result{}, err
	}

	m, _ := stats.Mean(x)
	sd, _ := stats.StandardDeviationSample(x)
	if sd == 0 {
		return split(x, nil), nil
	}

	idx, dev := farthest(x, m, nil)
	g := dev / sd
	n := float64(len(x))
	t := distribution.TQuantile(alpha/(2*n), n-2)
	crit := (n - 1) / math.Sqrt(n) * math.Sqrt(t*t/(n-2+t*t))
	if g > crit {
		return split(x, map[int]bool{idx: true}), nil
	}
	return split(x, nil), nil
}

// farthest returns the index and absolute deviation of the value farthest
// from center, skipping indices in skip.
func farthest(x []float64, center float64, skip map[int]bool) (int, float64) {
	best, dev := -1, -1.0
	for i, v := range x {
		if skip[i] {
			continue
		}
		if d := math.Abs(v - center); d > dev {
			best, dev = i, d
		}
	}
	return best, dev
}

// TietjenMooreOptions configures the simulated critical value
type TietjenMooreOptions struct {
	Alpha       float64
	Simulations int
	Seed        int64
}

// DefaultTietjenMooreOptions returns alpha 0.05 with 10000 simulations
func DefaultTietjenMooreOptions() TietjenMooreOptions {
	return TietjenMooreOptions{Alpha: 0.05, Simulations: 10000, Seed: 42}
}

// TietjenMoore tests for exactly k outliers (the k values farthest from the
// mean) and removes them when the statistic falls below the simulated
// alpha-quantile under normality.
func TietjenMoore(x []float64, k int, opts TietjenMooreOptions) (Result, error) {
	if err := checkSample(x, 3); err != nil {
		return Result{}, err
	}
	if k < 1 || k >= len(x)-1 {
		return Result{}, apperrors.InvalidInput("k must be in [1, %d], got %d", len(x)-2, k)
	}
	if err := checkAlpha(opts.Alpha); err != nil {
		return Result{}, err
	}
	if opts.Simulations <= 0 {
		opts.Simulations = DefaultTietjenMooreOptions().Simulations
	}

	e, suspects := tietjenMooreStat(x, k)
	if math.IsNaN(e) {
		return split(x, nil), nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	sims := make([]float64, opts.Simulations)
	buf := make([]float64, len(x))
	for s := range sims {
		for i := range buf {
			buf[i] = rng.NormFloat64()
		}
		sims[s], _ = tietjenMooreStat(buf, k)
	}
	sort.Float64s(sims)
	crit := linearQuantile(sims, opts.Alpha)

	if e < crit {
		return split(x, suspects), nil
	}
	return split(x, nil), nil
}

// tietjenMooreStat returns E_k and the indices of the k most extreme values
func tietjenMooreStat(x []float64, k int) (float64, map[int]bool) {
	m, _ := stats.Mean(x)
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(x[order[a]]-m) < math.Abs(x[order[b]]-m)
	})

	keep := make([]float64, 0, len(x)-k)
	suspects := make(map[int]bool, k)
	for pos, i := range order {
		if pos < len(x)-k {
			keep = append(keep, x[i])
		} else {
			suspects[i] = true
		}
	}

	km, _ := stats.Mean(keep)
	num := 0.0
	for _, v := range keep {
		num += (v - km) * (v - km)
	}
	den := 0.0
	for _, v := range x {
		den += (v - m) * (v - m)
	}
	if den == 0 {
		return math.NaN(), suspects
	}
	return num / den, suspects
}

// GESD runs Rosner's generalized extreme Studentized deviate test for up to
// maxOutliers outliers.
func GESD(x []float64, maxOutliers int, alpha float64) (Result, error) {
	if err := checkSample(x, 3); err != nil {
		return Result{}, err
	}
	if maxOutliers < 1 || maxOutliers > len(x)-2 {
		return Result{}, apperrors.InvalidInput("maxOutliers must be in [1, %d], got %d", len(x)-2, maxOutliers)
	}
	if err := checkAlpha(alpha); err != nil {
		return Result{}, err
	}

	n := float64(len(x))
	removed := map[int]bool{}
	order := make([]int, 0, maxOutliers)
	found := 0

	for i := 0; i < maxOutliers; i++ {
		sample := make([]float64, 0, len(x)-i)
		for j, v := range x {
			if !removed[j] {
				sample = append(sample, v)
			}
		}
		m, _ := stats.Mean(sample)
		sd, _ := stats.StandardDeviationSample(sample)
		if sd == 0 {
			break
		}
		idx, dev := farthest(x, m, removed)
		r := dev / sd

		fi := float64(i)
		p := 1 - alpha/(2*(n-fi))
		t := distribution.TQuantile(p, n-fi-2)
		lambda := (n - fi - 1) * t / math.Sqrt((n-fi-2+t*t)*(n-fi))

		removed[idx] = true
		order = append(order, idx)
		if r > lambda {
			found = i + 1
		}
	}

	drop := make(map[int]bool, found)
	for _, idx := range order[:found] {
		drop[idx] = true
	}
	return split(x, drop), nil
}

func checkAlpha(alpha float64) error {
	if alpha <= 0 || alpha >= 1 {
		return apperrors.InvalidInput("alpha must be in (0, 1), got %v", alpha)
	}
	return nil
}
