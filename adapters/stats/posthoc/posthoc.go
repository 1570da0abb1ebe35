// Package posthoc implements pairwise multiple-comparison procedures. Each
// procedure is a pure function from grouped (or blocked) data and options to
// a symmetric k×k matrix with -1 on the diagonal.
package posthoc

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"goposthoc/adapters/stats/adjust"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

// IndependentFunc compares independent groups
type IndependentFunc func(g posthoc.Groups, opts posthoc.Options) (posthoc.Matrix, error)

// BlockFunc compares treatments of a block design
type BlockFunc func(b posthoc.BlockDesign, opts posthoc.Options) (posthoc.Matrix, error)

var independent = map[posthoc.Procedure]IndependentFunc{
	posthoc.ProcConover:     Conover,
	posthoc.ProcDunn:        Dunn,
	posthoc.ProcNemenyi:     Nemenyi,
	posthoc.ProcMannWhitney: MannWhitney,
	posthoc.ProcWilcoxon:    Wilcoxon,
	posthoc.ProcVanWaerden:  VanWaerden,
	posthoc.ProcTTest:       TTest,
	posthoc.ProcScheffe:     Scheffe,
	posthoc.ProcTukey:       Tukey,
	posthoc.ProcTamhane:     Tamhane,
	posthoc.ProcTukeyHSD:    TukeyHSD,
}

var blocked = map[posthoc.Procedure]BlockFunc{
	posthoc.ProcNemenyiFriedman: NemenyiFriedman,
	posthoc.ProcConoverFriedman: ConoverFriedman,
	posthoc.ProcMillerFriedman:  MillerFriedman,
	posthoc.ProcSiegelFriedman:  SiegelFriedman,
	posthoc.ProcDurbin:          Durbin,
	posthoc.ProcQuade:           Quade,
}

// LookupIndependent returns the procedure for group input
func LookupIndependent(name posthoc.Procedure) (IndependentFunc, bool) {
	fn, ok := independent[name]
	return fn, ok
}

// LookupBlock returns the procedure for block-design input
func LookupBlock(name posthoc.Procedure) (BlockFunc, bool) {
	fn, ok := blocked[name]
	return fn, ok
}

// Descriptor describes a registered procedure
type Descriptor struct {
	Name  posthoc.Procedure `json:"name"`
	Input string            `json:"input"`
}

// Procedures lists every registered procedure, sorted by name
func Procedures() []Descriptor {
	out := make([]Descriptor, 0, len(independent)+len(blocked))
	for name := range independent {
		out = append(out, Descriptor{Name: name, Input: "groups"})
	}
	for name := range blocked {
		out = append(out, Descriptor{Name: name, Input: "blocks"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ============================================================================
// shared helpers
// ============================================================================

// checkAdjust rejects adjustment names Apply would not accept, including
// for procedures that never adjust. single-step is stripped by the one
// procedure that supports it before it gets here.
func checkAdjust(opts posthoc.Options) error {
	m, err := adjust.Parse(string(opts.PAdjust))
	if err != nil {
		return err
	}
	if m == posthoc.AdjustSingleStep {
		return apperrors.UnknownAdjustment(string(opts.PAdjust))
	}
	return nil
}

// prepareGroups validates g and opts and applies the Sort option.
// minPerGroup is the fewest observations a group may have.
func prepareGroups(g posthoc.Groups, opts posthoc.Options, minPerGroup int) (posthoc.Groups, error) {
	if err := checkAdjust(opts); err != nil {
		return g, err
	}
	if len(g.Labels) != len(g.Samples) {
		return g, apperrors.ShapeMismatch("%d labels for %d samples", len(g.Labels), len(g.Samples))
	}
	if len(g.Labels) < 2 {
		return g, apperrors.InsufficientData("at least 2 groups are required, got %d", len(g.Labels))
	}
	seen := make(map[string]bool, len(g.Labels))
	for i, s := range g.Samples {
		label := g.Labels[i]
		if seen[label] {
			return g, apperrors.InvalidInput("duplicate group label %q", label)
		}
		seen[label] = true
		if len(s) < minPerGroup {
			return g, apperrors.InsufficientData("group %q has %d observations, need at least %d", label, len(s), minPerGroup)
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return g, apperrors.InvalidInput("group %q contains a non-finite value", label)
			}
		}
	}
	if opts.Sort {
		g = g.Sorted()
	}
	return g, nil
}

// finish adjusts raw p-values and assembles the output matrix
func finish(labels []string, raw []float64, method posthoc.AdjustMethod, alpha float64) (posthoc.Matrix, error) {
	for i, p := range raw {
		raw[i] = guard(p)
	}
	adjusted, err := adjust.Apply(raw, method, alpha)
	if err != nil {
		return posthoc.Matrix{}, err
	}
	return matrix.Build(labels, adjusted)
}

// guard maps degenerate p-values onto 1
func guard(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 1
	}
	return math.Max(0, math.Min(1, p))
}

// splitRanks slices a pooled rank vector back into groups
func splitRanks(ranks []float64, g posthoc.Groups) [][]float64 {
	out := make([][]float64, len(g.Samples))
	offset := 0
	for i, s := range g.Samples {
		out[i] = ranks[offset : offset+len(s)]
		offset += len(s)
	}
	return out
}

func mean(xs []float64) float64 {
	m, err := stats.Mean(xs)
	if err != nil {
		return math.NaN()
	}
	return m
}

func sampleVariance(xs []float64) float64 {
	v, err := stats.SampleVariance(xs)
	if err != nil {
		return math.NaN()
	}
	return v
}

func sum(xs []float64) float64 {
	s, _ := stats.Sum(xs)
	return s
}

func sumSquares(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x * x
	}
	return total
}

// pooledVariance returns the within-group mean square Σ(n_j-1)s_j²/(n-k)
func pooledVariance(g posthoc.Groups) float64 {
	n, k := g.N(), g.K()
	total := 0.0
	for _, s := range g.Samples {
		total += sampleVariance(s) * float64(len(s)-1)
	}
	return total / float64(n-k)
}
