// Package adjust applies multiple-comparison corrections to a vector of raw
// p-values. Output order always matches input order.
package adjust

import (
	"math"
	"sort"
	"strings"

	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

var aliases = map[string]posthoc.AdjustMethod{
	"":               posthoc.AdjustNone,
	"none":           posthoc.AdjustNone,
	"bonferroni":     posthoc.AdjustBonferroni,
	"b":              posthoc.AdjustBonferroni,
	"sidak":          posthoc.AdjustSidak,
	"s":              posthoc.AdjustSidak,
	"holm-sidak":     posthoc.AdjustHolmSidak,
	"hs":             posthoc.AdjustHolmSidak,
	"holm":           posthoc.AdjustHolm,
	"h":              posthoc.AdjustHolm,
	"simes-hochberg": posthoc.AdjustHochberg,
	"hochberg":       posthoc.AdjustHochberg,
	"sh":             posthoc.AdjustHochberg,
	"hommel":         posthoc.AdjustHommel,
	"ho":             posthoc.AdjustHommel,
	"fdr_bh":         posthoc.AdjustFDRBH,
	"fdr_i":          posthoc.AdjustFDRBH,
	"fdr_p":          posthoc.AdjustFDRBH,
	"fdr_by":         posthoc.AdjustFDRBY,
	"fdr_n":          posthoc.AdjustFDRBY,
	"fdr_tsbh":       posthoc.AdjustFDRTSBH,
	"fdr_2sbh":       posthoc.AdjustFDRTSBH,
	"fdr_tsbky":      posthoc.AdjustFDRTSBKY,
	"fdr_2sbky":      posthoc.AdjustFDRTSBKY,
	"single-step":    posthoc.AdjustSingleStep,
}

// Parse resolves a method name (case-insensitive, common short aliases
// accepted) into an AdjustMethod.
func Parse(name string) (posthoc.AdjustMethod, error) {
	m, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", apperrors.UnknownAdjustment(name)
	}
	return m, nil
}

// Methods lists the canonical method names accepted by Apply
func Methods() []posthoc.AdjustMethod {
	return []posthoc.AdjustMethod{
		posthoc.AdjustNone,
		posthoc.AdjustBonferroni,
		posthoc.AdjustSidak,
		posthoc.AdjustHolmSidak,
		posthoc.AdjustHolm,
		posthoc.AdjustHochberg,
		posthoc.AdjustHommel,
		posthoc.AdjustFDRBH,
		posthoc.AdjustFDRBY,
		posthoc.AdjustFDRTSBH,
		posthoc.AdjustFDRTSBKY,
	}
}

// Apply corrects p with the given method. alpha is only used by the two-stage
// FDR methods. A single p-value is returned unchanged whatever the method.
func Apply(p []float64, method posthoc.AdjustMethod, alpha float64) ([]float64, error) {
	out := make([]float64, len(p))
	copy(out, p)

	switch method {
	case posthoc.AdjustNone, "":
		return out, nil
	case posthoc.AdjustBonferroni, posthoc.AdjustSidak, posthoc.AdjustHolmSidak,
		posthoc.AdjustHolm, posthoc.AdjustHochberg, posthoc.AdjustHommel,
		posthoc.AdjustFDRBH, posthoc.AdjustFDRBY, posthoc.AdjustFDRTSBH, posthoc.AdjustFDRTSBKY:
	default:
		return nil, apperrors.UnknownAdjustment(string(method))
	}

	if len(p) <= 1 {
		return out, nil
	}

	order := make([]int, len(p))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })
	sorted := make([]float64, len(p))
	for i, j := range order {
		sorted[i] = p[j]
	}

	var adj []float64
	switch method {
	case posthoc.AdjustBonferroni:
		adj = bonferroni(sorted)
	case posthoc.AdjustSidak:
		adj = sidak(sorted)
	case posthoc.AdjustHolmSidak:
		adj = holmSidak(sorted)
	case posthoc.AdjustHolm:
		adj = holm(sorted)
	case posthoc.AdjustHochberg:
		adj = hochberg(sorted)
	case posthoc.AdjustHommel:
		adj = hommel(sorted)
	case posthoc.AdjustFDRBH:
		adj = benjaminiHochberg(sorted, 1)
	case posthoc.AdjustFDRBY:
		adj = benjaminiYekutieli(sorted)
	case posthoc.AdjustFDRTSBH:
		adj = twoStage(sorted, alpha, false)
	case posthoc.AdjustFDRTSBKY:
		adj = twoStage(sorted, alpha, true)
	}

	for i, j := range order {
		out[j] = math.Min(1, adj[i])
	}
	return out, nil
}

// The helpers below all receive p sorted ascending.

func bonferroni(p []float64) []float64 {
	m := float64(len(p))
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v * m
	}
	return out
}

func sidak(p []float64) []float64 {
	m := float64(len(p))
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = -math.Expm1(m * math.Log1p(-v))
	}
	return out
}

func holmSidak(p []float64) []float64 {
	m := len(p)
	out := make([]float64, m)
	for i, v := range p {
		out[i] = -math.Expm1(float64(m-i) * math.Log1p(-v))
	}
	return cumMax(out)
}

func holm(p []float64) []float64 {
	m := len(p)
	out := make([]float64, m)
	for i, v := range p {
		out[i] = v * float64(m-i)
	}
	return cumMax(out)
}

func hochberg(p []float64) []float64 {
	m := len(p)
	out := make([]float64, m)
	for i, v := range p {
		out[i] = v * float64(m-i)
	}
	return reverseCumMin(out)
}

func hommel(p []float64) []float64 {
	n := len(p)
	a := make([]float64, n)
	copy(a, p)
	for m := n; m > 1; m-- {
		cim := math.Inf(1)
		for i := 0; i < m; i++ {
			cim = math.Min(cim, float64(m)*p[n-m+i]/float64(i+1))
		}
		for i := n - m; i < n; i++ {
			a[i] = math.Max(a[i], cim)
		}
		for i := 0; i < n-m; i++ {
			a[i] = math.Max(a[i], math.Min(float64(m)*p[i], cim))
		}
	}
	return a
}

func benjaminiHochberg(p []float64, scale float64) []float64 {
	m := float64(len(p))
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v * m * scale / float64(i+1)
	}
	out = reverseCumMin(out)
	for i := range out {
		out[i] = math.Min(1, out[i])
	}
	return out
}

func benjaminiYekutieli(p []float64) []float64 {
	cm := 0.0
	for i := 1; i <= len(p); i++ {
		cm += 1 / float64(i)
	}
	return benjaminiHochberg(p, cm)
}

// twoStage is the non-iterated two-stage FDR procedure. The first stage
// estimates the number of true nulls from the BH rejections at alpha (or
// alpha/(1+alpha) for the Benjamini-Krieger-Yekutieli variant).
func twoStage(p []float64, alpha float64, bky bool) []float64 {
	fact := 1.0
	if bky {
		fact = 1 + alpha
	}
	alphaPrime := alpha / fact
	ntests := float64(len(p))

	corrected := benjaminiHochberg(p, 1)
	r1 := countRejected(p, alphaPrime)
	if r1 == 0 || r1 == len(p) {
		for i := range corrected {
			corrected[i] *= fact
		}
		return corrected
	}

	ntests0 := ntests - float64(r1)
	for i := range corrected {
		corrected[i] *= ntests0 / ntests
		if bky {
			corrected[i] *= 1 + alpha
		}
	}
	return corrected
}

// countRejected counts BH rejections at level alpha: every hypothesis up to
// the largest sorted index whose p-value is ≤ alpha·(i+1)/m.
func countRejected(p []float64, alpha float64) int {
	m := float64(len(p))
	last := -1
	for i, v := range p {
		if v <= alpha*float64(i+1)/m {
			last = i
		}
	}
	return last + 1
}

func cumMax(xs []float64) []float64 {
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			xs[i] = xs[i-1]
		}
	}
	return xs
}

func reverseCumMin(xs []float64) []float64 {
	for i := len(xs) - 2; i >= 0; i-- {
		if xs[i] > xs[i+1] {
			xs[i] = xs[i+1]
		}
	}
	return xs
}
