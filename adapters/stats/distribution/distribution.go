// Package distribution adapts the reference distributions used by the post-hoc
// procedures. Tails are computed directly from the regularized incomplete
// beta and gamma functions so that very small p-values keep their precision.
package distribution

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalSF returns P(Z > z) for the standard normal
func NormalSF(z float64) float64 {
	return distuv.UnitNormal.Survival(z)
}

// NormalTwoSided returns P(|Z| > |z|)
func NormalTwoSided(z float64) float64 {
	return math.Min(1, 2*distuv.UnitNormal.Survival(math.Abs(z)))
}

// NormalQuantile returns Φ⁻¹(p)
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// TTwoSided returns P(|T| > |t|) for Student's t with df degrees of freedom
func TTwoSided(t, df float64) float64 {
	if math.IsNaN(t) || math.IsNaN(df) || df <= 0 {
		return math.NaN()
	}
	if math.IsInf(df, 1) {
		return NormalTwoSided(t)
	}
	if math.IsInf(t, 0) {
		return 0
	}
	return mathext.RegIncBeta(df/2, 0.5, df/(df+t*t))
}

// TQuantile returns the p-quantile of Student's t with df degrees of freedom
func TQuantile(p, df float64) float64 {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)
}

// FSF returns P(F > f) for the F distribution with (d1, d2) degrees of freedom
func FSF(f, d1, d2 float64) float64 {
	if math.IsNaN(f) || d1 <= 0 || d2 <= 0 {
		return math.NaN()
	}
	if f <= 0 {
		return 1
	}
	if math.IsInf(f, 1) {
		return 0
	}
	return mathext.RegIncBeta(d2/2, d1/2, d2/(d2+d1*f))
}

// ChiSquareSF returns P(X > x) for the chi-square distribution with k degrees of freedom
func ChiSquareSF(x, k float64) float64 {
	if math.IsNaN(x) || k <= 0 {
		return math.NaN()
	}
	if x <= 0 {
		return 1
	}
	if math.IsInf(x, 1) {
		return 0
	}
	return mathext.GammaIncRegComp(k/2, x/2)
}
