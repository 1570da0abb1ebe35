package distribution

import (
	"math"
)

// Studentized range distribution of the range of k independent standard
// normal means divided by an independent chi/√df estimate. The integration
// follows Copenhaver & Holland (1988) with the usual Gauss-Legendre nodes;
// gonum has no implementation of this distribution.

var (
	wLegX = [6]float64{
		0.981560634246719250690549090149,
		0.904117256370474856678465866119,
		0.769902674194304687036893833213,
		0.587317954286617447296702418941,
		0.367831498998180193752691536644,
		0.125233408511468915472441369464,
	}
	wLegA = [6]float64{
		0.047175336386511827194615961485,
		0.106939325995318430960254718194,
		0.160078328543346226334652529543,
		0.203167426723065921749064455810,
		0.233492536538354808760849898925,
		0.249147045813402785000562436043,
	}
	qLegX = [8]float64{
		0.989400934991649932596154173450,
		0.944575023073232576077988415535,
		0.865631202387831743880467897712,
		0.755404408355003033895101194847,
		0.617876244402643748446671764049,
		0.458016777657227386342419442984,
		0.281603550779258913230460501460,
		0.950125098376374401853193354250e-1,
	}
	qLegA = [8]float64{
		0.271524594117540948517805724560e-1,
		0.622535239386478928628438369944e-1,
		0.951585116824927848099251076022e-1,
		0.124628971255533872052476282192,
		0.149595988816576732081501730547,
		0.169156519395002538189312079030,
		0.182603415044923588866763667969,
		0.189450610455068496285396723208,
	}
)

func pnorm(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// rangeProb is P(range of cc standard normals < w), raised to rr
func rangeProb(w, rr, cc float64) float64 {
	const (
		nleg   = 12
		ihalf  = 6
		c1     = -30.0
		c3     = 60.0
		bb     = 8.0
		wlar   = 3.0
		wincr1 = 2.0
		wincr2 = 3.0
	)

	qsqz := w * 0.5
	if qsqz >= bb {
		return 1
	}

	prW := 2*pnorm(qsqz) - 1
	if prW >= 1 {
		prW = 1
	} else {
		prW = math.Pow(prW, cc)
	}

	wincr := wincr2
	if w > wlar {
		wincr = wincr1
	}

	blb := qsqz
	binc := (bb - qsqz) / wincr
	bub := blb + binc
	einsum := 0.0
	cc1 := cc - 1

	for wi := 1.0; wi <= wincr; wi++ {
		elsum := 0.0
		a := 0.5 * (bub + blb)
		b := 0.5 * (bub - blb)

		for jj := 1; jj <= nleg; jj++ {
			var j int
			var xx float64
			if ihalf < jj {
				j = nleg - jj + 1
				xx = wLegX[j-1]
			} else {
				j = jj
				xx = -wLegX[j-1]
			}
			c := b * xx
			ac := a + c
			qexpo := ac * ac
			if qexpo > c3 {
				break
			}
			pplus := 2 * pnorm(ac)
			pminus := 2 * pnorm(ac-w)
			rinsum := pplus*0.5 - pminus*0.5
			if rinsum >= math.Exp(c1/cc1) {
				rinsum = wLegA[j-1] * math.Exp(-0.5*qexpo) * math.Pow(rinsum, cc1)
				elsum += rinsum
			}
		}
		elsum *= (2 * b) * cc / math.Sqrt(2*math.Pi)
		einsum += elsum
		blb = bub
		bub += binc
	}

	prW += einsum
	if prW <= math.Exp(c1/rr) {
		return 0
	}
	prW = math.Pow(prW, rr)
	if prW >= 1 {
		return 1
	}
	return prW
}

// StudentizedRangeCDF returns P(Q < q) for k means and df degrees of freedom.
// df may be +Inf.
func StudentizedRangeCDF(q, k, df float64) float64 {
	const (
		nlegq  = 16
		ihalfq = 8
		eps1   = -30.0
		eps2   = 1.0e-14
		dhaf   = 100.0
		dquar  = 800.0
		deigh  = 5000.0
		dlarg  = 25000.0
		rr     = 1.0
	)

	if math.IsNaN(q) || math.IsNaN(k) || math.IsNaN(df) || k < 2 || df < 2 {
		return math.NaN()
	}
	if q <= 0 {
		return 0
	}
	if math.IsInf(q, 1) {
		return 1
	}
	if df > dlarg {
		return rangeProb(q, rr, k)
	}

	f2 := df * 0.5
	lg, _ := math.Lgamma(f2)
	f2lf := f2*math.Log(df) - df*math.Log(2) - lg
	f21 := f2 - 1
	ff4 := df * 0.25

	var ulen float64
	switch {
	case df <= dhaf:
		ulen = 1
	case df <= dquar:
		ulen = 0.5
	case df <= deigh:
		ulen = 0.25
	default:
		ulen = 0.125
	}
	f2lf += math.Log(ulen)

	ans := 0.0
	for i := 1; i <= 50; i++ {
		otsum := 0.0
		twa1 := float64(2*i-1) * ulen

		for jj := 1; jj <= nlegq; jj++ {
			var j int
			var t1 float64
			upper := ihalfq < jj
			if upper {
				j = jj - ihalfq - 1
				t1 = (f2lf + f21*math.Log(twa1+qLegX[j]*ulen)) - (qLegX[j]*ulen+twa1)*ff4
			} else {
				j = jj - 1
				t1 = (f2lf + f21*math.Log(twa1-qLegX[j]*ulen)) + (qLegX[j]*ulen-twa1)*ff4
			}
			if t1 >= eps1 {
				var qsqz float64
				if upper {
					qsqz = q * math.Sqrt((qLegX[j]*ulen+twa1)*0.5)
				} else {
					qsqz = q * math.Sqrt((-(qLegX[j] * ulen)+twa1)*0.5)
				}
				otsum += rangeProb(qsqz, rr, k) * qLegA[j] * math.Exp(t1)
			}
		}

		if float64(i)*ulen >= 1 && otsum <= eps2 {
			break
		}
		ans += otsum
	}

	if ans > 1 {
		ans = 1
	}
	return ans
}

// StudentizedRangeSF returns P(Q > q)
func StudentizedRangeSF(q, k, df float64) float64 {
	p := 1 - StudentizedRangeCDF(q, k, df)
	if p < 0 {
		return 0
	}
	return p
}
