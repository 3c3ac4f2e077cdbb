package models

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholesPrice returns the closed-form Black-Scholes price of a
// European option on a non-dividend stock: spot price s, strike k,
// continuously compounded rate r, volatility sigma, maturity t in years.
// It serves as the continuous-time limit of the CRR binomial model.
func BlackScholesPrice(s, k, r, sigma, t float64, isCall bool) float64 {
	if t <= 0 || sigma <= 0 {
		// Degenerate contract, worth its intrinsic value.
		if isCall {
			return math.Max(s-k, 0)
		}
		return math.Max(k-s, 0)
	}

	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	d2 := d1 - sigma*math.Sqrt(t)

	norm := distuv.UnitNormal
	if isCall {
		return s*norm.CDF(d1) - k*math.Exp(-r*t)*norm.CDF(d2)
	}
	return k*math.Exp(-r*t)*norm.CDF(-d2) - s*norm.CDF(-d1)
}
