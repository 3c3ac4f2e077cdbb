package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// NewCRRModel builds a binomial model with Cox-Ross-Rubinstein movement
// factors for annualized volatility sigma: u = exp(sigma*sqrt(dt)),
// d = 1/u, with the per-period riskless rate derived from the
// continuously compounded annual rate. As steps grows the model price of
// a European option converges to its Black-Scholes price.
func NewCRRModel(steps int, sigma, spot, annualRate, maturity float64) (*BinomialModel, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("volatility must be positive, got %f", sigma)
	}
	if maturity <= 0 {
		return nil, fmt.Errorf("maturity must be positive, got %f", maturity)
	}
	if steps < 1 {
		return nil, fmt.Errorf("CRR model requires at least one period, got %d", steps)
	}

	dt := maturity / float64(steps)
	up := math.Exp(sigma * math.Sqrt(dt))
	down := 1 / up
	rate := math.Exp(annualRate*dt) - 1

	return NewBinomialModel(steps, up, down, spot, rate)
}

// CalibrateCRR fits the volatility of a CRR model to observed European
// call prices by minimizing the mean squared pricing error with
// Nelder-Mead. The returned sigma reprices the quotes as closely as the
// tree allows.
func CalibrateCRR(marketPrices, strikes []float64, steps int, spot, annualRate, maturity, sigmaGuess float64) (float64, error) {
	if len(marketPrices) != len(strikes) {
		return 0, fmt.Errorf("got %d market prices for %d strikes", len(marketPrices), len(strikes))
	}
	if len(strikes) == 0 {
		return 0, fmt.Errorf("calibration requires at least one quote")
	}
	if sigmaGuess <= 0 {
		return 0, fmt.Errorf("volatility guess must be positive, got %f", sigmaGuess)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sigma := x[0]
			if sigma <= 0 {
				return math.Inf(1)
			}
			model, err := NewCRRModel(steps, sigma, spot, annualRate, maturity)
			if err != nil {
				return math.Inf(1)
			}

			mse := 0.0
			for i, strike := range strikes {
				k := strike
				modelPrice := model.Price(func(s float64) float64 { return math.Max(s-k, 0) })
				mse += math.Pow(modelPrice-marketPrices[i], 2)
			}
			return mse / float64(len(strikes))
		},
	}

	result, err := optimize.Minimize(problem, []float64{sigmaGuess}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, err
	}
	return result.X[0], nil
}
