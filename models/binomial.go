package models

import (
	"fmt"
	"math"
)

const probabilityTolerance = 1e-12

// Payoff maps a terminal asset price to the payoff of a contingent claim.
type Payoff func(terminal float64) float64

// Hedge is a self-financing portfolio position at a single tree node:
// Bond units of the riskless asset and Stock units of the underlying.
type Hedge struct {
	Bond  float64 `json:"bond"`
	Stock float64 `json:"stock"`
}

// BinomialModel is a multi-period binomial market with a riskless bond
// growing at rate Rate per period and a stock moving by factor Up or Down
// each period. The price tree is computed once at construction.
type BinomialModel struct {
	Steps int     // number of periods
	Up    float64 // up movement factor
	Down  float64 // down movement factor
	Spot  float64 // initial stock price
	Rate  float64 // riskless rate per period
	PUp   float64 // subjective probability of an up move
	PDown float64 // subjective probability of a down move

	prices *Tree
}

// NewBinomialModel builds a binomial model with symmetric subjective
// probabilities. The subjective measure never enters pricing; it is kept
// for simulation under the real-world measure.
func NewBinomialModel(steps int, up, down, spot, rate float64) (*BinomialModel, error) {
	return NewBinomialModelWithProbabilities(steps, up, down, spot, rate, 0.5, 0.5)
}

// NewBinomialModelWithProbabilities builds a binomial model with an
// explicit subjective probability measure {pUp, pDown}.
func NewBinomialModelWithProbabilities(steps int, up, down, spot, rate, pUp, pDown float64) (*BinomialModel, error) {
	if steps < 1 {
		return nil, fmt.Errorf("binomial model requires at least one period, got %d", steps)
	}
	if down <= 0 {
		return nil, fmt.Errorf("down factor must be positive, got %f", down)
	}
	if up <= down {
		return nil, fmt.Errorf("up factor %f must exceed down factor %f", up, down)
	}
	if spot <= 0 {
		return nil, fmt.Errorf("spot price must be positive, got %f", spot)
	}
	if 1+rate <= 0 {
		return nil, fmt.Errorf("gross riskless return 1+R must be positive, got %f", 1+rate)
	}
	if pUp < 0 || pDown < 0 {
		return nil, fmt.Errorf("probabilities must be non-negative, got pUp=%f pDown=%f", pUp, pDown)
	}
	if math.Abs(pUp+pDown-1) > probabilityTolerance {
		return nil, fmt.Errorf("probabilities must sum to one, got %f", pUp+pDown)
	}

	m := &BinomialModel{
		Steps: steps,
		Up:    up,
		Down:  down,
		Spot:  spot,
		Rate:  rate,
		PUp:   pUp,
		PDown: pDown,
	}
	m.prices = m.computePriceProcess()
	return m, nil
}

func (m *BinomialModel) computePriceProcess() *Tree {
	prices := NewTree(m.Steps)
	for t := 0; t <= m.Steps; t++ {
		for k := 0; k <= t; k++ {
			// t-k is the number of down moves on the way to (t, k).
			prices.Set(t, k, m.Spot*math.Pow(m.Up, float64(k))*math.Pow(m.Down, float64(t-k)))
		}
	}
	return prices
}

// PriceProcess returns the stock price tree.
func (m *BinomialModel) PriceProcess() *Tree {
	return m.prices
}

// PriceAt returns the stock price at time step t after k up moves.
func (m *BinomialModel) PriceAt(t, k int) float64 {
	return m.prices.At(t, k)
}

// MartingaleMeasure returns the risk-neutral probabilities (qu, qd) under
// which the discounted price process is a martingale. The measure is a
// true probability measure exactly when the model is arbitrage free.
func (m *BinomialModel) MartingaleMeasure() (qu, qd float64) {
	qu = ((1 + m.Rate) - m.Down) / (m.Up - m.Down)
	qd = (m.Up - (1 + m.Rate)) / (m.Up - m.Down)
	return qu, qd
}

// IsArbitrageFree reports whether the textbook no-arbitrage condition
// d < 1+R < u holds.
func (m *BinomialModel) IsArbitrageFree() bool {
	return m.Down < 1+m.Rate && 1+m.Rate < m.Up
}

// IsComplete always reports true: every claim on the binomial tree is
// replicable by trading the bond and the stock.
func (m *BinomialModel) IsComplete() bool {
	return true
}

// ValueProcess computes the arbitrage-free value of a European contingent
// claim at every node by backward induction under the martingale measure.
func (m *BinomialModel) ValueProcess(phi Payoff) *Tree {
	qu, qd := m.MartingaleMeasure()
	discount := 1 / (1 + m.Rate)

	values := NewTree(m.Steps)
	for k := 0; k <= m.Steps; k++ {
		values.Set(m.Steps, k, phi(m.prices.At(m.Steps, k)))
	}
	for t := m.Steps - 1; t >= 0; t-- {
		for k := 0; k <= t; k++ {
			continuation := qu*values.At(t+1, k+1) + qd*values.At(t+1, k)
			values.Set(t, k, discount*continuation)
		}
	}
	return values
}

// Price returns the arbitrage-free time-zero price of a European claim.
func (m *BinomialModel) Price(phi Payoff) float64 {
	return m.ValueProcess(phi).At(0, 0)
}

// AmericanValueProcess computes the value of an American claim that may
// be exercised at any node for the immediate payoff phi(S).
func (m *BinomialModel) AmericanValueProcess(phi Payoff) *Tree {
	qu, qd := m.MartingaleMeasure()
	discount := 1 / (1 + m.Rate)

	values := NewTree(m.Steps)
	for k := 0; k <= m.Steps; k++ {
		values.Set(m.Steps, k, phi(m.prices.At(m.Steps, k)))
	}
	for t := m.Steps - 1; t >= 0; t-- {
		for k := 0; k <= t; k++ {
			continuation := discount * (qu*values.At(t+1, k+1) + qd*values.At(t+1, k))
			intrinsic := phi(m.prices.At(t, k))
			values.Set(t, k, math.Max(intrinsic, continuation))
		}
	}
	return values
}

// AmericanPrice returns the time-zero price of an American claim.
func (m *BinomialModel) AmericanPrice(phi Payoff) float64 {
	return m.AmericanValueProcess(phi).At(0, 0)
}

// HedgeAt computes the replicating portfolio held over the period
// starting at node (t, k): Bond units of the riskless asset and Stock
// units of the underlying whose value at t+1 matches the claim in both
// successor states.
func (m *BinomialModel) HedgeAt(t, k int, phi Payoff) (Hedge, error) {
	if t < 0 || t >= m.Steps || k < 0 || k > t {
		return Hedge{}, fmt.Errorf("hedge node (t=%d, k=%d) out of range for %d periods", t, k, m.Steps)
	}
	values := m.ValueProcess(phi)
	return m.hedgeAt(t, k, values), nil
}

func (m *BinomialModel) hedgeAt(t, k int, values *Tree) Hedge {
	vUp := values.At(t+1, k+1)
	vDown := values.At(t+1, k)

	bond := (1 / (1 + m.Rate)) * (m.Up*vDown - m.Down*vUp) / (m.Up - m.Down)
	stock := (vUp - vDown) / (m.prices.At(t, k) * (m.Up - m.Down))

	return Hedge{Bond: bond, Stock: stock}
}

// HedgingPortfolios computes the replicating portfolio at every
// non-terminal node. The result is indexed [t][k] for t < Steps.
func (m *BinomialModel) HedgingPortfolios(phi Payoff) [][]Hedge {
	values := m.ValueProcess(phi)

	hedges := make([][]Hedge, m.Steps)
	for t := 0; t < m.Steps; t++ {
		hedges[t] = make([]Hedge, t+1)
		for k := 0; k <= t; k++ {
			hedges[t][k] = m.hedgeAt(t, k, values)
		}
	}
	return hedges
}
