package models

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const lpTolerance = 1e-9

var (
	// ErrNoStatePrices reports that no strictly positive state-price
	// vector exists, i.e. the market admits arbitrage.
	ErrNoStatePrices = errors.New("no strictly positive state-price vector exists")
	// ErrNotAttainable reports that a claim cannot be replicated by any
	// portfolio of the traded assets.
	ErrNotAttainable = errors.New("claim is not attainable in this market")
	// ErrArbitrageFree reports that no arbitrage portfolio exists.
	ErrArbitrageFree = errors.New("market is arbitrage free")
)

// OnePeriodModel is a general one-period market of N assets over M states
// of the world. S0 holds the time-zero asset prices and D the terminal
// payoffs, D[i][j] being the payoff of asset i in state j. Asset 0 acts
// as the numeraire and must have strictly positive price and payoffs.
type OnePeriodModel struct {
	s0      *mat.VecDense // N asset prices at time zero
	payoffs *mat.Dense    // N x M terminal payoff matrix
}

// NewOnePeriodModel validates the market data and returns the model.
// The payoff matrix is given row-major, one row per asset.
func NewOnePeriodModel(prices []float64, payoffs [][]float64) (*OnePeriodModel, error) {
	numAssets := len(prices)
	if numAssets == 0 {
		return nil, fmt.Errorf("one-period model requires at least one asset")
	}
	if len(payoffs) != numAssets {
		return nil, fmt.Errorf("payoff matrix has %d rows for %d assets", len(payoffs), numAssets)
	}
	numStates := len(payoffs[0])
	if numStates == 0 {
		return nil, fmt.Errorf("one-period model requires at least one state")
	}
	for i, row := range payoffs {
		if len(row) != numStates {
			return nil, fmt.Errorf("payoff row %d has %d states, expected %d", i, len(row), numStates)
		}
	}
	if prices[0] <= 0 {
		return nil, fmt.Errorf("numeraire price must be positive, got %f", prices[0])
	}
	for j, v := range payoffs[0] {
		if v <= 0 {
			return nil, fmt.Errorf("numeraire payoff in state %d must be positive, got %f", j, v)
		}
	}

	d := mat.NewDense(numAssets, numStates, nil)
	for i := range payoffs {
		d.SetRow(i, payoffs[i])
	}
	return &OnePeriodModel{
		s0:      mat.NewVecDense(numAssets, append([]float64(nil), prices...)),
		payoffs: d,
	}, nil
}

// NumAssets returns the number of traded assets N.
func (m *OnePeriodModel) NumAssets() int {
	r, _ := m.payoffs.Dims()
	return r
}

// NumStates returns the size of the state space M.
func (m *OnePeriodModel) NumStates() int {
	_, c := m.payoffs.Dims()
	return c
}

// Prices returns a copy of the time-zero price vector.
func (m *OnePeriodModel) Prices() []float64 {
	out := make([]float64, m.s0.Len())
	copy(out, m.s0.RawVector().Data)
	return out
}

// PayoffMatrix returns a copy of the N x M payoff matrix.
func (m *OnePeriodModel) PayoffMatrix() *mat.Dense {
	return mat.DenseCopyOf(m.payoffs)
}

// Rank returns the numerical rank of the payoff matrix, computed from
// its singular values.
func (m *OnePeriodModel) Rank() int {
	var svd mat.SVD
	if ok := svd.Factorize(m.payoffs, mat.SVDNone); !ok {
		panic("models: SVD of payoff matrix failed to converge")
	}
	values := svd.Values(nil)

	n, c := m.payoffs.Dims()
	if c > n {
		n = c
	}
	tol := float64(n) * values[0] * 1e-14

	rank := 0
	for _, sigma := range values {
		if sigma > tol {
			rank++
		}
	}
	return rank
}

// IsComplete reports whether every contingent claim is attainable, which
// holds exactly when the rows of the payoff matrix span the state space.
func (m *OnePeriodModel) IsComplete() bool {
	return m.Rank() == m.NumStates()
}

// StatePriceVector finds a strictly positive vector pi with S0 = D*pi by
// linear programming: maximize the smallest component subject to the
// pricing equations. By the first fundamental theorem such a vector
// exists exactly when the market is arbitrage free; ErrNoStatePrices is
// returned otherwise.
func (m *OnePeriodModel) StatePriceVector() ([]float64, error) {
	// The simplex solver needs independent equality rows, so redundant
	// assets are dropped from the pricing equations first. A dependent
	// asset priced inconsistently with its span is itself an arbitrage.
	rows, err := m.independentPricingRows()
	if err != nil {
		return nil, err
	}

	numStates := m.NumStates()

	// Variables: pi (numStates), eps, slack (numStates), all non-negative.
	// Rows: D*pi = S0 over the independent assets, then
	// pi_j - eps - slack_j = 0.
	numVars := 2*numStates + 1
	numRows := len(rows) + numStates

	a := mat.NewDense(numRows, numVars, nil)
	b := make([]float64, numRows)
	c := make([]float64, numVars)
	c[numStates] = -1 // maximize eps

	for r, i := range rows {
		for j := 0; j < numStates; j++ {
			a.Set(r, j, m.payoffs.At(i, j))
		}
		b[r] = m.s0.AtVec(i)
	}
	for j := 0; j < numStates; j++ {
		row := len(rows) + j
		a.Set(row, j, 1)
		a.Set(row, numStates, -1)
		a.Set(row, numStates+1+j, -1)
	}

	opt, x, err := lp.Simplex(c, a, b, lpTolerance, nil)
	if err != nil {
		return nil, ErrNoStatePrices
	}
	if -opt <= lpTolerance {
		// Pricing equations are solvable only on the boundary pi >= 0.
		return nil, ErrNoStatePrices
	}
	return x[:numStates], nil
}

// independentPricingRows selects a maximal linearly independent subset
// of asset rows by Gaussian elimination on the augmented system [D | S0].
// A row that is dependent in payoffs but not in price cannot be priced
// consistently, so ErrNoStatePrices is returned for it.
func (m *OnePeriodModel) independentPricingRows() ([]int, error) {
	numAssets := m.NumAssets()
	numStates := m.NumStates()

	aug := make([][]float64, numAssets)
	scale := 0.0
	for i := 0; i < numAssets; i++ {
		aug[i] = make([]float64, numStates+1)
		for j := 0; j < numStates; j++ {
			aug[i][j] = m.payoffs.At(i, j)
			scale = math.Max(scale, math.Abs(aug[i][j]))
		}
		aug[i][numStates] = m.s0.AtVec(i)
		scale = math.Max(scale, math.Abs(aug[i][numStates]))
	}
	tol := scale * 1e-12

	var pivots []int
	used := make([]bool, numAssets)

	for col := 0; col < numStates; col++ {
		pivot := -1
		for i := 0; i < numAssets; i++ {
			if used[i] {
				continue
			}
			if pivot < 0 || math.Abs(aug[i][col]) > math.Abs(aug[pivot][col]) {
				pivot = i
			}
		}
		if pivot < 0 || math.Abs(aug[pivot][col]) <= tol {
			continue
		}

		used[pivot] = true
		pivots = append(pivots, pivot)

		for i := 0; i < numAssets; i++ {
			if used[i] || i == pivot {
				continue
			}
			factor := aug[i][col] / aug[pivot][col]
			for j := col; j <= numStates; j++ {
				aug[i][j] -= factor * aug[pivot][j]
			}
		}
	}

	// Every unused row is now zero in payoffs; a leftover price means
	// the market quotes two prices for the same payoff.
	for i := 0; i < numAssets; i++ {
		if !used[i] && math.Abs(aug[i][numStates]) > tol {
			return nil, ErrNoStatePrices
		}
	}

	sort.Ints(pivots)
	return pivots, nil
}

// IsArbitrageFree reports whether a strictly positive state-price vector
// exists.
func (m *OnePeriodModel) IsArbitrageFree() bool {
	_, err := m.StatePriceVector()
	return err == nil
}

// MartingaleMeasure returns the risk-neutral probabilities induced by the
// state prices in the economy normalized by the numeraire asset:
// q_j = pi_j * D[0][j] / S0[0].
func (m *OnePeriodModel) MartingaleMeasure() ([]float64, error) {
	pi, err := m.StatePriceVector()
	if err != nil {
		return nil, err
	}
	q := make([]float64, len(pi))
	for j := range pi {
		q[j] = pi[j] * m.payoffs.At(0, j) / m.s0.AtVec(0)
	}
	return q, nil
}

// ReplicatingPortfolio solves transpose(D)*h = x for the portfolio h
// whose terminal value equals the claim payoff x in every state.
// ErrNotAttainable is returned when no exact solution exists.
func (m *OnePeriodModel) ReplicatingPortfolio(payoff []float64) ([]float64, error) {
	numStates := m.NumStates()
	if len(payoff) != numStates {
		return nil, fmt.Errorf("claim payoff has %d states, expected %d", len(payoff), numStates)
	}

	target := mat.NewVecDense(numStates, append([]float64(nil), payoff...))
	var h mat.VecDense
	if err := h.SolveVec(m.payoffs.T(), target); err != nil {
		return nil, ErrNotAttainable
	}

	// SolveVec yields a least-squares solution for non-square systems.
	// Replication demands an exact one.
	var terminal mat.VecDense
	terminal.MulVec(m.payoffs.T(), &h)
	for j := 0; j < numStates; j++ {
		if math.Abs(terminal.AtVec(j)-payoff[j]) > lpTolerance*math.Max(1, math.Abs(payoff[j])) {
			return nil, ErrNotAttainable
		}
	}

	out := make([]float64, h.Len())
	copy(out, h.RawVector().Data)
	return out, nil
}

// PriceClaim returns the arbitrage-free price S0 . h of an attainable
// claim, h being its replicating portfolio.
func (m *OnePeriodModel) PriceClaim(payoff []float64) (float64, error) {
	h, err := m.ReplicatingPortfolio(payoff)
	if err != nil {
		return 0, err
	}
	return mat.Dot(m.s0, mat.NewVecDense(len(h), h)), nil
}

// FindArbitragePortfolio searches for a portfolio h with non-negative
// terminal payoff in every state and non-positive cost, where either the
// payoff or the cost is strictly signed. ErrArbitrageFree is returned
// when no such portfolio exists.
func (m *OnePeriodModel) FindArbitragePortfolio() ([]float64, error) {
	if h, err := m.dominantPortfolio(); err == nil {
		return h, nil
	}
	return m.freeLunchPortfolio()
}

// dominantPortfolio minimizes the cost S0 . h over portfolios whose
// terminal payoff is non-negative and normalized to sum to one. A
// minimizer with non-positive cost is an arbitrage.
func (m *OnePeriodModel) dominantPortfolio() ([]float64, error) {
	numAssets := m.NumAssets()
	numStates := m.NumStates()

	// Variables: hPlus (N), hMinus (N), w (M) with h = hPlus - hMinus and
	// w the terminal payoff. Rows: transpose(D)*h - w = 0, sum(w) = 1.
	numVars := 2*numAssets + numStates
	numRows := numStates + 1

	a := mat.NewDense(numRows, numVars, nil)
	b := make([]float64, numRows)
	c := make([]float64, numVars)

	for i := 0; i < numAssets; i++ {
		c[i] = m.s0.AtVec(i)
		c[numAssets+i] = -m.s0.AtVec(i)
	}
	for j := 0; j < numStates; j++ {
		for i := 0; i < numAssets; i++ {
			a.Set(j, i, m.payoffs.At(i, j))
			a.Set(j, numAssets+i, -m.payoffs.At(i, j))
		}
		a.Set(j, 2*numAssets+j, -1)
		a.Set(numStates, 2*numAssets+j, 1)
	}
	b[numStates] = 1

	opt, x, err := lp.Simplex(c, a, b, lpTolerance, nil)
	if err != nil || opt > lpTolerance {
		return nil, ErrArbitrageFree
	}
	return splitPortfolio(x, numAssets), nil
}

// freeLunchPortfolio searches for a portfolio with zero-or-better payoff
// in every state and strictly negative cost, normalized to S0 . h = -1.
func (m *OnePeriodModel) freeLunchPortfolio() ([]float64, error) {
	numAssets := m.NumAssets()
	numStates := m.NumStates()

	numVars := 2*numAssets + numStates
	numRows := numStates + 1

	a := mat.NewDense(numRows, numVars, nil)
	b := make([]float64, numRows)
	c := make([]float64, numVars)

	for j := 0; j < numStates; j++ {
		for i := 0; i < numAssets; i++ {
			a.Set(j, i, m.payoffs.At(i, j))
			a.Set(j, numAssets+i, -m.payoffs.At(i, j))
		}
		a.Set(j, 2*numAssets+j, -1)
	}
	for i := 0; i < numAssets; i++ {
		a.Set(numStates, i, m.s0.AtVec(i))
		a.Set(numStates, numAssets+i, -m.s0.AtVec(i))
	}
	b[numStates] = -1

	_, x, err := lp.Simplex(c, a, b, lpTolerance, nil)
	if err != nil {
		return nil, ErrArbitrageFree
	}
	return splitPortfolio(x, numAssets), nil
}

func splitPortfolio(x []float64, numAssets int) []float64 {
	h := make([]float64, numAssets)
	for i := 0; i < numAssets; i++ {
		h[i] = x[i] - x[numAssets+i]
	}
	return h
}
