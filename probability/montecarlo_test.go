package probability

import (
	"math"
	"testing"

	"github.com/samkelemen/arbtheory/models"
	"golang.org/x/exp/rand"
)

func testModel(t *testing.T) *models.BinomialModel {
	t.Helper()
	m, err := models.NewBinomialModel(5, 1.1, 0.9, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func callPayoff(strike float64) models.Payoff {
	return func(terminal float64) float64 { return math.Max(terminal-strike, 0) }
}

func TestSimulatePriceDeterministicForSeed(t *testing.T) {
	m := testModel(t)
	phi := callPayoff(100)

	a := SimulatePrice(m, phi, rand.New(rand.NewSource(42)))
	b := SimulatePrice(m, phi, rand.New(rand.NewSource(42)))
	if a != b {
		t.Fatalf("same seed produced %f and %f", a, b)
	}
}

func TestSimulatePriceHitsTreeNodes(t *testing.T) {
	m := testModel(t)
	rng := rand.New(rand.NewSource(7))

	// The identity claim must always land on a terminal tree price.
	identity := func(terminal float64) float64 { return terminal }
	leaves := m.PriceProcess().Leaves()

	for i := 0; i < 100; i++ {
		price := SimulatePrice(m, identity, rng)
		found := false
		for _, leaf := range leaves {
			if math.Abs(price-leaf) < 1e-9 {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("simulated terminal price %f is not a tree leaf", price)
		}
	}
}

func TestMonteCarloPriceConvergesToTreePrice(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping simulation in short mode")
	}

	m := testModel(t)
	phi := callPayoff(100)
	want := m.Price(phi)

	result, err := MonteCarloPrice(m, phi, 200000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Simulations != 200000 {
		t.Fatalf("simulations: got %d, want 200000", result.Simulations)
	}
	if result.StdError <= 0 {
		t.Fatalf("standard error must be positive, got %f", result.StdError)
	}

	tolerance := math.Max(6*result.StdError, 0.25)
	if math.Abs(result.Price-want) > tolerance {
		t.Fatalf("monte carlo price %f too far from tree price %f (tolerance %f)",
			result.Price, want, tolerance)
	}
}

func TestMonteCarloRejectsArbitrageModel(t *testing.T) {
	// 1+R exceeds u, so the martingale "measure" has a negative weight.
	m, err := models.NewBinomialModel(3, 1.05, 0.9, 100, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := MonteCarloPrice(m, callPayoff(100), 1000); err == nil {
		t.Fatal("expected an error for a model that admits arbitrage")
	}
}

func TestSummarize(t *testing.T) {
	samples := []float64{1, 2, 3, 4}
	result := Summarize(samples)

	if result.Price != 2.5 {
		t.Fatalf("mean: got %f, want 2.5", result.Price)
	}
	if result.Simulations != 4 {
		t.Fatalf("simulations: got %d, want 4", result.Simulations)
	}
	// Sample standard deviation sqrt(5/3) over sqrt(4).
	want := math.Sqrt(5.0/3.0) / 2
	if math.Abs(result.StdError-want) > 1e-12 {
		t.Fatalf("standard error: got %f, want %f", result.StdError, want)
	}
}
