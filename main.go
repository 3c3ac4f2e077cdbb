package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/samkelemen/arbtheory/claims"
	"github.com/samkelemen/arbtheory/models"
	"github.com/samkelemen/arbtheory/probability"
	"github.com/xhhuango/json"
)

const confidenceLevel = 0.95

type claimResult struct {
	Claim         string                       `json:"claim"`
	Price         float64                      `json:"price"`
	AmericanPrice float64                      `json:"american_price"`
	InitialHedge  models.Hedge                 `json:"initial_hedge"`
	MonteCarlo    probability.SimulationResult `json:"monte_carlo"`
	ValueAtRisk   float64                      `json:"value_at_risk"`
	Shortfall     float64                      `json:"expected_shortfall"`
}

type report struct {
	Steps         int           `json:"steps"`
	Up            float64       `json:"up"`
	Down          float64       `json:"down"`
	Spot          float64       `json:"spot"`
	Rate          float64       `json:"rate"`
	QUp           float64       `json:"q_up"`
	QDown         float64       `json:"q_down"`
	ArbitrageFree bool          `json:"arbitrage_free"`
	Complete      bool          `json:"complete"`
	Claims        []claimResult `json:"claims"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using default parameters")
	}

	steps := envInt("ARB_STEPS", 10)
	up := envFloat("ARB_UP", 1.1)
	down := envFloat("ARB_DOWN", 0.9)
	spot := envFloat("ARB_SPOT", 100)
	rate := envFloat("ARB_RATE", 0.01)
	strike := envFloat("ARB_STRIKE", 100)
	numSimulations := envInt("ARB_SIMULATIONS", probability.DefaultSimulations)

	model, err := models.NewBinomialModel(steps, up, down, spot, rate)
	if err != nil {
		log.Fatalf("Error building binomial model: %s", err.Error())
	}

	qu, qd := model.MartingaleMeasure()
	fmt.Printf("Binomial model: %d periods, u=%.4f, d=%.4f, S=%.2f, R=%.4f\n", steps, up, down, spot, rate)
	fmt.Printf("Martingale measure: qu=%.4f, qd=%.4f\n", qu, qd)
	fmt.Printf("Arbitrage free: %t, complete: %t\n", model.IsArbitrageFree(), model.IsComplete())

	book := []struct {
		name   string
		payoff models.Payoff
	}{
		{"call", claims.Call(strike)},
		{"put", claims.Put(strike)},
		{"straddle", claims.Straddle(strike)},
		{"digital_call", claims.DigitalCall(strike)},
		{"butterfly", claims.Butterfly(strike, 0.1*strike)},
	}

	// Claims are priced one at a time: each simulation drives its own
	// progress bar, and the workers inside Simulate already saturate
	// the CPUs.
	var results []claimResult
	for _, entry := range book {
		name, phi := entry.name, entry.payoff

		price := model.Price(phi)
		hedge, err := model.HedgeAt(0, 0, phi)
		if err != nil {
			fmt.Printf("Error hedging %s: %s\n", name, err.Error())
			continue
		}

		fmt.Printf("Pricing %s\n", name)
		samples, err := probability.Simulate(model, phi, numSimulations)
		if err != nil {
			fmt.Printf("Error simulating %s: %s\n", name, err.Error())
			continue
		}
		estimate := probability.Summarize(samples)
		valueAtRisk, err := probability.ValueAtRisk(samples, price, confidenceLevel)
		if err != nil {
			fmt.Printf("Error computing VaR for %s: %s\n", name, err.Error())
			continue
		}
		shortfall, err := probability.ExpectedShortfall(samples, price, confidenceLevel)
		if err != nil {
			fmt.Printf("Error computing expected shortfall for %s: %s\n", name, err.Error())
			continue
		}

		results = append(results, claimResult{
			Claim:         name,
			Price:         price,
			AmericanPrice: model.AmericanPrice(phi),
			InitialHedge:  hedge,
			MonteCarlo:    estimate,
			ValueAtRisk:   valueAtRisk,
			Shortfall:     shortfall,
		})
	}

	for _, r := range results {
		fmt.Printf("%-14s price=%.4f american=%.4f mc=%.4f (±%.4f)\n",
			r.Claim, r.Price, r.AmericanPrice, r.MonteCarlo.Price, r.MonteCarlo.StdError)
	}

	runOnePeriodExample()

	out := report{
		Steps:         steps,
		Up:            up,
		Down:          down,
		Spot:          spot,
		Rate:          rate,
		QUp:           qu,
		QDown:         qd,
		ArbitrageFree: model.IsArbitrageFree(),
		Complete:      model.IsComplete(),
		Claims:        results,
	}

	jreport, err := json.Marshal(out)
	if err != nil {
		fmt.Printf("Error marshalling results: %s\n", err.Error())
		return
	}

	f := "results.json"
	if err := ioutil.WriteFile(f, jreport, 0644); err != nil {
		fmt.Printf("Error writing to file %s: %s\n", f, err.Error())
		return
	}

	fmt.Printf("Successfully wrote %d claim results to %s\n", len(results), f)
}

// runOnePeriodExample prices a call in a two-asset, two-state market and
// prints the replication against the martingale measure.
func runOnePeriodExample() {
	// Bond at 1 paying 1.01 in both states, stock at 100 moving to 110 or 90.
	market, err := models.NewOnePeriodModel(
		[]float64{1, 100},
		[][]float64{
			{1.01, 1.01},
			{110, 90},
		},
	)
	if err != nil {
		fmt.Printf("Error building one-period model: %s\n", err.Error())
		return
	}

	fmt.Printf("One-period market: %d assets, %d states\n", market.NumAssets(), market.NumStates())
	fmt.Printf("Arbitrage free: %t, complete: %t\n", market.IsArbitrageFree(), market.IsComplete())

	q, err := market.MartingaleMeasure()
	if err != nil {
		fmt.Printf("Error computing martingale measure: %s\n", err.Error())
		return
	}
	fmt.Printf("Martingale measure: %v\n", q)

	payoff := []float64{10, 0} // call struck at 100
	portfolio, err := market.ReplicatingPortfolio(payoff)
	if err != nil {
		fmt.Printf("Error replicating call: %s\n", err.Error())
		return
	}
	price, err := market.PriceClaim(payoff)
	if err != nil {
		fmt.Printf("Error pricing call: %s\n", err.Error())
		return
	}
	fmt.Printf("Call replication: portfolio=%v, price=%.4f\n", portfolio, price)
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Fatalf("Invalid value for %s: %s", key, raw)
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid value for %s: %s", key, raw)
	}
	return value
}
