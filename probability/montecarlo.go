package probability

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/samkelemen/arbtheory/models"
	"github.com/shirou/gopsutil/cpu"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

// DefaultSimulations is the simulation count used when the caller passes
// a non-positive one.
const DefaultSimulations = 100000

const progressBatch = 1000

var rngPool = sync.Pool{
	New: func() interface{} {
		return rand.New(rand.NewSource(uint64(rand.Int63())))
	},
}

// SimulationResult holds a Monte Carlo price estimate for a claim.
type SimulationResult struct {
	Price       float64 `json:"price"`
	StdError    float64 `json:"std_error"`
	Simulations int     `json:"simulations"`
}

// SimulatePrice draws one terminal state of the binomial model under its
// martingale measure and returns the discounted claim payoff.
func SimulatePrice(m *models.BinomialModel, phi models.Payoff, rng *rand.Rand) float64 {
	qu, _ := m.MartingaleMeasure()

	ups := 0
	for t := 0; t < m.Steps; t++ {
		if rng.Float64() < qu {
			ups++
		}
	}

	discount := math.Pow(1/(1+m.Rate), float64(m.Steps))
	return discount * phi(m.PriceAt(m.Steps, ups))
}

// MonteCarloPrice estimates the arbitrage-free price of a European claim
// by simulation under the martingale measure. It is an independent check
// on the backward-induction value process: the estimate converges to
// models.BinomialModel.Price as the simulation count grows.
func MonteCarloPrice(m *models.BinomialModel, phi models.Payoff, numSimulations int) (SimulationResult, error) {
	samples, err := Simulate(m, phi, numSimulations)
	if err != nil {
		return SimulationResult{}, err
	}
	return Summarize(samples), nil
}

// Summarize reduces simulated discounted payoffs to a price estimate
// with its standard error.
func Summarize(samples []float64) SimulationResult {
	return SimulationResult{
		Price:       stat.Mean(samples, nil),
		StdError:    stat.StdDev(samples, nil) / math.Sqrt(float64(len(samples))),
		Simulations: len(samples),
	}
}

// Simulate draws discounted claim payoffs under the martingale measure
// across a pool of workers sized to the machine's logical CPUs.
func Simulate(m *models.BinomialModel, phi models.Payoff, numSimulations int) ([]float64, error) {
	if !m.IsArbitrageFree() {
		return nil, fmt.Errorf("martingale measure is not a probability measure: model admits arbitrage")
	}
	if numSimulations <= 0 {
		numSimulations = DefaultSimulations
	}

	numWorkers := workerCount()

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(numSimulations),
		mpb.PrependDecorators(
			decor.Name("Simulating"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	samples := make([]float64, numSimulations)
	var wg sync.WaitGroup

	chunk := (numSimulations + numWorkers - 1) / numWorkers
	for start := 0; start < numSimulations; start += chunk {
		end := start + chunk
		if end > numSimulations {
			end = numSimulations
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			rng := rngPool.Get().(*rand.Rand)
			defer rngPool.Put(rng)

			pending := 0
			for i := start; i < end; i++ {
				samples[i] = SimulatePrice(m, phi, rng)
				pending++
				if pending == progressBatch {
					bar.IncrBy(pending)
					pending = 0
				}
			}
			bar.IncrBy(pending)
		}(start, end)
	}

	wg.Wait()
	p.Wait()

	return samples, nil
}

func workerCount() int {
	counts, err := cpu.Counts(true)
	if err != nil || counts < 1 {
		return runtime.NumCPU()
	}
	return counts
}
