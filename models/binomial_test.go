package models

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func call(strike float64) Payoff {
	return func(s float64) float64 { return math.Max(s-strike, 0) }
}

func put(strike float64) Payoff {
	return func(s float64) float64 { return math.Max(strike-s, 0) }
}

func TestNewBinomialModelValidation(t *testing.T) {
	cases := []struct {
		name  string
		steps int
		up    float64
		down  float64
		spot  float64
		rate  float64
		pUp   float64
		pDown float64
	}{
		{"zero periods", 0, 1.2, 0.8, 100, 0, 0.5, 0.5},
		{"up below down", 2, 0.8, 1.2, 100, 0, 0.5, 0.5},
		{"up equals down", 2, 1.0, 1.0, 100, 0, 0.5, 0.5},
		{"negative down", 2, 1.2, -0.5, 100, 0, 0.5, 0.5},
		{"zero spot", 2, 1.2, 0.8, 0, 0, 0.5, 0.5},
		{"gross return not positive", 2, 1.2, 0.8, 100, -1.5, 0.5, 0.5},
		{"negative probability", 2, 1.2, 0.8, 100, 0, -0.1, 1.1},
		{"probabilities do not sum to one", 2, 1.2, 0.8, 100, 0, 0.6, 0.6},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBinomialModelWithProbabilities(tc.steps, tc.up, tc.down, tc.spot, tc.rate, tc.pUp, tc.pDown)
			if err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestPriceProcess(t *testing.T) {
	m, err := NewBinomialModel(3, 1.2, 0.8, 100, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for step := 0; step <= 3; step++ {
		for k := 0; k <= step; k++ {
			want := 100 * math.Pow(1.2, float64(k)) * math.Pow(0.8, float64(step-k))
			if got := m.PriceAt(step, k); !almostEqual(got, want, 1e-9) {
				t.Fatalf("price at (%d, %d): got %f, want %f", step, k, got, want)
			}
		}
	}
}

func TestPriceProcessDeterministic(t *testing.T) {
	a, _ := NewBinomialModel(5, 1.15, 0.85, 75, 0.02)
	b, _ := NewBinomialModel(5, 1.15, 0.85, 75, 0.02)

	for step := 0; step <= 5; step++ {
		for k := 0; k <= step; k++ {
			if a.PriceAt(step, k) != b.PriceAt(step, k) {
				t.Fatalf("price tree not reproducible at (%d, %d)", step, k)
			}
		}
	}
}

func TestMartingaleMeasure(t *testing.T) {
	m, _ := NewBinomialModel(4, 1.2, 0.8, 100, 0.05)
	qu, qd := m.MartingaleMeasure()

	if !almostEqual(qu+qd, 1, 1e-9) {
		t.Fatalf("measure does not sum to one: qu=%f qd=%f", qu, qd)
	}

	// One-step expectation under Q must grow at the riskless rate.
	if !almostEqual(qu*m.Up+qd*m.Down, 1+m.Rate, 1e-9) {
		t.Fatalf("measure does not reproduce the riskless return")
	}
}

func TestDiscountedPricesAreMartingale(t *testing.T) {
	params := []struct {
		up, down, rate float64
	}{
		{1.2, 0.8, 0.05},
		{1.1, 0.95, 0.0},
		{1.5, 0.5, 0.1},
		{1.01, 0.99, 0.001},
	}

	for _, p := range params {
		m, err := NewBinomialModel(6, p.up, p.down, 100, p.rate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		qu, qd := m.MartingaleMeasure()

		for step := 0; step < m.Steps; step++ {
			for k := 0; k <= step; k++ {
				expected := (qu*m.PriceAt(step+1, k+1) + qd*m.PriceAt(step+1, k)) / (1 + m.Rate)
				if !almostEqual(expected, m.PriceAt(step, k), 1e-9) {
					t.Fatalf("martingale property fails at (%d, %d) for u=%f d=%f R=%f",
						step, k, p.up, p.down, p.rate)
				}
			}
		}
	}
}

func TestIsArbitrageFree(t *testing.T) {
	cases := []struct {
		up, down, rate float64
		want           bool
	}{
		{1.2, 0.8, 0.05, true},
		{1.2, 0.8, 0.25, false},  // 1+R above u
		{1.2, 0.8, -0.25, false}, // 1+R below d
		{1.2, 0.8, 0.2, false},   // 1+R equals u
	}

	for _, tc := range cases {
		m, err := NewBinomialModel(2, tc.up, tc.down, 100, tc.rate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.IsArbitrageFree(); got != tc.want {
			t.Fatalf("IsArbitrageFree with u=%f d=%f R=%f: got %t, want %t",
				tc.up, tc.down, tc.rate, got, tc.want)
		}
		if !m.IsComplete() {
			t.Fatal("binomial model must always be complete")
		}
	}
}

func TestValueProcessTwoPeriodCall(t *testing.T) {
	// u=1.2, d=0.8, R=0 gives qu=qd=0.5. Terminal call payoffs at
	// K=100 are 44, 0, 0, so V(1,1)=22, V(1,0)=0, V(0,0)=11.
	m, _ := NewBinomialModel(2, 1.2, 0.8, 100, 0)
	values := m.ValueProcess(call(100))

	if !almostEqual(values.At(2, 2), 44, 1e-9) {
		t.Fatalf("terminal value: got %f, want 44", values.At(2, 2))
	}
	if !almostEqual(values.At(1, 1), 22, 1e-9) {
		t.Fatalf("V(1,1): got %f, want 22", values.At(1, 1))
	}
	if !almostEqual(values.At(1, 0), 0, 1e-9) {
		t.Fatalf("V(1,0): got %f, want 0", values.At(1, 0))
	}
	if !almostEqual(m.Price(call(100)), 11, 1e-9) {
		t.Fatalf("price: got %f, want 11", m.Price(call(100)))
	}
}

func TestValueProcessDiscounting(t *testing.T) {
	// A claim paying 1 in every state is a zero-coupon bond worth
	// (1+R)^-T today.
	m, _ := NewBinomialModel(5, 1.2, 0.8, 100, 0.05)
	unit := func(float64) float64 { return 1 }

	want := math.Pow(1.05, -5)
	if got := m.Price(unit); !almostEqual(got, want, 1e-9) {
		t.Fatalf("bond price: got %f, want %f", got, want)
	}
}

func TestPutCallParity(t *testing.T) {
	m, _ := NewBinomialModel(8, 1.1, 0.9, 100, 0.02)
	strike := 95.0

	c := m.Price(call(strike))
	p := m.Price(put(strike))
	want := 100 - strike*math.Pow(1.02, -8)

	if !almostEqual(c-p, want, 1e-9) {
		t.Fatalf("put-call parity violated: C-P=%f, want %f", c-p, want)
	}
}

func TestHedgeReplicatesClaim(t *testing.T) {
	m, _ := NewBinomialModel(3, 1.2, 0.8, 100, 0.05)
	phi := call(100)
	values := m.ValueProcess(phi)
	hedges := m.HedgingPortfolios(phi)

	if len(hedges) != m.Steps {
		t.Fatalf("expected %d hedge layers, got %d", m.Steps, len(hedges))
	}

	for step := 0; step < m.Steps; step++ {
		for k := 0; k <= step; k++ {
			h := hedges[step][k]
			spot := m.PriceAt(step, k)

			up := h.Bond*(1+m.Rate) + h.Stock*spot*m.Up
			down := h.Bond*(1+m.Rate) + h.Stock*spot*m.Down

			if !almostEqual(up, values.At(step+1, k+1), 1e-9) {
				t.Fatalf("hedge at (%d, %d) misses the up state: got %f, want %f",
					step, k, up, values.At(step+1, k+1))
			}
			if !almostEqual(down, values.At(step+1, k), 1e-9) {
				t.Fatalf("hedge at (%d, %d) misses the down state: got %f, want %f",
					step, k, down, values.At(step+1, k))
			}

			// The hedge is self-financing: it costs exactly the claim value.
			if !almostEqual(h.Bond+h.Stock*spot, values.At(step, k), 1e-9) {
				t.Fatalf("hedge at (%d, %d) is not self-financing", step, k)
			}
		}
	}
}

func TestHedgeAtKnownValues(t *testing.T) {
	// Two-period call above: V(1,1)=22, V(1,0)=0. The time-zero hedge
	// is -44 in the bond and 0.55 shares.
	m, _ := NewBinomialModel(2, 1.2, 0.8, 100, 0)
	h, err := m.HedgeAt(0, 0, call(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(h.Bond, -44, 1e-9) {
		t.Fatalf("bond position: got %f, want -44", h.Bond)
	}
	if !almostEqual(h.Stock, 0.55, 1e-9) {
		t.Fatalf("stock position: got %f, want 0.55", h.Stock)
	}
}

func TestHedgeAtRejectsTerminalNode(t *testing.T) {
	m, _ := NewBinomialModel(2, 1.2, 0.8, 100, 0)
	if _, err := m.HedgeAt(2, 0, call(100)); err == nil {
		t.Fatal("expected an error hedging at the terminal layer")
	}
	if _, err := m.HedgeAt(1, 2, call(100)); err == nil {
		t.Fatal("expected an error for k > t")
	}
}

func TestAmericanValueProcess(t *testing.T) {
	// With a positive rate the American put on this tree is exercised
	// early in the down state: intrinsic 20 beats continuation 16/1.05.
	m, _ := NewBinomialModel(2, 1.2, 0.8, 100, 0.05)
	phi := put(100)

	european := m.Price(phi)
	american := m.AmericanPrice(phi)

	wantEuropean := (0.625*(0.625*0+0.375*4)/1.05 + 0.375*(0.625*4+0.375*36)/1.05) / 1.05
	if !almostEqual(european, wantEuropean, 1e-9) {
		t.Fatalf("european put: got %f, want %f", european, wantEuropean)
	}

	wantAmerican := (0.625*((0.625*0+0.375*4)/1.05) + 0.375*20) / 1.05
	if !almostEqual(american, wantAmerican, 1e-9) {
		t.Fatalf("american put: got %f, want %f", american, wantAmerican)
	}

	if american < european {
		t.Fatalf("american price %f below european %f", american, european)
	}

	// Without early-exercise value the two coincide: an American call
	// on a non-dividend stock is never exercised early.
	callPhi := call(100)
	if !almostEqual(m.AmericanPrice(callPhi), m.Price(callPhi), 1e-9) {
		t.Fatal("american call should match the european call")
	}
}
