// Package claims provides payoff functions for common contingent claims.
package claims

import (
	"math"

	"github.com/samkelemen/arbtheory/models"
)

// Call returns the payoff of a European call option: max(S - K, 0).
func Call(strike float64) models.Payoff {
	return func(terminal float64) float64 {
		return math.Max(terminal-strike, 0)
	}
}

// Put returns the payoff of a European put option: max(K - S, 0).
func Put(strike float64) models.Payoff {
	return func(terminal float64) float64 {
		return math.Max(strike-terminal, 0)
	}
}

// Forward returns the payoff of a long forward contract struck at K.
func Forward(strike float64) models.Payoff {
	return func(terminal float64) float64 {
		return terminal - strike
	}
}

// Straddle returns the payoff of a long straddle: a call and a put at
// the same strike.
func Straddle(strike float64) models.Payoff {
	return func(terminal float64) float64 {
		return math.Abs(terminal - strike)
	}
}

// DigitalCall returns the payoff of a cash-or-nothing call paying one
// unit when the terminal price is at or above the strike.
func DigitalCall(strike float64) models.Payoff {
	return func(terminal float64) float64 {
		if terminal >= strike {
			return 1
		}
		return 0
	}
}

// Butterfly returns the payoff of a long butterfly spread centered at
// mid with the given wing width.
func Butterfly(mid, width float64) models.Payoff {
	return func(terminal float64) float64 {
		return math.Max(terminal-(mid-width), 0) -
			2*math.Max(terminal-mid, 0) +
			math.Max(terminal-(mid+width), 0)
	}
}
