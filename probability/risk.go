package probability

import (
	"fmt"
	"sort"
)

// Losses converts simulated discounted payoffs into losses relative to
// the price paid for the claim.
func Losses(samples []float64, price float64) []float64 {
	losses := make([]float64, len(samples))
	for i, payoff := range samples {
		losses[i] = price - payoff
	}
	return losses
}

// ValueAtRisk computes the loss quantile at the given confidence level
// over simulated discounted payoffs of a claim bought at price.
func ValueAtRisk(samples []float64, price, confidenceLevel float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("value at risk requires at least one sample")
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, fmt.Errorf("confidence level must be in (0, 1), got %f", confidenceLevel)
	}

	losses := Losses(samples, price)
	sort.Float64s(losses)

	index := int(confidenceLevel * float64(len(losses)))
	if index >= len(losses) {
		index = len(losses) - 1
	}
	return losses[index], nil
}

// ExpectedShortfall computes the average loss beyond the value at risk
// at the given confidence level.
func ExpectedShortfall(samples []float64, price, confidenceLevel float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("expected shortfall requires at least one sample")
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, fmt.Errorf("confidence level must be in (0, 1), got %f", confidenceLevel)
	}

	losses := Losses(samples, price)
	sort.Float64s(losses)

	index := int(confidenceLevel * float64(len(losses)))
	if index >= len(losses) {
		index = len(losses) - 1
	}

	tail := losses[index:]
	sum := 0.0
	for _, loss := range tail {
		sum += loss
	}
	return sum / float64(len(tail)), nil
}
