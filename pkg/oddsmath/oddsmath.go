// Package oddsmath converts between American prices, decimal odds, and
// implied probabilities, and strips the bookmaker's margin from two-way
// markets so prices from different books compare as fair probabilities.
package oddsmath

import "github.com/rotisserie/eris"

// AmericanToDecimal converts an American price to European decimal odds:
// +150 pays 2.50, -150 pays 1.67.
func AmericanToDecimal(american int) (float64, error) {
	switch {
	case american == 0:
		return 0, eris.New("oddsmath: american odds cannot be zero")
	case american > 0:
		return float64(american)/100 + 1, nil
	default:
		return 100/float64(-american) + 1, nil
	}
}

// ImpliedProbability returns the win probability a decimal price implies.
// The raw number still carries the book's margin; pass both sides of the
// market through FairProbabilities to remove it.
func ImpliedProbability(decimal float64) (float64, error) {
	if decimal < 1 {
		return 0, eris.Errorf("oddsmath: decimal odds %.2f below 1", decimal)
	}
	return 1 / decimal, nil
}

// AmericanImpliedProbability converts an American price straight to the
// probability it implies.
func AmericanImpliedProbability(american int) (float64, error) {
	decimal, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return ImpliedProbability(decimal)
}

// FairProbabilities removes the margin from a two-way market by
// proportional normalization: both implied probabilities are scaled to
// sum to one. A standard -110/-110 market (52.4% a side) comes back
// 50/50.
func FairProbabilities(a, b float64) (fairA, fairB float64, err error) {
	if a <= 0 || a >= 1 || b <= 0 || b >= 1 {
		return 0, 0, eris.New("oddsmath: probabilities must be in (0, 1)")
	}
	total := a + b
	return a / total, b / total, nil
}
