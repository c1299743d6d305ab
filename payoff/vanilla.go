package payoff

import (
	"fmt"
	"math"

	"github.com/banachtech/seqmc/option"
)

// Payoff maps a simulated price path to an undiscounted payout. For terminal
// payouts the path holds the terminal price only.
type Payoff interface {
	Payout(path []float64) float64
}

// EuropeanCall pays max(S_T - K, 0).
type EuropeanCall struct {
	Strike float64
}

func (p EuropeanCall) Payout(path []float64) float64 {
	return math.Max(path[len(path)-1]-p.Strike, 0)
}

// AsianCall pays max(A - K, 0) where A is the arithmetic mean of the
// monitored prices.
type AsianCall struct {
	Strike float64
}

func (p AsianCall) Payout(path []float64) float64 {
	sum := 0.0
	for _, s := range path {
		sum += s
	}
	return math.Max(sum/float64(len(path))-p.Strike, 0)
}

// For returns the payoff policy of a payout kind.
func For(kind option.Kind, strike float64) (Payoff, error) {
	switch kind {
	case option.European:
		return EuropeanCall{Strike: strike}, nil
	case option.Asian:
		return AsianCall{Strike: strike}, nil
	}
	return nil, fmt.Errorf("no payoff for kind %q", kind)
}
