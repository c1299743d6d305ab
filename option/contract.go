package option

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind is the payout style of a contract.
type Kind string

const (
	European Kind = "European"
	Asian    Kind = "Asian"
)

// ParseKind accepts a payout kind case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "european":
		return European, nil
	case "asian":
		return Asian, nil
	}
	return "", fmt.Errorf("unknown payout kind %q", s)
}

// PathDependent reports whether the payout needs the whole price path rather
// than the terminal price.
func (k Kind) PathDependent() bool {
	return k == Asian
}

// Contract holds the terms of an option and the market parameters used to
// price it. Rate, Volatility and Duration share one time unit.
type Contract struct {
	Name       string  `json:"name"`
	Kind       Kind    `json:"kind"`
	Spot       float64 `json:"spot"`
	Strike     float64 `json:"strike"`
	Rate       float64 `json:"rate"`
	Volatility float64 `json:"volatility"`
	Duration   float64 `json:"duration"`
	// Steps is the number of monitoring dates of a path-dependent payout.
	// Zero means one per unit of Duration.
	Steps int `json:"steps"`
}

// New builds a contract, in the argument order of a quote screen:
// rate, spot, volatility, strike.
func New(name string, kind Kind, rate, spot, vol, strike, duration float64) Contract {
	return Contract{
		Name:       name,
		Kind:       kind,
		Spot:       spot,
		Strike:     strike,
		Rate:       rate,
		Volatility: vol,
		Duration:   duration,
	}
}

func (c Contract) Validate() error {
	switch {
	case c.Kind != European && c.Kind != Asian:
		return fmt.Errorf("unknown payout kind %q", c.Kind)
	case !(c.Spot > 0) || math.IsInf(c.Spot, 0):
		return fmt.Errorf("spot must be positive, got %v", c.Spot)
	case !(c.Strike >= 0) || math.IsInf(c.Strike, 0):
		return fmt.Errorf("strike must be non-negative, got %v", c.Strike)
	case math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0):
		return errors.New("rate must be finite")
	case !(c.Volatility > 0) || math.IsInf(c.Volatility, 0):
		return fmt.Errorf("volatility must be positive, got %v", c.Volatility)
	case !(c.Duration > 0) || math.IsInf(c.Duration, 0):
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	case c.Steps < 0:
		return fmt.Errorf("steps must be non-negative, got %d", c.Steps)
	}
	return nil
}

// MonitoringSteps returns the number of path steps for a path-dependent
// payout.
func (c Contract) MonitoringSteps() int {
	if c.Steps > 0 {
		return c.Steps
	}
	return int(math.Ceil(c.Duration))
}

// Discount returns exp(-rT).
func (c Contract) Discount() float64 {
	return math.Exp(-c.Rate * c.Duration)
}

// Drift returns the risk-neutral log drift (r - σ²/2) per unit time.
func (c Contract) Drift() float64 {
	return c.Rate - c.Volatility*c.Volatility/2
}
