package mc

import (
	"fmt"
	"math"
)

// rationalApproximation is formula 26.2.23 of Abramowitz and Stegun, with
// absolute error below 4.5e-4.
func rationalApproximation(t float64) float64 {
	const (
		c0, c1, c2 = 2.515517, 0.802853, 0.010328
		d0, d1, d2 = 1.432788, 0.189269, 0.001308
	)
	return t - ((c2*t+c1)*t+c0)/(((d2*t+d1)*t+d0)*t+1.0)
}

// NormalCDFInverse returns the standard normal quantile of p, for p in (0,1).
func NormalCDFInverse(p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("%w: probability must be in (0,1), got %v", ErrInvalidArgument, p)
	}
	if p < 0.5 {
		return -rationalApproximation(math.Sqrt(-2.0 * math.Log(p))), nil
	}
	return rationalApproximation(math.Sqrt(-2.0 * math.Log(1-p))), nil
}

// TwoSidedZ returns the z-score of a symmetric confidence interval holding
// probability p.
func TwoSidedZ(p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("%w: probability must be in (0,1), got %v", ErrInvalidArgument, p)
	}
	return NormalCDFInverse(p + (1-p)/2)
}
