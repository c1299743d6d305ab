package mc

import "math"

// RunningStats accumulates the count, mean and variance of a stream in one
// pass (Welford). It is not safe for concurrent use.
type RunningStats struct {
	n    int
	mean float64
	m2   float64
}

func (s *RunningStats) Update(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

func (s *RunningStats) Count() int {
	return s.n
}

// Mean is 0 before the first update.
func (s *RunningStats) Mean() float64 {
	return s.mean
}

// Variance is the unbiased sample variance, or 0 while fewer than two values
// have been seen.
func (s *RunningStats) Variance() float64 {
	if s.n < 2 {
		return 0
	}
	return s.m2 / float64(s.n-1)
}

// StdDev is the sample standard deviation, or 0 while fewer than two values
// have been seen.
func (s *RunningStats) StdDev() float64 {
	return math.Sqrt(s.Variance())
}
