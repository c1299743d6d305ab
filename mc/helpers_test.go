package mc

import (
	"testing"

	"github.com/banachtech/seqmc/compute"
	"github.com/banachtech/seqmc/option"
)

func newBackend(t *testing.T) compute.Backend {
	t.Helper()
	b := compute.NewCPU(Kernels(), 4)
	t.Cleanup(func() { b.Close() })
	return b
}

// ibm is the reference European contract: daily rate and volatility over 252
// trading days.
func ibm() option.Contract {
	return option.New("IBM", option.European, 0.0001, 152.35, 0.01, 165, 252)
}

// constUniform returns its values in turn, cycling.
type constUniform struct {
	vals []float64
	i    int
}

func (c *constUniform) Float64() float64 {
	v := c.vals[c.i%len(c.vals)]
	c.i++
	return v
}
