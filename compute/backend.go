package compute

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownKernel = errors.New("unknown kernel")
	ErrClosed        = errors.New("backend is closed")
	ErrBadCall       = errors.New("malformed kernel call")
)

// KernelID names an elementwise kernel known to a backend.
type KernelID string

// Call describes one data-parallel kernel launch. Items work items are
// dispatched; each output array is allocated by the backend with the length
// given in Outputs. Params are scalar arguments shared by every work item.
// Every input and output holds at least Items elements.
type Call struct {
	Kernel  KernelID
	Items   int
	Params  []float64
	Inputs  [][]float64
	Outputs []int
}

// Backend executes elementwise kernels over a batch. Implementations must be
// safe for concurrent use and hold their resources until Close.
type Backend interface {
	Map(ctx context.Context, call Call) ([][]float64, error)
	Close() error
}

// Uniform is a source of uniform draws in [0,1).
type Uniform interface {
	Float64() float64
}

// Kernel computes work items [lo, hi). Work items of one launch never share
// output indices, so kernels may run on disjoint ranges concurrently.
type Kernel func(lo, hi int, params []float64, in, out [][]float64)

func (c Call) validate() error {
	if c.Items <= 0 {
		return fmt.Errorf("%w: %s: items must be positive, got %d", ErrBadCall, c.Kernel, c.Items)
	}
	for i, in := range c.Inputs {
		if len(in) < c.Items {
			return fmt.Errorf("%w: %s: input %d has %d elements for %d items", ErrBadCall, c.Kernel, i, len(in), c.Items)
		}
	}
	for i, n := range c.Outputs {
		if n < c.Items {
			return fmt.Errorf("%w: %s: output %d has %d elements for %d items", ErrBadCall, c.Kernel, i, n, c.Items)
		}
	}
	return nil
}
