package mc

import (
	"context"
	"fmt"

	"github.com/banachtech/seqmc/compute"
	"github.com/banachtech/seqmc/option"
)

// PriceBatch is a read-only sequence of terminal prices, one per variate.
type PriceBatch []float64

// PathBatch holds n price paths of equal length back to back.
type PathBatch struct {
	Prices []float64
	Steps  int
}

// Len returns the number of paths.
func (b PathBatch) Len() int {
	if b.Steps == 0 {
		return 0
	}
	return len(b.Prices) / b.Steps
}

// Path returns path i. The slice aliases the batch.
func (b PathBatch) Path(i int) []float64 {
	return b.Prices[i*b.Steps : (i+1)*b.Steps]
}

// PathPricer maps normal variates to prices under risk-neutral geometric
// Brownian motion.
type PathPricer struct {
	backend compute.Backend
}

func NewPathPricer(backend compute.Backend) *PathPricer {
	return &PathPricer{backend: backend}
}

// Price applies the closed form S0 exp((r - σ²/2)T + σ g sqrt(T)) to every
// variate.
func (p *PathPricer) Price(ctx context.Context, g VariateBatch, c option.Contract) (PriceBatch, error) {
	if len(g) == 0 {
		return nil, fmt.Errorf("%w: empty variate batch", ErrInvalidArgument)
	}
	out, err := p.backend.Map(ctx, compute.Call{
		Kernel:  KernelGBMTerminal,
		Items:   len(g),
		Params:  []float64{c.Spot, c.Drift(), c.Volatility, c.Duration},
		Inputs:  [][]float64{g},
		Outputs: []int{len(g)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackend, KernelGBMTerminal, err)
	}
	if len(out) != 1 || len(out[0]) != len(g) {
		return nil, fmt.Errorf("%w: %s: unexpected output shape", ErrBackend, KernelGBMTerminal)
	}
	return out[0], nil
}

// Paths evolves len(g)/steps independent paths of steps monitoring dates
// each, spaced T/steps apart. Paths run in parallel; the steps of one path
// run in order.
func (p *PathPricer) Paths(ctx context.Context, g VariateBatch, c option.Contract, steps int) (PathBatch, error) {
	if steps <= 0 {
		return PathBatch{}, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidArgument, steps)
	}
	if len(g) == 0 || len(g)%steps != 0 {
		return PathBatch{}, fmt.Errorf("%w: %d variates do not fill paths of %d steps", ErrInvalidArgument, len(g), steps)
	}
	n := len(g) / steps
	dt := c.Duration / float64(steps)
	out, err := p.backend.Map(ctx, compute.Call{
		Kernel:  KernelGBMPath,
		Items:   n,
		Params:  []float64{c.Spot, c.Drift(), c.Volatility, dt, float64(steps)},
		Inputs:  [][]float64{g},
		Outputs: []int{len(g)},
	})
	if err != nil {
		return PathBatch{}, fmt.Errorf("%w: %s: %w", ErrBackend, KernelGBMPath, err)
	}
	if len(out) != 1 || len(out[0]) != len(g) {
		return PathBatch{}, fmt.Errorf("%w: %s: unexpected output shape", ErrBackend, KernelGBMPath)
	}
	return PathBatch{Prices: out[0], Steps: steps}, nil
}
