package mc

import (
	"context"
	"fmt"

	"github.com/banachtech/seqmc/compute"
)

// VariateBatch is a read-only sequence of standard normal draws.
type VariateBatch []float64

// VariateGenerator turns uniform pairs into standard normal pairs with the
// Box-Muller transform. Uniforms are drawn on the caller's goroutine so that a
// seeded source gives the same batches on every run; the transform itself is
// dispatched to the backend.
type VariateGenerator struct {
	backend compute.Backend
	src     compute.Uniform
}

func NewVariateGenerator(backend compute.Backend, src compute.Uniform) *VariateGenerator {
	return &VariateGenerator{backend: backend, src: src}
}

// Generate returns two batches of n normal variates, from the cosine and sine
// branches of the same uniform pairs.
func (v *VariateGenerator) Generate(ctx context.Context, n int) (VariateBatch, VariateBatch, error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, n)
	}
	ua := make([]float64, n)
	ub := make([]float64, n)
	for i := 0; i < n; i++ {
		ua[i] = v.nonZero()
		ub[i] = v.src.Float64()
	}

	out, err := v.backend.Map(ctx, compute.Call{
		Kernel:  KernelBoxMuller,
		Items:   n,
		Inputs:  [][]float64{ua, ub},
		Outputs: []int{n, n},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrBackend, KernelBoxMuller, err)
	}
	if len(out) != 2 || len(out[0]) != n || len(out[1]) != n {
		return nil, nil, fmt.Errorf("%w: %s: unexpected output shape", ErrBackend, KernelBoxMuller)
	}
	return out[0], out[1], nil
}

// nonZero resamples until the draw is strictly positive, since ln(0) is
// undefined.
func (v *VariateGenerator) nonZero() float64 {
	for {
		if u := v.src.Float64(); u > 0 {
			return u
		}
	}
}
