package compute

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CPU runs kernels on a pool of goroutines, each handling a contiguous range
// of work items. It is the reference Backend.
type CPU struct {
	kernels map[KernelID]Kernel
	workers int

	mu     sync.RWMutex
	closed bool
}

// NewCPU creates a CPU backend for the given kernel table. workers <= 0 means
// runtime.GOMAXPROCS(0).
func NewCPU(kernels map[KernelID]Kernel, workers int) *CPU {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	k := make(map[KernelID]Kernel, len(kernels))
	for id, fn := range kernels {
		k[id] = fn
	}
	return &CPU{kernels: k, workers: workers}
}

// Workers reports the size of the worker pool.
func (b *CPU) Workers() int {
	return b.workers
}

func (b *CPU) Map(ctx context.Context, call Call) ([][]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	kernel, ok := b.kernels[call.Kernel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, call.Kernel)
	}
	if err := call.validate(); err != nil {
		return nil, err
	}

	out := make([][]float64, len(call.Outputs))
	for i, n := range call.Outputs {
		out[i] = make([]float64, n)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range chunks(call.Items, b.workers) {
		lo, hi := r[0], r[1]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			kernel(lo, hi, call.Params, call.Inputs, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the backend. Further Map calls fail with ErrClosed.
func (b *CPU) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// chunks splits [0, n) into at most parts contiguous, non-empty ranges.
func chunks(n, parts int) [][2]int {
	if parts > n {
		parts = n
	}
	if parts < 1 {
		return nil
	}
	size, rem := n/parts, n%parts
	out := make([][2]int, 0, parts)
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		out = append(out, [2]int{lo, hi})
		lo = hi
	}
	return out
}
