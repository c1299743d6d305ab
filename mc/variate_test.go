package mc

import (
	"context"
	"math"
	"testing"

	"github.com/banachtech/seqmc/util"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestGenerateMoments(t *testing.T) {
	gen := NewVariateGenerator(newBackend(t), util.NewUniform(42))
	g1, g2, err := gen.Generate(context.Background(), 100000)
	require.NoError(t, err)

	for _, g := range []VariateBatch{g1, g2} {
		require.Len(t, g, 100000)
		mean, variance := stat.MeanVariance(g, nil)
		require.InDelta(t, 0, mean, 0.05)
		require.InDelta(t, 1, variance, 0.05)
	}
}

func TestGenerateBoxMuller(t *testing.T) {
	// The zero draw must be skipped: pairs are (0.5, 0.25) and (0.25, 0.5).
	src := &constUniform{vals: []float64{0, 0.5, 0.25, 0.25, 0.5}}
	gen := NewVariateGenerator(newBackend(t), src)
	g1, g2, err := gen.Generate(context.Background(), 2)
	require.NoError(t, err)

	r := math.Sqrt(-2 * math.Log(0.5))
	require.InDelta(t, 0, g1[0], 1e-12)
	require.InDelta(t, r, g2[0], 1e-12)

	r = math.Sqrt(-2 * math.Log(0.25))
	require.InDelta(t, -r, g1[1], 1e-12)
	require.InDelta(t, 0, g2[1], 1e-12)
}

func TestGenerateDeterministic(t *testing.T) {
	b := newBackend(t)
	a1, a2, err := NewVariateGenerator(b, util.NewUniform(5)).Generate(context.Background(), 1000)
	require.NoError(t, err)
	b1, b2, err := NewVariateGenerator(b, util.NewUniform(5)).Generate(context.Background(), 1000)
	require.NoError(t, err)
	require.Equal(t, a1, b1)
	require.Equal(t, a2, b2)
}

func TestGenerateInvalidSize(t *testing.T) {
	gen := NewVariateGenerator(newBackend(t), util.NewUniform(1))
	for _, n := range []int{0, -10} {
		_, _, err := gen.Generate(context.Background(), n)
		require.ErrorIs(t, err, ErrInvalidArgument)
	}
}
