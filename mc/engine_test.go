package mc

import (
	"context"
	"errors"
	"math"
	"testing"

	mockcompute "github.com/banachtech/seqmc/compute/mock"
	"github.com/banachtech/seqmc/metrics"
	"github.com/banachtech/seqmc/option"
	"github.com/banachtech/seqmc/util"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func blackScholesCall(c option.Contract) float64 {
	sd := c.Volatility * math.Sqrt(c.Duration)
	d1 := (math.Log(c.Spot/c.Strike) + (c.Rate+c.Volatility*c.Volatility/2)*c.Duration) / sd
	d2 := d1 - sd
	return c.Spot*distuv.UnitNormal.CDF(d1) - c.Strike*c.Discount()*distuv.UnitNormal.CDF(d2)
}

func TestSimulateReferenceContract(t *testing.T) {
	e, err := NewEngine(newBackend(t), util.NewUniform(42))
	require.NoError(t, err)

	c := ibm()
	price, err := e.Simulate(context.Background(), c, 0.96, 0.05)
	require.NoError(t, err)
	require.False(t, math.IsNaN(price) || math.IsInf(price, 0))
	require.GreaterOrEqual(t, price, 0.0)
	require.Greater(t, e.TrialCount(), 1)

	res := e.Last()
	require.LessOrEqual(t, res.HalfWidth, 0.05)
	require.Equal(t, e.TrialCount(), res.Trials)
	require.InDelta(t, res.Mean*c.Discount(), price, 1e-12)
	require.InDelta(t, blackScholesCall(c), price, 0.2)
}

func TestSimulateDeterministic(t *testing.T) {
	run := func() (float64, int) {
		e, err := NewEngine(newBackend(t), util.NewUniform(7), WithBatchSize(500))
		require.NoError(t, err)
		price, err := e.Simulate(context.Background(), ibm(), 0.95, 0.2)
		require.NoError(t, err)
		return price, e.TrialCount()
	}
	p1, n1 := run()
	p2, n2 := run()
	require.Equal(t, p1, p2)
	require.Equal(t, n1, n2)
}

func TestSimulateLooseTargetStopsAtTwoTrials(t *testing.T) {
	e, err := NewEngine(newBackend(t), util.NewUniform(1), WithBatchSize(16))
	require.NoError(t, err)

	c := option.New("X", option.European, 0.0001, 152.35, 0.01, 100, 252)
	_, err = e.Simulate(context.Background(), c, 0.96, 1e6)
	require.NoError(t, err)
	require.Equal(t, 2, e.TrialCount())
	require.Equal(t, 2, e.Last().Batches)
}

func asianContract(steps int, duration float64) option.Contract {
	c := option.New("X", option.Asian, 0.0001, 100, 0.01, 100, duration)
	c.Steps = steps
	return c
}

func TestSimulateInvalidArguments(t *testing.T) {
	// No expectations: reaching the backend fails the test.
	backend := mockcompute.NewMockBackend(gomock.NewController(t))
	e, err := NewEngine(backend, util.NewUniform(1))
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		contract option.Contract
		p        float64
		target   float64
	}{
		{name: "P_ZERO", contract: ibm(), p: 0, target: 0.05},
		{name: "P_ONE", contract: ibm(), p: 1, target: 0.05},
		{name: "P_NEGATIVE", contract: ibm(), p: -0.5, target: 0.05},
		{name: "P_ABOVE_ONE", contract: ibm(), p: 2, target: 0.05},
		{name: "ZERO_TARGET", contract: ibm(), p: 0.95, target: 0},
		{name: "NEGATIVE_TARGET", contract: ibm(), p: 0.95, target: -1},
		{name: "NAN_TARGET", contract: ibm(), p: 0.95, target: math.NaN()},
		{name: "BAD_CONTRACT", contract: option.New("X", option.European, 0.01, -1, 0.2, 100, 1), p: 0.95, target: 0.05},
		{name: "TOO_MANY_STEPS", contract: asianContract(1<<40, 252), p: 0.95, target: 0.05},
		{name: "TOO_MANY_IMPLIED_STEPS", contract: asianContract(0, 1e6), p: 0.95, target: 0.05},
		{name: "HUGE_DURATION", contract: asianContract(0, 1e300), p: 0.95, target: 0.05},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Simulate(context.Background(), tc.contract, tc.p, tc.target)
			require.ErrorIs(t, err, ErrInvalidArgument)
			require.Zero(t, e.TrialCount())
		})
	}
}

func TestNewEngineInvalid(t *testing.T) {
	_, err := NewEngine(nil, util.NewUniform(1))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewEngine(newBackend(t), nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	for _, n := range []int{0, -5} {
		_, err = NewEngine(newBackend(t), util.NewUniform(1), WithBatchSize(n))
		require.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestSimulateBackendFailure(t *testing.T) {
	lost := errors.New("device lost")

	t.Run("FIRST_BATCH", func(t *testing.T) {
		backend := mockcompute.NewMockBackend(gomock.NewController(t))
		backend.EXPECT().Map(gomock.Any(), gomock.Any()).Return(nil, lost)

		e, err := NewEngine(backend, util.NewUniform(1))
		require.NoError(t, err)
		_, err = e.Simulate(context.Background(), ibm(), 0.95, 0.05)
		require.ErrorIs(t, err, ErrBackend)
		require.ErrorIs(t, err, lost)
		require.Zero(t, e.TrialCount())
	})

	t.Run("REFILL", func(t *testing.T) {
		cpu := newBackend(t)
		backend := mockcompute.NewMockBackend(gomock.NewController(t))
		// One refill is a Box-Muller call plus one pricing call per branch.
		gomock.InOrder(
			backend.EXPECT().Map(gomock.Any(), gomock.Any()).DoAndReturn(cpu.Map).Times(3),
			backend.EXPECT().Map(gomock.Any(), gomock.Any()).Return(nil, lost),
		)

		e, err := NewEngine(backend, util.NewUniform(1), WithBatchSize(10))
		require.NoError(t, err)
		_, err = e.Simulate(context.Background(), ibm(), 0.95, 1e-9)
		require.ErrorIs(t, err, ErrBackend)
		require.Equal(t, 20, e.TrialCount())
	})
}

func TestSimulateCanceled(t *testing.T) {
	t.Run("BEFORE_START", func(t *testing.T) {
		e, err := NewEngine(newBackend(t), util.NewUniform(1))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = e.Simulate(ctx, ibm(), 0.95, 0.05)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("AT_REFILL", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		e, err := NewEngine(newBackend(t), util.NewUniform(1),
			WithBatchSize(100),
			WithProgress(func(Progress) { cancel() }),
		)
		require.NoError(t, err)
		_, err = e.Simulate(ctx, ibm(), 0.95, 1e-9)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 200, e.TrialCount())
	})
}

func TestSimulateNonFinitePayoff(t *testing.T) {
	e, err := NewEngine(newBackend(t), util.NewUniform(5), WithBatchSize(1000))
	require.NoError(t, err)

	c := option.New("HUGE", option.European, 0, 1e308, 1, 1, 1)
	_, err = e.Simulate(context.Background(), c, 0.95, 0.05)
	require.ErrorIs(t, err, ErrDomain)
}

// geometricAsianCall prices the call on the geometric mean of n equally
// spaced monitoring prices in closed form. It also returns the discounted gap
// between the expected arithmetic and geometric means, which bounds how far
// the arithmetic call can sit above it.
func geometricAsianCall(c option.Contract, n int) (price, gap float64) {
	dt := c.Duration / float64(n)
	fn := float64(n)
	mu := math.Log(c.Spot) + c.Drift()*dt*(fn+1)/2
	sd := c.Volatility * math.Sqrt(dt*(fn+1)*(2*fn+1)/(6*fn))
	meanG := math.Exp(mu + sd*sd/2)

	d2 := (mu - math.Log(c.Strike)) / sd
	d1 := d2 + sd
	price = c.Discount() * (meanG*distuv.UnitNormal.CDF(d1) - c.Strike*distuv.UnitNormal.CDF(d2))

	meanA := 0.0
	for i := 1; i <= n; i++ {
		meanA += c.Spot * math.Exp(c.Rate*float64(i)*dt)
	}
	meanA /= fn
	return price, c.Discount() * (meanA - meanG)
}

func TestSimulateAsian(t *testing.T) {
	backend := newBackend(t)
	c := option.New("IBM-AVG", option.Asian, 0.0001, 152.35, 0.01, 165, 252)
	c.Steps = 12

	asian, err := NewEngine(backend, util.NewUniform(11), WithBatchSize(2000))
	require.NoError(t, err)
	asianPrice, err := asian.Simulate(context.Background(), c, 0.95, 0.1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, asianPrice, 0.0)
	require.Greater(t, asian.TrialCount(), 1)

	// The arithmetic mean dominates the geometric mean on every path, and
	// the payoff is 1-Lipschitz in the average.
	geo, gap := geometricAsianCall(c, c.Steps)
	const tol = 0.3
	require.GreaterOrEqual(t, asianPrice, geo-tol)
	require.LessOrEqual(t, asianPrice, geo+gap+tol)

	// Averaging damps volatility, so the Asian call is cheaper.
	require.Less(t, asianPrice, blackScholesCall(ibm()))
}

func TestSimulateReportsProgressAndMetrics(t *testing.T) {
	m := metrics.New()
	var reports []Progress
	e, err := NewEngine(newBackend(t), util.NewUniform(3),
		WithBatchSize(1000),
		WithMetrics(m),
		WithProgress(func(p Progress) { reports = append(reports, p) }),
	)
	require.NoError(t, err)

	_, err = e.Simulate(context.Background(), ibm(), 0.95, 0.2)
	require.NoError(t, err)
	res := e.Last()

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	require.Equal(t, res.Trials, last.Trials)
	require.Equal(t, res.HalfWidth, last.HalfWidth)
	for i := 1; i < len(reports); i++ {
		require.Greater(t, reports[i].Trials, reports[i-1].Trials)
	}

	require.Equal(t, float64(res.Trials), testutil.ToFloat64(m.Trials))
	require.Equal(t, float64(res.Batches), testutil.ToFloat64(m.Batches))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Simulations.WithLabelValues("European", "converged")))

	_, err = e.Simulate(context.Background(), ibm(), 0, 0.2)
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Simulations.WithLabelValues("European", "invalid")))
}
