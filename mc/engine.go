package mc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/banachtech/seqmc/compute"
	"github.com/banachtech/seqmc/metrics"
	"github.com/banachtech/seqmc/option"
	"github.com/banachtech/seqmc/payoff"
	"gonum.org/v1/gonum/stat"
)

// DefaultBatchSize is the number of variates per generation call.
const DefaultBatchSize = 10000

// MaxPathVariates bounds the variates drawn for one batch of price paths,
// batch size times monitoring steps.
const MaxPathVariates = 1 << 23

// Request is one pricing run.
type Request struct {
	Contract option.Contract
	// Probability is the two-sided confidence level of the stopping bound.
	Probability float64
	// Error is the target confidence-interval half-width.
	Error float64
}

// Result describes a run. After a failed run it holds the counts reached so
// far.
type Result struct {
	Price     float64
	Trials    int
	HalfWidth float64
	Mean      float64
	StdDev    float64
	Batches   int
	Z         float64
	Elapsed   time.Duration
}

// Progress is reported after every batch refill and once on convergence.
type Progress struct {
	Trials    int
	Batches   int
	HalfWidth float64
	Mean      float64
}

type Option func(*Engine)

func WithBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) { e.progress = fn }
}

// Engine prices a contract by drawing batches of prices and consuming them one
// trial at a time until the confidence half-width of the mean payoff falls to
// the target. Consumption is sequential so the stopping point depends only on
// the uniform source. An Engine runs one simulation at a time.
type Engine struct {
	gen       *VariateGenerator
	pricer    *PathPricer
	batchSize int
	log       *slog.Logger
	metrics   *metrics.Metrics
	progress  func(Progress)

	last Result
}

func NewEngine(backend compute.Backend, src compute.Uniform, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil uniform source", ErrInvalidArgument)
	}
	e := &Engine{
		gen:       NewVariateGenerator(backend, src),
		pricer:    NewPathPricer(backend),
		batchSize: DefaultBatchSize,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, e.batchSize)
	}
	return e, nil
}

// Simulate returns the discounted expected payoff of c, estimated to within
// targetError at two-sided confidence p.
func (e *Engine) Simulate(ctx context.Context, c option.Contract, p, targetError float64) (float64, error) {
	res, err := e.Run(ctx, Request{Contract: c, Probability: p, Error: targetError})
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

// TrialCount returns the number of trials consumed by the last run.
func (e *Engine) TrialCount() int {
	return e.last.Trials
}

// Last returns the outcome of the last run.
func (e *Engine) Last() Result {
	return e.last
}

func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := e.run(ctx, req)
	res.Elapsed = time.Since(start)
	e.last = res

	outcome := "converged"
	switch {
	case errors.Is(err, ErrInvalidArgument):
		outcome = "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	case err != nil:
		outcome = "failed"
	}
	e.metrics.ObserveSimulation(string(req.Contract.Kind), outcome, res.Trials, res.Elapsed)

	if err != nil {
		e.log.Warn("simulation failed", "contract", req.Contract.Name, "trials", res.Trials, "error", err)
		return res, err
	}
	e.log.Info("simulation converged",
		"contract", req.Contract.Name,
		"kind", req.Contract.Kind,
		"price", res.Price,
		"trials", res.Trials,
		"half_width", res.HalfWidth,
		"batches", res.Batches,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// batch is a sequence of simulated paths; terminal-price batches expose each
// price as a path of length one.
type batch interface {
	Len() int
	Path(i int) []float64
}

func (b PriceBatch) Len() int { return len(b) }

func (b PriceBatch) Path(i int) []float64 { return b[i : i+1] }

func (e *Engine) run(ctx context.Context, req Request) (Result, error) {
	var res Result
	c := req.Contract
	if err := c.Validate(); err != nil {
		return res, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !(req.Error > 0) || math.IsInf(req.Error, 0) {
		return res, fmt.Errorf("%w: target error must be positive, got %v", ErrInvalidArgument, req.Error)
	}
	z, err := TwoSidedZ(req.Probability)
	if err != nil {
		return res, err
	}
	res.Z = z
	pay, err := payoff.For(c.Kind, c.Strike)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := e.checkPathSize(c); err != nil {
		return res, err
	}

	batches, err := e.generate(ctx, c)
	if err != nil {
		return res, err
	}
	res.Batches = len(batches)

	var stats RunningStats
	idx, off := 0, 0
	halfWidth := 0.0
	for halfWidth > req.Error || halfWidth == 0 {
		if off == batches[idx].Len() {
			off = 0
			idx++
			if idx == len(batches) {
				e.report(res.Trials, res.Batches, halfWidth, stats.Mean())
				if batches, err = e.generate(ctx, c); err != nil {
					return res, err
				}
				idx = 0
				res.Batches += len(batches)
			}
		}

		x := pay.Payout(batches[idx].Path(off))
		off++
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return res, fmt.Errorf("%w: non-finite payoff at trial %d", ErrDomain, res.Trials+1)
		}
		stats.Update(x)
		res.Trials++
		halfWidth = z * stats.StdDev() / math.Sqrt(float64(res.Trials))
	}

	res.HalfWidth = halfWidth
	res.Mean = stats.Mean()
	res.StdDev = stats.StdDev()
	res.Price = res.Mean * c.Discount()
	e.report(res.Trials, res.Batches, halfWidth, res.Mean)
	return res, nil
}

func (e *Engine) checkPathSize(c option.Contract) error {
	if !c.Kind.PathDependent() {
		return nil
	}
	// Float arithmetic so that huge step counts cannot overflow.
	steps := float64(c.Steps)
	if c.Steps == 0 {
		steps = math.Ceil(c.Duration)
	}
	if steps*float64(e.batchSize) > MaxPathVariates {
		return fmt.Errorf("%w: %v steps of %d paths exceed %d variates per batch",
			ErrInvalidArgument, steps, e.batchSize, MaxPathVariates)
	}
	return nil
}

// generate produces the next pair of batches, one per Box-Muller branch.
func (e *Engine) generate(ctx context.Context, c option.Contract) ([]batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Kind.PathDependent() {
		g1, g2, err := e.gen.Generate(ctx, e.batchSize)
		if err != nil {
			return nil, err
		}
		out := make([]batch, 0, 2)
		for _, g := range []VariateBatch{g1, g2} {
			prices, err := e.pricer.Price(ctx, g, c)
			if err != nil {
				return nil, err
			}
			e.debugBatch(ctx, prices)
			out = append(out, prices)
		}
		e.metrics.AddBatches(len(out))
		return out, nil
	}

	steps := c.MonitoringSteps()
	g1, g2, err := e.gen.Generate(ctx, e.batchSize*steps)
	if err != nil {
		return nil, err
	}
	out := make([]batch, 0, 2)
	for _, g := range []VariateBatch{g1, g2} {
		paths, err := e.pricer.Paths(ctx, g, c, steps)
		if err != nil {
			return nil, err
		}
		out = append(out, paths)
	}
	e.metrics.AddBatches(len(out))
	return out, nil
}

func (e *Engine) debugBatch(ctx context.Context, prices PriceBatch) {
	if !e.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	mean, std := stat.MeanStdDev(prices, nil)
	e.log.Debug("price batch generated", "size", len(prices), "mean", mean, "std", std)
}

func (e *Engine) report(trials, batches int, halfWidth, mean float64) {
	if e.progress == nil {
		return
	}
	e.progress(Progress{Trials: trials, Batches: batches, HalfWidth: halfWidth, Mean: mean})
}
