package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banachtech/seqmc/api"
	"github.com/banachtech/seqmc/compute"
	"github.com/banachtech/seqmc/config"
	"github.com/banachtech/seqmc/logger"
	"github.com/banachtech/seqmc/mc"
	"github.com/banachtech/seqmc/metrics"
	"github.com/banachtech/seqmc/option"
	"github.com/banachtech/seqmc/util"
	"github.com/schollz/progressbar/v3"
)

type flags struct {
	config string
	serve  bool

	name     string
	kind     string
	spot     float64
	strike   float64
	rate     float64
	vol      float64
	duration float64
	steps    int
	expiry   string

	p     float64
	err   float64
	seed  uint64
	quiet bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to TOML config file")
	flag.BoolVar(&f.serve, "serve", false, "run the HTTP server instead of a single simulation")
	flag.StringVar(&f.name, "name", "IBM", "contract name")
	flag.StringVar(&f.kind, "kind", "european", "payout kind: european or asian")
	flag.Float64Var(&f.spot, "spot", 152.35, "spot price")
	flag.Float64Var(&f.strike, "strike", 165, "strike price")
	flag.Float64Var(&f.rate, "rate", 0.0001, "risk-free rate per unit time")
	flag.Float64Var(&f.vol, "vol", 0.01, "volatility per unit time")
	flag.Float64Var(&f.duration, "duration", 252, "time to expiry in the units of rate and vol")
	flag.IntVar(&f.steps, "steps", 0, "monitoring dates of an asian payout; 0 means one per unit of duration")
	flag.StringVar(&f.expiry, "expiry", "", "expiry date YYYY-MM-DD; overrides -duration with trading days from today")
	flag.Float64Var(&f.p, "p", 0.96, "two-sided confidence level")
	flag.Float64Var(&f.err, "error", 0.05, "target confidence half-width")
	flag.Uint64Var(&f.seed, "seed", 0, "uniform seed; 0 uses engine.seed, then the clock")
	flag.BoolVar(&f.quiet, "quiet", false, "hide the progress bar")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	backend := compute.NewCPU(mc.Kernels(), cfg.Engine.Workers)
	defer backend.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.serve {
		server := api.NewServer(backend, *cfg, m, log)
		return server.Start(ctx, cfg.Server.Address)
	}
	return simulateOnce(ctx, f, cfg, backend, m, log)
}

func simulateOnce(ctx context.Context, f flags, cfg *config.Config, backend compute.Backend, m *metrics.Metrics, log *slog.Logger) error {
	kind, err := option.ParseKind(f.kind)
	if err != nil {
		return err
	}
	c := option.New(f.name, kind, f.rate, f.spot, f.vol, f.strike, f.duration)
	c.Steps = f.steps
	if f.expiry != "" {
		days, err := util.DurationTo(time.Now(), f.expiry)
		if err != nil {
			return err
		}
		c.Duration = float64(days)
	}

	seed := f.seed
	if seed == 0 {
		seed = cfg.Engine.Seed
	}
	if seed == 0 {
		seed = util.Seed()
	}

	opts := []mc.Option{
		mc.WithBatchSize(cfg.Engine.BatchSize),
		mc.WithLogger(log),
		mc.WithMetrics(m),
	}
	var bar *progressbar.ProgressBar
	if !f.quiet {
		bar = progressBar()
		opts = append(opts, mc.WithProgress(func(p mc.Progress) {
			bar.Describe(fmt.Sprintf("half-width %.5f", p.HalfWidth))
			_ = bar.Set(p.Trials)
		}))
	}

	engine, err := mc.NewEngine(backend, util.NewUniform(seed), opts...)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, mc.Request{Contract: c, Probability: f.p, Error: f.err})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("simulation stopped after %d trials: %w", res.Trials, err)
	}

	fmt.Printf("contract  %s %s S=%g K=%g r=%g vol=%g T=%g\n", c.Name, c.Kind, c.Spot, c.Strike, c.Rate, c.Volatility, c.Duration)
	fmt.Printf("price     %.6f\n", res.Price)
	fmt.Printf("trials    %d (%d batches, seed %d)\n", res.Trials, res.Batches, seed)
	fmt.Printf("interval  ±%.6f at p=%g (z=%.5f)\n", res.HalfWidth, f.p, res.Z)
	fmt.Printf("elapsed   %s\n", res.Elapsed)
	return nil
}

// progressBar counts trials; the total is unknown until the run stops.
func progressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
