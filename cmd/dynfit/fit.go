package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/experiment"
	"github.com/san-kum/dynfit/internal/fitter"
	"github.com/san-kum/dynfit/internal/logging"
	"github.com/san-kum/dynfit/internal/metrics"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/prompt"
	"github.com/san-kum/dynfit/internal/storage"
	"github.com/san-kum/dynfit/internal/viz"
)

// resolveConfig layers the preset, then the config file, then any flags
// set on the command line.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		if model == "" {
			return nil, fmt.Errorf("--preset needs a model argument")
		}
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if model != "" {
		cfg.Model = model
	}

	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("walkers") {
		cfg.Walkers = walkers
	}
	if flags.Changed("temperatures") {
		cfg.Temperatures = temperatures
	}
	if flags.Changed("burn") {
		b := burn
		cfg.Burn = &b
	}
	if flags.Changed("post-burn") {
		p := postBurn
		cfg.PostBurn = &p
	}
	if flags.Changed("no-frack") {
		cfg.Frack.Enabled = !noFrack
	}
	if flags.Changed("frack-step") {
		cfg.Frack.Step = frackStep
	}
	if flags.Changed("draw-above") {
		cfg.DrawAboveLikelihood = drawAbove
	}
	if flags.Changed("walltime") {
		cfg.Walltime = walltime
	}
	if flags.Changed("converge") {
		cfg.Converge = converge
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if flags.Changed("chunk") {
		cfg.ChunkSize = chunkSize
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("pool") {
		cfg.Pool.Strategy = poolStrategy
	}
	if flags.Changed("workers") {
		cfg.Pool.Workers = poolWorkers
	}
	if flags.Changed("nats-url") {
		cfg.Pool.NATSURL = natsURL
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model given")
	}
	return cfg, nil
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	fitCfg, err := cfg.FitterConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var prompter fitter.Prompter = prompt.ForInput(os.Stdin)
	if assumeYes {
		prompter = prompt.Fixed{Answer: true}
	}

	var reporters fitter.MultiReporter
	var program *tea.Program
	programDone := make(chan struct{})
	if live {
		program = tea.NewProgram(viz.NewMonitor(cancel), tea.WithOutput(os.Stderr))
		go func() {
			defer close(programDone)
			if _, err := program.Run(); err != nil {
				logger.Warn("live monitor stopped", zap.Error(err))
			}
		}()
		reporters = append(reporters, viz.ProgramReporter(program))
		prompter = &afterMonitor{program: program, done: programDone, next: prompter}
	} else {
		close(programDone)
		reporters = append(reporters, fitter.NewLineReporter(os.Stderr))
	}

	if metricsAddr != "" {
		shutdown, pm, err := serveMetrics(metricsAddr, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		reporters = append(reporters, pm)
	}

	exp := experiment.New(experiment.Config{
		Model: cfg.Model,
		Fit:   fitCfg,
		Pool:  cfg.PoolOptions(),
	}, experiment.NewRegistry(),
		fitter.WithLogger(logger),
		fitter.WithReporter(reporters),
		fitter.WithPrompter(prompter),
	)

	logger.Info("fit started", zap.String("model", cfg.Model), zap.String("pool", cfg.Pool.Strategy))
	res, err := exp.Run(ctx, nil)
	if program != nil {
		done := viz.DoneMsg{Err: err}
		if res != nil {
			done.Status = res.Status
		}
		program.Send(done)
		<-programDone
	}
	if err != nil {
		return err
	}
	if res.Status == fitter.StatusDiscarded {
		return errDiscarded
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Model: cfg.Model,
		Seed:  cfg.Seed,
		Pool:  cfg.Pool.Strategy,
	}, res)
	if err != nil {
		return err
	}

	fmt.Printf("status: %s\n", res.Status)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("iterations: %d (burn-in %d)\n", res.Iterations, res.BurnIn)
	fmt.Printf("elapsed: %v\n", res.Elapsed.Round(time.Millisecond))
	if res.Autocorr.Defined() {
		fmt.Printf("tau: %.2f (window %d)\n", *res.Autocorr.Tau, res.Autocorr.Window)
	}
	if res.PSRF != nil {
		fmt.Printf("psrf: %.4f\n", *res.PSRF)
	}
	fmt.Printf("states: %d\n", len(res.States))
	return nil
}

// afterMonitor stops the live monitor before asking, so the question is
// not drawn over.
type afterMonitor struct {
	program *tea.Program
	done    <-chan struct{}
	next    fitter.Prompter
}

func (a *afterMonitor) Confirm(message string) (bool, error) {
	a.program.Send(viz.DoneMsg{Status: fitter.StatusInterrupted})
	<-a.done
	return a.next.Confirm(message)
}

func serveMetrics(addr string, logger *zap.Logger) (func(), *metrics.Prometheus, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pm, err := metrics.NewPrometheus(reg, "dynfit")
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return shutdown, pm, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	factory, err := experiment.NewRegistry().Factory(args[0])
	if err != nil {
		return err
	}

	conn, err := nats.Connect(natsURL, nats.Name("dynfit-worker"))
	if err != nil {
		return fmt.Errorf("connect %s: %w", natsURL, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Warn("worker serving",
		zap.String("model", args[0]),
		zap.String("url", natsURL),
		zap.Int("subscriptions", poolWorkers))
	return pool.Serve(ctx, conn, factory, pool.ServeOptions{
		Subject: subject,
		Workers: poolWorkers,
		Seed:    seed,
	})
}
