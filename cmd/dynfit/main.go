package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/experiment"
)

// exitDiscarded is returned when an interrupted run is not kept.
const exitDiscarded = 130

var errDiscarded = errors.New("run discarded")

var (
	dataDir string
	verbose bool

	configFile    string
	preset        string
	iterations    int
	walkers       int
	temperatures  int
	burn          int
	postBurn      int
	noFrack       bool
	frackStep     int
	drawAbove     bool
	walltime      time.Duration
	converge      bool
	maxIterations int
	chunkSize     int
	seed          int64
	poolStrategy  string
	poolWorkers   int
	natsURL       string
	subject       string
	live          bool
	metricsAddr   string
	assumeYes     bool

	outFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynfit",
		Short:         "parallel-tempered ensemble sampler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dynfit", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	fitCmd := &cobra.Command{
		Use:   "fit [model]",
		Short: "sample a model posterior",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFit,
	}
	f := fitCmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVarP(&iterations, "iterations", "n", config.DefaultIterations, "iterations")
	f.IntVarP(&walkers, "walkers", "w", config.DefaultWalkers, "walkers per temperature")
	f.IntVarP(&temperatures, "temperatures", "t", config.DefaultTemperatures, "number of temperatures")
	f.IntVar(&burn, "burn", 0, "burn-in iterations (default half)")
	f.IntVar(&postBurn, "post-burn", 0, "post burn-in iterations")
	f.BoolVar(&noFrack, "no-frack", false, "disable fracking")
	f.IntVar(&frackStep, "frack-step", config.DefaultFrackStep, "iterations between fracks")
	f.BoolVar(&drawAbove, "draw-above", false, "draw initial walkers above the running mean likelihood")
	f.DurationVar(&walltime, "walltime", 0, "stop after this long")
	f.BoolVar(&converge, "converge", false, "run until the chain converges")
	f.IntVar(&maxIterations, "max-iterations", 0, "iteration cap in converge mode")
	f.IntVar(&chunkSize, "chunk", config.DefaultChunkSize, "iterations per chunk")
	f.Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	f.StringVar(&poolStrategy, "pool", "serial", "pool strategy: serial, parallel or nats")
	f.IntVar(&poolWorkers, "workers", 0, "pool workers")
	f.StringVar(&natsURL, "nats-url", "", "NATS server for the nats pool")
	f.BoolVar(&live, "live", false, "live terminal monitor")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVarP(&assumeYes, "yes", "y", false, "keep interrupted runs without asking")

	workerCmd := &cobra.Command{
		Use:   "worker [model]",
		Short: "serve pool tasks over NATS",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorker,
	}
	workerCmd.Flags().StringVar(&natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server")
	workerCmd.Flags().StringVar(&subject, "subject", "", "task subject")
	workerCmd.Flags().IntVar(&poolWorkers, "workers", 1, "subscriptions in this process")
	workerCmd.Flags().Int64Var(&seed, "seed", 0, "worker seed (default time based)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarize a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the best cold-rung score",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export reported walkers to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list registered models",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range experiment.NewRegistry().ListModels() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(fitCmd, workerCmd, listCmd, showCmd, plotCmd, exportJSONCmd, exportCSVCmd, presetsCmd, modelsCmd)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDiscarded) {
			fmt.Fprintln(os.Stderr, "interrupted run discarded")
			os.Exit(exitDiscarded)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
