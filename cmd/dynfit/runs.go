package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dynfit/internal/fitter"
	"github.com/san-kum/dynfit/internal/storage"
	"github.com/san-kum/dynfit/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSTATUS\tITER\tTEMPS\tWALKERS\tPSRF")
	for _, run := range runs {
		psrf := "-"
		if run.PSRF != nil {
			psrf = fmt.Sprintf("%.3f", *run.PSRF)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Iterations,
			run.Temperatures,
			run.Walkers,
			psrf,
		)
	}
	return w.Flush()
}

// coldSummary returns the mean and standard deviation of every coordinate
// over the cold-rung states.
func coldSummary(states []fitter.State) (means, stds []float64) {
	var cold []fitter.State
	for _, s := range states {
		if s.Temperature == 0 {
			cold = append(cold, s)
		}
	}
	if len(cold) == 0 {
		return nil, nil
	}
	dims := len(cold[0].X)
	col := make([]float64, len(cold))
	for d := 0; d < dims; d++ {
		for i, s := range cold {
			col[i] = s.X[d]
		}
		m, sd := stat.MeanStdDev(col, nil)
		means = append(means, m)
		stds = append(stds, sd)
	}
	return means, stds
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, err := st.LoadWalkers(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", meta.ID)
	fmt.Fprintf(w, "model\t%s\n", meta.Model)
	fmt.Fprintf(w, "status\t%s\n", meta.Status)
	fmt.Fprintf(w, "iterations\t%d (burn-in %d)\n", meta.Iterations, meta.BurnIn)
	fmt.Fprintf(w, "ensemble\t%d temperatures x %d walkers x %d dims\n", meta.Temperatures, meta.Walkers, meta.Dims)
	fmt.Fprintf(w, "elapsed\t%v (fracking %v)\n", meta.Elapsed, meta.FrackTime)
	if meta.Tau != nil {
		fmt.Fprintf(w, "tau\t%.2f (window %d)\n", *meta.Tau, meta.TauWindow)
	}
	if meta.PSRF != nil {
		fmt.Fprintf(w, "psrf\t%.4f\n", *meta.PSRF)
	}
	for t, a := range meta.Acceptance {
		fmt.Fprintf(w, "acceptance[%d]\t%.3f\n", t, a)
	}
	fmt.Fprintf(w, "states\t%d\n", len(states))

	means, stds := coldSummary(states)
	for d := range means {
		fmt.Fprintf(w, "x%d\t%.5f ± %.5f\n", d, means[d], stds[d])
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	rows, err := st.LoadChain(args[0])
	if err != nil {
		return err
	}
	chart := viz.Trace(storage.BestScores(rows), "best cold-rung score", 70, 12)
	if chart == "" {
		fmt.Println("no finite scores to plot")
		return nil
	}
	fmt.Println(chart)
	return nil
}

// output opens the -o target, or stdout.
func output() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, err := st.LoadWalkers(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, *meta, states); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	states, err := st.LoadWalkers(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportCSV(w, states); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}
