package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/experiment"
	"github.com/san-kum/motorlab/internal/mech"
	"github.com/san-kum/motorlab/internal/plot"
	"github.com/san-kum/motorlab/internal/storage"
)

var sineNames = []string{"offset", "amplitude", "frequency", "phase"}

func analyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "recompute the statistics of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
}

func fitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fit [run_id]",
		Short: "least-squares fit of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  fitRun,
	}
}

func plotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().StringVar(&outPath, "out", "", "png output path (default: run directory)")
	return cmd
}

// loadRun loads and reanalyzes a stored run.
func loadRun(cmd *cobra.Command, id string) (*experiment.Run, *storage.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return nil, nil, nil, err
	}
	st := storage.New(cfg.DataDir)
	run, err := experiment.Load(st, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := experiment.Analyze(run, cfg.Analysis); err != nil {
		return nil, nil, nil, err
	}
	return run, st, cfg, nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	run, st, cfg, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	switch run.Meta.Kind {
	case storage.KindStep:
		printStepRun(run)
		m, err := cfg.Mechanics.Resolve()
		if err != nil {
			return err
		}
		printSpeed(m, run.Meta.StepResponse.FinalVelocity)
	case storage.KindFrequency:
		f, err := experiment.Spectrum(run, cfg.Analysis.FitFrom)
		if err != nil {
			return err
		}
		printFrequencyRun(run)
		fmt.Printf("dominant frequency: %.5f /ms (drive %.5f /ms)\n", f, run.Meta.FrequencyPlan.Frequency)

		t, v := run.After(cfg.Analysis.FitFrom)
		ps := analysis.PowerSpectrum(analysis.Resample(t, v, 1))
		if n := len(ps) / 16; n > 1 {
			fmt.Println(plot.Terminal("power spectrum (velocity)", 10, 80, ps[:n]))
		}
	}
	return st.Update(run.Meta)
}

func fitRun(cmd *cobra.Command, args []string) error {
	run, st, _, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	switch run.Meta.Kind {
	case storage.KindStep:
		fit, err := experiment.FitStep(run)
		if err != nil {
			return err
		}
		se := fit.StdErr()
		fmt.Fprintln(w, "PARAM\tVALUE\tSTDERR\tCLOSED FORM")
		fmt.Fprintf(w, "gain\t%.4e\t%.2e\t%.4e\n", fit.Gain, se[0], run.Meta.StepResponse.Gain)
		fmt.Fprintf(w, "time constant (ms)\t%.2f\t%.2f\t%.2f\n", fit.TimeConstant, se[1], run.Meta.StepResponse.TimeConstant)
		fmt.Fprintf(w, "rmse\t%.4f\t\t\n", fit.RMSE())
	case storage.KindFrequency:
		sine := run.Meta.Sine
		vals := []float64{sine.Offset, sine.Amplitude, sine.Frequency, sine.Phase}
		fmt.Fprintln(w, "PARAM\tVALUE\tSTDERR")
		for i, name := range sineNames {
			se := math.NaN()
			if i < len(run.Meta.SineStdErr) {
				se = run.Meta.SineStdErr[i]
			}
			fmt.Fprintf(w, "%s\t%.5g\t%.2e\n", name, vals[i], se)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return st.Update(run.Meta)
}

func plotRun(cmd *cobra.Command, args []string) error {
	run, st, _, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	return renderRun(st, run)
}

// renderRun prints a terminal chart and writes the png next to the run.
func renderRun(st *storage.Store, run *experiment.Run) error {
	if run == nil || len(run.Velocity) == 0 {
		return nil
	}
	fmt.Println(plot.Terminal("velocity (ticks/ms) "+run.Meta.ID, 10, 80, run.Velocity))
	if noPlot {
		return nil
	}

	var (
		fig plot.Figure
		err error
	)
	switch {
	case run.Meta.StepResponse != nil:
		fig, err = plot.Step(run.Meta.ID, run.Samples, run.Velocity, *run.Meta.StepResponse)
	case run.Meta.Sine != nil:
		fig, err = plot.Sine(run.Meta.ID, run.Samples, run.Velocity, *run.Meta.Sine)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = filepath.Join(st.Dir(run.Meta.ID), "plot.png")
	}
	if err := plot.SavePNG(fig, path); err != nil {
		return err
	}
	logger.Info("wrote plot", "path", path)
	return nil
}

func printStepRun(run *experiment.Run) {
	if run == nil || run.Meta.StepResponse == nil {
		return
	}
	r := run.Meta.StepResponse
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", run.Meta.ID)
	fmt.Fprintf(w, "samples\t%d (skipped %d)\n", len(run.Samples), run.Meta.Skipped)
	if run.Meta.Error != "" {
		fmt.Fprintf(w, "partial\t%s\n", run.Meta.Error)
	}
	fmt.Fprintf(w, "final velocity\t%.4f ticks/ms\n", r.FinalVelocity)
	fmt.Fprintf(w, "time constant\t%.2f ms\n", r.TimeConstant)
	fmt.Fprintf(w, "gain\t%.4e ticks/ms per power\n", r.Gain)
	if fo := run.Meta.FirstOrder; fo != nil {
		fmt.Fprintf(w, "fitted\tgain %.4e, ta %.2f ms\n", fo.Gain, fo.TimeConstant)
	}
	fmt.Fprintf(w, "transfer function\t%s\n", experimentMotor(run))
	if m, err := experiment.StepMetrics(run); err == nil {
		fmt.Fprintf(w, "measured rise (10-90%%)\t%s ms\n", fmtInf(m.RiseTime))
		fmt.Fprintf(w, "measured overshoot\t%.1f%%\n", m.Overshoot)
		fmt.Fprintf(w, "measured settling (2%%)\t%s ms\n", fmtInf(m.SettlingTime))
	}
	w.Flush()
}

func experimentMotor(run *experiment.Run) string {
	m, err := experiment.Motor(run)
	if err != nil {
		return "-"
	}
	return m.String()
}

func printFrequencyRun(run *experiment.Run) {
	if run == nil || run.Meta.Sine == nil {
		return
	}
	s, b := run.Meta.Sine, run.Meta.Bode
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", run.Meta.ID)
	fmt.Fprintf(w, "samples\t%d (skipped %d)\n", len(run.Samples), run.Meta.Skipped)
	if run.Meta.Error != "" {
		fmt.Fprintf(w, "partial\t%s\n", run.Meta.Error)
	}
	fmt.Fprintf(w, "fit\t%.3f + %.3f sin(2π t %.5f + %.3f)\n", s.Offset, s.Amplitude, s.Frequency, s.Phase)
	fmt.Fprintf(w, "magnitude\t%.4e (%.2f dB)\n", b.Magnitude, b.MagnitudeDB())
	fmt.Fprintf(w, "phase\t%.1f deg\n", b.Phase*180/math.Pi)
	w.Flush()
}

func printSpeed(m mech.Mechanics, ticksPerMS float64) {
	fmt.Printf("final speed: %s (%.1f mm/s)\n", m.Speed(ticksPerMS), m.TicksToMM(ticksPerMS)*1000)
}
