package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/experiment"
	"github.com/san-kum/motorlab/internal/plot"
	"github.com/san-kum/motorlab/internal/storage"
	"github.com/san-kum/motorlab/internal/telemetry"
)

func stepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "capture and characterize a step response",
		RunE:  runStep,
	}
	cmd.Flags().StringVar(&side, "side", "left", "motor side (left, right)")
	cmd.Flags().IntVar(&power, "power", 10000, "step power")
	cmd.Flags().Int64Var(&before, "before", 1000, "idle time before the step (ms)")
	cmd.Flags().Int64Var(&stepMS, "step", 5000, "step duration (ms)")
	cmd.Flags().Int64Var(&afterMS, "after", 5000, "idle time after the step (ms)")
	addLiveFlags(cmd)
	return cmd
}

func frequencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frequency",
		Short: "capture and fit a sinusoidal response",
		RunE:  runFrequency,
	}
	addFrequencyFlags(cmd)
	cmd.Flags().Float64Var(&freq, "freq", 0.002, "drive frequency (cycles/ms)")
	return cmd
}

func sweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "capture a frequency sweep and plot the bode diagram",
		RunE:  runSweep,
	}
	addFrequencyFlags(cmd)
	cmd.Flags().Float64SliceVar(&freqs, "freqs", nil, "drive frequencies (cycles/ms)")
	return cmd
}

func addFrequencyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&side, "side", "left", "motor side (left, right)")
	cmd.Flags().Int64Var(&runMS, "run", 5000, "run time per frequency (ms)")
	cmd.Flags().Float64Var(&gain, "gain", 10000, "peak drive power")
	addLiveFlags(cmd)
}

func parseSide(cmd *cobra.Command, current telemetry.Side) (telemetry.Side, error) {
	if !cmd.Flags().Changed("side") {
		return current, nil
	}
	s, ok := telemetry.ParseSide(side)
	if !ok {
		return "", fmt.Errorf("unknown side: %s", side)
	}
	return s, nil
}

func applyStepFlags(cmd *cobra.Command, cfg *config.Config) error {
	s, err := parseSide(cmd, cfg.Step.Side)
	if err != nil {
		return err
	}
	cfg.Step.Side = s
	f := cmd.Flags()
	if f.Changed("power") {
		cfg.Step.Power = power
	}
	if f.Changed("before") {
		cfg.Step.Before = before
	}
	if f.Changed("step") {
		cfg.Step.Step = stepMS
	}
	if f.Changed("after") {
		cfg.Step.After = afterMS
	}
	return cfg.Step.Validate()
}

func applyFrequencyFlags(cmd *cobra.Command, cfg *config.Config) error {
	s, err := parseSide(cmd, cfg.Frequency.Side)
	if err != nil {
		return err
	}
	cfg.Frequency.Side = s
	f := cmd.Flags()
	if f.Changed("run") {
		cfg.Frequency.RunTime = runMS
	}
	if f.Changed("gain") {
		cfg.Frequency.Gain = gain
	}
	if f.Lookup("freq") != nil && f.Changed("freq") {
		cfg.Frequency.Frequency = freq
	}
	if f.Lookup("freqs") != nil && f.Changed("freqs") {
		cfg.Sweep.Frequencies = freqs
	}
	return cfg.Frequency.Validate()
}

// capturePipeline loads the config, opens the link and store, and hands an
// experiment to fn.
func capturePipeline(cmd *cobra.Command, kind string, apply func(*cobra.Command, *config.Config) error,
	fn func(ctx context.Context, cfg *config.Config, exp *experiment.Experiment, st *storage.Store) error) error {
	cfg, err := loadConfig(cmd, kind)
	if err != nil {
		return err
	}
	if err := apply(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	sess, err := openLink(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("closing link", "err", err)
		}
	}()
	return fn(cmd.Context(), cfg, experiment.New(cfg, sess, logger), st)
}

// saveRun stores a run, including the partial samples of a failed capture.
func saveRun(st *storage.Store, run *experiment.Run, runErr error) error {
	if run == nil || len(run.Samples) == 0 {
		return runErr
	}
	id, err := experiment.Save(st, run)
	if err != nil {
		return err
	}
	if run.Meta.Error != "" {
		logger.Warn("saved partial run", "id", id, "samples", len(run.Samples), "err", run.Meta.Error)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("saved run", "id", id, "samples", len(run.Samples))
	return nil
}

func runStep(cmd *cobra.Command, args []string) error {
	return capturePipeline(cmd, "step", applyStepFlags, func(ctx context.Context, cfg *config.Config, exp *experiment.Experiment, st *storage.Store) error {
		var run *experiment.Run
		total := float64(cfg.Step.Before + cfg.Step.Step + cfg.Step.After)
		err := observe(ctx, "step "+string(cfg.Step.Side), total, func(ctx context.Context, obs capture.Observer) error {
			var err error
			run, err = exp.Step(ctx, obs)
			return err
		})
		if err := saveRun(st, run, err); err != nil {
			return err
		}
		printStepRun(run)
		return renderRun(st, run)
	})
}

func runFrequency(cmd *cobra.Command, args []string) error {
	return capturePipeline(cmd, "frequency", applyFrequencyFlags, func(ctx context.Context, cfg *config.Config, exp *experiment.Experiment, st *storage.Store) error {
		var run *experiment.Run
		title := fmt.Sprintf("frequency %g/ms", cfg.Frequency.Frequency)
		err := observe(ctx, title, float64(cfg.Frequency.RunTime), func(ctx context.Context, obs capture.Observer) error {
			var err error
			run, err = exp.Frequency(ctx, obs)
			return err
		})
		if err := saveRun(st, run, err); err != nil {
			return err
		}
		printFrequencyRun(run)
		return renderRun(st, run)
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	return capturePipeline(cmd, "sweep", applyFrequencyFlags, func(ctx context.Context, cfg *config.Config, exp *experiment.Experiment, st *storage.Store) error {
		var runs []*experiment.Run
		total := float64(cfg.Frequency.RunTime) * float64(len(cfg.Sweep.Frequencies))
		err := observe(ctx, "sweep", total, func(ctx context.Context, obs capture.Observer) error {
			var err error
			runs, err = exp.Sweep(ctx, obs)
			return err
		})
		for _, run := range runs {
			if serr := saveRun(st, run, nil); serr != nil {
				return serr
			}
		}
		if err != nil {
			return err
		}

		pts := experiment.BodePoints(runs)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tFREQ (1/ms)\tMAG\tMAG (dB)\tPHASE (deg)")
		for _, run := range runs {
			b := run.Meta.Bode
			fmt.Fprintf(w, "%s\t%g\t%.3e\t%.2f\t%.1f\n", run.Meta.ID, b.Frequency, b.Magnitude, b.MagnitudeDB(), b.Phase*180/math.Pi)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if noPlot || len(pts) == 0 {
			return nil
		}
		fig, err := plot.Bode("bode "+runs[0].Meta.Group, pts, experiment.ConfiguredMotor(cfg.Motor))
		if err != nil {
			return err
		}
		path := outPath
		if path == "" {
			path = filepath.Join(cfg.DataDir, runs[0].Meta.Group+"_bode.png")
		}
		if err := plot.SavePNG(fig, path); err != nil {
			return err
		}
		logger.Info("wrote plot", "path", path)
		return nil
	})
}
