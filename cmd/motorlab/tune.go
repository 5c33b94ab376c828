package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/experiment"
	"github.com/san-kum/motorlab/internal/integrators"
	"github.com/san-kum/motorlab/internal/plot"
	"github.com/san-kum/motorlab/internal/storage"
	"github.com/san-kum/motorlab/internal/tf"
	"github.com/san-kum/motorlab/internal/tune"
)

func tuneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "tune PID gains on simulated step responses",
		Long: "Evaluates the gains given with --kp/--ki/--kd, or grid searches the configured\n" +
			"gains, on the unity feedback loop of PID and the first-order motor model.",
		RunE: runTune,
	}
	cmd.Flags().StringVar(&runID, "run", "", "step run providing the motor model (default: config motor)")
	cmd.Flags().Float64Var(&kp, "kp", 0, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", 0, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", 0, "derivative gain")
	cmd.Flags().IntVar(&top, "top", 10, "grid results to print")
	cmd.Flags().BoolVar(&discrete, "discrete", false, "also simulate the firmware loop with saturation")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", fmt.Sprintf("integrator %v", integrators.Names()))
	cmd.Flags().StringVar(&outPath, "out", "", "png output path")
	cmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the png plot")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	return cmd
}

func tuneMotor(cfg *config.Config) (tf.TransferFunction, error) {
	if runID == "" {
		return experiment.ConfiguredMotor(cfg.Motor), nil
	}
	run, err := experiment.Load(storage.New(cfg.DataDir), runID)
	if err != nil {
		return tf.TransferFunction{}, err
	}
	if run.Meta.StepResponse == nil {
		if err := experiment.AnalyzeStep(run, cfg.Analysis); err != nil {
			return tf.TransferFunction{}, err
		}
	}
	return experiment.Motor(run)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "tune")
	if err != nil {
		return err
	}
	motor, err := tuneMotor(cfg)
	if err != nil {
		return err
	}
	opts := cfg.Tune.Options
	if cmd.Flags().Changed("integrator") || opts.Integrator == "" {
		opts.Integrator = integrator
	}
	logger.Info("tuning", "motor", motor.String(), "integrator", opts.Integrator)

	ctx := cmd.Context()
	var best tune.Evaluation
	var shown []tune.Evaluation

	f := cmd.Flags()
	if f.Changed("kp") || f.Changed("ki") || f.Changed("kd") {
		best, err = tune.Evaluate(ctx, motor, tune.Gains{P: kp, I: ki, D: kd}, opts)
		if err != nil {
			return err
		}
		shown = []tune.Evaluation{best}
	} else {
		var all []tune.Evaluation
		best, all, err = tune.Search(ctx, motor, cfg.Tune.Grid, opts)
		if err != nil {
			return err
		}
		shown = all[:min(top, len(all))]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "P\tI\tD\tSTABLE\tRISE (ms)\tOVERSHOOT (%)\tSETTLE (ms)\tSS ERR\tITAE\tCOST")
	for _, e := range shown {
		m := e.Metrics
		fmt.Fprintf(w, "%g\t%g\t%g\t%v\t%s\t%.2f\t%s\t%.4f\t%.1f\t%s\n",
			e.Gains.P, e.Gains.I, e.Gains.D, e.Stable,
			fmtInf(m.RiseTime), m.Overshoot, fmtInf(m.SettlingTime), m.SteadyStateError, m.ITAE, fmtInf(e.Cost))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbest: %s\nclosed loop: %s\npeak power per unit target: %.1f\n",
		best.Gains, tune.ClosedLoop(motor, best.Gains), best.PeakPower)
	fmt.Println(plot.Terminal("closed-loop step response", 10, 80, best.Response.Values))

	if discrete {
		dopts := cfg.Tune.Discrete
		if dopts.Integrator == "" {
			dopts.Integrator = opts.Integrator
		}
		d, err := tune.SimulateDiscrete(ctx, motor, best.Gains, dopts)
		if err != nil {
			return err
		}
		fmt.Printf("\nfirmware loop (target %g ticks/ms, period %g ms, limit %g):\n", dopts.Target, dopts.Period, dopts.MaxPower)
		fmt.Printf("  rise %s ms, overshoot %.2f%%, settle %s ms, steady-state error %.4f\n",
			fmtInf(d.Metrics.RiseTime), d.Metrics.Overshoot, fmtInf(d.Metrics.SettlingTime), d.Metrics.SteadyStateError)
		fmt.Printf("  mean |power| %.0f, peak %.0f\n", d.Effort, d.PeakPower)
		fmt.Println(plot.Terminal("firmware loop velocity (ticks/ms)", 8, 80, d.Response.Values))
	}

	if noPlot {
		return nil
	}
	evals := []tune.Evaluation{best}
	for _, e := range shown[1:min(4, len(shown))] {
		if e.Stable && !math.IsInf(e.Cost, 1) {
			full, err := tune.Evaluate(ctx, motor, e.Gains, opts)
			if err != nil {
				return err
			}
			evals = append(evals, full)
		}
	}
	fig, err := plot.ClosedLoop("closed-loop step response", evals)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = filepath.Join(cfg.DataDir, "tune.png")
	}
	if err := plot.SavePNG(fig, path); err != nil {
		return err
	}
	logger.Info("wrote plot", "path", path)
	return nil
}

func fmtInf(v float64) string {
	if math.IsInf(v, 0) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
