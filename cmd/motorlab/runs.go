package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/mech"
	"github.com/san-kum/motorlab/internal/storage"
)

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}
}

func exportCSVCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default: stdout)")
	return cmd
}

func exportJSONCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and samples to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default: stdout)")
	return cmd
}

func presetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [kind]",
		Short: "list configuration presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := config.Kinds()
			if len(args) == 1 {
				kinds = args[:1]
			}
			for _, kind := range kinds {
				presets := config.ListPresets(kind)
				if len(presets) == 0 {
					fmt.Printf("no presets for: %s\n", kind)
					continue
				}
				fmt.Printf("presets for %s:\n", kind)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}
}

func mechCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mech [preset]",
		Short: "show mouse mechanics and unit conversions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := mech.PresetNames()
			if len(args) == 1 {
				names = args[:1]
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tWHEEL (mm)\tGEARBOX\tTICKS/REV\tWHEELBASE (mm)\tTICKS/MM\tTICKS/RAD\t1 TICK/MS")
			for _, name := range names {
				m, err := mech.Preset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%.3f\t%.2f\t%s\n",
					name, m.WheelDiameter, m.GearboxRatio, m.TicksPerRev, m.Wheelbase,
					m.TicksPerMM(), m.TicksPerRad(), m.Speed(1))
			}
			return w.Flush()
		},
	}
}

func portsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "list serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := link.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("no serial ports found")
				return nil
			}
			fmt.Println(strings.Join(ports, "\n"))
			return nil
		},
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSIDE\tTIME\tSAMPLES\tRESULT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			run.ID,
			run.Kind,
			run.Side,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Samples,
			summary(run),
		)
	}
	return w.Flush()
}

func summary(run storage.RunMetadata) string {
	switch {
	case run.Error != "":
		return "partial"
	case run.StepResponse != nil:
		return fmt.Sprintf("ta=%.1fms v=%.3f", run.StepResponse.TimeConstant, run.StepResponse.FinalVelocity)
	case run.Bode != nil:
		return fmt.Sprintf("f=%g |G|=%.2fdB", run.Bode.Frequency, run.Bode.MagnitudeDB())
	}
	return "-"
}

func output() (*os.File, func() error, error) {
	if outPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	samples, err := storage.New(cfg.DataDir).LoadSamples(args[0])
	if err != nil {
		return err
	}
	out, closeOut, err := output()
	if err != nil {
		return err
	}
	if err := storage.WriteCSV(out, samples); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	out, closeOut, err := output()
	if err != nil {
		return err
	}
	if err := storage.New(cfg.DataDir).Export(out, args[0]); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
