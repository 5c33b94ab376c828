package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/automation"
)

func scriptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "script [scenario.yaml]",
		Short: "run a scripted sequence of captures",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
}

func runScript(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	sess, err := openLink(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("running scenario", "name", sc.Name, "steps", len(sc.Steps))
	r := &automation.Runner{Base: cfg, Link: sess, Store: st, Logger: logger}
	runs, runErr := r.Run(cmd.Context(), sc)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSIDE\tRESULT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", run.Meta.ID, run.Meta.Kind, run.Meta.Side, summary(run.Meta))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if curve := automation.GainCurve(runs); len(curve) > 1 {
		fmt.Println("\ngain by power:")
		for _, p := range curve {
			fmt.Printf("  %6.0f  %.4e  ta=%.1fms\n", p.Power, p.Gain, p.TimeConstant)
		}
	}
	return runErr
}
