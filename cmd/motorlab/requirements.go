package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/export"
	"github.com/san-kum/motorlab/internal/geometry"
	"github.com/san-kum/motorlab/internal/mech"
	"github.com/san-kum/motorlab/internal/plot"
)

func requirementsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "wheel speed, acceleration and torque needed to drive a corner",
		RunE:  runRequirements,
	}
	cmd.Flags().StringVar(&radius, "radius", "90mm", "corner radius")
	cmd.Flags().StringVar(&offset, "offset", "12mm", "corner offset")
	cmd.Flags().StringVar(&speed, "speed", "0.4m/s", "linear speed")
	cmd.Flags().StringVar(&mass, "mass", "87g", "mouse mass")
	cmd.Flags().StringVar(&mechName, "mech", "", fmt.Sprintf("take wheelbase and wheel radius from a preset %v", mech.PresetNames()))
	cmd.Flags().IntVar(&numPoints, "samples", geometry.DefaultSamples, "curve samples")
	cmd.Flags().StringVar(&outPath, "out", "", "png output path")
	cmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the png plot")
	cmd.Flags().StringVar(&svgPath, "svg", "", "write the corner curve as svg")
	return cmd
}

func runRequirements(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	rc := cfg.Requirements
	f := cmd.Flags()
	if f.Changed("radius") {
		rc.Radius = radius
	}
	if f.Changed("offset") {
		rc.Offset = offset
	}
	if f.Changed("speed") {
		rc.Speed = speed
	}
	if f.Changed("mass") {
		rc.Mass = mass
	}
	if f.Changed("samples") {
		rc.Samples = numPoints
	}
	req, err := rc.Parse()
	if err != nil {
		return err
	}
	if mechName != "" {
		m, err := mech.Preset(mechName)
		if err != nil {
			return err
		}
		req.Chassis = m.Chassis(req.Chassis.Mass)
	}

	curve := geometry.CornerCurve(req.Radius, req.Offset)
	prof, err := geometry.Requirements(curve, req.Chassis, req.Speed, req.Samples)
	if err != nil {
		return err
	}
	pk := prof.Peaks()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "corner\tradius %s, offset %s, degree %d\n", req.Radius, req.Offset, curve.Degree())
	fmt.Fprintf(w, "chassis\twheelbase %s, wheel radius %s, mass %s\n", req.Chassis.Wheelbase, req.Chassis.WheelRadius, req.Chassis.Mass)
	fmt.Fprintf(w, "speed\t%s\n", req.Speed)
	fmt.Fprintf(w, "length\t%.1f mm\n", pk.Length*1000)
	fmt.Fprintf(w, "duration\t%.1f ms\n", pk.Duration*1000)
	fmt.Fprintf(w, "max curvature\t%.2f 1/m\n", pk.MaxCurvature)
	fmt.Fprintf(w, "max angular velocity\t%.2f rad/s\n", pk.MaxAngularVel)
	fmt.Fprintf(w, "max wheel speed\t%.3f m/s\n", pk.MaxWheelSpeed)
	fmt.Fprintf(w, "max wheel acceleration\t%.3f m/s²\n", pk.MaxAcceleration)
	fmt.Fprintf(w, "max wheel torque\t%.3e N·m\n", pk.MaxTorque)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println(plot.Terminal("wheel torque (N·m) left/right", 10, 80, prof.LeftTorques, prof.RightTorques))

	if svgPath != "" {
		fh, err := os.Create(svgPath)
		if err != nil {
			return err
		}
		defer fh.Close()
		if err := export.CurveToSVG(fh, curve, export.DefaultSVGOptions()); err != nil {
			return err
		}
		if err := fh.Close(); err != nil {
			return err
		}
		logger.Info("wrote curve", "path", svgPath)
	}

	if noPlot {
		return nil
	}
	fig, err := plot.Requirements("corner requirements", prof)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = filepath.Join(cfg.DataDir, "requirements.png")
	}
	if err := plot.SavePNG(fig, path); err != nil {
		return err
	}
	logger.Info("wrote plot", "path", path)
	return nil
}
