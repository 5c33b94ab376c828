package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/device"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/storage"
	"github.com/san-kum/motorlab/internal/viz"
)

var (
	dataDir    string
	configFile string
	port       string
	baud       int
	logLevel   string
	preset     string
	// live view
	live  bool
	theme string
	// plan overrides
	side    string
	power   int
	before  int64
	stepMS  int64
	afterMS int64
	runMS   int64
	freq    float64
	gain    float64
	freqs   []float64
	// output
	outPath string
	noPlot  bool
	// tuning
	runID      string
	kp         float64
	ki         float64
	kd         float64
	top        int
	discrete   bool
	integrator string
	// requirements
	radius    string
	offset    string
	speed     string
	mass      string
	mechName  string
	svgPath   string
	numPoints int
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "motorlab",
})

// main registers the motorlab commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "motorlab",
		Short:         "micromouse motor characterization lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			logger.SetLevel(lvl)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&port, "port", link.DefaultPort, `serial port, or "sim" for the simulated mouse`)
	pf.IntVar(&baud, "baud", link.DefaultBaudRate, "baud rate")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		stepCommand(),
		frequencyCommand(),
		sweepCommand(),
		analyzeCommand(),
		fitCommand(),
		tuneCommand(),
		requirementsCommand(),
		listCommand(),
		plotCommand(),
		exportCSVCommand(),
		exportJSONCommand(),
		presetsCommand(),
		mechCommand(),
		portsCommand(),
		scriptCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration from defaults, the preset of kind, the
// config file and finally the flags the user set.
func loadConfig(cmd *cobra.Command, kind string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(kind, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(kind))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("port") || cfg.Serial.Port == "" {
		cfg.Serial.Port = port
	}
	if flags.Changed("baud") || cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = baud
	}
	if !flags.Changed("log-level") && cfg.LogLevel != "" {
		if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openLink opens the configured port, or the simulated mouse for "sim".
func openLink(cfg *config.Config) (*link.Session, error) {
	var opener link.Opener
	if cfg.Serial.Port == device.PortName {
		opener = device.Opener(device.MotorParams{
			Gain:         cfg.Motor.FinalVelocity,
			TimeConstant: cfg.Motor.TimeConstant,
			MaxPower:     device.DefaultMotorParams().MaxPower,
		})
	}
	sess, err := link.Open(cfg.Serial.Link(), opener, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("link open", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
	return sess, nil
}

// observe runs fn with the live view when --live is set.
func observe(ctx context.Context, title string, duration float64, fn func(ctx context.Context, obs capture.Observer) error) error {
	if !live {
		return fn(ctx, nil)
	}
	mon := viz.NewMonitor(viz.NewModel(title, duration, viz.GetTheme(theme)))
	return mon.Run(ctx, fn)
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func addLiveFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&live, "live", false, "show the live capture view")
	cmd.Flags().StringVar(&theme, "theme", viz.ThemeCyberpunk.Name, "live view theme")
	cmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the png plot")
	cmd.Flags().StringVar(&outPath, "out", "", "png output path")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}
