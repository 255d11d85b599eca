// Command crowd-signal sets pedestrian green time from live crowd counts and
// logs every density change to a CSV audit file.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweeney/crowd-signal/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crowd-signal",
		Short: "Density-adaptive pedestrian signal controller",
		Long: `crowd-signal reads one crowd count per frame, classifies it into a
LOW, DEFAULT, or HIGH density band, and derives the next green duration.
Band changes are appended to a CSV log. Press q to stop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "YAML configuration file")
	f.Bool("print-config", false, "Print the effective configuration and exit")

	f.String("source", "", "Count source: detector, lines, or serial")
	f.String("input", "", `File or device for the lines and serial sources ("-" for stdin)`)
	f.Int("camera", 0, "Camera index passed to the detector")
	f.Int("low", 0, "Counts at or below this are LOW density")
	f.Int("high", 0, "Counts above this are HIGH density")
	f.Int("green", 0, "Base green duration in seconds")
	f.String("log-file", "", "CSV transition log path")
	f.String("sqlite", "", "SQLite transition mirror path (empty to disable)")
	f.String("redis", "", "Redis address for the transition stream (empty to disable)")
	f.String("broker", "", "MQTT broker address (empty to disable)")
	f.String("http", "", "HTTP status address (empty to disable)")
	f.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	f.Bool("lamps", false, "Drive GPIO signal lamps")
	f.Bool("no-display", false, "Disable the terminal overlay")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if printConfig, _ := cmd.Flags().GetBool("print-config"); printConfig {
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	// Stdin is free for the quit key unless counts are piped through it.
	if !readsStdin(cfg) {
		if restore, ok := enableQuitKey(ctx, stop); ok {
			defer restore()
			opts.Raw = true
			log.SetOutput(crlfWriter{w: os.Stderr})
		}
	}

	return run(ctx, cfg, opts)
}

// loadConfig reads --config (or the defaults) and applies any flags given on
// the command line on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var cfg *config.Config
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		d := config.Default()
		cfg = &d
	}

	if flags.Changed("source") {
		cfg.Source.Kind, _ = flags.GetString("source")
	}
	if flags.Changed("input") {
		cfg.Source.Path, _ = flags.GetString("input")
	}
	if flags.Changed("camera") {
		cfg.CameraIndex, _ = flags.GetInt("camera")
	}
	if flags.Changed("low") {
		cfg.LowThreshold, _ = flags.GetInt("low")
	}
	if flags.Changed("high") {
		cfg.HighThreshold, _ = flags.GetInt("high")
	}
	if flags.Changed("green") {
		cfg.BaseGreenDurationS, _ = flags.GetInt("green")
	}
	if flags.Changed("log-file") {
		cfg.LogFilePath, _ = flags.GetString("log-file")
	}
	if flags.Changed("sqlite") {
		cfg.SQLitePath, _ = flags.GetString("sqlite")
	}
	if flags.Changed("redis") {
		cfg.Redis.Addr, _ = flags.GetString("redis")
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker, _ = flags.GetString("broker")
	}
	if flags.Changed("http") {
		cfg.HTTPAddr, _ = flags.GetString("http")
	}
	if flags.Changed("heartbeat") {
		cfg.Heartbeat, _ = flags.GetDuration("heartbeat")
	}
	if flags.Changed("lamps") {
		cfg.Lamps.Enabled, _ = flags.GetBool("lamps")
	}
	if flags.Changed("no-display") {
		noDisplay, _ := flags.GetBool("no-display")
		cfg.Display.Enabled = !noDisplay
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readsStdin(cfg *config.Config) bool {
	return cfg.Source.Kind == config.SourceLines && cfg.Source.Path == "-"
}
