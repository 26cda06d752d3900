package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/logging"
	"github.com/Brownie44l1/anidex/internal/telemetry"
)

// app is the state shared by all sub-commands once settings are loaded.
type app struct {
	configFile string
	settings   *conf.Settings
	logCloser  io.Closer
	flush      func()
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "anidex",
		Short:        "Anidex animal classifier and feedback dashboard",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a.settings)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Int("port", 0, "HTTP listen port")
	flags.String("model", "", "path to the model artifact")
	flags.String("backend", "", "inference backend: onnx or tflite")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		v, err := conf.NewViper()
		if err != nil {
			return err
		}
		for key, name := range map[string]string{
			"debug":         "debug",
			"server.port":   "port",
			"model.path":    "model",
			"model.backend": "backend",
		} {
			// only explicitly set flags override config and env
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}

		settings, err := conf.Load(v, a.configFile)
		if err != nil {
			return err
		}
		a.settings = settings

		if a.logCloser, err = logging.Init(settings.Log, settings.Debug); err != nil {
			return err
		}
		if a.flush, err = telemetry.Init(settings.Telemetry, version); err != nil {
			logging.ForService("main").Warn("telemetry disabled", "error", err)
			a.flush = func() {}
		}
		return nil
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the dashboard and API server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), a.settings)
			},
		},
		predictCommand(a),
		labelsCommand(a),
	)
	return rootCmd, a
}

// close flushes telemetry and closes the log file.
func (a *app) close() {
	if a.flush != nil {
		a.flush()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
