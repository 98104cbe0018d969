// Package cmd implements the qrscan command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qrscan-dev/qrscan"
	"github.com/qrscan-dev/qrscan/internal/config"
	"github.com/qrscan-dev/qrscan/internal/detect"
	"github.com/qrscan-dev/qrscan/internal/engine"
)

// NewRootCmd constructs the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "qrscan",
		Short: "Scan images for QR codes",
		Long: `Scan image files, URLs and PDFs for QR codes.

Decoding runs either on an out-of-process worker or on the in-process
detector; the backend is selected automatically and can be forced.

Examples:
  qrscan image photo.jpg
  qrscan image https://example.com/ticket.png --format json
  qrscan pdf document.pdf --pages 1-3
  qrscan serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader()
			loader.SetConfigFile(cfgFile)

			bindFlags(cmd)

			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel, viper.GetBool("verbose"))
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/qrscan, /etc/qrscan)")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().Duration("timeout", 0, "decode deadline per attempt")
	root.PersistentFlags().String("engine", "", "decode backend (auto, worker, native)")
	root.PersistentFlags().String("inversion-mode", "", "inverted-code handling (original, invert, both)")

	root.AddCommand(newImageCmd())
	root.AddCommand(newPDFCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	return root
}

// bindFlags maps changed CLI flags onto their config keys so they win
// over file and environment values.
func bindFlags(cmd *cobra.Command) {
	bindings := map[string]string{
		"log-level":      "log_level",
		"timeout":        "scan.timeout",
		"engine":         "scan.engine",
		"inversion-mode": "scan.inversion_mode",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			f = cmd.Root().PersistentFlags().Lookup(flag)
		}
		if f != nil && f.Changed {
			viper.Set(key, f.Value.String())
		}
	}
	if v := cmd.Root().PersistentFlags().Lookup("verbose"); v != nil && v.Changed {
		viper.Set("verbose", v.Value.String())
	}
}

func setupLogging(level string, verbose bool) {
	var lvl slog.Level
	if verbose {
		lvl = slog.LevelDebug
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// buildScanner assembles a scanner and, for a forced native engine, the
// engine to pass along with scan options.
func buildScanner(cfg *config.Config) (*qrscan.Scanner, *qrscan.Engine, error) {
	scanner := qrscan.New(qrscan.Config{
		Worker: engine.LaunchOptions{
			Command:     cfg.Worker.Command,
			Addr:        cfg.Worker.Addr,
			ForceWorker: cfg.Scan.Engine == config.EngineWorker,
		},
		InversionMode: cfg.Scan.InversionMode,
	})

	if cfg.Scan.Engine != config.EngineNative {
		return scanner, nil, nil
	}
	det, err := detect.New()
	if err != nil {
		return nil, nil, fmt.Errorf("native engine requested but unavailable: %w", err)
	}
	eng := engine.NewNativeEngine(det)
	if err := eng.SetInversionMode(cfg.Scan.InversionMode); err != nil {
		return nil, nil, err
	}
	return scanner, eng, nil
}
