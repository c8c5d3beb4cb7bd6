// Package main implements the starling CLI - the host shell around the
// engine core.
//
// This file serves as the entry point and command registration hub. The
// command implementations are split across cmd_*.go files:
//
//   - main.go        - Entry point, rootCmd, global flags, logger bootstrap
//   - cmd_run.go     - runCmd: evaluate a script through a registered frontend
//   - cmd_inspect.go - inspectCmd: heap statistics and intrinsic table dump
//   - cmd_stress.go  - stressCmd: GC/agent stress harness
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"starling/internal/config"
	"starling/internal/logging"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	watchConfig bool

	// cfg is the engine configuration every command builds agents from.
	// The config watcher swaps it live when --watch-config is set.
	cfg *config.Config

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "starling",
	Short: "starling is a JavaScript engine core host shell",
	Long: `starling hosts the engine core: a tagged value model, a relocating
typed-arena heap with a rooting discipline, the ordinary-object
meta-protocol, and the Object/TypedArray/WeakRef builtin layer.

The parser and interpreter are pluggable frontends; without one, the
shell still exposes heap inspection, host-function installation, and
the collector stress harness.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap()
	},
}

func bootstrap() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logging.Initialize(".", cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	if watchConfig {
		_, err := config.Watch(configPath, func(next *config.Config) {
			cfg = next
			logger.Info("config reloaded",
				zap.Int("gc_threshold", next.Heap.GCThreshold),
				zap.Bool("stress_gc", next.Heap.StressGC))
		}, func(err error) {
			logger.Warn("config reload failed", zap.Error(err))
		})
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		}
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "starling.yaml", "path to the engine config file")
	rootCmd.PersistentFlags().BoolVar(&watchConfig, "watch-config", false, "reload the config file on change")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(stressCmd)
}

func main() {
	defer logging.CloseAll()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
