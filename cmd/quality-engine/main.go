// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the quality-engine CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/quality-engine/internal/fetch"
	"github.com/pdiddy/quality-engine/internal/logging"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the effective configuration, loaded before any subcommand runs.
	cfg types.PipelineConfig

	logger *slog.Logger
)

// rootCmd is the base command for the quality-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "quality-engine",
	Short: "Weak-label quality classification for product catalogs",
	Long: `quality-engine scores catalog entries with text, price and consistency
signals, synthesizes Low/Medium/High weak labels, and trains a text+price
classifier that reproduces them on unseen items.

The batch stages are subcommands: label, train and evaluate-modality.
predict scores one item with a trained model, serve exposes the labeled
catalog and the model over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(cfg.LogLevel)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./quality-engine.yaml or ~/.config/quality-engine/config.yaml)")
	pf.String("input", "", "corpus path or URL, CSV or NDJSON (overrides config input)")
	pf.String("data-dir", "", "directory holding quality.db (overrides config store.data_dir)")
	pf.String("artifacts-dir", "", "directory for the model bundle and labeled CSV (overrides config artifacts_dir)")
	pf.String("log-level", "", "debug, info, warn or error (overrides config log_level)")

	for key, flag := range map[string]string{
		"input":          "input",
		"store.data_dir": "data-dir",
		"artifacts_dir":  "artifacts-dir",
		"log_level":      "log-level",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

// envKeyReplacer maps nested keys like store.data_dir onto
// QUALITY_ENGINE_STORE_DATA_DIR.
var envKeyReplacer = strings.NewReplacer(".", "_")

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("quality-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "quality-engine"))
		}
	}

	viper.SetEnvPrefix("QUALITY_ENGINE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig overlays the config file, environment and flags on the
// defaults and validates the result.
func loadConfig() (types.PipelineConfig, error) {
	var c types.PipelineConfig
	if err := registerDefaults(types.DefaultPipelineConfig()); err != nil {
		return c, err
	}

	err := viper.Unmarshal(&c, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return c, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// registerDefaults makes every config key known to viper so that
// environment variables reach keys absent from the config file.
func registerDefaults(c types.PipelineConfig) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}
	for k, v := range m {
		viper.SetDefault(k, v)
	}
	return nil
}

func fetchOptions() fetch.Options {
	return fetch.Options{MaxRetries: 3, UserAgent: "quality-engine/" + version}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
