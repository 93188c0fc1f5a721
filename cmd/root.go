// Package cmd provides the command-line interface for the parser with
// configuration from multiple sources in clear precedence:
//
//  1. Command-line flags (--config, --cache-max-bytes, ...) — highest
//  2. BLOCKPARSER_* environment variables (BLOCKPARSER_CACHE_MAX_BYTES, ...)
//  3. Configuration file (.blockparser.yml) — lowest
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jcomeauictx/blockparser/internal/cache"
	"github.com/jcomeauictx/blockparser/internal/config"
	"github.com/jcomeauictx/blockparser/internal/logging"
	"github.com/jcomeauictx/blockparser/internal/resolver"
)

var cfgFile string

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "parser",
	Short: "Content-addressed block parser",
	Long: `parser ingests block-structured source text and produces a resolved
block tree, using cryptographic digests to identify previously-seen
block content so unchanged blocks are served from cache instead of
being re-parsed.

Quick start:
  parser parse doc.blk            Parse one document and print its tree
  parser parse a.blk b.blk        Parse documents concurrently
  parser watch ./src              Re-resolve documents as they change
  parser cache verify             Validate a persisted cache file`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default .blockparser.yml)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text",
		"log format (text, json)")
	rootCmd.PersistentFlags().String("cache-file", "",
		"persisted cache file (overrides cache.persist_path)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("cache.persist_path", rootCmd.PersistentFlags().Lookup("cache-file"))
}

// initConfig wires viper: explicit --config beats BLOCKPARSER_CONFIG_FILE
// beats the default .blockparser.yml search in the working directory. A
// missing config file is fine; a malformed one is not.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("BLOCKPARSER_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".blockparser")
		viper.SetConfigType("yml")
	}

	viper.SetEnvPrefix("BLOCKPARSER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		fmt.Fprintf(os.Stderr, "parser: reading config: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig returns the validated effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// newLogger builds the CLI logger from config.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// newResolver builds a resolver with a cache sized from config, primed
// from the persisted cache file when one is configured.
func newResolver(cfg *config.Config, logger logging.Logger) *resolver.Resolver {
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes)
	r := resolver.New(
		resolver.WithCache(cc),
		resolver.WithLogger(logger.WithComponent("resolver")),
		resolver.WithWorkers(cfg.Resolver.Workers),
	)
	r.LoadPersisted(cfg.Cache.PersistPath)
	return r
}
