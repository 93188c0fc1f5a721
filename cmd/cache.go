package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jcomeauictx/blockparser/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the persisted content cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry and size statistics for the persisted cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := persistPath(cfg.Cache.PersistPath)
		if err != nil {
			return err
		}

		cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes)
		res, err := cc.LoadFile(path)
		if err != nil {
			return err
		}

		out := struct {
			Path    string      `yaml:"path"`
			Loaded  int         `yaml:"loaded"`
			Skipped int         `yaml:"skipped"`
			Stats   cache.Stats `yaml:"stats"`
		}{Path: path, Loaded: res.Loaded, Skipped: res.Skipped, Stats: cc.Stats()}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(out)
	},
}

var cacheVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-validate every stored digest in the persisted cache",
	Long: `Verify recomputes the digest of each persisted record from its
reconstituted raw span and compares it with the stored one, the same
check loading performs before trusting a record. Exits non-zero if any
record fails validation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := persistPath(cfg.Cache.PersistPath)
		if err != nil {
			return err
		}

		res, err := cache.VerifyFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d valid, %d invalid\n",
			path, res.Loaded, res.Skipped)
		if res.Skipped > 0 {
			return fmt.Errorf("%d records failed digest validation", res.Skipped)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the persisted cache file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := persistPath(cfg.Cache.PersistPath)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
		return nil
	},
}

func persistPath(configured string) (string, error) {
	if configured == "" {
		return "", fmt.Errorf("no persisted cache configured (set cache.persist_path or --cache-file)")
	}
	return configured, nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheVerifyCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
