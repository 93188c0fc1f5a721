package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// byteSizeValue is a pflag.Value accepting plain byte counts or
// human-readable sizes (64MB, 1gb, 512KiB).
type byteSizeValue int64

var _ pflag.Value = (*byteSizeValue)(nil)

func (b *byteSizeValue) String() string {
	return strconv.FormatInt(int64(*b), 10)
}

func (b *byteSizeValue) Type() string { return "bytes" }

func (b *byteSizeValue) Set(s string) error {
	n, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = byteSizeValue(n)
	return nil
}

var sizeSuffixes = []struct {
	suffix string
	factor int64
}{
	{"kib", 1 << 10}, {"kb", 1 << 10}, {"k", 1 << 10},
	{"mib", 1 << 20}, {"mb", 1 << 20}, {"m", 1 << 20},
	{"gib", 1 << 30}, {"gb", 1 << 30}, {"g", 1 << 30},
}

func parseByteSize(s string) (int64, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	factor := int64(1)
	for _, sz := range sizeSuffixes {
		if strings.HasSuffix(trimmed, sz.suffix) {
			factor = sz.factor
			trimmed = strings.TrimSuffix(trimmed, sz.suffix)
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(trimmed), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return n * factor, nil
}

var cacheMaxBytes byteSizeValue

func init() {
	rootCmd.PersistentFlags().Var(&cacheMaxBytes, "cache-max-bytes",
		"content cache byte ceiling (e.g. 64MB)")
	rootCmd.PersistentFlags().Int("cache-max-entries", 0,
		"content cache entry ceiling (0 = default)")

	viper.BindPFlag("cache.max_bytes", rootCmd.PersistentFlags().Lookup("cache-max-bytes"))
	viper.BindPFlag("cache.max_entries", rootCmd.PersistentFlags().Lookup("cache-max-entries"))
}
