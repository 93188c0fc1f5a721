package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/resolver"
)

var parseFormat string

var parseCmd = &cobra.Command{
	Use:     "parse [files...]",
	Aliases: []string{"p"},
	Short:   "Parse block documents and print their resolved trees",
	Long: `Parse resolves each document through the lexer, parser and content
cache and prints the resulting block tree. With multiple files the
documents are resolved concurrently over one shared cache, so repeated
content across files is parsed once. With no files, stdin is parsed.

A failing document yields a single diagnostic naming the first
offending byte (file:line:col) and a non-zero exit; no partial tree is
printed for it.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "tree",
		"output format (tree, json)")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	r := newResolver(cfg, logger)
	defer r.SavePersisted(cfg.Cache.PersistPath)

	inputs, err := gatherInputs(args)
	if err != nil {
		return err
	}

	results := r.ResolveAll(cmd.Context(), inputs)
	failed := false
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "parser: %v\n", res.Err)
			failed = true
			continue
		}
		if err := printRoot(cmd.OutOrStdout(), res.Name, res.Root); err != nil {
			return err
		}
	}

	stats := r.Cache().Stats()
	logger.Debug("cache after run",
		"entries", stats.Entries, "hits", stats.Hits,
		"misses", stats.Misses, "hit_rate", stats.HitRate)

	if failed {
		return fmt.Errorf("one or more documents failed to parse")
	}
	return nil
}

// gatherInputs reads the named files, or stdin when none are given.
func gatherInputs(args []string) ([]resolver.Input, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []resolver.Input{{Name: "<stdin>", Data: data}}, nil
	}
	inputs := make([]resolver.Input, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, resolver.Input{Name: path, Data: data})
	}
	return inputs, nil
}

func printRoot(w io.Writer, name string, root *block.Block) error {
	switch parseFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(root)
	case "tree":
		fmt.Fprintf(w, "%s: %d blocks, digest %s\n", name, root.Count(), root.Digest)
		printTree(w, root, 1)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want tree or json)", parseFormat)
	}
}

// printTree renders one block per line, indented by depth, with its
// digest prefix and a short text preview.
func printTree(w io.Writer, b *block.Block, depth int) {
	for _, child := range b.Children() {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(w, "%s<%s> [%d,%d) %.12s", indent, child.Kind,
			child.Span.Start, child.Span.End, child.Digest.String())
		for _, d := range child.Directives() {
			if d.HasArg {
				fmt.Fprintf(w, " @%s(%s)", d.Name, d.Arg)
			} else {
				fmt.Fprintf(w, " @%s", d.Name)
			}
		}
		if text := strings.TrimSpace(child.Text()); text != "" {
			if len(text) > 40 {
				text = text[:40] + "..."
			}
			fmt.Fprintf(w, " %q", text)
		}
		fmt.Fprintln(w)
		printTree(w, child, depth+1)
	}
}
