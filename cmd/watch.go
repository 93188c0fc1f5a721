package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcomeauictx/blockparser/internal/logging"
	"github.com/jcomeauictx/blockparser/internal/registry"
	"github.com/jcomeauictx/blockparser/internal/resolver"
	"github.com/jcomeauictx/blockparser/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [dir]",
	Aliases: []string{"w"},
	Short:   "Re-resolve block documents as their files change",
	Long: `Watch resolves every matching document under the directory, then
re-resolves documents as they change on disk. All parses share one
content cache, so a change to part of a file re-parses only the spans
whose bytes actually changed; untouched blocks are cache hits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	r := newResolver(cfg, logger)
	defer r.SavePersisted(cfg.Cache.PersistPath)

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	reg := registry.NewDocumentRegistry()
	events := reg.Watch()
	defer reg.UnWatch(events)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	matches := func(path string) bool {
		for _, ext := range cfg.Watch.Extensions {
			if strings.HasSuffix(path, ext) {
				return true
			}
		}
		return false
	}

	// Initial pass over everything already on disk.
	var paths []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && matches(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, path := range paths {
		resolveInto(ctx, r, reg, path, logger)
	}

	fw, err := watcher.New(cfg.Watch.Debounce, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(matches)
	fw.AddHandler(func(changes []watcher.ChangeEvent) error {
		for _, change := range changes {
			switch change.Type {
			case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
				reg.Remove(change.Path)
			default:
				resolveInto(ctx, r, reg, change.Path, logger)
			}
		}
		return nil
	})
	if err := fw.AddRecursive(root); err != nil {
		return err
	}
	fw.Start(ctx)

	logger.Info("watching", "dir", root, "documents", reg.Count())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d blocks)\n",
				ev.Type, ev.Document.Path, ev.Document.Blocks)
		}
	}
}

// resolveInto parses one file and records the outcome in the registry;
// parse failures are reported and leave any previous entry in place.
func resolveInto(ctx context.Context, r *resolver.Resolver, reg *registry.DocumentRegistry, path string, logger logging.Logger) {
	start := time.Now()
	root, err := r.ResolveFile(ctx, path)
	if err != nil {
		logger.Error(err, "document failed to resolve", "file", path)
		return
	}
	reg.Register(&registry.DocumentInfo{
		Path:       path,
		Root:       root,
		Digest:     root.Digest,
		Blocks:     root.Count(),
		ResolvedAt: time.Now(),
		Duration:   time.Since(start),
	})
}
