package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/adapter/fs"
	"docsearch/internal/app"
)

// settleDelay batches the burst of events an editor save produces.
const settleDelay = 300 * time.Millisecond

var watchInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the index in sync with a directory",
	Long: `Watch a directory and re-ingest files as they change. Deleted or
renamed files are removed from the index. Defaults to the project directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "ingest matching files before watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	dir := GetRootDir()
	if len(args) == 1 {
		dir = args[0]
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	if watchInitial {
		files, err := walker.Walk(dir)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		for _, f := range files {
			if _, err := ingestFile(ctx, a, f.Path, cfg.ChunkConfig()); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Warn("File not ingested", zap.String("path", f.Path), zap.Error(err))
			}
		}
		fmt.Fprintf(out, "Indexed %d files.\n", len(files))
	}

	watcher := fs.NewWatcher(walker, dir)
	defer watcher.Close()
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)

	pending := make(map[string]fs.ChangeType)
	timer := time.NewTimer(settleDelay)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			pending[change.Path] = change.Type
			timer.Reset(settleDelay)
		case <-timer.C:
			applyChanges(ctx, cmd, a, pending)
			clear(pending)
		}
	}
}

func applyChanges(ctx context.Context, cmd *cobra.Command, a *app.App, pending map[string]fs.ChangeType) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := cmd.OutOrStdout()
	for _, path := range paths {
		switch pending[path] {
		case fs.ChangeDeleted:
			if err := a.Ingest.Delete(ctx, app.DocumentID(GetRootDir(), path)); err != nil {
				log.Warn("Failed to remove document", zap.String("path", path), zap.Error(err))
				continue
			}
			fmt.Fprintf(out, "removed  %s\n", displayPath(path))
		case fs.ChangeUpserted:
			n, err := ingestFile(ctx, a, path, GetConfig().ChunkConfig())
			if err != nil {
				log.Warn("File not ingested", zap.String("path", path), zap.Error(err))
				continue
			}
			fmt.Fprintf(out, "ingested %s (%d chunks)\n", displayPath(path), n)
		}
	}
}
