package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/adapter/extract"
	"docsearch/internal/adapter/fs"
	"docsearch/internal/app"
	"docsearch/internal/domain"
	"docsearch/internal/port"
)

var (
	ingestID       string
	ingestMaxChars int
	ingestOverlap  int
	ingestQuiet    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest files or directories into the index",
	Long: `Ingest text files into the index. Directories are walked using the
index.includes and index.excludes globs. Re-ingesting a file replaces its
previous chunks.

Examples:
  docsearch ingest .                          # Ingest the project directory
  docsearch ingest notes.md --id notes        # Ingest one file under a fixed ID
  docsearch ingest docs --max-chars 500 --overlap 50`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document ID (single file only; default derives from the path)")
	ingestCmd.Flags().IntVar(&ingestMaxChars, "max-chars", 0, "maximum chunk length in characters (default from config)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "chunk overlap in characters (default from config)")
	ingestCmd.Flags().BoolVar(&ingestQuiet, "quiet", false, "disable the progress bar")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	var files []port.FileInfo
	for _, arg := range args {
		found, err := walker.Walk(arg)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No matching files found.")
		return nil
	}
	if ingestID != "" && len(files) != 1 {
		return fmt.Errorf("--id needs exactly one file, got %d", len(files))
	}

	chunkCfg := cfg.ChunkConfig()
	if ingestMaxChars > 0 {
		chunkCfg.MaxChars = ingestMaxChars
	}
	if ingestOverlap >= 0 {
		chunkCfg.OverlapChars = ingestOverlap
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bar *progressbar.ProgressBar
	if !ingestQuiet {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(cmd.ErrOrStderr())
			}),
		)
	}

	start := time.Now()
	var ingested, chunks int
	var warnings []string
	for _, f := range files {
		n, err := ingestFile(ctx, a, f.Path, chunkCfg)
		switch {
		case err == nil:
			ingested++
			chunks += n
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("ingestion interrupted: %w", err)
		default:
			warnings = append(warnings, fmt.Sprintf("%s: %v", displayPath(f.Path), err))
			log.Warn("File not ingested", zap.String("path", f.Path), zap.Error(err))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Files ingested: %d\n", ingested)
	fmt.Fprintf(out, "  Files failed:   %d\n", len(warnings))
	fmt.Fprintf(out, "  Chunks created: %d\n", chunks)
	fmt.Fprintf(out, "  Duration:       %s\n", formatDuration(time.Since(start)))

	if len(warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		if ingested == 0 {
			return fmt.Errorf("no files were ingested")
		}
	}
	return nil
}

func ingestFile(ctx context.Context, a *app.App, path string, chunkCfg domain.ChunkConfig) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text, err := extract.Text(path, data)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("could not extract text from document")
	}

	id := ingestID
	if id == "" {
		id = app.DocumentID(GetRootDir(), path)
	}
	return a.Ingest.Ingest(ctx, domain.Document{
		ID:         id,
		Filename:   displayPath(path),
		Text:       text,
		UploadedAt: time.Now().UTC(),
		SizeBytes:  len(data),
	}, &chunkCfg)
}

// displayPath shortens path relative to the project directory when possible.
func displayPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	rel, err := filepath.Rel(GetRootDir(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
