package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docsearch/internal/adapter/store"
)

var docsJSON bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List ingested documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.Catalog.List(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if docsJSON {
			output, _ := json.MarshalIndent(docs, "", "  ")
			fmt.Fprintln(out, string(output))
			return nil
		}
		if len(docs) == 0 {
			fmt.Fprintln(out, "No documents ingested.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILENAME\tCHUNKS\tSIZE\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.ID, d.Filename, d.ChunkCount, d.SizeBytes, d.UploadedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents and their chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range args {
			if err := a.Ingest.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Catalog.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Status:      %s\n", stats.Status)
		fmt.Fprintf(out, "Documents:   %d\n", stats.Documents)
		fmt.Fprintf(out, "Chunks:      %d\n", stats.Chunks)
		fmt.Fprintf(out, "Model:       %s\n", stats.Schema.Model)
		fmt.Fprintf(out, "Dimension:   %d\n", stats.Schema.Dimension)
		fmt.Fprintf(out, "Schema:      v%d\n", stats.Schema.Version)
		if cfg.Index.Backend == "bolt" {
			fmt.Fprintf(out, "Index file:  %s\n", cfg.IndexDBPath(rootDir))
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every document and the stored index schema",
	Long: `Reset clears the index file, including its model and dimension tag.
Use it after changing the embedding model, then re-ingest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Index.Backend != "bolt" {
			fmt.Fprintln(cmd.OutOrStdout(), "The memory backend holds nothing to reset.")
			return nil
		}
		if err := cfg.EnsureDataDir(rootDir); err != nil {
			return err
		}

		// Open the file without the schema check so a mismatched index can still be cleared.
		st, err := store.Open(cfg.IndexDBPath(rootDir))
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Reset(); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Index cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd, deleteCmd, statsCmd, resetCmd)
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
}
