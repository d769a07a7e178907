package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryText      string
	queryTopK      int
	queryThreshold float64
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search ingested documents",
	Long: `Search ingested documents by cosine similarity to the query embedding.

Examples:
  docsearch query -q "how are buckets laid out"
  docsearch query -q "retry policy" -k 10 --threshold 0.3 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "minimum similarity score (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var threshold *float64
	if cmd.Flags().Changed("threshold") {
		threshold = &queryThreshold
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Retrieve.Search(cmd.Context(), queryText, queryTopK, threshold)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] %s #%d chars %d-%d (score: %.3f) ---\n",
			i+1, r.Metadata.Filename, r.Metadata.Position, r.Start, r.End, r.Score)
		text := []rune(strings.TrimSpace(r.Text))
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Fprintln(out, string(text))
		fmt.Fprintln(out)
	}
	return nil
}
