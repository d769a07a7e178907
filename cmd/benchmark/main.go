package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"docsearch/config"
	"docsearch/internal/app"
	"docsearch/internal/domain"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding the index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 20, "Number of timed runs")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./project -q \"query\" [-k 10] [-n 20]")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index contents (model, dimension, entries)")
		fmt.Println("  2. Top matches with similarity ratings")
		fmt.Println("  3. Query latency percentiles")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	a, err := app.Open(cfg, *dir, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx := context.Background()
	count, _ := a.Index.Count(ctx)
	if count == 0 {
		fmt.Fprintln(os.Stderr, "Index is empty - run 'docsearch ingest' first")
		os.Exit(1)
	}
	schema := a.Index.Schema()

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Entries indexed: %d\n", count)
	fmt.Printf("Model: %s (%s)\n", schema.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", schema.Dimension)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	var results []domain.SearchResult
	latencies := make([]time.Duration, 0, *runs)
	for i := 0; i < max(1, *runs); i++ {
		start := time.Now()
		results, err = a.Retrieve.Search(ctx, *query, *topK, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := []rune(r.Text)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		totalScore += r.Score
		fmt.Printf("%d. [%s %.3f] %s #%d\n", i+1, rating(r.Score), r.Score, path.Base(r.Metadata.Filename), r.Metadata.Position)
		fmt.Printf("   %s\n\n", strings.ReplaceAll(string(preview), "\n", " "))
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Printf("LATENCY (%d runs, first run includes the query embedding):\n", len(latencies))
	fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
	fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
	fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	}
	return "LOW"
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
