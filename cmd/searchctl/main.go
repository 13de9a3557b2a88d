// Command searchctl is an operator CLI for the searchd HTTP API. It runs
// queries, inspects stats and analytics, loads corpora from files, and
// manages the index and cache.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/proplex/searchd/internal/analytics"
	"github.com/proplex/searchd/pkg/health"
	"github.com/proplex/searchd/pkg/search"
)

var (
	serverAddr string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "searchctl",
	Short: "Operator CLI for the searchd query service",
	Long:  `searchctl drives the searchd HTTP API: ranked queries, suggestions, batch scoring, corpus loads, and index management.`,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a ranked search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var q search.Query
		if len(args) > 0 {
			q.Text = args[0]
		}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			q.Limit = &limit
		}
		if cmd.Flags().Changed("offset") {
			offset, _ := cmd.Flags().GetInt("offset")
			q.Offset = &offset
		}
		q.Fuzzy, _ = cmd.Flags().GetBool("fuzzy")
		if cmd.Flags().Changed("distance") {
			distance, _ := cmd.Flags().GetInt("distance")
			q.FuzzyDistance = &distance
		}

		categories, _ := cmd.Flags().GetStringSlice("category")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		if len(categories) > 0 || len(tags) > 0 || cmd.Flags().Changed("threshold") {
			q.Filters = &search.Filters{Categories: categories, Tags: tags}
			if cmd.Flags().Changed("threshold") {
				threshold, _ := cmd.Flags().GetFloat64("threshold")
				q.Filters.ScoreThreshold = &threshold
			}
		}

		boostStr, _ := cmd.Flags().GetString("boost")
		if boostStr != "" {
			boosts, err := parseBoosts(boostStr)
			if err != nil {
				return err
			}
			q.Boosts = boosts
		}

		var result search.Result
		if err := postJSON("/api/v1/search", q, &result); err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			printJSON(result)
			return nil
		}

		fmt.Printf("Found %d matches in %.2fms\n", result.Total, result.ElapsedMs)
		base := 0
		if q.Offset != nil {
			base = *q.Offset
		}
		for i, doc := range result.Documents {
			fmt.Printf("%3d. %s (score: %.4f) %s\n", base+i+1, doc.ID, doc.Score, doc.Title)
		}
		if result.Facets != nil {
			fmt.Println("Facets:")
			printFacet("categories", result.Facets.Categories)
			printFacet("tags", result.Facets.Tags)
		}
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [prefix]",
	Short: "List autocomplete candidates for a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		path := "/api/v1/suggest?prefix=" + url.QueryEscape(prefix)
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			path += "&limit=" + strconv.Itoa(limit)
		}

		var resp search.SuggestResponse
		if err := getJSON(path, &resp); err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			printJSON(resp)
			return nil
		}
		for _, s := range resp.Suggestions {
			fmt.Println(s)
		}
		return nil
	},
}

var batchScoreCmd = &cobra.Command{
	Use:   "batch-score <query>...",
	Short: "Score multiple queries in one request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp search.BatchScoreResponse
		if err := postJSON("/api/v1/batch-score", search.BatchScoreRequest{Queries: args}, &resp); err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			printJSON(resp)
			return nil
		}
		for _, result := range resp.Results {
			fmt.Printf("%s: %d hits\n", result.Query, len(result.Hits))
			for i, hit := range result.Hits {
				fmt.Printf("  %d. %s (score: %.4f)\n", i+1, hit.ID, hit.Score)
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats search.Stats
		if err := getJSON("/api/v1/stats", &stats); err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			printJSON(stats)
			return nil
		}
		fmt.Println("Index statistics:")
		fmt.Printf("  Documents:      %d\n", stats.TotalDocuments)
		fmt.Printf("  Distinct terms: %d\n", stats.TotalDistinctTerms)
		fmt.Printf("  Avg doc length: %.2f\n", stats.AvgDocumentLength)
		fmt.Printf("  Categories:     %d\n", stats.CategoryCount)
		fmt.Printf("  Tags:           %d\n", stats.TagCount)
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <json-file>",
	Short: "Replace the corpus with documents from a JSON file",
	Long:  `The file may contain either a JSON array of documents or an object with a "documents" array.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var req search.LoadRequest
		if err := json.Unmarshal(data, &req.Documents); err != nil {
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
		}

		var resp search.LoadResponse
		if err := postJSON("/api/v1/load", req, &resp); err != nil {
			return err
		}
		fmt.Printf("Indexed %d documents in %.2fms\n", resp.Indexed, resp.ElapsedMs)
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rebuild the index from the document warehouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp search.LoadResponse
		if err := postJSON("/api/v1/reload", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Reloaded %d documents in %.2fms\n", resp.Indexed, resp.ElapsedMs)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Print("Clear the whole index? [y/N]: ")
			var response string
			fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				fmt.Println("Cancelled.")
				return nil
			}
		}
		if err := doJSON(http.MethodDelete, "/api/v1/index", nil, nil); err != nil {
			return err
		}
		fmt.Println("Index cleared")
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Stream the corpus as NDJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/export"
		if cmd.Flags().Changed("chunk") {
			chunk, _ := cmd.Flags().GetInt("chunk")
			path += "?chunk=" + strconv.Itoa(chunk)
		}

		resp, err := httpClient().Get(apiURL(path))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return responseError(resp)
		}

		out := io.Writer(os.Stdout)
		if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		_, err = io.Copy(out, resp.Body)
		return err
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Display aggregated query analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats analytics.AggregatedStats
		if err := getJSON("/api/v1/analytics", &stats); err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			printJSON(stats)
			return nil
		}
		fmt.Println("Query analytics:")
		fmt.Printf("  Searches:        %d (%.1f/min, %d fuzzy, %d zero-result)\n",
			stats.TotalSearches, stats.QueriesPerMinute, stats.FuzzySearches, stats.ZeroResultCount)
		fmt.Printf("  Cache:           %d hits / %d misses\n", stats.CacheHits, stats.CacheMisses)
		fmt.Printf("  Latency ms:      avg %.2f, p50 %.2f, p95 %.2f, p99 %.2f\n",
			stats.AvgLatencyMs, stats.P50LatencyMs, stats.P95LatencyMs, stats.P99LatencyMs)
		fmt.Printf("  Corpus loads:    %d (%d documents)\n", stats.TotalLoads, stats.TotalDocsLoaded)
		if len(stats.TopQueries) > 0 {
			fmt.Println("  Top queries:")
			for _, qc := range stats.TopQueries {
				fmt.Printf("    %6d  %s\n", qc.Count, qc.Query)
			}
		}
		if len(stats.ZeroResultQueries) > 0 {
			fmt.Println("  Zero-result queries:")
			for _, qc := range stats.ZeroResultQueries {
				fmt.Printf("    %6d  %s\n", qc.Count, qc.Query)
			}
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Display service health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var report health.Summary
		if err := getJSON("/health", &report); err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			printJSON(report)
			return nil
		}
		fmt.Printf("Status: %s\n", report.Status)
		names := make([]string, 0, len(report.Components))
		for name := range report.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			component := report.Components[name]
			line := fmt.Sprintf("  %-10s %s", name, component.Status)
			if component.Message != "" {
				line += "  " + component.Message
			}
			fmt.Println(line)
		}
		return nil
	},
}

// parseBoosts parses "key=factor,key2=factor2" into a boost map.
func parseBoosts(s string) (map[string]float64, error) {
	boosts := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid boost %q, expected key=factor", pair)
		}
		factor, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid boost factor %q: %w", kv[1], err)
		}
		boosts[kv[0]] = factor
	}
	return boosts, nil
}

func printFacet(name string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("  %s:\n", name)
	values := make([]string, 0, len(counts))
	for value := range counts {
		values = append(values, value)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	for _, value := range values {
		fmt.Printf("    %-20s %d\n", value, counts[value])
	}
}

func apiURL(path string) string {
	return strings.TrimRight(serverAddr, "/") + path
}

func httpClient() *http.Client {
	return &http.Client{Timeout: timeout}
}

func getJSON(path string, out any) error {
	resp, err := httpClient().Get(apiURL(path))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func postJSON(path string, body any, out any) error {
	return doJSON(http.MethodPost, path, body, out)
}

func doJSON(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, apiURL(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "addr", "a", "http://localhost:8080", "searchd base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	searchCmd.Flags().Int("limit", 10, "maximum results to return")
	searchCmd.Flags().Int("offset", 0, "results to skip")
	searchCmd.Flags().Bool("fuzzy", false, "enable fuzzy matching")
	searchCmd.Flags().Int("distance", 2, "maximum edit distance for fuzzy matching")
	searchCmd.Flags().StringSlice("category", nil, "filter by category (repeatable)")
	searchCmd.Flags().StringSlice("tag", nil, "filter by tag (repeatable)")
	searchCmd.Flags().Float64("threshold", 0, "minimum score threshold")
	searchCmd.Flags().String("boost", "", "boost factors (key=factor,key2=factor2)")
	searchCmd.Flags().Bool("json", false, "output as JSON")

	suggestCmd.Flags().Int("limit", 10, "maximum suggestions")
	suggestCmd.Flags().Bool("json", false, "output as JSON")

	batchScoreCmd.Flags().Bool("json", false, "output as JSON")
	statsCmd.Flags().Bool("json", false, "output as JSON")
	analyticsCmd.Flags().Bool("json", false, "output as JSON")
	healthCmd.Flags().Bool("json", false, "output as JSON")

	clearCmd.Flags().Bool("force", false, "skip confirmation prompt")

	exportCmd.Flags().Int("chunk", 0, "chunk size for the server-side traversal")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	rootCmd.AddCommand(
		searchCmd,
		suggestCmd,
		batchScoreCmd,
		statsCmd,
		loadCmd,
		reloadCmd,
		clearCmd,
		exportCmd,
		analyticsCmd,
		healthCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
