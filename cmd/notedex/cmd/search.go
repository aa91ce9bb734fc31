package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/search"
	"github.com/notedex/notedex/internal/store"
)

// searchFlags holds CLI flags for search.
type searchFlags struct {
	mode           string
	topK           int
	threshold      float64
	semanticWeight float64
	keywordWeight  float64
	caseSensitive  bool
	regex          bool
	tags           []string
	pathPrefix     string
	format         string
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed vault",
		Long: `Search runs a semantic, keyword, or hybrid query against the index.

Hybrid mode fuses both branches with a weighted linear score; weights
must sum to 1.

Examples:
  notedex search "meeting notes from last week"
  notedex search "beta" --mode keyword
  notedex search "project planning" --mode hybrid --semantic-weight 0.6 --keyword-weight 0.4
  notedex search 'deadline.*friday' --mode keyword --regex
  notedex search "alpha" --tag work --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "hybrid", "Search mode: semantic, keyword, hybrid")
	cmd.Flags().IntVarP(&flags.topK, "top-k", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0, "Minimum result score 0..1 (default from config)")
	cmd.Flags().Float64Var(&flags.semanticWeight, "semantic-weight", 0, "Hybrid semantic weight (default from config)")
	cmd.Flags().Float64Var(&flags.keywordWeight, "keyword-weight", 0, "Hybrid keyword weight (default from config)")
	cmd.Flags().BoolVar(&flags.caseSensitive, "case-sensitive", false, "Case-sensitive keyword matching")
	cmd.Flags().BoolVar(&flags.regex, "regex", false, "Treat the query as a regular expression")
	cmd.Flags().StringSliceVarP(&flags.tags, "tag", "t", nil, "Restrict to notes carrying any of these tags (repeatable)")
	cmd.Flags().StringVar(&flags.pathPrefix, "prefix", "", "Restrict to notes under this path prefix")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, flags searchFlags) error {
	ctx := cmd.Context()

	mode, err := search.ParseMode(flags.mode)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, vaultFlag)
	if err != nil {
		return err
	}
	defer app.close()

	opts := search.Options{
		TopK:           flags.topK,
		Threshold:      flags.threshold,
		SemanticWeight: flags.semanticWeight,
		KeywordWeight:  flags.keywordWeight,
		CaseSensitive:  flags.caseSensitive,
		Regex:          flags.regex,
	}
	if len(flags.tags) > 0 || flags.pathPrefix != "" {
		opts.Filter = &store.Filter{Tags: flags.tags, PathPrefix: flags.pathPrefix}
	}

	resp, err := app.engine.Search(ctx, query, mode, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	for i, r := range resp.Results {
		fmt.Fprintf(out, "%2d. %-40s %.3f\n", i+1, r.Path, r.Score)
		if r.Title != "" {
			fmt.Fprintf(out, "    %s\n", r.Title)
		}
		if snippet := firstLine(r.Snippet); snippet != "" {
			fmt.Fprintf(out, "    %s\n", snippet)
		}
	}
	if resp.TotalFound > len(resp.Results) {
		fmt.Fprintf(out, "\n%d of %d results shown.\n", len(resp.Results), resp.TotalFound)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 100
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
