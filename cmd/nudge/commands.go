package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bugaboo-team/nudge/internal/classifier"
	"github.com/bugaboo-team/nudge/internal/config"
	"github.com/bugaboo-team/nudge/internal/eval"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest course material into the knowledge base",
	Long: `Ingest course material into the knowledge base.

Runs locally against the data directory; the server does not need to be
running. Supported formats: PDF, plain text, markdown.

Examples:
  nudge ingest --dir ./course-materials
  nudge ingest --dir ~/teaching/week3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			return fmt.Errorf("--dir is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg)

		comps, err := buildComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer comps.store.Close()

		printStep("Ingesting %s", dir)
		chunks, err := comps.ingestor.IngestDir(cmd.Context(), dir)
		if err != nil {
			return err
		}
		if chunks == 0 {
			printWarning("No chunks produced — is the directory empty?")
			return nil
		}

		printSuccess("Indexed %d chunks", chunks)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("dir", "", "directory of course material to ingest")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask for a debugging hint at a given tier",
	Long: `Ask for a debugging hint at a given disclosure tier.

Tier 1 points at the right course material, tier 2 explains the error in
general, tier 3 explains what is wrong in your code, tier 4 shows a
corrected snippet.

Examples:
  nudge ask "KeyError: 'age'" --code "df['age'].mean()"
  nudge ask "my merge returns zero rows" --tier 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		code, _ := cmd.Flags().GetString("code")
		tier, _ := cmd.Flags().GetInt("tier")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/answer", map[string]any{
			"query": query,
			"code":  code,
			"tier":  tier,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
			Metadata struct {
				Tier      int      `json:"tier"`
				Labels    []string `json:"labels"`
				Citations []struct {
					Source string `json:"source"`
					Anchor string `json:"anchor"`
				} `json:"citations"`
			} `json:"metadata"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		renderAnswer(result.Response)

		if len(result.Metadata.Labels) > 0 {
			printStatus("Detected", "%s", strings.Join(result.Metadata.Labels, ", "))
		}
		for _, c := range result.Metadata.Citations {
			printStatus("Source", "%s (%s)", c.Source, c.Anchor)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("code", "", "the code that produced the error")
	askCmd.Flags().Int("tier", 1, "disclosure tier 1-4")
}

// renderAnswer pretty-prints the model's tiered JSON answer, falling back to
// raw text when the model did not return parseable JSON.
func renderAnswer(response string) {
	text := response
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			text = text[i : j+1]
		}
	}

	var answer struct {
		Tier      int        `json:"tier"`
		Message   string     `json:"message"`
		Steps     []string   `json:"steps"`
		CodeHint  string     `json:"code_hint"`
		Citations []citation `json:"citations"`
	}
	if err := json.Unmarshal([]byte(text), &answer); err != nil || answer.Message == "" {
		fmt.Println(response)
		return
	}

	fmt.Printf("%s %s\n\n", paint(ansiBold, fmt.Sprintf("[tier %d]", answer.Tier)), answer.Message)
	for i, step := range answer.Steps {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	if answer.CodeHint != "" {
		fmt.Printf("\n%s\n", paint(ansiCyan, answer.CodeHint))
	}
	if len(answer.Citations) > 0 {
		fmt.Printf("\n%s %s\n", paint(ansiBold, "Sources:"), formatCitations(answer.Citations))
	}
}

// citation mirrors one entry of the tiered answer's citations array.
type citation struct {
	Source string `json:"source"`
	Anchor string `json:"anchor"`
}

func formatCitations(cs []citation) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c.Anchor == "" {
			parts[i] = c.Source
			continue
		}
		parts[i] = fmt.Sprintf("%s (%s)", c.Source, c.Anchor)
	}
	return strings.Join(parts, ", ")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search ingested course material",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/search?q=%s&k=%d", url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var chunks []retrieval.Chunk
		if err := decodeJSON(resp, &chunks); err != nil {
			return err
		}

		if len(chunks) == 0 {
			printWarning("No matches")
			return nil
		}
		for _, c := range chunks {
			header := fmt.Sprintf("[%.3f] %s %s", c.Score, c.Source, c.Locator)
			fmt.Printf("%s\n%s\n\n", paint(ansiBold, header), snippet(c.Text, 240))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify <error text>",
	Short: "Classify an error message locally",
	Long: `Classify an error message locally without calling the server or any model.

Example:
  nudge classify "KeyError: 'age'"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signal := classifier.Classify(strings.Join(args, " "))

		b, err := json.MarshalIndent(signal, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

// --- sources ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage ingested sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sources")
		if err != nil {
			return err
		}

		var sources []storage.Source
		if err := decodeJSON(resp, &sources); err != nil {
			return err
		}

		if len(sources) == 0 {
			printWarning("No sources ingested yet")
			return nil
		}
		for _, s := range sources {
			fmt.Printf("  %s  %d pages, %d chunks (%s)\n",
				paint(ansiBold, s.Name), s.Pages, s.Chunks, s.IngestedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a source and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/sources/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %s", args[0])
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Inspect answered questions",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var interactions []storage.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			printWarning("No interactions recorded yet")
			return nil
		}
		for _, ix := range interactions {
			fmt.Printf("  %s  tier %d  %s\n    %s\n",
				paint(ansiBold, ix.ID), ix.Tier, ix.CreatedAt.Format("2006-01-02 15:04"), snippet(ix.Query, 100))
		}
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one interaction as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions/"+args[0])
		if err != nil {
			return err
		}

		var ix storage.Interaction
		if err := decodeJSON(resp, &ix); err != nil {
			return err
		}

		b, err := json.MarshalIndent(ix, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
}

// --- eval ---

var evalCmd = &cobra.Command{
	Use:   "eval --gold <file>",
	Short: "Evaluate retrieval and tier behavior against a gold set",
	Long: `Evaluate the answer pipeline against a JSONL gold set.

Each line is one case:
  {"error": "KeyError: 'age'", "code": "df['age']", "gold_citation": "guide.pdf#page-3", "gold_tier": 2}

Runs locally against the data directory and calls the configured model for
each case.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		goldPath, _ := cmd.Flags().GetString("gold")
		if goldPath == "" {
			return fmt.Errorf("--gold is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg)

		cases, err := eval.LoadCases(goldPath)
		if err != nil {
			return err
		}

		comps, err := buildComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer comps.store.Close()

		printStep("Evaluating %d cases", len(cases))
		runner := eval.NewRunner(comps.answerer.Answer, logger)
		result, err := runner.Run(cmd.Context(), cases)
		if err != nil {
			return err
		}

		printStatus("Cases", "%d", result.Cases)
		printStatus("Citation hit rate", "%.2f (%d/%d)", result.CitationHitRate, result.CitationHits, result.Cases-result.Failures)
		printStatus("Tier match rate", "%.2f (%d/%d)", result.TierMatchRate, result.TierMatches, result.Cases-result.Failures)
		printStatus("Median latency", "%dms", result.MedianLatencyMs)
		if result.Failures > 0 {
			printWarning("%d cases failed", result.Failures)
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().String("gold", "", "path to JSONL gold set")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", paint(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
