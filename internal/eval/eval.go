// Package eval measures retrieval and tier behavior against a gold set of
// labeled student errors.
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bugaboo-team/nudge/internal/pipeline"
)

// Case is one gold example: an error, the code that caused it, the source
// that should be retrieved, and the tier the answer should carry.
type Case struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	GoldCitation string `json:"gold_citation"`
	GoldTier     int    `json:"gold_tier"`
}

// Result summarizes one evaluation run.
type Result struct {
	Cases           int     `json:"cases"`
	CitationHits    int     `json:"citation_hits"`
	CitationHitRate float64 `json:"citation_hit_rate"`
	TierMatches     int     `json:"tier_matches"`
	TierMatchRate   float64 `json:"tier_match_rate"`
	MedianLatencyMs int64   `json:"median_latency_ms"`
	Failures        int     `json:"failures"`
}

// LoadCases reads gold cases from a JSONL file, one JSON object per line.
// Blank lines and lines starting with # are skipped.
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gold set: %w", err)
	}
	defer f.Close()

	var cases []Case
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("parsing gold case on line %d: %w", lineNo, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gold set: %w", err)
	}
	return cases, nil
}

// AnswerFunc runs the pipeline for one case.
type AnswerFunc func(ctx context.Context, query, code string, tier int) (string, pipeline.Metadata, error)

// Runner evaluates the answer pipeline against gold cases.
type Runner struct {
	answer AnswerFunc
	logger *slog.Logger
}

// NewRunner returns a Runner using the given answer function.
func NewRunner(answer AnswerFunc, logger *slog.Logger) *Runner {
	return &Runner{answer: answer, logger: logger}
}

// Run evaluates each case sequentially. A case scores a citation hit when
// the gold source appears among the cited sources, and a tier match when the
// model's reported tier equals the gold tier. Individual case failures are
// logged and counted, not fatal.
func (r *Runner) Run(ctx context.Context, cases []Case) (Result, error) {
	if len(cases) == 0 {
		return Result{}, fmt.Errorf("no cases to evaluate")
	}

	res := Result{Cases: len(cases)}
	latencies := make([]int64, 0, len(cases))

	for i, c := range cases {
		start := time.Now()
		response, meta, err := r.answer(ctx, c.Error, c.Code, c.GoldTier)
		if err != nil {
			r.logger.Warn("case failed", "case", i, "error", err)
			res.Failures++
			continue
		}
		latencies = append(latencies, time.Since(start).Milliseconds())

		if citationHit(c.GoldCitation, meta.Citations) {
			res.CitationHits++
		}
		if tier, ok := ParseTier(response); ok && tier == c.GoldTier {
			res.TierMatches++
		}
	}

	scored := res.Cases - res.Failures
	if scored > 0 {
		res.CitationHitRate = float64(res.CitationHits) / float64(scored)
		res.TierMatchRate = float64(res.TierMatches) / float64(scored)
	}
	res.MedianLatencyMs = median(latencies)

	return res, nil
}

// citationHit reports whether the gold source was cited. The gold citation
// may carry an anchor after #, e.g. "guide.pdf#page-3"; only the source part
// is compared, so citing any page of the right document counts.
func citationHit(gold string, citations []pipeline.Citation) bool {
	goldSource := gold
	if i := strings.Index(gold, "#"); i >= 0 {
		goldSource = gold[:i]
	}
	for _, c := range citations {
		if c.Source == goldSource {
			return true
		}
	}
	return false
}

// ParseTier extracts the reported tier from the model's response. Responses
// are JSON by instruction but models wrap them in prose or code fences often
// enough that strict parsing would junk good answers, so this looks for the
// outermost braces first.
func ParseTier(response string) (int, bool) {
	text := response
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			text = text[i : j+1]
		}
	}

	var parsed struct {
		Tier int `json:"tier"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return 0, false
	}
	return parsed.Tier, true
}

func median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
