// Package composer builds the tiered prompt sent to the chat model. The tier
// controls how much the assistant is allowed to reveal, from a nudge toward
// the right documentation up to a corrected snippet.
package composer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bugaboo-team/nudge/internal/retrieval"
)

const (
	// MinTier points the student at the relevant material without explanation.
	MinTier = 1
	// MaxTier allows a corrected code snippet.
	MaxTier = 4
)

// maxContextTokens caps how much retrieved material goes into the prompt.
const maxContextTokens = 2400

const systemPrompt = `You are a teaching assistant for an introductory data analysis course. You help students debug their own code without doing the work for them. You answer strictly within the disclosure tier you are given and you only reference the course material provided as context.`

const promptTemplate = `A student hit an error. Respond at disclosure tier {tier}.

Tier rules:
- Tier 1: ask one clarifying question that nudges the student toward the relevant concept. No solution, no explanation of the fix.
- Tier 2: give a numbered list of steps the student should take to diagnose the problem themselves. No code.
- Tier 3: explain what is wrong and include a partial code hint with citations to the course material. Do not write the complete fix.
- Tier 4: provide the full corrected code with a short explanation. Use this tier only because it was explicitly requested.

Never reveal more than the tier allows. Never invent sources: only cite material that appears in the context below. If the context is empty or does not cover the student's problem, drop to tier 1 and ask a clarifying question regardless of the requested tier.

Respond with a single JSON object:
{"tier": <number>, "message": "<your answer>", "steps": ["<step>", ...], "code_hint": "<snippet or empty string>", "citations": [{"source": "<file>", "anchor": "<page>"}, ...]}

Course material:
{context}

Student's problem:
{query}`

// Composer assembles chat messages from a query, retrieved chunks, and a tier.
type Composer struct{}

// New returns a Composer.
func New() *Composer {
	return &Composer{}
}

// Compose builds the system and user messages for the given tier. Tiers
// outside [1,4] are clamped to tier 1, the least-revealing behavior. Context
// chunks are included in retrieval order up to a token budget.
func (c *Composer) Compose(query string, chunks []retrieval.Chunk, tier int) (system string, user string) {
	tier = ClampTier(tier)

	user = strings.NewReplacer(
		"{tier}", strconv.Itoa(tier),
		"{context}", renderContext(chunks),
		"{query}", query,
	).Replace(promptTemplate)

	return systemPrompt, user
}

// ClampTier forces out-of-range tiers to the least-revealing tier.
func ClampTier(tier int) int {
	if tier < MinTier || tier > MaxTier {
		return MinTier
	}
	return tier
}

// renderContext concatenates chunks in retrieval order, each labeled with its
// source and locator, stopping once the token budget is exhausted.
func renderContext(chunks []retrieval.Chunk) string {
	if len(chunks) == 0 {
		return "(no course material matched this problem)"
	}

	var b strings.Builder
	budget := maxContextTokens
	for _, ch := range chunks {
		entry := fmt.Sprintf("[%s %s]\n%s\n\n", ch.Source, ch.Locator, ch.Text)
		cost := EstimateTokens(entry)
		if cost > budget {
			break
		}
		budget -= cost
		b.WriteString(entry)
	}
	return strings.TrimRight(b.String(), "\n")
}

// EstimateTokens approximates token count as len/4. Good enough for
// budgeting; exact tokenization is model-specific.
func EstimateTokens(s string) int {
	return len(s) / 4
}
