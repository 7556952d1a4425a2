package filter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// llmFilterResponse is the JSON contract the generation prompt demands.
type llmFilterResponse struct {
	Predicates []Predicate `json:"predicates"`
}

// ParseLLMResponse turns a model completion into a candidate filter. The
// response must be a JSON object with a "predicates" array; code fences are
// tolerated. Any parse failure or whitelist violation is an error — the
// caller falls back to the heuristic compiler, never executes a filter that
// references unknown columns.
func ParseLLMResponse(raw, prompt string, now time.Time) (*CompiledFilter, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Tolerate prose around the object by slicing to the outermost braces.
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}
	if end := strings.LastIndex(text, "}"); end >= 0 {
		text = text[:end+1]
	}

	var resp llmFilterResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, eris.Wrap(err, "filter: parse llm response")
	}

	f := &CompiledFilter{
		Predicates:  resp.Predicates,
		RawPrompt:   prompt,
		GeneratedAt: now.UTC(),
		Source:      SourceLLM,
	}

	// Strip any policy markers the model may have echoed back; the ruleset
	// is the only source of policy predicates.
	for i := range f.Predicates {
		f.Predicates[i].RuleID = ""
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
