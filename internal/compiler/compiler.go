// Package compiler turns a natural-language prompt (plus an optional prior
// filter) into a validated, executed CompiledFilter. Generation failures
// degrade to the deterministic heuristic compiler; data-store failures
// surface to the caller.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/config"
	"github.com/nordscout/prospector/internal/datastore"
	"github.com/nordscout/prospector/internal/filter"
	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/internal/retriever"
	"github.com/nordscout/prospector/pkg/anthropic"
)

const maxSuggestions = 3

const compileSystemPrompt = `You translate analyst prompts about Swedish companies into structured filters.
Respond with a single JSON object: {"predicates": [{"field": "<name>", "op": "<op>", "value": <value>}, ...]}.
Allowed ops: eq, neq, gte, lte, gt, lt, contains, not_contains.
Only use whitelisted fields. Monetary values are KSEK (thousands of SEK); convert millions by multiplying by 1000.
When a previous filter is supplied, return the full refined predicate set: keep prior predicates and add the new ones, dropping a prior predicate only if the prompt explicitly asks to remove it.
No prose, no code fences.`

// Compiler compiles and executes company queries.
type Compiler struct {
	retriever  *retriever.Retriever
	ai         anthropic.Client
	store      datastore.CompanyStore
	exclusions *filter.ExclusionRuleSet
	cfg        config.Config
	now        func() time.Time
}

// New creates a Compiler. The exclusion ruleset is loaded once; a malformed
// embedded ruleset is a programming error surfaced at startup.
func New(r *retriever.Retriever, ai anthropic.Client, store datastore.CompanyStore, cfg config.Config) (*Compiler, error) {
	rules, err := filter.LoadExclusions()
	if err != nil {
		return nil, err
	}
	return &Compiler{
		retriever:  r,
		ai:         ai,
		store:      store,
		exclusions: rules,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Compile translates the prompt into a filter, injects the exclusion policy,
// executes against the data store, and caps the result.
func (c *Compiler) Compile(ctx context.Context, userText string, prior *filter.CompiledFilter) (*filter.CompiledFilter, *model.QueryResult, error) {
	log := zap.L().With(zap.String("prompt", userText))

	chunks := c.retriever.Retrieve(ctx, userText, c.cfg.Query.RetrieverK)

	candidate := c.generate(ctx, userText, prior, chunks)
	if candidate == nil {
		candidate = filter.CompileHeuristic(userText, c.now())
		log.Info("compile: using heuristic fallback")
	}

	merged := filter.Merge(prior, candidate, filter.DetectRemovals(userText), c.now())
	merged.Scope = filter.DetectScope(userText)
	c.exclusions.Apply(merged)

	if err := merged.Validate(); err != nil {
		// Only reachable if the merged prior was tampered with; refuse to
		// execute rather than run an unsafe expression.
		return nil, nil, err
	}

	total, err := c.store.Count(ctx, merged)
	if err != nil {
		return merged, nil, err
	}

	pageSize := c.cfg.Query.PageSize
	orgIDs, err := c.store.Select(ctx, merged, pageSize)
	if err != nil {
		return merged, nil, err
	}

	result := &model.QueryResult{
		OrgIDs:        orgIDs,
		TotalMatched:  total,
		ReturnedCount: len(orgIDs),
	}
	if total > c.cfg.Query.ResultCeiling {
		result.Capped = true
		result.Suggestions = filter.SuggestNarrowing(merged, maxSuggestions)
	}

	log.Info("compile: query executed",
		zap.String("source", string(merged.Source)),
		zap.String("scope", string(merged.Scope)),
		zap.Int("total_matched", total),
		zap.Int("returned", len(orgIDs)),
		zap.Bool("capped", result.Capped),
	)

	return merged, result, nil
}

// generate asks the model for a candidate filter. Returns nil on any model
// or parse failure; the caller falls back to the heuristic compiler.
func (c *Compiler) generate(ctx context.Context, userText string, prior *filter.CompiledFilter, chunks []retriever.Chunk) *filter.CompiledFilter {
	timeout := time.Duration(c.cfg.Anthropic.TimeoutSecs) * time.Second
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.ai.CreateMessage(genCtx, anthropic.MessageRequest{
		Model:     c.cfg.Anthropic.Model,
		MaxTokens: c.cfg.Anthropic.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: compileSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildCompilePrompt(userText, prior, chunks)},
		},
	})
	if err != nil {
		zap.L().Warn("compile: generation failed, falling back",
			zap.Error(&model.ModelError{Op: "filter generation", Err: err}),
		)
		return nil
	}
	resp.Usage.LogCost(c.cfg.Anthropic.Model, "compile")

	candidate, err := filter.ParseLLMResponse(resp.Text(), userText, c.now())
	if err != nil {
		zap.L().Warn("compile: unusable model response, falling back", zap.Error(err))
		return nil
	}
	return candidate
}

// buildCompilePrompt assembles the generation request: retrieved context,
// field whitelist, exclusion description, prior filter, new utterance.
func buildCompilePrompt(userText string, prior *filter.CompiledFilter, chunks []retriever.Chunk) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	for _, chunk := range chunks {
		b.WriteString(chunk.Content)
		b.WriteString("\n---\n")
	}

	b.WriteString("\nWhitelisted fields:\n")
	names := make([]string, 0, len(filter.Whitelist))
	for name := range filter.Whitelist {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := filter.Whitelist[name]
		b.WriteString(fmt.Sprintf("- %s (%s)\n", name, spec.Label))
	}

	b.WriteString("\nStanding exclusions (applied automatically, do not emit them): real estate, holding companies, dormant registrations.\n")

	if prior != nil {
		priorJSON, _ := json.Marshal(prior.Predicates)
		b.WriteString("\nPrevious filter (refine this):\n")
		b.Write(priorJSON)
		b.WriteString("\n")
	}

	b.WriteString("\nPrompt: ")
	b.WriteString(userText)
	return b.String()
}
