// Package synth derives a structured company profile from gathered page text
// through a fixed sequence of four staged generation calls. Any stage
// failure aborts synthesis for that company only.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nordscout/prospector/internal/config"
	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/internal/usage"
	"github.com/nordscout/prospector/pkg/anthropic"
)

// Stage indices carried by SynthesisError.
const (
	StageSummary = iota + 1
	StageClassify
	StageScore
	StagePlan
)

// sectors is the constrained classification taxonomy. Unrecognised model
// output maps to "other".
var sectors = []string{
	"manufacturing", "construction", "wholesale_retail", "transport_logistics",
	"software_it", "business_services", "food_beverage", "energy_utilities",
	"healthcare", "other",
}

// Synthesizer runs the staged profile pipeline.
type Synthesizer struct {
	ai      anthropic.Client
	cfg     config.AnthropicConfig
	counter *usage.Counter
	now     func() time.Time
}

// New creates a Synthesizer charging usage to the given counter.
func New(ai anthropic.Client, cfg config.AnthropicConfig, counter *usage.Counter) *Synthesizer {
	return &Synthesizer{ai: ai, cfg: cfg, counter: counter, now: time.Now}
}

type summaryOutput struct {
	Summary       string `json:"summary"`
	Products      string `json:"products"`
	Customers     string `json:"customers"`
	BusinessModel string `json:"business_model"`
}

type classifyOutput struct {
	Sector    string   `json:"sector"`
	Subsector string   `json:"subsector"`
	Regions   []string `json:"regions"`
}

type scoreOutput struct {
	FitScore           any      `json:"fit_score"`
	DefensibilityScore any      `json:"defensibility_score"`
	RiskFlags          []string `json:"risk_flags"`
}

type planOutput struct {
	NextSteps []string `json:"next_steps"`
}

// Synthesize produces the profile fields for one company. The returned
// error, when non-nil, is a *model.SynthesisError carrying the failed stage.
func (s *Synthesizer) Synthesize(ctx context.Context, orgID string, pages map[string]string, financialContext string) (*model.CompanyProfile, error) {
	content := renderPages(pages)

	var summary summaryOutput
	summaryPrompt := fmt.Sprintf(
		"Summarize this company's product, customers and business model.\n\nFinancials:\n%s\n\nWebsite content:\n%s",
		financialContext, content,
	)
	if err := s.generate(ctx, StageSummary, orgID,
		`Respond with JSON: {"summary": "...", "products": "...", "customers": "...", "business_model": "..."}`,
		summaryPrompt, &summary); err != nil {
		return nil, err
	}

	var classification classifyOutput
	classifyPrompt := fmt.Sprintf(
		"Classify the company.\nSectors (pick exactly one): %s\n\nSummary:\n%s",
		strings.Join(sectors, ", "), mustJSON(summary),
	)
	if err := s.generate(ctx, StageClassify, orgID,
		`Respond with JSON: {"sector": "...", "subsector": "...", "regions": ["..."]}`,
		classifyPrompt, &classification); err != nil {
		return nil, err
	}

	var scores scoreOutput
	scorePrompt := fmt.Sprintf(
		"Score acquisition fit and defensibility from 1 (poor) to 10 (excellent) and list risk flags.\n\nSummary:\n%s\nClassification:\n%s\nFinancials:\n%s",
		mustJSON(summary), mustJSON(classification), financialContext,
	)
	if err := s.generate(ctx, StageScore, orgID,
		`Respond with JSON: {"fit_score": <1-10>, "defensibility_score": <1-10>, "risk_flags": ["..."]}`,
		scorePrompt, &scores); err != nil {
		return nil, err
	}

	var plan planOutput
	planPrompt := fmt.Sprintf(
		"Propose ordered next steps for evaluating this company.\n\nSummary:\n%s\nScores:\n%s",
		mustJSON(summary), mustJSON(scores),
	)
	if err := s.generate(ctx, StagePlan, orgID,
		`Respond with JSON: {"next_steps": ["..."]}`,
		planPrompt, &plan); err != nil {
		return nil, err
	}

	return &model.CompanyProfile{
		OrgID:   orgID,
		Pages:   pages,
		Summary: buildSummary(summary),
		Classification: model.Classification{
			Sector:    normalizeSector(classification.Sector),
			Subsector: classification.Subsector,
			Regions:   classification.Regions,
		},
		FitScore:           ClampScore(scores.FitScore),
		DefensibilityScore: ClampScore(scores.DefensibilityScore),
		RiskFlags:          scores.RiskFlags,
		NextSteps:          plan.NextSteps,
		GenerationAgent:    s.cfg.Model,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

// generate runs one staged call and decodes its JSON output.
func (s *Synthesizer) generate(ctx context.Context, stage int, orgID, system, prompt string, out any) error {
	timeout := time.Duration(s.cfg.TimeoutSecs) * time.Second
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.ai.CreateMessage(genCtx, anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: system}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return &model.SynthesisError{OrgID: orgID, Stage: stage, Err: err}
	}
	s.counter.LLMCall(resp.Usage)
	resp.Usage.LogCost(s.cfg.Model, fmt.Sprintf("synth_stage_%d", stage))

	if err := decodeJSON(resp.Text(), out); err != nil {
		return &model.SynthesisError{OrgID: orgID, Stage: stage, Err: err}
	}
	return nil
}

// decodeJSON tolerates code fences and surrounding prose.
func decodeJSON(raw string, out any) error {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}
	if end := strings.LastIndex(text, "}"); end >= 0 {
		text = text[:end+1]
	}
	return eris.Wrap(json.Unmarshal([]byte(strings.TrimSpace(text)), out), "synth: decode stage output")
}

func renderPages(pages map[string]string) string {
	if len(pages) == 0 {
		return "(no website content available)"
	}
	labels := make([]string, 0, len(pages))
	for label := range pages {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var b strings.Builder
	for _, label := range labels {
		b.WriteString("### ")
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(pages[label])
		b.WriteString("\n\n")
	}
	return b.String()
}

func buildSummary(s summaryOutput) string {
	parts := []string{s.Summary}
	if s.Products != "" {
		parts = append(parts, "Products: "+s.Products)
	}
	if s.Customers != "" {
		parts = append(parts, "Customers: "+s.Customers)
	}
	if s.BusinessModel != "" {
		parts = append(parts, "Business model: "+s.BusinessModel)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func normalizeSector(sector string) string {
	needle := strings.ToLower(strings.TrimSpace(sector))
	for _, s := range sectors {
		if needle == s {
			return s
		}
	}
	return "other"
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
