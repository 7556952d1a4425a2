// Package model holds the domain types shared across the query and
// enrichment subsystems.
package model

import "time"

// Classification places a company in the constrained taxonomy.
type Classification struct {
	Sector    string   `json:"sector"`
	Subsector string   `json:"subsector"`
	Regions   []string `json:"regions,omitempty"`
}

// CompanyProfile is the derived profile for a single company, keyed by its
// organisation number. Written once per enrichment run via idempotent upsert.
type CompanyProfile struct {
	OrgID              string            `json:"org_id"`
	Address            string            `json:"address"`
	Pages              map[string]string `json:"pages,omitempty"`
	Summary            string            `json:"summary"`
	Classification     Classification    `json:"classification"`
	FitScore           int               `json:"fit_score"`
	DefensibilityScore int               `json:"defensibility_score"`
	RiskFlags          []string          `json:"risk_flags,omitempty"`
	NextSteps          []string          `json:"next_steps,omitempty"`
	GenerationAgent    string            `json:"generation_agent"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// QueryResult reports the outcome of executing a compiled filter.
type QueryResult struct {
	OrgIDs        []string `json:"org_ids"`
	TotalMatched  int      `json:"total_matched"`
	ReturnedCount int      `json:"returned_count"`
	Capped        bool     `json:"capped"`
	// Suggestions names up to three unconstrained dimensions the caller can
	// narrow by when the result is capped.
	Suggestions []string `json:"suggestions,omitempty"`
}

// BatchFailure records one company that could not be enriched.
type BatchFailure struct {
	OrgID  string `json:"org_id"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// UsageSnapshot is a point-in-time view of external-call consumption for a
// single orchestrator invocation.
type UsageSnapshot struct {
	SearchesMade  int64   `json:"searches_made"`
	SearchesSaved int64   `json:"searches_saved"`
	ReaderCalls   int64   `json:"reader_calls"`
	LLMCalls      int64   `json:"llm_calls"`
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

// BatchResult summarises one enrichment batch.
type BatchResult struct {
	BatchID   string         `json:"batch_id"`
	Enriched  []string       `json:"enriched"`
	Skipped   []string       `json:"skipped"`
	Failed    []BatchFailure `json:"failed"`
	Usage     UsageSnapshot  `json:"usage"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}
