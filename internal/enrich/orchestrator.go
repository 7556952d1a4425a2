// Package enrich sequences identity resolution, content gathering and
// profile synthesis per company, with dual-sink persistence and per-batch
// usage accounting. Failures are contained per company; one entity never
// aborts the batch.
package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nordscout/prospector/internal/config"
	"github.com/nordscout/prospector/internal/datastore"
	"github.com/nordscout/prospector/internal/gather"
	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/internal/profilestore"
	"github.com/nordscout/prospector/internal/resolver"
	"github.com/nordscout/prospector/internal/synth"
	"github.com/nordscout/prospector/internal/usage"
	"github.com/nordscout/prospector/pkg/anthropic"
	"github.com/nordscout/prospector/pkg/jina"
)

// outcome classifies one company's processing result.
type outcome int

const (
	outcomeEnriched outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Orchestrator runs enrichment batches.
type Orchestrator struct {
	cfg      config.Config
	profiles profilestore.ProfileRepository
	cache    *resolver.AddressCache
	store    datastore.CompanyStore
	ai       anthropic.Client
	reader   jina.Client
	localDB  *sql.DB
}

// New creates an Orchestrator. localDB is the shared local database used for
// batch bookkeeping; it may be nil in tests.
func New(
	cfg config.Config,
	profiles profilestore.ProfileRepository,
	cache *resolver.AddressCache,
	store datastore.CompanyStore,
	ai anthropic.Client,
	reader jina.Client,
	localDB *sql.DB,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		profiles: profiles,
		cache:    cache,
		store:    store,
		ai:       ai,
		reader:   reader,
		localDB:  localDB,
	}
}

// Run enriches the given org ids. Per-company failures are reported in the
// result, not returned as an error. Cancellation is observed between
// companies: in-flight work finishes, nothing new is scheduled.
func (o *Orchestrator) Run(ctx context.Context, orgIDs []string, forceRefresh bool) (*model.BatchResult, error) {
	start := time.Now()
	counter := usage.NewCounter(o.cfg.Anthropic.Model)

	searchTimeout := time.Duration(o.cfg.Enrich.SearchTimeout) * time.Second
	fetchTimeout := time.Duration(o.cfg.Enrich.FetchTimeout) * time.Second

	res := resolver.New(o.profiles, o.cache, o.reader, counter, searchTimeout)
	gatherer := gather.New(o.cfg.Enrich.CharBudget, fetchTimeout,
		gather.NewJinaFetcher(o.reader, counter),
		gather.NewLocalFetcher(fetchTimeout),
	)
	synthesizer := synth.New(o.ai, o.cfg.Anthropic, counter)

	result := &model.BatchResult{
		BatchID:   uuid.New().String(),
		StartedAt: start.UTC(),
	}
	log := zap.L().With(zap.String("batch_id", result.BatchID))
	log.Info("enrich: batch starting",
		zap.Int("companies", len(orgIDs)),
		zap.Bool("force_refresh", forceRefresh),
	)

	concurrency := o.cfg.Enrich.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			log.Warn("enrich: cancellation observed, not scheduling remaining companies",
				zap.String("next_org_id", orgID),
			)
			break
		}

		g.Go(func() error {
			oc, failure := o.processOne(ctx, orgID, forceRefresh, res, gatherer, synthesizer)

			mu.Lock()
			switch oc {
			case outcomeEnriched:
				result.Enriched = append(result.Enriched, orgID)
			case outcomeSkipped:
				result.Skipped = append(result.Skipped, orgID)
			case outcomeFailed:
				result.Failed = append(result.Failed, *failure)
			}
			mu.Unlock()

			// Running snapshot so operators can halt a batch nearing quota.
			snap := counter.Snapshot()
			log.Info("enrich: usage snapshot",
				zap.String("org_id", orgID),
				zap.Int64("searches_made", snap.SearchesMade),
				zap.Int64("searches_saved", snap.SearchesSaved),
				zap.Int64("llm_calls", snap.LLMCalls),
				zap.Float64("estimated_cost_usd", snap.EstimatedCost),
			)
			return nil
		})
	}

	_ = g.Wait()

	result.Usage = counter.Snapshot()
	result.Duration = time.Since(start)

	o.recordBatch(ctx, result)

	log.Info("enrich: batch complete",
		zap.Int("enriched", len(result.Enriched)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// processOne runs the full pipeline for a single company.
func (o *Orchestrator) processOne(
	ctx context.Context,
	orgID string,
	forceRefresh bool,
	res *resolver.Resolver,
	gatherer *gather.Gatherer,
	synthesizer *synth.Synthesizer,
) (outcome, *model.BatchFailure) {
	log := zap.L().With(zap.String("org_id", orgID))

	if !forceRefresh {
		if _, err := o.profiles.Get(ctx, orgID); err == nil {
			log.Debug("enrich: profile exists, skipping")
			return outcomeSkipped, nil
		} else if !errors.Is(err, model.ErrNotFound) {
			log.Warn("enrich: profile lookup failed, proceeding", zap.Error(err))
		}
	}

	name, err := o.store.Name(ctx, orgID)
	if err != nil {
		log.Warn("enrich: name lookup failed", zap.Error(err))
	}

	address, err := res.Resolve(ctx, orgID, name)
	if err != nil {
		return outcomeFailed, &model.BatchFailure{OrgID: orgID, Stage: "resolve", Reason: err.Error()}
	}

	pages := gatherer.Gather(ctx, address)

	financialContext, err := o.store.FinancialContext(ctx, orgID)
	if err != nil {
		log.Warn("enrich: financial context unavailable", zap.Error(err))
	}

	profile, err := synthesizer.Synthesize(ctx, orgID, pages, financialContext)
	if err != nil {
		return outcomeFailed, &model.BatchFailure{OrgID: orgID, Stage: "synthesize", Reason: err.Error()}
	}
	profile.Address = address

	if err := o.profiles.Upsert(ctx, profile); err != nil {
		return outcomeFailed, &model.BatchFailure{OrgID: orgID, Stage: "persist", Reason: err.Error()}
	}

	log.Info("enrich: company enriched",
		zap.String("address", address),
		zap.String("sector", profile.Classification.Sector),
		zap.Int("fit_score", profile.FitScore),
	)
	return outcomeEnriched, nil
}

// recordBatch stores the batch summary in the local database, best effort.
func (o *Orchestrator) recordBatch(ctx context.Context, result *model.BatchResult) {
	if o.localDB == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_, err = o.localDB.ExecContext(ctx,
		`INSERT INTO batches (id, started_at, result) VALUES (?, ?, ?)`,
		result.BatchID, result.StartedAt, string(data),
	)
	if err != nil {
		zap.L().Warn("enrich: record batch failed", zap.Error(err))
	}
}

// ListBatches returns the most recent batch summaries, newest first.
func ListBatches(ctx context.Context, db *sql.DB, limit int) ([]model.BatchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT result FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list batches")
	}
	defer rows.Close()

	var out []model.BatchResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "enrich: scan batch")
		}
		var br model.BatchResult
		if err := json.Unmarshal([]byte(raw), &br); err != nil {
			zap.L().Warn("enrich: skip malformed batch record", zap.Error(err))
			continue
		}
		out = append(out, br)
	}
	return out, eris.Wrap(rows.Err(), "enrich: list batches")
}
