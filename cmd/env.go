package main

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/compiler"
	"github.com/nordscout/prospector/internal/datastore"
	"github.com/nordscout/prospector/internal/enrich"
	"github.com/nordscout/prospector/internal/localdb"
	"github.com/nordscout/prospector/internal/profilestore"
	"github.com/nordscout/prospector/internal/resolver"
	"github.com/nordscout/prospector/internal/retriever"
	anthropicpkg "github.com/nordscout/prospector/pkg/anthropic"
	"github.com/nordscout/prospector/pkg/embeddings"
	"github.com/nordscout/prospector/pkg/jina"
)

// appEnv holds all initialized clients and services needed by the
// query/enrich/index/serve commands.
type appEnv struct {
	LocalDB      *sql.DB
	Companies    *datastore.PGStore
	Profiles     profilestore.ProfileRepository
	Cache        *resolver.AddressCache
	Retriever    *retriever.Retriever
	Compiler     *compiler.Compiler
	Orchestrator *enrich.Orchestrator

	closeCompanies func()
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Profiles != nil {
		_ = e.Profiles.Close()
	}
	if e.closeCompanies != nil {
		e.closeCompanies()
	}
	if e.LocalDB != nil {
		_ = e.LocalDB.Close()
	}
}

// initEnv opens the databases, builds all API clients, and wires the
// compiler and the enrichment orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Companies.DatabaseURL == "" {
		return nil, eris.New("cmd: companies.database_url is required")
	}

	local, err := localdb.Open(ctx, cfg.Profiles.SQLitePath)
	if err != nil {
		return nil, err
	}

	companies, closeCompanies, err := datastore.Connect(ctx, cfg.Companies.DatabaseURL, cfg.Companies.MaxConns)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	// Profiles go to Postgres when configured, with the local database as a
	// secondary sink; otherwise the local database alone.
	var profiles profilestore.ProfileRepository = profilestore.NewSQLite(local)
	if cfg.Profiles.DatabaseURL != "" {
		primary, err := profilestore.NewPostgres(ctx, cfg.Profiles.DatabaseURL)
		if err != nil {
			closeCompanies()
			_ = local.Close()
			return nil, err
		}
		profiles = profilestore.NewFallback(primary, profilestore.NewSQLite(local))
	} else {
		zap.L().Warn("profiles.database_url not set, persisting profiles to local database only")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	jinaOpts := []jina.Option{
		jina.WithBaseURL(cfg.Jina.BaseURL),
		jina.WithRateLimit(cfg.Jina.RatePerSec),
	}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	embedder := embeddings.NewClient(cfg.OpenAI.Key, cfg.OpenAI.EmbeddingModel)

	ret := retriever.New(local, embedder)
	if err := ret.EnsureIndex(ctx); err != nil {
		zap.L().Warn("knowledge index unavailable, retrieval will use fallback chunks", zap.Error(err))
	}

	comp, err := compiler.New(ret, anthropicClient, companies, *cfg)
	if err != nil {
		closeCompanies()
		_ = local.Close()
		return nil, err
	}

	cache := resolver.NewAddressCache(local)
	orch := enrich.New(*cfg, profiles, cache, companies, anthropicClient, jinaClient, local)

	return &appEnv{
		LocalDB:        local,
		Companies:      companies,
		Profiles:       profiles,
		Cache:          cache,
		Retriever:      ret,
		Compiler:       comp,
		Orchestrator:   orch,
		closeCompanies: closeCompanies,
	}, nil
}
