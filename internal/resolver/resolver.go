// Package resolver finds a company's canonical public web address with the
// minimum number of external search calls. Precedence: stored profile,
// persistent address cache, in-batch memo, external search — each step
// short-circuiting on success.
package resolver

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/internal/profilestore"
	"github.com/nordscout/prospector/internal/usage"
	"github.com/nordscout/prospector/pkg/jina"
)

// searchMiss marks an org id whose search came up empty this batch, so the
// same run does not search twice even though a future run may retry.
const searchMiss = "\x00miss"

// Resolver resolves org ids to web addresses for one enrichment batch.
type Resolver struct {
	profiles profilestore.ProfileRepository
	cache    *AddressCache
	search   jina.Client
	counter  *usage.Counter
	timeout  time.Duration

	flight singleflight.Group
	mu     sync.Mutex
	memo   map[string]string
}

// New creates a per-batch Resolver.
func New(profiles profilestore.ProfileRepository, cache *AddressCache, search jina.Client, counter *usage.Counter, timeout time.Duration) *Resolver {
	return &Resolver{
		profiles: profiles,
		cache:    cache,
		search:   search,
		counter:  counter,
		timeout:  timeout,
		memo:     make(map[string]string),
	}
}

// Resolve returns the canonical address for the org id, or model.ErrNotFound
// when no step produced one. A search hit is written to the persistent cache
// synchronously before returning.
func (r *Resolver) Resolve(ctx context.Context, orgID, knownName string) (string, error) {
	log := zap.L().With(zap.String("org_id", orgID))

	// Step 1: existing profile.
	if profile, err := r.profiles.Get(ctx, orgID); err == nil && profile.Address != "" {
		r.counter.SearchSaved()
		r.remember(orgID, profile.Address)
		return profile.Address, nil
	}

	// Step 2: persistent cache.
	if address, err := r.cache.Get(ctx, orgID); err == nil {
		r.counter.SearchSaved()
		r.remember(orgID, address)
		return address, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		log.Warn("resolver: cache read failed", zap.Error(err))
	}

	// Steps 3 and 4 run as a single flight per org id: when duplicate org
	// ids land on concurrent workers, the later callers wait on the first
	// one's memo lookup or search instead of issuing their own.
	executed := false
	v, err, _ := r.flight.Do(orgID, func() (any, error) {
		executed = true

		// Step 3: in-batch memo, guarding duplicate org ids within one run
		// before the cache write lands.
		r.mu.Lock()
		memoized, ok := r.memo[orgID]
		r.mu.Unlock()
		if ok {
			r.counter.SearchSaved()
			if memoized == searchMiss {
				return nil, eris.Wrapf(model.ErrNotFound, "resolver: %s (memoized miss)", orgID)
			}
			return memoized, nil
		}

		// Step 4: external search.
		address, err := r.searchAddress(ctx, knownName)
		if err != nil {
			r.remember(orgID, searchMiss)
			if errors.Is(err, model.ErrNotFound) {
				log.Info("resolver: no address found", zap.String("name", knownName))
			} else {
				log.Warn("resolver: search failed", zap.Error(err))
			}
			return nil, eris.Wrapf(model.ErrNotFound, "resolver: %s", orgID)
		}

		// Persist before returning so a crash right after does not lose the
		// discovery for a concurrently processing duplicate.
		if err := r.cache.Put(ctx, orgID, address); err != nil {
			log.Warn("resolver: cache write failed", zap.Error(err))
		}
		r.remember(orgID, address)

		log.Info("resolver: address discovered",
			zap.String("address", address),
			zap.String("name", knownName),
		)
		return address, nil
	})
	if !executed {
		// Shared another caller's flight instead of searching.
		r.counter.SearchSaved()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) remember(orgID, address string) {
	r.mu.Lock()
	r.memo[orgID] = address
	r.mu.Unlock()
}

// searchAddress issues the single external search for a company name and
// extracts a canonical https address from the first usable organic result.
func (r *Resolver) searchAddress(ctx context.Context, knownName string) (string, error) {
	if strings.TrimSpace(knownName) == "" {
		return "", model.ErrNotFound
	}

	r.counter.SearchMade()

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.search.Search(searchCtx, knownName+" företag hemsida")
	if err != nil {
		return "", eris.Wrap(err, "resolver: search")
	}

	for _, result := range resp.Data {
		if address := canonicalAddress(result.URL); address != "" {
			return address, nil
		}
	}
	return "", model.ErrNotFound
}

// skipHosts are aggregator domains that never are the company's own site.
var skipHosts = []string{
	"allabolag.se", "hitta.se", "eniro.se", "linkedin.com", "facebook.com",
	"wikipedia.org", "bolagsfakta.se", "proff.se",
}

// canonicalAddress reduces a search-result URL to scheme://host, rejecting
// aggregator hosts. Returns "" when unusable.
func canonicalAddress(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	for _, skip := range skipHosts {
		if host == skip || strings.HasSuffix(host, "."+skip) {
			return ""
		}
	}
	return "https://" + host
}
