// Package gather fetches text from a fixed set of candidate subpages of a
// resolved company address, bounded by a total character budget. Missing
// pages are the expected common case, not a failure.
package gather

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// pageLabels is the fixed ordered list of subpages worth fetching.
var pageLabels = []struct {
	label string
	path  string
}{
	{"home", ""},
	{"about", "om-oss"},
	{"products", "produkter"},
	{"services", "tjanster"},
	{"contact", "kontakt"},
}

// Gatherer fetches company pages through an ordered fetcher chain.
type Gatherer struct {
	fetchers    []Fetcher
	charBudget  int
	pageTimeout time.Duration
}

// New creates a Gatherer. Fetchers are tried in order per page.
func New(charBudget int, pageTimeout time.Duration, fetchers ...Fetcher) *Gatherer {
	return &Gatherer{
		fetchers:    fetchers,
		charBudget:  charBudget,
		pageTimeout: pageTimeout,
	}
}

// Gather returns page label → text for the address. Each page failure is
// skipped; a fully failed gather returns an empty map, never an error —
// downstream stages tolerate empty input.
func (g *Gatherer) Gather(ctx context.Context, address string) map[string]string {
	pages := make(map[string]string)
	remaining := g.charBudget
	base := strings.TrimSuffix(address, "/")

	for _, page := range pageLabels {
		if remaining <= 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		targetURL := base
		if page.path != "" {
			targetURL = base + "/" + page.path
		}

		text := g.fetchOne(ctx, targetURL)
		if text == "" {
			continue
		}

		if len(text) > remaining {
			// Back off to a rune boundary so the cut never splits å/ä/ö.
			cut := remaining
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		if text == "" {
			continue
		}
		remaining -= len(text)
		pages[page.label] = text
	}

	zap.L().Debug("gather: complete",
		zap.String("address", address),
		zap.Int("pages", len(pages)),
		zap.Int("chars", g.charBudget-remaining),
	)
	return pages
}

// fetchOne tries each fetcher in order for one URL; empty string when all
// fail.
func (g *Gatherer) fetchOne(ctx context.Context, targetURL string) string {
	for _, f := range g.fetchers {
		fetchCtx, cancel := context.WithTimeout(ctx, g.pageTimeout)
		text, err := f.Fetch(fetchCtx, targetURL)
		cancel()
		if err == nil {
			return text
		}
		zap.L().Debug("gather: fetcher failed, trying next",
			zap.String("fetcher", f.Name()),
			zap.String("url", targetURL),
			zap.Error(err),
		)
	}
	return ""
}
