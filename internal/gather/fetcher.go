package gather

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nordscout/prospector/internal/usage"
	"github.com/nordscout/prospector/pkg/jina"
)

// Fetcher fetches one URL and returns its text content. Fetchers are tried
// in order; the first success wins.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
	Name() string
}

// jinaFetcher fetches via the Jina reader, the richer primary path.
type jinaFetcher struct {
	client  jina.Client
	counter *usage.Counter
}

// NewJinaFetcher creates the primary reader-backed fetcher.
func NewJinaFetcher(client jina.Client, counter *usage.Counter) Fetcher {
	return &jinaFetcher{client: client, counter: counter}
}

func (f *jinaFetcher) Name() string { return "jina" }

func (f *jinaFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	f.counter.ReaderCall()
	resp, err := f.client.Read(ctx, targetURL)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Data.Content) == "" {
		return "", eris.Errorf("jina: empty content for %s", targetURL)
	}
	return resp.Data.Content, nil
}

// localFetcher is the simpler fetch-and-extract fallback: plain HTTP GET
// with HTML stripped to text. Free, no API calls.
type localFetcher struct {
	client *http.Client
}

// NewLocalFetcher creates the fallback fetcher with sensible defaults.
func NewLocalFetcher(timeout time.Duration) Fetcher {
	return &localFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (f *localFetcher) Name() string { return "local_http" }

func (f *localFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ProspectorBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", eris.Wrap(err, "local_http: read body")
	}

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	text := stripHTML(string(body))
	if len(text) < 100 {
		return "", eris.New("local_http: empty page")
	}
	return text, nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]{2,}`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML reduces an HTML document to readable text.
func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
