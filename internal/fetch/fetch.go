// Package fetch implements the HTML fetcher: given a base URL and a
// target URL it returns the HTTP status, the raw HTML and the outbound
// internal links discovered on the page, enforcing a per-host politeness
// delay and an accept/timeout policy.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

// Result is the outcome of fetching a single URL.
type Result struct {
	StatusCode int
	HTML       string
	Links      []string // outbound internal links, resolved to absolute URLs
}

// Config controls fetcher behavior.
type Config struct {
	UserAgent       string
	Referrer        string
	RequestTimeout  time.Duration
	PolitenessDelay time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:       "SearchEngineBot/1.0",
		RequestTimeout:  10 * time.Second,
		PolitenessDelay: 500 * time.Millisecond,
	}
}

// Fetcher performs polite HTTP fetches of HTML pages. It is safe for
// concurrent use: the per-host politeness delay is enforced with an
// internal mutex-guarded map, exactly once per host regardless of how
// many goroutines call Fetch concurrently.
type Fetcher struct {
	cfg    Config
	client *http.Client

	mu      sync.Mutex
	lastHit map[string]time.Time
}

// New returns a Fetcher using cfg.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		lastHit: make(map[string]time.Time),
	}
}

// Fetch downloads target, returning its status code, HTML body and the
// absolute same-origin links discovered in it. A non-2xx response or a
// network error is reported via Result.StatusCode / an empty HTML body,
// not as a Go error: fetch failures are recorded, not propagated, so the
// caller can always persist a Page row for the attempt.
func (f *Fetcher) Fetch(ctx context.Context, base, target string) (Result, error) {
	if err := f.awaitPoliteness(ctx, target); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.Referrer != "" {
		req.Header.Set("Referer", f.cfg.Referrer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{StatusCode: 0}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: resp.StatusCode}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{StatusCode: resp.StatusCode}, nil
	}

	links := extractLinks(base, target, body)
	return Result{
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		Links:      links,
	}, nil
}

// awaitPoliteness blocks until the per-host minimum interval since the
// last request to target's host has elapsed.
func (f *Fetcher) awaitPoliteness(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	host := u.Host

	f.mu.Lock()
	last, ok := f.lastHit[host]
	wait := time.Duration(0)
	if ok {
		elapsed := time.Since(last)
		if elapsed < f.cfg.PolitenessDelay {
			wait = f.cfg.PolitenessDelay - elapsed
		}
	}
	f.lastHit[host] = time.Now().Add(wait)
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extractLinks walks the HTML DOM and returns absolute, same-origin
// hrefs found under <a> elements.
func extractLinks(base, target string, body []byte) []string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	rootURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	origin := rootURL.Scheme + "://" + rootURL.Host + "/"

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "a") {
			for _, a := range n.Attr {
				if strings.EqualFold(a.Key, "href") {
					if abs := CleanHref(target, a.Val); abs != "" && strings.HasPrefix(abs, origin) {
						hrefs = append(hrefs, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return hrefs
}

// PathOf returns the path component of rawURL, or "/" if it is empty,
// for use as the unique-per-site key a Page is stored under.
func PathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// CleanHref resolves href against base, dropping fragment-only, javascript:
// and data: links, and stripping any #fragment from the result.
func CleanHref(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	var refURL *url.URL
	if u, err := url.Parse(href); err == nil {
		refURL = u
	} else {
		refURL = &url.URL{Path: href}
	}

	u := baseURL.ResolveReference(refURL)
	u.Fragment = ""
	return u.String()
}
