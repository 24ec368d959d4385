// Package upstream fetches routing data from public providers with a hard
// per-call timeout, a shared response cache and evidence metadata on every
// outcome.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/routelens/routelens/internal/core/store"
	"github.com/routelens/routelens/internal/metrics"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 8 * time.Second

const maxBodyBytes = 8 << 20

// Options controls a single fetch.
type Options struct {
	Provider        string
	Timeout         time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// FetchResult describes one upstream call, cached or live. URL and FetchedAt
// are always set.
type FetchResult struct {
	Provider  string
	URL       string
	FetchedAt time.Time
	Status    int
	OK        bool
	Payload   json.RawMessage
	Cached    bool
	CacheAge  time.Duration
	Error     string
	Digest    string
}

// Response is what a transport hands back to Run.
type Response struct {
	URL    string
	Status int
	Body   []byte
}

// Transport performs one upstream exchange. It must honor ctx cancellation.
type Transport func(ctx context.Context) (Response, error)

// Client runs upstream calls through the shared cache.
type Client struct {
	HTTP      *http.Client
	Cache     *store.MemoryCache
	UserAgent string
	Clock     func() time.Time
}

// Fetch issues an anonymous GET for url and decodes the body as JSON.
func (c *Client) Fetch(ctx context.Context, url string, opts Options) FetchResult {
	return c.Run(ctx, url, opts, c.httpTransport(url))
}

// Run executes transport under the cache and timeout policy. key identifies
// the response in the cache and doubles as the evidence URL unless the
// transport reports a more specific one.
func (c *Client) Run(ctx context.Context, key string, opts Options, transport Transport) FetchResult {
	if ctx == nil {
		ctx = context.Background()
	}

	now := c.now()
	if opts.CacheTTL > 0 && c.Cache != nil {
		c.Cache.Prune(now, opts.CacheTTL, opts.CacheMaxEntries)
		if entry, ok := c.Cache.Get(key, now, opts.CacheTTL); ok {
			metrics.RecordUpstreamCacheHit(opts.Provider)
			return FetchResult{
				Provider:  opts.Provider,
				URL:       key,
				FetchedAt: entry.FetchedAt,
				Status:    entry.Status,
				OK:        true,
				Payload:   entry.Payload,
				Cached:    true,
				CacheAge:  entry.Age(now),
				Digest:    payloadDigest(entry.Payload),
			}
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetchedAt := c.now()
	started := time.Now()
	resp, err := transport(callCtx)
	elapsed := time.Since(started)

	result := FetchResult{
		Provider:  opts.Provider,
		URL:       key,
		FetchedAt: fetchedAt,
		Status:    resp.Status,
	}
	if resp.URL != "" {
		result.URL = resp.URL
	}

	switch {
	case err != nil:
		result.Error = transportError(callCtx, err, timeout)
	case resp.Status < 200 || resp.Status > 299:
		result.Error = fmt.Sprintf("HTTP %d", resp.Status)
	default:
		var payload json.RawMessage
		if decodeErr := json.Unmarshal(resp.Body, &payload); decodeErr != nil {
			result.Error = decodeErr.Error()
			break
		}
		result.OK = true
		result.Payload = payload
		result.Digest = payloadDigest(payload)
	}

	metrics.RecordUpstreamCall(opts.Provider, outcome(result), elapsed)

	if result.OK && opts.CacheTTL > 0 && c.Cache != nil {
		stored := c.now()
		c.Cache.Put(key, store.Entry{
			StoredAt:     stored,
			LastAccessed: stored,
			FetchedAt:    result.FetchedAt,
			Status:       result.Status,
			Payload:      result.Payload,
		})
		c.Cache.Prune(stored, opts.CacheTTL, opts.CacheMaxEntries)
		metrics.SetUpstreamCacheEntries(c.Cache.Len())
	}

	return result
}

func (c *Client) httpTransport(url string) Transport {
	return func(ctx context.Context) (Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Response{}, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cache-Control", "no-store")
		if c != nil && c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return Response{}, err
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

		out := Response{Status: resp.StatusCode}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return out, nil
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return out, err
		}
		out.Body = body
		return out, nil
	}
}

// httpClient never carries a cookie jar, so requests go out without credentials.
func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{}
}

func (c *Client) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func transportError(ctx context.Context, err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timeout after %dms", timeout.Milliseconds())
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}

func outcome(result FetchResult) string {
	switch {
	case result.OK:
		return "success"
	case result.Status > 0:
		return "http_error"
	default:
		return "transport_error"
	}
}
