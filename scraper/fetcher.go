package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-audiobooks-api/config"
)

// Fetcher retrieves the raw HTML of one page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// CollyFetcher fetches pages through a synchronous colly collector. Every
// call runs on a clone so response callbacks stay local to the request.
type CollyFetcher struct {
	collector *colly.Collector
	transport *cancelTransport
	metrics   *Metrics
	nextID    atomic.Uint64
}

// NewCollyFetcher builds a fetcher restricted to the configured site.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	transport := &cancelTransport{base: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}}
	collector.WithTransport(transport)

	return &CollyFetcher{collector: collector, transport: transport, metrics: metrics}, nil
}

// WithTransport replaces the HTTP transport used for every fetch. It must be
// called before the first Fetch.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.transport.base = rt
}

// fetchIDHeader carries the id of the Fetch call that issued a request. It is
// stripped before the request leaves the process.
const fetchIDHeader = "X-Audiobooks-Fetch"

// cancelTransport ties each outgoing request to the context of the Fetch call
// that issued it, since colly visits take no context. Requests without an id,
// such as robots.txt lookups, pass through unchanged.
type cancelTransport struct {
	base     http.RoundTripper
	inflight sync.Map // fetch id -> context.Context
}

func (t *cancelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(fetchIDHeader)
	if id == "" {
		return t.base.RoundTrip(req)
	}
	value, ok := t.inflight.Load(id)
	if !ok {
		return nil, context.Canceled
	}
	fetchCtx := value.(context.Context)

	// The client deadline lives on req.Context, so derive from it.
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(fetchCtx, cancel)

	out := req.Clone(ctx)
	out.Header.Del(fetchIDHeader)
	resp, err := t.base.RoundTrip(out)
	if err != nil {
		stop()
		cancel()
		if fetchErr := fetchCtx.Err(); fetchErr != nil {
			return nil, fetchErr
		}
		return nil, err
	}
	resp.Body = &releaseBody{ReadCloser: resp.Body, release: func() {
		stop()
		cancel()
	}}
	return resp, nil
}

// releaseBody runs release once the body is closed.
type releaseBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

type fetchResult struct {
	body   []byte
	status int
	err    error
}

// Fetch visits pageURL and returns its body. Network failures, timeouts and
// non-2xx responses are returned as *FetchError. Cancelling ctx aborts the
// request in flight.
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, f.fail(pageURL, 0, err)
	}

	id := strconv.FormatUint(f.nextID.Add(1), 10)
	f.transport.inflight.Store(id, ctx)
	defer f.transport.inflight.Delete(id)

	c := f.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set(fetchIDHeader, id)
	})
	done := make(chan fetchResult, 1)
	start := time.Now()
	f.metrics.IncRequest("started")

	go func() {
		var res fetchResult
		c.OnResponse(func(r *colly.Response) {
			res.status = r.StatusCode
			res.body = r.Body
		})
		c.OnError(func(r *colly.Response, err error) {
			if r != nil {
				res.status = r.StatusCode
			}
		})
		res.err = c.Visit(pageURL)
		done <- res
	}()

	select {
	case <-ctx.Done():
		return nil, f.fail(pageURL, 0, ctx.Err())
	case res := <-done:
		f.metrics.ObserveDuration(time.Since(start))
		if res.err != nil {
			return nil, f.fail(pageURL, res.status, res.err)
		}
		if res.status < http.StatusOK || res.status >= http.StatusMultipleChoices {
			return nil, f.fail(pageURL, res.status, nil)
		}
		f.metrics.IncRequest("completed")
		return res.body, nil
	}
}

func (f *CollyFetcher) fail(pageURL string, status int, err error) error {
	classified := classifyError(err, status)
	if classified == nil {
		classified = fmt.Errorf("no response")
	}
	f.metrics.IncError(errorTypeLabel(classified))
	return &FetchError{URL: pageURL, StatusCode: status, Err: classified}
}
