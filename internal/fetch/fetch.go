// Package fetch provides the HTTP acquisition layer shared by every source:
// a Colly-backed page fetcher with retries, an RSS/Atom feed reader, and
// tabular download decoding.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config holds the settings for the fetch client.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	Delay          time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Response is the result of a single fetch.
type Response struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client fetches pages via a shared Colly collector, cloned per request.
type Client struct {
	base   *colly.Collector
	cfg    Config
	logger *zap.Logger
}

// NewClient constructs a configured Colly-based fetch client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("fetch: user agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	if cfg.Delay > 0 {
		if err := base.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       cfg.Delay,
		}); err != nil {
			return nil, err
		}
	}

	return &Client{base: base, cfg: cfg, logger: logger}, nil
}

// Get fetches a URL with retries and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	var resp Response
	err := c.withRetry(ctx, rawURL, func() error {
		var fetchErr error
		resp, fetchErr = c.fetchOnce(ctx, rawURL)
		return fetchErr
	})
	return resp, err
}

// Document fetches a URL and parses the body as HTML.
func (c *Client) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (Response, error) {
	collector := c.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		resp := Response{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Header:     headers,
			Body:       append([]byte{}, r.Body...),
		}
		send(fetchResult{resp: resp})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: &httpError{url: rawURL, status: status, cause: err}})
	})

	visitErr := collector.Visit(rawURL)
	collector.Wait()

	// The OnError result carries the HTTP status; prefer it over the bare
	// error Visit returns for the same failure.
	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		return res.resp, res.err
	default:
	}
	if visitErr != nil {
		return Response{}, &httpError{url: rawURL, cause: visitErr}
	}
	return Response{}, errors.New("fetch produced no result")
}

type fetchResult struct {
	resp Response
	err  error
}
