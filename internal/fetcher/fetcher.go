// Package fetcher retrieves website markup over plain HTTP using Colly,
// with the retry and recovery behavior hostile small-business sites demand:
// backoff on rate limiting, identity-header rotation, a one-shot
// compression-off retry for garbled payloads, and a one-shot certificate
// bypass for broken TLS.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/metrics"
	"github.com/lauravimes/leadblitz/internal/scoring"
)

// Garbled-payload detection: a burst of control characters early in a
// supposedly textual body points at a mis-negotiated compression stream.
// Thresholds are a heuristic proxy; recalibrate against real captures.
const (
	garbleSampleBytes = 500
	garbleThreshold   = 20
)

// userAgents is the identity pool rotated across attempts to avoid trivial
// fingerprinting.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Config controls fetch behavior.
type Config struct {
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoffBase time.Duration
}

// Fetcher performs single-URL fetches. Safe for concurrent use; each attempt
// runs on its own cloned collector.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger
	base   *colly.Collector
}

// transportMode selects the http.Transport variant for one attempt.
type transportMode int

const (
	modeDefault transportMode = iota
	modeNoCompression
	modeInsecureTLS
)

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true

	return &Fetcher{
		cfg:    cfg,
		logger: logger,
		base:   c,
	}
}

// Fetch retrieves url, retrying per the configured policy. It never returns
// an error: hostile or absent content is reported through the result's
// Errors list and status code. StatusCode stays zero only when every attempt
// died at the transport level.
func (f *Fetcher) Fetch(ctx context.Context, url string) scoring.FetchResult {
	result := scoring.FetchResult{FinalURL: url}

	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		result.Retries = attempt
		done, v := f.attempt(ctx, url, modeDefault, &result)
		if v == verdictDone {
			return done
		}
		if attempt == f.cfg.MaxRetries-1 {
			return result
		}
		if !f.sleep(ctx, f.backoff(attempt, v)) {
			return result
		}
	}
	return result
}

type verdict int

const (
	verdictDone verdict = iota
	verdictRetry
	verdictRateLimited
)

// attempt performs one fetch plus any in-attempt recovery (garble retry, TLS
// bypass). It mutates result in place and returns it with a verdict.
func (f *Fetcher) attempt(
	ctx context.Context,
	url string,
	mode transportMode,
	result *scoring.FetchResult,
) (scoring.FetchResult, verdict) {
	attemptNo := result.Retries + 1
	resp, err := f.visit(ctx, url, mode)
	if err != nil {
		switch classifyTransportErr(err) {
		case transportTimeout:
			metrics.ObserveFetchAttempt("timeout")
			result.Errors = append(result.Errors, fmt.Sprintf("request timeout (attempt %d)", attemptNo))
			return *result, verdictRetry
		case transportTLS:
			return f.retryInsecure(ctx, url, result)
		case transportRedirectLoop:
			metrics.ObserveFetchAttempt("transport_error")
			result.Errors = append(result.Errors, "too many redirects")
			return *result, verdictDone
		default:
			metrics.ObserveFetchAttempt("transport_error")
			result.Errors = append(result.Errors, fmt.Sprintf("connection failed (attempt %d)", attemptNo))
			return *result, verdictRetry
		}
	}

	result.StatusCode = resp.status
	result.FinalURL = resp.finalURL

	switch {
	case resp.status == http.StatusOK || resp.status == http.StatusAccepted:
		if mode == modeDefault && looksGarbled(resp.body) {
			metrics.ObserveFetchAttempt("garbled")
			result.Errors = append(result.Errors,
				fmt.Sprintf("garbled response detected (attempt %d), retrying without compression", attemptNo))
			return f.retryPlain(ctx, url, result)
		}
		if resp.status == http.StatusAccepted && len(resp.body) <= garbleSampleBytes {
			// Async shells answer 202 with no real content; only a
			// browser render will produce markup.
			metrics.ObserveFetchAttempt("needs_render")
			result.Body = resp.body
			result.Errors = append(result.Errors, "HTTP 202 (needs browser rendering)")
			return *result, verdictDone
		}
		metrics.ObserveFetchAttempt("ok")
		result.Body = resp.body
		result.Errors = nil
		return *result, verdictDone

	case resp.status == http.StatusTooManyRequests || resp.status == http.StatusServiceUnavailable:
		metrics.ObserveFetchAttempt("rate_limited")
		result.Errors = append(result.Errors, fmt.Sprintf("HTTP %d (rate limited/unavailable)", resp.status))
		return *result, verdictRateLimited

	case resp.status == http.StatusForbidden || resp.status == http.StatusUnauthorized:
		// Bot protection; more attempts only dig the hole deeper.
		metrics.ObserveFetchAttempt("blocked")
		result.Errors = append(result.Errors, fmt.Sprintf("HTTP %d (blocked)", resp.status))
		return *result, verdictDone

	default:
		metrics.ObserveFetchAttempt("http_error")
		result.Errors = append(result.Errors, fmt.Sprintf("HTTP %d", resp.status))
		return *result, verdictDone
	}
}

// retryPlain is the single compression-off retry for a garbled payload.
func (f *Fetcher) retryPlain(ctx context.Context, url string, result *scoring.FetchResult) (scoring.FetchResult, verdict) {
	resp, err := f.visit(ctx, url, modeNoCompression)
	if err == nil && resp.status == http.StatusOK && resp.body != "" && !looksGarbled(resp.body) {
		result.Body = resp.body
		result.StatusCode = resp.status
		result.FinalURL = resp.finalURL
		result.Errors = []string{fmt.Sprintf("fixed garbled response on retry (attempt %d)", result.Retries+1)}
		return *result, verdictDone
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("clean retry failed: %s", truncateErr(err)))
	}
	return *result, verdictRetry
}

// retryInsecure is the single certificate-validation-off retry for TLS
// failures. Success is flagged in Errors so the report can call it out.
func (f *Fetcher) retryInsecure(ctx context.Context, url string, result *scoring.FetchResult) (scoring.FetchResult, verdict) {
	metrics.ObserveFetchAttempt("tls_fallback")
	resp, err := f.visit(ctx, url, modeInsecureTLS)
	if err == nil && resp.status == http.StatusOK {
		result.Body = resp.body
		result.StatusCode = resp.status
		result.FinalURL = resp.finalURL
		result.Errors = []string{"SSL warning (insecure connection)"}
		return *result, verdictDone
	}
	result.Errors = append(result.Errors, "SSL certificate error")
	return *result, verdictDone
}

type visitResponse struct {
	status   int
	body     string
	finalURL string
}

// visit executes a single HTTP GET through a cloned collector.
func (f *Fetcher) visit(ctx context.Context, url string, mode transportMode) (visitResponse, error) {
	collector := f.base.Clone()
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.UserAgent = userAgents[rand.IntN(len(userAgents))]
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(newTransport(mode))

	var (
		resp     visitResponse
		respErr  error
		received bool
	)

	collector.OnRequest(func(r *colly.Request) {
		setBrowserHeaders(r, mode)
	})
	collector.OnResponse(func(r *colly.Response) {
		resp = visitResponse{
			status:   r.StatusCode,
			body:     string(r.Body),
			finalURL: r.Request.URL.String(),
		}
		received = true
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			resp = visitResponse{
				status:   r.StatusCode,
				body:     string(r.Body),
				finalURL: r.Request.URL.String(),
			}
			received = true
			return
		}
		respErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return visitResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if received {
			return resp, nil
		}
		if respErr != nil {
			return visitResponse{}, respErr
		}
		if err != nil {
			return visitResponse{}, err
		}
		return visitResponse{}, fmt.Errorf("no response received for %s", url)
	}
}

// setBrowserHeaders applies the realistic header set used to pass shallow
// bot checks. The User-Agent is set on the collector per attempt.
func setBrowserHeaders(r *colly.Request, mode transportMode) {
	r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	r.Headers.Set("Accept-Language", "en-GB,en-US;q=0.9,en;q=0.8")
	if mode != modeNoCompression {
		r.Headers.Set("Accept-Encoding", "gzip, deflate")
	}
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
	r.Headers.Set("Sec-Fetch-Dest", "document")
	r.Headers.Set("Sec-Fetch-Mode", "navigate")
	r.Headers.Set("Sec-Fetch-Site", "cross-site")
	r.Headers.Set("Cache-Control", "no-cache")
	r.Headers.Set("Referer", "https://www.google.com/")
}

func newTransport(mode transportMode) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	switch mode {
	case modeNoCompression:
		t.DisableCompression = true
	case modeInsecureTLS:
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- deliberate one-shot fallback, flagged in errors
	}
	return t
}

// looksGarbled counts control characters in the body's first
// garbleSampleBytes bytes.
func looksGarbled(body string) bool {
	if len(body) <= garbleSampleBytes {
		return false
	}
	sample := body[:garbleSampleBytes]
	suspicious := 0
	for i := 0; i < len(sample); i++ {
		c := sample[i]
		if c < 32 && c != '\n' && c != '\r' && c != '\t' {
			suspicious++
		}
	}
	return suspicious > garbleThreshold
}

type transportErrKind int

const (
	transportConnection transportErrKind = iota
	transportTimeout
	transportTLS
	transportRedirectLoop
)

func classifyTransportErr(err error) transportErrKind {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return transportTimeout
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return transportTLS
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "x509:") || strings.Contains(msg, "certificate"):
		return transportTLS
	case strings.Contains(msg, "stopped after") && strings.Contains(msg, "redirects"):
		return transportRedirectLoop
	case strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "context deadline exceeded"):
		return transportTimeout
	default:
		return transportConnection
	}
}

// backoff computes the pause before the next attempt: linear for transport
// retries, exponential with jitter when the server asked us to slow down.
func (f *Fetcher) backoff(attempt int, v verdict) time.Duration {
	base := f.cfg.RetryBackoffBase
	if v == verdictRateLimited {
		exp := base * time.Duration(1<<attempt)
		jitter := time.Duration((0.5 + rand.Float64()) * float64(base))
		return exp + jitter
	}
	return base * time.Duration(attempt+1)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateErr(err error) string {
	msg := err.Error()
	if len(msg) > 100 {
		msg = msg[:100]
	}
	return msg
}
