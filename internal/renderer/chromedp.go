// Package renderer executes JavaScript-heavy pages in headless Chrome and
// caches the rendered output.
package renderer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/metrics"
	"github.com/lauravimes/leadblitz/internal/scoring"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	SettleDelay       time.Duration
}

// Chrome implements scoring.Renderer using chromedp and headless Chrome.
type Chrome struct {
	cfg         Config
	limiter     chan struct{}
	cache       *Cache
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChrome creates a headless renderer. cache may be nil to disable render
// caching.
func NewChrome(cfg Config, cache *Cache, logger *zap.Logger) (*Chrome, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 8 * time.Second
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = 2 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.NoSandbox,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Chrome{
		cfg:         cfg,
		limiter:     limiter,
		cache:       cache,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (c *Chrome) Close() {
	c.allocCancel()
}

// Render navigates to the requested URL in headless Chrome and captures the
// settled DOM. Failures come back in the result's Errors list; the result is
// always usable.
func (c *Chrome) Render(ctx context.Context, req scoring.RenderRequest) scoring.RenderResult {
	if c.cache != nil {
		if cached, ok := c.cache.Get(req.URL); ok {
			metrics.ObserveRenderCache("hit")
			return cached
		}
		metrics.ObserveRenderCache("miss")
	}

	result := scoring.RenderResult{
		FinalURL:  req.URL,
		Timestamp: time.Now().UTC(),
	}

	if err := c.acquire(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("render slot wait: %s", err))
		return result
	}
	defer c.release()

	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, c.cfg.NavigationTimeout)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	capture, err := c.runHeadless(taskCtx, req)
	if err != nil {
		if taskCtx.Err() != nil {
			result.Errors = append(result.Errors, "Page load timeout")
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("Navigation error: %s", truncate(err.Error(), 200)))
		}
		return result
	}

	result.Success = true
	result.HTML = capture.html
	result.TextContent = capture.text
	result.StatusCode = meta.statusWithFallback()
	result.FinalURL = capture.finalURL
	if result.FinalURL == "" {
		result.FinalURL = req.URL
	}
	result.Metadata = scoring.RenderMetadata{
		Title: capture.title,
		URL:   result.FinalURL,
	}
	result.Errors = capture.warnings

	if c.cache != nil {
		c.cache.Put(req.URL, result)
	}
	return result
}

type pageCapture struct {
	html     string
	text     string
	title    string
	finalURL string
	warnings []string
}

func (c *Chrome) runHeadless(ctx context.Context, req scoring.RenderRequest) (pageCapture, error) {
	var page pageCapture

	actions := []chromedp.Action{
		c.networkSetupAction(),
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if req.WaitSelector != "" {
		actions = append(actions, c.waitSelectorAction(req.WaitSelector, &page.warnings))
	}
	actions = append(actions,
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.Location(&page.finalURL),
		chromedp.Title(&page.title),
		chromedp.OuterHTML("html", &page.html, chromedp.ByQuery),
		chromedp.Text("body", &page.text, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return pageCapture{}, fmt.Errorf("chromedp run: %w", err)
	}
	return page, nil
}

// waitSelectorAction waits briefly for a caller-specified selector. A miss
// is recorded as a warning, not a failure.
func (c *Chrome) waitSelectorAction(selector string, warnings *[]string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.SelectorTimeout)
		defer cancel()
		if err := chromedp.WaitVisible(selector, chromedp.ByQuery).Do(waitCtx); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("Selector '%s' not found", selector))
		}
		return nil
	})
}

func (c *Chrome) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (c *Chrome) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("canceled: %w", ctx.Err())
	}
}

func (c *Chrome) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.mu.Unlock()
}

func (m *responseMeta) statusWithFallback() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == 0 {
		return http.StatusOK
	}
	return m.status
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
