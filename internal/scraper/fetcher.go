package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent is sent by both fetchers.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is a fetched document and the URL it ended up at.
type Page struct {
	HTML     string
	FinalURL string
}

// Fetcher loads a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetcherConfig holds timings shared by the fetchers.
type FetcherConfig struct {
	UserAgent         string
	SettleWait        time.Duration // wait after load for client-side scripts
	NavigationTimeout time.Duration
}

func (c *FetcherConfig) userAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

func (c *FetcherConfig) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 45 * time.Second
	}
	return c.NavigationTimeout
}

// ChromeFetcher renders pages in headless Chrome so metadata injected by
// client-side scripts is present.
type ChromeFetcher struct {
	cfg      FetcherConfig
	execPath string
}

// NewChromeFetcher creates a fetcher that starts one browser per call.
// execPath may be empty to let chromedp locate Chrome.
func NewChromeFetcher(cfg FetcherConfig, execPath string) *ChromeFetcher {
	return &ChromeFetcher{cfg: cfg, execPath: execPath}
}

func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(f.cfg.userAgent()),
		chromedp.Flag("headless", true),
		chromedp.Flag("lang", "en-US"),
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, f.cfg.navigationTimeout()+f.cfg.SettleWait)
	defer cancel()

	var page Page
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.cfg.SettleWait),
		chromedp.Location(&page.FinalURL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	return &page, nil
}

// HTTPFetcher fetches the raw document without running scripts.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher backed by resty.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	client := resty.New().
		SetTimeout(cfg.navigationTimeout()).
		SetHeader("User-Agent", cfg.userAgent()).
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode())
	}
	final := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	return &Page{HTML: resp.String(), FinalURL: final}, nil
}
