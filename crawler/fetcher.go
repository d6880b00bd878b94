package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

type Page struct {
	URL           string `json:"url"`
	StatusCode    int    `json:"status_code"`
	Title         string `json:"title,omitempty"`
	Text          string `json:"text"`
	WordCount     int    `json:"word_count"`
	IsBoilerplate bool   `json:"is_boilerplate"`
	Reason        string `json:"reason,omitempty"`
}

// PageFetcher downloads search result pages so they can be compared in full
// instead of by snippet.
type PageFetcher struct {
	cfg       *FetcherConfig
	transport *http.Transport
	extractor *ContentExtractor
	logger    *zap.Logger
}

func NewPageFetcher(cfg *FetcherConfig, logger *zap.Logger) (*PageFetcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	transport, err := newTransport(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	return &PageFetcher{
		cfg:       cfg,
		transport: transport,
		extractor: NewContentExtractor(),
		logger:    logger,
	}, nil
}

func newTransport(proxyURL string) (*http.Transport, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create socks dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return transport, nil
}

func (f *PageFetcher) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxDepth(1),
		colly.Async(true),
		colly.MaxBodySize(f.cfg.MaxBodySize),
	)
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.RequestTimeout)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.cfg.Parallelism,
		Delay:       f.cfg.RequestDelay,
	})
	return c
}

// Fetch returns the readable text of every page that could be downloaded,
// keyed by the requested URL. Failed pages are logged and left out.
func (f *PageFetcher) Fetch(ctx context.Context, urls []string) map[string]*Page {
	pages := make(map[string]*Page, len(urls))
	var mu sync.Mutex

	c := f.newCollector()

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		requested := r.Request.Ctx.Get("requested")
		if requested == "" {
			requested = r.Request.URL.String()
		}

		result, err := f.extractor.ExtractText(string(r.Body), r.Request.URL)
		if err != nil {
			f.logger.Warn("failed to extract page text", zap.String("url", requested), zap.Error(err))
			return
		}

		mu.Lock()
		pages[requested] = &Page{
			URL:           requested,
			StatusCode:    r.StatusCode,
			Title:         result.Title,
			Text:          result.Text,
			WordCount:     result.WordCount,
			IsBoilerplate: result.IsBoilerplate,
			Reason:        result.Reason,
		}
		mu.Unlock()

		f.logger.Debug("fetched page",
			zap.String("url", requested),
			zap.Int("status", r.StatusCode),
			zap.Int("word_count", result.WordCount),
			zap.Bool("boilerplate", result.IsBoilerplate))
	})

	c.OnError(func(r *colly.Response, err error) {
		f.logger.Warn("failed to fetch page",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status", r.StatusCode),
			zap.Error(err))
	})

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		reqCtx := colly.NewContext()
		reqCtx.Put("requested", u)
		if err := c.Request("GET", u, nil, reqCtx, nil); err != nil {
			f.logger.Warn("failed to visit page", zap.String("url", u), zap.Error(err))
		}
	}

	c.Wait()
	return pages
}
