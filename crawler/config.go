package crawler

import (
	"time"
)

type FetcherConfig struct {
	RequestTimeout time.Duration
	Parallelism    int
	RequestDelay   time.Duration
	UserAgent      string
	MaxBodySize    int
	// ProxyURL routes page fetches through an http(s) or socks5 proxy.
	ProxyURL string
}

// DefaultConfig returns a default fetcher configuration
func DefaultConfig() *FetcherConfig {
	return &FetcherConfig{
		RequestTimeout: 15 * time.Second,
		Parallelism:    4,
		RequestDelay:   200 * time.Millisecond,
		UserAgent:      "Ghostwriter-Checker/1.0",
		MaxBodySize:    5 << 20,
	}
}
