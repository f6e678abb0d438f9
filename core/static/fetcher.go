package static

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const bodyKey = "loadscript.body"

// Fetcher retrieves the bytes behind a script or page url.
type Fetcher interface {
	Fetch(ctx context.Context, target string) ([]byte, error)
}

// CollyFetcher fetches through a colly collector. Any non-2xx status is a
// failed fetch.
type CollyFetcher struct {
	c *colly.Collector
}

type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

func NewCollyFetcher(cfg FetcherConfig) *CollyFetcher {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if ua := ResolveUserAgent(cfg.UserAgent); ua != "" {
		opts = append(opts, colly.UserAgent(ua))
	}
	c := colly.NewCollector(opts...)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(bodyKey, r.Body)
	})
	return &CollyFetcher{c: c}
}

func (f *CollyFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	reqCtx := colly.NewContext()
	if err := f.c.Request(http.MethodGet, target, nil, reqCtx, nil); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	body, _ := reqCtx.GetAny(bodyKey).([]byte)
	return body, nil
}
