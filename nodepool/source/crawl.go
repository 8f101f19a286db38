package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"subpool/internal/clash"
	"subpool/internal/shared/logger"
	"subpool/nodepool/model"
)

// CrawlSource 用 colly 从索引页出发，跟随同站链接抓取分享页，
// 对每个代码块运行核心提取器。适合按日更新、一页一份配置的站点。
type CrawlSource struct {
	name      string
	url       string
	collector *colly.Collector
}

// NewCrawlSource 创建一个新的抓取源。只允许访问索引页所在域名，
// 链接深度限制为 2，避免爬出站外。
func NewCrawlSource(name, rawURL string, timeout time.Duration) (*CrawlSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid crawl url %q: %w", rawURL, err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"),
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(2),
	)
	c.SetRequestTimeout(timeout)

	return &CrawlSource{name: name, url: rawURL, collector: c}, nil
}

func (s *CrawlSource) Name() string {
	return s.name
}

func (s *CrawlSource) Fetch(ctx context.Context) (*Result, error) {
	l := logger.WithComponent("NodePool/Source")
	l.Info().Str("source", s.name).Msg("Starting crawl...")

	out := &Result{}
	var crawlErr error
	var mu sync.Mutex // 回调可能并发触发，保护结果切片

	c := s.collector.Clone()

	c.OnHTML("pre, code", func(e *colly.HTMLElement) {
		res := clash.Extract(e.Text)
		if len(res.Nodes) == 0 && len(res.Dropped) == 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, d := range res.Dropped {
			l.Warn().Str("source", s.name).Int("line", d.Line).Str("record", d.Src).Msg("Dropped incomplete node record.")
		}
		for _, n := range res.Nodes {
			out.Nodes = append(out.Nodes, model.New(n, s.name))
		}
		out.Dropped = append(out.Dropped, res.Dropped...)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		// 深度与域名限制由 collector 负责，这里只管跟随。
		_ = e.Request.Visit(e.Attr("href"))
	})

	c.OnError(func(r *colly.Response, err error) {
		l.Warn().Err(err).Int("status_code", r.StatusCode).Str("url", r.Request.URL.String()).Msg("Crawl request failed.")
		mu.Lock()
		crawlErr = err
		mu.Unlock()
	})

	if err := c.Visit(s.url); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.url, err)
	}
	c.Wait()

	if len(out.Nodes) == 0 && crawlErr != nil {
		return nil, crawlErr
	}

	l.Info().Int("count", len(out.Nodes)).Int("dropped", len(out.Dropped)).Str("source", s.name).Msg("Crawl finished.")
	return out, nil
}
