package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"subpool/internal/clash"
	"subpool/internal/shared/logger"
	"subpool/nodepool/model"
)

// HTMLPageSource 从 HTML 分享页中按 CSS 选择器取出内嵌的配置文本，
// 再交给核心提取器。很多免费节点站把整段 Clash 配置贴在 <pre> 里。
type HTMLPageSource struct {
	name     string
	url      string
	selector string
	client   *http.Client
}

// NewHTMLPageSource 创建一个新的 HTML 分享页源。selector 为空时默认 "pre"。
func NewHTMLPageSource(name, url, selector string, timeout time.Duration) *HTMLPageSource {
	if selector == "" {
		selector = "pre"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTMLPageSource{
		name:     name,
		url:      url,
		selector: selector,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *HTMLPageSource) Name() string {
	return s.name
}

func (s *HTMLPageSource) Fetch(ctx context.Context) (*Result, error) {
	l := logger.WithComponent("NodePool/Source")
	l.Info().Str("source", s.name).Msg("Fetching share page...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.name, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.name)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", s.name, err)
	}

	out := &Result{}
	doc.Find(s.selector).Each(func(i int, sel *goquery.Selection) {
		res := clash.Extract(sel.Text())
		for _, d := range res.Dropped {
			l.Warn().Str("source", s.name).Int("line", d.Line).Str("record", d.Src).Msg("Dropped incomplete node record.")
		}
		for _, n := range res.Nodes {
			out.Nodes = append(out.Nodes, model.New(n, s.name))
		}
		out.Dropped = append(out.Dropped, res.Dropped...)
	})

	l.Info().Int("count", len(out.Nodes)).Int("dropped", len(out.Dropped)).Str("source", s.name).Msg("Fetch finished.")
	return out, nil
}
